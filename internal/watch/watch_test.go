package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestWatcher_TriggersAfterQuietPeriod(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int32
	w := New(dir, 50*time.Millisecond, func(ctx context.Context) error {
		fired.Add(1)
		return nil
	}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	// Give the watcher a moment to install its watches.
	time.Sleep(100 * time.Millisecond)

	// When: a file changes
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))

	// Then: one trigger fires after the debounce window
	require.Eventually(t, func() bool { return fired.Load() >= 1 },
		2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestWatcher_CoalescesBursts(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int32
	w := New(dir, 150*time.Millisecond, func(ctx context.Context) error {
		fired.Add(1)
		return nil
	}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// When: a burst of rapid writes lands
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	// Then: the burst collapses to a single trigger
	require.Eventually(t, func() bool { return fired.Load() >= 1 },
		2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestWatcher_AbsorbsAlreadyProcessing(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int32
	w := New(dir, 50*time.Millisecond, func(ctx context.Context) error {
		fired.Add(1)
		return cserr.ErrAlreadyProcessing
	}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))
	require.Eventually(t, func() bool { return fired.Load() >= 1 },
		2*time.Second, 20*time.Millisecond)

	// The watcher keeps running despite the busy signal.
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	w := New(t.TempDir(), 50*time.Millisecond, func(ctx context.Context) error { return nil }, discard())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not return")
	}
}
