package job

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

func TestClaim_SecondClaimRejected(t *testing.T) {
	m := NewManager()

	// Given: a claimed repository
	first, err := m.Claim(1)
	require.NoError(t, err)
	require.NotNil(t, first)

	// When: a second claim arrives while the run is live
	_, err = m.Claim(1)

	// Then: it fails synchronously, never queues
	require.Error(t, err)
	assert.ErrorIs(t, err, cserr.ErrAlreadyProcessing)
}

func TestClaim_ReleasedRepositoryCanBeReclaimed(t *testing.T) {
	m := NewManager()

	first, err := m.Claim(1)
	require.NoError(t, err)
	m.Release(first)

	second, err := m.Claim(1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "each run gets a fresh job id")
}

func TestClaim_IndependentRepositories(t *testing.T) {
	m := NewManager()

	_, err := m.Claim(1)
	require.NoError(t, err)
	_, err = m.Claim(2)
	require.NoError(t, err)

	assert.Equal(t, 2, m.ActiveCount())
}

func TestRelease_StaleJobDoesNotFreeNewClaim(t *testing.T) {
	m := NewManager()

	first, err := m.Claim(1)
	require.NoError(t, err)
	m.Release(first)

	second, err := m.Claim(1)
	require.NoError(t, err)

	// When: the stale first job is released again
	m.Release(first)

	// Then: the second claim still holds
	assert.Equal(t, second.ID, m.Active(1).ID)
	_, err = m.Claim(1)
	assert.ErrorIs(t, err, cserr.ErrAlreadyProcessing)
}

func TestClaim_ConcurrentClaimsYieldOneWinner(t *testing.T) {
	m := NewManager()

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Claim(7); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one concurrent claim succeeds")
}

func TestProgress_PhasePercentages(t *testing.T) {
	p := NewProgress(1, "job-1")

	assert.Zero(t, p.Snapshot().ProcessingProgress)

	p.SetPhase(PhaseDiscovering)
	assert.Equal(t, 0.0, p.Snapshot().ProcessingProgress)

	p.SetPhase(PhaseParsing)
	p.SetTotals(10, false)
	p.UpdateProcessed(5)
	assert.InDelta(t, 45.0, p.Snapshot().ProcessingProgress, 0.01)

	p.SetPhase(PhaseIndexing)
	p.UpdateProcessed(10)
	assert.InDelta(t, 95.0, p.Snapshot().ProcessingProgress, 0.01)

	p.Finish(PhaseCompleted, "done")
	snap := p.Snapshot()
	assert.Equal(t, 100.0, snap.ProcessingProgress)
	assert.Equal(t, "completed", snap.Status)
	assert.Equal(t, "done", snap.Message)
}

func TestProgress_CountersAreMonotonic(t *testing.T) {
	p := NewProgress(1, "job-1")
	p.SetTotals(10, false)

	p.UpdateProcessed(7)
	p.UpdateProcessed(3) // stale update

	assert.Equal(t, 7, p.Snapshot().FilesProcessed)
}

func TestProgress_TruncationSurfacesInSnapshot(t *testing.T) {
	p := NewProgress(1, "job-1")
	p.SetTotals(10000, true)

	assert.True(t, p.Snapshot().Truncated)
}

func TestPhase_Terminal(t *testing.T) {
	assert.True(t, PhaseCompleted.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseParsing.Terminal())
	assert.False(t, PhasePending.Terminal())
}
