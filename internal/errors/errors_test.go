package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassification(t *testing.T) {
	tests := []struct {
		name          string
		code          string
		wantCategory  Category
		wantSeverity  Severity
		wantRetryable bool
	}{
		{
			name:          "source unreachable is fatal and retryable",
			code:          ErrCodeSourceUnreachable,
			wantCategory:  CategorySource,
			wantSeverity:  SeverityFatal,
			wantRetryable: true,
		},
		{
			name:          "branch not found is fatal",
			code:          ErrCodeBranchNotFound,
			wantCategory:  CategorySource,
			wantSeverity:  SeverityFatal,
			wantRetryable: false,
		},
		{
			name:          "unsupported language is a warning",
			code:          ErrCodeUnsupportedLanguage,
			wantCategory:  CategoryParse,
			wantSeverity:  SeverityWarning,
			wantRetryable: false,
		},
		{
			name:          "parse failure is absorbed",
			code:          ErrCodeParseFailure,
			wantCategory:  CategoryParse,
			wantSeverity:  SeverityError,
			wantRetryable: false,
		},
		{
			name:          "index batch failure is retryable",
			code:          ErrCodeIndexBatchFailure,
			wantCategory:  CategoryIndex,
			wantSeverity:  SeverityError,
			wantRetryable: true,
		},
		{
			name:          "already processing is a job error",
			code:          ErrCodeAlreadyProcessing,
			wantCategory:  CategoryJob,
			wantSeverity:  SeverityError,
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestPipelineError_IsMatchesByCode(t *testing.T) {
	err := New(ErrCodeAlreadyProcessing, "repo 42 busy", nil)
	assert.True(t, Is(err, ErrAlreadyProcessing))
	assert.False(t, Is(err, ErrSourceUnreachable))
}

func TestPipelineError_UnwrapChain(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := New(ErrCodeSourceUnreachable, "clone failed", cause)
	wrapped := fmt.Errorf("processing repo: %w", err)

	assert.True(t, Is(wrapped, ErrSourceUnreachable))
	assert.True(t, IsFatal(wrapped))
	assert.Equal(t, ErrCodeSourceUnreachable, CodeOf(wrapped))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrBranchNotFound))
	assert.False(t, IsFatal(ErrParseFailure))
	assert.False(t, IsFatal(ErrIndexBatchFailure))
	assert.False(t, IsFatal(fmt.Errorf("plain error")))
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return New(ErrCodeIndexBatchFailure, "transient", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsCeiling(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return New(ErrCodeIndexBatchFailure, "still down", nil)
	})

	require.Error(t, err)
	// Initial attempt plus two retries.
	assert.Equal(t, 3, attempts)
	assert.True(t, Is(err, ErrIndexBatchFailure))
}

func TestRetry_NonRetryableShortCircuits(t *testing.T) {
	cfg := DefaultRetryConfig()

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return New(ErrCodeBranchNotFound, "no such branch", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, Is(err, ErrBranchNotFound))
}

func TestRetry_ContextCancellation(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:   5,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		attempts++
		return New(ErrCodeIndexBatchFailure, "down", nil)
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
