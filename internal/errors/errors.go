package errors

import (
	"errors"
	"fmt"
)

// PipelineError is the structured error type for CodeScout.
// It carries the context the orchestrator needs to decide whether a failure
// aborts the run or is absorbed into run metrics.
type PipelineError struct {
	// Code is the unique error code (e.g., "ERR_301_SOURCE_UNREACHABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Source, Parse, Index, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with PipelineError.
func (e *PipelineError) Is(target error) bool {
	if t, ok := target.(*PipelineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *PipelineError) WithDetail(key, value string) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new PipelineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Sentinel errors for errors.Is() matching.
var (
	// ErrSourceUnreachable means the repository source could not be reached.
	// Fatal: the run transitions to failed.
	ErrSourceUnreachable = New(ErrCodeSourceUnreachable, "repository source unreachable", nil)

	// ErrBranchNotFound means the requested branch does not exist.
	// Fatal: the run transitions to failed.
	ErrBranchNotFound = New(ErrCodeBranchNotFound, "branch not found", nil)

	// ErrUnsupportedLanguage means no parser is registered for the file.
	// The file is skipped; the run continues.
	ErrUnsupportedLanguage = New(ErrCodeUnsupportedLanguage, "unsupported language", nil)

	// ErrParseFailure means the file could not be parsed at all.
	// The file is skipped, counted as a per-file failure; the run continues.
	ErrParseFailure = New(ErrCodeParseFailure, "parse failure", nil)

	// ErrIndexBatchFailure means a batch exhausted its retry ceiling.
	// Affected files are marked unanalyzed; the run continues.
	ErrIndexBatchFailure = New(ErrCodeIndexBatchFailure, "index batch failed after retries", nil)

	// ErrAlreadyProcessing means a claim was attempted on a repository
	// that already has an active run. Surfaced synchronously, never queued.
	ErrAlreadyProcessing = New(ErrCodeAlreadyProcessing, "repository is already being processed", nil)

	// ErrNotFound means the requested record does not exist in the store.
	ErrNotFound = New(ErrCodeNotFound, "record not found", nil)
)

// IsFatal reports whether err should abort the processing run.
// Only source and startup errors are fatal; per-file and per-batch
// failures are absorbed by the orchestrator.
func IsFatal(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Severity == SeverityFatal
	}
	return false
}

// CodeOf returns the error code of err, or empty string if err is not
// a PipelineError.
func CodeOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
