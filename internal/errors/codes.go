// Package errors provides structured error handling for CodeScout.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (SQLite, data directory)
//   - 3XX: Repository source errors (fetch, clone)
//   - 4XX: Parse and extraction errors
//   - 5XX: Index publishing errors
//   - 6XX: Job control errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates relational store and data directory errors.
	CategoryStorage Category = "STORAGE"
	// CategorySource indicates repository source fetch errors.
	CategorySource Category = "SOURCE"
	// CategoryParse indicates parse and entity extraction errors.
	CategoryParse Category = "PARSE"
	// CategoryIndex indicates search index publishing errors.
	CategoryIndex Category = "INDEX"
	// CategoryJob indicates processing job control errors.
	CategoryJob Category = "JOB"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the processing run must terminate as failed.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the unit of work failed but the run continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStoreOpen      = "ERR_201_STORE_OPEN"
	ErrCodeStoreLocked    = "ERR_202_STORE_LOCKED"
	ErrCodeStoreMigration = "ERR_203_STORE_MIGRATION"
	ErrCodeNotFound       = "ERR_204_NOT_FOUND"
	ErrCodeStoreQuery     = "ERR_205_STORE_QUERY"

	// Source errors (300-399). Both are fatal to a processing run.
	ErrCodeSourceUnreachable = "ERR_301_SOURCE_UNREACHABLE"
	ErrCodeBranchNotFound    = "ERR_302_BRANCH_NOT_FOUND"

	// Parse errors (400-499). Absorbed per file, never fatal to a run.
	ErrCodeUnsupportedLanguage = "ERR_401_UNSUPPORTED_LANGUAGE"
	ErrCodeParseFailure        = "ERR_402_PARSE_FAILURE"
	ErrCodeFileTooLarge        = "ERR_403_FILE_TOO_LARGE"

	// Index errors (500-599). Absorbed per batch after the retry ceiling.
	ErrCodeIndexBatchFailure = "ERR_501_INDEX_BATCH_FAILURE"
	ErrCodeIndexUnavailable  = "ERR_502_INDEX_UNAVAILABLE"

	// Job errors (600-699)
	ErrCodeAlreadyProcessing = "ERR_601_ALREADY_PROCESSING"
	ErrCodeJobNotFound       = "ERR_602_JOB_NOT_FOUND"
	ErrCodeRunCancelled      = "ERR_603_RUN_CANCELLED"
)

// categoryFromCode derives the category from the numeric range of a code.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryJob
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategorySource
	case '4':
		return CategoryParse
	case '5':
		return CategoryIndex
	default:
		return CategoryJob
	}
}

// severityFromCode derives the severity from the code.
// Only source and startup errors abort a run; everything else is absorbed.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSourceUnreachable, ErrCodeBranchNotFound,
		ErrCodeStoreOpen, ErrCodeStoreLocked, ErrCodeStoreMigration,
		ErrCodeConfigNotFound, ErrCodeConfigInvalid:
		return SeverityFatal
	case ErrCodeUnsupportedLanguage, ErrCodeFileTooLarge:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code
// may succeed on a later attempt.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeIndexBatchFailure, ErrCodeIndexUnavailable, ErrCodeSourceUnreachable:
		return true
	default:
		return false
	}
}
