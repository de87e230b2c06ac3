// Package store persists repositories, file fingerprints, and published
// entity identifiers in SQLite.
//
// The store is the pipeline's memory between runs: fingerprints drive
// incremental reindexing, and recorded object identifiers let a later run
// retract exactly what an earlier run published.
package store

import (
	"context"
	"time"
)

// Repository status values persisted between runs.
const (
	StatusPending     = "pending"
	StatusDiscovering = "discovering"
	StatusParsing     = "parsing"
	StatusIndexing    = "indexing"
	StatusFinalizing  = "finalizing"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Repository is a registered repository and its last known processing state.
type Repository struct {
	ID       int64
	Location string
	Name     string
	Branch   string

	// Status is the last persisted processing phase.
	Status string

	// Message describes the terminal outcome of the last run.
	Message string

	// TotalFiles and ProcessedFiles are the last run's progress counters.
	TotalFiles     int
	ProcessedFiles int

	// TotalLines is the aggregate line count across the repository's
	// recorded files, refreshed when a run finalizes.
	TotalLines int

	// Truncated records that the last run hit the file ceiling.
	Truncated bool

	// IndexReady reports whether the search index holds a usable snapshot:
	// set when a run finalizes with at least one confirmed batch.
	IndexReady bool

	// ToolReady reports whether search can be served for the repository:
	// set once a run reaches finalizing, partial batch failures included.
	ToolReady bool

	LastProcessedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CodeFile is one file of a repository snapshot and its indexing state.
type CodeFile struct {
	ID           int64
	RepositoryID int64
	Path         string

	// Fingerprint is the content hash recorded at last successful analysis.
	Fingerprint string

	Language    string
	LineCount   int
	EntityCount int

	// Analyzed is true once the file's entities are confirmed published.
	// A failed index batch resets it so the next run republishes.
	Analyzed bool

	UpdatedAt time.Time
}

// CodeEntity records one published index object so retraction can
// enumerate exactly what was published for a file.
type CodeEntity struct {
	ID        int64
	FileID    int64
	ObjectID  string
	Kind      string
	Name      string
	StartLine int
}

// Store is the persistence boundary for the processing pipeline.
type Store interface {
	// UpsertRepository registers location or returns the existing record.
	UpsertRepository(ctx context.Context, location, name, branch string) (*Repository, error)

	// GetRepository fetches a repository by id. Fails with ErrNotFound.
	GetRepository(ctx context.Context, id int64) (*Repository, error)

	// GetRepositoryByLocation fetches a repository by its location.
	GetRepositoryByLocation(ctx context.Context, location string) (*Repository, error)

	// ListRepositories returns all registered repositories ordered by name.
	ListRepositories(ctx context.Context) ([]*Repository, error)

	// UpdateRepositoryStatus persists the current phase and message.
	UpdateRepositoryStatus(ctx context.Context, id int64, status, message string) error

	// UpdateRepositoryProgress persists the run counters.
	UpdateRepositoryProgress(ctx context.Context, id int64, total, processed int, truncated bool) error

	// SetRepositoryReady persists the readiness flags, refreshes the
	// aggregate line count, and stamps the run time.
	SetRepositoryReady(ctx context.Context, id int64, indexReady, toolReady bool) error

	// DeleteRepository removes the repository and, via cascade, its files
	// and entity records.
	DeleteRepository(ctx context.Context, id int64) error

	// GetFile fetches one file record. Fails with ErrNotFound.
	GetFile(ctx context.Context, repositoryID int64, path string) (*CodeFile, error)

	// ListFiles returns all file records of a repository ordered by path.
	ListFiles(ctx context.Context, repositoryID int64) ([]*CodeFile, error)

	// UpsertFile inserts or updates the record keyed by (repository, path)
	// and fills in the record's ID.
	UpsertFile(ctx context.Context, file *CodeFile) error

	// MarkFileAnalyzed flips the analyzed flag.
	MarkFileAnalyzed(ctx context.Context, fileID int64, analyzed bool) error

	// DeleteFile removes a file record and its entity records.
	DeleteFile(ctx context.Context, fileID int64) error

	// ReplaceEntities atomically swaps the recorded entity set of a file.
	ReplaceEntities(ctx context.Context, fileID int64, entities []*CodeEntity) error

	// ListFileObjectIDs returns the recorded object identifiers for a file.
	ListFileObjectIDs(ctx context.Context, fileID int64) ([]string, error)

	// ListRepositoryObjectIDs returns every recorded object identifier of
	// a repository, across all its files.
	ListRepositoryObjectIDs(ctx context.Context, repositoryID int64) ([]string, error)

	// Close releases the database and the data-directory lock.
	Close() error
}
