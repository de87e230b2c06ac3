// Package index publishes code entity documents to a search index.
//
// Two backends implement the same SearchIndex interface: an embedded
// Bleve index for local development and a remote hosted index reached
// over its REST batch API. The Publisher layers batching, in-batch
// deduplication, and per-batch retry on top of either backend.
package index

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/codescout-dev/codescout/internal/config"
)

// Document is one search index record. The field names mirror the hosted
// index's object shape so embedded and remote backends stay drop-in
// interchangeable.
type Document struct {
	// ObjectID is the deterministic record identifier.
	ObjectID string `json:"objectID"`

	// Title is the display name, "<file>: <entity>".
	Title string `json:"title"`

	// Content is the searchable content blob.
	Content string `json:"content"`

	EntityType string `json:"entity_type"`
	EntityName string `json:"entity_name"`
	Language   string `json:"language"`
	FilePath   string `json:"file_path"`
	LineNumber int    `json:"line_number"`
	EndLine    int    `json:"end_line,omitempty"`
	Signature  string `json:"signature,omitempty"`

	RepositoryID   int64  `json:"repository_id"`
	RepositoryName string `json:"repository_name"`

	Tags     []string `json:"tags,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Hit is one search result.
type Hit struct {
	Document *Document
	Score    float64
}

// SearchIndex is the boundary to a search index backend.
type SearchIndex interface {
	// SaveObjects upserts documents by ObjectID.
	SaveObjects(ctx context.Context, docs []*Document) error

	// DeleteObjects removes records by ObjectID. Unknown identifiers are
	// not an error.
	DeleteObjects(ctx context.Context, objectIDs []string) error

	// Search returns up to limit records matching query, best first.
	Search(ctx context.Context, query string, limit int) ([]*Hit, error)

	// Close releases backend resources.
	Close() error
}

// New builds the configured search index backend. The embedded backend
// stores its index under dataDir.
func New(cfg config.IndexConfig, dataDir string) (SearchIndex, error) {
	switch cfg.Backend {
	case "embedded":
		return NewEmbeddedIndex(filepath.Join(dataDir, "index", cfg.IndexName))
	case "remote":
		return NewRemoteIndex(cfg), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}
