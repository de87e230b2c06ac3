package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

// EmbeddedIndex implements SearchIndex on a local Bleve index.
type EmbeddedIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// NewEmbeddedIndex opens (or creates) a Bleve index at path.
// An empty path creates an in-memory index, used in tests.
func NewEmbeddedIndex(path string) (*EmbeddedIndex, error) {
	m := buildMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, cserr.New(cserr.ErrCodeIndexUnavailable,
				fmt.Sprintf("failed to create index directory for %q", path), mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, cserr.New(cserr.ErrCodeIndexUnavailable, "failed to open embedded index", err)
	}

	return &EmbeddedIndex{index: idx}, nil
}

// buildMapping maps the document fields that participate in search.
func buildMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("entity_name", text)
	doc.AddFieldMappingsAt("signature", text)
	doc.AddFieldMappingsAt("entity_type", keyword)
	doc.AddFieldMappingsAt("language", keyword)
	doc.AddFieldMappingsAt("file_path", keyword)
	doc.AddFieldMappingsAt("repository_name", keyword)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// SaveObjects upserts documents by ObjectID.
func (e *EmbeddedIndex) SaveObjects(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return cserr.New(cserr.ErrCodeIndexUnavailable, "index is closed", nil)
	}

	batch := e.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ObjectID, doc); err != nil {
			return cserr.New(cserr.ErrCodeIndexBatchFailure,
				fmt.Sprintf("failed to stage document %s", doc.ObjectID), err)
		}
	}
	if err := e.index.Batch(batch); err != nil {
		return cserr.New(cserr.ErrCodeIndexBatchFailure, "failed to execute index batch", err)
	}
	return nil
}

// DeleteObjects removes records by ObjectID. Unknown identifiers are a
// no-op, matching the hosted backend's delete semantics.
func (e *EmbeddedIndex) DeleteObjects(ctx context.Context, objectIDs []string) error {
	if len(objectIDs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return cserr.New(cserr.ErrCodeIndexUnavailable, "index is closed", nil)
	}

	batch := e.index.NewBatch()
	for _, id := range objectIDs {
		batch.Delete(id)
	}
	if err := e.index.Batch(batch); err != nil {
		return cserr.New(cserr.ErrCodeIndexBatchFailure, "failed to execute delete batch", err)
	}
	return nil
}

// Search returns up to limit records matching query, best first.
func (e *EmbeddedIndex) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, cserr.New(cserr.ErrCodeIndexUnavailable, "index is closed", nil)
	}

	if query == "" {
		return []*Hit{}, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	req.Fields = []string{"*"}

	result, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, cserr.New(cserr.ErrCodeIndexUnavailable, "search failed", err)
	}

	hits := make([]*Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, &Hit{Document: documentFromFields(h.ID, h.Fields), Score: h.Score})
	}
	return hits, nil
}

// documentFromFields rebuilds a Document from stored Bleve fields.
func documentFromFields(id string, fields map[string]interface{}) *Document {
	doc := &Document{ObjectID: id}
	doc.Title = stringField(fields, "title")
	doc.Content = stringField(fields, "content")
	doc.EntityType = stringField(fields, "entity_type")
	doc.EntityName = stringField(fields, "entity_name")
	doc.Language = stringField(fields, "language")
	doc.FilePath = stringField(fields, "file_path")
	doc.Signature = stringField(fields, "signature")
	doc.RepositoryName = stringField(fields, "repository_name")
	if v, ok := fields["line_number"].(float64); ok {
		doc.LineNumber = int(v)
	}
	if v, ok := fields["end_line"].(float64); ok {
		doc.EndLine = int(v)
	}
	if v, ok := fields["repository_id"].(float64); ok {
		doc.RepositoryID = int64(v)
	}
	return doc
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

// DocCount returns the number of records in the index.
func (e *EmbeddedIndex) DocCount() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, cserr.New(cserr.ErrCodeIndexUnavailable, "index is closed", nil)
	}
	return e.index.DocCount()
}

// Close releases the underlying Bleve index.
func (e *EmbeddedIndex) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}
