package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemIndex(t *testing.T) *EmbeddedIndex {
	t.Helper()
	idx, err := NewEmbeddedIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func doc(id, name, content string) *Document {
	return &Document{
		ObjectID:       id,
		Title:          "main.go: " + name,
		Content:        content,
		EntityType:     "function",
		EntityName:     name,
		Language:       "go",
		FilePath:       "main.go",
		LineNumber:     10,
		RepositoryID:   1,
		RepositoryName: "demo",
	}
}

func TestEmbeddedIndex_SaveAndSearch(t *testing.T) {
	idx := openMemIndex(t)
	ctx := context.Background()

	// Given: indexed documents
	require.NoError(t, idx.SaveObjects(ctx, []*Document{
		doc("obj1", "ParseConfig", "func ParseConfig reads yaml configuration"),
		doc("obj2", "WriteLog", "func WriteLog appends to the log file"),
	}))

	// When: searching for one of them
	hits, err := idx.Search(ctx, "yaml configuration", 10)

	// Then: the matching document comes back with its fields
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "obj1", hits[0].Document.ObjectID)
	assert.Equal(t, "ParseConfig", hits[0].Document.EntityName)
	assert.Equal(t, "main.go", hits[0].Document.FilePath)
	assert.Equal(t, 10, hits[0].Document.LineNumber)
}

func TestEmbeddedIndex_SaveIsUpsert(t *testing.T) {
	idx := openMemIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.SaveObjects(ctx, []*Document{doc("obj1", "A", "first version")}))
	require.NoError(t, idx.SaveObjects(ctx, []*Document{doc("obj1", "A", "second version")}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestEmbeddedIndex_DeleteObjects(t *testing.T) {
	idx := openMemIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.SaveObjects(ctx, []*Document{
		doc("obj1", "A", "alpha"),
		doc("obj2", "B", "beta"),
	}))

	// When: one record and one unknown identifier are deleted
	require.NoError(t, idx.DeleteObjects(ctx, []string{"obj1", "does-not-exist"}))

	// Then: only the remaining record is left and unknowns were no-ops
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestEmbeddedIndex_EmptyQuery(t *testing.T) {
	idx := openMemIndex(t)

	hits, err := idx.Search(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestEmbeddedIndex_ClosedIndexFails(t *testing.T) {
	idx, err := NewEmbeddedIndex("")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	err = idx.SaveObjects(context.Background(), []*Document{doc("obj1", "A", "alpha")})
	assert.Error(t, err)
}

func TestEmbeddedIndex_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/idx"

	first, err := NewEmbeddedIndex(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveObjects(context.Background(), []*Document{doc("obj1", "A", "alpha")}))
	require.NoError(t, first.Close())

	second, err := NewEmbeddedIndex(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	count, err := second.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
