package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addRepo(t *testing.T, s *SQLiteStore, location string) *Repository {
	t.Helper()
	repo, err := s.UpsertRepository(context.Background(), location, "demo", "main")
	require.NoError(t, err)
	return repo
}

func TestOpen_LocksDataDirectory(t *testing.T) {
	// Given: an open store on a data directory
	dir := t.TempDir()
	first, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	// When: a second store opens the same directory
	_, err = Open(dir)

	// Then: the lock is held and the open fails
	require.Error(t, err)
	assert.Equal(t, cserr.ErrCodeStoreLocked, cserr.CodeOf(err))
}

func TestOpen_LockReleasedOnClose(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestUpsertRepository_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Given: a registered repository
	first, err := s.UpsertRepository(ctx, "https://github.com/user/repo.git", "repo", "main")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, first.Status)

	// When: the same location is registered again with a new branch
	second, err := s.UpsertRepository(ctx, "https://github.com/user/repo.git", "repo", "develop")

	// Then: the record is updated in place, not duplicated
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "develop", second.Branch)

	repos, err := s.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Len(t, repos, 1)
}

func TestGetRepository_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRepository(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, cserr.ErrCodeNotFound, cserr.CodeOf(err))
}

func TestUpdateRepositoryStatusAndProgress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := addRepo(t, s, "https://github.com/user/repo.git")

	// Given: two recorded files with line counts
	require.NoError(t, s.UpsertFile(ctx, &CodeFile{RepositoryID: repo.ID, Path: "a.go", LineCount: 12}))
	require.NoError(t, s.UpsertFile(ctx, &CodeFile{RepositoryID: repo.ID, Path: "b.go", LineCount: 30}))

	// When: status and progress are persisted across phases
	require.NoError(t, s.UpdateRepositoryStatus(ctx, repo.ID, StatusParsing, ""))
	require.NoError(t, s.UpdateRepositoryProgress(ctx, repo.ID, 10, 4, false))
	require.NoError(t, s.SetRepositoryReady(ctx, repo.ID, true, true))

	// Then: a reload reflects all of it
	got, err := s.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusParsing, got.Status)
	assert.Equal(t, 10, got.TotalFiles)
	assert.Equal(t, 4, got.ProcessedFiles)
	assert.Equal(t, 42, got.TotalLines, "line counts aggregate at readiness")
	assert.False(t, got.Truncated)
	assert.True(t, got.IndexReady)
	assert.True(t, got.ToolReady)
	assert.False(t, got.LastProcessedAt.IsZero())

	// And: the flags persist independently
	require.NoError(t, s.SetRepositoryReady(ctx, repo.ID, false, true))
	got, err = s.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.False(t, got.IndexReady)
	assert.True(t, got.ToolReady)
}

func TestUpdateRepositoryStatus_UnknownID(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateRepositoryStatus(context.Background(), 42, StatusFailed, "boom")
	require.Error(t, err)
	assert.Equal(t, cserr.ErrCodeNotFound, cserr.CodeOf(err))
}

func TestUpsertFile_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := addRepo(t, s, "https://github.com/user/repo.git")

	// Given: a file record
	file := &CodeFile{
		RepositoryID: repo.ID,
		Path:         "pkg/util.go",
		Fingerprint:  "abc123",
		Language:     "go",
		LineCount:    80,
		EntityCount:  3,
		Analyzed:     true,
	}
	require.NoError(t, s.UpsertFile(ctx, file))
	assert.NotZero(t, file.ID)

	// When: the same path is upserted with a new fingerprint
	file2 := &CodeFile{
		RepositoryID: repo.ID,
		Path:         "pkg/util.go",
		Fingerprint:  "def456",
		Language:     "go",
		LineCount:    95,
		EntityCount:  5,
		Analyzed:     false,
	}
	require.NoError(t, s.UpsertFile(ctx, file2))

	// Then: the record is replaced, keeping its identity
	assert.Equal(t, file.ID, file2.ID)
	got, err := s.GetFile(ctx, repo.ID, "pkg/util.go")
	require.NoError(t, err)
	assert.Equal(t, "def456", got.Fingerprint)
	assert.Equal(t, 95, got.LineCount)
	assert.Equal(t, 5, got.EntityCount)
	assert.False(t, got.Analyzed)
}

func TestListFiles_OrderedByPath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := addRepo(t, s, "https://github.com/user/repo.git")

	for _, path := range []string{"z.go", "a.go", "m/n.go"} {
		require.NoError(t, s.UpsertFile(ctx, &CodeFile{RepositoryID: repo.ID, Path: path}))
	}

	files, err := s.ListFiles(ctx, repo.ID)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.go", files[0].Path)
	assert.Equal(t, "m/n.go", files[1].Path)
	assert.Equal(t, "z.go", files[2].Path)
}

func TestReplaceEntities_SwapsRecordedSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := addRepo(t, s, "https://github.com/user/repo.git")

	file := &CodeFile{RepositoryID: repo.ID, Path: "a.go"}
	require.NoError(t, s.UpsertFile(ctx, file))

	// Given: a recorded entity set
	require.NoError(t, s.ReplaceEntities(ctx, file.ID, []*CodeEntity{
		{FileID: file.ID, ObjectID: "obj1", Kind: "function", Name: "A", StartLine: 1},
		{FileID: file.ID, ObjectID: "obj2", Kind: "class", Name: "B", StartLine: 5},
	}))

	// When: the set is replaced
	require.NoError(t, s.ReplaceEntities(ctx, file.ID, []*CodeEntity{
		{FileID: file.ID, ObjectID: "obj3", Kind: "function", Name: "C", StartLine: 2},
	}))

	// Then: only the new identifiers remain recorded
	ids, err := s.ListFileObjectIDs(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"obj3"}, ids)
}

func TestListRepositoryObjectIDs_SpansFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := addRepo(t, s, "https://github.com/user/repo.git")

	a := &CodeFile{RepositoryID: repo.ID, Path: "a.go"}
	b := &CodeFile{RepositoryID: repo.ID, Path: "b.go"}
	require.NoError(t, s.UpsertFile(ctx, a))
	require.NoError(t, s.UpsertFile(ctx, b))
	require.NoError(t, s.ReplaceEntities(ctx, a.ID, []*CodeEntity{{ObjectID: "obj1", Kind: "function", Name: "A", StartLine: 1}}))
	require.NoError(t, s.ReplaceEntities(ctx, b.ID, []*CodeEntity{{ObjectID: "obj2", Kind: "function", Name: "B", StartLine: 1}}))

	ids, err := s.ListRepositoryObjectIDs(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"obj1", "obj2"}, ids)
}

func TestDeleteFile_CascadesEntityRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := addRepo(t, s, "https://github.com/user/repo.git")

	file := &CodeFile{RepositoryID: repo.ID, Path: "a.go"}
	require.NoError(t, s.UpsertFile(ctx, file))
	require.NoError(t, s.ReplaceEntities(ctx, file.ID, []*CodeEntity{{ObjectID: "obj1", Kind: "function", Name: "A", StartLine: 1}}))

	// When: the file is deleted
	require.NoError(t, s.DeleteFile(ctx, file.ID))

	// Then: its entity records are gone too
	ids, err := s.ListRepositoryObjectIDs(ctx, repo.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDeleteRepository_CascadesEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := addRepo(t, s, "https://github.com/user/repo.git")

	file := &CodeFile{RepositoryID: repo.ID, Path: "a.go"}
	require.NoError(t, s.UpsertFile(ctx, file))
	require.NoError(t, s.ReplaceEntities(ctx, file.ID, []*CodeEntity{{ObjectID: "obj1", Kind: "function", Name: "A", StartLine: 1}}))

	// When: the repository is deleted
	require.NoError(t, s.DeleteRepository(ctx, repo.ID))

	// Then: files and entity records cascade away
	_, err := s.GetFile(ctx, repo.ID, "a.go")
	assert.Equal(t, cserr.ErrCodeNotFound, cserr.CodeOf(err))
	files, err := s.ListFiles(ctx, repo.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
}
