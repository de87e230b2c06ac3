package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree materializes a map of relative path -> content under dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func paths(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestLocalSource_WalksOrderedByPath(t *testing.T) {
	// Given: a directory with files in several subdirectories
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"main.go":        "package main",
		"pkg/util.go":    "package pkg",
		"pkg/extra.go":   "package pkg",
		"docs/readme.md": "# readme",
	})

	// When: the source is walked
	files, err := NewLocalSource(dir, Options{}).Files(context.Background())

	// Then: all files are returned, ordered by path
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/readme.md", "main.go", "pkg/extra.go", "pkg/util.go"}, paths(files))
	assert.True(t, sort.SliceIsSorted(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	}))
}

func TestLocalSource_HonorsGitignore(t *testing.T) {
	// Given: a tree with a root .gitignore and a nested one
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".gitignore":       "*.log\nignored/\n",
		"src/.gitignore":   "temp/\n",
		"main.go":          "package main",
		"debug.log":        "noise",
		"ignored/a.go":     "package a",
		"src/app.go":       "package src",
		"src/temp/tmp.go":  "package temp",
		"src/other/ok.go":  "package other",
		"deep/nested.log":  "noise",
		"deep/keep.go":     "package deep",
	})

	// When: the source is walked
	files, err := NewLocalSource(dir, Options{}).Files(context.Background())

	// Then: ignored files are excluded, .gitignore files themselves too
	require.NoError(t, err)
	assert.Equal(t, []string{"deep/keep.go", "main.go", "src/app.go", "src/other/ok.go"}, paths(files))
}

func TestLocalSource_SkipsWellKnownDirectories(t *testing.T) {
	// Given: a tree containing vendor and VCS directories
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"main.go":                  "package main",
		".git/config":              "[core]",
		"node_modules/x/index.js":  "x",
		"vendor/dep/dep.go":        "package dep",
		"__pycache__/mod.pyc":      "bytecode",
		".hidden/secret.go":        "package hidden",
	})

	// When: the source is walked
	files, err := NewLocalSource(dir, Options{}).Files(context.Background())

	// Then: only the real source file survives
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, paths(files))
}

func TestLocalSource_SkipsOversizedFiles(t *testing.T) {
	// Given: one small file and one over the size cap
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"small.go": "package main",
		"big.go":   string(make([]byte, 128)),
	})

	// When: walked with a 64-byte cap
	files, err := NewLocalSource(dir, Options{MaxFileSize: 64}).Files(context.Background())

	// Then: only the small file is returned
	require.NoError(t, err)
	assert.Equal(t, []string{"small.go"}, paths(files))
}

func TestLocalSource_MissingDirectoryIsUnreachable(t *testing.T) {
	// When: walking a path that does not exist
	_, err := NewLocalSource(filepath.Join(t.TempDir(), "nope"), Options{}).Files(context.Background())

	// Then: the failure carries the source-unreachable code
	require.Error(t, err)
	assertCode(t, err, "ERR_301_SOURCE_UNREACHABLE")
}

func TestLocalSource_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"main.go": "package main"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalSource(dir, Options{}).Files(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
