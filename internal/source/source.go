// Package source fetches repository file listings for processing runs.
//
// A Source yields a finite, path-ordered list of (path, content) pairs.
// Git URLs are materialized through go-git; plain directories are walked
// in place. Both fail with the fatal source taxonomy
// (ErrSourceUnreachable / ErrBranchNotFound) — per-file problems are
// handled downstream by the orchestrator.
package source

import (
	"context"
	"os"
	"strings"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

// File is one file from a repository snapshot.
type File struct {
	// Path is the path relative to the repository root, slash-separated.
	Path string

	// Content is the raw file content.
	Content []byte
}

// Source enumerates a repository's files.
type Source interface {
	// Files returns the repository's files ordered by path.
	// Fails with ErrSourceUnreachable or ErrBranchNotFound; both are
	// fatal to a processing run.
	Files(ctx context.Context) ([]File, error)
}

// Options bound what a source will return.
type Options struct {
	// MaxFileSize skips files larger than this many bytes (0 = no limit).
	MaxFileSize int64
}

// Resolver builds sources for repository locations.
type Resolver struct {
	cloneDir      string
	defaultBranch string
	opts          Options
}

// NewResolver creates a resolver. cloneDir is where git checkouts are
// materialized; defaultBranch is used when a repository has no branch set.
func NewResolver(cloneDir, defaultBranch string, opts Options) *Resolver {
	return &Resolver{
		cloneDir:      cloneDir,
		defaultBranch: defaultBranch,
		opts:          opts,
	}
}

// Resolve returns a Source for the given location and branch.
// Locations that exist on disk are walked directly; anything else is
// treated as a git URL.
func (r *Resolver) Resolve(location, branch string) (Source, error) {
	if branch == "" {
		branch = r.defaultBranch
	}

	if isLocalPath(location) {
		return NewLocalSource(strings.TrimPrefix(location, "file://"), r.opts), nil
	}
	return NewGitSource(location, branch, r.cloneDir, r.opts)
}

// isLocalPath reports whether location refers to a directory on disk.
func isLocalPath(location string) bool {
	if strings.HasPrefix(location, "file://") {
		return true
	}
	if strings.Contains(location, "://") || strings.HasPrefix(location, "git@") {
		return false
	}
	info, err := os.Stat(location)
	return err == nil && info.IsDir()
}

// unreachable wraps err as a fatal source-unreachable failure.
func unreachable(msg string, err error) error {
	return cserr.New(cserr.ErrCodeSourceUnreachable, msg, err)
}
