package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	giturls "github.com/whilp/git-urls"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

// GitSource materializes a remote repository under the clone directory and
// enumerates the tracked files of one branch.
type GitSource struct {
	url      string
	branch   string
	repoPath string
	opts     Options
}

// NewGitSource creates a git-backed source for url at branch.
func NewGitSource(url, branch, cloneDir string, opts Options) (*GitSource, error) {
	dirName, err := urlToDirectoryName(url)
	if err != nil {
		return nil, unreachable(fmt.Sprintf("invalid repository URL %q", url), err)
	}

	return &GitSource{
		url:      url,
		branch:   branch,
		repoPath: filepath.Join(cloneDir, dirName),
		opts:     opts,
	}, nil
}

// urlToDirectoryName converts a git URL into a stable checkout directory,
// e.g. git@github.com:user/repo.git -> github.com/user/repo.
func urlToDirectoryName(gitURL string) (string, error) {
	u, err := giturls.Parse(gitURL)
	if err != nil {
		return "", err
	}

	hostname := u.Hostname()
	if hostname == "" {
		hostname = u.Host
	}

	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	return filepath.Join(hostname, path), nil
}

// Files clones or refreshes the checkout, resolves the branch, and returns
// the branch tip's tracked files ordered by path.
func (s *GitSource) Files(ctx context.Context) ([]File, error) {
	repo, err := s.openOrClone(ctx)
	if err != nil {
		return nil, err
	}

	commit, err := s.resolveBranch(repo)
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, unreachable("failed to read commit tree", err)
	}

	var files []File
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.opts.MaxFileSize > 0 && f.Size > s.opts.MaxFileSize {
			return nil
		}
		if binary, err := f.IsBinary(); err != nil || binary {
			return nil
		}
		content, err := f.Contents()
		if err != nil {
			return nil // unreadable blob, skip
		}
		files = append(files, File{Path: f.Name, Content: []byte(content)})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unreachable("failed to enumerate repository files", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// openOrClone opens an existing checkout (refreshing it) or clones anew.
func (s *GitSource) openOrClone(ctx context.Context) (*git.Repository, error) {
	if _, err := os.Stat(s.repoPath); err == nil {
		repo, err := git.PlainOpen(s.repoPath)
		if err != nil {
			return nil, unreachable("failed to open existing checkout", err)
		}
		err = repo.FetchContext(ctx, &git.FetchOptions{})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return nil, unreachable(fmt.Sprintf("failed to fetch %s", s.url), err)
		}
		return repo, nil
	}

	repo, err := git.PlainCloneContext(ctx, s.repoPath, false, &git.CloneOptions{
		URL: s.url,
	})
	if err != nil {
		return nil, classifyCloneError(s.url, err)
	}
	return repo, nil
}

// resolveBranch resolves the branch to a commit, preferring the remote
// tracking ref so a stale local HEAD does not mask new commits.
func (s *GitSource) resolveBranch(repo *git.Repository) (*object.Commit, error) {
	for _, rev := range []plumbing.Revision{
		plumbing.Revision(plumbing.NewRemoteReferenceName("origin", s.branch)),
		plumbing.Revision(plumbing.NewBranchReferenceName(s.branch)),
		plumbing.Revision(s.branch),
	} {
		hash, err := repo.ResolveRevision(rev)
		if err != nil {
			continue
		}
		commit, err := repo.CommitObject(*hash)
		if err != nil {
			continue
		}
		return commit, nil
	}

	return nil, cserr.New(cserr.ErrCodeBranchNotFound,
		fmt.Sprintf("branch %q not found in %s", s.branch, s.url), nil)
}

// classifyCloneError distinguishes a missing branch from an unreachable
// source; both are fatal but surface differently in the status payload.
func classifyCloneError(url string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "couldn't find remote ref") ||
		strings.Contains(msg, "reference not found") {
		return cserr.New(cserr.ErrCodeBranchNotFound,
			fmt.Sprintf("branch not found in %s", url), err)
	}
	return unreachable(fmt.Sprintf("failed to clone %s", url), err)
}
