package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	ignore "github.com/sabhiram/go-gitignore"
)

// matcherCacheSize bounds the number of parsed .gitignore matchers kept
// across walks. Watch mode re-walks the same tree repeatedly, so parsed
// matchers are worth keeping.
const matcherCacheSize = 1000

// skippedDirs are always excluded regardless of gitignore rules.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	".idea":        true,
	".vscode":      true,
}

// LocalSource walks a directory on disk, honoring .gitignore files.
type LocalSource struct {
	root     string
	opts     Options
	matchers *lru.Cache[string, *ignore.GitIgnore]
}

// NewLocalSource creates a source over the directory at root.
func NewLocalSource(root string, opts Options) *LocalSource {
	// Cache creation only fails for a non-positive size.
	matchers, _ := lru.New[string, *ignore.GitIgnore](matcherCacheSize)
	return &LocalSource{root: root, opts: opts, matchers: matchers}
}

// Files walks the directory and returns its files ordered by path.
func (s *LocalSource) Files(ctx context.Context) ([]File, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, unreachable(fmt.Sprintf("invalid path %q", s.root), err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, unreachable(fmt.Sprintf("cannot access %q", s.root), err)
	}
	if !info.IsDir() {
		return nil, unreachable(fmt.Sprintf("%q is not a directory", s.root), nil)
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil // unreadable entry, skip
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if s.ignored(root, rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || d.Name() == ".gitignore" {
			return nil
		}
		if s.ignored(root, rel, false) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if s.opts.MaxFileSize > 0 && fi.Size() > s.opts.MaxFileSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		files = append(files, File{Path: rel, Content: content})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unreachable(fmt.Sprintf("failed to walk %q", s.root), err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ignored reports whether rel (slash-separated, relative to root) is
// excluded by a .gitignore in any of its ancestor directories.
func (s *LocalSource) ignored(root, rel string, isDir bool) bool {
	// Check root first, then each ancestor directory of rel.
	dirs := []string{""}
	parts := strings.Split(rel, "/")
	for i := 0; i < len(parts)-1; i++ {
		dirs = append(dirs, strings.Join(parts[:i+1], "/"))
	}

	for _, dir := range dirs {
		matcher := s.matcherFor(filepath.Join(root, filepath.FromSlash(dir)))
		if matcher == nil {
			continue
		}
		sub := strings.TrimPrefix(rel, dir)
		sub = strings.TrimPrefix(sub, "/")
		if matcher.MatchesPath(sub) {
			return true
		}
		if isDir && matcher.MatchesPath(sub+"/") {
			return true
		}
	}
	return false
}

// matcherFor returns the parsed .gitignore matcher for dir, or nil when
// the directory has none. Parsed matchers are cached.
func (s *LocalSource) matcherFor(dir string) *ignore.GitIgnore {
	if cached, ok := s.matchers.Get(dir); ok {
		return cached
	}

	matcher, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		matcher = nil // missing or unreadable gitignore means no rules
	}
	s.matchers.Add(dir, matcher)
	return matcher
}
