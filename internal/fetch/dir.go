package fetch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/cascade-go/internal/analysis"
)

// defaultIgnorePatterns are always excluded, in addition to anything the
// repository's own .gitignore excludes.
var defaultIgnorePatterns = []string{
	".git/",
	".cascade/",
	"node_modules/",
	"target/",
	"build/",
	"dist/",
	"out/",
	"coverage/",
	".gradle/",
	".idea/",
	".vscode/",
	".DS_Store",
}

// DirFetcher reads a working tree as a snapshot. The commit SHA only keys
// the snapshot; content comes from the directory as it is on disk.
type DirFetcher struct {
	Root string
}

// NewDirFetcher creates a fetcher over a working tree.
func NewDirFetcher(root string) *DirFetcher {
	return &DirFetcher{Root: root}
}

// FetchSnapshot walks the tree and returns its supported source files,
// ordered by path. Directories matched by the ignore patterns are skipped
// without descending.
func (f *DirFetcher) FetchSnapshot(ctx context.Context, repoID, commitSHA string) ([]analysis.File, error) {
	patterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns))
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	patterns = append(patterns, loadGitignore(f.Root)...)
	matcher := gitignore.NewMatcher(patterns)

	var files []analysis.File
	err := filepath.WalkDir(f.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(f.Root, path)
		if err != nil || rel == "." {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || matcher.Match(splitPath(rel), true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !supported(path) || matcher.Match(splitPath(rel), false) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, analysis.File{Path: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// loadGitignore parses the repository root .gitignore if present.
func loadGitignore(root string) []gitignore.Pattern {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns
}

func splitPath(path string) []string {
	return strings.Split(filepath.ToSlash(path), "/")
}
