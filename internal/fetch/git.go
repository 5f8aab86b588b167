// Package fetch materializes commit snapshots for analysis, either from a
// local git clone (any commit) or from a plain working tree.
package fetch

import (
	"context"
	"fmt"
	"sort"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/Benny93/cascade-go/internal/adapters"
	"github.com/Benny93/cascade-go/internal/analysis"
)

// GitFetcher reads the full file tree of a commit from a local clone.
type GitFetcher struct {
	RepoPath string
}

// NewGitFetcher creates a fetcher over a local clone.
func NewGitFetcher(repoPath string) *GitFetcher {
	return &GitFetcher{RepoPath: repoPath}
}

// FetchSnapshot resolves the commit and returns its supported source files,
// ordered by path. The revision may be a full SHA, a short SHA, or a ref
// name.
func (f *GitFetcher) FetchSnapshot(ctx context.Context, repoID, commitSHA string) ([]analysis.File, error) {
	repo, err := git.PlainOpen(f.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", f.RepoPath, err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(commitSHA))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", commitSHA, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", commitSHA, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", commitSHA, err)
	}

	var files []analysis.File
	err = tree.Files().ForEach(func(file *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !supported(file.Name) {
			return nil
		}
		content, err := file.Contents()
		if err != nil {
			return fmt.Errorf("reading %s: %w", file.Name, err)
		}
		files = append(files, analysis.File{Path: file.Name, Content: []byte(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// HeadSHA returns the commit SHA the repository's HEAD points at.
func HeadSHA(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}

// ResolveSHA resolves a revision (full SHA, short SHA, or ref name) to a
// full commit SHA.
func ResolveSHA(repoPath, rev string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", rev, err)
	}
	return hash.String(), nil
}

var registry = adapters.NewRegistry()

// supported reports whether any language adapter handles the file.
func supported(path string) bool {
	return registry.ForFile(path) != nil
}
