package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// headDebounce is the quiet period after .git activity before HEAD is
// re-resolved. Git writes several files per commit.
const headDebounce = time.Second

// WatchHead monitors a repository's .git directory and invokes onCommit for
// every commit HEAD moves to. resolveHead returns the current HEAD commit
// SHA; the commit HEAD points at when watching starts never fires. Blocks
// until the context is cancelled.
func WatchHead(ctx context.Context, repoPath string, resolveHead func() (string, error), onCommit func(commitSHA string)) error {
	gitDir := filepath.Join(repoPath, ".git")
	if _, err := os.Stat(gitDir); err != nil {
		return fmt.Errorf("watching %s: %w", repoPath, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(gitDir); err != nil {
		return fmt.Errorf("watching %s: %w", gitDir, err)
	}
	// Branch tips move on commit without HEAD itself changing.
	headsDir := filepath.Join(gitDir, "refs", "heads")
	if _, err := os.Stat(headsDir); err == nil {
		if err := watcher.Add(headsDir); err != nil {
			return fmt.Errorf("watching %s: %w", headsDir, err)
		}
	}

	lastSHA, err := resolveHead()
	if err != nil {
		lastSHA = ""
	}

	debounce := time.NewTimer(headDebounce)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !headEvent(event.Name) {
				continue
			}
			debounce.Reset(headDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-debounce.C:
			sha, err := resolveHead()
			if err != nil || sha == "" || sha == lastSHA {
				continue
			}
			lastSHA = sha
			onCommit(sha)
		}
	}
}

// headEvent reports whether a .git path can indicate a HEAD movement. Git
// updates HEAD through a HEAD.lock rename, and branch commits land under
// refs/heads.
func headEvent(path string) bool {
	if strings.HasPrefix(filepath.Base(path), "HEAD") {
		return true
	}
	return strings.Contains(path, filepath.Join("refs", "heads"))
}
