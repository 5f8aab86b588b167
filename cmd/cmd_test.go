package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerJava = `package com.acme;

import com.acme.Vet;

public class Owner {
    private Vet vet;

    public String name() {
        return vet.visit();
    }
}
`

func vetJava(body string) string {
	return `package com.acme;

public class Vet {
    public String visit() {
        return "` + body + `";
    }
}
`
}

func commitFiles(t *testing.T, repo *git.Repository, root string, files map[string]string, message string) string {
	t.Helper()

	for path, content := range files {
		fullPath := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}

	worktree, err := repo.Worktree()
	require.NoError(t, err)
	for path := range files {
		_, err = worktree.Add(path)
		require.NoError(t, err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

// initJavaRepo creates a git repository with one commit of two Java classes.
func initJavaRepo(t *testing.T) (string, *git.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	sha := commitFiles(t, repo, dir, map[string]string{
		"src/main/java/com/acme/Owner.java": ownerJava,
		"src/main/java/com/acme/Vet.java":   vetJava("a"),
	}, "initial")
	return dir, repo, sha
}

func TestRunCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("AnalyzeGitRepo", func(t *testing.T) {
		dir, _, sha := initJavaRepo(t)

		cmd := &RunCmd{Repo: dir}
		err := cmd.Run(&CLI{Quiet: true})
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(dir, ".cascade"))
		assert.NoError(t, err)

		meta, err := readMeta(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Base(dir), meta["name"])
		assert.Equal(t, sha, meta["last_commit"])
		assert.Equal(t, float64(1), meta["analyses"])
	})

	t.Run("SecondCommitDiffsAgainstFirst", func(t *testing.T) {
		dir, repo, _ := initJavaRepo(t)

		err := (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true})
		require.NoError(t, err)

		second := commitFiles(t, repo, dir, map[string]string{
			"src/main/java/com/acme/Vet.java": vetJava("b"),
		}, "change visit")

		err = (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true})
		require.NoError(t, err)

		store, err := openStore(dir, true)
		require.NoError(t, err)
		defer store.Close()

		rec, err := store.ReadAnalysisResult(filepath.Base(dir), second)
		require.NoError(t, err)
		require.NotNil(t, rec)
		require.Len(t, rec.AtomicChanges, 1)
		assert.Equal(t, "com.acme.Vet.visit", rec.AtomicChanges[0].EntityID)
		require.NotNil(t, rec.Impact)
		assert.Equal(t, []string{"com.acme.Owner.name"}, rec.Impact.Direct)
	})

	t.Run("ExplicitCommitArgument", func(t *testing.T) {
		dir, _, sha := initJavaRepo(t)

		cmd := &RunCmd{Repo: dir, Commit: sha[:8]}
		err := cmd.Run(&CLI{Quiet: true})
		require.NoError(t, err)

		meta, err := readMeta(dir)
		require.NoError(t, err)
		assert.Equal(t, sha, meta["last_commit"])
	})

	t.Run("WorktreeMode", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "src", "Vet.java")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(vetJava("a")), 0o644))

		cmd := &RunCmd{Repo: dir, Worktree: true}
		err := cmd.Run(&CLI{Quiet: true})
		require.NoError(t, err)

		meta, err := readMeta(dir)
		require.NoError(t, err)
		assert.Contains(t, meta["last_commit"], "worktree-")
	})

	t.Run("InvalidPath", func(t *testing.T) {
		cmd := &RunCmd{Repo: "/nonexistent/path"}
		err := cmd.Run(&CLI{Quiet: true})
		assert.Error(t, err)
	})

	t.Run("NotADirectory", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		cmd := &RunCmd{Repo: tmpFile}
		err := cmd.Run(&CLI{Quiet: true})
		assert.Error(t, err)
	})

	t.Run("NotAGitRepo", func(t *testing.T) {
		cmd := &RunCmd{Repo: t.TempDir()}
		err := cmd.Run(&CLI{Quiet: true})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "resolving commit")
	})

	t.Run("TimeoutAborts", func(t *testing.T) {
		dir, _, _ := initJavaRepo(t)

		cmd := &RunCmd{Repo: dir, Timeout: time.Nanosecond}
		err := cmd.Run(&CLI{Quiet: true})
		assert.Error(t, err)
	})
}

func TestResultCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("NoStore", func(t *testing.T) {
		cmd := &ResultCmd{Repo: t.TempDir()}
		err := cmd.Run()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no analysis store found")
	})

	t.Run("ShowsLatestRecord", func(t *testing.T) {
		dir, _, sha := initJavaRepo(t)
		require.NoError(t, (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true}))

		assert.NoError(t, (&ResultCmd{Repo: dir}).Run())
		assert.NoError(t, (&ResultCmd{Repo: dir, Commit: sha}).Run())
		assert.NoError(t, (&ResultCmd{Repo: dir, JSON: true}).Run())
		assert.NoError(t, (&ResultCmd{Repo: dir, List: true}).Run())
	})

	t.Run("UnknownCommit", func(t *testing.T) {
		dir, _, _ := initJavaRepo(t)
		require.NoError(t, (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true}))

		err := (&ResultCmd{Repo: dir, Commit: "does-not-exist"}).Run()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no analysis recorded")
	})
}

func TestGraphCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("NoStore", func(t *testing.T) {
		cmd := &GraphCmd{Repo: t.TempDir()}
		err := cmd.Run()
		assert.Error(t, err)
	})

	t.Run("ShowsStatsAndEntities", func(t *testing.T) {
		dir, _, sha := initJavaRepo(t)
		require.NoError(t, (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true}))

		assert.NoError(t, (&GraphCmd{Repo: dir}).Run())
		assert.NoError(t, (&GraphCmd{Repo: dir, Commit: sha}).Run())
		assert.NoError(t, (&GraphCmd{Repo: dir, ID: "com.acme.Vet.visit"}).Run())
		assert.NoError(t, (&GraphCmd{Repo: dir, JSON: true}).Run())
	})
}

func TestStatusCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("NoMeta", func(t *testing.T) {
		cmd := &StatusCmd{Repo: t.TempDir()}
		err := cmd.Run()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no analysis found")
	})

	t.Run("AfterRun", func(t *testing.T) {
		dir, _, _ := initJavaRepo(t)
		require.NoError(t, (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true}))

		assert.NoError(t, (&StatusCmd{Repo: dir}).Run())
	})

	t.Run("CommitStatus", func(t *testing.T) {
		dir, _, sha := initJavaRepo(t)
		require.NoError(t, (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true}))

		assert.NoError(t, (&StatusCmd{Repo: dir, Commit: sha}).Run())

		err := (&StatusCmd{Repo: dir, Commit: "does-not-exist"}).Run()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no analysis recorded")
	})
}

func TestAugmentCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("AttachesSummary", func(t *testing.T) {
		dir, _, sha := initJavaRepo(t)
		require.NoError(t, (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true}))

		cmd := &AugmentCmd{
			Repo:    dir,
			Commit:  sha,
			Summary: "Initial import of the owner and vet classes.",
			Test:    "assert Owner.name() returns the vet's response",
		}
		require.NoError(t, cmd.Run())

		store, err := openStore(dir, true)
		require.NoError(t, err)
		defer store.Close()

		rec, err := store.ReadAnalysisResult(filepath.Base(dir), sha)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "Initial import of the owner and vet classes.", rec.AISummary)
	})

	t.Run("SecondAugmentRejected", func(t *testing.T) {
		dir, _, sha := initJavaRepo(t)
		require.NoError(t, (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true}))

		first := &AugmentCmd{Repo: dir, Commit: sha, Summary: "first"}
		require.NoError(t, first.Run())

		second := &AugmentCmd{Repo: dir, Commit: sha, Summary: "second"}
		err := second.Run()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already augmented")
	})

	t.Run("UnknownCommit", func(t *testing.T) {
		dir, _, _ := initJavaRepo(t)
		require.NoError(t, (&RunCmd{Repo: dir}).Run(&CLI{Quiet: true}))

		cmd := &AugmentCmd{Repo: dir, Commit: "does-not-exist", Summary: "s"}
		err := cmd.Run()
		assert.Error(t, err)
	})
}

func TestCleanCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("NoStore", func(t *testing.T) {
		cmd := &CleanCmd{Repo: t.TempDir(), Force: true}
		err := cmd.Run()
		assert.Error(t, err)
	})

	t.Run("DeletesStore", func(t *testing.T) {
		dir := t.TempDir()
		cascadeDir := filepath.Join(dir, ".cascade")
		require.NoError(t, os.MkdirAll(cascadeDir, 0o755))

		cmd := &CleanCmd{Repo: dir, Force: true}
		err := cmd.Run()
		assert.NoError(t, err)

		_, err = os.Stat(cascadeDir)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestStoreHelpers(t *testing.T) {
	t.Parallel()

	t.Run("OpenStoreReadOnlyMissing", func(t *testing.T) {
		store, err := openStore(t.TempDir(), true)
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("OpenStoreCreatesDirectory", func(t *testing.T) {
		dir := t.TempDir()

		store, err := openStore(dir, false)
		require.NoError(t, err)
		require.NoError(t, store.Close())

		_, err = os.Stat(filepath.Join(dir, ".cascade", "store"))
		assert.NoError(t, err)

		reopened, err := openStore(dir, true)
		require.NoError(t, err)
		require.NoError(t, reopened.Close())
	})

	t.Run("ShortSHA", func(t *testing.T) {
		full := "0123456789abcdef0123456789abcdef01234567"
		assert.Equal(t, "0123456789ab", shortSHA(full))
		assert.Equal(t, "HEAD", shortSHA("HEAD"))
		assert.Equal(t, "worktree-20260101T000000Z", shortSHA("worktree-20260101T000000Z"))
	})

	t.Run("RepoDisplayName", func(t *testing.T) {
		dir := t.TempDir()
		assert.Equal(t, filepath.Base(dir), repoDisplayName(dir, ""))
		assert.Equal(t, "override", repoDisplayName(dir, "override"))

		require.NoError(t, os.MkdirAll(filepath.Join(dir, ".cascade"), 0o755))
		meta := []byte(`{"name": "petclinic"}`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".cascade", "meta.json"), meta, 0o644))
		assert.Equal(t, "petclinic", repoDisplayName(dir, ""))
	})
}
