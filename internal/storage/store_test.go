package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/cascade-go/internal/analysis"
	"github.com/Benny93/cascade-go/internal/graph"
)

func setupTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()

	store := NewBadgerStore()
	err := store.Initialize(filepath.Join(t.TempDir(), "store"), false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func sampleSnapshot(repoID, commitSHA string, methodBody string) *graph.Snapshot {
	b := graph.NewBuilder(repoID, commitSHA)
	classID := graph.ClassID("com.acme", "Owner")
	b.AddEntity(graph.Entity{
		ID: classID, Kind: graph.KindClass, Layer: graph.LayerBackend,
		Name: "Owner", FilePath: "src/Owner.java",
	})
	b.AddEntity(graph.Entity{
		ID: graph.MethodID(classID, "name"), Kind: graph.KindMethod, Layer: graph.LayerBackend,
		Name: "name", FilePath: "src/Owner.java", Parent: classID, Signature: methodBody,
	})
	b.AddRelation(graph.Relation{From: graph.MethodID(classID, "name"), To: "com.acme.Vet.visit", Kind: graph.RelCalls})
	return b.Build()
}

func sampleRecord(repoID, commitSHA string, startedAt time.Time) *analysis.Record {
	return &analysis.Record{
		RepoID:    repoID,
		CommitSHA: commitSHA,
		Status:    analysis.StatusCompleted,
		AtomicChanges: []analysis.AtomicChange{{
			Kind:     analysis.ChangeMethodAdded,
			EntityID: "com.acme.Owner.name",
			FilePath: "src/Owner.java",
			Detail:   "Method 'name' was added.",
		}},
		Warnings:   []analysis.Warning{},
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Second),
	}
}

// testStoreContract exercises behavior both implementations must share.
func testStoreContract(t *testing.T, store Store) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("AbsentReadsReturnNil", func(t *testing.T) {
		snap, err := store.GraphAt("petclinic", "nope")
		require.NoError(t, err)
		assert.Nil(t, snap)

		rec, err := store.ReadAnalysisResult("petclinic", "nope")
		require.NoError(t, err)
		assert.Nil(t, rec)

		prev, err := store.PreviousGraph("petclinic")
		require.NoError(t, err)
		assert.Nil(t, prev)

		sha, err := store.LatestSHA("petclinic")
		require.NoError(t, err)
		assert.Empty(t, sha)
	})

	t.Run("SnapshotRoundTrip", func(t *testing.T) {
		require.NoError(t, store.WriteGraphSnapshot(sampleSnapshot("petclinic", "c1", "v1")))

		snap, err := store.GraphAt("petclinic", "c1")
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, "c1", snap.CommitSHA)

		// Lookup indexes must survive the round trip.
		entity, ok := snap.Entity("com.acme.Owner.name")
		require.True(t, ok)
		assert.Equal(t, "name", entity.Name)
		assert.Len(t, snap.Dependents("com.acme.Vet.visit"), 1)
	})

	t.Run("SnapshotWriteOnce", func(t *testing.T) {
		err := store.WriteGraphSnapshot(sampleSnapshot("petclinic", "c1", "v2"))
		assert.ErrorIs(t, err, analysis.ErrResultFinalized)

		snap, err := store.GraphAt("petclinic", "c1")
		require.NoError(t, err)
		entity, _ := snap.Entity("com.acme.Owner.name")
		assert.Equal(t, "v1", entity.Signature)
	})

	t.Run("SnapshotAloneDoesNotAdvanceLatest", func(t *testing.T) {
		sha, err := store.LatestSHA("petclinic")
		require.NoError(t, err)
		assert.Empty(t, sha)
	})

	t.Run("RecordWriteAdvancesLatest", func(t *testing.T) {
		require.NoError(t, store.WriteAnalysisResult(sampleRecord("petclinic", "c1", started)))

		sha, err := store.LatestSHA("petclinic")
		require.NoError(t, err)
		assert.Equal(t, "c1", sha)

		prev, err := store.PreviousGraph("petclinic")
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.Equal(t, "c1", prev.CommitSHA)
	})

	t.Run("RecordWriteOnce", func(t *testing.T) {
		require.NoError(t, store.WriteGraphSnapshot(sampleSnapshot("petclinic", "c2", "v2")))
		require.NoError(t, store.WriteAnalysisResult(sampleRecord("petclinic", "c2", started.Add(time.Hour))))

		err := store.WriteAnalysisResult(sampleRecord("petclinic", "c1", started.Add(2*time.Hour)))
		assert.ErrorIs(t, err, analysis.ErrResultFinalized)

		// The losing write must not move the pointer back.
		sha, err := store.LatestSHA("petclinic")
		require.NoError(t, err)
		assert.Equal(t, "c2", sha)
	})

	t.Run("ListAnalysesOldestFirst", func(t *testing.T) {
		require.NoError(t, store.WriteAnalysisResult(sampleRecord("other-repo", "z9", started.Add(-time.Hour))))

		records, err := store.ListAnalyses("petclinic")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "c1", records[0].CommitSHA)
		assert.Equal(t, "c2", records[1].CommitSHA)
	})

	t.Run("AppendAugmentation", func(t *testing.T) {
		aug := analysis.Augmentation{AISummary: "Renamed the owner accessor.", AISuggestedTest: "OwnerTest#name"}
		require.NoError(t, store.AppendAugmentation("petclinic", "c1", aug))

		rec, err := store.ReadAnalysisResult("petclinic", "c1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed the owner accessor.", rec.AISummary)
		assert.Equal(t, "OwnerTest#name", rec.AISuggestedTest)
	})

	t.Run("AugmentTwiceRejected", func(t *testing.T) {
		err := store.AppendAugmentation("petclinic", "c1", analysis.Augmentation{AISummary: "again"})
		assert.ErrorIs(t, err, ErrAlreadyAugmented)
	})

	t.Run("AugmentMissingRecordRejected", func(t *testing.T) {
		err := store.AppendAugmentation("petclinic", "nope", analysis.Augmentation{AISummary: "x"})
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("EmptyAugmentationRejected", func(t *testing.T) {
		err := store.AppendAugmentation("petclinic", "c2", analysis.Augmentation{})
		assert.Error(t, err)
	})
}

func TestBadgerStore(t *testing.T) {
	t.Parallel()
	testStoreContract(t, setupTestBadgerStore(t))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	testStoreContract(t, NewMemoryStore())
}

func TestBadgerStore_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("ReadOnly", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "store")

		store := NewBadgerStore()
		require.NoError(t, store.Initialize(dbPath, false))
		require.NoError(t, store.WriteGraphSnapshot(sampleSnapshot("petclinic", "c1", "v1")))
		require.NoError(t, store.Close())

		reopened := NewBadgerStore()
		require.NoError(t, reopened.Initialize(dbPath, true))
		defer reopened.Close()

		snap, err := reopened.GraphAt("petclinic", "c1")
		require.NoError(t, err)
		assert.NotNil(t, snap)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		store := NewBadgerStore()
		assert.Error(t, store.Initialize("/nonexistent/path/that/does/not/exist", false))
	})
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "store")
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewBadgerStore()
	require.NoError(t, store.Initialize(dbPath, false))
	require.NoError(t, store.WriteGraphSnapshot(sampleSnapshot("petclinic", "c1", "v1")))
	require.NoError(t, store.WriteAnalysisResult(sampleRecord("petclinic", "c1", started)))
	require.NoError(t, store.Close())

	reopened := NewBadgerStore()
	require.NoError(t, reopened.Initialize(dbPath, false))
	defer reopened.Close()

	rec, err := reopened.ReadAnalysisResult("petclinic", "c1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, analysis.StatusCompleted, rec.Status)

	sha, err := reopened.LatestSHA("petclinic")
	require.NoError(t, err)
	assert.Equal(t, "c1", sha)

	err = reopened.WriteAnalysisResult(sampleRecord("petclinic", "c1", started))
	assert.ErrorIs(t, err, analysis.ErrResultFinalized)
}
