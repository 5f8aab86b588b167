package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/cascade-go/internal/graph"
)

func buildSnap(t *testing.T, entities []graph.Entity, relations []graph.Relation) *graph.Snapshot {
	t.Helper()
	b := graph.NewBuilder("petclinic", "c1")
	for _, e := range entities {
		b.AddEntity(e)
	}
	for _, r := range relations {
		b.AddRelation(r)
	}
	return b.Build()
}

func TestComputeImpact(t *testing.T) {
	t.Parallel()

	t.Run("DirectCaller", func(t *testing.T) {
		snap := buildSnap(t,
			[]graph.Entity{
				classEntity("com.acme.A", "src/A.java"),
				methodEntity("com.acme.A", "run", "src/A.java", "a1"),
				classEntity("com.acme.B", "src/B.java"),
				methodEntity("com.acme.B", "method", "src/B.java", "b1"),
			},
			[]graph.Relation{
				{From: "com.acme.A", To: "com.acme.B", Kind: graph.RelImports},
				{From: "com.acme.A.run", To: "com.acme.B.method", Kind: graph.RelCalls},
			})
		changes := []AtomicChange{{Kind: ChangeMethodChanged, EntityID: "com.acme.B.method"}}

		impact := ComputeImpact(snap, changes)
		assert.Equal(t, []string{"com.acme.B.method"}, impact.Changed)
		assert.Equal(t, []string{"com.acme.A.run"}, impact.Direct)
		assert.Equal(t, []string{"com.acme.A.run"}, impact.Transitive)
	})

	t.Run("NoDependents", func(t *testing.T) {
		snap := buildSnap(t, []graph.Entity{classEntity("com.acme.A", "src/A.java")}, nil)
		changes := []AtomicChange{{Kind: ChangeClassDeleted, EntityID: "com.acme.C"}}

		impact := ComputeImpact(snap, changes)
		assert.Equal(t, []string{"com.acme.C"}, impact.Changed)
		assert.Empty(t, impact.Direct)
		assert.Empty(t, impact.Transitive)
		assert.Empty(t, impact.ByLayer)
	})

	t.Run("CrossLayer", func(t *testing.T) {
		snap := buildSnap(t,
			[]graph.Entity{
				classEntity("com.acme.Ctrl", "src/Ctrl.java"),
				methodEntity("com.acme.Ctrl", "foo", "src/Ctrl.java", "f1"),
				{ID: "GET /foo", Kind: graph.KindEndpoint, Layer: graph.LayerAPI, Name: "GET /foo", FilePath: "src/Ctrl.java", HTTPMethod: "GET", Route: "/foo"},
				{ID: "X", Kind: graph.KindComponent, Layer: graph.LayerUI, Name: "X", FilePath: "web/X.tsx"},
			},
			[]graph.Relation{
				{From: "GET /foo", To: "com.acme.Ctrl.foo", Kind: graph.RelImplementsEndpoint},
				{From: "X", To: "GET /foo", Kind: graph.RelInvokesEndpoint},
			})
		changes := []AtomicChange{{Kind: ChangeMethodChanged, EntityID: "com.acme.Ctrl.foo"}}

		impact := ComputeImpact(snap, changes)
		assert.Contains(t, impact.Changed, "com.acme.Ctrl.foo")
		assert.Equal(t, []string{"GET /foo"}, impact.Direct)
		assert.Contains(t, impact.ByLayer[graph.LayerAPI], "GET /foo")
		assert.Contains(t, impact.ByLayer[graph.LayerUI], "X")
	})

	t.Run("CycleTerminates", func(t *testing.T) {
		snap := buildSnap(t,
			[]graph.Entity{
				methodEntity("a.A", "f", "src/A.java", "1"),
				methodEntity("a.B", "f", "src/B.java", "2"),
				methodEntity("a.C", "f", "src/C.java", "3"),
			},
			[]graph.Relation{
				{From: "a.A.f", To: "a.B.f", Kind: graph.RelCalls},
				{From: "a.B.f", To: "a.C.f", Kind: graph.RelCalls},
				{From: "a.C.f", To: "a.A.f", Kind: graph.RelCalls},
			})
		changes := []AtomicChange{{Kind: ChangeMethodChanged, EntityID: "a.A.f"}}

		impact := ComputeImpact(snap, changes)
		assert.Equal(t, []string{"a.C.f"}, impact.Direct)
		assert.Equal(t, []string{"a.B.f", "a.C.f"}, impact.Transitive)
	})

	t.Run("SeedsExcludedFromDependents", func(t *testing.T) {
		snap := buildSnap(t,
			[]graph.Entity{
				methodEntity("a.A", "f", "src/A.java", "1"),
				methodEntity("a.B", "g", "src/B.java", "2"),
			},
			[]graph.Relation{{From: "a.A.f", To: "a.B.g", Kind: graph.RelCalls}})
		changes := []AtomicChange{
			{Kind: ChangeMethodChanged, EntityID: "a.A.f"},
			{Kind: ChangeMethodChanged, EntityID: "a.B.g"},
		}

		impact := ComputeImpact(snap, changes)
		assert.Equal(t, []string{"a.A.f", "a.B.g"}, impact.Changed)
		assert.Empty(t, impact.Direct)
		assert.Empty(t, impact.Transitive)
	})

	t.Run("DeletedSeedResolvesThroughPlaceholder", func(t *testing.T) {
		snap := buildSnap(t,
			[]graph.Entity{
				classEntity("com.acme.A", "src/A.java"),
				methodEntity("com.acme.A", "run", "src/A.java", "a1"),
			},
			[]graph.Relation{{From: "com.acme.A.run", To: "com.acme.B.method", Kind: graph.RelCalls}})
		changes := []AtomicChange{{Kind: ChangeMethodDeleted, EntityID: "com.acme.B.method"}}

		impact := ComputeImpact(snap, changes)
		assert.Equal(t, []string{"com.acme.A.run"}, impact.Direct)
	})

	t.Run("ContainmentAndPartition", func(t *testing.T) {
		snap := buildSnap(t,
			[]graph.Entity{
				classEntity("com.acme.Repo", "src/Repo.java"),
				methodEntity("com.acme.Repo", "save", "src/Repo.java", "r1"),
				classEntity("com.acme.Svc", "src/Svc.java"),
				methodEntity("com.acme.Svc", "create", "src/Svc.java", "s1"),
				classEntity("com.acme.Ctrl", "src/Ctrl.java"),
				methodEntity("com.acme.Ctrl", "post", "src/Ctrl.java", "c1"),
				{ID: "POST /owners", Kind: graph.KindEndpoint, Layer: graph.LayerAPI, Name: "POST /owners", HTTPMethod: "POST", Route: "/owners"},
				{ID: "OwnerForm", Kind: graph.KindComponent, Layer: graph.LayerUI, Name: "OwnerForm", FilePath: "web/OwnerForm.tsx"},
			},
			[]graph.Relation{
				{From: "com.acme.Svc.create", To: "com.acme.Repo.save", Kind: graph.RelCalls},
				{From: "com.acme.Ctrl.post", To: "com.acme.Svc.create", Kind: graph.RelCalls},
				{From: "POST /owners", To: "com.acme.Ctrl.post", Kind: graph.RelImplementsEndpoint},
				{From: "OwnerForm", To: "POST /owners", Kind: graph.RelInvokesEndpoint},
			})
		changes := []AtomicChange{{Kind: ChangeMethodChanged, EntityID: "com.acme.Repo.save"}}

		impact := ComputeImpact(snap, changes)
		assert.Subset(t, impact.Transitive, impact.Direct)
		for _, id := range impact.Transitive {
			_, ok := snap.Entity(id)
			assert.True(t, ok, "transitive entity %s missing from snapshot", id)
		}
		partitioned := 0
		for _, ids := range impact.ByLayer {
			partitioned += len(ids)
		}
		assert.Equal(t, len(impact.Transitive), partitioned)
		assert.Equal(t, []string{"com.acme.Svc.create"}, impact.Direct)
		assert.Contains(t, impact.ByLayer[graph.LayerUI], "OwnerForm")
	})

	t.Run("NewEdgeNeverShrinksImpact", func(t *testing.T) {
		entities := []graph.Entity{
			methodEntity("a.A", "f", "src/A.java", "1"),
			methodEntity("a.B", "g", "src/B.java", "2"),
			methodEntity("a.D", "h", "src/D.java", "3"),
		}
		relations := []graph.Relation{{From: "a.A.f", To: "a.B.g", Kind: graph.RelCalls}}
		changes := []AtomicChange{{Kind: ChangeMethodChanged, EntityID: "a.B.g"}}

		before := ComputeImpact(buildSnap(t, entities, relations), changes)
		withEdge := append(relations, graph.Relation{From: "a.D.h", To: "a.B.g", Kind: graph.RelCalls})
		after := ComputeImpact(buildSnap(t, entities, withEdge), changes)

		assert.Subset(t, after.Transitive, before.Transitive)
		assert.Greater(t, len(after.Transitive), len(before.Transitive))
	})

	t.Run("RecomputedFresh", func(t *testing.T) {
		snap := buildSnap(t,
			[]graph.Entity{
				methodEntity("a.A", "f", "src/A.java", "1"),
				methodEntity("a.B", "g", "src/B.java", "2"),
			},
			[]graph.Relation{{From: "a.A.f", To: "a.B.g", Kind: graph.RelCalls}})
		changes := []AtomicChange{{Kind: ChangeMethodChanged, EntityID: "a.B.g"}}

		first := ComputeImpact(snap, changes)
		second := ComputeImpact(snap, changes)
		require.Equal(t, first, second)
	})
}
