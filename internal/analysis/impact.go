package analysis

import (
	"sort"

	"github.com/Benny93/cascade-go/internal/graph"
)

// ComputeImpact walks reverse dependencies outward from the entities named
// by the atomic changes. Direct holds the 1-hop dependents, Transitive the
// breadth-first closure; both exclude the seeds themselves. A visited set
// keyed by entity ID bounds every node to a single visit, so cyclic graphs
// terminate. Deleted seeds that are still referenced resolve through the
// placeholder entity carrying the same ID, which is how dependents of
// deleted code are found.
func ComputeImpact(snap *graph.Snapshot, changes []AtomicChange) *ImpactRecord {
	seedSet := make(map[string]bool, len(changes))
	for _, c := range changes {
		seedSet[c.EntityID] = true
	}
	seeds := make([]string, 0, len(seedSet))
	for id := range seedSet {
		seeds = append(seeds, id)
	}
	sort.Strings(seeds)

	visited := make(map[string]bool, len(seedSet))
	for id := range seedSet {
		visited[id] = true
	}

	direct := []string{}
	transitive := []string{}
	frontier := seeds
	for hop := 0; len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, rel := range snap.Dependents(id) {
				if visited[rel.From] {
					continue
				}
				visited[rel.From] = true
				next = append(next, rel.From)
			}
		}
		if hop == 0 {
			direct = append(direct, next...)
		}
		transitive = append(transitive, next...)
		frontier = next
	}

	sort.Strings(direct)
	sort.Strings(transitive)

	byLayer := make(map[graph.Layer][]string)
	for _, id := range transitive {
		if e, ok := snap.Entity(id); ok {
			byLayer[e.Layer] = append(byLayer[e.Layer], id)
		}
	}

	return &ImpactRecord{
		CommitSHA:  snap.CommitSHA,
		Changed:    seeds,
		Direct:     direct,
		Transitive: transitive,
		ByLayer:    byLayer,
	}
}
