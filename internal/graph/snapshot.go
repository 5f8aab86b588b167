package graph

import (
	"encoding/json"
	"sort"
)

// Snapshot is the complete dependency graph of one commit.
//
// A Snapshot is an immutable value: it is produced whole by a Builder (or
// decoded from storage), is owned solely by the commit that produced it, and
// is never mutated afterward. Later commits supersede it with new snapshots.
// Exported slices are in canonical order (entities by ID, relations by
// (From, Kind, To)) and must be treated as read-only.
//
// Lookups and adjacency queries are backed by indexes built once at
// construction, so they are O(result) rather than O(graph).
type Snapshot struct {
	RepoID    string     `json:"repo_id"`
	CommitSHA string     `json:"commit_sha"`
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`

	// Indexes derived from the slices above.
	byID     map[string]int
	outgoing map[string][]int
	incoming map[string][]int
}

// Entity returns the entity with the given ID.
func (s *Snapshot) Entity(id string) (Entity, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Entity{}, false
	}
	return s.Entities[i], true
}

// Contains reports whether an entity with the given ID exists.
func (s *Snapshot) Contains(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Dependents returns the relations pointing at the given entity, i.e. the
// edges whose To is id. These are the reverse edges impact traversal walks.
func (s *Snapshot) Dependents(id string) []Relation {
	return s.relationsAt(s.incoming[id])
}

// Dependencies returns the relations originating from the given entity.
func (s *Snapshot) Dependencies(id string) []Relation {
	return s.relationsAt(s.outgoing[id])
}

func (s *Snapshot) relationsAt(idx []int) []Relation {
	if len(idx) == 0 {
		return nil
	}
	result := make([]Relation, 0, len(idx))
	for _, i := range idx {
		result = append(result, s.Relations[i])
	}
	return result
}

// ByKind returns all entities of the given kind, in canonical order.
func (s *Snapshot) ByKind(kind EntityKind) []Entity {
	var result []Entity
	for _, e := range s.Entities {
		if e.Kind == kind {
			result = append(result, e)
		}
	}
	return result
}

// ByLayer returns all entities in the given layer, in canonical order.
func (s *Snapshot) ByLayer(layer Layer) []Entity {
	var result []Entity
	for _, e := range s.Entities {
		if e.Layer == layer {
			result = append(result, e)
		}
	}
	return result
}

// Stats returns a summary of snapshot size.
func (s *Snapshot) Stats() map[string]int {
	stats := map[string]int{
		"entities":  len(s.Entities),
		"relations": len(s.Relations),
	}
	for _, e := range s.Entities {
		stats[string(e.Layer)]++
	}
	return stats
}

// UnmarshalJSON decodes a stored snapshot and rebuilds its indexes.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type alias Snapshot
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Snapshot(a)
	s.reindex()
	return nil
}

// reindex rebuilds the lookup and adjacency indexes from the canonical
// slices. Slices must already be sorted.
func (s *Snapshot) reindex() {
	s.byID = make(map[string]int, len(s.Entities))
	for i, e := range s.Entities {
		s.byID[e.ID] = i
	}
	s.outgoing = make(map[string][]int)
	s.incoming = make(map[string][]int)
	for i, r := range s.Relations {
		s.outgoing[r.From] = append(s.outgoing[r.From], i)
		s.incoming[r.To] = append(s.incoming[r.To], i)
	}
}

// sortEntities orders entities canonically by ID.
func sortEntities(entities []Entity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})
}

// sortRelations orders relations canonically by (From, Kind, To).
func sortRelations(relations []Relation) {
	sort.Slice(relations, func(i, j int) bool {
		a, b := relations[i], relations[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.To < b.To
	})
}
