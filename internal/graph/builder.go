package graph

import (
	"sort"
	"strings"
)

// Builder assembles the merged entity/relation table of a commit into an
// immutable Snapshot.
//
// Assembly only: the Builder deduplicates, creates placeholder entities for
// relation endpoints no adapter produced, and freezes everything in
// canonical order. It performs no inference beyond what adapters extracted.
// A Builder is single-use; after Build it must not be reused, and the
// returned Snapshot is complete: a partially built graph is never exposed.
type Builder struct {
	repoID    string
	commitSHA string
	entities  map[string]Entity
	relations map[Relation]struct{}
}

// NewBuilder creates a Builder for the given commit.
func NewBuilder(repoID, commitSHA string) *Builder {
	return &Builder{
		repoID:    repoID,
		commitSHA: commitSHA,
		entities:  make(map[string]Entity),
		relations: make(map[Relation]struct{}),
	}
}

// AddEntity adds an entity, replacing any previous entity with the same ID.
// Cross-file duplicate resolution happens upstream in the parse merge; by
// the time entities reach the Builder each ID appears once.
func (b *Builder) AddEntity(e Entity) {
	b.entities[e.ID] = e
}

// AddRelation adds a relation. Identical edges collapse into one.
func (b *Builder) AddRelation(r Relation) {
	if r.From == "" || r.To == "" {
		return
	}
	b.relations[r] = struct{}{}
}

// Build freezes the assembled table into a Snapshot. Relation endpoints
// that reference no known entity become placeholder entities of
// KindExternal, with kind-appropriate layer inferred from the relation that
// referenced them.
func (b *Builder) Build() *Snapshot {
	for r := range b.relations {
		if _, ok := b.entities[r.From]; !ok {
			b.entities[r.From] = placeholderFor(r.From, r.Kind, false)
		}
		if _, ok := b.entities[r.To]; !ok {
			b.entities[r.To] = placeholderFor(r.To, r.Kind, true)
		}
	}

	entities := make([]Entity, 0, len(b.entities))
	for _, e := range b.entities {
		entities = append(entities, e)
	}
	sortEntities(entities)

	relations := make([]Relation, 0, len(b.relations))
	for r := range b.relations {
		relations = append(relations, r)
	}
	sortRelations(relations)

	s := &Snapshot{
		RepoID:    b.repoID,
		CommitSHA: b.commitSHA,
		Entities:  entities,
		Relations: relations,
	}
	s.reindex()
	return s
}

// placeholderFor creates the external placeholder entity for a dangling
// relation endpoint. The relation kind and side determine what the missing
// entity must have been.
func placeholderFor(id string, kind RelationKind, isTarget bool) Entity {
	e := Entity{
		ID:    id,
		Kind:  KindExternal,
		Layer: LayerBackend,
		Name:  shortName(id),
	}

	switch {
	case kind == RelInvokesEndpoint && isTarget,
		kind == RelImplementsEndpoint && !isTarget:
		e.Layer = LayerAPI
		if method, route, ok := strings.Cut(id, " "); ok {
			e.HTTPMethod = method
			e.Route = route
			e.Name = route
		}
	case kind == RelInvokesEndpoint && !isTarget:
		e.Layer = LayerUI
		e.Name = id
	}
	return e
}

// shortName returns the unqualified tail of a dotted qualified name.
func shortName(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 && i < len(id)-1 {
		return id[i+1:]
	}
	return id
}

// sortedIDs returns the IDs of the given entities in ascending order.
// Helper for deterministic reporting of placeholder and stub sets.
func sortedIDs(entities []Entity) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}

// PlaceholderIDs returns the IDs of all external placeholder entities in a
// snapshot, in ascending order.
func PlaceholderIDs(s *Snapshot) []string {
	return sortedIDs(s.ByKind(KindExternal))
}
