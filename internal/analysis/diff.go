package analysis

import (
	"fmt"
	"sort"

	"github.com/Benny93/cascade-go/internal/graph"
)

// Diff classifies method-level changes between the previous commit's entity
// table and the current one. A method present only in current is AM; present
// in both with a differing signature hash is CM; present only in previous is
// DM, unless its class was deleted outright, in which case the class gets a
// single DC and the per-method DMs are suppressed. Renames surface as
// delete+add. Placeholder and stub entities never diff. Output is ordered by
// (FilePath, EntityID); identical tables produce an empty list.
func Diff(previous, current []graph.Entity) []AtomicChange {
	prevMethods, prevClasses := diffIndex(previous)
	currMethods, currClasses := diffIndex(current)

	var changes []AtomicChange

	deletedClasses := make(map[string]bool)
	for id, class := range prevClasses {
		if _, ok := currClasses[id]; ok {
			continue
		}
		deletedClasses[id] = true
		changes = append(changes, AtomicChange{
			Kind:     ChangeClassDeleted,
			EntityID: id,
			FilePath: class.FilePath,
			Detail:   fmt.Sprintf("Class '%s' was deleted.", class.Name),
			Line:     class.StartLine,
		})
	}

	for id, method := range currMethods {
		prev, ok := prevMethods[id]
		if !ok {
			changes = append(changes, AtomicChange{
				Kind:     ChangeMethodAdded,
				EntityID: id,
				FilePath: method.FilePath,
				Parent:   method.Parent,
				Method:   method.Name,
				Detail:   fmt.Sprintf("Method '%s' was added.", method.Name),
				Line:     method.StartLine,
			})
			continue
		}
		if prev.Signature != method.Signature {
			changes = append(changes, AtomicChange{
				Kind:     ChangeMethodChanged,
				EntityID: id,
				FilePath: method.FilePath,
				Parent:   method.Parent,
				Method:   method.Name,
				Detail:   fmt.Sprintf("Method '%s' was modified.", method.Name),
				Line:     method.StartLine,
			})
		}
	}

	for id, method := range prevMethods {
		if _, ok := currMethods[id]; ok {
			continue
		}
		if deletedClasses[method.Parent] {
			continue
		}
		changes = append(changes, AtomicChange{
			Kind:     ChangeMethodDeleted,
			EntityID: id,
			FilePath: method.FilePath,
			Parent:   method.Parent,
			Method:   method.Name,
			Detail:   fmt.Sprintf("Method '%s' was deleted.", method.Name),
			Line:     method.StartLine,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].FilePath != changes[j].FilePath {
			return changes[i].FilePath < changes[j].FilePath
		}
		return changes[i].EntityID < changes[j].EntityID
	})
	return changes
}

func diffIndex(entities []graph.Entity) (methods, classes map[string]graph.Entity) {
	methods = make(map[string]graph.Entity)
	classes = make(map[string]graph.Entity)
	for _, e := range entities {
		switch e.Kind {
		case graph.KindMethod:
			methods[e.ID] = e
		case graph.KindClass:
			classes[e.ID] = e
		}
	}
	return methods, classes
}
