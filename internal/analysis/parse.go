package analysis

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/Benny93/cascade-go/internal/adapters"
	"github.com/Benny93/cascade-go/internal/graph"
)

// File is one source file of a fetched commit snapshot.
type File struct {
	Path    string
	Content []byte
}

type fileSlot struct {
	result  *adapters.FileResult
	warning *Warning
}

// ParseFiles parses every supported file of a snapshot, fanning the work out
// over a bounded worker pool. Each file writes into its own result slot;
// after the join barrier the slots merge in ascending file-path order, so the
// output never depends on scheduling. A qualified name emitted by two files
// keeps the first occurrence and surfaces a warning; entities come back
// sorted by ID, relations by (From, Kind, To). The only error is the
// context's, checked cooperatively between files.
func ParseFiles(ctx context.Context, files []File, workers int) ([]graph.Entity, []graph.Relation, []Warning, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(files) {
		workers = len(files)
	}

	registry := adapters.NewRegistry()
	slots := make([]fileSlot, len(files))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				slots[idx] = parseOne(registry, files[idx])
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	order := make([]int, len(files))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return files[order[a]].Path < files[order[b]].Path
	})

	entities := make(map[string]graph.Entity)
	firstFile := make(map[string]string)
	var relations []graph.Relation
	warnings := []Warning{}

	for _, idx := range order {
		slot := slots[idx]
		if slot.warning != nil {
			warnings = append(warnings, *slot.warning)
		}
		if slot.result == nil {
			continue
		}
		for _, e := range slot.result.Entities {
			if seen, ok := firstFile[e.ID]; ok {
				if seen != e.FilePath {
					cerr := &ConsistencyError{EntityID: e.ID, FilePaths: []string{seen, e.FilePath}}
					warnings = append(warnings, Warning{Stage: "merge", FilePath: e.FilePath, Message: cerr.Error()})
				}
				continue
			}
			entities[e.ID] = e
			firstFile[e.ID] = e.FilePath
		}
		relations = append(relations, slot.result.Relations...)
	}

	merged := make([]graph.Entity, 0, len(entities))
	for _, e := range entities {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
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

	return merged, relations, warnings, nil
}

func parseOne(registry *adapters.Registry, file File) fileSlot {
	adapter := registry.ForFile(file.Path)
	if adapter == nil {
		return fileSlot{}
	}
	result, err := adapter.ParseFile(file.Path, file.Content)
	if err != nil {
		perr := &ParseError{FilePath: file.Path, Cause: err}
		return fileSlot{
			result:  &adapters.FileResult{Entities: []graph.Entity{adapters.StubEntity(file.Path)}},
			warning: &Warning{Stage: "parse", FilePath: file.Path, Message: perr.Error()},
		}
	}
	return fileSlot{result: result}
}
