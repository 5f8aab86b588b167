// Package adapters provides the per-language parsers that turn one source
// file into graph entities and relations.
//
// Each language adapter implements the Adapter interface; dispatch happens
// by file extension through the Registry, never by inspecting parser types.
// Adapters are regex/line-scan based and deliberately tolerant: a file that
// cannot be parsed yields an error that the pipeline downgrades to a
// per-file warning plus an unparsed stub entity.
package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/Benny93/cascade-go/internal/graph"
)

// FileResult holds everything an adapter extracted from a single file.
type FileResult struct {
	Entities  []graph.Entity
	Relations []graph.Relation
}

// Adapter parses one file of one supported language.
type Adapter interface {
	// ParseFile extracts entities and relations from the file. A non-nil
	// error means the file is malformed; the pipeline stubs it instead of
	// failing the run.
	ParseFile(filePath string, content []byte) (*FileResult, error)

	// Language returns the language this adapter handles.
	Language() string

	// SupportsFile checks if this adapter can handle the given file.
	SupportsFile(filePath string) bool
}

// Registry holds the available adapters and selects one per file.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry with the built-in adapters.
func NewRegistry() *Registry {
	return &Registry{
		adapters: []Adapter{
			NewJavaAdapter(),
			NewTypeScriptAdapter(),
		},
	}
}

// ForFile returns the adapter for the given file, or nil if no adapter
// supports it.
func (r *Registry) ForFile(filePath string) Adapter {
	for _, a := range r.adapters {
		if a.SupportsFile(filePath) {
			return a
		}
	}
	return nil
}

// Languages returns the languages of all registered adapters.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		langs = append(langs, a.Language())
	}
	return langs
}

// StubEntity builds the placeholder entity registered for a file whose
// parse failed. Its ID is the file path, so relations into the file keep a
// stable anchor.
func StubEntity(filePath string) graph.Entity {
	return graph.Entity{
		ID:       filePath,
		Kind:     graph.KindUnparsed,
		Layer:    layerForFile(filePath),
		Name:     filepath.Base(filePath),
		FilePath: filePath,
	}
}

// layerForFile guesses the stack layer from the file extension.
func layerForFile(filePath string) graph.Layer {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".tsx", ".js", ".jsx":
		return graph.LayerUI
	default:
		return graph.LayerBackend
	}
}

// hashSignature returns the sha256 hex digest of the given declaration and
// body parts, with whitespace runs collapsed so formatting-only edits do
// not register as changes.
func hashSignature(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(strings.Join(strings.Fields(part), " ")))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// lineNumberAt returns the 1-based line number of the given byte offset.
func lineNumberAt(source string, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return 1 + strings.Count(source[:offset], "\n")
}
