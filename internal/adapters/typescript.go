package adapters

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Benny93/cascade-go/internal/graph"
)

// TypeScriptAdapter parses TypeScript/TSX (and plain JS/JSX) UI sources.
// It extracts React-style components and the API endpoints they invoke
// through fetch/axios-style calls, plus imports between project components.
type TypeScriptAdapter struct {
	funcComponentRegex  *regexp.Regexp
	arrowComponentRegex *regexp.Regexp
	classComponentRegex *regexp.Regexp
	importRegex         *regexp.Regexp
	fetchRegex          *regexp.Regexp
	fetchMethodRegex    *regexp.Regexp
	clientCallRegex     *regexp.Regexp
	templateVarRegex    *regexp.Regexp
}

// NewTypeScriptAdapter creates a new TypeScript adapter.
func NewTypeScriptAdapter() *TypeScriptAdapter {
	return &TypeScriptAdapter{
		funcComponentRegex:  regexp.MustCompile(`(?m)^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s+([A-Z]\w*)\s*\(`),
		arrowComponentRegex: regexp.MustCompile(`(?m)^(?:export\s+)?(?:default\s+)?const\s+([A-Z]\w*)\s*(?::[^=\n]+)?=\s*(?:async\s*)?\([^)]*\)\s*(?::\s*[\w.<>\[\]\s]+)?\s*=>`),
		classComponentRegex: regexp.MustCompile(`(?m)^(?:export\s+)?(?:default\s+)?class\s+([A-Z]\w*)\s+extends\s+(?:React\.)?(?:Pure)?Component`),
		importRegex:         regexp.MustCompile(`(?m)^import\s+(?:{([^}]+)}|\*\s+as\s+(\w+)|(\w+))\s+from\s+['"]([^'"]+)['"]`),
		fetchRegex:          regexp.MustCompile("fetch\\(\\s*[`'\"]([^`'\"]+)[`'\"]\\s*(?:,\\s*\\{([^}]*)\\})?"),
		fetchMethodRegex:    regexp.MustCompile(`method\s*:\s*['"](\w+)['"]`),
		clientCallRegex:     regexp.MustCompile("\\w+\\.(get|post|put|delete|patch)\\s*\\(\\s*[`'\"]([^`'\"]+)[`'\"]"),
		templateVarRegex:    regexp.MustCompile(`\$\{([^}]*)\}`),
	}
}

// Language returns the language this adapter handles.
func (a *TypeScriptAdapter) Language() string {
	return "typescript"
}

// SupportsFile checks if this adapter can handle the given file.
func (a *TypeScriptAdapter) SupportsFile(filePath string) bool {
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx"} {
		if strings.HasSuffix(filePath, ext) {
			return true
		}
	}
	return false
}

// tsComponent is one declared component with its position in the source.
type tsComponent struct {
	name   string
	offset int
	line   int
}

// ParseFile extracts components and their endpoint invocations.
func (a *TypeScriptAdapter) ParseFile(filePath string, content []byte) (*FileResult, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("invalid UTF-8 in %s", filePath)
	}
	source := string(content)
	result := &FileResult{}

	components := a.findComponents(source)
	for _, c := range components {
		result.Entities = append(result.Entities, graph.Entity{
			ID:        c.name,
			Kind:      graph.KindComponent,
			Layer:     graph.LayerUI,
			Name:      c.name,
			FilePath:  filePath,
			Signature: hashSignature(lineAt(source, c.offset)),
			StartLine: c.line,
			EndLine:   c.line,
		})
	}

	a.parseInvocations(source, components, result)
	a.parseImports(source, components, result)

	return result, nil
}

// findComponents locates all component declarations, ordered by position.
func (a *TypeScriptAdapter) findComponents(source string) []tsComponent {
	var components []tsComponent
	seen := map[string]bool{}

	for _, re := range []*regexp.Regexp{a.funcComponentRegex, a.arrowComponentRegex, a.classComponentRegex} {
		for _, m := range re.FindAllStringSubmatchIndex(source, -1) {
			name := source[m[2]:m[3]]
			if seen[name] {
				continue
			}
			seen[name] = true
			components = append(components, tsComponent{
				name:   name,
				offset: m[0],
				line:   lineNumberAt(source, m[0]),
			})
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].offset < components[j].offset
	})
	return components
}

// parseInvocations finds fetch/axios-style API calls and attributes each to
// the nearest preceding component declaration. Calls outside any component
// are skipped.
func (a *TypeScriptAdapter) parseInvocations(source string, components []tsComponent, result *FileResult) {
	emit := func(offset int, verb, rawURL string) {
		owner := enclosingComponent(components, offset)
		if owner == "" {
			return
		}
		route, ok := a.normalizeRoute(rawURL)
		if !ok {
			return
		}
		result.Relations = append(result.Relations, graph.Relation{
			From: owner,
			To:   graph.EndpointID(verb, route),
			Kind: graph.RelInvokesEndpoint,
		})
	}

	for _, m := range a.fetchRegex.FindAllStringSubmatchIndex(source, -1) {
		rawURL := source[m[2]:m[3]]
		verb := "GET"
		if m[4] >= 0 {
			if mm := a.fetchMethodRegex.FindStringSubmatch(source[m[4]:m[5]]); mm != nil {
				verb = strings.ToUpper(mm[1])
			}
		}
		emit(m[0], verb, rawURL)
	}

	for _, m := range a.clientCallRegex.FindAllStringSubmatchIndex(source, -1) {
		verb := strings.ToUpper(source[m[2]:m[3]])
		rawURL := source[m[4]:m[5]]
		emit(m[0], verb, rawURL)
	}
}

// parseImports emits component-to-component import relations for capitalized
// symbols imported from project-relative modules.
func (a *TypeScriptAdapter) parseImports(source string, components []tsComponent, result *FileResult) {
	for _, m := range a.importRegex.FindAllStringSubmatch(source, -1) {
		modulePath := m[4]
		if !strings.HasPrefix(modulePath, ".") {
			continue
		}

		var symbols []string
		if m[1] != "" {
			for _, part := range strings.Split(m[1], ",") {
				part = strings.TrimSpace(part)
				if idx := strings.Index(part, " as "); idx > 0 {
					part = strings.TrimSpace(part[:idx])
				}
				symbols = append(symbols, part)
			}
		}
		if m[2] != "" {
			symbols = append(symbols, m[2])
		}
		if m[3] != "" {
			symbols = append(symbols, m[3])
		}

		for _, sym := range symbols {
			if sym == "" || sym[0] < 'A' || sym[0] > 'Z' {
				continue
			}
			for _, c := range components {
				if c.name == sym {
					continue
				}
				result.Relations = append(result.Relations, graph.Relation{
					From: c.name,
					To:   sym,
					Kind: graph.RelImports,
				})
			}
		}
	}
}

// normalizeRoute turns a raw URL literal into the canonical route form used
// for endpoint IDs: path only, template expressions as {name} placeholders.
// Returns false for URLs that are not API paths.
func (a *TypeScriptAdapter) normalizeRoute(raw string) (string, bool) {
	route := raw

	if idx := strings.Index(route, "://"); idx >= 0 {
		rest := route[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			route = rest[slash:]
		} else {
			route = "/"
		}
	}

	if idx := strings.IndexAny(route, "?#"); idx >= 0 {
		route = route[:idx]
	}

	route = a.templateVarRegex.ReplaceAllStringFunc(route, func(expr string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(expr, "${"), "}")
		if idx := strings.LastIndexAny(inner, ".?!"); idx >= 0 {
			inner = inner[idx+1:]
		}
		inner = strings.TrimSpace(inner)
		if inner == "" || !isIdentifier(inner) {
			return "{param}"
		}
		return "{" + inner + "}"
	})

	if !strings.HasPrefix(route, "/") {
		return "", false
	}
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return route, true
}

// enclosingComponent returns the name of the last component declared before
// the given offset, or "" when the offset precedes all components.
func enclosingComponent(components []tsComponent, offset int) string {
	name := ""
	for _, c := range components {
		if c.offset >= offset {
			break
		}
		name = c.name
	}
	return name
}

// lineAt returns the full source line containing the given offset.
func lineAt(source string, offset int) string {
	start := strings.LastIndexByte(source[:offset], '\n') + 1
	end := strings.IndexByte(source[offset:], '\n')
	if end < 0 {
		return source[start:]
	}
	return source[start : offset+end]
}

// isIdentifier reports whether s is a plain word usable in a placeholder.
func isIdentifier(s string) bool {
	for _, r := range s {
		if r != '_' && !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') && !('0' <= r && r <= '9') {
			return false
		}
	}
	return s != ""
}
