package adapters

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Benny93/cascade-go/internal/graph"
)

// JavaAdapter parses Java source using a regex-based line scan.
// It extracts the first top-level class per file (nested and secondary
// classes fold into it), its methods with body hashes, Spring request
// mappings as API endpoint entities, and import/call relations.
type JavaAdapter struct {
	packageRegex    *regexp.Regexp
	importRegex     *regexp.Regexp
	classRegex      *regexp.Regexp
	methodRegex     *regexp.Regexp
	annotationRegex *regexp.Regexp
	quoteRegex      *regexp.Regexp
	declRegex       *regexp.Regexp
	methodCallRegex *regexp.Regexp
	bareCallRegex   *regexp.Regexp
}

// NewJavaAdapter creates a new Java adapter.
func NewJavaAdapter() *JavaAdapter {
	return &JavaAdapter{
		packageRegex:    regexp.MustCompile(`^package\s+([\w.]+)\s*;`),
		importRegex:     regexp.MustCompile(`^import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`),
		classRegex:      regexp.MustCompile(`^(?:(?:public|protected|private|abstract|final|static|strictfp)\s+)*(?:class|interface|enum|record)\s+(\w+)`),
		methodRegex:     regexp.MustCompile(`^(?:(?:public|protected|private|abstract|final|static|synchronized|native|default)\s+)*(?:<[^>]+>\s+)?(?P<ret>[\w.<>\[\],?\s]+?)\s+(?P<name>\w+)\s*\((?P<params>[^)]*)\)\s*(?:throws\s+[\w.,\s]+?)?\s*(?P<term>[{;])`),
		annotationRegex: regexp.MustCompile(`^@(\w+)\s*(?:\((.*)\))?`),
		quoteRegex:      regexp.MustCompile(`"([^"]*)"`),
		declRegex:       regexp.MustCompile(`^(?:(?:private|protected|public|final|static)\s+)*([A-Z]\w*)(?:<[^>]*>)?\s+(\w+)\s*[=;]`),
		methodCallRegex: regexp.MustCompile(`(\w+)\s*\.\s*(\w+)\s*\(`),
		bareCallRegex:   regexp.MustCompile(`(?:^|[^.\w])(\w+)\s*\(`),
	}
}

// Language returns the language this adapter handles.
func (a *JavaAdapter) Language() string {
	return "java"
}

// SupportsFile checks if this adapter can handle the given file.
func (a *JavaAdapter) SupportsFile(filePath string) bool {
	return strings.HasSuffix(filePath, ".java")
}

// javaAnnotation is one parsed annotation with its first quoted argument.
type javaAnnotation struct {
	name string
	path string
}

// javaMethod accumulates one named method. Overloads collapse onto the
// first occurrence; their declarations and bodies all feed the hash.
type javaMethod struct {
	name      string
	startLine int
	endLine   int
	hashInput []string
	mappings  []javaAnnotation
}

// ParseFile extracts entities and relations from Java source.
func (a *JavaAdapter) ParseFile(filePath string, content []byte) (*FileResult, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("invalid UTF-8 in %s", filePath)
	}

	rawLines := strings.Split(string(content), "\n")

	// First pass: strip comments, compute the brace depth entering each
	// line, collect package/imports/class/methods/typed declarations.
	codeLines := make([]string, len(rawLines))
	depthAt := make([]int, len(rawLines)+1)

	var (
		pkg         string
		imports     []string
		importBy    = map[string]string{} // simple name -> fqn
		className   string
		classDecl   string
		classLine   int
		basePath    string
		declTypes   = map[string]string{} // var/field name -> type simple name
		methods     = map[string]*javaMethod{}
		methodOrder []string
		pending     []javaAnnotation
		inBlock     bool
	)

	for i, raw := range rawLines {
		code := stripJavaComments(raw, &inBlock)
		codeLines[i] = code
		structural := blankJavaStrings(code)
		depthAt[i+1] = depthAt[i] + strings.Count(structural, "{") - strings.Count(structural, "}")

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}

		if m := a.annotationRegex.FindStringSubmatch(trimmed); m != nil {
			ann := javaAnnotation{name: m[1]}
			if q := a.quoteRegex.FindStringSubmatch(m[2]); q != nil {
				ann.path = q[1]
			}
			pending = append(pending, ann)
			continue
		}

		if m := a.packageRegex.FindStringSubmatch(trimmed); m != nil {
			pkg = m[1]
			pending = nil
			continue
		}

		if m := a.importRegex.FindStringSubmatch(trimmed); m != nil {
			imp := m[1]
			pending = nil
			if strings.HasSuffix(imp, ".*") || isStandardImport(imp) {
				continue
			}
			imports = append(imports, imp)
			if idx := strings.LastIndex(imp, "."); idx >= 0 {
				importBy[imp[idx+1:]] = imp
			}
			continue
		}

		if m := a.classRegex.FindStringSubmatch(trimmed); m != nil && depthAt[i] == 0 {
			// First top-level class wins; later ones fold into it.
			if className == "" {
				className = m[1]
				classDecl = trimmed
				classLine = i + 1
				for _, ann := range pending {
					if ann.name == "RequestMapping" && ann.path != "" {
						basePath = ann.path
					}
				}
			}
			pending = nil
			continue
		}

		if m := a.declRegex.FindStringSubmatch(trimmed); m != nil {
			declTypes[m[2]] = m[1]
		}

		if className != "" && depthAt[i] == 1 {
			if m := a.methodRegex.FindStringSubmatch(trimmed); m != nil {
				ret := strings.TrimSpace(m[a.methodRegex.SubexpIndex("ret")])
				name := m[a.methodRegex.SubexpIndex("name")]
				if !javaKeyword(ret) && !javaKeyword(name) {
					endLine := i + 1
					if m[a.methodRegex.SubexpIndex("term")] == "{" {
						endLine = methodEndLine(depthAt, i)
					}
					mth, ok := methods[name]
					if !ok {
						mth = &javaMethod{name: name, startLine: i + 1, endLine: endLine}
						methods[name] = mth
						methodOrder = append(methodOrder, name)
					}
					mth.hashInput = append(mth.hashInput, trimmed)
					for j := i + 1; j < endLine; j++ {
						mth.hashInput = append(mth.hashInput, codeLines[j])
					}
					mth.mappings = append(mth.mappings, pending...)
					pending = nil
					continue
				}
			}
		}

		pending = nil
	}

	if depthAt[len(rawLines)] != 0 {
		return nil, fmt.Errorf("unbalanced braces in %s (depth %d at end of file)", filePath, depthAt[len(rawLines)])
	}

	result := &FileResult{}
	if className == "" {
		return result, nil
	}

	classID := graph.ClassID(pkg, className)
	result.Entities = append(result.Entities, graph.Entity{
		ID:        classID,
		Kind:      graph.KindClass,
		Layer:     graph.LayerBackend,
		Name:      className,
		FilePath:  filePath,
		Signature: hashSignature(classDecl),
		StartLine: classLine,
		EndLine:   len(rawLines),
	})

	for _, imp := range imports {
		result.Relations = append(result.Relations, graph.Relation{
			From: classID,
			To:   imp,
			Kind: graph.RelImports,
		})
	}

	ownMethods := make(map[string]bool, len(methodOrder))
	for _, name := range methodOrder {
		ownMethods[name] = true
	}

	for _, name := range methodOrder {
		mth := methods[name]
		methodID := graph.MethodID(classID, name)

		result.Entities = append(result.Entities, graph.Entity{
			ID:        methodID,
			Kind:      graph.KindMethod,
			Layer:     graph.LayerBackend,
			Name:      name,
			FilePath:  filePath,
			Parent:    classID,
			Signature: hashSignature(mth.hashInput...),
			StartLine: mth.startLine,
			EndLine:   mth.endLine,
		})

		for _, ann := range mth.mappings {
			verb, ok := httpVerbFor(ann.name)
			if !ok {
				continue
			}
			route := joinRoute(basePath, ann.path)
			endpointID := graph.EndpointID(verb, route)
			result.Entities = append(result.Entities, graph.Entity{
				ID:         endpointID,
				Kind:       graph.KindEndpoint,
				Layer:      graph.LayerAPI,
				Name:       route,
				FilePath:   filePath,
				Parent:     classID,
				HTTPMethod: verb,
				Route:      route,
				StartLine:  mth.startLine,
			})
			result.Relations = append(result.Relations, graph.Relation{
				From: endpointID,
				To:   methodID,
				Kind: graph.RelImplementsEndpoint,
			})
		}

		// The declaration line only contributes what follows its opening
		// brace, so parameter lists do not register as calls.
		declLine := codeLines[mth.startLine-1]
		if idx := strings.Index(declLine, "{"); idx >= 0 {
			a.extractCalls(declLine[idx+1:], methodID, classID, className, pkg, importBy, declTypes, ownMethods, result)
		}
		for j := mth.startLine; j < mth.endLine; j++ {
			a.extractCalls(codeLines[j], methodID, classID, className, pkg, importBy, declTypes, ownMethods, result)
		}
	}

	return result, nil
}

// extractCalls finds call sites on one body line and resolves their
// receivers to qualified method IDs. Unresolvable receivers are skipped.
func (a *JavaAdapter) extractCalls(line, methodID, classID, className, pkg string, importBy, declTypes map[string]string, ownMethods map[string]bool, result *FileResult) {
	code := blankJavaStrings(line)

	for _, m := range a.methodCallRegex.FindAllStringSubmatch(code, -1) {
		receiver, callee := m[1], m[2]

		var typeName string
		switch {
		case receiver == "this":
			typeName = className
		case declTypes[receiver] != "":
			typeName = declTypes[receiver]
		case unicode.IsUpper(rune(receiver[0])):
			typeName = receiver
		default:
			continue
		}

		targetClass := ""
		if typeName == className {
			targetClass = classID
		} else if fqn, ok := importBy[typeName]; ok {
			targetClass = fqn
		} else {
			// Same-package classes need no import in Java.
			targetClass = graph.ClassID(pkg, typeName)
		}
		if isStandardImport(targetClass) {
			continue
		}

		result.Relations = append(result.Relations, graph.Relation{
			From: methodID,
			To:   graph.MethodID(targetClass, callee),
			Kind: graph.RelCalls,
		})
	}

	for _, m := range a.bareCallRegex.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if !ownMethods[name] || javaKeyword(name) {
			continue
		}
		result.Relations = append(result.Relations, graph.Relation{
			From: methodID,
			To:   graph.MethodID(classID, name),
			Kind: graph.RelCalls,
		})
	}
}

// methodEndLine walks the precomputed depth table forward to the line where
// the method body closes back to class level. declLine is the 0-based index
// of the declaration; a body opened and closed on that same line ends there.
func methodEndLine(depthAt []int, declLine int) int {
	for j := declLine; j < len(depthAt)-1; j++ {
		if depthAt[j+1] <= 1 {
			return j + 1
		}
	}
	return len(depthAt) - 1
}

// httpVerbFor maps a Spring mapping annotation to its HTTP verb.
func httpVerbFor(annotation string) (string, bool) {
	switch annotation {
	case "GetMapping", "PostMapping", "PutMapping", "DeleteMapping", "PatchMapping":
		return strings.ToUpper(strings.TrimSuffix(annotation, "Mapping")), true
	default:
		return "", false
	}
}

// joinRoute joins a class-level base path with a method-level path.
func joinRoute(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if path == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// isStandardImport reports whether a qualified name belongs to the Java
// platform rather than the project.
func isStandardImport(fqn string) bool {
	return strings.HasPrefix(fqn, "java.") ||
		strings.HasPrefix(fqn, "javax.") ||
		strings.HasPrefix(fqn, "jakarta.")
}

// javaKeyword reports whether a token is a control keyword that the method
// and call regexes would otherwise mistake for an identifier.
func javaKeyword(tok string) bool {
	switch tok {
	case "if", "else", "for", "while", "do", "switch", "catch", "try",
		"return", "new", "throw", "break", "continue", "synchronized", "assert", "super":
		return true
	}
	return false
}

// stripJavaComments removes line and block comments from one line, keeping
// string literals intact. inBlock carries /* */ state across lines.
func stripJavaComments(line string, inBlock *bool) string {
	var out strings.Builder
	inString := false
	for i := 0; i < len(line); i++ {
		if *inBlock {
			if line[i] == '*' && i+1 < len(line) && line[i+1] == '/' {
				*inBlock = false
				i++
			}
			continue
		}
		c := line[i]
		if inString {
			out.WriteByte(c)
			if c == '\\' && i+1 < len(line) {
				out.WriteByte(line[i+1])
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			out.WriteByte(c)
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return out.String()
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			*inBlock = true
			i++
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// blankJavaStrings replaces string and char literal contents with spaces so
// braces and call-like text inside literals do not confuse the scan.
func blankJavaStrings(line string) string {
	out := []byte(line)
	for i := 0; i < len(out); i++ {
		quote := out[i]
		if quote != '"' && quote != '\'' {
			continue
		}
		j := i + 1
		for j < len(out) {
			if out[j] == '\\' && j+1 < len(out) {
				out[j], out[j+1] = ' ', ' '
				j += 2
				continue
			}
			if out[j] == quote {
				break
			}
			out[j] = ' '
			j++
		}
		i = j
	}
	return string(out)
}
