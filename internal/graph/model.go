// Package graph provides the commit-scoped dependency graph model for Cascade.
//
// It defines the entity and relation types that represent code across the
// stack (backend classes and methods, API endpoints, UI components) and the
// immutable per-commit Snapshot they are assembled into.
package graph

// EntityKind represents the kind of a code entity.
type EntityKind string

const (
	KindClass     EntityKind = "class"
	KindMethod    EntityKind = "method"
	KindEndpoint  EntityKind = "endpoint"
	KindComponent EntityKind = "component"

	// KindUnparsed marks the stub entity registered for a file whose parse
	// failed, so relations into that file degrade instead of vanishing.
	KindUnparsed EntityKind = "unparsed"

	// KindExternal marks a placeholder created for a relation target that no
	// adapter produced in this snapshot.
	KindExternal EntityKind = "external"
)

// Layer tags which tier of the stack an entity belongs to.
type Layer string

const (
	LayerBackend Layer = "backend"
	LayerAPI     Layer = "api"
	LayerUI      Layer = "ui"
)

// RelationKind represents the kind of a directed dependency edge.
type RelationKind string

const (
	RelImports            RelationKind = "imports"
	RelCalls              RelationKind = "calls"
	RelImplementsEndpoint RelationKind = "implements-endpoint"
	RelInvokesEndpoint    RelationKind = "invokes-endpoint"
)

// Entity represents one code entity in a commit's snapshot. Entities are
// immutable value records rebuilt fresh for every commit; identity is the
// qualified name in ID.
type Entity struct {
	// ID is the unique qualified name of the entity.
	// Classes: "pkg.Class", methods: "pkg.Class.name",
	// endpoints: "METHOD /path", components: the exported name.
	ID string `json:"id"`

	// Kind is the kind of the entity.
	Kind EntityKind `json:"kind"`

	// Layer is the stack tier the entity belongs to.
	Layer Layer `json:"layer"`

	// Name is the unqualified name (method name, class name, route, ...).
	Name string `json:"name"`

	// FilePath is the repo-relative path of the defining file. Empty for
	// external placeholders.
	FilePath string `json:"file_path,omitempty"`

	// Parent is the ID of the containing class for methods, or the ID of
	// the implementing class for endpoints.
	Parent string `json:"parent,omitempty"`

	// Signature is a sha256 hex over the entity's declaration and body
	// tokens. Two snapshots disagree on Signature exactly when the entity
	// changed.
	Signature string `json:"signature,omitempty"`

	// HTTPMethod and Route are set for endpoint entities only.
	HTTPMethod string `json:"http_method,omitempty"`
	Route      string `json:"route,omitempty"`

	// StartLine and EndLine locate the entity in its file.
	StartLine int `json:"start_line,omitempty"`
	EndLine   int `json:"end_line,omitempty"`
}

// Relation represents a directed dependency edge. From depends on To:
// a class imports a class, a method calls a method, an endpoint is
// implemented by a handler method, a component invokes an endpoint.
// Impact traversal walks these edges in reverse.
type Relation struct {
	From string       `json:"from"`
	To   string       `json:"to"`
	Kind RelationKind `json:"kind"`
}

// ClassID returns the qualified name for a class: "pkg.Name", or just
// "Name" for the default package.
func ClassID(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// MethodID returns the qualified name for a method of the given class.
func MethodID(classID, name string) string {
	return classID + "." + name
}

// EndpointID returns the qualified name for an API endpoint:
// "METHOD /path".
func EndpointID(httpMethod, route string) string {
	return httpMethod + " " + route
}
