// Package mcp provides the MCP (Model Context Protocol) server for Cascade.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/cascade-go/internal/analysis"
	"github.com/Benny93/cascade-go/internal/graph"
)

// Store is the persistence surface the server reads and augments.
type Store interface {
	PreviousGraph(repoID string) (*graph.Snapshot, error)
	GraphAt(repoID, commitSHA string) (*graph.Snapshot, error)
	ReadAnalysisResult(repoID, commitSHA string) (*analysis.Record, error)
	ListAnalyses(repoID string) ([]*analysis.Record, error)
	LatestSHA(repoID string) (string, error)
	AppendAugmentation(repoID, commitSHA string, aug analysis.Augmentation) error
}

// Server represents the MCP server, bound to one repository.
type Server struct {
	store    Store
	runner   *analysis.Runner
	repoName string
	server   *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server.
func NewServer(store Store, runner *analysis.Runner, repoName string) *Server {
	s := &Server{
		store:    store,
		runner:   runner,
		repoName: repoName,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "cascade",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "run_analysis",
			Description: "Analyze a commit: build its dependency graph, diff it against the baseline, and record the impacted components.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"commit_sha":          {Type: "string", Description: "Commit to analyze"},
					"previous_commit_sha": {Type: "string", Description: "Baseline commit (defaults to the last analyzed commit)"},
				},
				Required: []string{"commit_sha"},
			},
		},
		{
			Name:        "get_analysis",
			Description: "Fetch the stored analysis record for a commit: atomic changes, impacted components, and warnings.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"commit_sha": {Type: "string", Description: "Commit (defaults to the last analyzed commit)"},
				},
			},
		},
		{
			Name:        "list_analyses",
			Description: "List all stored analysis records for the repository, oldest first.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "augment_analysis",
			Description: "Attach a change summary and a suggested test to a completed analysis record.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"commit_sha":     {Type: "string", Description: "Analyzed commit to augment"},
					"summary":        {Type: "string", Description: "Change summary to attach"},
					"suggested_test": {Type: "string", Description: "Suggested test to attach"},
				},
				Required: []string{"commit_sha"},
			},
		},
		{
			Name:        "get_graph_stats",
			Description: "Entity and relation counts for a stored graph snapshot, including unresolved external references.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"commit_sha": {Type: "string", Description: "Commit (defaults to the last analyzed commit)"},
				},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "cascade://overview",
			Name:        "Repository Overview",
			Description: "High-level statistics about the analyzed repository",
			MimeType:    "text/plain",
		},
		{
			URI:         "cascade://history",
			Name:        "Analysis History",
			Description: "All stored analysis records, oldest first",
			MimeType:    "text/plain",
		},
		{
			URI:         "cascade://schema",
			Name:        "Graph Schema",
			Description: "Description of the Cascade dependency graph schema",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "run_analysis":
		commitSHA, _ := args["commit_sha"].(string)
		previousSHA, _ := args["previous_commit_sha"].(string)
		return s.handleRunAnalysis(ctx, commitSHA, previousSHA)
	case "get_analysis":
		commitSHA, _ := args["commit_sha"].(string)
		return s.handleGetAnalysis(commitSHA)
	case "list_analyses":
		return s.handleListAnalyses()
	case "augment_analysis":
		commitSHA, _ := args["commit_sha"].(string)
		summary, _ := args["summary"].(string)
		test, _ := args["suggested_test"].(string)
		return s.handleAugment(commitSHA, summary, test)
	case "get_graph_stats":
		commitSHA, _ := args["commit_sha"].(string)
		return s.handleGraphStats(commitSHA)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "cascade://overview":
		return s.getOverview(), nil
	case "cascade://history":
		return s.handleListAnalyses()
	case "cascade://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Parse JSON-RPC request
		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		// Handle request
		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "cascade",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func (s *Server) handleRunAnalysis(ctx context.Context, commitSHA, previousSHA string) (string, error) {
	if commitSHA == "" {
		return "No commit provided", nil
	}

	if _, err := s.runner.RunAnalysis(ctx, s.repoName, commitSHA, previousSHA); err != nil {
		return "", err
	}

	rec, err := s.store.ReadAnalysisResult(s.repoName, commitSHA)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", fmt.Errorf("no record stored for %s", commitSHA)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Analysis complete for **%s@%s**\n\n", s.repoName, rec.CommitSHA))
	sb.WriteString(fmt.Sprintf("- Status: %s\n", rec.Status))
	if rec.PreviousSHA != "" {
		sb.WriteString(fmt.Sprintf("- Baseline: %s\n", rec.PreviousSHA))
	}
	sb.WriteString(fmt.Sprintf("- Changes: %d\n", len(rec.AtomicChanges)))
	if rec.Impact != nil {
		sb.WriteString(fmt.Sprintf("- Impacted: %d direct, %d total\n",
			len(rec.Impact.Direct), len(rec.Impact.Transitive)))
	}
	if len(rec.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("- Warnings: %d\n", len(rec.Warnings)))
	}

	sb.WriteString("\nNext: Use `get_analysis` for the full record.")

	return sb.String(), nil
}

func (s *Server) handleGetAnalysis(commitSHA string) (string, error) {
	var err error
	if commitSHA == "" {
		commitSHA, err = s.store.LatestSHA(s.repoName)
		if err != nil {
			return "", err
		}
		if commitSHA == "" {
			return "No analyses stored yet. Run `run_analysis` first.", nil
		}
	}

	rec, err := s.store.ReadAnalysisResult(s.repoName, commitSHA)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return fmt.Sprintf("No analysis recorded for commit %s.", commitSHA), nil
	}

	return formatRecord(s.repoName, rec), nil
}

func (s *Server) handleListAnalyses() (string, error) {
	records, err := s.store.ListAnalyses(s.repoName)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "No analyses stored yet. Run `run_analysis` first.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Analyses for %s (%d)\n\n", s.repoName, len(records)))
	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("- **%s**: %s, %d changes", rec.CommitSHA, rec.Status, len(rec.AtomicChanges)))
		if rec.Impact != nil {
			sb.WriteString(fmt.Sprintf(", %d impacted", len(rec.Impact.Transitive)))
		}
		sb.WriteString(fmt.Sprintf(", analyzed %s\n", rec.StartedAt.UTC().Format(time.RFC3339)))
	}

	return sb.String(), nil
}

func (s *Server) handleAugment(commitSHA, summary, test string) (string, error) {
	if commitSHA == "" {
		return "No commit provided", nil
	}

	aug := analysis.Augmentation{AISummary: summary, AISuggestedTest: test}
	if err := s.store.AppendAugmentation(s.repoName, commitSHA, aug); err != nil {
		return "", err
	}

	return fmt.Sprintf("Augmented %s@%s.", s.repoName, commitSHA), nil
}

func (s *Server) handleGraphStats(commitSHA string) (string, error) {
	var snap *graph.Snapshot
	var err error
	if commitSHA == "" {
		snap, err = s.store.PreviousGraph(s.repoName)
	} else {
		snap, err = s.store.GraphAt(s.repoName, commitSHA)
	}
	if err != nil {
		return "", err
	}
	if snap == nil {
		if commitSHA != "" {
			return fmt.Sprintf("No graph stored for commit %s.", commitSHA), nil
		}
		return "No graph stored yet. Run `run_analysis` first.", nil
	}

	stats := snap.Stats()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Graph for %s@%s\n\n", s.repoName, snap.CommitSHA))
	sb.WriteString(fmt.Sprintf("**Entities:** %d\n", stats["entities"]))
	sb.WriteString(fmt.Sprintf("**Relations:** %d\n", stats["relations"]))

	sb.WriteString("\n## Entities by kind\n\n")
	for _, kind := range []graph.EntityKind{
		graph.KindClass, graph.KindMethod, graph.KindEndpoint,
		graph.KindComponent, graph.KindUnparsed, graph.KindExternal,
	} {
		if n := len(snap.ByKind(kind)); n > 0 {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", kind, n))
		}
	}

	sb.WriteString("\n## Entities by layer\n\n")
	for _, layer := range []graph.Layer{graph.LayerBackend, graph.LayerAPI, graph.LayerUI} {
		if n := stats[string(layer)]; n > 0 {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", layer, n))
		}
	}

	if external := graph.PlaceholderIDs(snap); len(external) > 0 {
		sb.WriteString(fmt.Sprintf("\n## Unresolved references (%d)\n\n", len(external)))
		for i, id := range external {
			if i == 10 {
				sb.WriteString(fmt.Sprintf("- ... and %d more\n", len(external)-i))
				break
			}
			sb.WriteString(fmt.Sprintf("- %s\n", id))
		}
	}

	return sb.String(), nil
}

// formatRecord renders a full analysis record as markdown.
func formatRecord(name string, rec *analysis.Record) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Analysis for %s@%s\n\n", name, rec.CommitSHA))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", rec.Status))
	if rec.PreviousSHA != "" {
		sb.WriteString(fmt.Sprintf("**Baseline:** %s\n", rec.PreviousSHA))
	}
	if rec.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", rec.Error))
	}

	if len(rec.AtomicChanges) == 0 {
		sb.WriteString("\nNo structural changes.\n")
	} else {
		sb.WriteString(fmt.Sprintf("\n## Changes (%d)\n\n", len(rec.AtomicChanges)))
		for _, ch := range rec.AtomicChanges {
			sb.WriteString(fmt.Sprintf("- `%s` %s\n", ch.FilePath, ch.Detail))
		}
	}

	if rec.Impact != nil && len(rec.Impact.Direct) > 0 {
		sb.WriteString(fmt.Sprintf("\n## Impacted components (%d direct, %d total)\n\n",
			len(rec.Impact.Direct), len(rec.Impact.Transitive)))
		for _, id := range rec.Impact.Direct {
			sb.WriteString(fmt.Sprintf("- %s\n", id))
		}
		if indirect := len(rec.Impact.Transitive) - len(rec.Impact.Direct); indirect > 0 {
			sb.WriteString(fmt.Sprintf("- ... and %d more transitively\n", indirect))
		}
	} else {
		sb.WriteString("\nNo impacted components.\n")
	}

	if len(rec.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("\n## Warnings (%d)\n\n", len(rec.Warnings)))
		for _, w := range rec.Warnings {
			if w.FilePath != "" {
				sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", w.Stage, w.FilePath, w.Message))
			} else {
				sb.WriteString(fmt.Sprintf("- [%s] %s\n", w.Stage, w.Message))
			}
		}
	}

	if rec.AISummary != "" {
		sb.WriteString(fmt.Sprintf("\n## Summary\n\n%s\n", rec.AISummary))
	}
	if rec.AISuggestedTest != "" {
		sb.WriteString(fmt.Sprintf("\n## Suggested test\n\n%s\n", rec.AISuggestedTest))
	}

	return sb.String()
}

// Resource Handlers

func (s *Server) getOverview() string {
	var sb strings.Builder
	sb.WriteString("# Cascade Repository Overview\n\n")
	sb.WriteString(fmt.Sprintf("**Repository:** %s\n", s.repoName))

	snap, err := s.store.PreviousGraph(s.repoName)
	if err != nil || snap == nil {
		sb.WriteString("\nNo commits analyzed yet. Run `run_analysis` to build the first graph.\n")
		return sb.String()
	}

	stats := snap.Stats()
	sb.WriteString(fmt.Sprintf("**Last commit:** %s\n", snap.CommitSHA))
	sb.WriteString(fmt.Sprintf("**Entities:** %d\n", stats["entities"]))
	sb.WriteString(fmt.Sprintf("**Relations:** %d\n", stats["relations"]))

	if records, err := s.store.ListAnalyses(s.repoName); err == nil {
		sb.WriteString(fmt.Sprintf("**Analyses:** %d\n", len(records)))
	}

	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Cascade Dependency Graph Schema\n\n")
	sb.WriteString("## Entity Kinds\n\n")
	sb.WriteString("| Kind | ID Format | Description |\n")
	sb.WriteString("|------|-----------|-------------|\n")
	sb.WriteString("| `class` | `pkg.Class` | Java class or interface |\n")
	sb.WriteString("| `method` | `pkg.Class.method` | Method within a class (overloads collapse) |\n")
	sb.WriteString("| `endpoint` | `GET /path` | HTTP endpoint exposed by a controller |\n")
	sb.WriteString("| `component` | exported name | UI component (function, arrow, or class) |\n")
	sb.WriteString("| `unparsed` | file path | File stub kept after a parse failure |\n")
	sb.WriteString("| `external` | referenced ID | Placeholder for a reference with no definition |\n")
	sb.WriteString("\n## Relation Kinds\n\n")
	sb.WriteString("| Kind | From → To |\n")
	sb.WriteString("|------|-----------|\n")
	sb.WriteString("| `imports` | class → class |\n")
	sb.WriteString("| `calls` | method → method |\n")
	sb.WriteString("| `implements-endpoint` | endpoint → handler method |\n")
	sb.WriteString("| `invokes-endpoint` | component → endpoint |\n")
	sb.WriteString("\nEdges point from the dependent to its dependency; impact analysis walks them in reverse.\n")
	sb.WriteString("\n## Change Kinds\n\n")
	sb.WriteString("| Code | Meaning |\n")
	sb.WriteString("|------|--------|\n")
	sb.WriteString("| `AM` | Method added |\n")
	sb.WriteString("| `CM` | Method body or signature changed |\n")
	sb.WriteString("| `DM` | Method deleted |\n")
	sb.WriteString("| `DC` | Class deleted |\n")

	return sb.String()
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
