// Package cmd provides CLI command implementations for Cascade.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/cascade-go/internal/analysis"
	"github.com/Benny93/cascade-go/internal/fetch"
	"github.com/Benny93/cascade-go/internal/graph"
	"github.com/Benny93/cascade-go/internal/storage"
	"github.com/Benny93/cascade-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// RunCmd analyzes one commit and records its structural changes and impact.
type RunCmd struct {
	Commit   string        `arg:"" optional:"" help:"Commit to analyze (SHA or ref, defaults to HEAD)"`
	Repo     string        `help:"Path to repository" default:"."`
	Name     string        `help:"Repository name override"`
	Prev     string        `help:"Baseline commit (defaults to the last analyzed commit)"`
	Timeout  time.Duration `help:"Abort the analysis after this duration"`
	Workers  int           `help:"Parser worker count (defaults to GOMAXPROCS)"`
	Worktree bool          `help:"Analyze the working tree instead of a commit"`
}

// Run executes the run command.
func (c *RunCmd) Run(cli *CLI) error {
	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	repoPath, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(repoPath)
	if err != nil {
		return fmt.Errorf("accessing %s: %w", repoPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", repoPath)
	}

	name := repoDisplayName(repoPath, c.Name)

	var fetcher analysis.Fetcher
	commit := c.Commit
	if c.Worktree {
		fetcher = fetch.NewDirFetcher(repoPath)
		if commit == "" {
			commit = "worktree-" + time.Now().UTC().Format("20060102T150405Z")
		}
	} else {
		fetcher = fetch.NewGitFetcher(repoPath)
		if commit == "" {
			commit = "HEAD"
		}
		// Records are keyed by full SHA so re-running a moved ref never
		// collides with an earlier analysis.
		commit, err = fetch.ResolveSHA(repoPath, commit)
		if err != nil {
			return fmt.Errorf("resolving commit: %w", err)
		}
	}

	color.Green("Analyzing %s@%s", name, shortSHA(commit))

	store, err := openStore(repoPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runner := analysis.NewRunner(store, fetcher)
	runner.Workers = c.Workers
	if !cli.Quiet {
		runner.Progress = func(phase string, pct float64) {
			fmt.Printf("\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	if _, err := runner.RunAnalysis(ctx, name, commit, c.Prev); err != nil {
		return fmt.Errorf("running analysis: %w", err)
	}

	if !cli.Quiet {
		fmt.Println() // Newline after progress
	}

	rec, err := store.ReadAnalysisResult(name, commit)
	if err != nil {
		return fmt.Errorf("reading result: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("analysis finished but no record stored for %s", commit)
	}

	if err := writeMeta(repoPath, name, rec, store); err != nil {
		return err
	}

	// Print summary
	color.Green("\n✓ Analysis complete")
	fmt.Printf("  Commit:      %s\n", shortSHA(rec.CommitSHA))
	if rec.PreviousSHA != "" {
		fmt.Printf("  Baseline:    %s\n", shortSHA(rec.PreviousSHA))
	}
	fmt.Printf("  Changes:     %d\n", len(rec.AtomicChanges))
	if rec.Impact != nil {
		fmt.Printf("  Direct:      %d\n", len(rec.Impact.Direct))
		fmt.Printf("  Transitive:  %d\n", len(rec.Impact.Transitive))
	}
	if len(rec.Warnings) > 0 {
		fmt.Printf("  Warnings:    %d\n", len(rec.Warnings))
	}
	fmt.Printf("  Duration:    %.2fs\n", rec.FinishedAt.Sub(rec.StartedAt).Seconds())

	fmt.Println("\nNext: Use `cascade result` to inspect the full record.")

	return nil
}

// ResultCmd shows a stored analysis record.
type ResultCmd struct {
	Commit string `arg:"" optional:"" help:"Commit (defaults to the last analyzed)"`
	Repo   string `help:"Path to repository" default:"."`
	Name   string `help:"Repository name override"`
	JSON   bool   `help:"Print the raw record as JSON"`
	List   bool   `short:"l" help:"List all stored analyses"`
}

// Run executes the result command.
func (c *ResultCmd) Run() error {
	repoPath, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	store, err := openStore(repoPath, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	name := repoDisplayName(repoPath, c.Name)

	if c.List {
		return printAnalysisList(store, name)
	}

	commit := c.Commit
	if commit == "" {
		commit, err = store.LatestSHA(name)
		if err != nil {
			return fmt.Errorf("reading latest commit: %w", err)
		}
		if commit == "" {
			return fmt.Errorf("no analyses stored for %s. Run 'cascade run' first", name)
		}
	} else {
		commit = resolveRev(repoPath, commit)
	}

	rec, err := store.ReadAnalysisResult(name, commit)
	if err != nil {
		return fmt.Errorf("reading result: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no analysis recorded for %s@%s", name, shortSHA(commit))
	}

	if c.JSON {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printRecord(name, rec)
	return nil
}

// GraphCmd inspects a stored graph snapshot.
type GraphCmd struct {
	Commit string `arg:"" optional:"" help:"Commit (defaults to the last analyzed)"`
	Repo   string `help:"Path to repository" default:"."`
	Name   string `help:"Repository name override"`
	ID     string `help:"Inspect a single entity by ID"`
	JSON   bool   `help:"Print the snapshot as JSON"`
}

// Run executes the graph command.
func (c *GraphCmd) Run() error {
	repoPath, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	store, err := openStore(repoPath, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	name := repoDisplayName(repoPath, c.Name)

	var snap *graph.Snapshot
	if c.Commit == "" {
		snap, err = store.PreviousGraph(name)
	} else {
		snap, err = store.GraphAt(name, resolveRev(repoPath, c.Commit))
	}
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	if snap == nil {
		return fmt.Errorf("no graph stored for %s. Run 'cascade run' first", name)
	}

	if c.JSON {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling snapshot: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if c.ID != "" {
		printEntity(snap, c.ID)
		return nil
	}

	printGraphStats(name, snap)
	return nil
}

// StatusCmd shows analysis status for a commit or the whole repository.
type StatusCmd struct {
	Commit string `arg:"" optional:"" help:"Show the stored status of one analyzed commit"`
	Repo   string `help:"Path to repository" default:"."`
	Name   string `help:"Repository name override"`
}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	repoPath, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	if c.Commit != "" {
		return printCommitStatus(repoPath, c.Name, c.Commit)
	}

	meta, err := readMeta(repoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no analysis found at %s. Run 'cascade run' first", repoPath)
		}
		return fmt.Errorf("reading meta.json: %w", err)
	}

	fmt.Printf("Analysis status for %s\n", repoPath)
	if version, ok := meta["version"].(string); ok {
		fmt.Printf("  Version:        %s\n", version)
	}
	if name, ok := meta["name"].(string); ok {
		fmt.Printf("  Repository:     %s\n", name)
	}
	if lastCommit, ok := meta["last_commit"].(string); ok {
		fmt.Printf("  Last commit:    %s\n", shortSHA(lastCommit))
	}
	if analyzedAt, ok := meta["analyzed_at"].(string); ok {
		fmt.Printf("  Analyzed at:    %s\n", analyzedAt)
	}
	if stats, ok := meta["stats"].(map[string]any); ok {
		if entities, ok := stats["entities"].(float64); ok {
			fmt.Printf("  Entities:       %.0f\n", entities)
		}
		if relations, ok := stats["relations"].(float64); ok {
			fmt.Printf("  Relations:      %.0f\n", relations)
		}
	}
	if analyses, ok := meta["analyses"].(float64); ok {
		fmt.Printf("  Analyses:       %.0f\n", analyses)
	}

	return nil
}

// printCommitStatus reports the persisted job state for one analyzed commit.
func printCommitStatus(repoPath, nameOverride, commit string) error {
	store, err := openStore(repoPath, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	name := repoDisplayName(repoPath, nameOverride)
	sha := resolveRev(repoPath, commit)

	rec, err := store.ReadAnalysisResult(name, sha)
	if err != nil {
		return fmt.Errorf("reading result: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no analysis recorded for %s@%s", name, shortSHA(sha))
	}

	fmt.Printf("Status of %s@%s\n", name, shortSHA(sha))
	fmt.Printf("  Status:      %s\n", rec.Status)
	if rec.PreviousSHA != "" {
		fmt.Printf("  Baseline:    %s\n", shortSHA(rec.PreviousSHA))
	}
	fmt.Printf("  Changes:     %d\n", len(rec.AtomicChanges))
	if rec.Impact != nil {
		fmt.Printf("  Impacted:    %d\n", len(rec.Impact.Transitive))
	}
	if rec.Error != "" {
		color.Red("  Error:       %s", rec.Error)
	}
	fmt.Printf("  Finished:    %s\n", rec.FinishedAt.UTC().Format(time.RFC3339))
	return nil
}

// WatchCmd analyzes new commits as they land on HEAD.
type WatchCmd struct {
	Repo    string `help:"Path to repository" default:"."`
	Name    string `help:"Repository name override"`
	Workers int    `help:"Parser worker count (defaults to GOMAXPROCS)"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(cli *CLI) error {
	repoPath, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	name := repoDisplayName(repoPath, c.Name)

	store, err := openStore(repoPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fmt.Println("## Watch Mode")
	fmt.Printf("Watching %s for new commits (Ctrl+C to stop)\n\n", repoPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	runner := analysis.NewRunner(store, fetch.NewGitFetcher(repoPath))
	runner.Workers = c.Workers
	if !cli.Quiet {
		runner.Progress = func(phase string, pct float64) {
			fmt.Printf("\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	onCommit := func(sha string) {
		color.Green("New commit %s", shortSHA(sha))
		if _, err := runner.RunAnalysis(ctx, name, sha, ""); err != nil {
			color.Red("Analysis failed: %v", err)
			return
		}
		if !cli.Quiet {
			fmt.Println()
		}
		rec, err := store.ReadAnalysisResult(name, sha)
		if err != nil || rec == nil {
			return
		}
		fmt.Printf("  Changes: %d", len(rec.AtomicChanges))
		if rec.Impact != nil {
			fmt.Printf(", impacted: %d", len(rec.Impact.Transitive))
		}
		fmt.Println()
	}

	// Catch up on the current HEAD before waiting for new commits.
	if sha, err := fetch.HeadSHA(repoPath); err == nil {
		if rec, err := store.ReadAnalysisResult(name, sha); err == nil && rec == nil {
			onCommit(sha)
		}
	}

	err = analysis.WatchHead(ctx, repoPath, func() (string, error) {
		return fetch.HeadSHA(repoPath)
	}, onCommit)
	if err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// AugmentCmd attaches AI summary fields to a stored record.
type AugmentCmd struct {
	Commit  string `arg:"" help:"Analyzed commit to augment"`
	Repo    string `help:"Path to repository" default:"."`
	Name    string `help:"Repository name override"`
	Summary string `help:"Change summary to attach"`
	Test    string `help:"Suggested test to attach"`
}

// Run executes the augment command.
func (c *AugmentCmd) Run() error {
	repoPath, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	store, err := openStore(repoPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	name := repoDisplayName(repoPath, c.Name)
	commit := resolveRev(repoPath, c.Commit)

	aug := analysis.Augmentation{AISummary: c.Summary, AISuggestedTest: c.Test}
	if err := store.AppendAugmentation(name, commit, aug); err != nil {
		return fmt.Errorf("augmenting %s@%s: %w", name, shortSHA(commit), err)
	}

	color.Green("✓ Augmented %s@%s", name, shortSHA(commit))
	return nil
}

// ServeMCPCmd starts the MCP server on stdio.
type ServeMCPCmd struct {
	Repo  string `help:"Path to repository" default:"."`
	Name  string `help:"Repository name override"`
	Watch bool   `short:"w" help:"Analyze new commits while serving"`
}

// Run executes the serve-mcp command.
func (c *ServeMCPCmd) Run() error {
	ctx := context.Background()
	repoPath, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	name := repoDisplayName(repoPath, c.Name)

	store, err := openStore(repoPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Note: No progress output - MCP server uses stdio for JSON-RPC only
	runner := analysis.NewRunner(store, fetch.NewGitFetcher(repoPath))
	server := mcp.NewServer(store, runner, name)

	if c.Watch {
		fmt.Fprintln(os.Stderr, "Starting MCP server with watch mode...")

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			err := analysis.WatchHead(watchCtx, repoPath, func() (string, error) {
				return fetch.HeadSHA(repoPath)
			}, func(sha string) {
				if _, err := runner.RunAnalysis(watchCtx, name, sha, ""); err != nil {
					fmt.Fprintf(os.Stderr, "Watch analysis failed: %v\n", err)
				}
			})
			if err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()
	} else {
		fmt.Fprintln(os.Stderr, "Starting MCP server...")
	}

	return server.Run(ctx, os.Stdin, os.Stdout)
}

// SetupCmd configures MCP for various AI clients.
type SetupCmd struct {
	Qwen     bool   `help:"Configure for Qwen CLI"`
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Global   bool   `help:"Create global configuration"`
	FilePath string `help:"Custom directory for the configuration file"`
}

// Run executes the setup command.
func (c *SetupCmd) Run() error {
	config := mcpClientConfig()

	// With no client selected, print the config for manual installation.
	if !c.Qwen && !c.Claude && !c.Cursor {
		data, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	clients := map[string]bool{"qwen": c.Qwen, "claude": c.Claude, "cursor": c.Cursor}
	for _, client := range []string{"qwen", "claude", "cursor"} {
		if !clients[client] {
			continue
		}
		path, err := clientConfigPath(client, c.Global, c.FilePath)
		if err != nil {
			return err
		}
		if err := writeClientConfig(path, config); err != nil {
			return err
		}
		color.Green("✓ Created %s MCP config at %s", client, path)
	}

	return nil
}

// CleanCmd deletes stored analyses for the repository.
type CleanCmd struct {
	Repo  string `help:"Path to repository" default:"."`
	Force bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	repoPath, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	cascadeDir := filepath.Join(repoPath, ".cascade")
	if _, err := os.Stat(cascadeDir); os.IsNotExist(err) {
		return fmt.Errorf("no analysis store found at %s. Nothing to clean", repoPath)
	}

	if !c.Force {
		fmt.Printf("Delete analysis store at %s? [y/N] ", cascadeDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(cascadeDir); err != nil {
		return fmt.Errorf("deleting store: %w", err)
	}

	color.Green("Deleted %s", cascadeDir)
	return nil
}

// Record printers

func printRecord(name string, rec *analysis.Record) {
	fmt.Printf("## Analysis for %s@%s\n\n", name, shortSHA(rec.CommitSHA))
	fmt.Printf("Status: %s\n", rec.Status)
	if rec.PreviousSHA != "" {
		fmt.Printf("Baseline: %s\n", shortSHA(rec.PreviousSHA))
	}
	if rec.Error != "" {
		color.Red("Error: %s", rec.Error)
	}

	if len(rec.AtomicChanges) == 0 {
		fmt.Println("\nNo structural changes.")
	} else {
		fmt.Printf("\n### Changes (%d)\n", len(rec.AtomicChanges))
		var lastFile string
		for _, ch := range rec.AtomicChanges {
			if ch.FilePath != lastFile {
				fmt.Printf("\n%s\n", ch.FilePath)
				lastFile = ch.FilePath
			}
			fmt.Printf("  %s %s\n", changeMarker(ch.Kind), ch.Detail)
		}
	}

	if rec.Impact != nil && len(rec.Impact.Direct) > 0 {
		fmt.Printf("\n### Impacted components (%d direct, %d total)\n",
			len(rec.Impact.Direct), len(rec.Impact.Transitive))
		for _, id := range rec.Impact.Direct {
			fmt.Printf("  - %s\n", id)
		}
		if indirect := len(rec.Impact.Transitive) - len(rec.Impact.Direct); indirect > 0 {
			fmt.Printf("  ... and %d more transitively\n", indirect)
		}
		if line := layerSummary(rec.Impact); line != "" {
			fmt.Printf("  Layers: %s\n", line)
		}
	} else {
		fmt.Println("\nNo impacted components.")
	}

	if len(rec.Warnings) > 0 {
		fmt.Printf("\n### Warnings (%d)\n", len(rec.Warnings))
		for _, w := range rec.Warnings {
			if w.FilePath != "" {
				fmt.Printf("  - [%s] %s: %s\n", w.Stage, w.FilePath, w.Message)
			} else {
				fmt.Printf("  - [%s] %s\n", w.Stage, w.Message)
			}
		}
	}

	if rec.AISummary != "" {
		fmt.Printf("\n### Summary\n%s\n", rec.AISummary)
	}
	if rec.AISuggestedTest != "" {
		fmt.Printf("\n### Suggested test\n%s\n", rec.AISuggestedTest)
	}
}

func printAnalysisList(store storage.Store, name string) error {
	records, err := store.ListAnalyses(name)
	if err != nil {
		return fmt.Errorf("listing analyses: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No analyses stored for %s\n", name)
		return nil
	}

	fmt.Printf("Analyses for %s:\n", name)
	for _, rec := range records {
		fmt.Printf("\n  %s\n", shortSHA(rec.CommitSHA))
		fmt.Printf("    Status:    %s\n", rec.Status)
		fmt.Printf("    Changes:   %d\n", len(rec.AtomicChanges))
		if rec.Impact != nil {
			fmt.Printf("    Impacted:  %d\n", len(rec.Impact.Transitive))
		}
		fmt.Printf("    Analyzed:  %s\n", rec.StartedAt.UTC().Format(time.RFC3339))
	}

	return nil
}

func printGraphStats(name string, snap *graph.Snapshot) {
	stats := snap.Stats()

	fmt.Printf("## Graph for %s@%s\n\n", name, shortSHA(snap.CommitSHA))
	fmt.Printf("  Entities:   %d\n", stats["entities"])
	for _, kind := range []graph.EntityKind{
		graph.KindClass, graph.KindMethod, graph.KindEndpoint,
		graph.KindComponent, graph.KindUnparsed, graph.KindExternal,
	} {
		if n := len(snap.ByKind(kind)); n > 0 {
			fmt.Printf("    %-11s %d\n", string(kind)+":", n)
		}
	}
	fmt.Printf("  Relations:  %d\n", stats["relations"])

	var layers []string
	for _, layer := range []graph.Layer{graph.LayerBackend, graph.LayerAPI, graph.LayerUI} {
		if n := stats[string(layer)]; n > 0 {
			layers = append(layers, fmt.Sprintf("%s %d", layer, n))
		}
	}
	if len(layers) > 0 {
		fmt.Printf("  Layers:     %s\n", strings.Join(layers, ", "))
	}
}

func printEntity(snap *graph.Snapshot, id string) {
	entity, ok := snap.Entity(id)
	if !ok {
		fmt.Printf("Entity '%s' not found in the graph.\n", id)
		return
	}

	fmt.Printf("## %s\n\n", entity.ID)
	fmt.Printf("Kind:  %s\n", entity.Kind)
	fmt.Printf("Layer: %s\n", entity.Layer)
	if entity.FilePath != "" {
		fmt.Printf("File:  %s\n", entity.FilePath)
	}
	if entity.StartLine > 0 && entity.EndLine > 0 {
		fmt.Printf("Lines: %d-%d\n", entity.StartLine, entity.EndLine)
	}
	if entity.Parent != "" {
		fmt.Printf("Parent: %s\n", entity.Parent)
	}
	if entity.Route != "" {
		fmt.Printf("Route: %s %s\n", entity.HTTPMethod, entity.Route)
	}
	fmt.Println()

	dependents := snap.Dependents(id)
	if len(dependents) > 0 {
		fmt.Printf("### Dependents (%d)\n", len(dependents))
		for _, rel := range dependents {
			fmt.Printf("- %s (%s)\n", rel.From, rel.Kind)
		}
	} else {
		fmt.Println("### Dependents")
		fmt.Println("None")
	}
	fmt.Println()

	dependencies := snap.Dependencies(id)
	if len(dependencies) > 0 {
		fmt.Printf("### Dependencies (%d)\n", len(dependencies))
		for _, rel := range dependencies {
			fmt.Printf("- %s (%s)\n", rel.To, rel.Kind)
		}
	} else {
		fmt.Println("### Dependencies")
		fmt.Println("None")
	}
}

func changeMarker(kind analysis.ChangeKind) string {
	switch kind {
	case analysis.ChangeMethodAdded:
		return "+"
	case analysis.ChangeMethodChanged:
		return "~"
	case analysis.ChangeMethodDeleted, analysis.ChangeClassDeleted:
		return "-"
	default:
		return "?"
	}
}

func layerSummary(impact *analysis.ImpactRecord) string {
	var parts []string
	for _, layer := range []graph.Layer{graph.LayerBackend, graph.LayerAPI, graph.LayerUI} {
		if n := len(impact.ByLayer[layer]); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", layer, n))
		}
	}
	return strings.Join(parts, ", ")
}

// Store and metadata helpers

func openStore(repoPath string, readOnly bool) (*storage.BadgerStore, error) {
	dbPath := filepath.Join(repoPath, ".cascade", "store")
	if readOnly {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("no analysis store found at %s. Run 'cascade run' first", repoPath)
		}
	} else if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating .cascade directory: %w", err)
	}

	store := storage.NewBadgerStore()
	if err := store.Initialize(dbPath, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	return store, nil
}

func writeMeta(repoPath, name string, rec *analysis.Record, store storage.Store) error {
	stats := map[string]int{}
	if snap, err := store.GraphAt(name, rec.CommitSHA); err == nil && snap != nil {
		stats = snap.Stats()
	}
	analyses, _ := store.ListAnalyses(name)

	meta := map[string]any{
		"version":     Version,
		"name":        name,
		"path":        repoPath,
		"last_commit": rec.CommitSHA,
		"analyzed_at": time.Now().UTC().Format(time.RFC3339),
		"analyses":    len(analyses),
		"stats":       stats,
	}

	metaPath := filepath.Join(repoPath, ".cascade", "meta.json")
	metaJSON, _ := json.MarshalIndent(meta, "", "  ")
	if err := os.WriteFile(metaPath, metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}
	return nil
}

func readMeta(repoPath string) (map[string]any, error) {
	metaBytes, err := os.ReadFile(filepath.Join(repoPath, ".cascade", "meta.json"))
	if err != nil {
		return nil, err
	}
	var meta map[string]any
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("parsing meta.json: %w", err)
	}
	return meta, nil
}

// repoDisplayName picks the record key for a repository: explicit override,
// then the name recorded in meta.json, then the directory name.
func repoDisplayName(repoPath, override string) string {
	if override != "" {
		return override
	}
	if meta, err := readMeta(repoPath); err == nil {
		if name, ok := meta["name"].(string); ok && name != "" {
			return name
		}
	}
	return filepath.Base(repoPath)
}

// resolveRev resolves a ref or short SHA to a full SHA where git can; keys
// that never were revisions (worktree analyses) pass through unchanged.
func resolveRev(repoPath, rev string) string {
	if sha, err := fetch.ResolveSHA(repoPath, rev); err == nil {
		return sha
	}
	return rev
}

func shortSHA(sha string) string {
	if len(sha) == 40 {
		return sha[:12]
	}
	return sha
}

// MCP client configuration

func mcpClientConfig() map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"cascade": map[string]any{
				"command": "cascade",
				"args":    []string{"serve-mcp"},
			},
		},
	}
}

func clientConfigPath(client string, global bool, override string) (string, error) {
	if override != "" {
		return filepath.Join(override, "mcp.json"), nil
	}

	configDir := map[string]string{
		"qwen":   ".qwen",
		"claude": ".claude",
		"cursor": ".cursor",
	}[client]

	if global {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(homeDir, configDir, "mcp.json"), nil
	}
	return filepath.Join(".", configDir, "mcp.json"), nil
}

func writeClientConfig(configPath string, config map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	content, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	content = append(content, '\n')

	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Quiet   bool             `short:"q" help:"Suppress progress output"`

	// Commands
	Run      RunCmd      `cmd:"" help:"Analyze a commit and record its impact"`
	Result   ResultCmd   `cmd:"" help:"Show a stored analysis record"`
	Graph    GraphCmd    `cmd:"" help:"Inspect a stored graph snapshot"`
	Status   StatusCmd   `cmd:"" help:"Show analysis status for a commit or repository"`
	Watch    WatchCmd    `cmd:"" help:"Analyze new commits as they land"`
	Augment  AugmentCmd  `cmd:"" help:"Attach an AI summary to a stored record"`
	ServeMCP ServeMCPCmd `cmd:"" name:"serve-mcp" help:"Start MCP server (stdio transport)"`
	Setup    SetupCmd    `cmd:"" help:"Configure MCP for Claude Code / Cursor"`
	Clean    CleanCmd    `cmd:"" help:"Delete stored analyses for a repository"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("cascade"),
		kong.Description("Commit-scoped dependency graphs and change impact for polyglot repos"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	return kongCtx.Run(c)
}
