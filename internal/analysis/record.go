// Package analysis drives the per-commit pipeline: parse the fetched file
// set, build the dependency snapshot, classify atomic changes against the
// previous snapshot, walk the impact radius, persist the result.
package analysis

import (
	"time"

	"github.com/Benny93/cascade-go/internal/graph"
)

// Status is a state of the analysis job state machine. Jobs walk the fixed
// path Pending -> Parsing -> GraphBuilt -> DiffComputed -> ImpactComputed ->
// Completed; Failed is reachable from every non-terminal state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusParsing        Status = "parsing"
	StatusGraphBuilt     Status = "graph_built"
	StatusDiffComputed   Status = "diff_computed"
	StatusImpactComputed Status = "impact_computed"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

func (s Status) String() string { return string(s) }

// Terminal reports whether the state admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var nextStatus = map[Status]Status{
	StatusPending:        StatusParsing,
	StatusParsing:        StatusGraphBuilt,
	StatusGraphBuilt:     StatusDiffComputed,
	StatusDiffComputed:   StatusImpactComputed,
	StatusImpactComputed: StatusCompleted,
}

// CanTransition reports whether moving from s to t is a legal step: the next
// state on the happy path, or Failed from any non-terminal state.
func (s Status) CanTransition(t Status) bool {
	if s.Terminal() {
		return false
	}
	if t == StatusFailed {
		return true
	}
	return nextStatus[s] == t
}

// ChangeKind classifies one atomic change.
type ChangeKind string

const (
	ChangeMethodAdded   ChangeKind = "AM"
	ChangeMethodChanged ChangeKind = "CM"
	ChangeMethodDeleted ChangeKind = "DM"
	ChangeClassDeleted  ChangeKind = "DC"
)

// AtomicChange is one method- or class-level change between two commits.
type AtomicChange struct {
	Kind     ChangeKind `json:"kind"`
	EntityID string     `json:"entity_id"`
	FilePath string     `json:"file_path"`
	Parent   string     `json:"parent,omitempty"`
	Method   string     `json:"method,omitempty"`
	Detail   string     `json:"detail"`
	Line     int        `json:"line,omitempty"`
}

// ImpactRecord is the impact radius of one commit's changes. Direct and
// Transitive hold dependents only: the changed entities themselves live in
// Changed. ByLayer partitions Transitive by layer tag.
type ImpactRecord struct {
	CommitSHA  string                   `json:"commit_sha"`
	Changed    []string                 `json:"changed"`
	Direct     []string                 `json:"direct"`
	Transitive []string                 `json:"transitive"`
	ByLayer    map[graph.Layer][]string `json:"by_layer"`
}

// Warning is a non-fatal problem surfaced by a completed run.
type Warning struct {
	Stage    string `json:"stage"`
	FilePath string `json:"file_path,omitempty"`
	Message  string `json:"message"`
}

// Record is the persisted result of one commit analysis. AISummary and
// AISuggestedTest are appended later by the augmentation consumer; the core
// writes them empty and never reads them back.
type Record struct {
	RepoID          string         `json:"repo_name"`
	CommitSHA       string         `json:"commit_sha"`
	PreviousSHA     string         `json:"previous_commit_sha,omitempty"`
	Status          Status         `json:"status"`
	AtomicChanges   []AtomicChange `json:"atomic_changes"`
	Impact          *ImpactRecord  `json:"impacted_components,omitempty"`
	Warnings        []Warning      `json:"warnings,omitempty"`
	Error           string         `json:"error,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	AISummary       string         `json:"ai_summary,omitempty"`
	AISuggestedTest string         `json:"ai_suggested_test,omitempty"`
}

// Augmentation is the AI-generated supplement appended to a completed record.
type Augmentation struct {
	AISummary       string `json:"ai_summary"`
	AISuggestedTest string `json:"ai_suggested_test"`
}
