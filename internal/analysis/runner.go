package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Benny93/cascade-go/internal/graph"
)

// Fetcher materializes the full file set of one commit, ordered by path.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, repoID, commitSHA string) ([]File, error)
}

// Store persists snapshots and analysis records keyed by (repo, commit).
// Reads return (nil, nil) when nothing is stored. Writes are first-write
// only; a second write for the same key returns ErrResultFinalized.
type Store interface {
	// PreviousGraph returns the snapshot of the most recently analyzed
	// commit, or nil for a fresh repository.
	PreviousGraph(repoID string) (*graph.Snapshot, error)
	// GraphAt returns the snapshot stored for an explicit commit.
	GraphAt(repoID, commitSHA string) (*graph.Snapshot, error)
	WriteGraphSnapshot(snap *graph.Snapshot) error
	// WriteAnalysisResult stores a completed record and advances the
	// repository's latest-commit pointer.
	WriteAnalysisResult(rec *Record) error
	ReadAnalysisResult(repoID, commitSHA string) (*Record, error)
}

// ProgressFunc is called with a phase name and progress (0.0-1.0).
type ProgressFunc func(phase string, progress float64)

// JobID identifies one analysis run: "{repoID}@{commitSHA}".
type JobID string

// NewJobID derives the job key for a commit analysis.
func NewJobID(repoID, commitSHA string) JobID {
	return JobID(repoID + "@" + commitSHA)
}

// Job tracks the in-process state of one analysis run. The persisted record
// is the durable answer; the job only serves status queries while the run is
// in flight.
type Job struct {
	ID        JobID
	RepoID    string
	CommitSHA string

	mu     sync.Mutex
	status Status
	err    error
}

// Status returns the job's current state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns the failure cause for a Failed job, nil otherwise.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) advance(to Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.CanTransition(to) {
		j.status = to
	}
}

func (j *Job) complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.status.Terminal() {
		j.status = StatusCompleted
	}
}

func (j *Job) fail(cause error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = StatusFailed
	j.err = cause
}

// Runner drives the analysis pipeline for a repository.
type Runner struct {
	Store    Store
	Fetcher  Fetcher
	Workers  int          // parse pool size, 0 means GOMAXPROCS
	Progress ProgressFunc // optional

	mu   sync.Mutex
	jobs map[JobID]*Job
}

// NewRunner creates a Runner over the given store and fetcher.
func NewRunner(store Store, fetcher Fetcher) *Runner {
	return &Runner{
		Store:   store,
		Fetcher: fetcher,
		jobs:    make(map[JobID]*Job),
	}
}

// Job returns the in-process job for an ID, if this process started it.
func (r *Runner) Job(id JobID) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// RunAnalysis analyzes one commit end to end: fetch, parse, build, diff,
// impact, persist. previousSHA selects the baseline snapshot; empty means
// the repository's latest analyzed commit. The returned JobID is queryable
// via Job; the persisted record via Store.ReadAnalysisResult. A commit that
// already has a finalized record is not recomputed, and a concurrent run
// losing the first-write race discards its result and observes the winner's
// record.
func (r *Runner) RunAnalysis(ctx context.Context, repoID, commitSHA, previousSHA string) (JobID, error) {
	job := r.track(repoID, commitSHA)
	if err := r.run(ctx, job, previousSHA); err != nil {
		job.fail(err)
		return job.ID, err
	}
	return job.ID, nil
}

func (r *Runner) track(repoID, commitSHA string) *Job {
	job := &Job{
		ID:        NewJobID(repoID, commitSHA),
		RepoID:    repoID,
		CommitSHA: commitSHA,
		status:    StatusPending,
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

func (r *Runner) run(ctx context.Context, job *Job, previousSHA string) error {
	repoID, commitSHA := job.RepoID, job.CommitSHA

	existing, err := r.Store.ReadAnalysisResult(repoID, commitSHA)
	if err != nil {
		return &PersistenceError{Op: "read record", Cause: err}
	}
	if existing != nil {
		job.complete()
		return nil
	}

	started := time.Now().UTC()
	warnings := []Warning{}

	// Phase 1: Fetch
	r.emit("Fetching snapshot", 0.0)
	files, err := r.Fetcher.FetchSnapshot(ctx, repoID, commitSHA)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &TimeoutError{Phase: "fetch", Cause: ctxErr}
		}
		return &FetchError{RepoID: repoID, CommitSHA: commitSHA, Cause: err}
	}
	r.emit("Fetching snapshot", 1.0)

	previous, resolvedPrev, prevWarnings, err := r.previousTable(repoID, previousSHA)
	if err != nil {
		return err
	}
	warnings = append(warnings, prevWarnings...)

	// Phase 2: Parse
	job.advance(StatusParsing)
	r.emit("Parsing files", 0.0)
	entities, relations, parseWarnings, err := ParseFiles(ctx, files, r.Workers)
	if err != nil {
		return &TimeoutError{Phase: "parse", Cause: err}
	}
	warnings = append(warnings, parseWarnings...)
	r.emit("Parsing files", 1.0)

	// Phase 3: Build graph
	r.emit("Building graph", 0.0)
	builder := graph.NewBuilder(repoID, commitSHA)
	for _, e := range entities {
		builder.AddEntity(e)
	}
	for _, rel := range relations {
		builder.AddRelation(rel)
	}
	snap := builder.Build()
	job.advance(StatusGraphBuilt)
	warnings = append(warnings, danglingWarnings(snap)...)
	r.emit("Building graph", 1.0)

	// Phase 4: Diff
	if err := checkDeadline(ctx, "diff"); err != nil {
		return err
	}
	r.emit("Computing diff", 0.0)
	changes := Diff(previous, snap.Entities)
	job.advance(StatusDiffComputed)
	r.emit("Computing diff", 1.0)

	// Phase 5: Impact
	r.emit("Tracing impact", 0.0)
	impact := ComputeImpact(snap, changes)
	job.advance(StatusImpactComputed)
	r.emit("Tracing impact", 1.0)

	// Phase 6: Persist
	if err := checkDeadline(ctx, "persist"); err != nil {
		return err
	}
	r.emit("Persisting results", 0.0)
	if err := r.Store.WriteGraphSnapshot(snap); err != nil && !errors.Is(err, ErrResultFinalized) {
		return &PersistenceError{Op: "write snapshot", Cause: err}
	}
	rec := &Record{
		RepoID:        repoID,
		CommitSHA:     commitSHA,
		PreviousSHA:   resolvedPrev,
		Status:        StatusCompleted,
		AtomicChanges: changes,
		Impact:        impact,
		Warnings:      warnings,
		StartedAt:     started,
		FinishedAt:    time.Now().UTC(),
	}
	if err := r.Store.WriteAnalysisResult(rec); err != nil {
		if errors.Is(err, ErrResultFinalized) {
			job.complete()
			return nil
		}
		return &PersistenceError{Op: "write record", Cause: err}
	}
	r.emit("Persisting results", 1.0)

	job.complete()
	return nil
}

// previousTable loads the baseline entity table. An explicit previous commit
// with no stored snapshot degrades to an empty baseline with a warning, the
// way a fresh repository does.
func (r *Runner) previousTable(repoID, previousSHA string) ([]graph.Entity, string, []Warning, error) {
	if previousSHA == "" {
		snap, err := r.Store.PreviousGraph(repoID)
		if err != nil {
			return nil, "", nil, &PersistenceError{Op: "read previous graph", Cause: err}
		}
		if snap == nil {
			return nil, "", nil, nil
		}
		return snap.Entities, snap.CommitSHA, nil, nil
	}
	snap, err := r.Store.GraphAt(repoID, previousSHA)
	if err != nil {
		return nil, "", nil, &PersistenceError{Op: "read previous graph", Cause: err}
	}
	if snap == nil {
		warn := Warning{
			Stage:   "fetch",
			Message: fmt.Sprintf("no snapshot stored for commit %s, diffing against an empty graph", previousSHA),
		}
		return nil, previousSHA, []Warning{warn}, nil
	}
	return snap.Entities, previousSHA, nil, nil
}

// danglingWarnings surfaces call and endpoint references that resolved to
// placeholder entities. Import edges onto external classes are the normal
// shape of any repository that uses libraries and stay silent.
func danglingWarnings(snap *graph.Snapshot) []Warning {
	var warnings []Warning
	seen := make(map[string]bool)
	for _, rel := range snap.Relations {
		if rel.Kind == graph.RelImports || seen[rel.To] {
			continue
		}
		e, ok := snap.Entity(rel.To)
		if !ok || e.Kind != graph.KindExternal {
			continue
		}
		seen[rel.To] = true
		warnings = append(warnings, Warning{
			Stage:   "graph",
			Message: fmt.Sprintf("%s is referenced but not defined in this snapshot", rel.To),
		})
	}
	return warnings
}

func checkDeadline(ctx context.Context, phase string) error {
	if err := ctx.Err(); err != nil {
		return &TimeoutError{Phase: phase, Cause: err}
	}
	return nil
}

func (r *Runner) emit(phase string, progress float64) {
	if r.Progress != nil {
		r.Progress(phase, progress)
	}
}
