// Package storage persists graph snapshots and analysis records for Cascade.
//
// It defines the Store protocol that all storage implementations must
// satisfy. Snapshots and records are write-once per (repo, commit) key;
// attempts to overwrite return analysis.ErrResultFinalized so concurrent
// writers can discard their copy and observe the stored one.
package storage

import (
	"errors"

	"github.com/Benny93/cascade-go/internal/analysis"
	"github.com/Benny93/cascade-go/internal/graph"
)

var (
	// ErrRecordNotFound is returned when an augmentation targets a commit
	// with no stored analysis record.
	ErrRecordNotFound = errors.New("no analysis result stored")

	// ErrAlreadyAugmented is returned when a record already carries AI
	// augmentation.
	ErrAlreadyAugmented = errors.New("analysis result already augmented")
)

// Store is the persistence protocol for analysis state.
type Store interface {
	// Initialize prepares the store at the given path.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the store.
	Close() error

	// PreviousGraph returns the snapshot of the most recently analyzed
	// commit, or nil if the repository has never been analyzed.
	PreviousGraph(repoID string) (*graph.Snapshot, error)

	// GraphAt returns the snapshot stored for the commit, or nil if none
	// is stored.
	GraphAt(repoID, commitSHA string) (*graph.Snapshot, error)

	// WriteGraphSnapshot stores a snapshot under its (repo, commit) key.
	// Returns analysis.ErrResultFinalized if one is already stored.
	WriteGraphSnapshot(snap *graph.Snapshot) error

	// WriteAnalysisResult stores a record under its (repo, commit) key and
	// advances the repository's latest-commit pointer. Returns
	// analysis.ErrResultFinalized if a record is already stored.
	WriteAnalysisResult(rec *analysis.Record) error

	// ReadAnalysisResult returns the record stored for the commit, or nil
	// if none is stored.
	ReadAnalysisResult(repoID, commitSHA string) (*analysis.Record, error)

	// ListAnalyses returns all records stored for the repository, oldest
	// first.
	ListAnalyses(repoID string) ([]*analysis.Record, error)

	// LatestSHA returns the most recently analyzed commit, or "" if the
	// repository has never been analyzed.
	LatestSHA(repoID string) (string, error)

	// AppendAugmentation attaches AI summary fields to a completed record.
	// The record itself stays immutable otherwise: augmenting a missing
	// record returns ErrRecordNotFound, augmenting twice returns
	// ErrAlreadyAugmented.
	AppendAugmentation(repoID, commitSHA string, aug analysis.Augmentation) error
}

var (
	_ Store          = (*BadgerStore)(nil)
	_ Store          = (*MemoryStore)(nil)
	_ analysis.Store = (*BadgerStore)(nil)
	_ analysis.Store = (*MemoryStore)(nil)
)
