package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrResultFinalized is returned by the store when a snapshot or record for
// a commit has already been written. The runner treats it as "another run
// won this commit", not as a failure.
var ErrResultFinalized = errors.New("analysis result already finalized")

// ParseError reports a single file that could not be parsed. Non-fatal: the
// file is registered as an unparsed stub and the pipeline continues.
type ParseError struct {
	FilePath string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.FilePath, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ConsistencyError reports the same qualified name extracted from more than
// one file. Non-fatal: the occurrence from the lexically smallest file path
// wins.
type ConsistencyError struct {
	EntityID  string
	FilePaths []string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("entity %s defined in multiple files: %s", e.EntityID, strings.Join(e.FilePaths, ", "))
}

// FetchError reports a snapshot that could not be materialized. Fatal: the
// job fails without touching the store.
type FetchError struct {
	RepoID    string
	CommitSHA string
	Cause     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s@%s: %v", e.RepoID, e.CommitSHA, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// PersistenceError reports a failed store operation. Fatal.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// TimeoutError reports a phase cut short by the caller's deadline. Fatal; no
// partial snapshot is committed.
type TimeoutError struct {
	Phase string
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Phase, e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }
