package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/cascade-go/internal/analysis"
	"github.com/Benny93/cascade-go/internal/graph"
)

// Key prefixes for different data types
const (
	prefixGraph  = "g:" // graph snapshots, keyed g:<repo>@<commit>
	prefixRecord = "a:" // analysis records, keyed a:<repo>@<commit>
	prefixLatest = "l:" // latest analyzed commit, keyed l:<repo>
)

// BadgerStore is a BadgerDB-backed store implementation.
type BadgerStore struct {
	db *badger.DB
	mu sync.RWMutex
}

// NewBadgerStore creates a new BadgerDB store.
func NewBadgerStore() *BadgerStore {
	return &BadgerStore{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (s *BadgerStore) Initialize(path string, readOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	s.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	return nil
}

// Close releases all resources held by the store.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// PreviousGraph returns the snapshot of the most recently analyzed commit.
func (s *BadgerStore) PreviousGraph(repoID string) (*graph.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	sha, err := readLatest(txn, repoID)
	if err != nil {
		return nil, err
	}
	if sha == "" {
		return nil, nil
	}

	snap, err := readSnapshot(txn, repoID, sha)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("snapshot for latest commit %s missing", sha)
	}
	return snap, nil
}

// GraphAt returns the snapshot stored for the commit, or nil if none is stored.
func (s *BadgerStore) GraphAt(repoID, commitSHA string) (*graph.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return readSnapshot(txn, repoID, commitSHA)
}

// WriteGraphSnapshot stores a snapshot under its (repo, commit) key, once.
func (s *BadgerStore) WriteGraphSnapshot(snap *graph.Snapshot) error {
	if snap == nil || snap.RepoID == "" || snap.CommitSHA == "" {
		return fmt.Errorf("snapshot missing repo or commit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	key := storeKey(prefixGraph, snap.RepoID, snap.CommitSHA)
	if _, err := txn.Get(key); err == nil {
		return analysis.ErrResultFinalized
	} else if err != badger.ErrKeyNotFound {
		return fmt.Errorf("checking snapshot: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("setting snapshot: %w", err)
	}

	return txn.Commit()
}

// WriteAnalysisResult stores a record under its (repo, commit) key, once,
// and advances the latest-commit pointer in the same transaction.
func (s *BadgerStore) WriteAnalysisResult(rec *analysis.Record) error {
	if rec == nil || rec.RepoID == "" || rec.CommitSHA == "" {
		return fmt.Errorf("record missing repo or commit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	key := storeKey(prefixRecord, rec.RepoID, rec.CommitSHA)
	if _, err := txn.Get(key); err == nil {
		return analysis.ErrResultFinalized
	} else if err != badger.ErrKeyNotFound {
		return fmt.Errorf("checking record: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("setting record: %w", err)
	}
	if err := txn.Set([]byte(prefixLatest+rec.RepoID), []byte(rec.CommitSHA)); err != nil {
		return fmt.Errorf("setting latest pointer: %w", err)
	}

	return txn.Commit()
}

// ReadAnalysisResult returns the record stored for the commit, or nil if
// none is stored.
func (s *BadgerStore) ReadAnalysisResult(repoID, commitSHA string) (*analysis.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return readRecord(txn, repoID, commitSHA)
}

// ListAnalyses returns all records stored for the repository, oldest first.
func (s *BadgerStore) ListAnalyses(repoID string) ([]*analysis.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixRecord + repoID + "@")
	it := txn.NewIterator(opts)
	defer it.Close()

	var records []*analysis.Record
	for it.Rewind(); it.Valid(); it.Next() {
		var rec analysis.Record
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling record: %w", err)
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].StartedAt.Before(records[j].StartedAt)
		}
		return records[i].CommitSHA < records[j].CommitSHA
	})
	return records, nil
}

// LatestSHA returns the most recently analyzed commit, or "" if none.
func (s *BadgerStore) LatestSHA(repoID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return readLatest(txn, repoID)
}

// AppendAugmentation attaches AI summary fields to a completed record.
func (s *BadgerStore) AppendAugmentation(repoID, commitSHA string, aug analysis.Augmentation) error {
	if aug.AISummary == "" && aug.AISuggestedTest == "" {
		return fmt.Errorf("empty augmentation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	rec, err := readRecord(txn, repoID, commitSHA)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrRecordNotFound
	}
	if !rec.Status.Terminal() {
		return fmt.Errorf("analysis %s@%s is %s, not terminal", repoID, commitSHA, rec.Status)
	}
	if rec.AISummary != "" || rec.AISuggestedTest != "" {
		return ErrAlreadyAugmented
	}

	rec.AISummary = aug.AISummary
	rec.AISuggestedTest = aug.AISuggestedTest

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	if err := txn.Set(storeKey(prefixRecord, repoID, commitSHA), data); err != nil {
		return fmt.Errorf("setting record: %w", err)
	}

	return txn.Commit()
}

// readLatest reads the latest-commit pointer, "" when absent.
func readLatest(txn *badger.Txn, repoID string) (string, error) {
	item, err := txn.Get([]byte(prefixLatest + repoID))
	if err == badger.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting latest pointer: %w", err)
	}

	var sha string
	if err := item.Value(func(val []byte) error {
		sha = string(val)
		return nil
	}); err != nil {
		return "", fmt.Errorf("reading latest pointer: %w", err)
	}
	return sha, nil
}

// readSnapshot reads a snapshot by key, nil when absent.
func readSnapshot(txn *badger.Txn, repoID, commitSHA string) (*graph.Snapshot, error) {
	item, err := txn.Get(storeKey(prefixGraph, repoID, commitSHA))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot: %w", err)
	}

	var snap graph.Snapshot
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &snap)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

// readRecord reads a record by key, nil when absent.
func readRecord(txn *badger.Txn, repoID, commitSHA string) (*analysis.Record, error) {
	item, err := txn.Get(storeKey(prefixRecord, repoID, commitSHA))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	var rec analysis.Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling record: %w", err)
	}
	return &rec, nil
}

// storeKey returns the BadgerDB key for a (repo, commit) pair.
func storeKey(prefix, repoID, commitSHA string) []byte {
	return []byte(prefix + repoID + "@" + commitSHA)
}
