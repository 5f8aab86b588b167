package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Benny93/cascade-go/internal/analysis"
	"github.com/Benny93/cascade-go/internal/graph"
)

// MemoryStore is an in-memory implementation of Store for testing.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*graph.Snapshot
	records   map[string]*analysis.Record
	latest    map[string]string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*graph.Snapshot),
		records:   make(map[string]*analysis.Record),
		latest:    make(map[string]string),
	}
}

// Initialize implements Store.
func (m *MemoryStore) Initialize(path string, readOnly bool) error {
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = nil
	m.records = nil
	m.latest = nil
	return nil
}

// PreviousGraph implements Store.
func (m *MemoryStore) PreviousGraph(repoID string) (*graph.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sha, ok := m.latest[repoID]
	if !ok {
		return nil, nil
	}
	snap, ok := m.snapshots[memKey(repoID, sha)]
	if !ok {
		return nil, fmt.Errorf("snapshot for latest commit %s missing", sha)
	}
	return snap, nil
}

// GraphAt implements Store.
func (m *MemoryStore) GraphAt(repoID, commitSHA string) (*graph.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[memKey(repoID, commitSHA)], nil
}

// WriteGraphSnapshot implements Store.
func (m *MemoryStore) WriteGraphSnapshot(snap *graph.Snapshot) error {
	if snap == nil || snap.RepoID == "" || snap.CommitSHA == "" {
		return fmt.Errorf("snapshot missing repo or commit")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(snap.RepoID, snap.CommitSHA)
	if _, ok := m.snapshots[key]; ok {
		return analysis.ErrResultFinalized
	}
	m.snapshots[key] = snap
	return nil
}

// WriteAnalysisResult implements Store.
func (m *MemoryStore) WriteAnalysisResult(rec *analysis.Record) error {
	if rec == nil || rec.RepoID == "" || rec.CommitSHA == "" {
		return fmt.Errorf("record missing repo or commit")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(rec.RepoID, rec.CommitSHA)
	if _, ok := m.records[key]; ok {
		return analysis.ErrResultFinalized
	}
	m.records[key] = rec
	m.latest[rec.RepoID] = rec.CommitSHA
	return nil
}

// ReadAnalysisResult implements Store.
func (m *MemoryStore) ReadAnalysisResult(repoID, commitSHA string) (*analysis.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[memKey(repoID, commitSHA)], nil
}

// ListAnalyses implements Store.
func (m *MemoryStore) ListAnalyses(repoID string) ([]*analysis.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*analysis.Record
	for key, rec := range m.records {
		if strings.HasPrefix(key, repoID+"@") {
			records = append(records, rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].StartedAt.Before(records[j].StartedAt)
		}
		return records[i].CommitSHA < records[j].CommitSHA
	})
	return records, nil
}

// LatestSHA implements Store.
func (m *MemoryStore) LatestSHA(repoID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest[repoID], nil
}

// AppendAugmentation implements Store.
func (m *MemoryStore) AppendAugmentation(repoID, commitSHA string, aug analysis.Augmentation) error {
	if aug.AISummary == "" && aug.AISuggestedTest == "" {
		return fmt.Errorf("empty augmentation")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[memKey(repoID, commitSHA)]
	if !ok {
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
	return nil
}

func memKey(repoID, commitSHA string) string {
	return repoID + "@" + commitSHA
}
