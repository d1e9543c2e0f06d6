// Package history keeps an append-only audit trail of completed chatbot runs.
//
// Records are written after a run finishes and are never read back by a
// workflow. Backends live in the sqlite, postgres and redis subpackages;
// MemoryStore is the default when no backend is configured.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 20

// ErrNotFound is returned by Load for an unknown record ID.
var ErrNotFound = errors.New("history record not found")

// Record describes one completed question.
type Record struct {
	ID        string        `json:"id"`
	Question  string        `json:"question"`
	Route     string        `json:"route"`
	Terminal  string        `json:"terminal"`
	SQLQuery  string        `json:"sql_query,omitempty"`
	Attempts  int           `json:"attempts"`
	Answer    string        `json:"answer"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists run records.
type Store interface {
	// Save appends a record. A record without ID or CreatedAt gets both.
	Save(ctx context.Context, rec *Record) error
	// Load returns the record with the given ID or ErrNotFound.
	Load(ctx context.Context, id string) (*Record, error)
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

// Prepare fills in the ID and timestamp of a record about to be saved.
func Prepare(rec *Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

// NormalizeLimit maps a non-positive limit to DefaultListLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	byID    map[string]*Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Record)}
}

func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("nil history record")
	}
	Prepare(rec)
	cp := *rec

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byID[cp.ID]; dup {
		return errors.New("history record " + cp.ID + " already exists")
	}
	m.records = append(m.records, &cp)
	m.byID[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]*Record, error) {
	limit = NormalizeLimit(limit)

	m.mu.RLock()
	out := make([]*Record, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		cp := *m.records[i]
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
