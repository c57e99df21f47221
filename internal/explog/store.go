package explog

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the append-only record store. Append must be atomic per record:
// concurrent evaluation workers may append without further coordination.
type Store interface {
	// Append commits one record and returns its assigned sequence number.
	Append(ctx context.Context, rec Record) (int64, error)
	// List returns all records in append order.
	List(ctx context.Context) ([]Record, error)
	// Len returns the number of committed records.
	Len(ctx context.Context) (int64, error)
	// Close releases store resources.
	Close() error
}

// Open selects a store implementation from the path: empty means in-memory,
// a .db/.sqlite/.sqlite3 extension selects SQLite, anything else is a JSONL
// file store.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteStore(path)
	default:
		return OpenFileStore(path)
	}
}

// MemoryStore keeps records in memory. Used by tests and short-lived runs
// that do not persist history.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append commits the record under the store lock.
func (s *MemoryStore) Append(ctx context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Seq = int64(len(s.records)) + 1
	s.records = append(s.records, rec)
	return rec.Seq, nil
}

// List returns a copy of all records in append order.
func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Len returns the number of records.
func (s *MemoryStore) Len(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
