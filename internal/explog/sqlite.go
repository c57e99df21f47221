package explog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in a single-file SQLite database. The backend
// and timestamp are stored as columns alongside the JSON payload so external
// tooling can query the log without decoding payloads.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) a SQLite experience log.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open experience db %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open experience db %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			backend TEXT NOT NULL,
			payload BLOB NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append commits one record in a transaction: the sequence number is
// reserved and the payload written atomically.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM records`).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to reserve sequence number: %w", err)
	}
	rec.Seq = next

	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal experience record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (seq, ts, backend, payload) VALUES (?, ?, ?, ?)
	`, rec.Seq, rec.Timestamp.Format(time.RFC3339Nano), rec.Backend, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to append experience record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit experience record: %w", err)
	}
	return rec.Seq, nil
}

// List returns all records in sequence order.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experience records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan experience record: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("corrupt experience record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Len returns the number of committed records.
func (s *SQLiteStore) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count experience records: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
