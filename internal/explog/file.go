package explog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Longest line we are prepared to read back; spatial payloads can be large.
const maxLineBytes = 16 << 20

// FileStore appends records as JSON lines. Each record is marshaled first
// and committed with a single Write call under the store lock, so a reader
// never observes a partial record.
type FileStore struct {
	path string

	mu   sync.Mutex
	file *os.File
	seq  int64
}

// OpenFileStore opens (or creates) a JSONL experience log and resumes the
// sequence counter from the existing contents.
func OpenFileStore(path string) (*FileStore, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open experience log %s: %w", path, err)
	}

	s := &FileStore{path: path, file: file}
	count, err := s.countLines()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	s.seq = count
	return s, nil
}

// Append marshals the record and writes it as one line.
func (s *FileStore) Append(ctx context.Context, rec Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Seq = s.seq + 1
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal experience record: %w", err)
	}
	data = append(data, '\n')

	if _, err := s.file.Write(data); err != nil {
		return 0, fmt.Errorf("failed to append experience record: %w", err)
	}
	s.seq = rec.Seq
	return rec.Seq, nil
}

// List reads every record back from the file in append order.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readRecords(s.path)
}

// Len returns the number of committed records.
func (s *FileStore) Len(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, nil
}

// Close closes the underlying file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *FileStore) countLines() (int64, error) {
	records, err := readRecords(s.path)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

func readRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experience log %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("corrupt experience record at line %d of %s: %w", line, path, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan experience log %s: %w", path, err)
	}
	return records, nil
}

// ReadFile loads all records from a JSONL experience log without opening it
// for appends. Used by the surrogate trainer and analysis tooling.
func ReadFile(path string) ([]Record, error) {
	return readRecords(path)
}
