package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record describes one completed monitoring session.
type Record struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration float64   `json:"duration_s"`
}

// Store keeps the session history in memory and mirrors it to a JSON
// file on every append.
type Store struct {
	path string

	mu      sync.Mutex
	records []Record
}

// NewStore loads existing history from path. A missing file is treated
// as an empty history.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("session file path cannot be empty")
	}

	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return s, nil
}

// Append adds a completed session and persists the history.
func (s *Store) Append(start, end time.Time) error {
	rec := Record{
		Start:    start,
		End:      end,
		Duration: end.Sub(start).Seconds(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// All returns a copy of the session history, oldest first.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of recorded sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
