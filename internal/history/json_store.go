package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jscyril/golang_media_player/api"
)

// Ensure JSONStore implements PositionStore at compile time
var _ api.PositionStore = (*JSONStore)(nil)

type jsonEntry struct {
	Position  time.Duration `json:"position"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// JSONStore keeps positions in a single JSON file, rewritten on every Set.
type JSONStore struct {
	path    string
	mu      sync.RWMutex
	entries map[string]jsonEntry
}

// NewJSONStore loads path if it exists.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{path: path, entries: make(map[string]jsonEntry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	return s, nil
}

func (s *JSONStore) Get(_ context.Context, sourceID string) (time.Duration, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sourceID]
	return e.Position, ok, nil
}

// Set stores position; positions below MinResumePosition clear the entry.
func (s *JSONStore) Set(_ context.Context, sourceID string, position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position < MinResumePosition {
		if _, ok := s.entries[sourceID]; !ok {
			return nil
		}
		delete(s.entries, sourceID)
	} else {
		s.entries[sourceID] = jsonEntry{Position: position, UpdatedAt: time.Now()}
	}
	return s.save()
}

// save writes to a temp file and renames it over the old one.
func (s *JSONStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }
