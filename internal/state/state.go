// Package state persists the record of an enabled routing topology so
// that a later disable can unload exactly the modules this tool loaded
// and restore the defaults it changed. The audio server itself does not
// group modules, so this file is the only link between an enable and
// its teardown.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// State describes one enabled topology.
type State struct {
	// Modules are the server-assigned indices of the loaded modules,
	// in load order.
	Modules []uint32 `json:"modules"`
	// PreviousSource is the default source before enable, restored on
	// disable.
	PreviousSource string `json:"previous_source"`
	// PreviousSink is the default sink observed at enable time. Kept
	// for status reporting; enable never changes the default sink.
	PreviousSink string    `json:"previous_sink"`
	Monitor      bool      `json:"monitor"`
	EnabledAt    time.Time `json:"enabled_at"`
}

// Store reads and writes the state file.
type Store struct {
	path string
}

// NewStore returns a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath resolves the state file location under the XDG state
// directory (typically ~/.local/state/rnnoise/state.json).
func DefaultPath() (string, error) {
	path, err := xdg.StateFile(filepath.Join("rnnoise", "state.json"))
	if err != nil {
		return "", fmt.Errorf("state: resolve path: %w", err)
	}
	return path, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Dir returns the directory holding the state file.
func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}

// Load reads the recorded state. Returns (nil, nil) when no state file
// exists, meaning the topology is disabled.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", s.path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("state: parse %s: %w", s.path, err)
	}
	return &st, nil
}

// Save writes the state atomically (write to a temp file, then rename).
func (s *Store) Save(st *State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("state: create dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("state: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("state: rename: %w", err)
	}
	return nil
}

// Clear removes the state file. Removing a file that does not exist is
// not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: remove %s: %w", s.path, err)
	}
	return nil
}
