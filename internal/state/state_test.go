package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingReturnsNil(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))

	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil state for missing file, got %+v", st)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "state.json"))

	in := &State{
		Modules:        []uint32{23, 24, 25, 26},
		PreviousSource: "alsa_input.pci-0000_00_1f.3.analog-stereo",
		PreviousSink:   "alsa_output.pci-0000_00_1f.3.analog-stereo",
		Monitor:        true,
		EnabledAt:      time.Now().UTC().Truncate(time.Second),
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out == nil {
		t.Fatal("Load returned nil after Save")
	}
	if len(out.Modules) != 4 || out.Modules[0] != 23 {
		t.Errorf("modules not preserved: %v", out.Modules)
	}
	if out.PreviousSource != in.PreviousSource {
		t.Errorf("previous source not preserved: %s", out.PreviousSource)
	}
	if !out.Monitor {
		t.Error("monitor flag not preserved")
	}
}

func TestClear(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))

	if err := s.Save(&State{Modules: []uint32{1}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("state file still exists after Clear")
	}

	// Clearing again is a no-op.
	if err := s.Clear(); err != nil {
		t.Errorf("Clear on missing file failed: %v", err)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewStore(path).Load(); err == nil {
		t.Fatal("expected error for corrupt state file")
	}
}
