package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Control != 95 {
		t.Errorf("expected control 95, got %d", cfg.Control)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("expected sample rate 48000, got %d", cfg.SampleRate)
	}
	if cfg.Pactl != "pactl" {
		t.Errorf("expected pactl binary 'pactl', got %s", cfg.Pactl)
	}
	if !strings.HasSuffix(cfg.InstallPath, "rnnoise") {
		t.Errorf("expected install path ending in rnnoise, got %s", cfg.InstallPath)
	}
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Control != 95 {
		t.Errorf("expected default control, got %d", cfg.Control)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "install_path: /opt/rnnoise\ncontrol: 80\ntimeout_seconds: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.InstallPath != "/opt/rnnoise" {
		t.Errorf("install_path not applied: %s", cfg.InstallPath)
	}
	if cfg.Control != 80 {
		t.Errorf("control not applied: %d", cfg.Control)
	}
	if cfg.TimeoutSeconds != 3 {
		t.Errorf("timeout_seconds not applied: %d", cfg.TimeoutSeconds)
	}
	// Untouched fields keep defaults.
	if cfg.SampleRate != 48000 {
		t.Errorf("sample_rate default lost: %d", cfg.SampleRate)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RNNOISE_PATH", "/tmp/rn")
	t.Setenv("RNNOISE_CONTROL", "50")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.InstallPath != "/tmp/rn" {
		t.Errorf("RNNOISE_PATH not applied: %s", cfg.InstallPath)
	}
	if cfg.Control != 50 {
		t.Errorf("RNNOISE_CONTROL not applied: %d", cfg.Control)
	}
}

func TestValidateRejectsBadControl(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Control = 150

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for control > 100")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("control: [not an int"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}
