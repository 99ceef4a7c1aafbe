package cli

import (
	"testing"

	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/config"
)

func TestSetupRootCmd(t *testing.T) {
	root := SetupRootCmd(config.DefaultConfig())

	want := map[string]bool{
		"enable":    false,
		"disable":   false,
		"install":   false,
		"uninstall": false,
		"status":    false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}

	if root.PersistentFlags().Lookup("path") == nil {
		t.Error("--path flag not registered")
	}
	if root.PersistentFlags().Lookup("verbose") == nil {
		t.Error("--verbose flag not registered")
	}
}

func TestPathFlagOverridesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	root := SetupRootCmd(cfg)

	if err := root.PersistentFlags().Set("path", "/opt/rnnoise"); err != nil {
		t.Fatal(err)
	}
	if cfg.InstallPath != "/opt/rnnoise" {
		t.Errorf("--path did not override config: %s", cfg.InstallPath)
	}
}

func TestInstallPathExpandsTilde(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.InstallPath = "~/.local/share/rnnoise"

	path, err := installPath(cfg)
	if err != nil {
		t.Fatalf("installPath failed: %v", err)
	}
	if path == cfg.InstallPath {
		t.Errorf("tilde not expanded: %s", path)
	}
	if path[0] != '/' {
		t.Errorf("expected absolute path, got %s", path)
	}
}
