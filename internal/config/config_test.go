package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg := Load()

	if cfg.Coordinator.ListenAddr == "" {
		t.Fatal("expected a default listen address")
	}
	if cfg.Timings.PollIntervalMs <= 0 {
		t.Fatal("expected default timings")
	}
	if len(cfg.Profiles) == 0 {
		t.Fatal("expected a default selector profile")
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
browser:
  baseUrl: https://files.example.org/library
timings:
  stepTimeoutMs: 7000
profile: library
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(listenAddrEnv, ":9900")
	t.Setenv(headlessEnv, "false")

	cfg := Load()

	if cfg.Browser.BaseURL != "https://files.example.org/library" {
		t.Fatalf("file value not applied: %q", cfg.Browser.BaseURL)
	}
	if cfg.Timings.StepTimeoutMs != 7000 {
		t.Fatalf("timing override not applied: %d", cfg.Timings.StepTimeoutMs)
	}
	// Unset timings keep their defaults.
	if cfg.Timings.PopoverTimeoutMs != 5000 {
		t.Fatalf("unset timing lost its default: %d", cfg.Timings.PopoverTimeoutMs)
	}
	if cfg.Coordinator.ListenAddr != ":9900" {
		t.Fatalf("env override not applied: %q", cfg.Coordinator.ListenAddr)
	}
	if cfg.Browser.Headless {
		t.Fatal("headless env override not applied")
	}
}

func TestActiveProfileResolution(t *testing.T) {
	cfg := defaultConfig()
	cfg.Profiles = append(cfg.Profiles, SelectorProfile{Name: "staging"})

	cfg.Profile = "staging"
	if got := cfg.ActiveProfile().Name; got != "staging" {
		t.Fatalf("expected staging profile, got %q", got)
	}

	cfg.Profile = "missing"
	if got := cfg.ActiveProfile().Name; got != "library" {
		t.Fatalf("expected fallback to first profile, got %q", got)
	}
}
