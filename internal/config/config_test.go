package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MLAGENT_HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Agent.MaxIterations != 15 {
		t.Fatalf("default max iterations = %d, want 15", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.ExecTimeoutSec != 60 {
		t.Fatalf("default exec timeout = %d, want 60", cfg.Agent.ExecTimeoutSec)
	}
	if cfg.Sandbox.PythonBin != "python3" {
		t.Fatalf("default python bin = %q", cfg.Sandbox.PythonBin)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MLAGENT_HOME", dir)
	path := filepath.Join(dir, "config.json")
	body := `{"provider":{"model":"qwen2.5-coder"},"agent":{"max_iterations":3}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MLAGENT_EXEC_TIMEOUT_SECONDS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.Model != "qwen2.5-coder" {
		t.Fatalf("model = %q", cfg.Provider.Model)
	}
	if cfg.Agent.MaxIterations != 3 {
		t.Fatalf("max iterations = %d", cfg.Agent.MaxIterations)
	}
	if cfg.Provider.APIKey != "sk-test" {
		t.Fatalf("api key not taken from env")
	}
	if cfg.Agent.ExecTimeoutSec != 5 {
		t.Fatalf("exec timeout = %d, want env override 5", cfg.Agent.ExecTimeoutSec)
	}
	// blanked fields fall back to defaults
	if cfg.Provider.BaseURL == "" || cfg.Paths.DBPath == "" {
		t.Fatalf("zero fields not backfilled: %+v", cfg)
	}
}

func TestLoadExplicitMissingPathFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}
