package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	raw, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(raw), "[llm]") {
		t.Fatalf("sample missing llm section:\n%s", raw)
	}

	// A second init against the same path must refuse to overwrite.
	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error on existing config file")
	}
}

func TestConfigValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	cmd = newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "validate", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config validate: %v", err)
	}

	if err := os.WriteFile(target, []byte("not = [valid"), 0o644); err != nil {
		t.Fatalf("corrupt config: %v", err)
	}
	cmd = newRootCommand()
	cmd.SetArgs([]string{"config", "validate", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestRunRejectsUnknownPhaseFlags(t *testing.T) {
	base := t.TempDir()
	cfgPath := filepath.Join(base, "config.toml")
	content := `[paths]
state_file = "` + filepath.Join(base, "state.json") + `"
knowledge_base_dir = "` + filepath.Join(base, "kb") + `"
cache_dir = "` + filepath.Join(base, "cache") + `"
log_dir = "` + filepath.Join(base, "logs") + `"
index_file = "` + filepath.Join(base, "index.db") + `"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", cfgPath, "run", "--force", "nonsense", "--no-preflight"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown phase name")
	}
}
