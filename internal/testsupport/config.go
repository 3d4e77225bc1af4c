package testsupport

import (
	"path/filepath"
	"testing"

	"curator/internal/config"
)

// NewConfig produces a config seeded with unique temp paths per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateFile = filepath.Join(base, "state.json")
	cfg.Paths.KnowledgeBaseDir = filepath.Join(base, "kb")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.IndexFile = filepath.Join(base, "index.db")
	cfg.Workflow.DefaultPhaseSeconds = 0
	return &cfg
}
