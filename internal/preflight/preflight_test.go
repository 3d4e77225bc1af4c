package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"curator/internal/config"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("kb", dir)
	if !result.Passed {
		t.Fatalf("writable temp dir failed: %s", result.Detail)
	}

	result = CheckDirectoryAccess("kb", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("missing directory passed")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result = CheckDirectoryAccess("kb", file)
	if result.Passed {
		t.Fatal("regular file passed as directory")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := CheckDiskSpace("space", t.TempDir())
	if !result.Passed {
		t.Fatalf("temp dir volume reported unhealthy: %s", result.Detail)
	}
	result = CheckDiskSpace("space", filepath.Join(t.TempDir(), "missing"))
	if result.Passed {
		t.Fatal("statfs on missing path passed")
	}
}

func TestCheckLLM(t *testing.T) {
	result := CheckLLM(context.Background(), "llm", config.LLM{})
	if result.Passed {
		t.Fatal("missing api key passed")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	result = CheckLLM(context.Background(), "llm", config.LLM{APIKey: "k", BaseURL: server.URL, Model: "m"})
	if !result.Passed {
		t.Fatalf("healthy endpoint failed: %s", result.Detail)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer down.Close()

	result = CheckLLM(context.Background(), "llm", config.LLM{APIKey: "k", BaseURL: down.URL, Model: "m"})
	if result.Passed {
		t.Fatal("unauthorized endpoint passed")
	}
}

func TestRunAll(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.KnowledgeBaseDir = filepath.Join(base, "kb")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	for _, dir := range []string{cfg.Paths.KnowledgeBaseDir, cfg.Paths.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	cfg.LLM.APIKey = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	if AllPassed(results) {
		t.Fatal("missing api key should fail the LLM check")
	}
}
