package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory configuration.
type Paths struct {
	StateFile        string `toml:"state_file"`
	KnowledgeBaseDir string `toml:"knowledge_base_dir"`
	CacheDir         string `toml:"cache_dir"`
	LogDir           string `toml:"log_dir"`
	IndexFile        string `toml:"index_file"`
}

// Logging controls log verbosity and rendering.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Workflow contains orchestration limits and timing.
type Workflow struct {
	LLMSlots            int `toml:"llm_slots"`
	NetworkSlots        int `toml:"network_slots"`
	DBSlots             int `toml:"db_slots"`
	DefaultPhaseSeconds int `toml:"default_phase_seconds"`
	ProgressBuffer      int `toml:"progress_buffer"`
}

// LLM contains connection settings for the chat-completion API.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Fetch contains bookmark discovery and post caching settings.
type Fetch struct {
	BookmarksFile  string `toml:"bookmarks_file"`
	UserAgent      string `toml:"user_agent"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Git contains knowledge-base repository sync settings.
type Git struct {
	Enabled     bool   `toml:"enabled"`
	RemoteName  string `toml:"remote_name"`
	Branch      string `toml:"branch"`
	AuthorName  string `toml:"author_name"`
	AuthorEmail string `toml:"author_email"`
	Push        bool   `toml:"push"`
}

// Config is the root configuration document.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
	Workflow Workflow `toml:"workflow"`
	LLM      LLM      `toml:"llm"`
	Fetch    Fetch    `toml:"fetch"`
	Git      Git      `toml:"git"`
}

// DefaultConfigPath returns the canonical configuration file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "curator", "config.toml"), nil
}

// Load reads the configuration at path, merges it over defaults, normalizes
// paths and validates the result. A missing file yields pure defaults when
// path is empty; an explicitly requested missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved := path
	if resolved == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		resolved = defaultPath
	}

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == "":
		// No config file is fine; defaults apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample configuration to path without
// overwriting an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.StateFile),
		c.Paths.KnowledgeBaseDir,
		c.Paths.CacheDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.IndexFile),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
