package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeWorkflow()
	c.normalizeLLM()
	if err := c.normalizeFetch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateFile, err = expandPath(c.Paths.StateFile); err != nil {
		return fmt.Errorf("paths.state_file: %w", err)
	}
	if c.Paths.KnowledgeBaseDir, err = expandPath(c.Paths.KnowledgeBaseDir); err != nil {
		return fmt.Errorf("paths.knowledge_base_dir: %w", err)
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.IndexFile, err = expandPath(c.Paths.IndexFile); err != nil {
		return fmt.Errorf("paths.index_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.LLMSlots <= 0 {
		c.Workflow.LLMSlots = defaultLLMSlots
	}
	if c.Workflow.NetworkSlots <= 0 {
		c.Workflow.NetworkSlots = defaultNetworkSlots
	}
	if c.Workflow.DBSlots <= 0 {
		c.Workflow.DBSlots = defaultDBSlots
	}
	if c.Workflow.DefaultPhaseSeconds < 0 {
		c.Workflow.DefaultPhaseSeconds = 0
	}
	if c.Workflow.ProgressBuffer <= 0 {
		c.Workflow.ProgressBuffer = defaultProgressBuffer
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if key := os.Getenv("CURATOR_LLM_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
}

func (c *Config) normalizeFetch() error {
	var err error
	if c.Fetch.BookmarksFile != "" {
		if c.Fetch.BookmarksFile, err = expandPath(c.Fetch.BookmarksFile); err != nil {
			return fmt.Errorf("fetch.bookmarks_file: %w", err)
		}
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		c.Fetch.UserAgent = defaultFetchUserAgent
	}
	if c.Fetch.RequestTimeout <= 0 {
		c.Fetch.RequestTimeout = defaultFetchRequestTimeout
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Clean(trimmed), nil
}
