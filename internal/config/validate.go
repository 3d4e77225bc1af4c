package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateGit(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateFile == "" {
		return errors.New("paths.state_file must be set")
	}
	if c.Paths.KnowledgeBaseDir == "" {
		return errors.New("paths.knowledge_base_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be auto, console or json (got %q)", c.Logging.Format)
	}
}

func (c *Config) validateGit() error {
	if !c.Git.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Git.AuthorName) == "" {
		return errors.New("git.author_name must be set when git sync is enabled")
	}
	if email := strings.TrimSpace(c.Git.AuthorEmail); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return fmt.Errorf("git.author_email is not a valid address: %w", err)
		}
	}
	return nil
}
