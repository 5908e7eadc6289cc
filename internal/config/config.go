// Package config loads the client configuration from a YAML file, with
// environment variables (optionally via a .env file) taking precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the client's configuration.
type Config struct {
	API struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"api"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
}

// Load reads configuration from the YAML file at configPath. A missing file
// is not an error; defaults and environment overrides still apply. The
// recognized variables are FORUM_API_URL, FORUM_API_TIMEOUT_SECONDS and
// FORUM_STORE_PATH.
func Load(configPath string) (*Config, error) {
	// A .env in the working directory is a development convenience;
	// absence is fine.
	_ = godotenv.Load()

	config := &Config{}

	file, err := os.Open(configPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if v := os.Getenv("FORUM_API_URL"); v != "" {
		config.API.BaseURL = v
	}
	if v := os.Getenv("FORUM_API_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid FORUM_API_TIMEOUT_SECONDS: %w", err)
		}
		config.API.TimeoutSeconds = seconds
	}
	if v := os.Getenv("FORUM_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if config.API.BaseURL == "" {
		config.API.BaseURL = "http://localhost:8080"
	}
	if config.API.TimeoutSeconds <= 0 {
		config.API.TimeoutSeconds = 30
	}
	if config.Store.Path == "" {
		config.Store.Path = defaultStorePath()
	}

	return config, nil
}

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "forumcli.db"
	}
	return filepath.Join(home, ".forumcli", "forumcli.db")
}
