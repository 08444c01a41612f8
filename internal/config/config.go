// Package config loads repository configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the repository's runtime settings.
type Config struct {
	// DatabasePath is the SQLite database location. ":memory:" is
	// accepted for throwaway stores.
	DatabasePath string `yaml:"database_path"`

	// DefaultPageSize applies when a search names no _count.
	DefaultPageSize int `yaml:"default_page_size"`

	// MaxPageSize clamps requested _count values.
	MaxPageSize int `yaml:"max_page_size"`

	// LocalOrganization is the identifier of the organization running
	// this repository; it backs the local-service identity the CLI
	// operates as.
	LocalOrganization string `yaml:"local_organization"`

	// Affiliations maps an organization identifier to its parent
	// organization identifiers, consulted by role-scoped grants.
	Affiliations map[string][]string `yaml:"affiliations"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DatabasePath:    "recora.db",
		DefaultPageSize: 20,
		MaxPageSize:     200,
	}
}

// Load reads a YAML config file over the defaults, then applies
// environment overrides (RECORA_DB, RECORA_LOCAL_ORGANIZATION,
// RECORA_DEFAULT_PAGE_SIZE, RECORA_MAX_PAGE_SIZE). An empty path skips
// the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if db := os.Getenv("RECORA_DB"); db != "" {
		cfg.DatabasePath = db
	}
	if org := os.Getenv("RECORA_LOCAL_ORGANIZATION"); org != "" {
		cfg.LocalOrganization = org
	}
	if err := overrideInt("RECORA_DEFAULT_PAGE_SIZE", &cfg.DefaultPageSize); err != nil {
		return Config{}, err
	}
	if err := overrideInt("RECORA_MAX_PAGE_SIZE", &cfg.MaxPageSize); err != nil {
		return Config{}, err
	}

	return cfg, cfg.validate()
}

func overrideInt(name string, dest *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: expected an integer, got %q", name, raw)
	}
	*dest = n
	return nil
}

func (c Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("config: database_path is required")
	}
	if c.DefaultPageSize < 1 {
		return fmt.Errorf("config: default_page_size must be positive")
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("config: max_page_size must be at least default_page_size")
	}
	return nil
}
