// Package config loads ghgfocus settings from ~/.ghgfocus/config.yaml,
// applies GHGFOCUS_* environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/validation"
)

// Config is the full application configuration.
type Config struct {
	Organization ghg.OrganizationInfo `yaml:"organization"`
	Logging      LoggingConfig        `yaml:"logging"`
	Report       ReportConfig         `yaml:"report"`
	Tags         TagsConfig           `yaml:"tags"`
	Sync         SyncConfig           `yaml:"sync"`
	Storage      StorageConfig        `yaml:"storage"`
	Redis        RedisConfig          `yaml:"redis"`
	Mapping      MappingConfig        `yaml:"mapping"`
	Factors      FactorsConfig        `yaml:"factors"`
	Integrations []IntegrationConfig  `yaml:"integrations" validate:"dive"`

	configPath string
}

// LoggingConfig controls log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"  validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console text"`
	File   string `yaml:"file,omitempty"`
}

// ReportConfig holds defaults for the narrative report.
type ReportConfig struct {
	Framework       string `yaml:"framework"        validate:"oneof=ghg_protocol sb253 csrd"`
	Confidentiality string `yaml:"confidentiality"`
	LinesPerPage    int    `yaml:"lines_per_page"   validate:"gte=10,lte=500"`
}

// TagsConfig holds defaults for structured-tag output.
type TagsConfig struct {
	Framework       string `yaml:"framework"        validate:"oneof=ifrs-s2 esrs sb253"`
	TaxonomyVersion string `yaml:"taxonomy_version" validate:"required"`
}

// SyncConfig controls sync concurrency and locking.
type SyncConfig struct {
	MaxParallel int           `yaml:"max_parallel" validate:"gte=1,lte=64"`
	BatchSize   int           `yaml:"batch_size"   validate:"gte=1,lte=1000"`
	LockBackend string        `yaml:"lock_backend" validate:"oneof=local redis"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

// StorageConfig selects where canonical records and sync runs live.
type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory sqlite"`
	DSN    string `yaml:"dsn"    validate:"required_if=Driver sqlite"`
}

// RedisConfig is used when Sync.LockBackend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password,omitempty"`
}

// MappingConfig points at the persisted mapping rules.
type MappingConfig struct {
	RulesFile string `yaml:"rules_file"`
}

// FactorsConfig points at an emission factor library file.
// An empty path uses the built-in library.
type FactorsConfig struct {
	LibraryFile string `yaml:"library_file,omitempty"`
}

// IntegrationConfig declares one connected external system.
type IntegrationConfig struct {
	ID         string `yaml:"id"          validate:"required"`
	CompanyID  string `yaml:"company_id"  validate:"required"`
	SystemType string `yaml:"system_type" validate:"required"`
	Connected  bool   `yaml:"connected"`
	// BaseURL is used by REST adapters.
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	// Path is used by file adapters.
	Path string `yaml:"path,omitempty"`
	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `yaml:"token_env,omitempty"`
	// RateLimit is the maximum requests per second for REST adapters.
	RateLimit float64 `yaml:"rate_limit,omitempty" validate:"gte=0"`
}

// Default values.
const (
	DefaultMaxParallel  = 4
	DefaultBatchSize    = 100
	DefaultLinesPerPage = 48
	DefaultLockTTL      = 30 * time.Second
	DefaultTaxonomy     = "2024.0.0"
)

// New returns a Config with defaults and its path under the config directory.
func New() *Config {
	dir, err := GetConfigDir()
	if err != nil {
		dir = ".ghgfocus"
	}
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Report: ReportConfig{
			Framework:       "ghg_protocol",
			Confidentiality: "Confidential",
			LinesPerPage:    DefaultLinesPerPage,
		},
		Tags: TagsConfig{Framework: "ifrs-s2", TaxonomyVersion: DefaultTaxonomy},
		Sync: SyncConfig{
			MaxParallel: DefaultMaxParallel,
			BatchSize:   DefaultBatchSize,
			LockBackend: "local",
			LockTTL:     DefaultLockTTL,
		},
		Storage:    StorageConfig{Driver: "memory"},
		Redis:      RedisConfig{Addr: "localhost:6379"},
		Mapping:    MappingConfig{RulesFile: filepath.Join(dir, "mappings.json")},
		configPath: filepath.Join(dir, "config.yaml"),
	}
}

// Load reads the config file at path onto the defaults, then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := New()
	if path != "" {
		cfg.configPath = path
	}

	if _, err := os.Stat(cfg.configPath); err == nil {
		if mergeErr := ShallowMergeYAML(cfg, cfg.configPath); mergeErr != nil {
			return nil, mergeErr
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking config file %s: %w", cfg.configPath, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies GHGFOCUS_* overrides using the given lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("GHGFOCUS_LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup("GHGFOCUS_LOG_FORMAT"); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup("GHGFOCUS_STORAGE_DRIVER"); ok && v != "" {
		c.Storage.Driver = v
	}
	if v, ok := lookup("GHGFOCUS_STORAGE_DSN"); ok && v != "" {
		c.Storage.DSN = v
	}
	if v, ok := lookup("GHGFOCUS_REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
	}
	if v, ok := lookup("GHGFOCUS_SYNC_LOCK_BACKEND"); ok && v != "" {
		c.Sync.LockBackend = v
	}
	if v, ok := lookup("GHGFOCUS_SYNC_MAX_PARALLEL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GHGFOCUS_SYNC_MAX_PARALLEL: %w", err)
		}
		c.Sync.MaxParallel = n
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	seen := make(map[string]bool, len(c.Integrations))
	for _, in := range c.Integrations {
		if seen[in.ID] {
			return fmt.Errorf("invalid configuration: duplicate integration id %q", in.ID)
		}
		seen[in.ID] = true
	}
	return nil
}

// Integration returns the integration with the given id.
func (c *Config) Integration(id string) (IntegrationConfig, bool) {
	for _, in := range c.Integrations {
		if in.ID == id {
			return in, true
		}
	}
	return IntegrationConfig{}, false
}

// ConfigPath returns the file this config loads from and saves to.
func (c *Config) ConfigPath() string { return c.configPath }

// SetConfigPath changes the file Save writes to.
func (c *Config) SetConfigPath(path string) { c.configPath = path }

// Save writes the config as YAML, creating the directory if needed.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if mkErr := os.MkdirAll(filepath.Dir(c.configPath), 0o700); mkErr != nil {
		return fmt.Errorf("creating config directory: %w", mkErr)
	}
	if writeErr := os.WriteFile(c.configPath, data, 0o600); writeErr != nil {
		return fmt.Errorf("writing config file: %w", writeErr)
	}
	return nil
}
