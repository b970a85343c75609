package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes the calendar document serve mode reports on.
type SourceConfig struct {
	// URL is the .ics endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used in logs; defaults to Name or URL.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web surface.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used when computing the default "current
	// week" window (e.g. "Europe/Berlin"). Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls the first day of the default week window:
	// "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the cron schedule for re-fetching the configured
	// source in serve mode, e.g. "*/15 * * * *".
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Email is the target address whose accepted events are reported.
	Email string `yaml:"email" json:"email"`

	// Source is the configured remote document for serve mode. Optional;
	// uploads work without it.
	Source SourceConfig `yaml:"source" json:"source"`

	// CacheDir is where fetched documents and their HTTP validators live.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns the in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		WeekStart:   "monday",
		RefreshCron: "*/15 * * * *",
		CacheDir:    "./cache/ics",
		LogLevel:    "info",
	}
}

// Normalize fills missing or invalid values with defaults so partially
// filled config files still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./cache/ics"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Source.ID == "" {
		if c.Source.Name != "" {
			c.Source.ID = c.Source.Name
		} else {
			c.Source.ID = c.Source.URL
		}
	}
}

// Load reads configuration from the given YAML path. A missing file is a
// first run: a default config is written (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory as needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".icsreport-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
