package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the sigauth CLI.
//
// Fields:
//   - ServerURL: base URL of the sigauth server.
//   - CachePath: SQLite file holding the cached session.
//   - Origin: Origin header sent with every request; empty sends none.
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	ServerURL      string
	CachePath      string
	Origin         string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.CachePath = defaultCachePath()
	c.Origin = ""
	c.RequestTimeout = 30 * time.Second
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sigauth-cache.db"
	}
	return filepath.Join(home, ".sigauth", "cache.db")
}

// LoadConfig applies defaults and then overlays the JSON file at path,
// if path is not empty.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyJSON(cfg, data); err != nil {
		return nil, err
	}
	return cfg, nil
}
