package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"checkexplorer/internal/executions"
	"checkexplorer/internal/minimap"
)

// Config represents configuration data for the explorer service.
type Config struct {
	ListenAddr     string             `yaml:"listen_addr"`
	DatabasePath   string             `yaml:"database_path"`
	RefreshSeconds int                `yaml:"refresh_seconds"`
	Log            Log                `yaml:"log"`
	Loki           Loki               `yaml:"loki"`
	Explorer       Explorer           `yaml:"explorer"`
	Markers        executions.Markers `yaml:"markers"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Loki defines how execution logs are fetched.
type Loki struct {
	URL            string `yaml:"url"`
	TenantID       string `yaml:"tenant_id"`
	CheckLabel     string `yaml:"check_label"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PageLimit      int    `yaml:"page_limit"`
}

// Explorer tunes explorer sessions.
type Explorer struct {
	PageSize         int `yaml:"page_size"`
	FetchConcurrency int `yaml:"fetch_concurrency"`
	FetchRetries     int `yaml:"fetch_retries"`
}

// Timeout returns the log backend request timeout.
func (l Loki) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// RefreshInterval returns how often sessions refresh their head page.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":8080",
		DatabasePath:   filepath.Join(".dist", "data", "checkexplorer.db"),
		RefreshSeconds: 30,
		Log:            Log{Level: "info", Format: "json"},
		Loki: Loki{
			URL:            "http://localhost:3100",
			CheckLabel:     "check_id",
			TimeoutSeconds: 15,
			PageLimit:      1000,
		},
		Explorer: Explorer{
			PageSize:         minimap.DefaultPageSize,
			FetchConcurrency: 4,
			FetchRetries:     3,
		},
		Markers: executions.DefaultMarkers(),
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	def := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = def.DatabasePath
	}
	if cfg.RefreshSeconds <= 0 {
		cfg.RefreshSeconds = def.RefreshSeconds
	}
	if cfg.Loki.TimeoutSeconds <= 0 {
		cfg.Loki.TimeoutSeconds = def.Loki.TimeoutSeconds
	}
	if cfg.Loki.PageLimit <= 0 {
		cfg.Loki.PageLimit = def.Loki.PageLimit
	}
	if cfg.Explorer.PageSize <= 0 {
		cfg.Explorer.PageSize = def.Explorer.PageSize
	}
	if cfg.Explorer.FetchConcurrency <= 0 {
		cfg.Explorer.FetchConcurrency = def.Explorer.FetchConcurrency
	}
	if cfg.Explorer.FetchRetries < 0 {
		cfg.Explorer.FetchRetries = 0
	}
	cfg.Markers = cfg.Markers.WithDefaults()

	if cfg.Loki.URL == "" {
		return Config{}, errors.New("loki.url is required")
	}
	if _, err := url.ParseRequestURI(cfg.Loki.URL); err != nil {
		return Config{}, fmt.Errorf("loki.url: %w", err)
	}
	switch cfg.Log.Format {
	case "", "json", "console":
	default:
		return Config{}, fmt.Errorf("log.format %q must be json or console", cfg.Log.Format)
	}
	return cfg, nil
}
