package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"CLIP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"CLIP_DB_MAX_CONNS" default:"8"`

	SourcesPath  string `envconfig:"SOURCES_PATH" default:"config/sources.json"`
	TaxonomyPath string `envconfig:"TAXONOMY_PATH" default:"config/taxonomy.json"`

	// FetchDelay is the politeness pause between article body fetches.
	FetchDelay     time.Duration `envconfig:"FETCH_DELAY" default:"1s"`
	FetchUserAgent string        `envconfig:"FETCH_USER_AGENT" default:""`

	HTTPHost           string `envconfig:"HTTP_HOST" default:"127.0.0.1"`
	HTTPPort           int    `envconfig:"HTTP_PORT" default:"8085"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	WatchSchedule string `envconfig:"WATCH_SCHEDULE" default:"@hourly"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("CLIP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("CLIP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("CLIP_DB_MIN_CONNS (%d) cannot exceed CLIP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.SourcesPath) == "" {
		return fmt.Errorf("SOURCES_PATH is required")
	}
	if strings.TrimSpace(c.TaxonomyPath) == "" {
		return fmt.Errorf("TAXONOMY_PATH is required")
	}
	if c.FetchDelay < 0 {
		return fmt.Errorf("FETCH_DELAY must not be negative")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if strings.TrimSpace(c.WatchSchedule) == "" {
		return fmt.Errorf("WATCH_SCHEDULE is required")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
