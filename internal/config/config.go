// Package config loads client configuration from the environment, with
// optional .env support for local development.
package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the portal client needs to start.
type Config struct {
	APIBase     string
	APIPrefix   string
	LoginPath   string
	StateDir    string
	HospitalID  string
	IdleTimeout time.Duration
	MetricsAddr string
}

// Load reads PORTAL_* variables, falling back to sensible defaults for
// everything but the API base.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		APIBase:     os.Getenv("PORTAL_API_BASE"),
		APIPrefix:   getenv("PORTAL_API_PREFIX", "/api"),
		LoginPath:   getenv("PORTAL_LOGIN_PATH", "/auth/login"),
		StateDir:    os.Getenv("PORTAL_STATE_DIR"),
		HospitalID:  os.Getenv("PORTAL_HOSPITAL_ID"),
		IdleTimeout: 10 * time.Minute,
		MetricsAddr: getenv("PORTAL_METRICS_ADDR", "127.0.0.1:9465"),
	}
	if cfg.APIBase == "" {
		return nil, errors.New("PORTAL_API_BASE is required")
	}
	if raw := os.Getenv("PORTAL_IDLE_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, errors.New("PORTAL_IDLE_TIMEOUT must be a positive duration")
		}
		cfg.IdleTimeout = d
	}
	if cfg.StateDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		cfg.StateDir = filepath.Join(base, "mediport")
	}
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
