package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port            int           `env:"PORT"             envDefault:"8080"`
	AnalysisURL     string        `env:"ANALYSIS_URL"     envDefault:"https://counting-traffic.onrender.com"`
	AnalysisTimeout time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"0s"` // 0 = no timeout
	MaxUploadMB     int64         `env:"MAX_UPLOAD_MB"    envDefault:"512"`
	StrictMP4       bool          `env:"STRICT_MP4"       envDefault:"false"`
	Password        string        `env:"PASSWORD"`
	DatabasePath    string        `env:"DB_PATH"          envDefault:"data/reports.db"`
	LogDirectory    string        `env:"LOG_DIR"          envDefault:"logs"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	UploadDirectory string        `env:"UPLOAD_DIR"`
	SessionTTL      time.Duration `env:"SESSION_TTL"      envDefault:"24h"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL"   envDefault:"5m"`
	OTLPEndpoint    string        `env:"OTLP_ENDPOINT"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.UploadDirectory == "" {
		cfg.UploadDirectory = filepath.Join(os.TempDir(), "traffic-analyzer")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB %d", cfg.MaxUploadMB)
	}

	return cfg, nil
}

// MaxUploadBytes is the request body limit for video uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// AuthEnabled reports whether the login page guards the application.
func (c *Config) AuthEnabled() bool {
	return c.Password != ""
}
