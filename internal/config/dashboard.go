package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of environment overrides, e.g. MODQ_BACKEND_BASE_URL.
const EnvPrefix = "MODQ"

// Dashboard is a profile's dashboard.toml.
type Dashboard struct {
	Backend BackendConfig `toml:"backend"`
	Queue   QueueConfig   `toml:"queue"`
	Ingest  IngestConfig  `toml:"ingest"`
	Scoring ScoringConfig `toml:"scoring"`
	Review  ReviewConfig  `toml:"review"`
	Live    LiveConfig    `toml:"live"`
}

type BackendConfig struct {
	BaseURL string        `toml:"base_url" envconfig:"BASE_URL"`
	Timeout time.Duration `toml:"timeout" envconfig:"TIMEOUT"`
}

type QueueConfig struct {
	PerPage int `toml:"per_page" envconfig:"PER_PAGE"`
	// ShareURL is the web dashboard address shared links point at.
	ShareURL string `toml:"share_url" envconfig:"SHARE_URL"`
}

type IngestConfig struct {
	Limit        int           `toml:"limit" envconfig:"LIMIT"`
	DaysBack     int           `toml:"days_back" envconfig:"DAYS_BACK"`
	PollInterval time.Duration `toml:"poll_interval" envconfig:"POLL_INTERVAL"`
	MaxAttempts  int           `toml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
}

type ScoringConfig struct {
	BatchLimit int `toml:"batch_limit" envconfig:"BATCH_LIMIT"`
}

type ReviewConfig struct {
	Concurrency int `toml:"concurrency" envconfig:"CONCURRENCY"`
}

type LiveConfig struct {
	Enabled bool `toml:"enabled" envconfig:"ENABLED"`
}

// DefaultDashboard returns the settings used for anything the file and
// environment leave unset.
func DefaultDashboard() Dashboard {
	return Dashboard{
		Backend: BackendConfig{BaseURL: "http://localhost:8000", Timeout: 30 * time.Second},
		Queue:   QueueConfig{PerPage: 50, ShareURL: "http://localhost:3000/dashboard"},
		Ingest:  IngestConfig{Limit: 50, DaysBack: 1, PollInterval: 3 * time.Second, MaxAttempts: 9},
		Scoring: ScoringConfig{BatchLimit: 20},
		Review:  ReviewConfig{Concurrency: 4},
		Live:    LiveConfig{Enabled: false},
	}
}

// LoadDashboard layers defaults, the TOML file at path (if present) and
// MODQ_* environment variables, in that order.
func LoadDashboard(path string) (*Dashboard, error) {
	cfg := DefaultDashboard()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveDashboard writes cfg to path with owner-only permissions.
func SaveDashboard(path string, cfg *Dashboard) error {
	return writeTOML(path, cfg)
}

// Validate rejects settings no component can work with.
func (d Dashboard) Validate() error {
	var errs []error
	if d.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if d.Queue.PerPage < 1 {
		errs = append(errs, fmt.Errorf("queue.per_page must be positive, got %d", d.Queue.PerPage))
	}
	if d.Ingest.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("ingest.max_attempts must be positive, got %d", d.Ingest.MaxAttempts))
	}
	if d.Ingest.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("ingest.poll_interval must not be negative"))
	}
	if d.Scoring.BatchLimit < 1 {
		errs = append(errs, fmt.Errorf("scoring.batch_limit must be positive, got %d", d.Scoring.BatchLimit))
	}
	return errors.Join(errs...)
}
