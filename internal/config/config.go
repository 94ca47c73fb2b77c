// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type IdentityConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`         // per request, 0 = none
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 = unlimited
	Burst         int           `yaml:"burst"`
}

type PollConfig struct {
	Interval           time.Duration `yaml:"interval"`
	Timeout            time.Duration `yaml:"timeout"`     // 0 = poll until terminal
	Concurrency        int           `yaml:"concurrency"` // 0 = one goroutine per operation
	MaxTransientErrors int           `yaml:"max_transient_errors"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"`
}

type ViewerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Port             int    `yaml:"port"` // 0 = pick a free port
	PagePath         string `yaml:"page_path"`
	DependenciesPath string `yaml:"dependencies_path"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables status publishing
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type Config struct {
	SourceFile string         `yaml:"source_file"`
	Identity   IdentityConfig `yaml:"identity"`
	API        APIConfig      `yaml:"api"`
	Poll       PollConfig     `yaml:"poll"`
	Storage    StorageConfig  `yaml:"storage"`
	Viewer     ViewerConfig   `yaml:"viewer"`
	Log        LogConfig      `yaml:"log"`
	Redis      RedisConfig    `yaml:"redis"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	DefaultTokenURL     = "https://identity-dev.dangl-it.com/connect/token"
	DefaultBaseURL      = "https://bimcloud-dev.dangl-it.com"
	DefaultSourceFile   = "IfcDuplexHouse.ifc"
	DefaultPollInterval = 5 * time.Second
	DefaultAPITimeout   = 2 * time.Minute
)

// LoadConfig reads the YAML file at path (a missing file is not an error), then applies .env and
// environment overrides and fills defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	// Defaults that a file may explicitly turn off are seeded before decoding.
	cfg := Config{
		API:    APIConfig{Timeout: DefaultAPITimeout},
		Viewer: ViewerConfig{Enabled: true},
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	cfg.Runtime.Dev = dev
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Identity.ClientID == "" || c.Identity.ClientSecret == "" {
		return errors.New("identity.client_id and identity.client_secret are required (or BIMCLOUD_CLIENT_ID / BIMCLOUD_CLIENT_SECRET)")
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}
	if c.Poll.Timeout < 0 {
		return errors.New("poll.timeout must not be negative")
	}
	if c.Poll.Concurrency < 0 {
		return errors.New("poll.concurrency must not be negative")
	}
	if c.Viewer.Port < 0 || c.Viewer.Port > 65535 {
		return fmt.Errorf("viewer.port out of range: %d", c.Viewer.Port)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.SourceFile == "" {
		cfg.SourceFile = DefaultSourceFile
	}
	if cfg.Identity.TokenURL == "" {
		cfg.Identity.TokenURL = DefaultTokenURL
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.Burst <= 0 {
		cfg.API.Burst = 1
	}
	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "."
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "bimcloud:operations"
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Identity.ClientID, "BIMCLOUD_CLIENT_ID")
	setString(&cfg.Identity.ClientSecret, "BIMCLOUD_CLIENT_SECRET")
	setString(&cfg.Identity.TokenURL, "BIMCLOUD_TOKEN_URL")
	setString(&cfg.API.BaseURL, "BIMCLOUD_BASE_URL")
	setString(&cfg.SourceFile, "BIMCLOUD_SOURCE_FILE")
	setString(&cfg.Storage.Dir, "BIMCLOUD_ARTIFACT_DIR")
	setString(&cfg.Redis.URL, "BIMCLOUD_REDIS_URL")
	setString(&cfg.Log.Level, "BIMCLOUD_LOG_LEVEL")

	if v := os.Getenv("BIMCLOUD_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BIMCLOUD_POLL_INTERVAL: %w", err)
		}
		cfg.Poll.Interval = d
	}
	if v := os.Getenv("BIMCLOUD_POLL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BIMCLOUD_POLL_TIMEOUT: %w", err)
		}
		cfg.Poll.Timeout = d
	}
	if v := os.Getenv("BIMCLOUD_VIEWER_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BIMCLOUD_VIEWER_PORT: %w", err)
		}
		cfg.Viewer.Port = p
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
