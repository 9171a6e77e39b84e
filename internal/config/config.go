package config

import (
	"errors"
	"fmt"
	"os"

	"venueboard/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Sync       SyncConfig       `yaml:"sync"`
	Board      BoardConfig      `yaml:"board"`
	Sheet      SheetConfig      `yaml:"sheet"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Venues     []models.Venue   `yaml:"venues"`
	Slots      []string         `yaml:"slots"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type SyncConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	LockKey         string `yaml:"lock_key"`
	LockWaitSeconds int    `yaml:"lock_wait_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
	Timezone        string `yaml:"timezone"`
}

type BoardConfig struct {
	SnapshotURL         string             `yaml:"snapshot_url"`
	PollIntervalSeconds int                `yaml:"poll_interval_seconds"`
	FetchTimeoutSeconds int                `yaml:"fetch_timeout_seconds"`
	ClubDailyLimit      int                `yaml:"club_daily_limit"`
	IntakeBackend       string             `yaml:"intake_backend"` // "sheet" or "dispatch"
	HTTP                BoardHTTPConfig    `yaml:"http"`
	Auth                APIAuthConfig      `yaml:"auth"`
	RateLimit           APIRateLimitConfig `yaml:"rate_limit"`
}

type BoardHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool     `yaml:"enabled"`
	HeaderAPIKey string   `yaml:"header_api_key"`
	APIKeys      []string `yaml:"api_keys"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type SheetConfig struct {
	Backend         string `yaml:"backend"` // "google" or "sqlite"
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
	SQLitePath      string `yaml:"sqlite_path"`
}

type DispatchConfig struct {
	URL            string `yaml:"url"`
	TokenKey       string `yaml:"token_key"`
	SecretsFile    string `yaml:"secrets_file"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment may already be populated.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Environment substitution before parsing, so secrets and hosts
	// can live outside the YAML file.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Sheet.Backend {
	case "google":
		if c.Sheet.CredentialsFile == "" {
			return errors.New("sheet.credentials_file is required for the google backend")
		}
		if c.Sheet.SpreadsheetID == "" {
			return errors.New("sheet.spreadsheet_id is required for the google backend")
		}
	case "sqlite":
		if c.Sheet.SQLitePath == "" {
			return errors.New("sheet.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown sheet backend: %q", c.Sheet.Backend)
	}

	if c.Dispatch.URL == "" {
		return errors.New("dispatch.url is required")
	}

	switch c.Board.IntakeBackend {
	case "", "sheet", "dispatch":
	default:
		return fmt.Errorf("unknown board intake backend: %q", c.Board.IntakeBackend)
	}

	return ValidateVenues(c.Venues)
}

func ValidateVenues(venues []models.Venue) error {
	seen := make(map[string]bool)
	for _, v := range venues {
		if v.ID == "" {
			return fmt.Errorf("venue %q has an empty id", v.Name)
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate venue id found: %s", v.ID)
		}
		seen[v.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Sheet.Backend == "" {
		c.Sheet.Backend = "google"
	}
	if c.Sheet.SheetName == "" {
		c.Sheet.SheetName = "Form Responses 1"
	}
	if c.Sync.IntervalSeconds == 0 {
		c.Sync.IntervalSeconds = 60
	}
	if c.Sync.LockKey == "" {
		c.Sync.LockKey = "venueboard:sync"
	}
	if c.Sync.LockWaitSeconds == 0 {
		c.Sync.LockWaitSeconds = models.LockWaitSeconds
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = models.DefaultMaxDispatchRetries
	}
	if c.Dispatch.TokenKey == "" {
		c.Dispatch.TokenKey = "DISPATCH_TOKEN"
	}
	if c.Dispatch.TimeoutSeconds == 0 {
		c.Dispatch.TimeoutSeconds = 30
	}
	if c.Board.PollIntervalSeconds == 0 {
		c.Board.PollIntervalSeconds = models.DefaultPollIntervalSeconds
	}
	if c.Board.FetchTimeoutSeconds == 0 {
		c.Board.FetchTimeoutSeconds = 15
	}
	if c.Board.ClubDailyLimit == 0 {
		c.Board.ClubDailyLimit = models.DefaultClubDailyLimit
	}
	if c.Board.HTTP.Port == 0 {
		c.Board.HTTP.Port = 8080
	}
	if c.Board.Auth.HeaderAPIKey == "" {
		c.Board.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Board.IntakeBackend == "" {
		c.Board.IntakeBackend = "sheet"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if len(c.Slots) == 0 {
		c.Slots = []string{"1", "2", "3", "4", "5"}
	}
}
