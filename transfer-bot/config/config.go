package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "transfer-bot.yaml"

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Store file names inside Storage.DataDir.
const (
	AccountsFile = "accounts.json"
	QueueFile    = "queue.json"
	SettingsFile = "settings.json"
	LedgerFile   = "processed_users.txt"
	ProxiesFile  = "proxies.txt"
)

type Config struct {
	Bot        BotConfig        `yaml:"bot"        envconfig:"BOT"`
	Webhook    WebhookConfig    `yaml:"webhook"    envconfig:"WEBHOOK"`
	Storage    StorageConfig    `yaml:"storage"    envconfig:"STORAGE"`
	Ledger     LedgerConfig     `yaml:"ledger"     envconfig:"LEDGER"`
	Transfer   TransferConfig   `yaml:"transfer"   envconfig:"TRANSFER"`
	Health     HealthConfig     `yaml:"health"     envconfig:"HEALTH"`
	Onboarding OnboardingConfig `yaml:"onboarding" envconfig:"ONBOARDING"`
	Metrics    MetricsConfig    `yaml:"metrics"    envconfig:"METRICS"`
}

type BotConfig struct {
	Token           string `yaml:"token"           envconfig:"TOKEN"`
	AdminID         int64  `yaml:"adminUserId"     envconfig:"ADMIN_USER_ID"`
	RequiredChannel string `yaml:"requiredChannel" envconfig:"REQUIRED_CHANNEL"`
}

// WebhookConfig selects webhook delivery when URL is set, long polling otherwise.
type WebhookConfig struct {
	URL        string `yaml:"url"        envconfig:"URL"`
	ListenAddr string `yaml:"listenAddr" envconfig:"LISTEN_ADDR"`
	Secret     string `yaml:"secret"     envconfig:"SECRET"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" envconfig:"BACKEND"`
	DataDir string `yaml:"dataDir" envconfig:"DATA_DIR"`
	DSN     string `yaml:"dsn"     envconfig:"DSN"`
}

func (s StorageConfig) Path(name string) string {
	return filepath.Join(s.DataDir, name)
}

type LedgerConfig struct {
	Backend  string `yaml:"backend"  envconfig:"BACKEND"`
	RedisURL string `yaml:"redisUrl" envconfig:"REDIS_URL"`
	RedisKey string `yaml:"redisKey" envconfig:"REDIS_KEY"`
}

type TransferConfig struct {
	PollInterval  time.Duration `yaml:"pollInterval"  envconfig:"POLL_INTERVAL"`
	JobTarget     int           `yaml:"jobTarget"     envconfig:"JOB_TARGET"`
	PerAccount    int           `yaml:"perAccount"    envconfig:"PER_ACCOUNT"`
	FetchLimit    int           `yaml:"fetchLimit"    envconfig:"FETCH_LIMIT"`
	ProgressEvery int           `yaml:"progressEvery" envconfig:"PROGRESS_EVERY"`
	MinDelay      time.Duration `yaml:"minDelay"      envconfig:"MIN_DELAY"`
	MaxDelay      time.Duration `yaml:"maxDelay"      envconfig:"MAX_DELAY"`
	FloodMargin   time.Duration `yaml:"floodMargin"   envconfig:"FLOOD_MARGIN"`
	DialTimeout   time.Duration `yaml:"dialTimeout"   envconfig:"DIAL_TIMEOUT"`
}

type HealthConfig struct {
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	// Concurrency bounds the live checks behind the "my accounts" view.
	Concurrency int `yaml:"concurrency" envconfig:"CONCURRENCY"`
}

type OnboardingConfig struct {
	IdleTimeout time.Duration `yaml:"idleTimeout" envconfig:"IDLE_TIMEOUT"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr" envconfig:"LISTEN_ADDR"`
}

func Default() *Config {
	return &Config{
		Webhook: WebhookConfig{ListenAddr: ":8080"},
		Storage: StorageConfig{Backend: BackendFile, DataDir: "."},
		Ledger:  LedgerConfig{Backend: BackendFile},
		Transfer: TransferConfig{
			PollInterval:  10 * time.Second,
			JobTarget:     200,
			PerAccount:    40,
			FetchLimit:    3000,
			ProgressEvery: 5,
			MinDelay:      45 * time.Second,
			MaxDelay:      100 * time.Second,
			FloodMargin:   20 * time.Second,
			DialTimeout:   30 * time.Second,
		},
		Health:     HealthConfig{Interval: 6 * time.Hour, Concurrency: 4},
		Onboarding: OnboardingConfig{IdleTimeout: 15 * time.Minute},
	}
}

// Load layers defaults, the YAML file, .env and the environment, in that order.
// An empty path falls back to ./transfer-bot.yaml when it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	_ = godotenv.Load()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	cfg.Webhook.URL = strings.TrimSuffix(cfg.Webhook.URL, "/")
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Storage.Backend {
	case BackendFile:
	case BackendPostgres, BackendSQLite:
		if cfg.Storage.DSN == "" {
			return newConfigError("STORAGE_DSN", "required for the "+cfg.Storage.Backend+" backend")
		}
	default:
		return newConfigError("STORAGE_BACKEND", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend))
	}

	switch cfg.Ledger.Backend {
	case BackendFile:
	case BackendRedis:
		if cfg.Ledger.RedisURL == "" {
			return newConfigError("LEDGER_REDIS_URL", "required for the redis ledger")
		}
	default:
		return newConfigError("LEDGER_BACKEND", fmt.Sprintf("unknown backend %q", cfg.Ledger.Backend))
	}

	t := cfg.Transfer
	positive := map[string]int{
		"TRANSFER_JOB_TARGET":  t.JobTarget,
		"TRANSFER_PER_ACCOUNT": t.PerAccount,
		"TRANSFER_FETCH_LIMIT": t.FetchLimit,
	}
	for field, value := range positive {
		if value <= 0 {
			return newConfigError(field, "must be greater than zero")
		}
	}
	if t.PollInterval <= 0 {
		return newConfigError("TRANSFER_POLL_INTERVAL", "must be greater than zero")
	}
	if t.MinDelay < 0 || t.MaxDelay < t.MinDelay {
		return newConfigError("TRANSFER_MAX_DELAY", "must not be below TRANSFER_MIN_DELAY")
	}
	if cfg.Health.Interval <= 0 {
		return newConfigError("HEALTH_INTERVAL", "must be greater than zero")
	}
	if cfg.Onboarding.IdleTimeout <= 0 {
		return newConfigError("ONBOARDING_IDLE_TIMEOUT", "must be greater than zero")
	}
	if cfg.Webhook.URL != "" && cfg.Webhook.Secret == "" {
		return newConfigError("WEBHOOK_SECRET", "required when WEBHOOK_URL is set")
	}
	return nil
}

// ValidateBot checks the settings only the bot front end needs.
func (c *Config) ValidateBot() error {
	if c.Bot.Token == "" {
		return newConfigError("BOT_TOKEN", "cannot be empty")
	}
	if c.Bot.AdminID == 0 {
		return newConfigError("ADMIN_USER_ID", "cannot be empty")
	}
	return nil
}

type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Reason
}

func newConfigError(field, reason string) ConfigError {
	return ConfigError{
		Field:  field,
		Reason: reason,
	}
}

type ctxKey string

const configContextKey ctxKey = "transfer-bot.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}
