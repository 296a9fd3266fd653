// Package shipwatch parses service flags and launches the readiness runtime.
package shipwatch

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/shipwatch/internal/platform/cmd"
	"github.com/louisbranch/shipwatch/internal/platform/config"
	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
	readiness "github.com/louisbranch/shipwatch/internal/services/readiness/app"
)

// Config holds shipwatch service configuration.
type Config struct {
	HTTPAddr     string `env:"SHIPWATCH_HTTP_ADDR" envDefault:":8080"`
	HealthPort   int    `env:"SHIPWATCH_HEALTH_PORT" envDefault:"8089"`
	StoreBackend string `env:"SHIPWATCH_STORE_BACKEND" envDefault:"sqlite"`
	StorePath    string `env:"SHIPWATCH_STORE_PATH" envDefault:"data/shipwatch.db"`
	CatalogPath  string `env:"SHIPWATCH_CATALOG_PATH"`
	Locale       string `env:"SHIPWATCH_LOCALE"`

	GitHubBaseURL    string `env:"SHIPWATCH_GITHUB_BASE_URL"`
	GitHubToken      string `env:"SHIPWATCH_GITHUB_TOKEN"`
	VercelBaseURL    string `env:"SHIPWATCH_VERCEL_BASE_URL"`
	VercelToken      string `env:"SHIPWATCH_VERCEL_TOKEN"`
	VercelTeamID     string `env:"SHIPWATCH_VERCEL_TEAM_ID"`
	ScreenshotURL    string `env:"SHIPWATCH_SCREENSHOT_URL"`
	ScreenshotAPIKey string `env:"SHIPWATCH_SCREENSHOT_API_KEY"`
	NotifyURL        string `env:"SHIPWATCH_NOTIFY_URL"`
	NotifyToken      string `env:"SHIPWATCH_NOTIFY_TOKEN"`
	WebhookSecret    string `env:"SHIPWATCH_WEBHOOK_SECRET"`

	FetchTimeout    time.Duration `env:"SHIPWATCH_FETCH_TIMEOUT" envDefault:"10s"`
	Budget          time.Duration `env:"SHIPWATCH_EVALUATION_BUDGET" envDefault:"60s"`
	NotifyTimeout   time.Duration `env:"SHIPWATCH_NOTIFY_TIMEOUT" envDefault:"15s"`
	VerificationTTL time.Duration `env:"SHIPWATCH_VERIFICATION_TTL" envDefault:"24h"`
	PollInterval    time.Duration `env:"SHIPWATCH_POLL_INTERVAL" envDefault:"15m"`
	BatchSize       int           `env:"SHIPWATCH_BATCH_SIZE" envDefault:"3"`
	BatchPause      time.Duration `env:"SHIPWATCH_BATCH_PAUSE" envDefault:"2s"`
	Once            bool          `env:"SHIPWATCH_ONCE"`
}

// Validate rejects timeout and backend combinations the runtime cannot honor.
func (c Config) Validate() error {
	if err := config.RequireShorter("fetch-timeout", c.FetchTimeout, "budget", c.Budget); err != nil {
		return err
	}
	if c.NotifyTimeout <= 0 {
		return apperrors.New(apperrors.CodeConfigInvalid, "notify-timeout must be positive")
	}
	switch c.StoreBackend {
	case readiness.BackendSQLite, readiness.BackendBolt:
	default:
		return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "unknown store backend", map[string]string{"backend": c.StoreBackend})
	}
	if c.BatchSize < 0 {
		return apperrors.New(apperrors.CodeConfigInvalid, "batch-size must not be negative")
	}
	return nil
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The webhook HTTP listen address")
	fs.IntVar(&cfg.HealthPort, "port", cfg.HealthPort, "The health gRPC server port")
	fs.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "State store backend (sqlite or bbolt)")
	fs.StringVar(&cfg.StorePath, "db-path", cfg.StorePath, "The state store file path")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "The project catalog TOML path")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Notification language tag")
	fs.StringVar(&cfg.NotifyURL, "notify-url", cfg.NotifyURL, "Notification delivery webhook URL")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Per-source fetch timeout")
	fs.DurationVar(&cfg.Budget, "budget", cfg.Budget, "Per-project evaluation budget")
	fs.DurationVar(&cfg.NotifyTimeout, "notify-timeout", cfg.NotifyTimeout, "Notification delivery timeout")
	fs.DurationVar(&cfg.VerificationTTL, "verification-ttl", cfg.VerificationTTL, "How long a recommendation stays pending")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Scheduled evaluation interval")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Projects evaluated concurrently per batch")
	fs.DurationVar(&cfg.BatchPause, "batch-pause", cfg.BatchPause, "Pause between batches")
	fs.BoolVar(&cfg.Once, "once", cfg.Once, "Run a single evaluation pass and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RuntimeConfig converts the command config for the readiness runtime.
func (c Config) RuntimeConfig() readiness.RuntimeConfig {
	return readiness.RuntimeConfig{
		HTTPAddr:         c.HTTPAddr,
		HealthPort:       c.HealthPort,
		StoreBackend:     c.StoreBackend,
		StorePath:        c.StorePath,
		CatalogPath:      c.CatalogPath,
		Locale:           c.Locale,
		GitHubBaseURL:    c.GitHubBaseURL,
		GitHubToken:      c.GitHubToken,
		VercelBaseURL:    c.VercelBaseURL,
		VercelToken:      c.VercelToken,
		VercelTeamID:     c.VercelTeamID,
		ScreenshotURL:    c.ScreenshotURL,
		ScreenshotAPIKey: c.ScreenshotAPIKey,
		NotifyURL:        c.NotifyURL,
		NotifyToken:      c.NotifyToken,
		WebhookSecret:    c.WebhookSecret,
		FetchTimeout:     c.FetchTimeout,
		Budget:           c.Budget,
		NotifyTimeout:    c.NotifyTimeout,
		VerificationTTL:  c.VerificationTTL,
		PollInterval:     c.PollInterval,
		BatchSize:        c.BatchSize,
		BatchPause:       c.BatchPause,
		Once:             c.Once,
	}
}

// Run starts the readiness runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceShipwatch, func(ctx context.Context) error {
		return readiness.Run(ctx, cfg.RuntimeConfig())
	})
}
