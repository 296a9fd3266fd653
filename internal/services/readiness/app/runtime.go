package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/shipwatch/internal/platform/config"
	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
	platformgrpc "github.com/louisbranch/shipwatch/internal/platform/grpc"
	"github.com/louisbranch/shipwatch/internal/platform/timeouts"
	"github.com/louisbranch/shipwatch/internal/services/readiness/api"
	"github.com/louisbranch/shipwatch/internal/services/readiness/catalog"
	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"github.com/louisbranch/shipwatch/internal/services/readiness/gather"
	"github.com/louisbranch/shipwatch/internal/services/readiness/integrations/github"
	"github.com/louisbranch/shipwatch/internal/services/readiness/integrations/notify"
	"github.com/louisbranch/shipwatch/internal/services/readiness/integrations/screenshot"
	"github.com/louisbranch/shipwatch/internal/services/readiness/integrations/vercel"
	"github.com/louisbranch/shipwatch/internal/services/readiness/render"
	"github.com/louisbranch/shipwatch/internal/services/readiness/state"
	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
	boltstore "github.com/louisbranch/shipwatch/internal/services/readiness/storage/bbolt"
	sqlitestore "github.com/louisbranch/shipwatch/internal/services/readiness/storage/sqlite"
	"golang.org/x/sync/errgroup"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bbolt"
)

const (
	defaultHTTPAddr   = ":8080"
	defaultHealthPort = 8089
	defaultStorePath  = "data/shipwatch.db"
)

// RuntimeConfig controls shipwatch startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	HTTPAddr     string
	HealthPort   int
	StoreBackend string
	StorePath    string
	CatalogPath  string
	Locale       string

	GitHubBaseURL    string
	GitHubToken      string
	VercelBaseURL    string
	VercelToken      string
	VercelTeamID     string
	ScreenshotURL    string
	ScreenshotAPIKey string
	NotifyURL        string
	NotifyToken      string
	WebhookSecret    string

	FetchTimeout    time.Duration
	Budget          time.Duration
	NotifyTimeout   time.Duration
	VerificationTTL time.Duration
	PollInterval    time.Duration
	BatchSize       int
	BatchPause      time.Duration
	// Once runs a single scheduler pass and returns, for cron-driven hosts.
	Once bool
}

func (c RuntimeConfig) normalized() RuntimeConfig {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if c.HealthPort <= 0 {
		c.HealthPort = defaultHealthPort
	}
	if strings.TrimSpace(c.StoreBackend) == "" {
		c.StoreBackend = BackendSQLite
	}
	if strings.TrimSpace(c.StorePath) == "" {
		c.StorePath = defaultStorePath
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = timeouts.Fetch
	}
	if c.Budget <= 0 {
		c.Budget = timeouts.EvaluationBudget
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = timeouts.Notify
	}
	return c
}

// Components is the wired object graph shared by the service and the CLI.
type Components struct {
	Store     storage.Store
	Catalog   catalog.Catalog
	Gatherer  *gather.Gatherer
	Service   *Service
	Profiles  *state.Profiles
	purgeable interface {
		PurgeExpired(ctx context.Context) (int64, error)
	}
}

// Close releases the store.
func (c *Components) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// Projects returns the catalog merged with the deploy host listing.
func (c *Components) Projects(ctx context.Context) []domain.Project {
	return c.Gatherer.ResolveProjects(ctx, c.Catalog.DomainProjects())
}

// Project finds one project by name.
func (c *Components) Project(ctx context.Context, name string) (domain.Project, bool) {
	for _, project := range c.Projects(ctx) {
		if strings.EqualFold(project.Name, strings.TrimSpace(name)) {
			return project, true
		}
	}
	return domain.Project{}, false
}

// ProjectByRepo finds the project whose repository is fullName.
func (c *Components) ProjectByRepo(ctx context.Context, fullName string) (domain.Project, bool) {
	if project, ok := c.Catalog.ByRepo(fullName); ok {
		return project, true
	}
	for _, project := range c.Projects(ctx) {
		if full := project.RepoFullName(); full != "" && strings.EqualFold(full, fullName) {
			return project, true
		}
	}
	return domain.Project{}, false
}

// Purge drops expired store entries.
func (c *Components) Purge(ctx context.Context) {
	if c.purgeable == nil {
		return
	}
	purged, err := c.purgeable.PurgeExpired(ctx)
	if err != nil {
		log.Printf("purge expired entries: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("purged %d expired entries", purged)
	}
}

// Build opens the store and wires clients, gatherer and service. A missing
// notify URL is accepted here so read-only callers can build; delivery then
// fails with CodeDeliveryFailed.
func Build(ctx context.Context, cfg RuntimeConfig) (*Components, error) {
	cfg = cfg.normalized()
	if err := config.RequireShorter("fetch timeout", cfg.FetchTimeout, "evaluation budget", cfg.Budget); err != nil {
		return nil, err
	}

	var portfolio catalog.Catalog
	if strings.TrimSpace(cfg.CatalogPath) != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		portfolio = loaded
	}
	if strings.TrimSpace(cfg.Locale) == "" {
		cfg.Locale = portfolio.Locale
	}

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	source, err := github.NewClient(github.Config{BaseURL: cfg.GitHubBaseURL, Token: cfg.GitHubToken, HTTPClient: httpClient})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigInvalid, "github client", err)
	}
	var (
		deploy gather.DeployHost
		shots  gather.Screenshotter
	)
	if strings.TrimSpace(cfg.VercelToken) != "" {
		deploy = vercel.NewClient(vercel.Config{BaseURL: cfg.VercelBaseURL, Token: cfg.VercelToken, TeamID: cfg.VercelTeamID, HTTPClient: httpClient})
	}
	if strings.TrimSpace(cfg.ScreenshotURL) != "" {
		shots = screenshot.NewClient(screenshot.Config{BaseURL: cfg.ScreenshotURL, APIKey: cfg.ScreenshotAPIKey, HTTPClient: httpClient})
	}
	gatherer := gather.New(source, deploy, shots, gather.Config{FetchTimeout: cfg.FetchTimeout})

	store, purgeable, err := openStore(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		return nil, err
	}

	service, err := NewService(Deps{
		Gatherer:        gatherer,
		Notifier:        notify.NewClient(notify.Config{WebhookURL: cfg.NotifyURL, Token: cfg.NotifyToken, HTTPClient: &http.Client{Timeout: cfg.NotifyTimeout}}),
		Store:           store,
		Localizer:       render.NewLocalizer(cfg.Locale),
		Budget:          cfg.Budget,
		NotifyTimeout:   cfg.NotifyTimeout,
		VerificationTTL: cfg.VerificationTTL,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	components := &Components{
		Store:     store,
		Catalog:   portfolio,
		Gatherer:  gatherer,
		Service:   service,
		Profiles:  state.NewProfiles(store, time.Now),
		purgeable: purgeable,
	}
	components.seedProfiles(ctx)
	return components, nil
}

// seedProfiles writes catalog profile data for projects the content
// analyzer has not profiled yet.
func (c *Components) seedProfiles(ctx context.Context) {
	for _, entry := range c.Catalog.Projects {
		if !entry.HasProfileSeed() {
			continue
		}
		existing, err := c.Profiles.Load(ctx, entry.Name)
		if err != nil {
			log.Printf("seed profile project=%s: %v", entry.Name, err)
			continue
		}
		if !existing.UpdatedAt.IsZero() {
			continue
		}
		if err := c.Profiles.Save(ctx, entry.Name, state.ProjectProfile{
			FilesToDelete: entry.FilesToDelete,
			KnownBlockers: entry.KnownBlockers,
		}); err != nil {
			log.Printf("seed profile project=%s: %v", entry.Name, err)
		}
	}
}

func openStore(backend, path string) (storage.Store, interface {
	PurgeExpired(ctx context.Context) (int64, error)
}, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendSQLite:
		store, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store, nil
	case BackendBolt:
		store, err := boltstore.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open bbolt store: %w", err)
		}
		return store, store, nil
	default:
		return nil, nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "unknown store backend", map[string]string{"backend": backend})
	}
}

// Run starts the webhook server, the gRPC health server and the scheduler.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.normalized()
	if strings.TrimSpace(cfg.NotifyURL) == "" {
		return apperrors.New(apperrors.CodeConfigInvalid, "notify url is required")
	}

	components, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := components.Close(); closeErr != nil {
			log.Printf("close store: %v", closeErr)
		}
	}()

	scheduler := NewScheduler(components.Service, components.Projects, SchedulerConfig{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		BatchPause:   cfg.BatchPause,
	}, components.Purge)

	if cfg.Once {
		summary, err := scheduler.RunOnce(ctx)
		log.Printf("single pass: evaluated=%d notified=%d failed=%d", summary.Evaluated, summary.Notified, summary.Failed)
		components.Purge(ctx)
		return err
	}

	webhook, err := NewWebhookHandler(WebhookConfig{
		Service: components.Service,
		Store:   components.Store,
		Resolve: components.ProjectByRepo,
		Secret:  cfg.WebhookSecret,
		LockTTL: cfg.Budget + cfg.NotifyTimeout,
	})
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	webhook.Routes(mux)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	readinessAPI, err := NewReadinessAPI(components.Service, components.Project)
	if err != nil {
		return err
	}
	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	healthServer := platformgrpc.NewHealthServer()
	api.RegisterReadinessServer(healthServer.Server, readinessAPI)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthServer.Serve(gctx, healthListener)
	})
	g.Go(func() error {
		log.Printf("webhook server listening at %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve webhook: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	healthServer.SetServing(true)
	log.Printf("grpc server listening at %v", healthListener.Addr())
	return g.Wait()
}
