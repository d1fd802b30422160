// Package server builds the application's dependency graph and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteintel/internal/api"
	"github.com/JakeFAU/siteintel/internal/apify"
	"github.com/JakeFAU/siteintel/internal/builtwith"
	"github.com/JakeFAU/siteintel/internal/clock/system"
	"github.com/JakeFAU/siteintel/internal/config"
	"github.com/JakeFAU/siteintel/internal/id/uuid"
	"github.com/JakeFAU/siteintel/internal/logging"
	"github.com/JakeFAU/siteintel/internal/metrics"
	"github.com/JakeFAU/siteintel/internal/publisher"
	memorypublisher "github.com/JakeFAU/siteintel/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/siteintel/internal/publisher/pubsub"
	"github.com/JakeFAU/siteintel/internal/ratelimit"
	"github.com/JakeFAU/siteintel/internal/service"
	archive "github.com/JakeFAU/siteintel/internal/storage"
	gcsstorage "github.com/JakeFAU/siteintel/internal/storage/gcs"
	localstorage "github.com/JakeFAU/siteintel/internal/storage/local"
	memorystorage "github.com/JakeFAU/siteintel/internal/storage/memory"
	"github.com/JakeFAU/siteintel/internal/store"
	"github.com/JakeFAU/siteintel/internal/telemetry"
	memorystore "github.com/JakeFAU/siteintel/internal/store/memory"
	pgstore "github.com/JakeFAU/siteintel/internal/store/postgres"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	storage         *storage.Client
	resultStore     store.ResultStore
	tracerShutdown  func(context.Context) error
}

// Version is reported in trace resources; the CLI sets it at startup.
var Version = "dev"

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("apify_configured", cfg.Apify.Token != ""),
		zap.Bool("builtwith_configured", cfg.BuiltWith.APIKey != ""),
		zap.Bool("database_configured", cfg.DB.DSN != ""),
		zap.String("storage_backend", cfg.Storage.Backend),
	)
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases clients, flushes pending spans, and syncs the logger.
func (a *App) Close(ctx context.Context) {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.resultStore != nil {
		a.resultStore.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := NewApp(cfg, logger)
	app.logger.Info("building application dependencies")

	app.tracerShutdown, err = telemetry.InitTracing(ctx, telemetry.Config{
		ServiceName:    "siteintel",
		ServiceVersion: Version,
		ProjectID:      cfg.Telemetry.ProjectID,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	httpClient := setupHTTPClient(app)

	archiver, err := setupStorage(ctx, app)
	if err != nil {
		return nil, err
	}
	if err := setupDatabase(ctx, app); err != nil {
		return nil, err
	}
	pub, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	source := apify.New(apify.Config{
		Token:        cfg.Apify.Token,
		BaseURL:      cfg.Apify.BaseURL,
		ActorID:      cfg.Apify.ActorID,
		MaxPages:     cfg.Apify.MaxPages,
		PollInterval: cfg.PollInterval(),
		MaxPolls:     cfg.Apify.MaxPolls,
	}, httpClient, logger.Named("apify"))
	if !source.Configured() {
		app.logger.Warn("APIFY_API_TOKEN not configured, analyses will use mock data")
	}

	var lookup builtwith.Lookuper
	if cfg.BuiltWith.APIKey != "" {
		lookup = builtwith.NewClient(builtwith.Config{
			APIKey:  cfg.BuiltWith.APIKey,
			BaseURL: cfg.BuiltWith.BaseURL,
			Timeout: time.Duration(cfg.BuiltWith.TimeoutSeconds) * time.Second,
		}, httpClient)
	} else {
		app.logger.Warn("BUILTWITH_API_KEY not configured, technology profiles will use mock data")
	}

	deps := service.Deps{
		Source:    source,
		Enricher:  builtwith.NewEnricher(lookup, logger.Named("builtwith")),
		Store:     app.resultStore,
		Publisher: pub,
		IDs:       uuid.New(),
		Clock:     system.New(),
	}
	if archiver != nil {
		deps.Archiver = archiver
	}
	if job, work := cfg.JobBudget(), cfg.WorkBudget(); job > work {
		app.logger.Warn("traffic jobs may outlast the request timeout and fall back to mock data",
			zap.Duration("job_budget", job), zap.Duration("work_budget", work))
	}
	svc := service.New(deps, service.Config{
		Topic:        cfg.PubSub.TopicName,
		WorkBudget:   cfg.WorkBudget(),
		WriteTimeout: cfg.WriteTimeout(),
	}, logger.Named("service"))

	app.apiServer = api.NewServer(svc, *cfg, logger.Named("api"))
	return app, nil
}

func setupHTTPClient(app *App) *http.Client {
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   app.cfg.RateLimit.RPS,
		DefaultBurst: app.cfg.RateLimit.Burst,
	})
	app.logger.Info("outbound rate limiter configured",
		zap.Float64("rps", app.cfg.RateLimit.RPS),
		zap.Int("burst", app.cfg.RateLimit.Burst),
		zap.Duration("timeout", app.cfg.OutboundTimeout()),
	)
	return &http.Client{
		Timeout:   app.cfg.OutboundTimeout(),
		Transport: ratelimit.NewTransport(limiter, http.DefaultTransport),
	}
}

func setupStorage(ctx context.Context, app *App) (*archive.Archiver, error) {
	var blobStore archive.BlobStore
	switch app.cfg.Storage.Backend {
	case config.StorageBackendGCS:
		app.logger.Info("using GCS archive backend", zap.String("bucket", app.cfg.Storage.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		gcs, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket:   app.cfg.Storage.Bucket,
			Metadata: map[string]string{"service": "siteintel"},
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		if err := gcs.Check(ctx); err != nil {
			app.logger.Warn("gcs bucket check failed, archive writes may fail", zap.Error(err))
		}
		blobStore = gcs
	case config.StorageBackendLocal:
		app.logger.Info("using local archive backend", zap.String("path", app.cfg.Storage.BaseDir))
		local, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		blobStore = local
	case config.StorageBackendNone:
		app.logger.Info("raw payload archive disabled")
		return nil, nil
	default:
		app.logger.Info("using in-memory archive backend")
		blobStore = memorystorage.NewBlobStore()
	}
	return archive.NewArchiver(blobStore, app.cfg.Storage.Prefix), nil
}

func setupDatabase(ctx context.Context, app *App) error {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("no database DSN configured, results are kept in memory only")
		app.resultStore = memorystore.New()
		return nil
	}
	pg, err := pgstore.New(ctx, pgstore.Config{
		DSN:             app.cfg.DB.DSN,
		Table:           app.cfg.DB.Table,
		Column:          app.cfg.DB.Column,
		MaxConns:        app.cfg.DB.MaxConns,
		MinConns:        app.cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(app.cfg.DB.MaxConnLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("result store init failed: %w", err)
	}
	app.resultStore = pg
	app.logger.Info("result store initialized",
		zap.String("table", app.cfg.DB.Table),
		zap.String("column", app.cfg.DB.Column),
	)
	return nil
}

func setupPublisher(ctx context.Context, app *App) (publisher.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubPublisher = app.pubsubClient.Publisher(app.cfg.PubSub.TopicName)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(app.pubsubPublisher), nil
}
