// Package server builds and runs the application.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/boqlabs/catalog-crawler/internal/api"
	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/clock/system"
	"github.com/boqlabs/catalog-crawler/internal/config"
	"github.com/boqlabs/catalog-crawler/internal/crawl"
	"github.com/boqlabs/catalog-crawler/internal/dispatcher"
	"github.com/boqlabs/catalog-crawler/internal/fetcher"
	"github.com/boqlabs/catalog-crawler/internal/id/uuid"
	"github.com/boqlabs/catalog-crawler/internal/logging"
	"github.com/boqlabs/catalog-crawler/internal/metrics"
	memorypublisher "github.com/boqlabs/catalog-crawler/internal/publisher/memory"
	gcppublisher "github.com/boqlabs/catalog-crawler/internal/publisher/pubsub"
	queuememory "github.com/boqlabs/catalog-crawler/internal/queue/memory"
	gcsstorage "github.com/boqlabs/catalog-crawler/internal/storage/gcs"
	localstorage "github.com/boqlabs/catalog-crawler/internal/storage/local"
	memorystorage "github.com/boqlabs/catalog-crawler/internal/storage/memory"
	pgstorage "github.com/boqlabs/catalog-crawler/internal/storage/postgres"
	"github.com/boqlabs/catalog-crawler/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	dispatch     *dispatcher.Dispatcher
	queue        *queuememory.Queue
	headless     *fetcher.Headless
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
	gcsClient    *storage.Client
	pgStore      *pgstorage.ResultStore
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies", zap.Int("port", cfg.Server.Port))

	jobStore := memorystorage.NewJobStore()

	resultStore, err := setupResultStore(ctx, app)
	if err != nil {
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	pageFetcher, err := setupFetcher(app)
	if err != nil {
		return nil, err
	}

	engine := crawl.NewEngine(pageFetcher, crawl.Config{
		MaxCategories: cfg.Crawler.MaxCategories,
		MaxPagination: cfg.Crawler.MaxPaginationPages,
	}, logger.Named("crawl"))

	app.queue = queuememory.NewQueue(cfg.Crawler.QueueDepth)
	clock := system.New()

	workerCfg := worker.Config{
		Topic:          cfg.PubSub.TopicName,
		PersistResults: cfg.Crawler.PersistResults,
	}
	var workers []*worker.Worker
	for i := 0; i < cfg.Crawler.Workers; i++ {
		workers = append(workers, worker.New(
			app.queue,
			jobStore,
			resultStore,
			publisher,
			engine,
			clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	app.dispatch = dispatcher.New(app.queue, workers)

	app.apiServer = api.NewServer(
		jobStore,
		resultStore,
		app.dispatch,
		engine,
		uuid.New(),
		clock,
		api.Config{SyncTimeout: cfg.SyncTimeout()},
		logger.Named("api"),
	)

	return app, nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close()
}

// Close gracefully shuts down the application.
func (a *App) Close() error {
	a.queue.Close()
	a.headless.Close()
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func setupResultStore(ctx context.Context, app *App) (catalog.ResultStore, error) {
	switch app.cfg.Storage.Backend {
	case "gcs":
		app.logger.Info("using GCS result store", zap.String("bucket", app.cfg.Storage.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: app.cfg.Storage.GCSBucket,
			Prefix: app.cfg.Storage.GCSPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs result store init failed: %w", err)
		}
		return store, nil
	case "local":
		app.logger.Info("using local result store", zap.String("dir", app.cfg.Storage.LocalDir))
		store, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local result store init failed: %w", err)
		}
		return store, nil
	case "postgres":
		app.logger.Info("using postgres result store", zap.String("table", app.cfg.Database.Table))
		store, err := pgstorage.New(ctx, pgstorage.ResultStoreConfig{
			DSN:      app.cfg.Database.DSN,
			Table:    app.cfg.Database.Table,
			MaxConns: int32(app.cfg.Database.MaxConns),
			MinConns: int32(app.cfg.Database.MinConns),
		})
		if err != nil {
			return nil, fmt.Errorf("postgres result store init failed: %w", err)
		}
		app.pgStore = store
		return store, nil
	default:
		app.logger.Info("using in-memory result store")
		return memorystorage.NewResultStore(), nil
	}
}

func setupPublisher(ctx context.Context, app *App) (catalog.Publisher, error) {
	if !app.cfg.PubSub.Enabled {
		app.logger.Info("pubsub disabled, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubTopic = client.Topic(app.cfg.PubSub.TopicName)
	app.logger.Info("pubsub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(app.pubsubTopic), nil
}

func setupFetcher(app *App) (catalog.Fetcher, error) {
	static, err := fetcher.NewStatic(fetcher.StaticConfig{
		UserAgent:          app.cfg.Crawler.UserAgent,
		RequestTimeout:     app.cfg.FetchTimeout(),
		Concurrency:        app.cfg.HTTP.Concurrency,
		RateLimitPerDomain: app.cfg.HTTP.RateLimitPerDomain,
	}, app.logger.Named("fetch"))
	if err != nil {
		return nil, fmt.Errorf("static fetcher init failed: %w", err)
	}

	if !app.cfg.Headless.Enabled {
		app.logger.Info("headless rendering disabled")
		return fetcher.NewPromoting(static, nil, nil, app.logger.Named("fetch")), nil
	}

	headless, err := fetcher.NewHeadless(fetcher.HeadlessConfig{
		UserAgent:      app.cfg.Crawler.UserAgent,
		MaxConcurrency: app.cfg.Headless.MaxParallel,
		Timeout:        app.cfg.NavTimeout(),
		DomainQPS:      app.cfg.Headless.DomainQPS,
	}, app.logger.Named("render"))
	if err != nil {
		return nil, fmt.Errorf("headless renderer init failed: %w", err)
	}
	app.headless = headless
	app.logger.Info("headless rendering enabled", zap.Int("max_parallel", app.cfg.Headless.MaxParallel))

	detector := fetcher.NewDetector(
		app.cfg.Headless.MinHTMLBytes,
		app.cfg.Headless.RequiredSelectors,
		app.cfg.Headless.SPAKeywords,
	)
	return fetcher.NewPromoting(static, headless, detector, app.logger.Named("fetch")), nil
}
