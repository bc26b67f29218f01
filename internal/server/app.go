// Package server builds the application's dependencies from configuration and
// runs the crawl session next to its HTTP control surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/api"
	"github.com/JakeFAU/catalog-crawler/internal/browser/headless"
	"github.com/JakeFAU/catalog-crawler/internal/browser/static"
	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/control"
	"github.com/JakeFAU/catalog-crawler/internal/crawl"
	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/export"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	"github.com/JakeFAU/catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-crawler/internal/lifecycle"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/navigate"
	memorypublisher "github.com/JakeFAU/catalog-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-crawler/internal/session"
	gcsstorage "github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/catalog-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/catalog-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/catalog-crawler/internal/storage/postgres"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	runner    *session.Runner
	apiServer *api.Server
	browser   crawler.Browser
	pgStore   *pgstore.KVStore
	storage   *storage.Client
	publisher *gcppublisher.Publisher
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logging.ForSession(logger, cfg.Session.Name)}
	app.logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("browser_mode", cfg.Browser.Mode),
		zap.String("export_backend", cfg.Export.Backend),
	)

	kv, err := setupStore(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	exporter, err := setupExporter(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.browser = setupBrowser(app)

	runner, err := buildRunner(app, kv, exporter, publisher)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.runner = runner
	app.apiServer = api.NewServer(runner, *cfg, app.logger)
	return app, nil
}

// Handler exposes the API router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the session runner and the HTTP server and blocks until the
// context is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runnerDone := make(chan error, 1)
	go func() {
		a.logger.Info("session runner started")
		runnerDone <- a.runner.Run(ctx)
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
	select {
	case err := <-runnerDone:
		if err != nil {
			a.logger.Error("session runner error", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		a.logger.Warn("session runner did not stop before shutdown deadline")
	}

	return a.Close()
}

// Close releases the browser, store and cloud clients.
func (a *App) Close() error {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Warn("browser close failed", zap.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

func setupStore(ctx context.Context, app *App) (store.KV, error) {
	switch app.cfg.Store.Backend {
	case config.StorePostgres:
		app.logger.Info("using postgres process store", zap.String("table", app.cfg.Store.Table))
		kv, err := pgstore.NewKVStore(ctx, pgstore.Config{
			DSN:      app.cfg.Store.DSN,
			Table:    app.cfg.Store.Table,
			MaxConns: app.cfg.Store.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		app.pgStore = kv
		return kv, nil
	case config.StoreLocal:
		app.logger.Info("using local process store", zap.String("path", app.cfg.Store.Dir))
		kv, err := localstorage.NewKVStore(localstorage.Config{BaseDir: app.cfg.Store.Dir})
		if err != nil {
			return nil, fmt.Errorf("local store init failed: %w", err)
		}
		return kv, nil
	default:
		app.logger.Warn("using in-memory process store; state is lost on restart")
		return memorystorage.NewKVStore(), nil
	}
}

func setupExporter(ctx context.Context, app *App) (session.Exporter, error) {
	var blobs crawler.BlobStore
	switch app.cfg.Export.Backend {
	case config.ExportGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobs, err = gcsstorage.New(client, gcsstorage.Config{
			Bucket: app.cfg.Export.GCSBucket,
			Prefix: app.cfg.Export.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("exporting to GCS", zap.String("bucket", app.cfg.Export.GCSBucket))
	case config.ExportLocal:
		local, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Export.Dir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		blobs = local
		app.logger.Info("exporting to local directory", zap.String("path", app.cfg.Export.Dir))
	case config.ExportMemory:
		blobs = memorystorage.NewBlobStore()
		app.logger.Info("exporting to memory")
	default:
		app.logger.Info("export disabled")
		return nil, nil
	}
	return export.NewExporter(blobs, system.New(), app.logger), nil
}

func setupPublisher(ctx context.Context, app *App) (crawler.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	pub, err := gcppublisher.New(ctx, gcppublisher.Config{
		ProjectID: app.cfg.PubSub.ProjectID,
		Topic:     app.cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.publisher = pub
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return pub, nil
}

func setupBrowser(app *App) crawler.Browser {
	if app.cfg.Browser.Mode == config.BrowserStatic {
		app.logger.Info("using static browser", zap.String("user_agent", app.cfg.Browser.UserAgent))
		return static.New(static.Config{
			UserAgent: app.cfg.Browser.UserAgent,
			Timeout:   app.cfg.NavigationTimeout(),
		}, app.logger)
	}
	app.logger.Info("using headless browser", zap.Bool("show_window", app.cfg.Browser.ShowWindow))
	return headless.New(headless.Config{
		UserAgent:         app.cfg.Browser.UserAgent,
		NavigationTimeout: app.cfg.NavigationTimeout(),
		ShowWindow:        app.cfg.Browser.ShowWindow,
	}, app.logger)
}

func buildRunner(
	app *App,
	kv store.KV,
	exporter session.Exporter,
	publisher crawler.Publisher,
) (*session.Runner, error) {
	cfg := app.cfg
	clock := system.New()
	st := store.New(kv, cfg.Session.Name, app.logger)
	crawlCtl := crawl.New(st, cfg.Site, cfg.Timing, app.logger)
	resolver := extract.NewResolver(cfg.Site, app.logger)
	navCtl := navigate.New(st, resolver, cfg.Site, cfg.Timing, app.logger)
	dispatch := lifecycle.New(st, crawlCtl, navCtl, clock, cfg.Timing.Settle, app.logger)
	commands := control.New(st, crawlCtl, uuid.New(), app.logger)

	runner, err := session.NewRunner(session.Deps{
		Browser:    app.browser,
		Store:      st,
		Dispatcher: dispatch,
		Navigator:  navCtl,
		Commands:   commands,
		Exporter:   exporter,
		Publisher:  publisher,
		Clock:      clock,
		Logger:     app.logger,
	}, session.Options{
		StartURL:     cfg.Site.StartURL,
		AutoNavigate: cfg.Session.AutoNavigate,
		AutoExport:   cfg.Session.AutoExport,
		Topic:        cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("session runner init failed: %w", err)
	}
	return runner, nil
}
