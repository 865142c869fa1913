// Package app provides the main application struct for centralized dependency
// management and lifecycle control of the vlmodel server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"vlmodel/config"
	"vlmodel/internal/chat"
	"vlmodel/internal/files"
	"vlmodel/internal/generate"
	"vlmodel/internal/httpclient"
	"vlmodel/internal/images"
	"vlmodel/internal/server"
	"vlmodel/internal/storage"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config  *config.Config
	storage storage.Storage
	sweeper *files.Sweeper
	server  *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{config: cfg}

	// File metadata database
	store, fileStorage, err := newFileStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}
	app.storage = fileStorage

	// File bytes cache and lifecycle service
	cache := files.NewCache(cfg.Files.CacheDir)
	fileSvc := files.NewService(store, cache, cfg.Files.Retention, logger)

	// Background expiry sweeper
	app.sweeper = files.NewSweeper(store, cache, cfg.Files.SweepInterval, logger)
	app.sweeper.Start(ctx)

	// Image resolver: data URIs, internal file handles, remote downloads
	internalHost, err := publicHost(cfg.Server.PublicBaseURL)
	if err != nil {
		closeErr := app.closeStorage()
		return nil, errors.Join(fmt.Errorf("invalid PUBLIC_BASE_URL: %w", err), closeErr)
	}
	downloadCfg := httpclient.DownloadConfig()
	resolver := images.NewResolver(fileSvc, httpclient.New(&downloadCfg), internalHost, logger)

	// Inference runtime client and chat service
	runtimeCfg := httpclient.DefaultConfig()
	generator := generate.NewRuntimeClient(cfg.Model.RuntimeURL, httpclient.New(&runtimeCfg), logger)
	normalizer := chat.NewNormalizer(resolver, cfg.Files.ImageDir)
	chatSvc := chat.NewService(cfg.Model.Name, generator, normalizer, logger)

	app.server = server.New(chatSvc, fileSvc, &server.Config{
		MetricsEnabled: cfg.Server.MetricsEnabled,
		BodySizeLimit:  cfg.Server.BodySizeLimit,
		Logger:         logger,
	})

	logger.Info("application initialized",
		"model", cfg.Model.Name,
		"runtime", cfg.Model.RuntimeURL,
		"db_type", cfg.Database.Type,
		"file_retention", cfg.Files.Retention,
	)

	return app, nil
}

// newFileStore opens the configured database backend and builds the file
// record store on top of it.
func newFileStore(ctx context.Context, cfg *config.Config) (files.Store, storage.Storage, error) {
	switch strings.ToLower(cfg.Database.Type) {
	case storage.TypeSQLite:
		st, err := storage.NewSQLite(storage.SQLiteConfig{Path: cfg.Database.Path})
		if err != nil {
			return nil, nil, err
		}
		store, err := files.NewSQLiteStore(st.SQLiteDB())
		if err != nil {
			return nil, nil, errors.Join(err, st.Close())
		}
		return store, st, nil
	case storage.TypePostgreSQL, "postgres":
		st, err := storage.NewPostgreSQL(ctx, storage.PostgreSQLConfig{URL: cfg.Database.URL})
		if err != nil {
			return nil, nil, err
		}
		store, err := files.NewPostgresStore(ctx, st.PgxPool())
		if err != nil {
			return nil, nil, errors.Join(err, st.Close())
		}
		return store, st, nil
	default:
		return nil, nil, fmt.Errorf("unknown database type: %s", cfg.Database.Type)
	}
}

// publicHost extracts the host:port of the advertised base URL. Image URLs
// with this host are treated as internal file handles instead of being
// downloaded over HTTP.
func publicHost(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL %q has no host", baseURL)
	}
	return u.Host, nil
}

// CheckRuntime probes the inference runtime health endpoint. A failure is
// not fatal: the runtime may still be loading model weights.
func (a *App) CheckRuntime(ctx context.Context) error {
	runtimeCfg := httpclient.DownloadConfig()
	client := generate.NewRuntimeClient(a.config.Model.RuntimeURL, httpclient.New(&runtimeCfg), slog.Default())
	return client.CheckAvailability(ctx)
}

// Start starts the HTTP server on the configured address.
func (a *App) Start() error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	addr := a.config.Addr()
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// HTTP server first so no new requests arrive, then the sweeper, then the
// database. Shutdown is idempotent; repeated calls are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	if err := a.closeStorage(); err != nil {
		slog.Error("storage close error", "error", err)
		errs = append(errs, fmt.Errorf("storage close: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("application shutdown complete")
	return nil
}

func (a *App) closeStorage() error {
	if a.storage == nil {
		return nil
	}
	return a.storage.Close()
}
