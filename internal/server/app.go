// Package server initializes and runs the bundler application: it wires
// the filesystem providers, the job store, and the bundle services, and
// serves the HTTP endpoints with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/bundler/internal/bundler/config"
	"github.com/dmitrijs2005/bundler/internal/bundler/entrypath"
	"github.com/dmitrijs2005/bundler/internal/bundler/estimate"
	"github.com/dmitrijs2005/bundler/internal/bundler/hashgen"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/packer"
	"github.com/dmitrijs2005/bundler/internal/bundler/repositories"
	"github.com/dmitrijs2005/bundler/internal/bundler/repositories/inmemory"
	"github.com/dmitrijs2005/bundler/internal/bundler/repositories/postgres"
	"github.com/dmitrijs2005/bundler/internal/bundler/services"
	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// App owns the wired application graph and the HTTP server.
type App struct {
	config *config.Config
	logger logging.Logger
	engine *gin.Engine
	closer func() error
}

// NewApp wires the application from configuration: filesystem providers
// are registered once, the store is selected by DSN presence, and the
// bundle services are constructed on top.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	fs := vfs.NewRegistry(logger)
	fs.Register(vfs.NewLocalFileSystem())
	if cfg.S3Configured() {
		s3fs, err := vfs.NewS3FileSystem(ctx, vfs.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			IAMRole:   cfg.IAMRole,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 provider init error: %w", err)
		}
		fs.Register(s3fs)
	}

	var repo repositories.Repository
	closer := func() error { return nil }
	if cfg.DatabaseDSN != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		repo = pg
		closer = pg.Close
	} else {
		logger.Warn(ctx, "no database DSN configured, using the in-memory job store")
		repo = inmemory.New()
	}

	hashType, err := model.ParseHashType(cfg.HashType)
	if err != nil {
		return nil, fmt.Errorf("hash configuration error: %w", err)
	}

	if err := fs.MkdirAll(ctx, cfg.StagingDirectory); err != nil {
		return nil, fmt.Errorf("staging directory error: %w", err)
	}

	validator := services.NewFileValidator(fs, entrypath.New(cfg.EntryPathExclusions), logger)
	p := packer.New(estimate.New(cfg.AverageCompressionPct), logger)
	urls := packer.NewURLGenerator(cfg.StagingDirectoryBase, cfg.BaseURL)
	hasher := hashgen.New(fs, logger)

	factory := services.NewJobFactory(cfg, repo, fs, validator, p, urls, hasher, hashType, logger)
	reader := services.NewTrackerReader(repo, logger)
	archiver := services.NewRequestArchiver(cfg.RequestDirectory, fs, logger)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(Recovery(logger), RequestLogger(logger))
	NewHandler(factory, reader, repo, archiver, logger).Register(engine)

	return &App{
		config: cfg,
		logger: logger,
		engine: engine,
		closer: closer,
	}, nil
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.engine,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		app.closer()
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		app.logger.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.closer()
		return fmt.Errorf("http server shutdown error: %w", err)
	}
	if err := app.closer(); err != nil {
		return fmt.Errorf("store close error: %w", err)
	}
	app.logger.Info(context.Background(), "http server stopped")
	return nil
}
