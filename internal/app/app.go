package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"roadscan/internal/config"
	"roadscan/internal/logger"
	"roadscan/internal/repository/sqlite"
	"roadscan/internal/route"
	"roadscan/internal/service"
	"roadscan/internal/service/capture"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  *logger.Logger
	db      *sqlite.DB
	manager *service.Manager
	server  *http.Server
}

// NewApp loads configuration, opens the detection history and builds every service.
func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	detectionRepo := sqlite.NewDetectionRepository(db)

	manager := service.NewManager(cfg, log, detectionRepo, service.LoadModels(cfg, log), capture.NewOpener(cfg.CameraSource))

	return &App{
		config:  cfg,
		logger:  log,
		db:      db,
		manager: manager,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           route.SetupRoutes(manager, cfg, log, detectionRepo),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is done, then shuts down and releases every resource.
func (a *App) Run(ctx context.Context) error {
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	a.logger.Info("🚀 Road damage inspection server")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("📷 Camera source: %s", a.config.CameraSource)
	a.logger.Info("🤖 AI Model: %s", a.config.ModelPath)
	a.logger.Info("🗄️  History: %s", a.config.DatabasePath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.manager.Run(gctx)
	})
	g.Go(func() error {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	err = multierr.Append(err, a.manager.Stop())
	err = multierr.Append(err, a.db.Close())
	a.logger.Info("🛑 Server stopped")
	err = multierr.Append(err, a.logger.Close())
	return err
}
