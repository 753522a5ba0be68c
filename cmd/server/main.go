package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/navtree/internal/config"
	"github.com/jacksonlee411/navtree/internal/logging"
	"github.com/jacksonlee411/navtree/internal/metrics"
	"github.com/jacksonlee411/navtree/internal/server"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer p.Close()
		if err := p.Ping(ctx); err != nil {
			return err
		}
		pool = p
	}

	menus, err := server.NewMenuStore(cfg, pool)
	if err != nil {
		return err
	}
	uiState, err := server.NewUIStateFactory(cfg, pool)
	if err != nil {
		return err
	}
	var tenantRows server.QueryRower
	if pool != nil {
		tenantRows = pool
	}
	tenants, err := server.NewTenancyResolver(cfg, tenantRows)
	if err != nil {
		return err
	}

	h, err := server.NewHandlerWithOptions(server.HandlerOptions{
		Config:          cfg,
		Logger:          logger,
		Metrics:         metrics.New(cfg.MetricsNamespace),
		TenancyResolver: tenants,
		MenuStore:       menus,
		UIState:         uiState,
	})
	if err != nil {
		return err
	}

	logger.Info("starting navtree",
		zap.String("env", cfg.Env),
		zap.String("menu_store", cfg.MenuStore),
		zap.String("ui_state_store", cfg.UIStateStore),
	)
	return server.Serve(ctx, cfg.HTTPAddr, h, cfg.ShutdownTimeout, logger)
}
