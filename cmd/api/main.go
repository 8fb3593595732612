package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/cardio-intake/cmd/mainconfig"
	"github.com/wolfman30/cardio-intake/internal/api/router"
	"github.com/wolfman30/cardio-intake/internal/app/bootstrap"
	"github.com/wolfman30/cardio-intake/internal/channel"
	"github.com/wolfman30/cardio-intake/internal/compliance"
	appconfig "github.com/wolfman30/cardio-intake/internal/config"
	"github.com/wolfman30/cardio-intake/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/cardio-intake/internal/http/middleware"
	"github.com/wolfman30/cardio-intake/internal/intake"
	"github.com/wolfman30/cardio-intake/internal/observability/metrics"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

func main() {
	mainconfig.LoadEnv()
	cfg := appconfig.Load()

	logger := logging.NewWithFile(cfg.LogLevel, logging.FileOptions{Path: cfg.LogFile})
	logger.Info("starting cardio-intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var awsCfg *aws.Config
	if bootstrap.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	checks := map[string]handlers.Pinger{}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, cfg.SessionStore == "redis")
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		checks["redis"] = bootstrap.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	var store bootstrap.Store
	if pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		defer pool.Close()
		checks["postgres"] = pool
		store = patients.NewPostgresRepository(pool)
	} else {
		logger.Warn("postgres not configured; patients are kept in memory")
		store = patients.NewMemoryRepository()
	}
	store = bootstrap.WithCatalogCache(store, cfg.CatalogCacheTTL)

	var history *patients.ChatHistoryStore
	historyDB, err := bootstrap.OpenChatHistoryDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if historyDB != nil {
		defer func() { _ = historyDB.Close() }()
		history = patients.NewChatHistoryStore(historyDB)
	}

	assistant, closeAssistant, err := bootstrap.BuildAssistant(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeAssistant()

	availability, err := bootstrap.BuildCalendar(ctx, cfg, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	intakeMetrics := metrics.NewIntakeMetrics(registry)

	deps := intake.Deps{
		Sessions:   bootstrap.BuildSessionStore(cfg, redisClient, awsCfg, logger),
		Assistant:  assistant,
		Repository: store,
		Calendar:   availability,
		Notifier:   bootstrap.BuildNotifier(cfg, awsCfg, logger),
		Archive:    bootstrap.BuildArchive(cfg, awsCfg, logger),
		Metrics:    intakeMetrics,
		Logger:     logger,
	}
	if history != nil {
		deps.Transcript = history
	}
	orchestrator := intake.NewOrchestrator(deps, bootstrap.IntakeConfig(cfg))

	limiter := httpmiddleware.NewRateLimiter(2, 10)
	go limiter.Run(ctx, time.Minute)

	routerCfg := &router.Config{
		Logger:             logger,
		Health:             handlers.NewHealthHandler(checks, logger),
		Symptoms:           handlers.NewSymptomsHandler(store, logger),
		Patients:           handlers.NewPatientsHandler(store, logger),
		Chat:               channel.NewHandler(orchestrator, cfg.CORSAllowedOrigins, logger),
		ChatLimiter:        limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if canceller, ok := availability.(handlers.EventCanceller); ok {
		routerCfg.Appointments = handlers.NewAppointmentsHandler(canceller, logger)
	}
	if history != nil {
		routerCfg.ChatHistory = handlers.NewChatHistoryHandler(history, logger)
		routerCfg.Audit = compliance.NewAuditService(historyDB)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(routerCfg),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return serve(ctx, srv, logger)
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

