package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jsamuelsen/taskctx-service/internal/adapters/http"
	"github.com/jsamuelsen/taskctx-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/taskctx-service/internal/app"
	"github.com/jsamuelsen/taskctx-service/internal/app/taskcontext"
	"github.com/jsamuelsen/taskctx-service/internal/platform/config"
	"github.com/jsamuelsen/taskctx-service/internal/platform/logging"
	"github.com/jsamuelsen/taskctx-service/internal/platform/telemetry"
	"github.com/jsamuelsen/taskctx-service/internal/ports"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	// 1. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("module", cfg.App.Module),
	)

	// 2. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		ModuleName:   cfg.App.Module,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	logger.Info("telemetry initialized", slog.Bool("otlp_export", telProvider.Enabled()))

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 3. Prometheus registry with the task context collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := telemetry.NewTaskContextMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering task context metrics: %w", err)
	}

	// 4. Task context service and dispatcher
	taskContexts := taskcontext.NewService(taskcontext.WithObserver(metrics))

	dispatcher := app.NewDispatcher(app.DispatcherConfig{
		Service:        taskContexts,
		AppName:        cfg.App.Name,
		ModuleName:     cfg.App.Module,
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
		Logger:         logger,
	})

	// 5. Health registry
	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(dispatcher); err != nil {
		return fmt.Errorf("registering dispatcher health check: %w", err)
	}

	// 6. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo, handlers.WithGatherer(registry))
	taskContextHandler := handlers.NewTaskContextHandler(taskContexts, dispatcher, cfg.Dispatch.MaxBatch)

	// 7. Create HTTP server and router
	server := http.New(&cfg.Server, logger)

	routerCfg := http.NewDefaultRouterConfig(logger, &cfg.App, taskContexts, healthHandler, taskContextHandler)
	routerCfg.Timeout = cfg.Server.RequestTimeout
	http.SetupRouter(server.Engine(), routerCfg)

	// 8. Start server (non-blocking)
	serverErr := server.Start()

	// 9. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, dispatcher, serverErr, cfg)
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then stops the HTTP server and drains the dispatcher.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	dispatcher *app.Dispatcher,
	serverErr <-chan error,
	cfg *config.Config,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	return shutdown(context.WithoutCancel(ctx), logger, server, dispatcher,
		cfg.Server.ShutdownTimeout, cfg.Dispatch.ShutdownTimeout)
}

// shutdown stops accepting requests, drains in-flight requests, then drains
// dispatched work. Each phase has its own timeout.
func shutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	dispatcher *app.Dispatcher,
	serverTimeout, dispatchTimeout time.Duration,
) error {
	logger.Info("initiating graceful shutdown",
		slog.Duration("server_timeout", serverTimeout),
		slog.Duration("dispatch_timeout", dispatchTimeout),
	)

	serverCtx, cancel := context.WithTimeout(ctx, serverTimeout)
	defer cancel()

	if err := server.Shutdown(serverCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	dispatchCtx, cancelDispatch := context.WithTimeout(ctx, dispatchTimeout)
	defer cancelDispatch()

	if err := dispatcher.Close(dispatchCtx); err != nil {
		return fmt.Errorf("dispatcher shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
