//go:build integration

package integration

import (
	"io"
	"log/slog"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/jsamuelsen/taskctx-service/internal/adapters/http"
	"github.com/jsamuelsen/taskctx-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/taskctx-service/internal/app"
	"github.com/jsamuelsen/taskctx-service/internal/app/taskcontext"
	"github.com/jsamuelsen/taskctx-service/internal/platform/config"
	"github.com/jsamuelsen/taskctx-service/internal/platform/telemetry"
	"github.com/jsamuelsen/taskctx-service/internal/ports"
)

// testService is the full HTTP stack served by an httptest.Server.
type testService struct {
	server     *httptest.Server
	dispatcher *app.Dispatcher
	registry   *prometheus.Registry
}

// startService wires the service the way cmd/service does, with its own
// Prometheus registry. maxBatch and maxConcurrency of 0 use the defaults.
func startService(maxBatch, maxConcurrency int) (*testService, error) {
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCfg := &config.AppConfig{
		Name:        "orders",
		Module:      "orders-web",
		Version:     "1.0.0",
		Environment: "test",
	}

	reg := prometheus.NewRegistry()

	metrics, err := telemetry.NewTaskContextMetrics(reg)
	if err != nil {
		return nil, err
	}

	svc := taskcontext.NewService(taskcontext.WithObserver(metrics))
	dispatcher := app.NewDispatcher(app.DispatcherConfig{
		Service:        svc,
		AppName:        appCfg.Name,
		ModuleName:     "orders-core",
		MaxConcurrency: maxConcurrency,
		Logger:         logger,
	})

	health := ports.NewHealthRegistry()
	if err := health.Register(dispatcher); err != nil {
		return nil, err
	}

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.NewDefaultRouterConfig(
		logger,
		appCfg,
		svc,
		handlers.NewHealthHandler(health, handlers.NewBuildInfo("1.0.0", "test", "now"), handlers.WithGatherer(reg)),
		handlers.NewTaskContextHandler(svc, dispatcher, maxBatch),
	))

	return &testService{
		server:     httptest.NewServer(engine),
		dispatcher: dispatcher,
		registry:   reg,
	}, nil
}

// Close stops the server.
func (s *testService) Close() {
	s.server.Close()
}

// URL returns the server's base URL.
func (s *testService) URL() string {
	return s.server.URL
}
