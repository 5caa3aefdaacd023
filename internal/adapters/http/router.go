package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/taskctx-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/taskctx-service/internal/adapters/http/middleware"
	"github.com/jsamuelsen/taskctx-service/internal/app/taskcontext"
	"github.com/jsamuelsen/taskctx-service/internal/platform/config"
	"github.com/jsamuelsen/taskctx-service/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// AppConfig contains application configuration. Name and Module
	// are stamped onto every request's task context.
	AppConfig *config.AppConfig

	// TaskContexts creates and releases the per-request task context.
	// When nil, a service without an observer is used.
	TaskContexts *taskcontext.Service

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// TaskContextHandler serves the task context API. Optional.
	TaskContextHandler *handlers.TaskContextHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID - generate/extract request ID
//  3. Correlation ID - handle distributed tracing correlation
//  4. Task context - one execution unit and HTTP task context per request
//  5. OpenTelemetry - tracing and metrics, tagged with the task context
//  6. Logging - request logging (skips health endpoints)
//  7. Timeout - request deadline on /api/v1
//
// Route groups:
//   - /-/ (internal): Health endpoints
//   - /api/v1/ (public API): Task context endpoints
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	svc := cfg.TaskContexts
	if svc == nil {
		svc = taskcontext.NewService()
	}

	var tcCfg middleware.TaskContextConfig
	if cfg.AppConfig != nil {
		tcCfg = middleware.TaskContextConfig{
			AppName:    cfg.AppConfig.Name,
			ModuleName: cfg.AppConfig.Module,
		}
	}

	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		middleware.TaskContext(svc, tcCfg),
		telemetry.TracingMiddleware(serviceName(cfg.AppConfig)),
		telemetry.Middleware(taskcontext.FromContext),
		middleware.Logging(cfg.Logger),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	setupAPIRoutes(apiV1, cfg)
}

// setupAPIRoutes registers business API routes.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.TaskContextHandler != nil {
		cfg.TaskContextHandler.RegisterRoutes(rg)
	}
}

// NewDefaultRouterConfig creates a RouterConfig with sensible defaults.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	appCfg *config.AppConfig,
	svc *taskcontext.Service,
	healthHandler *handlers.HealthHandler,
	taskContextHandler *handlers.TaskContextHandler,
) RouterConfig {
	return RouterConfig{
		Logger:             logger,
		AppConfig:          appCfg,
		TaskContexts:       svc,
		HealthHandler:      healthHandler,
		TaskContextHandler: taskContextHandler,
		Timeout:            DefaultRequestTimeout,
	}
}

func serviceName(cfg *config.AppConfig) string {
	if cfg == nil || cfg.Name == "" {
		return "taskctx-service"
	}

	return cfg.Name
}
