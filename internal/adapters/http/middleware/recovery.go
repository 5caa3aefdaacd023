package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/taskctx-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/taskctx-service/internal/platform/logging"
)

// Recovery returns middleware that recovers from panics, logs them with a
// stack trace, and answers 500 with the standard error envelope.
//
// It must be first in the chain. Middleware below it, such as TaskContext,
// still runs its deferred cleanup while the panic unwinds.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			ctx := c.Request.Context()

			ctxLogger := logger
			if logging.HasLogger(ctx) || ctxLogger == nil {
				ctxLogger = logging.FromContext(ctx)
			}

			errResp := dto.NewErrorResponse(dto.ErrorCodeInternal, "an internal error occurred")
			if span := trace.SpanFromContext(ctx); span.SpanContext().HasTraceID() {
				errResp.TraceID = span.SpanContext().TraceID().String()
			}

			ctxLogger.ErrorContext(ctx, "panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
				slog.String("path", c.Request.URL.Path),
				slog.String("method", c.Request.Method),
				slog.String("trace_id", errResp.TraceID),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
		}()

		c.Next()
	}
}
