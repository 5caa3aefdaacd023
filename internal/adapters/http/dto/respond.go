package dto

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/taskctx-service/internal/platform/logging"
)

// HandleError writes the error response for err, including the trace ID
// when one is available. Server-side failures are logged with full detail.
func HandleError(c *gin.Context, err error) {
	status, errResp := FromError(err)
	errResp.TraceID = traceID(c)

	if status >= http.StatusInternalServerError {
		ctx := c.Request.Context()
		logging.FromContext(ctx).ErrorContext(ctx, "request failed",
			slog.Any("error", err),
			slog.String("code", errResp.Error.Code),
			slog.String("trace_id", errResp.TraceID),
		)
	}

	c.JSON(status, errResp)
}

// HandleBindError writes a 400 for a failed BindAndValidate, with
// field-level details when the body was well-formed but invalid.
func HandleBindError(c *gin.Context, err error) {
	if IsValidationError(err) {
		c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(
			ErrorCodeValidation,
			"request validation failed",
			ValidationErrors(err),
		).WithTraceID(traceID(c)))

		return
	}

	c.JSON(http.StatusBadRequest, NewErrorResponse(ErrorCodeBadRequest, err.Error()).WithTraceID(traceID(c)))
}

func traceID(c *gin.Context) string {
	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	return ""
}
