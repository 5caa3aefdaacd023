package telemetry

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/taskctx-service/internal/domain"
	"github.com/jsamuelsen/taskctx-service/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/taskctx-service/telemetry"

	// AttrTaskType is the span and metric attribute for the task type.
	AttrTaskType = "taskcontext.type"

	// AttrModuleName is the resource attribute for the configured module.
	AttrModuleName = "taskcontext.module_name"

	attrKeyPrefix = "taskcontext."
)

// TaskContextFunc returns the active task context of ctx, or nil.
type TaskContextFunc func(ctx context.Context) *domain.TaskContext

// TaskContextAttributes converts tc into span attributes, one per key plus
// the task type. A nil tc yields no attributes.
func TaskContextAttributes(tc *domain.TaskContext) []attribute.KeyValue {
	if tc == nil {
		return nil
	}

	attrs := make([]attribute.KeyValue, 0, tc.Len()+1)
	attrs = append(attrs, attribute.String(AttrTaskType, tc.Type().String()))

	for k, v := range tc.All() {
		attrs = append(attrs, attribute.String(attrKeyPrefix+strings.ToLower(k.String()), v))
	}

	return attrs
}

// Metrics holds HTTP server metrics.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
}

// NewMetrics creates HTTP server metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		activeRequests:  activeRequests,
	}, nil
}

// Middleware returns Gin middleware that records HTTP metrics, tags the
// current span with the request's task context, adds the trace ID to the
// context logger, and sets X-Trace-ID.
// It expects otelgin tracing to run before it; see TracingMiddleware.
func Middleware(taskContext TaskContextFunc) gin.HandlerFunc {
	metrics, err := NewMetrics()
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		base := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		}

		var tc *domain.TaskContext
		if taskContext != nil {
			tc = taskContext(ctx)
		}

		if tc != nil {
			base = append(base, attribute.String(AttrTaskType, tc.Type().String()))
		}

		span := trace.SpanFromContext(ctx)
		span.SetAttributes(TaskContextAttributes(tc)...)

		if sc := span.SpanContext(); sc.HasTraceID() {
			ctx = logging.WithTraceID(ctx, sc.TraceID().String())
			c.Request = c.Request.WithContext(ctx)
		}

		if metrics != nil {
			metrics.activeRequests.Add(ctx, 1, metric.WithAttributes(base...))
			defer metrics.activeRequests.Add(ctx, -1, metric.WithAttributes(base...))
		}

		c.Next()

		if span.SpanContext().HasTraceID() {
			c.Header("X-Trace-ID", span.SpanContext().TraceID().String())
		}

		if metrics != nil {
			attrs := append(slices.Clone(base), attribute.Int("http.status_code", c.Writer.Status()))
			metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
			metrics.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
	}
}

// TracingMiddleware returns the otelgin tracing middleware.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}
