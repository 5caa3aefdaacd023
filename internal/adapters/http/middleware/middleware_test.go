package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/taskctx-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/taskctx-service/internal/app/taskcontext"
	"github.com/jsamuelsen/taskctx-service/internal/domain"
	"github.com/jsamuelsen/taskctx-service/internal/platform/logging"
)

const uuidPattern = `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer is a bytes.Buffer safe for use by parallel log writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// TestRequestIDMiddleware tests the RequestID middleware.
func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		existingHeaderID string
		expectGenerated  bool
	}{
		{name: "generates UUID when no header present", expectGenerated: true},
		{name: "passes through existing header", existingHeaderID: "existing-req-123"},
		{name: "replaces header with spaces", existingHeaderID: "bad id", expectGenerated: true},
		{name: "replaces oversized header", existingHeaderID: strings.Repeat("x", maxIDLength+1), expectGenerated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var capturedID, capturedContextID string

			router := gin.New()
			router.Use(RequestID())
			router.GET("/test", func(c *gin.Context) {
				capturedID = GetRequestID(c)
				capturedContextID = RequestIDFromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.existingHeaderID != "" {
				req.Header.Set(HeaderRequestID, tt.existingHeaderID)
			}

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, w.Header().Get(HeaderRequestID), capturedID)
			assert.Equal(t, capturedID, capturedContextID)

			if tt.expectGenerated {
				assert.Regexp(t, uuidPattern, capturedID)
			} else {
				assert.Equal(t, tt.existingHeaderID, capturedID)
			}
		})
	}
}

// TestCorrelationIDMiddleware tests the CorrelationID middleware.
func TestCorrelationIDMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("propagates upstream ID", func(t *testing.T) {
		t.Parallel()

		var ginID, stdID string

		router := gin.New()
		router.Use(CorrelationID())
		router.GET("/test", func(c *gin.Context) {
			ginID = GetCorrelationID(c)
			stdID = CorrelationIDFromContext(c.Request.Context())
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderCorrelationID, "integration-corr-id")

		router.ServeHTTP(w, req)

		assert.Equal(t, "integration-corr-id", ginID)
		assert.Equal(t, ginID, stdID)
		assert.Equal(t, ginID, w.Header().Get(HeaderCorrelationID))
	})

	t.Run("starts new correlation", func(t *testing.T) {
		t.Parallel()

		var ginID string

		router := gin.New()
		router.Use(CorrelationID())
		router.GET("/test", func(c *gin.Context) {
			ginID = GetCorrelationID(c)
			c.Status(http.StatusOK)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Regexp(t, uuidPattern, ginID)
	})
}

// TestGetIDs tests the gin getters when the ID middleware was not applied.
func TestGetIDs(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Empty(t, GetRequestID(c))
	assert.Empty(t, GetCorrelationID(c))

	c.Set(ContextKeyRequestID, "req-1")
	c.Set(ContextKeyCorrelationID, 42)

	assert.Equal(t, "req-1", GetRequestID(c))
	assert.Empty(t, GetCorrelationID(c), "non-string value is ignored")
}

func TestValidID(t *testing.T) {
	t.Parallel()

	assert.True(t, validID("abc-123_XYZ.~"))
	assert.False(t, validID(""))
	assert.False(t, validID("tab\there"))
	assert.False(t, validID("ünïcode"))
	assert.True(t, validID(strings.Repeat("a", maxIDLength)))
	assert.False(t, validID(strings.Repeat("a", maxIDLength+1)))
}

// TestTaskContextMiddleware tests that each request runs in its own execution unit.
func TestTaskContextMiddleware(t *testing.T) {
	t.Parallel()

	svc := taskcontext.NewService()
	cfg := TaskContextConfig{AppName: "orders", ModuleName: "orders-web"}

	t.Run("creates HTTP context for the handler", func(t *testing.T) {
		t.Parallel()

		var (
			seen   *domain.TaskContext
			reqCtx context.Context
		)

		router := gin.New()
		router.Use(TaskContext(svc, cfg))
		router.GET("/test", func(c *gin.Context) {
			reqCtx = c.Request.Context()
			seen = taskcontext.FromContext(reqCtx)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "http://orders.internal:8443/test", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, seen)
		assert.Equal(t, domain.TaskTypeHTTP, seen.Type())
		assert.Equal(t, map[domain.TaskKey]string{
			domain.KeyAppName:         "orders",
			domain.KeyModuleName:      "orders-web",
			domain.KeyInboundHostname: "orders.internal",
			domain.KeyInboundPort:     "8443",
		}, seen.Values())

		assert.Nil(t, taskcontext.FromContext(reqCtx), "zapped after the chain returns")
	})

	t.Run("prefers the listener address", func(t *testing.T) {
		t.Parallel()

		var seen *domain.TaskContext

		router := gin.New()
		router.Use(TaskContext(svc, cfg))
		router.GET("/test", func(c *gin.Context) {
			seen = taskcontext.FromContext(c.Request.Context())
		})

		addr := &net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 9080}
		req := httptest.NewRequest(http.MethodGet, "http://public.example.com/test", nil)
		req = req.WithContext(context.WithValue(req.Context(), http.LocalAddrContextKey, addr))

		router.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, seen)
		assert.Equal(t, "10.1.2.3", seen.Get(domain.KeyInboundHostname))
		assert.Equal(t, "9080", seen.Get(domain.KeyInboundPort))
	})

	t.Run("zaps when the handler panics", func(t *testing.T) {
		t.Parallel()

		var reqCtx context.Context

		router := gin.New()
		router.Use(Recovery(discardLogger()), TaskContext(svc, cfg))
		router.GET("/panic", func(c *gin.Context) {
			reqCtx = c.Request.Context()
			panic("handler exploded")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		require.NotNil(t, reqCtx)
		assert.Nil(t, taskcontext.FromContext(reqCtx))
	})

	t.Run("rejects a second create inside the request", func(t *testing.T) {
		t.Parallel()

		var createErr error

		router := gin.New()
		router.Use(TaskContext(svc, cfg))
		router.GET("/test", func(c *gin.Context) {
			_, createErr = svc.Create(c.Request.Context(), domain.TaskTypeJMS, nil)

			status, body := dto.FromError(createErr)
			c.JSON(status, body)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		require.ErrorIs(t, createErr, domain.ErrIllegalState)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrorCodeIllegalState)
	})

	t.Run("adds the task context to the request logger", func(t *testing.T) {
		t.Parallel()

		var buf syncBuffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		}, TaskContext(svc, cfg))
		router.GET("/test", func(c *gin.Context) {
			logging.FromContext(c.Request.Context()).Info("handled")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(buf.String()), &entry))

		tc, ok := entry["task_context"].(map[string]any)
		require.True(t, ok, "task_context group present")
		assert.Equal(t, "HTTP", tc["type"])
		assert.Equal(t, "orders", tc["app_name"])
	})
}

func TestInboundAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		host     string
		tls      bool
		wantHost string
		wantPort string
	}{
		{name: "host and port", host: "svc:8080", wantHost: "svc", wantPort: "8080"},
		{name: "plain http default", host: "svc", wantHost: "svc", wantPort: "80"},
		{name: "tls default", host: "svc", tls: true, wantHost: "svc", wantPort: "443"},
		{name: "ipv6", host: "[::1]:9000", wantHost: "::1", wantPort: "9000"},
		{name: "empty host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host

			if tt.tls {
				req = httptest.NewRequest(http.MethodGet, "https://svc/", nil)
				req.Host = tt.host
			} else {
				req.TLS = nil
			}

			host, port := inboundAddr(req)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

// TestLogging tests the Logging middleware.
func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		path      string
		status    int
		skip      []string
		wantLevel string
		wantLog   bool
	}{
		{name: "logs normal request", path: "/api/test", status: http.StatusOK, wantLevel: "INFO", wantLog: true},
		{name: "logs 400 at warn", path: "/api/bad", status: http.StatusBadRequest, wantLevel: "WARN", wantLog: true},
		{name: "logs 500 at error", path: "/api/fail", status: http.StatusInternalServerError, wantLevel: "ERROR", wantLog: true},
		{name: "skips /-/ paths", path: "/-/live", status: http.StatusOK},
		{name: "skips configured path", path: "/metrics", status: http.StatusOK, skip: []string{"/metrics"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf syncBuffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			router := gin.New()
			router.Use(Logging(logger, tt.skip...))
			router.GET(tt.path, func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path+"?q=1", nil))

			assert.Equal(t, tt.status, w.Code)

			out := buf.String()
			if !tt.wantLog {
				assert.Empty(t, out)
				return
			}

			lines := strings.Split(strings.TrimSpace(out), "\n")
			require.Len(t, lines, 2)

			var completed map[string]any
			require.NoError(t, json.Unmarshal([]byte(lines[1]), &completed))
			assert.Equal(t, "request completed", completed["msg"])
			assert.Equal(t, tt.wantLevel, completed["level"])
			assert.Equal(t, tt.path+"?q=1", completed["path"])
		})
	}
}

// TestRecovery tests the Recovery middleware.
func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("answers 500 with envelope", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery(discardLogger()))
		router.GET("/panic", func(*gin.Context) { panic("boom") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrorCodeInternal, resp.Error.Code)
	})

	t.Run("keeps partial response", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery(nil))
		router.GET("/partial", func(c *gin.Context) {
			c.String(http.StatusAccepted, "started")
			panic("late")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/partial", nil))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "started", w.Body.String())
	})
}

// TestTimeout tests the Timeout middleware.
func TestTimeout(t *testing.T) {
	t.Parallel()

	t.Run("sets context deadline", func(t *testing.T) {
		t.Parallel()

		var hasDeadline bool

		router := gin.New()
		router.Use(Timeout(time.Second))
		router.GET("/test", func(c *gin.Context) {
			_, hasDeadline = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.True(t, hasDeadline)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("answers 504 when handler wrote nothing", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/slow", func(c *gin.Context) {
			<-c.Request.Context().Done()
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrorCodeTimeout)
	})

	t.Run("zero disables", func(t *testing.T) {
		t.Parallel()

		var hasDeadline bool

		router := gin.New()
		router.Use(Timeout(0))
		router.GET("/test", func(c *gin.Context) {
			_, hasDeadline = c.Request.Context().Deadline()
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.False(t, hasDeadline)
	})
}
