package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/taskctx-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/taskctx-service/internal/app/taskcontext"
	"github.com/jsamuelsen/taskctx-service/internal/domain"
	"github.com/jsamuelsen/taskctx-service/internal/platform/logging"
)

// TaskContextConfig names the application stamped onto every request.
type TaskContextConfig struct {
	AppName    string
	ModuleName string
}

// TaskContext returns middleware that runs each request in its own execution
// unit with an HTTP task context carrying APP_NAME, MODULE_NAME and the
// inbound host and port. The context is zapped once the rest of the chain
// returns, including when a later handler panics.
func TaskContext(svc *taskcontext.Service, cfg TaskContextConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := taskcontext.WithUnit(c.Request.Context())
		host, port := inboundAddr(c.Request)

		z, err := svc.Create(ctx, domain.TaskTypeHTTP, func(b *domain.TaskContextBuilder) {
			if cfg.AppName != "" {
				b.Set(domain.KeyAppName, cfg.AppName)
			}

			if cfg.ModuleName != "" {
				b.Set(domain.KeyModuleName, cfg.ModuleName)
			}

			if host != "" {
				b.Set(domain.KeyInboundHostname, host)
			}

			if port != "" {
				b.Set(domain.KeyInboundPort, port)
			}
		})
		if err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "creating request task context failed", "error", err)
			c.AbortWithStatusJSON(dto.FromError(err))

			return
		}
		defer z.Zap()

		c.Request = c.Request.WithContext(logging.WithTaskContext(ctx, z.TaskContext()))
		c.Next()
	}
}

// inboundAddr returns the local address the request arrived on. It prefers
// the server's listener address and falls back to the Host header, then to
// the scheme's default port.
func inboundAddr(r *http.Request) (host, port string) {
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok && addr != nil {
		if h, p, err := net.SplitHostPort(addr.String()); err == nil {
			return h, p
		}
	}

	if r.Host == "" {
		return "", ""
	}

	h, p, err := net.SplitHostPort(r.Host)
	if err != nil {
		h = r.Host
		p = strconv.Itoa(defaultPort(r))
	}

	return h, p
}

func defaultPort(r *http.Request) int {
	if r.TLS != nil {
		return 443
	}

	return 80
}
