// Package ports defines interfaces between the application layer and the
// adapters that serve or observe it.
//
// Port Design Principles:
//   - Context as first parameter for blocking calls
//   - Domain types only, never transport or metrics types
//   - Keep interfaces small and focused
package ports

import (
	"time"

	"github.com/jsamuelsen/taskctx-service/internal/domain"
)

// TaskContextObserver receives task context lifecycle events.
// The telemetry adapter implements it with Prometheus collectors.
//
// Implementations are called on the request path and must not block.
type TaskContextObserver interface {
	// TaskContextCreated is called after a context becomes active.
	TaskContextCreated(t domain.TaskType)

	// TaskContextRejected is called when a create fails; reason is a short
	// machine-readable label such as "already_active".
	TaskContextRejected(t domain.TaskType, reason string)

	// TaskContextReleased is called when a context is zapped.
	TaskContextReleased(t domain.TaskType, lifetime time.Duration)
}
