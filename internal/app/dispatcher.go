// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// The Dispatcher runs non-HTTP work (remote calls, queued messages) inside
// its own execution unit so that every item carries a task context, just as
// an HTTP request does through the TaskContext middleware.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/taskctx-service/internal/app/taskcontext"
	"github.com/jsamuelsen/taskctx-service/internal/domain"
	"github.com/jsamuelsen/taskctx-service/internal/platform/logging"
)

const (
	dispatcherName = "dispatcher"

	// DefaultMaxConcurrency bounds DispatchAll when no limit is configured.
	DefaultMaxConcurrency = 8
)

// WorkItem is one unit of work dispatched under a task context.
type WorkItem struct {
	// Type labels the work. IIOP and JMS are labels only.
	Type domain.TaskType

	// BeanName is recorded as BEAN_NAME when set.
	BeanName string

	// ModuleName overrides the dispatcher's default MODULE_NAME.
	ModuleName string

	// InboundHost and InboundPort describe where the work arrived.
	InboundHost string
	InboundPort int

	// Run does the work. ctx carries the item's task context.
	Run func(ctx context.Context) error
}

// Result reports the outcome of one dispatched item.
type Result struct {
	// Index is the item's position in the DispatchAll batch.
	Index int

	// TaskContext is the context the item ran under, nil if none was created.
	TaskContext *domain.TaskContext

	Duration time.Duration
	Err      error
}

// DispatcherConfig holds the dispatcher's dependencies and settings.
type DispatcherConfig struct {
	Service        *taskcontext.Service
	AppName        string
	ModuleName     string
	MaxConcurrency int
	Logger         *slog.Logger
}

// Dispatcher runs work items, each in a fresh execution unit.
type Dispatcher struct {
	service        *taskcontext.Service
	appName        string
	moduleName     string
	maxConcurrency int
	logger         *slog.Logger

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	svc := cfg.Service
	if svc == nil {
		svc = taskcontext.NewService()
	}

	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		service:        svc,
		appName:        cfg.AppName,
		moduleName:     cfg.ModuleName,
		maxConcurrency: limit,
		logger:         logger.With(slog.String("component", dispatcherName)),
	}
}

// Dispatch runs item in its own execution unit and returns its error.
func (d *Dispatcher) Dispatch(ctx context.Context, item WorkItem) error {
	return d.dispatch(ctx, 0, item).Err
}

// DispatchAll runs items with at most MaxConcurrency in flight. A failing
// item does not cancel the others; every item gets a Result in input order.
func (d *Dispatcher) DispatchAll(ctx context.Context, items []WorkItem) []Result {
	results := make([]Result, len(items))

	var g errgroup.Group
	g.SetLimit(d.maxConcurrency)

	for i, item := range items {
		g.Go(func() error {
			results[i] = d.dispatch(ctx, i, item)
			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (d *Dispatcher) dispatch(ctx context.Context, index int, item WorkItem) (res Result) {
	res.Index = index

	if !d.acquire() {
		res.Err = domain.NewUnavailableError(dispatcherName, "closed")
		return res
	}
	defer d.inflight.Done()

	if item.Run == nil {
		res.Err = domain.NewValidationError("run", "work item has nothing to run")
		return res
	}

	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("dispatching %s item: %w", item.Type, err)
		return res
	}

	if !logging.HasLogger(ctx) {
		ctx = logging.WithContext(ctx, d.logger)
	}

	start := time.Now()

	defer func() {
		res.Duration = time.Since(start)

		if r := recover(); r != nil {
			res.Err = fmt.Errorf("work item panicked: %v", r)
		}

		d.logResult(ctx, item, res)
	}()

	res.Err = d.service.Run(ctx, item.Type, d.populate(item), func(ctx context.Context) error {
		res.TaskContext = taskcontext.FromContext(ctx)
		return item.Run(ctx)
	})

	return res
}

func (d *Dispatcher) populate(item WorkItem) taskcontext.PopulateFunc {
	module := item.ModuleName
	if module == "" {
		module = d.moduleName
	}

	return func(b *domain.TaskContextBuilder) {
		if d.appName != "" {
			b.Set(domain.KeyAppName, d.appName)
		}

		if module != "" {
			b.Set(domain.KeyModuleName, module)
		}

		if item.BeanName != "" {
			b.Set(domain.KeyBeanName, item.BeanName)
		}

		if item.InboundHost != "" {
			b.Set(domain.KeyInboundHostname, item.InboundHost)
		}

		if item.InboundPort > 0 {
			b.Set(domain.KeyInboundPort, strconv.Itoa(item.InboundPort))
		}
	}
}

func (d *Dispatcher) logResult(ctx context.Context, item WorkItem, res Result) {
	logger := logging.FromContext(ctx)

	attrs := []any{
		slog.String("type", item.Type.String()),
		slog.Int("index", res.Index),
		slog.Duration("duration", res.Duration),
	}
	if res.TaskContext != nil {
		attrs = append(attrs, slog.Any("task_context", res.TaskContext))
	}

	if res.Err != nil {
		logger.WarnContext(ctx, "work item failed", append(attrs, slog.Any("error", res.Err))...)
		return
	}

	logger.DebugContext(ctx, "work item completed", attrs...)
}

func (d *Dispatcher) acquire() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	d.inflight.Add(1)

	return true
}

// Close stops accepting work and waits for in-flight items to finish or
// for ctx to be done, whichever comes first. Close is safe to call twice.
//
// When ctx ends first, Close returns its error but one goroutine keeps
// waiting on the remaining items and exits once the last of them returns.
// Items that ignore cancellation therefore keep that goroutine alive.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})

	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.InfoContext(ctx, "dispatcher drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining dispatcher: %w", ctx.Err())
	}
}

// Name implements ports.HealthChecker.
func (d *Dispatcher) Name() string {
	return dispatcherName
}

// Check implements ports.HealthChecker. The dispatcher is unhealthy once closed.
func (d *Dispatcher) Check(context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return domain.NewUnavailableError(dispatcherName, "closed")
	}

	return nil
}
