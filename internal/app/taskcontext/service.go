package taskcontext

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jsamuelsen/taskctx-service/internal/domain"
	"github.com/jsamuelsen/taskctx-service/internal/platform/logging"
	"github.com/jsamuelsen/taskctx-service/internal/ports"
)

const opCreate = "create task context"

// ErrNoExecutionUnit is returned by Create when ctx was not prepared with WithUnit.
var ErrNoExecutionUnit = domain.NewIllegalStateError(opCreate, "no execution unit in context")

type unitKey struct{}

// unit is the slot shared by every context derived from one WithUnit call.
type unit struct {
	active atomic.Pointer[domain.TaskContext]
}

// WithUnit starts a new execution unit with no active task context.
func WithUnit(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, unitKey{}, &unit{})
}

// HasUnit reports whether ctx belongs to an execution unit.
func HasUnit(ctx context.Context) bool {
	return unitFrom(ctx) != nil
}

func unitFrom(ctx context.Context) *unit {
	if ctx == nil {
		return nil
	}

	u, _ := ctx.Value(unitKey{}).(*unit)

	return u
}

// FromContext returns the active task context of ctx's execution unit, or nil.
func FromContext(ctx context.Context) *domain.TaskContext {
	u := unitFrom(ctx)
	if u == nil {
		return nil
	}

	return u.active.Load()
}

// PopulateFunc sets the initial key/value pairs of a task context.
type PopulateFunc func(b *domain.TaskContextBuilder)

// Observer receives task context lifecycle events.
type Observer = ports.TaskContextObserver

type noopObserver struct{}

func (noopObserver) TaskContextCreated(domain.TaskType)                 {}
func (noopObserver) TaskContextRejected(domain.TaskType, string)        {}
func (noopObserver) TaskContextReleased(domain.TaskType, time.Duration) {}

// Rejection reasons reported to the Observer.
const (
	ReasonNoUnit        = "no_unit"
	ReasonAlreadyActive = "already_active"
	ReasonInvalid       = "invalid"
)

// Service creates, exposes and releases task contexts.
type Service struct {
	observer Observer
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithObserver reports lifecycle events to o.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewService creates a Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		observer: noopObserver{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create builds a task context of type t, lets populate set its keys, and
// makes it the active context of ctx's execution unit.
//
// It fails with an error matching domain.ErrIllegalState when ctx has no unit
// or the unit already has an active context; the active context is kept.
// It fails with domain.ErrValidation when t or a populated key is unknown.
// A nil populate leaves the context without keys.
func (s *Service) Create(ctx context.Context, t domain.TaskType, populate PopulateFunc) (*Zapper, error) {
	logger := logging.FromContext(ctx)

	u := unitFrom(ctx)
	if u == nil {
		s.observer.TaskContextRejected(t, ReasonNoUnit)
		logger.WarnContext(ctx, "task context created outside an execution unit",
			slog.String("type", t.String()))

		return nil, ErrNoExecutionUnit
	}

	if active := u.active.Load(); active != nil {
		return nil, s.rejectActive(ctx, logger, t, active)
	}

	b := domain.NewTaskContextBuilder(t)
	if populate != nil {
		populate(b)
	}

	tc, err := b.Build()
	if err != nil {
		s.observer.TaskContextRejected(t, ReasonInvalid)
		return nil, fmt.Errorf("%s: %w", opCreate, err)
	}

	// populate may have raced with another Create on the same unit.
	if !u.active.CompareAndSwap(nil, tc) {
		return nil, s.rejectActive(ctx, logger, t, u.active.Load())
	}

	s.observer.TaskContextCreated(t)
	logger.DebugContext(ctx, "task context created", slog.Any("task_context", tc))

	return &Zapper{
		service: s,
		unit:    u,
		tc:      tc,
		logger:  logger,
		created: s.now(),
	}, nil
}

func (s *Service) rejectActive(ctx context.Context, logger *slog.Logger, t domain.TaskType, active *domain.TaskContext) error {
	s.observer.TaskContextRejected(t, ReasonAlreadyActive)

	attrs := []any{slog.String("type", t.String())}
	if active != nil {
		attrs = append(attrs, slog.Any("active", active))
	}

	logger.WarnContext(ctx, "task context already active for execution unit", attrs...)

	return domain.NewIllegalStateError(opCreate, "a task context is already active for this execution unit")
}

// TaskContext returns the active task context of ctx's execution unit, or nil.
func (s *Service) TaskContext(ctx context.Context) *domain.TaskContext {
	return FromContext(ctx)
}

// Run starts a new execution unit, creates its task context, and calls fn
// with a context that carries both. The task context is zapped when Run
// returns, whether fn returns normally, with an error, or by panicking.
func (s *Service) Run(ctx context.Context, t domain.TaskType, populate PopulateFunc, fn func(ctx context.Context) error) error {
	ctx = WithUnit(ctx)

	z, err := s.Create(ctx, t, populate)
	if err != nil {
		return err
	}
	defer z.Zap()

	return fn(logging.WithTaskContext(ctx, z.TaskContext()))
}

func (s *Service) released(tc *domain.TaskContext, lifetime time.Duration, logger *slog.Logger) {
	s.observer.TaskContextReleased(tc.Type(), lifetime)
	logger.DebugContext(context.Background(), "task context zapped",
		slog.String("type", tc.Type().String()),
		slog.Duration("lifetime", lifetime),
	)
}

// Zapper releases the task context returned with it.
type Zapper struct {
	service *Service
	unit    *unit
	tc      *domain.TaskContext
	logger  *slog.Logger
	created time.Time
	once    sync.Once
}

// TaskContext returns the context this handle releases.
func (z *Zapper) TaskContext() *domain.TaskContext {
	return z.tc
}

// Zap clears the task context from its execution unit. Calls after the
// first, and calls on a nil Zapper, do nothing.
func (z *Zapper) Zap() {
	if z == nil {
		return
	}

	z.once.Do(func() {
		if !z.unit.active.CompareAndSwap(z.tc, nil) {
			return
		}

		z.service.released(z.tc, z.service.now().Sub(z.created), z.logger)
	})
}

// Close zaps the task context. It satisfies io.Closer and always returns nil.
func (z *Zapper) Close() error {
	z.Zap()
	return nil
}
