package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/taskctx-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/taskctx-service/internal/adapters/http/middleware"
	"github.com/jsamuelsen/taskctx-service/internal/app"
	"github.com/jsamuelsen/taskctx-service/internal/app/taskcontext"
	"github.com/jsamuelsen/taskctx-service/internal/domain"
)

// DefaultMaxBatch bounds the number of items in one dispatch request.
const DefaultMaxBatch = 64

// TaskContextHandler exposes the request's task context and dispatches
// batches of work, each item under its own task context.
type TaskContextHandler struct {
	service    *taskcontext.Service
	dispatcher *app.Dispatcher
	maxBatch   int
}

// NewTaskContextHandler creates a handler. A non-positive maxBatch uses
// DefaultMaxBatch.
func NewTaskContextHandler(svc *taskcontext.Service, dispatcher *app.Dispatcher, maxBatch int) *TaskContextHandler {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}

	return &TaskContextHandler{
		service:    svc,
		dispatcher: dispatcher,
		maxBatch:   maxBatch,
	}
}

// RegisterRoutes registers the task context routes:
//   - GET  /task-context
//   - POST /dispatch
func (h *TaskContextHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/task-context", h.Current)
	rg.POST("/dispatch", h.Dispatch)
}

// Current handles GET /api/v1/task-context and returns the task context of
// the request's execution unit.
func (h *TaskContextHandler) Current(c *gin.Context) {
	tc := h.service.TaskContext(c.Request.Context())
	if tc == nil {
		dto.HandleError(c, domain.NewNotFoundError("task context", "current request"))
		return
	}

	c.JSON(http.StatusOK, dto.NewTaskContextResponse(tc))
}

// Dispatch handles POST /api/v1/dispatch. Every item runs in a fresh
// execution unit; the response reports each item in request order and is
// 200 even when some items failed.
func (h *TaskContextHandler) Dispatch(c *gin.Context) {
	var req dto.DispatchRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	if err := req.CheckBatch(h.maxBatch); err != nil {
		dto.HandleError(c, err)
		return
	}

	items := make([]app.WorkItem, 0, len(req.Items))

	for i, it := range req.Items {
		item, err := workItem(it)
		if err != nil {
			dto.HandleError(c, domain.NewValidationErrorWithValue(
				fmt.Sprintf("items[%d].type", i), err.Error(), it.Type))

			return
		}

		items = append(items, item)
	}

	ctx := c.Request.Context()
	results := h.dispatcher.DispatchAll(ctx, items)

	resp := dto.DispatchResponse{
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		Results:       make([]dto.DispatchResultResponse, len(results)),
	}

	for i, res := range results {
		r := dto.DispatchResultResponse{
			Index:       res.Index,
			OK:          res.Err == nil,
			DurationMS:  float64(res.Duration) / float64(time.Millisecond),
			TaskContext: dto.NewTaskContextResponse(res.TaskContext),
		}

		if res.Err != nil {
			r.Error = res.Err.Error()
			resp.Failed++
		} else {
			resp.Succeeded++
		}

		resp.Results[i] = r
	}

	c.JSON(http.StatusOK, resp)
}

// workItem turns a validated request item into a dispatcher work item. The
// item's work waits DelayMS, observing cancellation, then fails with Fail
// when it is set.
func workItem(it dto.DispatchItemRequest) (app.WorkItem, error) {
	t, err := domain.ParseTaskType(it.Type)
	if err != nil {
		return app.WorkItem{}, err
	}

	delay := time.Duration(it.DelayMS) * time.Millisecond
	fail := it.Fail

	return app.WorkItem{
		Type:        t,
		BeanName:    it.BeanName,
		ModuleName:  it.ModuleName,
		InboundHost: it.InboundHost,
		InboundPort: it.InboundPort,
		Run: func(ctx context.Context) error {
			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()

				select {
				case <-timer.C:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			if fail != "" {
				return errors.New(fail)
			}

			return nil
		},
	}, nil
}
