package dto

import (
	"fmt"
	"slices"

	"github.com/jsamuelsen/taskctx-service/internal/domain"
)

// TaskContextResponse is the JSON form of a task context.
type TaskContextResponse struct {
	Type   domain.TaskType           `json:"type"`
	Keys   []domain.TaskKey          `json:"keys"`
	Values map[domain.TaskKey]string `json:"values"`
}

// NewTaskContextResponse converts tc. Keys are listed in enumeration order.
func NewTaskContextResponse(tc *domain.TaskContext) *TaskContextResponse {
	if tc == nil {
		return nil
	}

	keys := slices.Collect(tc.Keys())
	if keys == nil {
		keys = []domain.TaskKey{}
	}

	return &TaskContextResponse{
		Type:   tc.Type(),
		Keys:   keys,
		Values: tc.Values(),
	}
}

// DispatchItemRequest describes one work item in a dispatch batch.
type DispatchItemRequest struct {
	Type        string `json:"type" validate:"required,tasktype"`
	BeanName    string `json:"beanName" validate:"omitempty,notempty,max=256"`
	ModuleName  string `json:"moduleName" validate:"omitempty,notempty,max=256"`
	InboundHost string `json:"inboundHost" validate:"omitempty,hostname_rfc1123|ip"`
	InboundPort int    `json:"inboundPort" validate:"omitempty,min=1,max=65535"`

	// DelayMS makes the item wait before finishing, observing cancellation.
	DelayMS int `json:"delayMs" validate:"omitempty,min=0,max=10000"`

	// Fail makes the item return an error with this message.
	Fail string `json:"fail" validate:"omitempty,max=512"`
}

// DispatchRequest is the body of POST /api/v1/dispatch.
type DispatchRequest struct {
	Items []DispatchItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CheckBatch rejects batches larger than limit. A non-positive limit
// disables the check.
func (r *DispatchRequest) CheckBatch(limit int) error {
	if limit > 0 && len(r.Items) > limit {
		return domain.NewValidationErrorWithValue("items",
			fmt.Sprintf("must contain at most %d items", limit), len(r.Items))
	}

	return nil
}

// DispatchResultResponse reports one item of a dispatch batch.
type DispatchResultResponse struct {
	Index       int                  `json:"index"`
	OK          bool                 `json:"ok"`
	Error       string               `json:"error,omitempty"`
	DurationMS  float64              `json:"durationMs"`
	TaskContext *TaskContextResponse `json:"taskContext,omitempty"`
}

// DispatchResponse is the body returned by POST /api/v1/dispatch.
type DispatchResponse struct {
	CorrelationID string                   `json:"correlationId,omitempty"`
	Succeeded     int                      `json:"succeeded"`
	Failed        int                      `json:"failed"`
	Results       []DispatchResultResponse `json:"results"`
}
