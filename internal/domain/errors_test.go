package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrValidation,
		ErrUnavailable,
		ErrIllegalState,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b,
					"sentinels should be distinct: %v vs %v", a, b)
			}
		}
	}
}

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name        string
		entity      string
		id          string
		expectedMsg string
	}{
		{
			name:        "with entity and ID",
			entity:      "work item",
			id:          "42",
			expectedMsg: `work item with id "42" not found`,
		},
		{
			name:        "with entity only",
			entity:      "task context",
			id:          "",
			expectedMsg: "task context not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewNotFoundError(tt.entity, tt.id)

			assert.Equal(t, tt.expectedMsg, err.Error())
			require.ErrorIs(t, err, ErrNotFound)

			var notFound *NotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, tt.entity, notFound.Entity)
			assert.Equal(t, tt.id, notFound.ID)
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		message     string
		expectedMsg string
	}{
		{
			name:        "with field",
			field:       "type",
			message:     "unknown task type",
			expectedMsg: "validation failed for type: unknown task type",
		},
		{
			name:        "without field",
			field:       "",
			message:     "no execution unit",
			expectedMsg: "validation failed: no execution unit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message)

			assert.Equal(t, tt.expectedMsg, err.Error())
			require.ErrorIs(t, err, ErrValidation)

			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
			assert.Equal(t, tt.message, validation.Message)
		})
	}
}

func TestValidationErrorWithValue(t *testing.T) {
	err := NewValidationErrorWithValue("key", "unknown key", 99)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 99, validation.Value)
}

func TestUnavailableError(t *testing.T) {
	tests := []struct {
		name        string
		service     string
		reason      string
		expectedMsg string
	}{
		{
			name:        "with reason",
			service:     "dispatcher",
			reason:      "shutting down",
			expectedMsg: `service "dispatcher" unavailable: shutting down`,
		},
		{
			name:        "without reason",
			service:     "dispatcher",
			reason:      "",
			expectedMsg: `service "dispatcher" unavailable`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewUnavailableError(tt.service, tt.reason)

			assert.Equal(t, tt.expectedMsg, err.Error())
			require.ErrorIs(t, err, ErrUnavailable)

			var unavailable *UnavailableError
			require.ErrorAs(t, err, &unavailable)
			assert.Equal(t, tt.service, unavailable.Service)
			assert.Equal(t, tt.reason, unavailable.Reason)
		})
	}
}

func TestIllegalStateError(t *testing.T) {
	tests := []struct {
		name        string
		operation   string
		reason      string
		expectedMsg string
	}{
		{
			name:        "with reason",
			operation:   "create task context",
			reason:      "a task context is already active",
			expectedMsg: "illegal state for create task context: a task context is already active",
		},
		{
			name:        "without reason",
			operation:   "create task context",
			expectedMsg: "illegal state for create task context",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewIllegalStateError(tt.operation, tt.reason)

			assert.Equal(t, tt.expectedMsg, err.Error())
			require.ErrorIs(t, err, ErrIllegalState)

			var illegal *IllegalStateError
			require.ErrorAs(t, err, &illegal)
			assert.Equal(t, tt.operation, illegal.Operation)
			assert.Equal(t, ErrIllegalState, illegal.Unwrap())
		})
	}
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		isFunc   func(error) bool
		expected bool
	}{
		{"IsNotFound with NotFoundError", NewNotFoundError("task context", ""), IsNotFound, true},
		{"IsNotFound with wrapped", fmt.Errorf("wrapped: %w", ErrNotFound), IsNotFound, true},
		{"IsNotFound with other error", ErrIllegalState, IsNotFound, false},
		{"IsNotFound with nil", nil, IsNotFound, false},

		{"IsValidation with ValidationError", NewValidationError("type", "invalid"), IsValidation, true},
		{"IsValidation with wrapped", fmt.Errorf("wrapped: %w", ErrValidation), IsValidation, true},
		{"IsValidation with other error", ErrNotFound, IsValidation, false},

		{"IsUnavailable with UnavailableError", NewUnavailableError("dispatcher", "closed"), IsUnavailable, true},
		{"IsUnavailable with other error", ErrNotFound, IsUnavailable, false},

		{"IsIllegalState with IllegalStateError", NewIllegalStateError("create", ""), IsIllegalState, true},
		{"IsIllegalState with wrapped", fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrIllegalState)), IsIllegalState, true},
		{"IsIllegalState with other error", ErrValidation, IsIllegalState, false},
		{"IsIllegalState with nil", nil, IsIllegalState, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.isFunc(tt.err))
		})
	}
}
