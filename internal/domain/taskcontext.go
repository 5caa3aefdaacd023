package domain

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// TaskType identifies the kind of inbound dispatch that owns a task context.
type TaskType int

// Task types. The zero value is invalid.
const (
	TaskTypeHTTP TaskType = iota + 1
	TaskTypeIIOP
	TaskTypeJMS
)

var taskTypeNames = map[TaskType]string{
	TaskTypeHTTP: "HTTP",
	TaskTypeIIOP: "IIOP",
	TaskTypeJMS:  "JMS",
}

// String returns the upper-case name of the type.
func (t TaskType) String() string {
	if name, ok := taskTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("TaskType(%d)", int(t))
}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	_, ok := taskTypeNames[t]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (t TaskType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, NewValidationErrorWithValue("type", "unknown task type", int(t))
	}

	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TaskType) UnmarshalText(text []byte) error {
	parsed, err := ParseTaskType(string(text))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// ParseTaskType parses a task type name, ignoring case.
func ParseTaskType(s string) (TaskType, error) {
	for t, name := range taskTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}

	return 0, NewValidationErrorWithValue("type", "unknown task type", s)
}

// TaskKey names a piece of metadata held by a task context.
type TaskKey int

// Task context keys, in enumeration order. The zero value is invalid.
const (
	KeyAppName TaskKey = iota + 1
	KeyModuleName
	KeyBeanName
	KeyInboundHostname
	KeyInboundPort
)

var taskKeyNames = [...]string{
	KeyAppName:         "APP_NAME",
	KeyModuleName:      "MODULE_NAME",
	KeyBeanName:        "BEAN_NAME",
	KeyInboundHostname: "INBOUND_HOSTNAME",
	KeyInboundPort:     "INBOUND_PORT",
}

// AllTaskKeys returns every key in enumeration order.
func AllTaskKeys() []TaskKey {
	return []TaskKey{KeyAppName, KeyModuleName, KeyBeanName, KeyInboundHostname, KeyInboundPort}
}

// String returns the upper-case name of the key.
func (k TaskKey) String() string {
	if k.Valid() {
		return taskKeyNames[k]
	}

	return fmt.Sprintf("TaskKey(%d)", int(k))
}

// Valid reports whether k is a known key.
func (k TaskKey) Valid() bool {
	return k >= KeyAppName && k <= KeyInboundPort
}

// MarshalText implements encoding.TextMarshaler so keys encode as JSON map keys.
func (k TaskKey) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, NewValidationErrorWithValue("key", "unknown task context key", int(k))
	}

	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TaskKey) UnmarshalText(text []byte) error {
	parsed, err := ParseTaskKey(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// ParseTaskKey parses a key name, ignoring case.
func ParseTaskKey(s string) (TaskKey, error) {
	for _, k := range AllTaskKeys() {
		if strings.EqualFold(s, taskKeyNames[k]) {
			return k, nil
		}
	}

	return 0, NewValidationErrorWithValue("key", "unknown task context key", s)
}

// TaskContext is the ambient metadata of one in-flight unit of work.
// It is immutable once built.
type TaskContext struct {
	taskType TaskType
	values   map[TaskKey]string
}

// Type returns the dispatch type that owns the context.
func (tc *TaskContext) Type() TaskType {
	return tc.taskType
}

// Get returns the value for key, or "" if the key was never set.
func (tc *TaskContext) Get(key TaskKey) string {
	return tc.values[key]
}

// Lookup returns the value for key and whether it was set.
func (tc *TaskContext) Lookup(key TaskKey) (string, bool) {
	v, ok := tc.values[key]
	return v, ok
}

// Len returns the number of keys that were set.
func (tc *TaskContext) Len() int {
	return len(tc.values)
}

// Keys yields the keys that were set, in enumeration order.
// The sequence may be ranged over any number of times.
func (tc *TaskContext) Keys() iter.Seq[TaskKey] {
	return func(yield func(TaskKey) bool) {
		for _, k := range AllTaskKeys() {
			if _, ok := tc.values[k]; !ok {
				continue
			}

			if !yield(k) {
				return
			}
		}
	}
}

// All yields every key/value pair that was set, in enumeration order.
func (tc *TaskContext) All() iter.Seq2[TaskKey, string] {
	return func(yield func(TaskKey, string) bool) {
		for k := range tc.Keys() {
			if !yield(k, tc.values[k]) {
				return
			}
		}
	}
}

// Values returns a copy of the key/value pairs.
func (tc *TaskContext) Values() map[TaskKey]string {
	out := make(map[TaskKey]string, len(tc.values))
	for k, v := range tc.values {
		out[k] = v
	}

	return out
}

// LogValue implements slog.LogValuer.
func (tc *TaskContext) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(tc.values)+1)
	attrs = append(attrs, slog.String("type", tc.taskType.String()))

	for k, v := range tc.All() {
		attrs = append(attrs, slog.String(strings.ToLower(k.String()), v))
	}

	return slog.GroupValue(attrs...)
}

// TaskContextBuilder collects key/value pairs for a task context under construction.
type TaskContextBuilder struct {
	taskType TaskType
	values   map[TaskKey]string
	err      error
}

// NewTaskContextBuilder starts a builder for the given type.
func NewTaskContextBuilder(t TaskType) *TaskContextBuilder {
	return &TaskContextBuilder{
		taskType: t,
		values:   make(map[TaskKey]string),
	}
}

// Set records value under key and returns the builder for chaining.
// A later Set of the same key replaces the earlier value.
func (b *TaskContextBuilder) Set(key TaskKey, value string) *TaskContextBuilder {
	if !key.Valid() {
		if b.err == nil {
			b.err = NewValidationErrorWithValue("key", "unknown task context key", int(key))
		}

		return b
	}

	b.values[key] = value

	return b
}

// Build returns the finished context, or the first error recorded while populating it.
func (b *TaskContextBuilder) Build() (*TaskContext, error) {
	if !b.taskType.Valid() {
		return nil, NewValidationErrorWithValue("type", "unknown task type", int(b.taskType))
	}

	if b.err != nil {
		return nil, b.err
	}

	values := make(map[TaskKey]string, len(b.values))
	for k, v := range b.values {
		values[k] = v
	}

	return &TaskContext{taskType: b.taskType, values: values}, nil
}
