package runlog

import (
	"encoding/json"
	"time"
)

// EventType represents the type of execution log event
type EventType string

const (
	// EventTypeGraphStart indicates graph execution started
	EventTypeGraphStart EventType = "graph_start"

	// EventTypeGraphComplete indicates graph execution finished
	EventTypeGraphComplete EventType = "graph_complete"

	// EventTypeTaskDispatch indicates a task was dispatched to the executor
	EventTypeTaskDispatch EventType = "task_dispatch"

	// EventTypeTaskSuccess indicates a task succeeded
	EventTypeTaskSuccess EventType = "task_success"

	// EventTypeTaskFailure indicates a task failed terminally
	EventTypeTaskFailure EventType = "task_failure"

	// EventTypeTaskRetry indicates a task attempt failed and will be retried
	EventTypeTaskRetry EventType = "task_retry"

	// EventTypeTaskSkip indicates a task was skipped because a required
	// dependency did not succeed
	EventTypeTaskSkip EventType = "task_skip"

	// EventTypeTaskCancel indicates a task was cancelled
	EventTypeTaskCancel EventType = "task_cancel"

	// EventTypeSecurity indicates a sandbox policy violation
	EventTypeSecurity EventType = "security"
)

// Event is a single execution log record, keyed by graph and task id.
// Events serialize as one compact JSON object per line so the log stays
// greppable; evidence bytes never travel inline.
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Type is the event type
	Type EventType `json:"type"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// GraphID identifies the graph this event belongs to
	GraphID string `json:"graph_id"`

	// TaskID identifies the task (if applicable)
	TaskID string `json:"task_id,omitempty"`

	// Level indicates severity (info, warning, error, security)
	Level string `json:"level"`

	// Message is a human-readable description
	Message string `json:"message"`

	// Data contains event-specific structured data
	Data map[string]any `json:"data,omitempty"`

	// Duration tracks how long an operation took
	Duration *time.Duration `json:"duration,omitempty"`

	// Error contains error details if applicable
	Error string `json:"error,omitempty"`
}

// NewEvent creates a new event with common fields populated
func NewEvent(eventType EventType, graphID string, message string) *Event {
	return &Event{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		GraphID:   graphID,
		Message:   message,
		Level:     inferLevel(eventType),
	}
}

// WithTaskID sets the task ID
func (e *Event) WithTaskID(taskID string) *Event {
	e.TaskID = taskID
	return e
}

// WithData adds data to the event
func (e *Event) WithData(key string, value any) *Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// WithError sets the error field and raises the level
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
		if e.Level == "info" {
			e.Level = "error"
		}
	}
	return e
}

// WithDuration sets the duration
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.Duration = &duration
	return e
}

// ToJSON serializes the event as a single compact JSON line
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func generateEventID() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}

func inferLevel(eventType EventType) string {
	switch eventType {
	case EventTypeTaskFailure:
		return "error"
	case EventTypeTaskRetry, EventTypeTaskSkip, EventTypeTaskCancel:
		return "warning"
	case EventTypeSecurity:
		return "security"
	default:
		return "info"
	}
}
