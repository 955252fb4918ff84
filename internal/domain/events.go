package domain

import (
	"time"
)

type EventType string

const (
	RunStarted            EventType = "RunStarted"
	TestEventReceived     EventType = "TestEventReceived"
	FileQuarantined       EventType = "FileQuarantined"
	QuarantineFailed      EventType = "QuarantineFailed"
	ProcessingCompleted   EventType = "ProcessingCompleted"
	ProcessingFailed      EventType = "ProcessingFailed"
	SidecarsBackedUp      EventType = "SidecarsBackedUp"
	SidecarRestored       EventType = "SidecarRestored"
	SidecarDiscarded      EventType = "SidecarDiscarded"
	RescanQueued          EventType = "RescanQueued"
	RescanCompleted       EventType = "RescanCompleted"
	RescanTimedOut        EventType = "RescanTimedOut"
	FileMissing           EventType = "FileMissing"
	FileFoundAfterRetry   EventType = "FileFoundAfterRetry"
	MonitoredUpdated      EventType = "MonitoredUpdated"
	RenameTriggered       EventType = "RenameTriggered"
	RenameFailed          EventType = "RenameFailed"
	ReconciliationSkipped EventType = "ReconciliationSkipped"
	ReconciliationFailed  EventType = "ReconciliationFailed"
	RunCompleted          EventType = "RunCompleted"
)

// FailureEvents are the event types that indicate something needs attention.
var FailureEvents = []EventType{
	QuarantineFailed,
	ProcessingFailed,
	RescanTimedOut,
	FileMissing,
	RenameFailed,
	ReconciliationFailed,
}

// AllEvents lists every event type, in workflow order.
var AllEvents = []EventType{
	RunStarted, TestEventReceived, FileQuarantined, QuarantineFailed,
	ProcessingCompleted, ProcessingFailed, SidecarsBackedUp, SidecarRestored,
	SidecarDiscarded, RescanQueued, RescanCompleted, RescanTimedOut, FileMissing,
	FileFoundAfterRetry, MonitoredUpdated, RenameTriggered, RenameFailed,
	ReconciliationSkipped, ReconciliationFailed, RunCompleted,
}

// IsFailure reports whether t is one of FailureEvents.
func (t EventType) IsFailure() bool {
	for _, f := range FailureEvents {
		if f == t {
			return true
		}
	}
	return false
}

type Event struct {
	ID            int64                  `json:"id"`
	AggregateType string                 `json:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id"`
	EventType     EventType              `json:"event_type"`
	EventData     map[string]interface{} `json:"event_data"`
	CreatedAt     time.Time              `json:"created_at"`
	RunID         string                 `json:"run_id,omitempty"`
}

// =============================================================================
// Type-safe event data accessors
// These helpers provide compile-time safety when extracting data from events.
// =============================================================================

// GetString safely extracts a string field from EventData.
// Returns the value and true if found and is a string, otherwise empty string and false.
func (e *Event) GetString(key string) (string, bool) {
	if e.EventData == nil {
		return "", false
	}
	v, ok := e.EventData[key].(string)
	return v, ok
}

// GetStringOr extracts a string field or returns the default value.
func (e *Event) GetStringOr(key, defaultVal string) string {
	if v, ok := e.GetString(key); ok {
		return v
	}
	return defaultVal
}

// GetInt64 safely extracts an int64 field from EventData.
// Handles both int64 and float64 (JSON unmarshaling produces float64).
func (e *Event) GetInt64(key string) (int64, bool) {
	if e.EventData == nil {
		return 0, false
	}
	switch v := e.EventData[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// GetInt64Or extracts an int64 field or returns the default value.
func (e *Event) GetInt64Or(key string, defaultVal int64) int64 {
	if v, ok := e.GetInt64(key); ok {
		return v
	}
	return defaultVal
}

// GetFloat64 safely extracts a float64 field from EventData.
func (e *Event) GetFloat64(key string) (float64, bool) {
	if e.EventData == nil {
		return 0, false
	}
	switch v := e.EventData[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// GetBool safely extracts a bool field from EventData.
func (e *Event) GetBool(key string) (bool, bool) {
	if e.EventData == nil {
		return false, false
	}
	v, ok := e.EventData[key].(bool)
	return v, ok
}

// GetBoolOr extracts a bool field or returns the default value.
func (e *Event) GetBoolOr(key string, defaultVal bool) bool {
	if v, ok := e.GetBool(key); ok {
		return v
	}
	return defaultVal
}

// =============================================================================
// Typed event data structures for common events
// =============================================================================

// RescanEventData contains data for RescanQueued/RescanCompleted/RescanTimedOut events.
type RescanEventData struct {
	MovieID   int64  `json:"movie_id"`
	CommandID int64  `json:"command_id"`
	State     string `json:"state"`
	Attempt   int    `json:"attempt"` // 1 for the first rescan, 2 for the retry, 3 for the post-restore rescan
}

// ToMap converts the data into an EventData payload.
func (d RescanEventData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"movie_id":   d.MovieID,
		"command_id": d.CommandID,
		"state":      d.State,
		"attempt":    d.Attempt,
	}
}

// ParseRescanEventData extracts typed rescan data from an event.
func (e *Event) ParseRescanEventData() (RescanEventData, bool) {
	movieID, ok := e.GetInt64("movie_id")
	if !ok {
		return RescanEventData{}, false
	}
	return RescanEventData{
		MovieID:   movieID,
		CommandID: e.GetInt64Or("command_id", 0),
		State:     e.GetStringOr("state", ""),
		Attempt:   int(e.GetInt64Or("attempt", 0)),
	}, true
}

// RunCompletedEventData contains data for RunCompleted events.
type RunCompletedEventData struct {
	Outcome         string  `json:"outcome"`
	ExitCode        int     `json:"exit_code"`
	FilePath        string  `json:"file_path,omitempty"`
	Title           string  `json:"title,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ToMap converts the data into an EventData payload.
func (d RunCompletedEventData) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"outcome":          d.Outcome,
		"exit_code":        d.ExitCode,
		"duration_seconds": d.DurationSeconds,
	}
	if d.FilePath != "" {
		m["file_path"] = d.FilePath
	}
	if d.Title != "" {
		m["title"] = d.Title
	}
	return m
}

// ParseRunCompletedEventData extracts typed completion data from an event.
func (e *Event) ParseRunCompletedEventData() (RunCompletedEventData, bool) {
	outcome, ok := e.GetString("outcome")
	if !ok {
		return RunCompletedEventData{}, false
	}
	duration, _ := e.GetFloat64("duration_seconds")
	return RunCompletedEventData{
		Outcome:         outcome,
		ExitCode:        int(e.GetInt64Or("exit_code", 0)),
		FilePath:        e.GetStringOr("file_path", ""),
		Title:           e.GetStringOr("title", ""),
		DurationSeconds: duration,
	}, true
}
