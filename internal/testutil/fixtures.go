package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/mescon/arrfinalize/internal/domain"
)

// EventOption is a functional option for configuring test events.
type EventOption func(*domain.Event)

// WithAggregateID sets a specific aggregate ID.
func WithAggregateID(id string) EventOption {
	return func(e *domain.Event) {
		e.AggregateID = id
	}
}

// WithCreatedAt sets the event creation time.
func WithCreatedAt(t time.Time) EventOption {
	return func(e *domain.Event) {
		e.CreatedAt = t
	}
}

// WithEventData merges additional data into EventData.
func WithEventData(data map[string]interface{}) EventOption {
	return func(e *domain.Event) {
		if e.EventData == nil {
			e.EventData = make(map[string]interface{})
		}
		for k, v := range data {
			e.EventData[k] = v
		}
	}
}

// NewEvent builds a movie-scoped event for handler tests.
func NewEvent(eventType domain.EventType, opts ...EventOption) domain.Event {
	e := domain.Event{
		AggregateType: "movie",
		AggregateID:   "1",
		EventType:     eventType,
		EventData:     map[string]interface{}{},
		CreatedAt:     time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// NewRunCompletedEvent builds a RunCompleted event for the given outcome.
func NewRunCompletedEvent(outcome string, exitCode int, opts ...EventOption) domain.Event {
	base := []EventOption{WithEventData(map[string]interface{}{
		"outcome":          outcome,
		"exit_code":        exitCode,
		"duration_seconds": 1.5,
	})}
	return NewEvent(domain.RunCompleted, append(base, opts...)...)
}

// =============================================================================
// Filesystem fixtures
// =============================================================================

// WriteFile creates dir/name with content and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// ListDir returns the sorted file names in dir.
func ListDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// MovieRecord returns a Radarr-shaped movie payload with a few nested and
// unknown fields so round-trip behavior can be asserted.
func MovieRecord(title string, hasFile, monitored bool) map[string]interface{} {
	return map[string]interface{}{
		"title":            title,
		"hasFile":          hasFile,
		"monitored":        monitored,
		"year":             1995,
		"tmdbId":           949,
		"qualityProfileId": 4,
		"path":             "/movies/" + title,
		"tags":             []interface{}{1, 3},
		"ratings":          map[string]interface{}{"imdb": map[string]interface{}{"value": 8.3, "votes": 700000}},
		"customUnknown":    "keep-me",
	}
}
