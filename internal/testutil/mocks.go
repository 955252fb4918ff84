// Package testutil provides test utilities including mocks, fixtures, and a fake Radarr server.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mescon/arrfinalize/internal/clock"
	"github.com/mescon/arrfinalize/internal/domain"
	"github.com/mescon/arrfinalize/internal/logger"
)

// =============================================================================
// MockClock - Testable time abstraction
// =============================================================================

// MockClock implements clock.Clock for testing. Sleep returns immediately,
// advances the mock time and records the requested duration.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration

	// OnSleep, when set, runs after every Sleep with the 1-based sleep count.
	OnSleep func(n int)
}

// Compile-time assertion that MockClock implements clock.Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a new MockClock with the current time as initial value.
func NewMockClock() *MockClock {
	return &MockClock{
		now: time.Now(),
	}
}

// NewMockClockAt creates a new MockClock with a specific initial time.
func NewMockClockAt(t time.Time) *MockClock {
	return &MockClock{
		now: t,
	}
}

// Now returns the mock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Sleep advances the mock time by d without blocking.
func (m *MockClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.sleeps = append(m.sleeps, d)
	n := len(m.sleeps)
	hook := m.OnSleep
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

// Sleeps returns every duration passed to Sleep, in order.
func (m *MockClock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}

// SleepCount returns how many times Sleep was called.
func (m *MockClock) SleepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sleeps)
}

// =============================================================================
// RecordingLogger - captures log lines by level
// =============================================================================

// LogLine is a single captured log call.
type LogLine struct {
	Level   logger.LogLevel
	Message string
}

// RecordingLogger implements logger.Sink and keeps every formatted line.
type RecordingLogger struct {
	mu    sync.Mutex
	lines []LogLine
}

var _ logger.Sink = (*RecordingLogger)(nil)

// NewRecordingLogger creates an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (r *RecordingLogger) record(level logger.LogLevel, format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, LogLine{Level: level, Message: fmt.Sprintf(format, v...)})
}

func (r *RecordingLogger) Debugf(format string, v ...interface{}) { r.record(logger.Debug, format, v...) }
func (r *RecordingLogger) Infof(format string, v ...interface{})  { r.record(logger.Info, format, v...) }
func (r *RecordingLogger) Warnf(format string, v ...interface{})  { r.record(logger.Warn, format, v...) }
func (r *RecordingLogger) Errorf(format string, v ...interface{}) { r.record(logger.Error, format, v...) }

// Lines returns a copy of every captured line.
func (r *RecordingLogger) Lines() []LogLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogLine, len(r.lines))
	copy(out, r.lines)
	return out
}

// Count returns how many lines were captured at level.
func (r *RecordingLogger) Count(level logger.LogLevel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lines {
		if l.Level == level {
			n++
		}
	}
	return n
}

// =============================================================================
// EventRecorder - in-memory publisher
// =============================================================================

// EventRecorder satisfies eventbus.Publisher and keeps every published event.
type EventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewEventRecorder creates an empty EventRecorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Publish records the event.
func (r *EventRecorder) Publish(event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = int64(len(r.events) + 1)
	r.events = append(r.events, event)
	return nil
}

// Subscribe is a no-op; the recorder has no subscribers.
func (r *EventRecorder) Subscribe(domain.EventType, func(domain.Event)) {}

// Events returns a copy of every recorded event.
func (r *EventRecorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *EventRecorder) Types() []domain.EventType {
	var types []domain.EventType
	for _, e := range r.Events() {
		types = append(types, e.EventType)
	}
	return types
}

// Find returns the first recorded event of the given type.
func (r *EventRecorder) Find(eventType domain.EventType) (domain.Event, bool) {
	for _, e := range r.Events() {
		if e.EventType == eventType {
			return e, true
		}
	}
	return domain.Event{}, false
}
