package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/mescon/arrfinalize/internal/domain"
	"github.com/mescon/arrfinalize/internal/logger"
)

// Publisher defines the interface for publishing events.
// This interface enables testing with mock implementations.
type Publisher interface {
	Publish(event domain.Event) error
	Subscribe(eventType domain.EventType, handler func(domain.Event))
}

// Ensure EventBus implements Publisher
var _ Publisher = (*EventBus)(nil)

// EventBus fans events out to subscribers synchronously, in publish order.
// The hook exits right after the workflow, so handlers run inline rather than
// on goroutines that could be cut off at exit.
type EventBus struct {
	log         logger.Sink
	runID       string
	subscribers map[domain.EventType][]func(domain.Event)
	wildcard    []func(domain.Event)
	mu          sync.RWMutex
	nextID      int64
	now         func() time.Time
}

// NewEventBus creates a bus that stamps every event with runID.
func NewEventBus(log logger.Sink, runID string) *EventBus {
	return &EventBus{
		log:         log,
		runID:       runID,
		subscribers: make(map[domain.EventType][]func(domain.Event)),
		now:         time.Now,
	}
}

// Publish stamps the event and delivers it to every matching subscriber.
// A panicking handler is recovered and reported as an error after the remaining
// handlers have run.
func (eb *EventBus) Publish(event domain.Event) (err error) {
	eb.mu.Lock()
	eb.nextID++
	event.ID = eb.nextID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = eb.now().UTC()
	}
	if event.RunID == "" {
		event.RunID = eb.runID
	}
	handlers := make([]func(domain.Event), 0, len(eb.subscribers[event.EventType])+len(eb.wildcard))
	handlers = append(handlers, eb.subscribers[event.EventType]...)
	handlers = append(handlers, eb.wildcard...)
	eb.mu.Unlock()

	eb.log.Debugf("EventBus: Publishing event %s (ID: %d, AggregateID: %s)", event.EventType, event.ID, event.AggregateID)

	for _, h := range handlers {
		if herr := eb.deliver(h, event); herr != nil && err == nil {
			err = herr
		}
	}
	return err
}

func (eb *EventBus) deliver(h func(domain.Event), event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			eb.log.Errorf("EventBus: handler for %s panicked: %v", event.EventType, r)
			err = fmt.Errorf("handler for %s panicked: %v", event.EventType, r)
		}
	}()
	h(event)
	return nil
}

// Subscribe registers handler for a single event type.
func (eb *EventBus) Subscribe(eventType domain.EventType, handler func(domain.Event)) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every event type.
func (eb *EventBus) SubscribeAll(handler func(domain.Event)) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.wildcard = append(eb.wildcard, handler)
}

// Emit is a convenience wrapper that builds a movie-scoped event and publishes it.
// Publish errors only come from misbehaving subscribers, so they are logged, not returned.
func Emit(p Publisher, log logger.Sink, eventType domain.EventType, movieID string, data map[string]interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(domain.Event{
		AggregateType: "movie",
		AggregateID:   movieID,
		EventType:     eventType,
		EventData:     data,
	}); err != nil {
		log.Warnf("Failed to publish %s: %v", eventType, err)
	}
}
