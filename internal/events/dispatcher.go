package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, domain.TicketEvent) error

// Dispatcher fans events out to in-process subscribers.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[domain.EventType][]EventHandler
	wildcard  []EventHandler
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher instance.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		listeners: make(map[domain.EventType][]EventHandler),
		logger:    logger,
	}
}

// Publish synchronously invokes handlers for the event. Handler failures are
// logged and do not stop the remaining handlers.
func (d *Dispatcher) Publish(ctx context.Context, event domain.TicketEvent) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	handlers = append(handlers, d.wildcard...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
	return nil
}

// Subscribe registers a handler for the given event type.
func (d *Dispatcher) Subscribe(eventType domain.EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (d *Dispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wildcard = append(d.wildcard, handler)
}
