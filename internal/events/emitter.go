package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Bus delivers each event to the handlers subscribed to its type, then to the
// handlers subscribed to every type. Delivery is synchronous and in
// subscription order, so a handler's side effects are visible once EmitEvent
// returns.
//
// A failing handler does not stop delivery to the others; EmitEvent returns
// all failures joined. The submission path logs that error instead of failing
// the request: the task is already queued when the event fires and saving the
// project slot is best-effort.
type Bus struct {
	mu     sync.RWMutex
	byType map[string][]EventHandler
	every  []EventHandler
	logger *slog.Logger
}

var _ EventEmitter = (*Bus)(nil)

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		byType: make(map[string][]EventHandler),
		logger: logger.With("component", "event_bus"),
	}
}

// Subscribe adds handler for the given event types. With no types the
// handler receives every event.
func (b *Bus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(eventTypes) == 0 {
		b.every = append(b.every, handler)
		b.logger.Debug("subscribed handler to all events", "handler", fmt.Sprintf("%T", handler))
		return
	}
	for _, t := range eventTypes {
		b.byType[t] = append(b.byType[t], handler)
	}
	b.logger.Debug("subscribed handler", "handler", fmt.Sprintf("%T", handler), "event_types", eventTypes)
}

// handlersFor snapshots the handlers for eventType so delivery runs unlocked.
func (b *Bus) handlersFor(eventType string) []EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typed := b.byType[eventType]
	out := make([]EventHandler, 0, len(typed)+len(b.every))
	out = append(out, typed...)
	return append(out, b.every...)
}

// EmitEvent implements EventEmitter.
func (b *Bus) EmitEvent(ctx context.Context, event *Event) error {
	handlers := b.handlersFor(event.Type)
	if len(handlers) == 0 {
		b.logger.Debug("no subscribers for event", "event_type", event.Type, "task_id", event.TaskID)
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				"error", err,
				"handler", fmt.Sprintf("%T", handler),
				"event_id", event.ID,
				"event_type", event.Type,
				"task_id", event.TaskID)
			errs = append(errs, fmt.Errorf("%s handler %T: %w", event.Type, handler, err))
		}
	}
	return errors.Join(errs...)
}
