package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/tracing"
)

// Handler reacts to an event about subject
type Handler func(ctx context.Context, subject any, ev Event) error

// Bus dispatches events synchronously to subscribers in subscription order
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	log      zerolog.Logger
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind][]Handler),
		log:      logger.WithComponent("events"),
	}
}

// Subscribe registers h for events of kind
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Notify delivers ev to every subscriber of its kind. Delivery stops at
// the first handler error.
func (b *Bus) Notify(ctx context.Context, subject any, ev Event) (err error) {
	b.mu.RLock()
	handlers := b.handlers[ev.Kind()]
	b.mu.RUnlock()

	b.log.Debug().Str("event", string(ev.Kind())).Int("handlers", len(handlers)).Msg("Dispatching event")

	ctx, span := tracing.StartEventSpan(ctx, string(ev.Kind()), len(handlers))
	defer func() { tracing.EndSpan(span, err) }()

	for _, h := range handlers {
		if err := h(ctx, subject, ev); err != nil {
			return fmt.Errorf("%s handler failed: %w", ev.Kind(), err)
		}
	}
	return nil
}
