package event

import (
	"fmt"
	"log/slog"
	"sync"
)

// Handler receives one event payload. Handlers run on the emitter's
// goroutine and must return quickly.
type Handler func(kind Kind, payload any)

// DefaultMaxSubscribers bounds the per-kind subscriber list.
const DefaultMaxSubscribers = 32

// Bus is a small in-process publish/subscribe hub with a typed event enum.
// A panicking handler is recovered and logged; it never reaches the emitter
// and never prevents the remaining handlers from running.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Kind][]Handler
	maxSubs int
}

// NewBus creates an event bus with the default subscriber bound.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[Kind][]Handler),
		maxSubs: DefaultMaxSubscribers,
	}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind Kind, h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler for %s", kind)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs[kind]) >= b.maxSubs {
		return fmt.Errorf("subscriber limit reached for %s (%d)", kind, b.maxSubs)
	}
	b.subs[kind] = append(b.subs[kind], h)
	return nil
}

// Emit delivers the payload to every subscriber of the kind, in
// subscription order.
func (b *Bus) Emit(kind Kind, payload any) {
	b.mu.RLock()
	handlers := b.subs[kind]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(kind, payload, h)
	}
}

func (b *Bus) dispatch(kind Kind, payload any, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked",
				slog.String("kind", kind.String()),
				slog.Any("panic", r))
		}
	}()
	h(kind, payload)
}

// SubscriberCount returns the number of handlers for a kind.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
