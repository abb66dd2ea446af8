// Package eventbus implements the typed subscription list: synchronous
// FIFO emission, no shared-mutable-object cross talk between components.
package eventbus

import (
	"sync"

	"github.com/artifactmesh/kadstore/blueprint"
)

// Bus is the default blueprint.EventBus implementation.
type Bus struct {
	mu       sync.RWMutex
	handlers map[blueprint.Event][]func(any)
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[blueprint.Event][]func(any))}
}

// Subscribe appends handler to event's list. Handlers for the same event
// fire in subscription order.
func (b *Bus) Subscribe(event blueprint.Event, handler func(payload any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Emit calls every handler subscribed to event, in order, on the calling
// goroutine. A handler that panics does not stop the remaining handlers.
func (b *Bus) Emit(event blueprint.Event, payload any) {
	b.mu.RLock()
	handlers := append([]func(any){}, b.handlers[event]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() { recover() }()
			h(payload)
		}()
	}
}
