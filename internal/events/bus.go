package events

import (
	"sync"

	"priceRegistry/internal/model"
)

// Emitter receives notifications from contracts.
type Emitter interface {
	Emit(ev model.Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev model.Event)

func (f EmitterFunc) Emit(ev model.Event) {
	f(ev)
}

// Nop discards every event.
var Nop Emitter = EmitterFunc(func(model.Event) {})

// Bus fans events out to subscribers in registration order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(model.Event)
	order  []uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]func(model.Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(model.Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			for i, existing := range b.order {
				if existing == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
		})
	}
}

// Emit delivers ev synchronously. Subscribers may subscribe or unsubscribe while
// handling an event; the change applies to the next Emit.
func (b *Bus) Emit(ev model.Event) {
	b.mu.RLock()
	handlers := make([]func(model.Event), 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(ev)
	}
}
