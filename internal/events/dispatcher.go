package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans session events out to in-process listeners.
type Dispatcher interface {
	// Publish delivers event to every listener of its type and returns the
	// joined listener errors.
	Publish(ctx context.Context, event Event) error
	// Subscribe registers handler for eventType. The returned func removes it.
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func())
}

type listener struct {
	id      uint64
	handler EventHandler
}

// syncDispatcher runs listeners on the publishing goroutine, in subscription order.
type syncDispatcher struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[EventType][]listener
}

// NewInMemoryDispatcher creates a synchronous dispatcher.
func NewInMemoryDispatcher() Dispatcher {
	return &syncDispatcher{listeners: make(map[EventType][]listener)}
}

// Publish runs every listener even when earlier ones fail. A panicking
// listener is reported as an error so the publisher's transition completes.
func (d *syncDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	targets := append([]listener(nil), d.listeners[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, l := range targets {
		if err := deliver(ctx, l.handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func deliver(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s listener panicked: %v", event.Type, r)
		}
	}()
	return handler(ctx, event)
}

func (d *syncDispatcher) Subscribe(eventType EventType, handler EventHandler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners[eventType] = append(d.listeners[eventType], listener{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(eventType, id) })
	}
}

func (d *syncDispatcher) remove(eventType EventType, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	current := d.listeners[eventType]
	kept := make([]listener, 0, len(current))
	for _, l := range current {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(d.listeners, eventType)
		return
	}
	d.listeners[eventType] = kept
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error     { return nil }
func (Nop) Subscribe(EventType, EventHandler) func() { return func() {} }
