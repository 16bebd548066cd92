package events

import (
	"context"
	"path"
	"sync"
)

// Handler receives a published event. Handlers run on their own goroutine and
// must not block indefinitely.
type Handler func(*Event)

type subscription struct {
	pattern string
	handler Handler
}

// Bus is an in-process publish/subscribe fanout. Patterns use path.Match
// syntax, so "payment.*" matches "payment.settled" and "*" matches every
// single-segment type. Delivery is fire-and-forget; Shutdown waits for
// in-flight handlers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	wg     sync.WaitGroup
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Subscribe registers a handler for event types matching pattern and returns
// an unsubscribe function.
func (b *Bus) Subscribe(pattern string, handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{pattern: pattern, handler: handler}
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish lowers the emitter and fans the event out to matching subscribers.
// A closed bus drops events silently.
func (b *Bus) Publish(emitter Emitter) {
	if emitter == nil {
		return
	}
	b.PublishEvent(emitter.Event())
}

// PublishEvent fans out an already-lowered event.
func (b *Bus) PublishEvent(evt *Event) {
	if evt == nil {
		return
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	matched := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if ok, err := path.Match(sub.pattern, evt.Type); err == nil && ok {
			matched = append(matched, sub.handler)
		}
	}
	b.mu.RUnlock()
	for _, handler := range matched {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			h(evt)
		}(handler)
	}
}

// Shutdown stops accepting events and waits for in-flight handlers until the
// context expires.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
