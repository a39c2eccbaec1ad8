package realtime

import "sync"

// Handler receives one decoded generation event.
type Handler func(Event)

// UnsubscribeFunc removes exactly the handler returned alongside it.
// Calling it more than once is safe.
type UnsubscribeFunc func()

// Registry is a generic fan-out listener table keyed by event type.
// Multiple independent handlers per event type are supported; removing one
// never disturbs the others.
type Registry struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

// NewRegistry creates an empty listener registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]map[int]Handler),
	}
}

// On registers a handler for an event type and returns its unsubscribe
// function.
func (r *Registry) On(eventType string, handler Handler) UnsubscribeFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	if r.handlers[eventType] == nil {
		r.handlers[eventType] = make(map[int]Handler)
	}
	r.handlers[eventType][id] = handler

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers[eventType], id)
	}
}

// Emit delivers an event to every handler registered for its type.
// Unknown event types have no handlers and are silently ignored.
func (r *Registry) Emit(eventType string, event Event) {
	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.handlers[eventType]))
	for _, h := range r.handlers[eventType] {
		handlers = append(handlers, h)
	}
	r.mu.RUnlock()

	// Invoked outside the lock so a handler may subscribe or unsubscribe
	for _, h := range handlers {
		h(event)
	}
}

// RemoveAll drops every registered handler. Called on teardown so no
// subscription leaks across reconnect cycles.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]map[int]Handler)
}

// Count returns the number of handlers registered for an event type.
func (r *Registry) Count(eventType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[eventType])
}
