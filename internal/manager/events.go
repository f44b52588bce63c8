package manager

// Event represents a manager lifecycle or memory event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// Event names published by the manager.
const (
	EventTransition     = "lifecycle.transition"
	EventLifecycleError = "lifecycle.error"
	EventMemoryCrossing = "memory.crossing"
	EventRouted         = "routing.decision"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
