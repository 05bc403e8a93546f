package heap

// EventType identifies a heap lifecycle event.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventFreed
	EventPinned
	EventUnpinned
	EventCollected
)

func (e EventType) String() string {
	switch e {
	case EventAllocated:
		return "allocated"
	case EventFreed:
		return "freed"
	case EventPinned:
		return "pinned"
	case EventUnpinned:
		return "unpinned"
	case EventCollected:
		return "collected"
	default:
		return "unknown"
	}
}

// Event represents a heap lifecycle event.
// Collect is only set for EventCollected; Pins is the pin count after a
// pin or unpin.
type Event struct {
	Value   any
	GoType  string
	Collect CollectStats
	Addr    Addr
	Pins    int
	Type    EventType
}

// Observer receives notifications about heap lifecycle events.
// Events are delivered synchronously, after the heap lock is released.
type Observer interface {
	OnHeapEvent(Event)
}

// Subscribe adds an observer for lifecycle events.
func (h *Heap) Subscribe(o Observer) {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	h.observers = append(h.observers, o)
}

// Unsubscribe removes an observer.
func (h *Heap) Unsubscribe(o Observer) {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	for i, obs := range h.observers {
		if obs == o {
			h.observers = append(h.observers[:i], h.observers[i+1:]...)
			return
		}
	}
}

func (h *Heap) notify(events ...Event) {
	h.obsMu.RLock()
	defer h.obsMu.RUnlock()
	if len(h.observers) == 0 {
		return
	}
	for _, e := range events {
		for _, o := range h.observers {
			o.OnHeapEvent(e)
		}
	}
}
