package heap

import "time"

// Stats holds cumulative heap counters.
type Stats struct {
	LiveCells      int
	LiveBytes      int
	Passes         uint64
	TotalAllocated uint64
	TotalFinalized uint64
}

// CollectStats describes a single collection pass.
type CollectStats struct {
	Pass      uint64
	Marked    int
	Finalized int
	LiveCells int
	LiveBytes int
	Duration  time.Duration
}

// Event types for heap lifecycle notifications.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventFinalized
	EventCollected
)

// Event represents a heap lifecycle event.
type Event struct {
	Type  EventType
	Cell  *Cell
	Stats CollectStats // set for EventCollected
}

// Observer receives notifications about heap lifecycle events.
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

func (h *Heap) notify(e Event) {
	h.obsMu.RLock()
	defer h.obsMu.RUnlock()
	for _, o := range h.observers {
		o.OnHeapEvent(e)
	}
}
