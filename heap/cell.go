package heap

import "fmt"

// Hooks is the type-erased entry point the collector uses to reach
// into payload code. One Hooks value is shared by every cell holding
// the same payload type.
type Hooks struct {
	// Trace reports the payload's outgoing edges to the visitor.
	// Called during every mark pass and during re-rooting. Must not
	// allocate cells and must visit each edge field exactly once.
	Trace func(payload any, v *Visitor)

	// Finalize runs the payload's destructor. Called at most once,
	// after the collector has determined the cell is unreachable.
	// Finalization order across unrelated cells is unspecified, so
	// Finalize must not dereference other cells.
	Finalize func(payload any)

	// Name returns a diagnostic label. Optional.
	Name func(payload any) string
}

// Cell is the one object type the collector natively understands.
// Its identity is its address. The payload is stored behind an
// interface; the hooks know its concrete type.
type Cell struct {
	hooks   *Hooks
	payload any
	size    int
	mark    uint64 // epoch of the pass that last reached this cell
	dead    bool
}

// Payload returns the stored payload. Panics if the cell has been
// finalized; touching a collected payload is a caller bug.
func (c *Cell) Payload() any {
	if c.dead {
		panic("heap: payload access on finalized cell " + c.DebugName())
	}
	return c.payload
}

// Size returns the payload footprint charged against the heap limit.
func (c *Cell) Size() int {
	return c.size
}

// Dead reports whether the cell has been finalized.
func (c *Cell) Dead() bool {
	return c.dead
}

// DebugName returns a diagnostic label for the cell.
func (c *Cell) DebugName() string {
	if c.hooks.Name != nil {
		if n := c.hooks.Name(c.payload); n != "" {
			return n
		}
	}
	return fmt.Sprintf("%T", c.payload)
}

func (c *Cell) finalize() {
	if c.hooks.Finalize != nil {
		c.hooks.Finalize(c.payload)
	}
}
