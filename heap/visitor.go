package heap

// Mode selects what a visitor does with the edges reported to it.
type Mode uint8

const (
	// ModeMark is a reachability pass: visited cells are marked live
	// and queued for their own trace.
	ModeMark Mode = iota

	// ModeDemote converts strong edges into traced edges. Run over a
	// payload right after its script wrapper is attached.
	ModeDemote

	// ModePromote converts traced edges back into strong edges. Run
	// over a payload after its script wrapper has been released while
	// the payload itself survived.
	ModePromote
)

func (m Mode) String() string {
	switch m {
	case ModeMark:
		return "mark"
	case ModeDemote:
		return "demote"
	case ModePromote:
		return "promote"
	}
	return "unknown"
}

// Visitor is handed to trace callbacks. Edge owners call Visit (or
// react to Mode themselves, as handle types do for re-rooting).
type Visitor struct {
	h       *Heap
	stack   []*Cell
	visited int
	mode    Mode
}

// Mode returns what this visitor is doing.
func (v *Visitor) Mode() Mode {
	return v.mode
}

// Heap returns the heap this visitor belongs to.
func (v *Visitor) Heap() *Heap {
	return v.h
}

// Visit reports an on-heap edge to the target cell. Only meaningful
// during a mark pass; re-rooting visitors ignore it. Visiting nil or
// an already-marked cell is a no-op, so duplicated visits are
// harmless.
func (v *Visitor) Visit(c *Cell) {
	if v.mode != ModeMark || c == nil || c.dead {
		return
	}
	if c.mark == v.h.epoch {
		return
	}
	c.mark = v.h.epoch
	v.visited++
	v.stack = append(v.stack, c)
}
