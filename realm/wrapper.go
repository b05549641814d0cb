package realm

import "github.com/cloudflare/workerd-sub014/heap"

// Wrapper is the script-visible object backed by a heap cell. The
// bridge only models the identity and reachability of the wrapper;
// the members script code sees are generated elsewhere from the
// descriptor.
type Wrapper struct {
	realm     *Realm
	cell      *heap.Cell
	desc      *Descriptor
	reachable bool
}

// Cell returns the backing cell.
func (w *Wrapper) Cell() *heap.Cell {
	return w.cell
}

// Descriptor returns the wrapper's type descriptor.
func (w *Wrapper) Descriptor() *Descriptor {
	return w.desc
}

// Reachable reports whether script code can still reach the wrapper.
func (w *Wrapper) Reachable() bool {
	return w.reachable
}

// Detach records that script code dropped its last reference to the
// wrapper. The cell stops being rooted through the realm; whether it
// survives the next pass depends on the rest of the graph. The
// association itself is cleaned up by SweepWrappers.
func (w *Wrapper) Detach() {
	w.reachable = false
}
