package heap

// Persistent is an off-heap strong reference: its cell is a collector
// root for as long as the Persistent is registered. Persistents are
// invisible to tracing, which is exactly why a cycle held together
// only by them can never be collected.
//
// Creating and releasing persistents is safe from any goroutine; the
// root set is mutex-guarded. This is the one part of the bridge that
// background workers may touch.
type Persistent struct {
	h    *Heap
	cell *Cell
}

// NewPersistent registers c as a root and returns the handle.
func (h *Heap) NewPersistent(c *Cell) *Persistent {
	if c == nil {
		panic("heap: persistent to nil cell")
	}
	p := &Persistent{h: h, cell: c}
	h.mu.Lock()
	h.roots[p] = struct{}{}
	h.mu.Unlock()
	return p
}

// Cell returns the referenced cell, or nil after Release.
func (p *Persistent) Cell() *Cell {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	return p.cell
}

// Release removes the root. Idempotent.
func (p *Persistent) Release() {
	p.h.mu.Lock()
	delete(p.h.roots, p)
	p.cell = nil
	p.h.mu.Unlock()
}

// Weak is an off-heap weak reference. It never keeps its target
// alive; once the target is finalized, Get returns nil.
type Weak struct {
	h    *Heap
	cell *Cell
}

// NewWeak returns a weak reference to c. A weak reference to an
// already-dead cell starts out empty.
func (h *Heap) NewWeak(c *Cell) *Weak {
	w := &Weak{h: h}
	if c != nil && !c.dead {
		w.cell = c
		h.mu.Lock()
		h.weaks[w] = struct{}{}
		h.mu.Unlock()
	}
	return w
}

// Get returns the target cell, or nil once it has been collected.
func (w *Weak) Get() *Cell {
	w.h.mu.Lock()
	defer w.h.mu.Unlock()
	return w.cell
}

// Release drops the registry entry. Idempotent.
func (w *Weak) Release() {
	w.h.mu.Lock()
	delete(w.h.weaks, w)
	w.cell = nil
	w.h.mu.Unlock()
}
