package resource

import (
	"github.com/cloudflare/workerd-sub014/errors"
	"github.com/cloudflare/workerd-sub014/heap"
)

// Ref is a handle on a collector-managed resource. It is never empty
// except after Release; using a released handle panics.
//
// Internally a Ref is either Strong (holds a persistent root) or
// Traced (a bare edge the collector discovers through tracing). Both
// modes denote the same cell; only the kind of edge the collector
// sees changes. See the package documentation for when transitions
// happen.
type Ref[R Resource] struct {
	h      *heap.Heap
	cell   *heap.Cell
	strong *heap.Persistent // nil when the edge is traced
}

func (r *Ref[R]) inst() *instance[R] {
	if r.cell == nil {
		panic(errors.InvalidHandle("use of released handle"))
	}
	return r.cell.Payload().(*instance[R])
}

// Get dereferences the handle. Cost is one pointer chase regardless
// of mode. Panics if the referent has been finalized, which can only
// happen through a caller bug (dangling handle past realm teardown,
// or a Trace method that skipped this field).
func (r *Ref[R]) Get() R {
	return r.inst().value
}

// Cell returns the underlying heap cell.
func (r *Ref[R]) Cell() *heap.Cell {
	return r.cell
}

// IsStrong reports whether the handle currently holds a persistent
// root.
func (r *Ref[R]) IsStrong() bool {
	return r.strong != nil
}

// StrongCount returns the referent's live strong-handle count.
func (r *Ref[R]) StrongCount() int {
	return r.inst().strongCount()
}

// Clone produces a second handle to the same cell.
//
// Cloning a Strong handle increments the strong count. Cloning a
// Traced handle does no refcount work - the collector is the sole
// authority on liveness for on-heap edges - and is only legal while a
// trace callback is running, because a traced edge produced anywhere
// else would be invisible to the tracer until the next wrap.
func (r *Ref[R]) Clone() *Ref[R] {
	if r.cell == nil {
		panic(errors.InvalidHandle("clone of released handle"))
	}
	if r.strong != nil {
		r.inst().strong.Add(1)
		return &Ref[R]{h: r.h, cell: r.cell, strong: r.h.NewPersistent(r.cell)}
	}
	if !r.h.InTrace() {
		panic(errors.InvalidHandle("traced handle cloned outside a trace callback"))
	}
	return &Ref[R]{h: r.h, cell: r.cell}
}

// Release drops the handle's current-mode reference. Strong: the
// count decrements and the root is removed; the cell itself is
// reclaimed by a later pass, never synchronously. Traced: no-op, the
// collector owns that edge. Safe to call from finalizers and safe to
// call twice.
func (r *Ref[R]) Release() {
	if r == nil || r.cell == nil {
		return
	}
	cell := r.cell
	strong := r.strong
	r.cell = nil
	r.strong = nil
	if strong == nil {
		return
	}
	if !cell.Dead() {
		if n := cell.Payload().(*instance[R]).strong.Add(-1); n < 0 {
			panic(errors.InvalidHandle("strong count underflow"))
		}
	}
	strong.Release()
}

// Trace reports this handle to a visitor. Payload Trace methods call
// it for every Ref field.
//
// During a mark pass only Traced handles are visible; a Strong
// handle's root already keeps the referent alive, so it contributes
// nothing here. During re-rooting the handle performs
// the requested mode transition, moving the strong count by exactly
// one and preserving referential identity.
func (r *Ref[R]) Trace(v *heap.Visitor) {
	if r == nil || r.cell == nil {
		return
	}
	switch v.Mode() {
	case heap.ModeMark:
		if r.strong == nil {
			v.Visit(r.cell)
		}
	case heap.ModeDemote:
		if r.strong != nil {
			r.inst().strong.Add(-1)
			r.strong.Release()
			r.strong = nil
		}
	case heap.ModePromote:
		if r.strong == nil {
			r.inst().strong.Add(1)
			r.strong = v.Heap().NewPersistent(r.cell)
		}
	}
}

// Weak returns a weak handle to the same referent.
func (r *Ref[R]) Weak() *WeakRef[R] {
	if r.cell == nil {
		panic(errors.InvalidHandle("weak of released handle"))
	}
	return &WeakRef[R]{h: r.h, weak: r.h.NewWeak(r.cell)}
}
