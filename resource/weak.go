package resource

import (
	"github.com/cloudflare/workerd-sub014/heap"
)

// WeakRef observes a resource without keeping it alive. Weak edges
// are not traced; the collector clears them when the referent dies,
// which is what lets Upgrade fail cleanly instead of resurrecting
// freed memory.
type WeakRef[R Resource] struct {
	h    *heap.Heap
	weak *heap.Weak
}

// Upgrade attempts to produce a Strong handle. It fails once the
// referent has been finalized and never returns a handle to stale
// memory; on success the strong count is incremented.
func (w *WeakRef[R]) Upgrade() (*Ref[R], bool) {
	c := w.weak.Get()
	if c == nil || c.Dead() {
		return nil, false
	}
	inst, ok := c.Payload().(*instance[R])
	if !ok {
		return nil, false
	}
	inst.strong.Add(1)
	return &Ref[R]{h: w.h, cell: c, strong: w.h.NewPersistent(c)}, true
}

// Alive reports whether the referent has not been collected yet.
func (w *WeakRef[R]) Alive() bool {
	return w.weak.Get() != nil
}

// Release drops the weak registry entry. Idempotent.
func (w *WeakRef[R]) Release() {
	w.weak.Release()
}
