package resource

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/cloudflare/workerd-sub014/errors"
	"github.com/cloudflare/workerd-sub014/heap"
)

// Resource is the contract every collector-managed type implements:
// report each Ref, embedded traced edge, and (optionally) weak slot
// to the visitor. Omitting a live handle field is a correctness bug
// that surfaces as premature collection, so keep Trace mechanical -
// one line per field.
type Resource interface {
	Trace(v *heap.Visitor)
}

// Finalizer is optionally implemented by resource values needing
// cleanup. It runs exactly once, from the collection pass that
// reclaims the cell. It must not dereference other resources;
// releasing handles it holds is fine.
type Finalizer interface {
	Finalize()
}

// Named is optionally implemented to label cells in diagnostics.
type Named interface {
	DebugName() string
}

// instance is the payload stored inline in a heap cell: the user
// value plus the header driving mode transitions. Owned by exactly
// one cell, never duplicated.
type instance[R Resource] struct {
	value   R
	wrapper any
	wrapped bool
	strong  atomic.Int32
}

// payloadState is the type-erased view the realm uses; it cannot name
// the concrete R of a cell it only knows by address.
type payloadState interface {
	setWrapper(w any) error
	getWrapper() (any, bool)
	clearWrapper()
	strongCount() int
	typeName() string
}

func (i *instance[R]) setWrapper(w any) error {
	if i.wrapped {
		return errors.DoubleWrap(i.typeName())
	}
	i.wrapper = w
	i.wrapped = true
	return nil
}

func (i *instance[R]) getWrapper() (any, bool) {
	return i.wrapper, i.wrapped
}

func (i *instance[R]) clearWrapper() {
	i.wrapper = nil
	i.wrapped = false
}

func (i *instance[R]) strongCount() int {
	return int(i.strong.Load())
}

func (i *instance[R]) typeName() string {
	return fmt.Sprintf("%T", i.value)
}

// Alloc boxes value in a fresh heap cell and returns a Strong handle
// to it. Allocation failure is process-fatal (the heap panics); there
// is no graceful out-of-memory path on this route.
func Alloc[R Resource](h *heap.Heap, value R) *Ref[R] {
	inst := &instance[R]{value: value}
	cell := h.Allocate(inst, payloadSize(value), &heap.Hooks{
		Trace: func(p any, v *heap.Visitor) {
			p.(*instance[R]).value.Trace(v)
		},
		Finalize: func(p any) {
			if f, ok := any(p.(*instance[R]).value).(Finalizer); ok {
				f.Finalize()
			}
		},
		Name: func(p any) string {
			in := p.(*instance[R])
			if n, ok := any(in.value).(Named); ok {
				return n.DebugName()
			}
			return fmt.Sprintf("%T", in.value)
		},
	})
	inst.strong.Store(1)
	return &Ref[R]{h: h, cell: cell, strong: h.NewPersistent(cell)}
}

// payloadSize approximates the in-cell footprint: the instance header
// plus the value, following one level of indirection for the common
// pointer-shaped resource.
func payloadSize(value any) int {
	const header = 32
	t := reflect.TypeOf(value)
	if t == nil {
		return header
	}
	size := int(t.Size())
	if t.Kind() == reflect.Pointer {
		size += int(t.Elem().Size())
	}
	return header + size
}

// Value returns the resource stored in c, if c holds a payload of
// type R. Used on the script->extension path after unwrapping.
func Value[R Resource](c *heap.Cell) (R, bool) {
	inst, ok := c.Payload().(*instance[R])
	if !ok {
		var zero R
		return zero, false
	}
	return inst.value, true
}

// AdoptRef produces a new Strong handle from a bare cell, used when
// script code passes a wrapper back into extension code.
func AdoptRef[R Resource](h *heap.Heap, c *heap.Cell) (*Ref[R], bool) {
	inst, ok := c.Payload().(*instance[R])
	if !ok {
		return nil, false
	}
	inst.strong.Add(1)
	return &Ref[R]{h: h, cell: c, strong: h.NewPersistent(c)}, true
}

// SetWrapper records the script wrapper back-reference in the cell's
// payload. A cell that already has a wrapper rejects the second one;
// overwriting would orphan the first wrapper.
func SetWrapper(c *heap.Cell, w any) error {
	st, ok := c.Payload().(payloadState)
	if !ok {
		return errors.InvalidInput(errors.PhaseWrap, "cell does not hold a resource payload")
	}
	return st.setWrapper(w)
}

// WrapperOf returns the wrapper back-reference, if one is attached.
func WrapperOf(c *heap.Cell) (any, bool) {
	st, ok := c.Payload().(payloadState)
	if !ok {
		return nil, false
	}
	return st.getWrapper()
}

// ClearWrapper drops the wrapper back-reference.
func ClearWrapper(c *heap.Cell) {
	if st, ok := c.Payload().(payloadState); ok {
		st.clearWrapper()
	}
}

// StrongCount returns the number of live Strong handles on c.
func StrongCount(c *heap.Cell) int {
	st, ok := c.Payload().(payloadState)
	if !ok {
		return 0
	}
	return st.strongCount()
}

// TypeName returns the payload's concrete type name.
func TypeName(c *heap.Cell) string {
	st, ok := c.Payload().(payloadState)
	if !ok {
		return fmt.Sprintf("%T", c.Payload())
	}
	return st.typeName()
}
