package realm

import (
	"sort"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/samber/lo"

	"github.com/cloudflare/workerd-sub014/errors"
	"github.com/cloudflare/workerd-sub014/heap"
	"github.com/cloudflare/workerd-sub014/resource"
)

// Descriptor describes a script-visible type: the constructor name
// plus the members the API surface exposes. The bridge only needs the
// identity; building callables out of the member lists is the
// API-surface generator's job.
type Descriptor struct {
	Name       string
	Methods    []string
	Properties []string
}

// Realm is the per-engine-instance registry. It lives exactly as long
// as its engine; after Teardown every handle into the realm's heap is
// dangling.
type Realm struct {
	h        *heap.Heap
	types    map[string]*Descriptor
	wrappers *orderedmap.OrderedMap[*heap.Cell, *Wrapper]
	tornDown bool
}

// New creates a realm bound to h and registers it as a root provider.
func New(h *heap.Heap) *Realm {
	rm := &Realm{
		h:        h,
		types:    make(map[string]*Descriptor),
		wrappers: orderedmap.NewOrderedMap[*heap.Cell, *Wrapper](),
	}
	h.AddRootProvider(rm)
	return rm
}

// Heap returns the heap this realm is bound to.
func (rm *Realm) Heap() *heap.Heap {
	return rm.h
}

// RegisterType interns a descriptor and returns the canonical copy
// for its name. Wrapping the same type twice reuses the first
// descriptor, mirroring a per-type template cache.
func (rm *Realm) RegisterType(d *Descriptor) *Descriptor {
	if existing, ok := rm.types[d.Name]; ok {
		return existing
	}
	rm.types[d.Name] = d
	return d
}

// DescriptorFor returns the cached descriptor for a type name.
func (rm *Realm) DescriptorFor(name string) (*Descriptor, bool) {
	d, ok := rm.types[name]
	return d, ok
}

// Types returns the registered type names, sorted.
func (rm *Realm) Types() []string {
	names := lo.Keys(rm.types)
	sort.Strings(names)
	return names
}

// Len returns the number of live wrapper associations.
func (rm *Realm) Len() int {
	return rm.wrappers.Len()
}

// WrapperFor returns the wrapper associated with a cell.
func (rm *Realm) WrapperFor(c *heap.Cell) (*Wrapper, bool) {
	return rm.wrappers.Get(c)
}

// TornDown reports whether Teardown has run.
func (rm *Realm) TornDown() bool {
	return rm.tornDown
}

// Wrap creates a script wrapper for the referent of ref.
//
// Wrapping an already-wrapped cell whose wrapper is still reachable
// returns the existing wrapper; attaching a second wrapper while the
// first is merely pending collection is rejected, since overwriting
// the back-reference would orphan the first script object.
//
// On success the payload's handle fields are demoted to traced edges:
// from here on, the collector's view of the wrapper decides the
// subgraph's liveness.
func Wrap[R resource.Resource](rm *Realm, ref *resource.Ref[R], desc *Descriptor) (*Wrapper, error) {
	if rm.tornDown {
		return nil, errors.TornDown("wrap")
	}
	if ref == nil || ref.Cell() == nil {
		return nil, errors.InvalidInput(errors.PhaseWrap, "wrap of nil or released handle")
	}
	cell := ref.Cell()

	if w, ok := rm.wrappers.Get(cell); ok {
		if w.reachable {
			return w, nil
		}
		return nil, errors.DoubleWrap(resource.TypeName(cell))
	}
	if desc == nil {
		return nil, errors.InvalidInput(errors.PhaseWrap, "wrap without a type descriptor")
	}

	w := &Wrapper{
		realm:     rm,
		cell:      cell,
		desc:      rm.RegisterType(desc),
		reachable: true,
	}
	if err := resource.SetWrapper(cell, w); err != nil {
		return nil, err
	}
	rm.wrappers.Set(cell, w)
	rm.h.Reroot(cell, heap.ModeDemote)
	return w, nil
}

// UnwrapAs recovers a Strong handle from a wrapper, used when script
// code passes the wrapper back into extension code.
func UnwrapAs[R resource.Resource](w *Wrapper) (*resource.Ref[R], bool) {
	if w == nil || w.cell == nil || w.cell.Dead() {
		return nil, false
	}
	return resource.AdoptRef[R](w.realm.h, w.cell)
}

// AppendRoots implements heap.RootProvider: cells with a script-
// reachable wrapper are roots.
func (rm *Realm) AppendRoots(visit func(*heap.Cell)) {
	for el := rm.wrappers.Front(); el != nil; el = el.Next() {
		if el.Value.reachable {
			visit(el.Key)
		}
	}
}

// DemoteWrapped re-runs the Strong->Traced transition over every cell
// that still has a wrapper association. A handle stored into a payload
// after it was wrapped starts out Strong; re-rooting here, before the
// mark phase, restores the rule that every edge out of a wrapped
// payload is a traced edge, so cycles linked up after wrapping are
// still discoverable. Runs once per collection, before heap.Collect.
func (rm *Realm) DemoteWrapped() {
	for el := rm.wrappers.Front(); el != nil; el = el.Next() {
		if !el.Key.Dead() {
			rm.h.Reroot(el.Key, heap.ModeDemote)
		}
	}
}

// SweepWrappers reconciles the registry after a collection pass.
// Associations to finalized cells are dropped. Cells that survived a
// detached wrapper get the back-reference cleared and their handle
// fields promoted back to Strong; extension handles alone now keep
// that subgraph alive.
func (rm *Realm) SweepWrappers() {
	var dead, orphaned []*heap.Cell
	for el := rm.wrappers.Front(); el != nil; el = el.Next() {
		switch {
		case el.Key.Dead():
			dead = append(dead, el.Key)
		case !el.Value.reachable:
			orphaned = append(orphaned, el.Key)
		}
	}
	for _, c := range dead {
		rm.wrappers.Delete(c)
	}
	for _, c := range orphaned {
		resource.ClearWrapper(c)
		rm.wrappers.Delete(c)
		rm.h.Reroot(c, heap.ModePromote)
	}
}

// Teardown detaches every wrapper and empties the registry. The realm
// rejects wrap calls afterwards. The caller is expected to follow up
// with a heap teardown; handles into this realm are dangling either
// way.
func (rm *Realm) Teardown() {
	if rm.tornDown {
		return
	}
	rm.tornDown = true
	for el := rm.wrappers.Front(); el != nil; el = el.Next() {
		el.Value.reachable = false
		if !el.Key.Dead() {
			resource.ClearWrapper(el.Key)
		}
	}
	rm.wrappers = orderedmap.NewOrderedMap[*heap.Cell, *Wrapper]()
	rm.types = make(map[string]*Descriptor)
}
