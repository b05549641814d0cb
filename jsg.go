// Package jsg is the umbrella API for embedding collector-managed
// extension resources in a script engine instance. It re-exports the
// pieces most integrations need so that typical extension code imports
// one package:
//
//	e := jsg.NewEngine()
//	ref := jsg.Alloc(e.Heap(), &Socket{})
//	w, err := jsg.Wrap(e.Realm(), ref, &jsg.Descriptor{Name: "Socket"})
//
// The underlying packages remain importable directly; heap is the
// collector core, resource the typed handle layer, realm the wrapper
// registry and engine the per-instance assembly.
package jsg

import (
	"github.com/cloudflare/workerd-sub014/engine"
	"github.com/cloudflare/workerd-sub014/heap"
	"github.com/cloudflare/workerd-sub014/realm"
	"github.com/cloudflare/workerd-sub014/resource"
)

type (
	Heap         = heap.Heap
	Cell         = heap.Cell
	Visitor      = heap.Visitor
	Mode         = heap.Mode
	Stats        = heap.Stats
	CollectStats = heap.CollectStats

	Resource  = resource.Resource
	Finalizer = resource.Finalizer
	Named     = resource.Named

	Ref[R resource.Resource]     = resource.Ref[R]
	WeakRef[R resource.Resource] = resource.WeakRef[R]

	Realm      = realm.Realm
	Wrapper    = realm.Wrapper
	Descriptor = realm.Descriptor

	Engine = engine.Engine
	Option = engine.Option
)

const (
	ModeMark    = heap.ModeMark
	ModeDemote  = heap.ModeDemote
	ModePromote = heap.ModePromote
)

var (
	NewEngine     = engine.New
	WithLogger    = engine.WithLogger
	WithHeapLimit = engine.WithHeapLimit
)

// Alloc allocates a resource on the instance heap and returns a
// Strong handle holding the initial reference.
func Alloc[R resource.Resource](h *heap.Heap, value R) *resource.Ref[R] {
	return resource.Alloc(h, value)
}

// Wrap attaches a script wrapper to the handle's referent.
func Wrap[R resource.Resource](rm *realm.Realm, ref *resource.Ref[R], desc *realm.Descriptor) (*realm.Wrapper, error) {
	return realm.Wrap(rm, ref, desc)
}

// UnwrapAs recovers a Strong handle from a script wrapper.
func UnwrapAs[R resource.Resource](w *realm.Wrapper) (*resource.Ref[R], bool) {
	return realm.UnwrapAs[R](w)
}
