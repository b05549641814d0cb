// Package heap implements the host-collector side of the bridge: the
// cell type the collector natively understands, the visitor protocol
// trace callbacks speak, and the mark/sweep pass that discovers live
// cells and finalizes dead ones.
//
// # Cells
//
// A Cell is an opaque heap object holding one extension payload plus a
// type-erased Hooks value (trace, finalize, debug-name). The collector
// never looks inside the payload; everything it learns about the
// object graph comes from forwarding the trace hook:
//
//	cell := h.Allocate(payload, size, hooks)
//
// Cells are owned by the heap once allocated. Nothing frees a cell
// directly; it is reclaimed by a collection pass, which runs the
// finalize hook exactly once.
//
// # Roots and edges
//
// Reachability starts from Persistent references (off-heap strong
// roots, safe to create and release from any goroutine) and from any
// registered RootProvider (the realm contributes cells whose script
// wrappers are still reachable). On-heap edges are reported during
// tracing via Visitor.Visit. Weak references never root their target
// and are cleared before finalizers run, so observing collection is
// race-free within a pass.
//
// # Discipline
//
// Trace and finalize hooks must not allocate and must not trigger
// another pass; both misuses panic. Releasing a Persistent from a
// finalizer is fine.
package heap
