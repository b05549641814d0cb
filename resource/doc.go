// Package resource provides the handle types extension code holds on
// collector-managed values.
//
// # Payloads
//
// A value becomes collector-managed through Alloc, which boxes it in
// a heap cell together with a small header: the count of live strong
// handles and the optional back-reference to its script wrapper. The
// value's type must implement Resource (report edges to the visitor);
// it may additionally implement Finalizer (destructor) and Named
// (diagnostics).
//
// # Handles
//
// Ref is the handle extension code actually holds. It is always in
// one of two modes:
//
//	Strong - backed by an off-heap persistent root. Invisible to the
//	         tracer; the referent outlives the handle unconditionally.
//	Traced - a bare on-heap edge, visible to (and only kept alive by)
//	         the collector's reachability analysis.
//
// The mode is not chosen by the holder. A handle stored inside a
// payload is demoted to Traced when that payload's script wrapper is
// attached, and promoted back to Strong when the wrapper goes away
// while the payload survives; both transitions run through the
// payload's own Trace method. A handle that stays in plain extension
// code stays Strong for its whole life.
//
// Strong handle operations (Alloc, Clone, Release) are legal from any
// goroutine. Traced handles may only be produced while a trace
// callback is running; Clone enforces this at runtime.
//
// # Weak handles
//
// WeakRef never keeps its referent alive. Upgrade yields a fresh
// Strong handle, or reports failure once the referent has been
// finalized; it can never return a handle to reclaimed memory.
package resource
