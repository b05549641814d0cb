// Package realm holds the per-engine registry tying heap cells to
// their script wrapper objects.
//
// A realm caches the script-visible type descriptors and owns the
// cell -> wrapper association. Wrapping is the trigger for the
// Strong -> Traced handle transition: once a payload has a live
// script wrapper, the collector is already tracking reachability of
// that payload, so its outgoing handle fields switch to traced edges
// and cycles through script become discoverable.
//
// The realm participates in collection three times. Before a pass
// DemoteWrapped re-demotes the handle fields of every wrapped payload,
// catching edges stored after the wrap. During marking it contributes
// roots: every cell whose wrapper is still reachable from script.
// After a pass SweepWrappers reconciles the registry: dead cells lose
// their association, and surviving cells whose wrapper was detached
// get their back-reference cleared and their handle fields promoted
// back to Strong.
//
// Realm operations are serialized behind the engine's execution lock;
// the realm itself is not safe for concurrent use.
package realm
