// Package engine assembles one embedded script engine instance out of
// a heap and a realm, and owns the execution lock that keeps
// collection passes, re-roots and wrapper operations serialized.
//
// The concurrency contract is deliberately narrow: script execution is
// single-threaded, so everything that can run a trace hook happens
// under the engine lock via Do or CollectGarbage. Strong handles are
// the one escape hatch; they may be cloned and released from any
// goroutine because they never touch the trace machinery.
package engine
