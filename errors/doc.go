// Package errors provides structured error types for the GC bridge.
//
// Errors carry a Phase (where in the lifecycle the failure happened)
// and a Kind (what went wrong), plus optional type name, path, and
// cause. This keeps boundary-crossing failures machine-matchable with
// errors.Is while the rendered message stays readable:
//
//	[wrap] double_wrap: type Texture - cell already has a wrapper
//
// Unrecoverable conditions - heap exhaustion, re-entrant collection,
// allocation from inside a trace callback - are deliberately not
// modeled as errors. They panic at the point of misuse.
package errors
