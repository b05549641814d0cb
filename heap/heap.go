package heap

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloudflare/workerd-sub014/errors"
)

// RootProvider contributes additional roots to each collection pass.
// The realm implements this: cells whose script wrappers are still
// reachable from script are roots.
type RootProvider interface {
	AppendRoots(visit func(*Cell))
}

// Option configures a Heap.
type Option func(*Heap)

// WithLimit caps the sum of live payload sizes. Exceeding the cap is
// process-fatal: Allocate panics, mirroring a host heap with no
// graceful out-of-memory path.
func WithLimit(bytes int) Option {
	return func(h *Heap) { h.limit = bytes }
}

// WithLogger sets the pass logger.
func WithLogger(log *zap.Logger) Option {
	return func(h *Heap) {
		if log != nil {
			h.log = log
		}
	}
}

// Heap owns every Cell it allocates. Collection passes run
// cooperatively with the single logical thread of script execution;
// the internal mutex exists only so strong handles can be created and
// released from background goroutines.
type Heap struct {
	mu        sync.Mutex
	cells     map[*Cell]struct{}
	roots     map[*Persistent]struct{}
	weaks     map[*Weak]struct{}
	providers []RootProvider
	limit     int
	liveBytes int
	epoch     uint64
	noAlloc   bool // set for the duration of a pass
	inTrace   bool // set while trace hooks run (mark or re-root)
	stats     Stats

	observers []Observer
	obsMu     sync.RWMutex

	log *zap.Logger
}

// New creates an empty heap.
func New(opts ...Option) *Heap {
	h := &Heap{
		cells: make(map[*Cell]struct{}, 64),
		roots: make(map[*Persistent]struct{}, 16),
		weaks: make(map[*Weak]struct{}, 16),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Allocate reserves a cell for the given payload. The returned cell
// is unrooted; callers that need it to survive the next pass must
// register a Persistent before yielding to the collector.
//
// Panics if called during a collection pass (trace and finalize hooks
// must not allocate) or if the heap limit would be exceeded.
func (h *Heap) Allocate(payload any, size int, hooks *Hooks) *Cell {
	if hooks == nil || hooks.Trace == nil {
		panic("heap: allocate without a trace hook")
	}
	if size < 0 {
		size = 0
	}

	h.mu.Lock()
	if h.noAlloc {
		h.mu.Unlock()
		panic("heap: allocate during a collection pass")
	}
	if h.limit > 0 && h.liveBytes+size > h.limit {
		h.mu.Unlock()
		panic(errors.AllocationFailed(size, h.limit))
	}
	c := &Cell{hooks: hooks, payload: payload, size: size}
	h.cells[c] = struct{}{}
	h.liveBytes += size
	h.stats.TotalAllocated++
	h.mu.Unlock()

	h.notify(Event{Type: EventAllocated, Cell: c})
	return c
}

// AddRootProvider registers an extra root source for future passes.
func (h *Heap) AddRootProvider(rp RootProvider) {
	h.mu.Lock()
	h.providers = append(h.providers, rp)
	h.mu.Unlock()
}

// InTrace reports whether a trace hook is currently running (either a
// mark pass or a re-root visit). Handle code uses this to reject
// fabrication of traced edges from ordinary extension code.
func (h *Heap) InTrace() bool {
	return h.inTrace
}

// Len returns the number of live cells.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cells)
}

// LiveBytes returns the accounted size of live payloads.
func (h *Heap) LiveBytes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.liveBytes
}

// Stats returns a snapshot of cumulative counters.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.LiveCells = len(h.cells)
	s.LiveBytes = h.liveBytes
	return s
}

// Collect runs one full mark/sweep pass: mark from the root set and
// all root providers, clear weak references to unmarked cells, then
// finalize every unmarked cell exactly once. Finalization order is
// unspecified. Re-entrant collection panics.
func (h *Heap) Collect() CollectStats {
	start := time.Now()

	h.mu.Lock()
	if h.noAlloc {
		h.mu.Unlock()
		panic(errors.Reentrant("collect"))
	}
	h.noAlloc = true
	h.epoch++
	pass := h.epoch

	v := &Visitor{h: h, mode: ModeMark}
	for p := range h.roots {
		v.Visit(p.cell)
	}
	providers := make([]RootProvider, len(h.providers))
	copy(providers, h.providers)
	h.mu.Unlock()

	for _, rp := range providers {
		rp.AppendRoots(v.Visit)
	}

	// Mark. Iterative with an explicit stack; trace hooks may report
	// arbitrarily deep graphs without growing the goroutine stack.
	h.inTrace = true
	for len(v.stack) > 0 {
		c := v.stack[len(v.stack)-1]
		v.stack = v.stack[:len(v.stack)-1]
		c.hooks.Trace(c.payload, v)
	}
	h.inTrace = false

	// Sweep decision under the lock: detach dead cells and clear the
	// weak references observing them before any finalizer runs.
	h.mu.Lock()
	var dead []*Cell
	for c := range h.cells {
		if c.mark != pass {
			dead = append(dead, c)
			delete(h.cells, c)
			h.liveBytes -= c.size
		}
	}
	for w := range h.weaks {
		if w.cell != nil && w.cell.mark != pass {
			w.cell = nil
			delete(h.weaks, w)
		}
	}
	live := len(h.cells)
	liveBytes := h.liveBytes
	h.mu.Unlock()

	// Flip every dead cell before the first finalizer so a destructor
	// that reaches a sibling sees it already empty rather than stale.
	for _, c := range dead {
		c.dead = true
	}
	for _, c := range dead {
		c.finalize()
		h.notify(Event{Type: EventFinalized, Cell: c})
	}

	h.mu.Lock()
	h.noAlloc = false
	h.stats.Passes++
	h.stats.TotalFinalized += uint64(len(dead))
	h.mu.Unlock()

	cs := CollectStats{
		Pass:      pass,
		Marked:    v.visited,
		Finalized: len(dead),
		LiveCells: live,
		LiveBytes: liveBytes,
		Duration:  time.Since(start),
	}
	h.log.Debug("collection pass",
		zap.Uint64("pass", cs.Pass),
		zap.Int("marked", cs.Marked),
		zap.Int("finalized", cs.Finalized),
		zap.Int("live", cs.LiveCells),
		zap.Duration("took", cs.Duration))
	h.notify(Event{Type: EventCollected, Stats: cs})
	return cs
}

// Reroot runs the cell's trace hook with a demote or promote visitor,
// switching the mode of every handle field the payload reports. Must
// not run during a collection pass; mode switches never race marking.
func (h *Heap) Reroot(c *Cell, m Mode) {
	if m == ModeMark {
		panic("heap: Reroot requires a demote or promote mode")
	}
	if c == nil || c.dead {
		return
	}

	h.mu.Lock()
	if h.noAlloc {
		h.mu.Unlock()
		panic("heap: re-root during a collection pass")
	}
	h.mu.Unlock()

	h.inTrace = true
	defer func() { h.inTrace = false }()
	c.hooks.Trace(c.payload, &Visitor{h: h, mode: m})
}

// Teardown finalizes every remaining cell regardless of reachability
// and empties the root and weak registries. Used when the owning
// engine instance is destroyed; all handles into this heap are
// dangling afterwards.
func (h *Heap) Teardown() {
	h.mu.Lock()
	if h.noAlloc {
		h.mu.Unlock()
		panic(errors.Reentrant("teardown"))
	}
	h.noAlloc = true

	cells := make([]*Cell, 0, len(h.cells))
	for c := range h.cells {
		cells = append(cells, c)
	}
	h.cells = make(map[*Cell]struct{})
	h.liveBytes = 0
	for p := range h.roots {
		p.cell = nil
	}
	h.roots = make(map[*Persistent]struct{})
	for w := range h.weaks {
		w.cell = nil
	}
	h.weaks = make(map[*Weak]struct{})
	h.mu.Unlock()

	for _, c := range cells {
		c.dead = true
	}
	for _, c := range cells {
		c.finalize()
		h.notify(Event{Type: EventFinalized, Cell: c})
	}

	h.mu.Lock()
	h.noAlloc = false
	h.stats.TotalFinalized += uint64(len(cells))
	h.mu.Unlock()

	h.log.Debug("heap teardown", zap.Int("finalized", len(cells)))
}
