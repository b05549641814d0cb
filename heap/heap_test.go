package heap

import (
	"testing"

	stderrors "errors"

	bridgeerrors "github.com/cloudflare/workerd-sub014/errors"
)

type testNode struct {
	edges     []*Cell
	finalized int
	name      string
}

var testHooks = &Hooks{
	Trace: func(p any, v *Visitor) {
		for _, e := range p.(*testNode).edges {
			v.Visit(e)
		}
	},
	Finalize: func(p any) {
		p.(*testNode).finalized++
	},
	Name: func(p any) string {
		return p.(*testNode).name
	},
}

func allocNode(h *Heap, name string) (*testNode, *Cell) {
	n := &testNode{name: name}
	return n, h.Allocate(n, 16, testHooks)
}

func TestPersistentKeepsCellAlive(t *testing.T) {
	h := New()
	n, c := allocNode(h, "rooted")
	p := h.NewPersistent(c)

	for i := 0; i < 3; i++ {
		h.Collect()
	}
	if n.finalized != 0 {
		t.Fatal("rooted cell was finalized")
	}

	p.Release()
	h.Collect()
	if n.finalized != 1 {
		t.Fatalf("finalized %d times, want 1", n.finalized)
	}
	if !c.Dead() {
		t.Fatal("cell should be dead after collection")
	}
}

func TestUnrootedCellFinalizedExactlyOnce(t *testing.T) {
	h := New()
	n, _ := allocNode(h, "garbage")

	h.Collect()
	h.Collect()
	if n.finalized != 1 {
		t.Fatalf("finalized %d times, want 1", n.finalized)
	}
}

func TestTracedEdgesKeepChainAlive(t *testing.T) {
	h := New()
	root, rootCell := allocNode(h, "root")
	mid, midCell := allocNode(h, "mid")
	leaf, leafCell := allocNode(h, "leaf")
	root.edges = []*Cell{midCell}
	mid.edges = []*Cell{leafCell}

	p := h.NewPersistent(rootCell)
	cs := h.Collect()
	if cs.Finalized != 0 {
		t.Fatalf("finalized %d cells, want 0", cs.Finalized)
	}
	if cs.Marked != 3 {
		t.Fatalf("marked %d cells, want 3", cs.Marked)
	}

	// Cut the chain below root; mid and leaf become garbage.
	root.edges = nil
	cs = h.Collect()
	if cs.Finalized != 2 {
		t.Fatalf("finalized %d cells, want 2", cs.Finalized)
	}
	if mid.finalized != 1 || leaf.finalized != 1 {
		t.Fatal("mid and leaf should each finalize once")
	}
	p.Release()
}

func TestDuplicateVisitsAreHarmless(t *testing.T) {
	h := New()
	parent, parentCell := allocNode(h, "parent")
	_, childCell := allocNode(h, "child")
	parent.edges = []*Cell{childCell, childCell, childCell}

	p := h.NewPersistent(parentCell)
	cs := h.Collect()
	if cs.Marked != 2 {
		t.Fatalf("marked %d cells, want 2", cs.Marked)
	}
	p.Release()
}

func TestWeakObservesCollection(t *testing.T) {
	h := New()
	_, c := allocNode(h, "target")
	p := h.NewPersistent(c)
	w := h.NewWeak(c)

	h.Collect()
	if w.Get() != c {
		t.Fatal("weak should still see live cell")
	}

	p.Release()
	h.Collect()
	if w.Get() != nil {
		t.Fatal("weak should be cleared after target collection")
	}
}

func TestNewWeakToDeadCellIsEmpty(t *testing.T) {
	h := New()
	_, c := allocNode(h, "gone")
	h.Collect()

	if w := h.NewWeak(c); w.Get() != nil {
		t.Fatal("weak to finalized cell should start empty")
	}
}

func TestReentrantCollectPanics(t *testing.T) {
	h := New()
	n := &testNode{name: "evil"}
	hooks := &Hooks{
		Trace: func(p any, v *Visitor) {
			h.Collect()
		},
	}
	c := h.Allocate(n, 8, hooks)
	p := h.NewPersistent(c)
	defer p.Release()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("re-entrant collect should panic")
		}
		err, ok := r.(error)
		if !ok || !stderrors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseCollect, Kind: bridgeerrors.KindReentrant}) {
			t.Fatalf("unexpected panic value %v", r)
		}
	}()
	h.Collect()
}

func TestAllocateDuringTracePanics(t *testing.T) {
	h := New()
	hooks := &Hooks{
		Trace: func(p any, v *Visitor) {
			h.Allocate(&testNode{}, 8, testHooks)
		},
	}
	c := h.Allocate(&testNode{name: "allocator"}, 8, hooks)
	p := h.NewPersistent(c)
	defer p.Release()

	defer func() {
		if recover() == nil {
			t.Fatal("allocation inside a trace hook should panic")
		}
	}()
	h.Collect()
}

func TestHeapLimitIsFatal(t *testing.T) {
	h := New(WithLimit(32))
	h.Allocate(&testNode{}, 24, testHooks)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("exceeding the heap limit should panic")
		}
		err, ok := r.(error)
		if !ok || !stderrors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseAlloc, Kind: bridgeerrors.KindAllocation}) {
			t.Fatalf("unexpected panic value %v", r)
		}
	}()
	h.Allocate(&testNode{}, 24, testHooks)
}

type sliceRoots struct {
	cells []*Cell
}

func (s *sliceRoots) AppendRoots(visit func(*Cell)) {
	for _, c := range s.cells {
		visit(c)
	}
}

func TestRootProvider(t *testing.T) {
	h := New()
	n, c := allocNode(h, "provided")
	rp := &sliceRoots{cells: []*Cell{c}}
	h.AddRootProvider(rp)

	h.Collect()
	if n.finalized != 0 {
		t.Fatal("provider-rooted cell was finalized")
	}

	rp.cells = nil
	h.Collect()
	if n.finalized != 1 {
		t.Fatalf("finalized %d times, want 1", n.finalized)
	}
}

func TestTeardownFinalizesEverything(t *testing.T) {
	h := New()
	a, ca := allocNode(h, "a")
	b, cb := allocNode(h, "b")
	p := h.NewPersistent(ca)
	w := h.NewWeak(cb)

	h.Teardown()
	if a.finalized != 1 || b.finalized != 1 {
		t.Fatal("teardown should finalize rooted and unrooted cells alike")
	}
	if w.Get() != nil {
		t.Fatal("weak should be cleared by teardown")
	}
	if p.Cell() != nil {
		t.Fatal("persistent should be emptied by teardown")
	}
	// Releasing an emptied persistent must be a safe no-op.
	p.Release()
	if h.Len() != 0 {
		t.Fatalf("heap still tracks %d cells", h.Len())
	}
}

func TestRerootRejectsMarkMode(t *testing.T) {
	h := New()
	_, c := allocNode(h, "x")
	defer func() {
		if recover() == nil {
			t.Fatal("Reroot with ModeMark should panic")
		}
	}()
	h.Reroot(c, ModeMark)
}

func TestPayloadAccessAfterFinalizePanics(t *testing.T) {
	h := New()
	_, c := allocNode(h, "stale")
	h.Collect()

	defer func() {
		if recover() == nil {
			t.Fatal("payload access on a dead cell should panic")
		}
	}()
	_ = c.Payload()
}

func TestDebugName(t *testing.T) {
	h := New()
	_, c := allocNode(h, "Texture")
	if c.DebugName() != "Texture" {
		t.Fatalf("got %q", c.DebugName())
	}

	anon := h.Allocate(&testNode{}, 8, &Hooks{Trace: func(any, *Visitor) {}})
	if anon.DebugName() == "" {
		t.Fatal("fallback debug name should not be empty")
	}
}

type recordingObserver struct {
	allocated int
	finalized int
	collected int
}

func (o *recordingObserver) OnHeapEvent(e Event) {
	switch e.Type {
	case EventAllocated:
		o.allocated++
	case EventFinalized:
		o.finalized++
	case EventCollected:
		o.collected++
	}
}

func TestObserverEvents(t *testing.T) {
	h := New()
	obs := &recordingObserver{}
	h.Subscribe(obs)

	allocNode(h, "a")
	allocNode(h, "b")
	h.Collect()

	if obs.allocated != 2 {
		t.Fatalf("allocated events %d, want 2", obs.allocated)
	}
	if obs.finalized != 2 {
		t.Fatalf("finalized events %d, want 2", obs.finalized)
	}
	if obs.collected != 1 {
		t.Fatalf("collected events %d, want 1", obs.collected)
	}

	h.Unsubscribe(obs)
	allocNode(h, "c")
	if obs.allocated != 2 {
		t.Fatal("should not receive events after Unsubscribe")
	}
}

func TestStatsSnapshot(t *testing.T) {
	h := New()
	_, c := allocNode(h, "keep")
	p := h.NewPersistent(c)
	allocNode(h, "drop")
	h.Collect()

	s := h.Stats()
	if s.LiveCells != 1 {
		t.Fatalf("live cells %d, want 1", s.LiveCells)
	}
	if s.TotalAllocated != 2 {
		t.Fatalf("total allocated %d, want 2", s.TotalAllocated)
	}
	if s.TotalFinalized != 1 {
		t.Fatalf("total finalized %d, want 1", s.TotalFinalized)
	}
	if s.Passes != 1 {
		t.Fatalf("passes %d, want 1", s.Passes)
	}
	p.Release()
}
