package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/cloudflare/workerd-sub014/engine"
	"github.com/cloudflare/workerd-sub014/heap"
	"github.com/cloudflare/workerd-sub014/realm"
	"github.com/cloudflare/workerd-sub014/resource"
)

// sample is the payload type the workload allocates: a name plus
// outgoing edges to other samples.
type sample struct {
	id       int
	children []*resource.Ref[*sample]
}

func (s *sample) Trace(v *heap.Visitor) {
	for _, c := range s.children {
		c.Trace(v)
	}
}

func (s *sample) Finalize() {
	for _, c := range s.children {
		c.Release()
	}
	s.children = nil
}

func (s *sample) DebugName() string {
	return fmt.Sprintf("sample-%d", s.id)
}

func main() {
	var (
		ops         = flag.Int("ops", 5000, "Number of workload operations")
		seed        = flag.Int64("seed", 1, "Workload random seed")
		limit       = flag.Int("limit", 0, "Heap limit in bytes (0 = unlimited)")
		gcEvery     = flag.Int("gc-every", 250, "Run a collection pass every N operations")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*limit); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*ops, *seed, *gcEvery, *limit, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run drives a synthetic workload against one engine instance and
// reports per-pass and cumulative heap behavior.
func run(ops int, seed int64, gcEvery, limit int, verbose bool) error {
	var opts []engine.Option
	if verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer log.Sync()
		opts = append(opts, engine.WithLogger(log))
	}
	if limit > 0 {
		opts = append(opts, engine.WithHeapLimit(limit))
	}

	e := engine.New(opts...)
	defer e.Close()

	rng := rand.New(rand.NewSource(seed))
	desc := &realm.Descriptor{Name: "Sample"}
	var handles []*resource.Ref[*sample]
	var wrappers []*realm.Wrapper
	nextID := 0

	alloc := func() {
		handles = append(handles, resource.Alloc(e.Heap(), &sample{id: nextID}))
		nextID++
	}
	alloc()

	fmt.Printf("Instance %s: %d operations, gc every %d\n\n", e.ID(), ops, gcEvery)

	for i := 1; i <= ops; i++ {
		switch op := rng.Intn(100); {
		case op < 35:
			alloc()

		case op < 55:
			if len(handles) > 1 {
				j := rng.Intn(len(handles))
				handles[j].Release()
				handles[j] = handles[len(handles)-1]
				handles = handles[:len(handles)-1]
			}

		case op < 70:
			p := handles[rng.Intn(len(handles))]
			c := handles[rng.Intn(len(handles))]
			if err := e.Do(func() error {
				p.Get().children = append(p.Get().children, c.Clone())
				return nil
			}); err != nil {
				return err
			}

		case op < 85:
			h := handles[rng.Intn(len(handles))]
			if err := e.Do(func() error {
				if w, err := realm.Wrap(e.Realm(), h, desc); err == nil {
					wrappers = append(wrappers, w)
				}
				return nil
			}); err != nil {
				return err
			}

		default:
			if len(wrappers) > 0 {
				j := rng.Intn(len(wrappers))
				w := wrappers[j]
				wrappers[j] = wrappers[len(wrappers)-1]
				wrappers = wrappers[:len(wrappers)-1]
				if err := e.Do(func() error {
					w.Detach()
					return nil
				}); err != nil {
					return err
				}
			}
		}

		if i%gcEvery == 0 {
			cs := e.CollectGarbage()
			fmt.Printf("pass %3d: marked %5d  finalized %5d  live %5d cells / %7d bytes  (%s)\n",
				cs.Pass, cs.Marked, cs.Finalized, cs.LiveCells, cs.LiveBytes, cs.Duration)
		}
	}

	for _, h := range handles {
		h.Release()
	}
	cs := e.CollectGarbage()
	fmt.Printf("final:    marked %5d  finalized %5d  live %5d cells / %7d bytes  (%s)\n",
		cs.Marked, cs.Finalized, cs.LiveCells, cs.LiveBytes, cs.Duration)

	s := e.Heap().Stats()
	fmt.Printf("\nAllocated: %d\n", s.TotalAllocated)
	fmt.Printf("Finalized: %d\n", s.TotalFinalized)
	fmt.Printf("Passes:    %d\n", s.Passes)
	fmt.Printf("Leaked:    %d cells (strong cycles stay alive until engine close)\n", s.LiveCells)
	return nil
}
