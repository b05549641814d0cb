package engine

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudflare/workerd-sub014/errors"
	"github.com/cloudflare/workerd-sub014/heap"
	"github.com/cloudflare/workerd-sub014/realm"
)

// Option configures an Engine.
type Option func(*config)

type config struct {
	log       *zap.Logger
	heapLimit int
}

// WithLogger sets the engine's logger. The heap inherits it.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// WithHeapLimit caps the engine heap's live payload bytes.
func WithHeapLimit(bytes int) Option {
	return func(c *config) { c.heapLimit = bytes }
}

// Engine is one embedded script engine instance: a heap, the realm
// bound to it, and the execution lock everything runs behind.
//
// Script execution is single-threaded. Do serializes all work that
// touches the realm or runs trace hooks; only strong handle clone and
// release are safe from other goroutines.
type Engine struct {
	id   uuid.UUID
	log  *zap.Logger
	mu   sync.Mutex
	heap *heap.Heap
	rm   *realm.Realm

	inDo   atomic.Bool
	closed bool
}

// New creates an engine instance with its own heap and realm.
func New(opts ...Option) *Engine {
	cfg := config{log: Logger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.New()
	log := cfg.log.With(zap.String("engine", id.String()))

	heapOpts := []heap.Option{heap.WithLogger(log)}
	if cfg.heapLimit > 0 {
		heapOpts = append(heapOpts, heap.WithLimit(cfg.heapLimit))
	}
	h := heap.New(heapOpts...)

	e := &Engine{
		id:   id,
		log:  log,
		heap: h,
		rm:   realm.New(h),
	}
	e.log.Debug("engine created", zap.Int("heap_limit", cfg.heapLimit))
	return e
}

// ID returns the instance identifier.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Heap returns the engine's heap.
func (e *Engine) Heap() *heap.Heap {
	return e.heap
}

// Realm returns the engine's realm.
func (e *Engine) Realm() *realm.Realm {
	return e.rm
}

// Do runs fn holding the execution lock. All wrapper operations and
// re-roots must happen inside Do; callers that only clone or release
// strong handles do not need it. fn must not call back into Do,
// CollectGarbage or Close - they take the same lock, and the re-entry
// panics instead of deadlocking.
func (e *Engine) Do(fn func() error) error {
	if e.inDo.Load() {
		panic(errors.Reentrant("do"))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.TornDown("do")
	}
	e.inDo.Store(true)
	defer e.inDo.Store(false)
	return fn()
}

// CollectGarbage runs one mark/sweep pass and reconciles the wrapper
// registry, holding the execution lock for the duration. Wrapped
// payloads are re-demoted first so edges stored after a wrap are
// traced edges by the time marking starts. Panics if called from
// inside a Do callback.
func (e *Engine) CollectGarbage() heap.CollectStats {
	if e.inDo.Load() {
		panic(errors.Reentrant("collect garbage"))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return heap.CollectStats{}
	}
	e.rm.DemoteWrapped()
	cs := e.heap.Collect()
	e.rm.SweepWrappers()
	e.log.Debug("gc",
		zap.Uint64("pass", cs.Pass),
		zap.Int("finalized", cs.Finalized),
		zap.Int("live", cs.LiveCells))
	return cs
}

// Closed reports whether Close has run.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close destroys the instance: the realm is torn down, then every
// remaining cell is finalized regardless of reachability. Idempotent.
// Handles into this engine's heap are dangling afterwards. Panics if
// called from inside a Do callback.
func (e *Engine) Close() error {
	if e.inDo.Load() {
		panic(errors.Reentrant("close"))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.rm.Teardown()
	e.heap.Teardown()
	e.log.Debug("engine closed")
	return nil
}
