// Package rtos is a safety-typed API layer over a preemptive fixed-priority
// kernel. It encodes real-time correctness rules in the type system: every
// kernel-calling operation requires either a TaskContext or an ISRContext
// capability token, blocking operations exist only on the TaskContext side,
// and kernel object handles are owned values with an explicit deletion
// lifecycle. Calling a blocking operation from an interrupt handler is a
// compile error, not a runtime fault.
package rtos

import (
	"errors"
	"sync"
	"time"

	"keel/config"
	"keel/kernel"
)

// RTOS is the handle to one kernel instance. Object creation hangs off it,
// and creation is the only path that touches the kernel heap, so interrupt
// handlers never allocate.
type RTOS struct {
	k   *kernel.Kernel
	cfg config.Config

	isrs   registry[func(*ISRContext)]
	timers timerService
}

// Option adjusts kernel construction.
type Option func(*options)

type options struct {
	hooks []kernel.Hooks
}

// WithHooks attaches a scheduler event receiver, for logging or tracing.
func WithHooks(h kernel.Hooks) Option {
	return func(o *options) { o.hooks = append(o.hooks, h) }
}

// New creates a kernel from the build configuration contract. The instance
// is created exactly once and never reinitialized; Start may be called one
// time only.
func New(cfg config.Config, opts ...Option) (*RTOS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var hooks kernel.Hooks
	switch len(o.hooks) {
	case 0:
		hooks = kernel.NopHooks{}
	case 1:
		hooks = o.hooks[0]
	default:
		hooks = kernel.MultiHooks(o.hooks)
	}

	os := &RTOS{
		k:   kernel.New(cfg.Kernel(), hooks),
		cfg: cfg,
	}
	os.timers.os = os
	return os, nil
}

// Config returns the build configuration the kernel was created with.
func (os *RTOS) Config() config.Config { return os.cfg }

// MaxPriorities returns the number of distinct task priorities.
func (os *RTOS) MaxPriorities() uint8 { return os.cfg.MaxPriorities }

// Start makes the scheduler live. Tasks spawned beforehand start running,
// highest priority first.
func (os *RTOS) Start() {
	os.k.Start()
}

// Run starts the scheduler with a wall-clock tick source and blocks until
// stop is closed. Tests drive the timebase manually with AdvanceTick
// instead.
func (os *RTOS) Run(stop <-chan struct{}) {
	os.Start()
	halt := os.k.StartTicker()
	defer halt()
	<-stop
}

// AdvanceTick delivers one scheduler tick by hand. It is the timebase for
// deterministic simulation: delays and timeouts only expire through it.
func (os *RTOS) AdvanceTick() {
	os.k.AdvanceTick()
}

// AdvanceTicks delivers n ticks.
func (os *RTOS) AdvanceTicks(n int) {
	for i := 0; i < n; i++ {
		os.k.AdvanceTick()
	}
}

// TickCount returns the current tick value.
func (os *RTOS) TickCount() uint64 {
	return os.k.TickCount()
}

// WaitIdle blocks until every task is blocked, suspended, or deleted, or
// the wall-clock timeout expires. Host code uses it to synchronize with the
// simulation between ticks and interrupts.
func (os *RTOS) WaitIdle(d time.Duration) bool {
	return os.k.WaitIdle(d)
}

// Snapshot reports the state of every live task.
func (os *RTOS) Snapshot() []kernel.TaskStatus {
	return os.k.Snapshot()
}

// FreeHeapBytes returns the unallocated kernel heap.
func (os *RTOS) FreeHeapBytes() int {
	return os.k.Heap().FreeBytes()
}

// MinEverFreeHeapBytes returns the kernel heap's low-water mark.
func (os *RTOS) MinEverFreeHeapBytes() int {
	return os.k.Heap().MinEverFreeBytes()
}

// registry stores callbacks behind stable opaque ids so kernel-side state
// never holds the callbacks themselves, mirroring how C callback tables
// carry a context pointer through a trampoline.
type registry[T any] struct {
	mu     sync.RWMutex
	nextID uintptr
	m      map[uintptr]T
}

func (r *registry[T]) register(v T) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[uintptr]T)
	}
	r.nextID++
	r.m[r.nextID] = v
	return r.nextID
}

func (r *registry[T]) lookup(id uintptr) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[id]
	return v, ok
}

func (r *registry[T]) unregister(id uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
}

// errDetached reports use of an interrupt or timer after detach/delete.
var errDetached = errors.New("rtos: callback detached")
