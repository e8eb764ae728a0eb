package tracing

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"keel/kernel"
)

// Hooks records scheduler events as spans under one run-scoped root span.
// Hook methods run with the kernel lock held; span operations only buffer,
// export happens on the batch processor's own goroutine.
type Hooks struct {
	runID   string
	runCtx  context.Context
	runSpan trace.Span
	tracer  trace.Tracer

	mu    sync.Mutex
	tasks map[uint32]trace.Span
	ticks uint64
}

// NewRun opens the root span for one simulation run and returns hooks
// feeding it. The run is identified by a fresh UUID, recorded as the
// run.id attribute on every span.
func NewRun() *Hooks {
	tracer := otel.Tracer(tracerName)
	runID := uuid.New().String()
	ctx, span := tracer.Start(context.Background(), "run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	return &Hooks{
		runID:   runID,
		runCtx:  ctx,
		runSpan: span,
		tracer:  tracer,
		tasks:   make(map[uint32]trace.Span),
	}
}

// RunID returns the run's UUID.
func (h *Hooks) RunID() string { return h.runID }

// End closes the root span and every still-open task span. Call it once
// the run is over; spans are not exported before the processor flushes.
func (h *Hooks) End() {
	h.mu.Lock()
	for id, span := range h.tasks {
		span.End()
		delete(h.tasks, id)
	}
	h.runSpan.SetAttributes(attribute.Int64("run.ticks", int64(h.ticks)))
	h.mu.Unlock()
	h.runSpan.End()
}

func (h *Hooks) TaskCreated(t kernel.TaskInfo) {
	_, span := h.tracer.Start(h.runCtx, "task "+t.Name,
		trace.WithAttributes(
			attribute.String("run.id", h.runID),
			attribute.Int64("task.id", int64(t.ID)),
			attribute.Int64("task.priority", int64(t.Priority)),
		))
	h.mu.Lock()
	h.tasks[t.ID] = span
	h.mu.Unlock()
}

func (h *Hooks) TaskDeleted(t kernel.TaskInfo) {
	h.mu.Lock()
	span, ok := h.tasks[t.ID]
	delete(h.tasks, t.ID)
	h.mu.Unlock()
	if ok {
		span.End()
	}
}

func (h *Hooks) TaskReady(t kernel.TaskInfo) {
	h.taskEvent(t, "ready")
}

func (h *Hooks) TaskBlocked(t kernel.TaskInfo) {
	h.taskEvent(t, "blocked")
}

func (h *Hooks) taskEvent(t kernel.TaskInfo, name string) {
	h.mu.Lock()
	span, ok := h.tasks[t.ID]
	h.mu.Unlock()
	if ok {
		span.AddEvent(name)
	}
}

func (h *Hooks) TaskSwitch(prev, next kernel.TaskInfo) {
	h.runSpan.AddEvent("switch", trace.WithAttributes(
		attribute.Int64("prev", int64(prev.ID)),
		attribute.Int64("next", int64(next.ID)),
	))
}

func (h *Hooks) Tick(tick uint64) {
	h.mu.Lock()
	h.ticks = tick
	h.mu.Unlock()
}

func (h *Hooks) ISREnter(name string) {
	h.runSpan.AddEvent("isr_enter", trace.WithAttributes(
		attribute.String("isr", name),
	))
}

func (h *Hooks) ISRExit(name string, yield bool) {
	h.runSpan.AddEvent("isr_exit", trace.WithAttributes(
		attribute.String("isr", name),
		attribute.Bool("yield", yield),
	))
}
