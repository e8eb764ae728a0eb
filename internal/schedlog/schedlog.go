// Package schedlog turns scheduler events into structured log lines. It is
// the stock kernel.Hooks implementation for development builds; attach it
// with rtos.WithHooks.
package schedlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"keel/internal/buildinfo"
	"keel/kernel"
)

// Hooks logs every scheduler event through zerolog. Hook methods run with
// the kernel lock held, so the logger must write without calling back into
// the kernel; zerolog's leveled events satisfy that.
type Hooks struct {
	log      zerolog.Logger
	ticks    bool
	switches bool
}

// Option adjusts what gets logged.
type Option func(*Hooks)

// WithTicks enables per-tick log lines. Off by default; at a realistic tick
// rate they drown everything else.
func WithTicks() Option {
	return func(h *Hooks) { h.ticks = true }
}

// WithSwitches enables context-switch log lines. Off by default for the
// same reason as ticks.
func WithSwitches() Option {
	return func(h *Hooks) { h.switches = true }
}

// New builds hooks writing console-formatted lines to w.
func New(w io.Writer, opts ...Option) *Hooks {
	if w == nil {
		w = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	h := &Hooks{
		log: zerolog.New(output).With().Timestamp().
			Str("app", "keel").Str("build", buildinfo.Short()).Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewWithLogger builds hooks on an existing logger, for callers that embed
// the kernel into a larger program with its own logging setup.
func NewWithLogger(log zerolog.Logger, opts ...Option) *Hooks {
	h := &Hooks{log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func task(e *zerolog.Event, t kernel.TaskInfo) *zerolog.Event {
	return e.Uint32("task", t.ID).Str("name", t.Name).Uint8("prio", t.Priority)
}

func (h *Hooks) TaskCreated(t kernel.TaskInfo) {
	task(h.log.Info(), t).Msg("task_created")
}

func (h *Hooks) TaskDeleted(t kernel.TaskInfo) {
	task(h.log.Info(), t).Msg("task_deleted")
}

func (h *Hooks) TaskReady(t kernel.TaskInfo) {
	task(h.log.Debug(), t).Msg("task_ready")
}

func (h *Hooks) TaskBlocked(t kernel.TaskInfo) {
	task(h.log.Debug(), t).Msg("task_blocked")
}

func (h *Hooks) TaskSwitch(prev, next kernel.TaskInfo) {
	if !h.switches {
		return
	}
	h.log.Debug().
		Uint32("prev", prev.ID).
		Uint32("next", next.ID).
		Str("next_name", next.Name).
		Uint8("next_prio", next.Priority).
		Msg("task_switch")
}

func (h *Hooks) Tick(tick uint64) {
	if !h.ticks {
		return
	}
	h.log.Trace().Uint64("tick", tick).Msg("tick")
}

func (h *Hooks) ISREnter(name string) {
	h.log.Debug().Str("isr", name).Msg("isr_enter")
}

func (h *Hooks) ISRExit(name string, yield bool) {
	h.log.Debug().Str("isr", name).Bool("yield", yield).Msg("isr_exit")
}
