package schedlog

import (
	"bytes"
	"strings"
	"testing"

	"keel/kernel"
)

func TestLogsTaskLifecycle(t *testing.T) {
	var buf bytes.Buffer
	h := New(&buf, WithSwitches())

	h.TaskCreated(kernel.TaskInfo{ID: 1, Name: "blink", Priority: 3})
	h.TaskReady(kernel.TaskInfo{ID: 1, Name: "blink", Priority: 3})
	h.TaskSwitch(kernel.TaskInfo{}, kernel.TaskInfo{ID: 1, Name: "blink", Priority: 3})
	h.ISREnter("uart")
	h.ISRExit("uart", true)
	h.TaskDeleted(kernel.TaskInfo{ID: 1, Name: "blink", Priority: 3})

	out := buf.String()
	for _, want := range []string{
		"task_created", "task_ready", "task_switch",
		"isr_enter", "isr_exit", "task_deleted", "blink",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected log output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestTicksSilentByDefault(t *testing.T) {
	var buf bytes.Buffer
	h := New(&buf)
	h.Tick(1)
	h.TaskSwitch(kernel.TaskInfo{}, kernel.TaskInfo{ID: 2, Name: "x", Priority: 1})
	if out := buf.String(); out != "" {
		t.Fatalf("expected silence without WithTicks/WithSwitches, got:\n%s", out)
	}
}
