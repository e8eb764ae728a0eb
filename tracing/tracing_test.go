package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"keel/kernel"
)

func TestRunSpansExported(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	if err := InitWithExporter("keel-test", "0.0.0", exp); err != nil {
		t.Fatalf("init: %v", err)
	}

	h := NewRun()
	if h.RunID() == "" {
		t.Fatal("expected a run id")
	}
	info := kernel.TaskInfo{ID: 1, Name: "blink", Priority: 3}
	h.TaskCreated(info)
	h.TaskReady(info)
	h.ISREnter("uart")
	h.ISRExit("uart", true)
	h.Tick(7)
	h.TaskDeleted(info)
	h.End()

	if err := Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	spans := exp.GetSpans()
	var names []string
	for _, s := range spans {
		names = append(names, s.Name)
	}
	want := map[string]bool{"run": false, "task blink": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, seen := range want {
		if !seen {
			t.Fatalf("expected span %q, got %v", n, names)
		}
	}
}
