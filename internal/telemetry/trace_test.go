package telemetry

import (
	"context"
	"testing"
)

func TestTraceContext_NewAndIterationSpan(t *testing.T) {
	root := NewTraceContext("run-123")

	if root.RunID != "run-123" {
		t.Errorf("expected RunID 'run-123', got %q", root.RunID)
	}
	if root.TraceID == "" {
		t.Error("expected non-empty TraceID")
	}
	if root.SpanID == "" {
		t.Error("expected non-empty SpanID")
	}
	if root.ParentID != "" {
		t.Error("expected empty ParentID for root")
	}

	span := root.IterationSpan(7, "thinking")
	if span.TraceID != root.TraceID {
		t.Error("iteration span should inherit TraceID")
	}
	if span.ParentID != root.SpanID {
		t.Error("iteration span ParentID should be root's SpanID")
	}
	if span.SpanID == root.SpanID {
		t.Error("iteration span should have a different SpanID")
	}
	if span.Iteration != 7 || span.State != "thinking" {
		t.Errorf("expected iteration 7 state thinking, got %d %q", span.Iteration, span.State)
	}
}

func TestTraceContext_ContextPropagation(t *testing.T) {
	tc := NewTraceContext("run-2")
	ctx := ContextWithTrace(context.Background(), tc)

	extracted := TraceFromContext(ctx)
	if extracted == nil {
		t.Fatal("expected trace in context")
	}
	if extracted.RunID != "run-2" {
		t.Errorf("expected RunID 'run-2', got %q", extracted.RunID)
	}

	// nil context returns nil
	if TraceFromContext(context.Background()) != nil {
		t.Error("expected nil trace from empty context")
	}
}

func TestTraceContext_Fields(t *testing.T) {
	tc := NewTraceContext("run-3").IterationSpan(4, "paging")

	fields := tc.Fields()
	if fields["run_id"] != "run-3" {
		t.Error("expected run_id in fields")
	}
	if fields["state"] != "paging" {
		t.Error("expected state in fields")
	}
	if fields["iteration"] != uint64(4) {
		t.Error("expected iteration in fields")
	}
}

func TestLogger_WithTrace(t *testing.T) {
	logger := NewLogger("debug", "text")
	tc := NewTraceContext("run-4")
	ctx := ContextWithTrace(context.Background(), tc)

	traced := logger.WithTrace(ctx)
	if traced == nil {
		t.Fatal("expected non-nil logger")
	}

	// Should not panic with nil trace
	noTrace := logger.WithTrace(context.Background())
	if noTrace == nil {
		t.Fatal("expected non-nil logger even without trace")
	}
}
