package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type traceKey struct{}

// TraceContext carries correlation IDs through one agent run.
type TraceContext struct {
	RunID     string `json:"run_id"`
	TraceID   string `json:"trace_id"`
	SpanID    string `json:"span_id"`
	ParentID  string `json:"parent_id,omitempty"`
	Iteration uint64 `json:"iteration,omitempty"`
	State     string `json:"state,omitempty"`
}

// NewTraceContext creates a root trace context with a fresh TraceID and SpanID.
func NewTraceContext(runID string) *TraceContext {
	return &TraceContext{
		RunID:   runID,
		TraceID: randomID(),
		SpanID:  randomID(),
	}
}

// IterationSpan creates a child span for one orchestrator iteration.
func (tc *TraceContext) IterationSpan(iteration uint64, state string) *TraceContext {
	return &TraceContext{
		RunID:     tc.RunID,
		TraceID:   tc.TraceID,
		SpanID:    randomID(),
		ParentID:  tc.SpanID,
		Iteration: iteration,
		State:     state,
	}
}

// Fields returns key-value pairs suitable for structured logging.
func (tc *TraceContext) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"run_id":   tc.RunID,
		"trace_id": tc.TraceID,
		"span_id":  tc.SpanID,
	}
	if tc.ParentID != "" {
		fields["parent_id"] = tc.ParentID
	}
	if tc.State != "" {
		fields["state"] = tc.State
		fields["iteration"] = tc.Iteration
	}
	return fields
}

// ContextWithTrace stores a TraceContext in the context.
func ContextWithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, tc)
}

// TraceFromContext extracts a TraceContext from the context, or nil.
func TraceFromContext(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceKey{}).(*TraceContext)
	return tc
}

// WithTrace returns a logger enriched with trace fields from the context.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	tc := TraceFromContext(ctx)
	if tc == nil {
		return l
	}
	return l.WithFields(tc.Fields())
}

func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
