package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects agent-loop metrics.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	Iterations        int64
	LLMRequests       int64
	LLMRetries        int64
	ActionsDispatched int64
	ActionsFailed     int64
	PagingDirectives  int64
	ForcedPagings     int64
	SnapshotWrites    int64

	// Histograms (simplified)
	llmLatencies       []time.Duration
	iterationDurations []time.Duration

	// Exporter (optional)
	exporter MetricsExporter
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		llmLatencies:       make([]time.Duration, 0, 256),
		iterationDurations: make([]time.Duration, 0, 256),
	}
}

// IncIterations increments the iteration counter.
func (m *Metrics) IncIterations() {
	atomic.AddInt64(&m.Iterations, 1)
}

// IncLLMRequests increments the LLM request counter.
func (m *Metrics) IncLLMRequests() {
	atomic.AddInt64(&m.LLMRequests, 1)
}

// IncLLMRetries increments the LLM retry counter.
func (m *Metrics) IncLLMRetries() {
	atomic.AddInt64(&m.LLMRetries, 1)
}

// IncActionsDispatched increments the dispatched action counter.
func (m *Metrics) IncActionsDispatched() {
	atomic.AddInt64(&m.ActionsDispatched, 1)
}

// IncActionsFailed increments the failed action counter.
func (m *Metrics) IncActionsFailed() {
	atomic.AddInt64(&m.ActionsFailed, 1)
}

// AddPagingDirectives adds to the applied paging directive counter.
func (m *Metrics) AddPagingDirectives(n int) {
	atomic.AddInt64(&m.PagingDirectives, int64(n))
}

// IncForcedPagings increments the forced-paging counter.
func (m *Metrics) IncForcedPagings() {
	atomic.AddInt64(&m.ForcedPagings, 1)
}

// IncSnapshotWrites increments the snapshot write counter.
func (m *Metrics) IncSnapshotWrites() {
	atomic.AddInt64(&m.SnapshotWrites, 1)
}

// RecordLLMLatency records a single LLM round-trip duration.
func (m *Metrics) RecordLLMLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llmLatencies = append(m.llmLatencies, d)
}

// RecordIterationDuration records a full iteration duration.
func (m *Metrics) RecordIterationDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.iterationDurations = append(m.iterationDurations, d)
}

// GetSummary returns a summary of collected metrics.
func (m *Metrics) GetSummary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := map[string]interface{}{
		"iterations":         atomic.LoadInt64(&m.Iterations),
		"llm_requests":       atomic.LoadInt64(&m.LLMRequests),
		"llm_retries":        atomic.LoadInt64(&m.LLMRetries),
		"actions_dispatched": atomic.LoadInt64(&m.ActionsDispatched),
		"actions_failed":     atomic.LoadInt64(&m.ActionsFailed),
		"paging_directives":  atomic.LoadInt64(&m.PagingDirectives),
		"forced_pagings":     atomic.LoadInt64(&m.ForcedPagings),
		"snapshot_writes":    atomic.LoadInt64(&m.SnapshotWrites),
	}

	if len(m.llmLatencies) > 0 {
		var total time.Duration
		for _, d := range m.llmLatencies {
			total += d
		}
		summary["avg_llm_latency_ms"] = total.Milliseconds() / int64(len(m.llmLatencies))
	}

	if len(m.iterationDurations) > 0 {
		var total time.Duration
		for _, d := range m.iterationDurations {
			total += d
		}
		summary["avg_iteration_ms"] = total.Milliseconds() / int64(len(m.iterationDurations))
	}

	return summary
}

// Summary formats the counters as a single human-readable line, used by
// the CLI after a run finishes.
func (m *Metrics) Summary() string {
	s := m.GetSummary()
	line := fmt.Sprintf("iterations=%d llm_requests=%d actions=%d/%d failed paging=%d forced=%d snapshots=%d",
		s["iterations"], s["llm_requests"],
		s["actions_dispatched"], s["actions_failed"],
		s["paging_directives"], s["forced_pagings"], s["snapshot_writes"],
	)
	if avg, ok := s["avg_iteration_ms"]; ok {
		line += fmt.Sprintf(" avg_iteration_ms=%d", avg)
	}
	return line
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	atomic.StoreInt64(&m.Iterations, 0)
	atomic.StoreInt64(&m.LLMRequests, 0)
	atomic.StoreInt64(&m.LLMRetries, 0)
	atomic.StoreInt64(&m.ActionsDispatched, 0)
	atomic.StoreInt64(&m.ActionsFailed, 0)
	atomic.StoreInt64(&m.PagingDirectives, 0)
	atomic.StoreInt64(&m.ForcedPagings, 0)
	atomic.StoreInt64(&m.SnapshotWrites, 0)

	m.llmLatencies = m.llmLatencies[:0]
	m.iterationDurations = m.iterationDurations[:0]
}

// SetExporter attaches a metrics exporter.
func (m *Metrics) SetExporter(e MetricsExporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exporter = e
}

// Flush exports the current metrics snapshot with the given event label.
func (m *Metrics) Flush(event string, labels map[string]string) {
	m.mu.RLock()
	exporter := m.exporter
	m.mu.RUnlock()

	if exporter == nil {
		return
	}

	snapshot := MetricsSnapshot{
		Timestamp: time.Now(),
		Event:     event,
		Metrics:   m.GetSummary(),
		Labels:    labels,
	}
	// Best-effort export.
	_ = exporter.Export(snapshot)
}
