package event

import (
	"fmt"
	"sync"
)

// Bus fans lifecycle events out to registered hooks.
//
// The orchestrator loop is single-threaded and emits events one at a
// time (run.started, iteration.*, state.entered, action.dispatched,
// paging.applied, memory.persisted, run.completed/failed), so the bus
// never sees concurrent Emit calls in practice. The mutex exists for
// Register and SetEnabled, which the CLI may call while a run is live.
//
// Hooks come in two flavors. Blocking hooks gate the loop: they run
// inline in registration order and the first failure aborts the emit
// with an error the orchestrator surfaces. Non-blocking hooks observe
// without slowing an iteration: each runs in its own goroutine and a
// failure or panic is only logged. A nil *Bus is valid and drops
// every call, which is how hook-less configurations run.
type Bus struct {
	mu      sync.RWMutex
	hooks   []Hook
	enabled bool
	logger  Logger
}

// Logger is the narrow logging surface the bus needs. Keeping it local
// avoids an import cycle with telemetry, whose Logger satisfies it.
type Logger interface {
	Warn(msg string, keyvals ...interface{})
}

// NewBus returns an enabled bus with no hooks. A nil logger silences
// non-blocking failure reports.
func NewBus(logger Logger) *Bus {
	return &Bus{enabled: true, logger: logger}
}

// Register appends a hook. Registration order is dispatch order for
// blocking hooks.
func (b *Bus) Register(h Hook) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.hooks = append(b.hooks, h)
	b.mu.Unlock()
}

// Len reports the number of registered hooks.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.hooks)
}

// SetEnabled toggles dispatch. Events emitted while disabled are
// dropped, not queued.
func (b *Bus) SetEnabled(enabled bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

// Emit delivers ev to every hook whose filter matches its type.
// Blocking hooks run first, inline and in order; the first error stops
// the emit and is returned. Matching non-blocking hooks are then
// dispatched on goroutines and always succeed from the caller's view.
func (b *Bus) Emit(ev Event) error {
	hooks, ok := b.snapshot()
	if !ok {
		return nil
	}

	var async []Hook
	for _, h := range hooks {
		if !h.Matches(ev.Type) {
			continue
		}
		if !h.IsBlocking() {
			async = append(async, h)
			continue
		}
		if err := h.Handle(ev); err != nil {
			return fmt.Errorf("blocking hook %s failed: %w", h.Name(), err)
		}
	}
	for _, h := range async {
		go b.dispatchAsync(h, ev)
	}
	return nil
}

// snapshot copies the hook list so Emit never holds the lock while a
// hook runs. The second return is false when dispatch should be
// skipped entirely.
func (b *Bus) snapshot() ([]Hook, bool) {
	if b == nil {
		return nil, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.enabled || len(b.hooks) == 0 {
		return nil, false
	}
	hooks := make([]Hook, len(b.hooks))
	copy(hooks, b.hooks)
	return hooks, true
}

// dispatchAsync runs one non-blocking hook, containing failures and
// panics so a misbehaving webhook or shell command cannot take down
// the run it is observing.
func (b *Bus) dispatchAsync(h Hook, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.warn("Non-blocking hook panicked", "hook", h.Name(), "event", string(ev.Type), "panic", r)
		}
	}()
	if err := h.Handle(ev); err != nil {
		b.warn("Non-blocking hook failed", "hook", h.Name(), "event", string(ev.Type), "error", err)
	}
}

func (b *Bus) warn(msg string, keyvals ...interface{}) {
	if b.logger != nil {
		b.logger.Warn(msg, keyvals...)
	}
}
