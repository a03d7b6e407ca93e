// Package state implements the agent's four-state cognitive cycle and the
// transition bookkeeping that lives in working memory: the rolling
// state-transition log and the thinking/evaluating log rings.
package state

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/memory"
)

// State is one of the agent's cognitive states.
type State string

const (
	Thinking   State = "thinking"
	Executing  State = "executing"
	Evaluating State = "evaluating"
	Paging     State = "paging"
)

// All lists every state in cycle order.
var All = []State{Thinking, Executing, Evaluating, Paging}

// Parse converts a state name to a State.
func Parse(s string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(s))) {
	case Thinking:
		return Thinking, nil
	case Executing:
		return Executing, nil
	case Evaluating:
		return Evaluating, nil
	case Paging:
		return Paging, nil
	}
	return "", mnemoErrors.New(mnemoErrors.CodeMalformedResponse,
		fmt.Sprintf("unknown state %q", s))
}

// TransitionLogKey is the canonical working-memory key of the rolling
// state-transition log.
const TransitionLogKey = "agent_log,state_transitions"

// transitionLogLimit bounds the transition log; older lines are dropped
// FIFO when appending would exceed it.
const transitionLogLimit = 64 * 1024

// DefaultRingSize is the number of thinking/evaluating log slots kept.
const DefaultRingSize = 10

// admissible is the transition table. Token-budget conditions on entering
// paging are the caller's concern; the table only encodes which edges
// exist at all.
var admissible = map[State][]State{
	Thinking:   {Executing, Paging},
	Executing:  {Evaluating, Paging},
	Evaluating: {Thinking, Paging},
	Paging:     {Thinking, Paging},
}

// Machine tracks the current state and applies transitions with their
// enter hooks. The zero value is not usable; construct with NewMachine.
type Machine struct {
	current  State
	mem      *memory.Store
	ringSize int

	thinkingKeys   []string // oldest first
	evaluatingKeys []string

	consecutivePaging int // count of paging->paging transitions in a row

	now func() time.Time
}

// NewMachine creates a machine in the initial thinking state, writing its
// logs into the given memory store.
func NewMachine(mem *memory.Store) *Machine {
	return &Machine{
		current:  Thinking,
		mem:      mem,
		ringSize: DefaultRingSize,
		now:      time.Now,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.current
}

// ConsecutivePagings returns how many paging->paging transitions have
// occurred consecutively.
func (m *Machine) ConsecutivePagings() int {
	return m.consecutivePaging
}

// Restore sets the current state without running hooks and rebuilds the
// log rings from working memory. Used when resuming from a persistence
// file.
func (m *Machine) Restore(s State) {
	m.current = s
	m.consecutivePaging = 0
	m.thinkingKeys = m.rebuildRing("thinking_log")
	m.evaluatingKeys = m.rebuildRing("evaluating_log")
}

// CanTransition reports whether the edge from -> to exists in the table.
func CanTransition(from, to State) bool {
	for _, s := range admissible[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the machine to the next state, appending a timestamped
// marker to the state-transition log. An edge absent from the table is a
// hard error, never silently demoted. A second consecutive paging->paging
// transition trips the deadlock guard.
func (m *Machine) Transition(to State, reason string, iteration uint64) error {
	if !CanTransition(m.current, to) {
		return mnemoErrors.New(mnemoErrors.CodeInvalidTransition,
			fmt.Sprintf("no transition %s -> %s", m.current, to))
	}

	if m.current == Paging && to == Paging {
		if m.consecutivePaging >= 1 {
			return mnemoErrors.New(mnemoErrors.CodeDeadlockGuard,
				"second consecutive forced paging transition").
				WithSuggestion("Raise agent.limits.hard_tokens or reduce the size of working-memory entries")
		}
		m.consecutivePaging++
	} else {
		m.consecutivePaging = 0
	}

	marker := fmt.Sprintf("[%s] iter=%d %s -> %s", m.now().UTC().Format(time.RFC3339), iteration, m.current, to)
	if reason != "" {
		marker += " (" + reason + ")"
	}
	m.appendTransitionLog(marker, iteration)

	m.current = to
	return nil
}

// ForceTransition moves the machine to the next state even when the edge
// is absent from the table. Used for error recovery, where the agent is
// sent back to evaluating regardless of where the failure happened.
func (m *Machine) ForceTransition(to State, reason string, iteration uint64) {
	if m.current == Paging && to == Paging {
		m.consecutivePaging++
	} else {
		m.consecutivePaging = 0
	}

	marker := fmt.Sprintf("[%s] iter=%d %s -> %s (forced: %s)",
		m.now().UTC().Format(time.RFC3339), iteration, m.current, to, reason)
	m.appendTransitionLog(marker, iteration)

	m.current = to
}

// Note appends a free-form marker line to the state-transition log, used
// to record action outcomes alongside the transitions themselves.
func (m *Machine) Note(text string, iteration uint64) {
	marker := fmt.Sprintf("[%s] iter=%d note: %s",
		m.now().UTC().Format(time.RFC3339), iteration, text)
	m.appendTransitionLog(marker, iteration)
}

// appendTransitionLog appends one marker line to the rolling log entry,
// trimming oldest lines FIFO to stay under the byte bound.
func (m *Machine) appendTransitionLog(marker string, iteration uint64) {
	tags, err := memory.ParseKey(TransitionLogKey)
	if err != nil {
		// The key is a compile-time constant; this cannot fail.
		panic(err)
	}

	log := marker
	if existing, ok := m.mem.WorkingLookupKey(TransitionLogKey); ok && existing.Value != "" {
		log = existing.Value + "\n" + marker
	}

	for len(log) > transitionLogLimit {
		nl := strings.IndexByte(log, '\n')
		if nl < 0 {
			log = log[len(log)-transitionLogLimit:]
			break
		}
		log = log[nl+1:]
	}

	m.mem.WorkingUpsert(tags, log, iteration)
}

// RecordThinkingLog stores the LLM-supplied thinking log in the thinking
// ring, evicting the oldest slot when the ring is full.
func (m *Machine) RecordThinkingLog(text string, iteration uint64) {
	m.thinkingKeys = m.recordRing("thinking_log", m.thinkingKeys, text, iteration)
}

// RecordEvaluatingLog stores the LLM-supplied evaluation log in the
// evaluating ring.
func (m *Machine) RecordEvaluatingLog(text string, iteration uint64) {
	m.evaluatingKeys = m.recordRing("evaluating_log", m.evaluatingKeys, text, iteration)
}

func (m *Machine) recordRing(kind string, ring []string, text string, iteration uint64) []string {
	tags, err := memory.NormalizeTags(fmt.Sprintf("%s,iteration_%d", kind, iteration))
	if err != nil {
		panic(err)
	}
	key := tags.Key()

	m.mem.WorkingUpsert(tags, text, iteration)

	// Re-writing an existing slot must not duplicate it in the ring.
	for _, k := range ring {
		if k == key {
			return ring
		}
	}

	ring = append(ring, key)
	for len(ring) > m.ringSize {
		m.mem.WorkingRemoveKey(ring[0])
		ring = ring[1:]
	}
	return ring
}

// rebuildRing reconstructs a ring's key list from working memory after a
// restore, oldest iteration first.
func (m *Machine) rebuildRing(kind string) []string {
	type slot struct {
		key  string
		iter uint64
	}
	var slots []slot

	for _, e := range m.mem.WorkingEntries() {
		if !e.Tags.Contains(kind) {
			continue
		}
		for _, tag := range e.Tags {
			if n, ok := strings.CutPrefix(tag, "iteration_"); ok {
				if iter, err := strconv.ParseUint(n, 10, 64); err == nil {
					slots = append(slots, slot{key: e.Key(), iter: iter})
				}
				break
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].iter < slots[j].iter })

	keys := make([]string, 0, len(slots))
	for _, s := range slots {
		keys = append(keys, s.key)
	}
	return keys
}
