package testutil

import (
	"testing"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/event"
	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/mnemo-oss/mnemo/internal/provider"
	"github.com/mnemo-oss/mnemo/internal/telemetry"
)

// TestHarness provides everything needed for orchestrator tests:
// config, memory, events, mock provider, and assertion helpers.
type TestHarness struct {
	T        *testing.T
	Config   *config.Config
	Memory   *memory.Store
	EventBus *event.Bus
	Logger   *telemetry.Logger
	Provider *MockProvider
	Events   []event.Event // captured events
}

// NewTestHarness creates a test harness with default configuration.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	logger := TestLogger()
	bus := event.NewBus(logger)

	h := &TestHarness{
		T:        t,
		Config:   TestConfig(t),
		Memory:   memory.NewStore(),
		EventBus: bus,
		Logger:   logger,
		Provider: &MockProvider{},
		Events:   make([]event.Event, 0),
	}

	// Capture events via a hook
	bus.Register(&eventCapture{harness: h})

	return h
}

// SetResponses queues mock provider responses.
func (h *TestHarness) SetResponses(responses ...*provider.Response) {
	h.Provider.Responses = responses
}

// SetReplies queues mock provider responses from raw reply strings.
func (h *TestHarness) SetReplies(replies ...string) {
	responses := make([]*provider.Response, 0, len(replies))
	for _, r := range replies {
		responses = append(responses, &provider.Response{Content: r})
	}
	h.Provider.Responses = responses
}

// AssertEventEmitted checks that an event with the given type was emitted.
func (h *TestHarness) AssertEventEmitted(eventType event.EventType) {
	h.T.Helper()
	for _, e := range h.Events {
		if e.Type == eventType {
			return
		}
	}
	h.T.Errorf("expected event %q to be emitted", eventType)
}

// AssertNoEvent checks that an event type was NOT emitted.
func (h *TestHarness) AssertNoEvent(eventType event.EventType) {
	h.T.Helper()
	for _, e := range h.Events {
		if e.Type == eventType {
			h.T.Errorf("expected event %q NOT to be emitted, but it was", eventType)
			return
		}
	}
}

// EventCount returns the number of events with the given type.
func (h *TestHarness) EventCount(eventType event.EventType) int {
	count := 0
	for _, e := range h.Events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// eventCapture is a blocking hook that records events synchronously.
type eventCapture struct {
	harness *TestHarness
}

func (c *eventCapture) Name() string                 { return "test-capture" }
func (c *eventCapture) Matches(event.EventType) bool { return true } // match all
func (c *eventCapture) IsBlocking() bool             { return true } // sync for tests

func (c *eventCapture) Handle(ev event.Event) error {
	c.harness.Events = append(c.harness.Events, ev)
	return nil
}
