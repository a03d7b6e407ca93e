package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/provider"
	"github.com/mnemo-oss/mnemo/internal/telemetry"
)

// MockProvider implements provider.Provider for testing.
type MockProvider struct {
	mu         sync.Mutex
	Responses  []*provider.Response // queued responses, consumed in order
	Errors     []error              // per-call errors; nil slots succeed
	Calls      []*provider.CompletionRequest
	Delay      time.Duration
	idx        int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.Response, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	idx := m.idx
	m.idx++

	if idx < len(m.Errors) && m.Errors[idx] != nil {
		return nil, m.Errors[idx]
	}

	if idx >= len(m.Responses) {
		return &provider.Response{
			Content: AgentReply("thinking", ""),
		}, nil
	}

	return m.Responses[idx], nil
}

// CallCount returns the number of Complete calls made (thread-safe).
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// AgentReply builds a minimal well-formed reply with the given next state
// and optional inner elements (actions, logs, paging blocks).
func AgentReply(nextState string, inner string) string {
	var b strings.Builder
	b.WriteString("<agent>\n")
	fmt.Fprintf(&b, "  <next_state>%s</next_state>\n", nextState)
	if inner != "" {
		b.WriteString(inner + "\n")
	}
	b.WriteString("</agent>")
	return b.String()
}

// ActionXML builds an <action> block.
func ActionXML(actionType, tags, value string) string {
	var b strings.Builder
	b.WriteString("  <action>\n")
	fmt.Fprintf(&b, "    <type>%s</type>\n", actionType)
	if tags != "" {
		fmt.Fprintf(&b, "    <tags>%s</tags>\n", tags)
	}
	if value != "" {
		fmt.Fprintf(&b, "    <value>%s</value>\n", value)
	}
	b.WriteString("  </action>")
	return b.String()
}

// PagingXML builds a <paging> block from directive strings.
func PagingXML(ops ...string) string {
	var b strings.Builder
	b.WriteString("  <paging>\n")
	for _, op := range ops {
		fmt.Fprintf(&b, "    <op>%s</op>\n", op)
	}
	b.WriteString("  </paging>")
	return b.String()
}

// TestLogger returns a logger suitable for tests (verbose, no file output).
func TestLogger() *telemetry.Logger {
	return telemetry.NewLogger("debug", "text")
}

// TestConfig returns a minimal config for testing. The persistence file
// and history database live under the test's temp directory.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		LLM: config.LLMConfig{
			Endpoint:    "http://localhost:1234/v1/chat/completions",
			Model:       "mock-model",
			Temperature: 0.7,
			TopP:        0.9,
			TopK:        40,
			MaxTokens:   -1,
			MaxRetries:  1,
		},
		Agent: config.AgentConfig{
			Role: config.RoleConfig{
				Identity: "a test agent",
				Purpose:  "exercise the runtime",
			},
			Limits: config.LimitsConfig{
				SoftTokens:    4096,
				HardTokens:    8192,
				MaxIterations: 10,
			},
			Memory: config.MemoryConfig{
				PersistencePath: filepath.Join(dir, "memory.json"),
			},
			Prompts: map[string]string{
				"thinking": "think",
			},
		},
		Logging: config.LoggingConfig{Level: "debug", Format: "text"},
		History: config.HistoryConfig{Driver: "none"},
	}
}
