package provider

import (
	"context"
	"testing"
	"time"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// testProvider is a minimal mock for retry tests.
type testProvider struct {
	responses []*Response
	errors    []error
	calls     int
}

func (p *testProvider) Name() string { return "test" }

func (p *testProvider) Complete(ctx context.Context, req *CompletionRequest) (*Response, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.errors) && p.errors[idx] != nil {
		return nil, p.errors[idx]
	}
	if idx < len(p.responses) {
		return p.responses[idx], nil
	}
	return &Response{Content: "default"}, nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		JitterFraction: 0,
	}
}

func transportErr(msg string) error {
	return mnemoErrors.New(mnemoErrors.CodeLLMTransport, msg)
}

func applicationErr(msg string) error {
	return mnemoErrors.New(mnemoErrors.CodeLLMApplication, msg)
}

func TestRetryProvider_SuccessFirstTry(t *testing.T) {
	inner := &testProvider{
		responses: []*Response{{Content: "ok"}},
	}
	rp := NewRetryProvider(inner, fastRetryConfig())

	resp, err := rp.Complete(context.Background(), &CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected 'ok', got %q", resp.Content)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetryProvider_RetryOnTransportError(t *testing.T) {
	inner := &testProvider{
		errors: []error{
			transportErr("API error (status 500): internal server error"),
			transportErr("API error (status 500): internal server error"),
			nil,
		},
		responses: []*Response{nil, nil, {Content: "recovered"}},
	}
	rp := NewRetryProvider(inner, fastRetryConfig())

	resp, err := rp.Complete(context.Background(), &CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("expected 'recovered', got %q", resp.Content)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryProvider_NoRetryOnApplicationError(t *testing.T) {
	inner := &testProvider{
		errors: []error{
			applicationErr("API error (status 404): model not found"),
		},
	}
	rp := NewRetryProvider(inner, fastRetryConfig())

	_, err := rp.Complete(context.Background(), &CompletionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if mnemoErrors.AsCode(err) != mnemoErrors.CodeLLMApplication {
		t.Errorf("expected LLM_APPLICATION, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("application errors must not be retried, got %d calls", inner.calls)
	}
}

func TestRetryProvider_ExhaustsRetries(t *testing.T) {
	inner := &testProvider{
		errors: []error{
			transportErr("API error (status 503): overloaded"),
			transportErr("API error (status 503): overloaded"),
			transportErr("API error (status 503): overloaded"),
			transportErr("API error (status 503): overloaded"),
		},
	}
	rp := NewRetryProvider(inner, fastRetryConfig())

	_, err := rp.Complete(context.Background(), &CompletionRequest{})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if mnemoErrors.AsCode(err) != mnemoErrors.CodeLLMTransport {
		t.Errorf("expected LLM_TRANSPORT, got %v", err)
	}
	if inner.calls != 4 {
		t.Errorf("expected 4 calls (1 + 3 retries), got %d", inner.calls)
	}
}

func TestRetryProvider_ContextCancelStopsRetries(t *testing.T) {
	inner := &testProvider{
		errors: []error{
			transportErr("API error (status 500): boom"),
			transportErr("API error (status 500): boom"),
		},
	}
	cfg := fastRetryConfig()
	cfg.InitialBackoff = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	rp := NewRetryProvider(inner, cfg)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := rp.Complete(ctx, &CompletionRequest{})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call before cancel, got %d", inner.calls)
	}
}

func TestRetryProvider_NoRetryOnContextError(t *testing.T) {
	inner := &testProvider{
		errors: []error{context.DeadlineExceeded},
	}
	rp := NewRetryProvider(inner, fastRetryConfig())

	_, err := rp.Complete(context.Background(), &CompletionRequest{})
	if err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetryProvider_OnRetryCallback(t *testing.T) {
	inner := &testProvider{
		errors: []error{transportErr("503"), transportErr("503"), nil},
	}
	cfg := fastRetryConfig()
	retries := 0
	cfg.OnRetry = func() { retries++ }
	rp := NewRetryProvider(inner, cfg)

	if _, err := rp.Complete(context.Background(), &CompletionRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retries != 2 {
		t.Errorf("expected 2 retry notifications, got %d", retries)
	}
}

func TestRetryProvider_OnRetryNotCalledOnApplicationError(t *testing.T) {
	inner := &testProvider{
		errors: []error{applicationErr("400")},
	}
	cfg := fastRetryConfig()
	retries := 0
	cfg.OnRetry = func() { retries++ }
	rp := NewRetryProvider(inner, cfg)

	if _, err := rp.Complete(context.Background(), &CompletionRequest{}); err == nil {
		t.Fatal("expected error")
	}
	if retries != 0 {
		t.Errorf("expected 0 retry notifications, got %d", retries)
	}
}
