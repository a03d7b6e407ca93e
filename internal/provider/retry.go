package provider

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// RetryConfig controls retry behavior.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64

	// OnRetry, if set, is called once for each retry attempt scheduled.
	OnRetry func()
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		JitterFraction: 0.2,
	}
}

// RetryProvider wraps a Provider with automatic retry for transient errors.
// Only transport-class errors (network failures, timeouts, 429/5xx/529) are
// retried; application-class errors (other 4xx) fail immediately.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// NewRetryProvider creates a RetryProvider wrapping inner.
func NewRetryProvider(inner Provider, cfg RetryConfig) *RetryProvider {
	return &RetryProvider{inner: inner, config: cfg}
}

func (r *RetryProvider) Name() string {
	return r.inner.Name()
}

func (r *RetryProvider) Complete(ctx context.Context, req *CompletionRequest) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !r.isRetryable(err) {
			return nil, err
		}

		if attempt == r.config.MaxRetries {
			break
		}

		if r.config.OnRetry != nil {
			r.config.OnRetry()
		}

		delay := r.backoff(attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, mnemoErrors.Wrap(mnemoErrors.CodeLLMTransport,
		fmt.Sprintf("max retries (%d) exceeded", r.config.MaxRetries), lastErr)
}

// isRetryable determines whether an error should be retried.
func (r *RetryProvider) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are never retryable.
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}

	return mnemoErrors.AsCode(err) == mnemoErrors.CodeLLMTransport
}

// backoff calculates the delay for a given attempt using exponential backoff with jitter.
func (r *RetryProvider) backoff(attempt int) time.Duration {
	base := float64(r.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(r.config.MaxBackoff) {
		base = float64(r.config.MaxBackoff)
	}

	jitter := base * r.config.JitterFraction * (rand.Float64()*2 - 1) // ±jitter
	delay := time.Duration(base + jitter)
	if delay < 0 {
		delay = 0
	}
	return delay
}
