// Package provider abstracts the chat-completion endpoint the agent
// talks to. One request per iteration, no streaming.
package provider

import (
	"context"
)

// Message represents a conversation message
type Message struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// CompletionRequest represents a completion request
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	TopK        int       `json:"top_k"`
	MaxTokens   int       `json:"max_tokens"` // -1 = model default
}

// Usage tracks token usage
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response represents a provider response
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a completion request
	Complete(ctx context.Context, req *CompletionRequest) (*Response, error)
}
