// Package lmstudio implements the Provider interface against an
// OpenAI-compatible chat-completions endpoint such as LM Studio's local
// server.
package lmstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/provider"
)

const (
	defaultEndpoint = "http://localhost:1234/v1/chat/completions"
	defaultModel    = "local-model"
)

// Client implements the OpenAI-compatible chat completion provider.
type Client struct {
	endpoint   string
	model      string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given endpoint. token may be empty;
// when set it is passed verbatim as a bearer token.
func NewClient(endpoint, model, token string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if model == "" {
		model = defaultModel
	}

	return &Client{
		endpoint: endpoint,
		model:    model,
		token:    token,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return "lmstudio"
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	TopK        int           `json:"top_k"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one chat completion request and extracts the reply text
// from choices[0].message.content.
func (c *Client) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeLLMTransport, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeLLMTransport, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	return parseResponse(respBody)
}

func (c *Client) buildRequest(req *provider.CompletionRequest) wireRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = -1
	}

	messages := make([]wireMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, wireMessage{Role: msg.Role, Content: msg.Content})
	}

	return wireRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		MaxTokens:   maxTokens,
		Stream:      false,
	}
}

// statusError classifies a non-200 status: 429, 529 and 5xx are transient
// transport errors the retry layer may retry; every other 4xx is an
// application error that retrying cannot fix.
func statusError(status int, body []byte) error {
	msg := fmt.Sprintf("API error (status %d): %s", status, string(body))
	if status == http.StatusTooManyRequests || status == 529 || status >= 500 {
		return mnemoErrors.New(mnemoErrors.CodeLLMTransport, msg)
	}
	return mnemoErrors.New(mnemoErrors.CodeLLMApplication, msg).
		WithSuggestion("check the configured model name and endpoint path")
}

func parseResponse(body []byte) (*provider.Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeLLMApplication, "failed to parse response body", err)
	}
	if wire.Error.Message != "" {
		return nil, mnemoErrors.New(mnemoErrors.CodeLLMApplication,
			fmt.Sprintf("endpoint error: %s", wire.Error.Message))
	}
	if len(wire.Choices) == 0 {
		return nil, mnemoErrors.New(mnemoErrors.CodeLLMApplication, "response contained no choices")
	}

	return &provider.Response{
		Content: wire.Choices[0].Message.Content,
		Usage: provider.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
		},
	}, nil
}
