package lmstudio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/provider"
)

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
	})
	return string(b)
}

func TestComplete(t *testing.T) {
	var gotReq wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(completionBody("<agent><next_state>thinking</next_state></agent>")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", "")
	resp, err := c.Complete(context.Background(), &provider.CompletionRequest{
		Messages:    []provider.Message{{Role: "user", Content: "prompt"}},
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        40,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "<agent><next_state>thinking</next_state></agent>" {
		t.Errorf("content: got %q", resp.Content)
	}
	if resp.Usage.PromptTokens != 10 || resp.Usage.CompletionTokens != 5 {
		t.Errorf("usage: got %+v", resp.Usage)
	}

	if gotReq.Model != "test-model" {
		t.Errorf("model: got %q", gotReq.Model)
	}
	if gotReq.MaxTokens != -1 {
		t.Errorf("max_tokens should default to -1, got %d", gotReq.MaxTokens)
	}
	if gotReq.Stream {
		t.Error("stream must be false")
	}
	if gotReq.Temperature != 0.7 || gotReq.TopP != 0.9 || gotReq.TopK != 40 {
		t.Errorf("sampling params: got %+v", gotReq)
	}
}

func TestCompleteBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("authorization: got %q", auth)
		}
		w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", "secret")
	if _, err := c.Complete(context.Background(), &provider.CompletionRequest{}); err != nil {
		t.Fatal(err)
	}
}

func TestCompleteStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		code   string
	}{
		{http.StatusTooManyRequests, mnemoErrors.CodeLLMTransport},
		{http.StatusInternalServerError, mnemoErrors.CodeLLMTransport},
		{http.StatusServiceUnavailable, mnemoErrors.CodeLLMTransport},
		{529, mnemoErrors.CodeLLMTransport},
		{http.StatusBadRequest, mnemoErrors.CodeLLMApplication},
		{http.StatusNotFound, mnemoErrors.CodeLLMApplication},
		{http.StatusUnauthorized, mnemoErrors.CodeLLMApplication},
	}
	for _, tc := range cases {
		status := tc.status
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte("nope"))
		}))
		c := NewClient(srv.URL, "m", "")
		_, err := c.Complete(context.Background(), &provider.CompletionRequest{})
		srv.Close()
		if mnemoErrors.AsCode(err) != tc.code {
			t.Errorf("status %d: expected %s, got %v", tc.status, tc.code, err)
		}
	}
}

func TestCompleteConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/v1/chat/completions", "m", "")
	_, err := c.Complete(context.Background(), &provider.CompletionRequest{})
	if mnemoErrors.AsCode(err) != mnemoErrors.CodeLLMTransport {
		t.Fatalf("expected LLM_TRANSPORT, got %v", err)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", "")
	_, err := c.Complete(context.Background(), &provider.CompletionRequest{})
	if mnemoErrors.AsCode(err) != mnemoErrors.CodeLLMApplication {
		t.Fatalf("expected LLM_APPLICATION, got %v", err)
	}
}

func TestCompleteEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model is not loaded"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", "")
	_, err := c.Complete(context.Background(), &provider.CompletionRequest{})
	if mnemoErrors.AsCode(err) != mnemoErrors.CodeLLMApplication {
		t.Fatalf("expected LLM_APPLICATION, got %v", err)
	}
}
