package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type chatRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, reply string, captured *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestGenerateReaction(t *testing.T) {
	var req chatRequest
	srv := completionServer(t, "  That sounds like a great project!  ", &req)
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	got, err := c.GenerateReaction(context.Background(), "I built a key-value store")
	if err != nil {
		t.Fatalf("GenerateReaction: %v", err)
	}
	if got != "That sounds like a great project!" {
		t.Fatalf("got %q", got)
	}
	if req.MaxTokens != 30 {
		t.Fatalf("max_tokens = %d, want 30", req.MaxTokens)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[1].Content, "I built a key-value store") {
		t.Fatalf("answer missing from user message: %q", req.Messages[1].Content)
	}
}

func TestReviewCode(t *testing.T) {
	var req chatRequest
	srv := completionServer(t, "Solid approach, O(n) time.", &req)
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	got, err := c.ReviewCode(context.Background(), "func sum(xs []int) int { ... }")
	if err != nil {
		t.Fatalf("ReviewCode: %v", err)
	}
	if got != "Solid approach, O(n) time." {
		t.Fatalf("got %q", got)
	}
	if req.MaxTokens != 400 {
		t.Fatalf("max_tokens = %d, want 400", req.MaxTokens)
	}
	if !strings.Contains(req.Messages[1].Content, "func sum") {
		t.Fatalf("code missing from user message")
	}
}

func TestEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.GenerateReaction(context.Background(), "anything"); err == nil {
		t.Fatalf("expected error on empty choices")
	}
}
