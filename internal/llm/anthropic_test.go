package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultAnthropicConfig("sk-test")
	cfg.BaseURL = srv.URL
	cfg.Timeout = 5 * time.Second
	return NewAnthropicClientWithConfig(cfg)
}

func TestAnthropicCompleteWithSystem(t *testing.T) {
	var gotReq anthropicRequest
	client := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("anthropic-version header missing")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{
				{Type: "text", Text: "records := "},
				{Type: "text", Text: "here"},
			},
		})
	})

	got, err := client.CompleteWithSystem(context.Background(), "system rules", "list my bases")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if got != "records := here" {
		t.Fatalf("unexpected completion: %q", got)
	}
	if gotReq.System != "system rules" {
		t.Fatalf("system prompt not sent: %+v", gotReq)
	}
	if gotReq.Temperature != 0 {
		t.Fatalf("temperature = %v, want 0", gotReq.Temperature)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestAnthropicRetriesOn429(t *testing.T) {
	var calls int32
	client := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "ok"}},
		})
	})

	got, err := client.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected completion: %q", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestAnthropicFailsFastOnBadRequest(t *testing.T) {
	var calls int32
	client := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad"}}`))
	})

	_, err := client.Complete(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("400 should not be retried, calls = %d", calls)
	}
}

func TestAnthropicAPIErrorBody(t *testing.T) {
	client := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"type": "overloaded_error", "message": "overloaded"},
		})
	})

	_, err := client.Complete(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestAnthropicRequiresAPIKey(t *testing.T) {
	client := NewAnthropicClient("")
	if _, err := client.Complete(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestRenderHistory(t *testing.T) {
	if got := RenderHistory(nil, "list bases"); got != "list bases" {
		t.Fatalf("empty history: %q", got)
	}

	history := []Message{
		{Role: "user", Content: "show tables"},
		{Role: "assistant", Content: "found 3 tables"},
		{Role: "tool", Content: "ignored"},
	}
	got := RenderHistory(history, "now count records")
	want := "User: show tables\n\nAssistant: found 3 tables\n\nUser: now count records"
	if got != want {
		t.Fatalf("RenderHistory = %q, want %q", got, want)
	}
}
