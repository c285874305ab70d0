package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionBody(content string) string {
	resp := map[string]any{
		"id":    "chatcmpl-1",
		"model": "gpt-4",
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestClientRespond(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("你好！")))
	}))
	defer srv.Close()

	c, err := NewClient(WithBaseURL(srv.URL), WithAPIKey("test-key"), WithModel("gpt-4"))
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}

	reply, err := c.Respond(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if reply != "你好！" {
		t.Errorf("unexpected reply %q", reply)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
}

func TestClientMemoryWindow(t *testing.T) {
	var lastMessages []message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []message `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		lastMessages = req.Messages
		w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	c, err := NewClient(WithBaseURL(srv.URL), WithModel("gpt-4"))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if _, err := c.Respond(context.Background(), "turn"); err != nil {
			t.Fatal(err)
		}
	}

	// system + capped window + current user input
	want := 1 + memoryWindow + 1
	if len(lastMessages) != want {
		t.Errorf("expected %d messages after window cap, got %d", want, len(lastMessages))
	}
	if lastMessages[0].Role != "system" {
		t.Error("first message must be the system prompt")
	}

	c.Reset()
	if _, err := c.Respond(context.Background(), "fresh"); err != nil {
		t.Fatal(err)
	}
	if len(lastMessages) != 2 {
		t.Errorf("expected system + user after reset, got %d messages", len(lastMessages))
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completionBody("recovered")))
	}))
	defer srv.Close()

	c, err := NewClient(
		WithBaseURL(srv.URL),
		WithModel("gpt-4"),
		WithRetry(2, time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := c.Respond(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Respond() error after retries: %v", err)
	}
	if reply != "recovered" {
		t.Errorf("unexpected reply %q", reply)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","code":"rate_limit"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(WithBaseURL(srv.URL), WithModel("gpt-4"), WithRetry(1, time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Respond(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsRateLimited() || !apiErr.IsRetryable() {
		t.Errorf("expected retryable rate-limit error, got %+v", apiErr)
	}
}

func TestClientValidation(t *testing.T) {
	if _, err := NewClient(WithBaseURL(""), WithModel("gpt-4")); !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("expected ErrNoBaseURL, got %v", err)
	}
	if _, err := NewClient(WithBaseURL("http://localhost"), WithModel("")); !errors.Is(err, ErrNoModel) {
		t.Errorf("expected ErrNoModel, got %v", err)
	}
}
