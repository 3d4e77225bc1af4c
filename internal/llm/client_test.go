package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"curator/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.LLM{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
	}
	opts = append([]Option{
		WithRetryBackoff(time.Millisecond, 5*time.Millisecond),
		WithSleeper(func(time.Duration) {}),
	}, opts...)
	return NewClient(cfg, opts...), server
}

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func TestCompleteJSONReturnsContent(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != jsonResponseType {
			t.Errorf("response_format = %v", req.ResponseFormat)
		}
		w.Write([]byte(completionBody(`{"answer":42}`)))
	}))

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"answer":42}` {
		t.Fatalf("content = %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
}

func TestCompleteJSONRequiresPrompts(t *testing.T) {
	client := NewClient(config.LLM{APIKey: "k"})
	if _, err := client.CompleteJSON(context.Background(), "", "user"); err == nil {
		t.Fatal("expected error for empty system prompt")
	}
	if _, err := client.CompleteJSON(context.Background(), "system", "  "); err == nil {
		t.Fatal("expected error for empty user prompt")
	}
	client = NewClient(config.LLM{})
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestCompleteJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completionBody(`{"ok":true}`)))
	}))

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("content = %q", content)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestCompleteJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for http 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestCompleteJSONHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	var slept time.Duration
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1)%2 == 1 {
			w.Header().Set("Retry-After", "2")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody(`{}`)))
	})
	client, _ := newTestClient(t, handler,
		WithRetryBackoff(time.Millisecond, 5*time.Second),
		WithSleeper(func(d time.Duration) { slept = d }))

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if slept != 2*time.Second {
		t.Fatalf("slept %v, want 2s from Retry-After", slept)
	}

	// A Retry-After above the configured ceiling is clamped to it.
	client, _ = newTestClient(t, handler,
		WithRetryBackoff(time.Millisecond, time.Second),
		WithSleeper(func(d time.Duration) { slept = d }))
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if slept != time.Second {
		t.Fatalf("slept %v, want the 1s ceiling", slept)
	}
}

func TestCompleteJSONRetriesEmptyContent(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(completionBody("")))
			return
		}
		w.Write([]byte(completionBody(`{"ok":true}`)))
	}))

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("content = %q", content)
	}
}

func TestCompleteJSONStopsOnContextCancel(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.CompleteJSON(ctx, "system", "user"); err == nil {
		t.Fatal("expected error with canceled context")
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(`{"ok":true}`)))
	}))
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	client, _ = newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(`{"ok":false}`)))
	}))
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health failure for ok=false")
	}
}

func TestExtractContentFallbacks(t *testing.T) {
	var completion chatCompletionResponse
	if err := json.Unmarshal([]byte(`{"choices":[{"delta":{"content":"from delta"},"finish_reason":"stop"}]}`), &completion); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	content, finish := extractContent(completion)
	if content != "from delta" || finish != "stop" {
		t.Fatalf("content=%q finish=%q", content, finish)
	}

	var legacy chatCompletionResponse
	if err := json.Unmarshal([]byte(`{"choices":[{"text":"legacy"}]}`), &legacy); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	content, _ = extractContent(legacy)
	if content != "legacy" {
		t.Fatalf("content = %q", content)
	}
}

func TestDecodeModelJSON(t *testing.T) {
	type target struct {
		Name string `json:"name"`
	}

	cases := []struct {
		label   string
		payload string
		want    string
		wantErr bool
	}{
		{label: "plain", payload: `{"name":"a"}`, want: "a"},
		{label: "fenced", payload: "```json\n{\"name\":\"b\"}\n```", want: "b"},
		{label: "fence no language", payload: "```\n{\"name\":\"c\"}\n```", want: "c"},
		{label: "surrounding prose", payload: `Here you go: {"name":"d"} hope that helps`, want: "d"},
		{label: "empty", payload: "   ", wantErr: true},
		{label: "not json", payload: "no structure here", wantErr: true},
	}
	for _, tc := range cases {
		var out target
		err := DecodeModelJSON(tc.payload, &out)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tc.label)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tc.label, err)
			continue
		}
		if out.Name != tc.want {
			t.Errorf("%s: name = %q, want %q", tc.label, out.Name, tc.want)
		}
	}
}
