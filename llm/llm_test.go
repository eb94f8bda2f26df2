package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func completionBody(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return b
}

func TestComplete(t *testing.T) {
	// WHAT: Complete posts messages and returns the first choice's content.
	// WHY: Core completion path for every model-backed stage.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header: got %q", got)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test-model" {
			t.Errorf("model: got %q", req.Model)
		}
		w.Write(completionBody("hello back"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	out, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "hello back" {
		t.Fatalf("content: got %q", out)
	}
}

func TestComplete_RetriesTransient(t *testing.T) {
	// WHAT: 503 answers are retried, success on a later attempt wins.
	// WHY: Model endpoints rate-limit; one transient failure must not fail a run.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(completionBody("ok"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 2})
	out, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "ok" {
		t.Fatalf("content: got %q", out)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls: got %d, want 2", calls.Load())
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	// WHAT: A response without choices is ErrEmptyCompletion.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), nil, Options{})
	if err != ErrEmptyCompletion {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"bare array", `[{"a":1},{"b":2}]`, `[{"a":1},{"b":2}]`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Here you go: {"a":1} hope it helps`, `{"a":1}`},
		{"braces in strings", `{"a":"}{"}`, `{"a":"}{"}`},
		{"array before object", `[1,2] {"a":1}`, `[1,2]`},
		{"no json", `sorry, I cannot do that`, ""},
		{"unterminated", `{"a":1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeObject(t *testing.T) {
	// WHAT: DecodeObject tolerates fences and prose, errors on schema-free text.
	// WHY: Malformed model output must surface as a decode error, not a panic.
	var v struct {
		Intent string `json:"intent"`
	}
	raw := "Sure!\n```json\n{\"intent\": \"compare\"}\n```"
	if err := DecodeObject(raw, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Intent != "compare" {
		t.Fatalf("intent: got %q", v.Intent)
	}

	if err := DecodeObject("no json here", &v); err == nil {
		t.Fatal("expected error for non-JSON completion")
	}
}
