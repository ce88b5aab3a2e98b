package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete(t *testing.T) {
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Method != "POST" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "all good"}},
			},
		})
	}))
	defer server.Close()

	client, err := New("test-key",
		WithBaseURL(server.URL),
		WithModel("gpt-4"),
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatal(err)
	}

	text, err := client.Complete(context.Background(), Request{
		System:      "you are a QA assistant",
		Prompt:      "summarize this",
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "all good" {
		t.Errorf("unexpected text: %q", text)
	}

	if gotBody.Model != "gpt-4" {
		t.Errorf("unexpected model: %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", gotBody.Messages)
	}
	if gotBody.MaxTokens != 300 {
		t.Errorf("unexpected max_tokens: %d", gotBody.MaxTokens)
	}
}

func TestComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "quota exceeded", "type": "insufficient_quota"},
		})
	}))
	defer server.Close()

	client, _ := New("test-key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRateLimited(err) {
		t.Errorf("expected IsRateLimited, got: %v", err)
	}
}

func TestComplete_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid key"))
	}))
	defer server.Close()

	client, _ := New("bad-key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	if !IsAuthFailure(err) {
		t.Errorf("expected IsAuthFailure, got: %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client, _ := New("test-key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestDisabled(t *testing.T) {
	t.Setenv(disableEnv, "1")
	if !Disabled() {
		t.Error("expected Disabled() with env set")
	}
	t.Setenv(disableEnv, "0")
	if Disabled() {
		t.Error("expected not Disabled() with env unset")
	}
}
