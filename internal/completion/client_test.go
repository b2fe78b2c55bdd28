package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi there"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(nil, server.URL, "test-key", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	reply, err := client.Complete(context.Background(), "gpt-4o-mini", "hello")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", gotBody.Messages)
	}
}

func TestCompleteProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	client, err := NewClient(nil, server.URL, "test-key", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Complete(context.Background(), "gpt-4o-mini", "hello")
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(nil, server.URL, "", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Complete(context.Background(), "gpt-4o-mini", "hello")
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
}

func TestCompleteValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(nil, "", "key", 0); err == nil {
		t.Fatal("expected error on empty base url")
	}

	client, err := NewClient(nil, "http://localhost:1", "key", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Complete(context.Background(), "", "hello"); !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed for empty model, got %v", err)
	}
	if _, err := client.Complete(context.Background(), "gpt-4o-mini", "  "); !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed for empty prompt, got %v", err)
	}
}
