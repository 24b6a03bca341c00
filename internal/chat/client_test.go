package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key")
	c.BaseURL = srv.URL
	return c
}

func TestClient_Complete(t *testing.T) {
	var gotReq messageRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "hello there!"}},
		})
	})

	reply, err := c.Complete(context.Background(), "hi", "you are a robot")
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if reply != "hello there!" {
		t.Errorf("unexpected reply %q", reply)
	}
	if gotReq.System != "you are a robot" {
		t.Errorf("system context not forwarded, got %q", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "hi" {
		t.Errorf("prompt not forwarded: %+v", gotReq.Messages)
	}
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited"},
		})
	})

	if _, err := c.Complete(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestClient_EmptyContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"content": []map[string]any{}})
	})

	if _, err := c.Complete(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected an error for an empty response")
	}
}

func TestClient_NoAPIKey(t *testing.T) {
	c := NewClient("")
	if _, err := c.Complete(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected an error without an API key")
	}
}
