package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

func TestGenerateUsesJSONResponseFormat(t *testing.T) {
	var (
		gotAuth string
		payload map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"llama","choices":[{"index":0,"message":{"role":"assistant","content":"{\"doc_type\":\"invoice\"}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client, err := New(domain.GroqSettings{APIKey: "gsk", Model: "llama-3.3-70b-versatile", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out, err := client.Generate(context.Background(), "return json")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"doc_type":"invoice"}` {
		t.Fatalf("unexpected output %q", out)
	}
	if gotAuth != "Bearer gsk" {
		t.Fatalf("unexpected authorization %q", gotAuth)
	}
	format, _ := payload["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %#v", payload["response_format"])
	}
}

func TestGenerateMapsStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer server.Close()

	client, _ := New(domain.GroqSettings{APIKey: "gsk", Model: "m", BaseURL: server.URL})
	_, err := client.GenerateText(context.Background(), "hello")
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.HTTPStatus() != http.StatusTooManyRequests {
		t.Fatalf("expected 429 status error, got %v", err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(domain.GroqSettings{Model: "m"})
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
