package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

func TestGenerateRequestsJSONFormat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":" {\"doc_type\":\"report\"} "}`))
	}))
	defer server.Close()

	client, err := New(domain.OllamaSettings{BaseURL: server.URL + "/", Model: "llama3"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out, err := client.Generate(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"doc_type":"report"}` {
		t.Fatalf("unexpected output %q", out)
	}
	if payload["format"] != "json" || payload["model"] != "llama3" || payload["stream"] != false {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if payload["prompt"] != "analyze this" {
		t.Fatalf("unexpected prompt: %#v", payload["prompt"])
	}
}

func TestGenerateTextOmitsFormat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"response":"hello"}`))
	}))
	defer server.Close()

	client, _ := New(domain.OllamaSettings{BaseURL: server.URL, Model: "llama3"})
	if _, err := client.GenerateText(context.Background(), "hi"); err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if _, ok := payload["format"]; ok {
		t.Fatalf("free text request must not set format: %#v", payload)
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := New(domain.OllamaSettings{BaseURL: server.URL, Model: "llama3"})
	_, err := client.Generate(context.Background(), "hello")
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.HTTPStatus() != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", statusErr.HTTPStatus())
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestGenerateRejectsEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer server.Close()

	client, _ := New(domain.OllamaSettings{BaseURL: server.URL, Model: "llama3"})
	_, err := client.Generate(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(domain.OllamaSettings{Model: "llama3"})
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGenerateSurfacesErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model \"llama3\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	client, _ := New(domain.OllamaSettings{BaseURL: server.URL, Model: "llama3"})
	_, err := client.Generate(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected upstream error message, got %v", err)
	}
}
