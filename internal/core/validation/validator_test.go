package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

func TestValidateAcceptsRegularRequest(t *testing.T) {
	v := New(0)
	err := v.Validate(domain.AnalysisRequest{
		URL:      "https://files.example.com/doc.pdf",
		FileSize: 10 * 1024,
		MimeType: "application/pdf",
		Priority: domain.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		req  domain.AnalysisRequest
	}{
		{name: "ftp scheme", req: domain.AnalysisRequest{URL: "ftp://files.example.com/doc.pdf"}},
		{name: "file scheme", req: domain.AnalysisRequest{URL: "file:///etc/passwd"}},
		{name: "no host", req: domain.AnalysisRequest{URL: "http:///doc.pdf"}},
		{name: "too long", req: domain.AnalysisRequest{URL: "https://example.com/" + strings.Repeat("a", domain.MaxURLLength)}},
		{name: "oversized", req: domain.AnalysisRequest{URL: "https://example.com/a.pdf", FileSize: domain.MaxFileSizeBytes + 1}},
		{name: "negative size", req: domain.AnalysisRequest{URL: "https://example.com/a.pdf", FileSize: -1}},
		{name: "mime", req: domain.AnalysisRequest{URL: "https://example.com/a.exe", MimeType: "application/x-msdownload"}},
		{name: "empty", req: domain.AnalysisRequest{}},
	}

	v := New(0)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.req)
			var validationErr *domain.FileValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected FileValidationError, got %v", err)
			}
			if !errors.Is(err, domain.ErrDocumentAnalysis) {
				t.Fatalf("expected error to match ErrDocumentAnalysis")
			}
		})
	}
}

func TestValidateAllowsBoundaries(t *testing.T) {
	v := New(0)
	reqs := []domain.AnalysisRequest{
		{URL: "https://example.com/a.pdf", FileSize: domain.MaxFileSizeBytes},
		{URL: "https://example.com/a.pdf", FileSize: 0},
		{URL: "HTTP://example.com/a.txt", MimeType: "text/plain; charset=utf-8"},
		{URL: "https://example.com/a", MimeType: "application/octet-stream"},
		{Text: "inline document body"},
	}
	for _, req := range reqs {
		if err := v.Validate(req); err != nil {
			t.Fatalf("Validate(%+v) error = %v", req, err)
		}
	}
}

func TestValidateRejectsUnknownPriority(t *testing.T) {
	err := New(0).Validate(domain.AnalysisRequest{URL: "https://example.com/a.pdf", Priority: "urgent"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidateHonorsConfiguredLimit(t *testing.T) {
	v := New(1024)
	err := v.Validate(domain.AnalysisRequest{URL: "https://example.com/a.pdf", FileSize: 2048})
	var validationErr *domain.FileValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected FileValidationError, got %v", err)
	}
	if validationErr.FileSize != 2048 {
		t.Fatalf("expected file size in error, got %d", validationErr.FileSize)
	}
}
