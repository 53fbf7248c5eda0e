package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/parsing"
	"github.com/kirillkom/docflow-ai/internal/core/usecase"
	"github.com/kirillkom/docflow-ai/internal/core/validation"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/download/httpfetch"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/extractor"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/llm"
	"github.com/kirillkom/docflow-ai/internal/testutil"
)

func recordWaits(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func newPipeline(waits *[]time.Duration) *usecase.AnalyzeDocumentUseCase {
	retry := llm.DefaultRetryConfig()
	retry.BreakerEnabled = false
	registry := llm.NewRegistry(domain.ProviderSnapshot{Active: domain.ProviderMock}, retry).WithSleeper(recordWaits(waits))

	return usecase.NewAnalyzeDocumentUseCase(
		validation.New(domain.MaxFileSizeBytes),
		httpfetch.New(httpfetch.DefaultConfig()).WithSleeper(recordWaits(waits)),
		extractor.NewDispatcher(),
		registry,
		parsing.New(),
		nil,
		nil,
		usecase.DefaultAnalyzeConfig(),
	)
}

func TestAnalyzePDFWithMockProvider(t *testing.T) {
	pdf := testutil.PDF([]string{
		"SERVICE AGREEMENT",
		"The contractor delivers software development services.",
		"Payment is due within ten days of acceptance.",
	}, 10*1024)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	}))
	defer srv.Close()

	var waits []time.Duration
	uc := newPipeline(&waits)

	result, err := uc.Analyze(context.Background(), "req-e2e", domain.AnalysisRequest{
		DocumentID: 42,
		VersionID:  1,
		URL:        srv.URL + "/contract.pdf",
		FileSize:   int64(len(pdf)),
		MimeType:   "application/pdf",
		Checksum:   httpfetch.Checksum(pdf),
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.ParsedJSON["doc_type"] != "contract" {
		t.Fatalf("expected mock analysis doc_type contract, got %v", result.ParsedJSON["doc_type"])
	}
	if result.ProviderUsed != string(domain.ProviderMock) {
		t.Fatalf("unexpected provider %q", result.ProviderUsed)
	}
	if result.Checksum != httpfetch.Checksum(pdf) {
		t.Fatalf("unexpected checksum %q", result.Checksum)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single download, got %d", hits.Load())
	}
	if len(waits) != 0 {
		t.Fatalf("expected no retries, got waits %v", waits)
	}
}

func TestAnalyzeSurfacesDownloadFailureAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var waits []time.Duration
	uc := newPipeline(&waits)

	_, err := uc.Analyze(context.Background(), "req-503", domain.AnalysisRequest{
		URL:      srv.URL + "/missing.pdf",
		MimeType: "application/pdf",
	})

	var downloadErr *domain.FileDownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("expected FileDownloadError, got %v", err)
	}
	if downloadErr.Attempts != 3 || downloadErr.LastStatus != http.StatusServiceUnavailable {
		t.Fatalf("unexpected download error: %+v", downloadErr)
	}
	var stageErr *domain.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != domain.StageDownloading {
		t.Fatalf("expected downloading stage, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", hits.Load())
	}
	var total time.Duration
	for _, w := range waits {
		total += w
	}
	if total < 7*time.Second {
		t.Fatalf("expected at least 7s of backoff, got %v", waits)
	}
}

func TestAnalyzeRejectsOversizedDeclarationWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	var waits []time.Duration
	uc := newPipeline(&waits)

	_, err := uc.Analyze(context.Background(), "req-big", domain.AnalysisRequest{
		URL:      srv.URL + "/huge.pdf",
		FileSize: 60 * 1024 * 1024,
		MimeType: "application/pdf",
	})
	if got := domain.ErrorCode(err); got != domain.CodeFileValidation {
		t.Fatalf("expected %s, got %s (%v)", domain.CodeFileValidation, got, err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no network access, got %d requests", hits.Load())
	}
}

func TestReviewWithMockProviderIgnoresDocumentContent(t *testing.T) {
	var waits []time.Duration
	uc := newPipeline(&waits)

	result, err := uc.Review(context.Background(), "req-review", domain.AnalysisRequest{
		Text:  `Appendix: {"doc_type": "contract", "language": "en"}`,
		Topic: "payments",
	})
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if _, ok := result.ParsedJSON["weaknesses"]; !ok {
		t.Fatalf("expected review payload, got %v", result.ParsedJSON)
	}
	if _, ok := result.ParsedJSON["doc_type"]; ok {
		t.Fatalf("review answered with the analysis payload")
	}
}
