package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/docflow-ai/internal/config"
	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/repository/inmemory"
)

func TestProviderSnapshotFallsBackToMock(t *testing.T) {
	for _, name := range []string{"", "disabled", "openai"} {
		snap := ProviderSnapshot(config.Config{LLMProvider: name})
		if snap.Active != domain.ProviderMock {
			t.Fatalf("provider %q: expected mock, got %s", name, snap.Active)
		}
	}
	snap := ProviderSnapshot(config.Config{LLMProvider: "Groq", GroqAPIKey: "k", GroqModel: "m"})
	if snap.Active != domain.ProviderGroq || snap.Groq.APIKey != "k" || snap.Groq.Model != "m" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestDownloadConfigScalesSchedule(t *testing.T) {
	cfg := DownloadConfig(config.Config{
		DownloadMaxAttempts:    3,
		DownloadInitialBackoff: 500 * time.Millisecond,
		DownloadTimeout:        10 * time.Second,
	})
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
	if len(cfg.Retry.RetrySchedule) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Retry.RetrySchedule)
	}
	for i := range want {
		if cfg.Retry.RetrySchedule[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cfg.Retry.RetrySchedule)
		}
	}
	if !cfg.Retry.BackoffOnFinalAttempt || cfg.Retry.BreakerEnabled {
		t.Fatalf("download policy must serve the final backoff without a breaker")
	}
	if cfg.AttemptTimeout != 10*time.Second {
		t.Fatalf("expected attempt timeout 10s, got %s", cfg.AttemptTimeout)
	}
}

func TestDownloadConfigDefaultsToDocumentedSchedule(t *testing.T) {
	cfg := DownloadConfig(config.Config{})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i := range want {
		if cfg.Retry.RetrySchedule[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cfg.Retry.RetrySchedule)
		}
	}
}

func TestLLMRetryConfig(t *testing.T) {
	retry := LLMRetryConfig(config.Config{LLMMaxAttempts: 5, LLMInitialBackoff: 200 * time.Millisecond})
	if retry.RetryMaxAttempts != 5 || retry.RetryInitialBackoff != 200*time.Millisecond || retry.RetryMaxBackoff != 800*time.Millisecond {
		t.Fatalf("unexpected retry config: %+v", retry)
	}
}

func TestNewWiresInMemoryJournalWithoutDSN(t *testing.T) {
	app, err := New(context.Background(), config.Config{
		AppName:               "docflow-ai",
		LLMProvider:           "mock",
		JournalMemoryCapacity: 10,
		CompanyContextPath:    "does-not-exist.md",
	}, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	if _, ok := app.Journal.(*inmemory.Journal); !ok {
		t.Fatalf("expected in-memory journal, got %T", app.Journal)
	}

	result, err := app.Analyzer.Analyze(context.Background(), "req-1", domain.AnalysisRequest{Text: "Supply contract between A and B"})
	if err != nil {
		t.Fatalf("analyze inline text: %v", err)
	}
	if result.ProviderUsed != string(domain.ProviderMock) {
		t.Fatalf("expected mock provider, got %s", result.ProviderUsed)
	}
	entry, err := app.Journal.GetByRequestID(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("journal lookup: %v", err)
	}
	if entry.Status != domain.JournalSucceeded {
		t.Fatalf("expected succeeded entry, got %+v", entry)
	}
}
