package ports

import (
	"context"
	"time"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

// RequestValidator checks an analysis request before any network access.
type RequestValidator interface {
	Validate(req domain.AnalysisRequest) error
}

// FileDownloader fetches document bytes.
type FileDownloader interface {
	Download(ctx context.Context, req domain.AnalysisRequest) (*domain.DownloadedFile, error)
}

// TextExtractor converts downloaded bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, file *domain.DownloadedFile) (*domain.ExtractedText, error)
}

// LLMClient sends a prompt to one provider and returns its raw text.
type LLMClient interface {
	// Generate asks for a JSON response where the provider supports it.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateText asks for free-form text.
	GenerateText(ctx context.Context, prompt string) (string, error)
	Provider() domain.Provider
}

// LLMClientFactory builds clients from the provider snapshot current at call time.
type LLMClientFactory interface {
	// Resolve returns a client for override, or for the active provider when
	// override is empty.
	Resolve(override string) (LLMClient, error)
	// New builds an undecorated client without retries.
	New(provider domain.Provider) (LLMClient, error)
	Snapshot() domain.ProviderSnapshot
	SetActive(provider domain.Provider) error
}

// ResponseParser turns raw model text into a JSON object.
type ResponseParser interface {
	ParseObject(raw string) (map[string]any, error)
}

// AnalysisJournal records pipeline runs for later lookup.
type AnalysisJournal interface {
	Record(ctx context.Context, entry domain.JournalEntry) error
	GetByRequestID(ctx context.Context, requestID string) (*domain.JournalEntry, error)
}

// ResultPublisher publishes task results.
type ResultPublisher interface {
	PublishResult(ctx context.Context, subject string, result domain.TaskResult) error
}

// PipelineObserver receives stage timings and outcomes.
type PipelineObserver interface {
	ObserveStage(operation string, stage domain.Stage, duration time.Duration, err error)
	ObserveLLMCall(provider domain.Provider, duration time.Duration, err error)
}
