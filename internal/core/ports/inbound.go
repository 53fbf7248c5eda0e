package ports

import (
	"context"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

// DocumentAnalyzer is the inbound contract for the analysis pipeline.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, requestID string, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
	Review(ctx context.Context, requestID string, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// WorkflowAdvisor suggests approval workflows.
type WorkflowAdvisor interface {
	SuggestWorkflow(ctx context.Context, req domain.WorkflowSuggestRequest) (map[string]any, error)
}

// ChatResponder answers chat messages, optionally grounded on one document.
type ChatResponder interface {
	Chat(ctx context.Context, requestID string, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// ProviderAdmin is the inbound contract for provider introspection and switching.
type ProviderAdmin interface {
	ListProviders() []domain.Provider
	Config() domain.ProviderConfigView
	Status(ctx context.Context) []domain.ProviderStatus
	Switch(name string) (domain.Provider, error)
	Test(ctx context.Context, name string) (*domain.ProviderTestReport, error)
}

// JournalReader exposes recorded pipeline runs.
type JournalReader interface {
	GetByRequestID(ctx context.Context, requestID string) (*domain.JournalEntry, error)
}

// TaskHandler processes queue tasks.
type TaskHandler interface {
	Handle(ctx context.Context, task domain.Task) (map[string]any, error)
}
