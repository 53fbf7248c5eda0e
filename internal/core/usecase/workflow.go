package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
)

type WorkflowUseCase struct {
	llm    ports.LLMClientFactory
	parser ports.ResponseParser
}

func NewWorkflowUseCase(llm ports.LLMClientFactory, parser ports.ResponseParser) *WorkflowUseCase {
	return &WorkflowUseCase{llm: llm, parser: parser}
}

// SuggestWorkflow returns the raw model answer under "suggestions_raw". When the
// answer is a JSON object it is also returned decoded under "suggestions".
func (uc *WorkflowUseCase) SuggestWorkflow(ctx context.Context, req domain.WorkflowSuggestRequest) (map[string]any, error) {
	client, err := uc.llm.Resolve(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolve llm provider: %w", err)
	}
	answer, err := client.Generate(ctx, buildWorkflowPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("suggest workflow: %w", err)
	}

	result := map[string]any{
		"suggestions_raw": answer,
		"provider_used":   string(client.Provider()),
	}
	if parsed, parseErr := uc.parser.ParseObject(answer); parseErr == nil {
		result["suggestions"] = parsed
	}
	return result, nil
}
