package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
)

// DocumentTextSource fetches the text of a document for chat grounding.
type DocumentTextSource interface {
	DocumentText(ctx context.Context, requestID string, req domain.AnalysisRequest) (string, error)
}

type ChatUseCase struct {
	llm            ports.LLMClientFactory
	documents      DocumentTextSource
	companyContext string
}

func NewChatUseCase(llm ports.LLMClientFactory, documents DocumentTextSource, companyContext string) *ChatUseCase {
	return &ChatUseCase{llm: llm, documents: documents, companyContext: companyContext}
}

// LoadCompanyContext reads the optional company description used by general
// chat. A missing path yields an empty context.
func LoadCompanyContext(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read company context %s: %w", path, err)
	}
	return string(raw), nil
}

func (uc *ChatUseCase) Chat(ctx context.Context, requestID string, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: chat content is required", domain.ErrInvalidInput)
	}
	start := time.Now()

	client, err := uc.llm.Resolve(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolve llm provider: %w", err)
	}

	var prompt string
	if req.ChatType == domain.ChatDocument {
		prompt = buildDocumentChatPrompt(req, uc.documentText(ctx, requestID, req))
	} else {
		prompt = buildGeneralChatPrompt(req, uc.companyContext)
	}

	answer, err := client.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("chat generate: %w", err)
	}
	slog.Info("chat_completed",
		"request_id", requestID,
		"channel_id", req.ChannelID,
		"chat_type", string(req.ChatType),
		"provider", string(client.Provider()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &domain.ChatResponse{
		Response:  answer,
		ChannelID: req.ChannelID,
		UsedModel: string(client.Provider()),
	}, nil
}

// documentText is best effort: a failure leaves the prompt without document
// content.
func (uc *ChatUseCase) documentText(ctx context.Context, requestID string, req domain.ChatRequest) string {
	if uc.documents == nil || req.Document == nil {
		return ""
	}
	if strings.TrimSpace(req.Document.URL) == "" && strings.TrimSpace(req.Document.Text) == "" {
		return ""
	}
	text, err := uc.documents.DocumentText(ctx, requestID, *req.Document)
	if err != nil {
		slog.Warn("chat_document_fetch_failed",
			"request_id", requestID,
			"document_id", req.Document.DocumentID,
			"error_code", domain.ErrorCode(err),
			"error", err,
		)
		return ""
	}
	return text
}
