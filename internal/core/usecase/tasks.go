package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
)

// TaskRouter dispatches queue tasks to the use cases by task type.
type TaskRouter struct {
	analyzer ports.DocumentAnalyzer
	workflow ports.WorkflowAdvisor
	chat     ports.ChatResponder
}

func NewTaskRouter(analyzer ports.DocumentAnalyzer, workflow ports.WorkflowAdvisor, chat ports.ChatResponder) *TaskRouter {
	return &TaskRouter{analyzer: analyzer, workflow: workflow, chat: chat}
}

func (r *TaskRouter) Handle(ctx context.Context, task domain.Task) (map[string]any, error) {
	switch task.Type {
	case domain.TaskPing:
		return map[string]any{"message": "pong"}, nil

	case domain.TaskDocumentAnalyze, domain.TaskDocumentReview:
		var req domain.AnalysisRequest
		if err := decodePayload(task.Payload, &req); err != nil {
			return nil, err
		}
		run := r.analyzer.Analyze
		if task.Type == domain.TaskDocumentReview {
			run = r.analyzer.Review
		}
		result, err := run(ctx, task.TaskID, req)
		if err != nil {
			return nil, err
		}
		out := map[string]any{
			"document_id":   req.DocumentID,
			"version_id":    req.VersionID,
			"provider_used": result.ProviderUsed,
			"result":        result.ParsedJSON,
		}
		if result.Checksum != "" {
			out["checksum"] = result.Checksum
		}
		return out, nil

	case domain.TaskWorkflowSuggest:
		var req domain.WorkflowSuggestRequest
		if err := decodePayload(task.Payload, &req); err != nil {
			return nil, err
		}
		return r.workflow.SuggestWorkflow(ctx, req)

	case domain.TaskChat:
		req, err := decodeChatPayload(task.Payload)
		if err != nil {
			return nil, err
		}
		resp, err := r.chat.Chat(ctx, task.TaskID, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"response":   resp.Response,
			"channel_id": resp.ChannelID,
			"used_model": resp.UsedModel,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrInvalidInput, task.Type)
	}
}

// decodeChatPayload accepts document fields either nested under "document" or
// flat next to the message, and a provider under "context.provider".
func decodeChatPayload(payload map[string]any) (domain.ChatRequest, error) {
	var req domain.ChatRequest
	if err := decodePayload(payload, &req); err != nil {
		return domain.ChatRequest{}, err
	}
	if req.Document == nil {
		var doc domain.AnalysisRequest
		if err := decodePayload(payload, &doc); err != nil {
			return domain.ChatRequest{}, err
		}
		if doc.URL != "" {
			doc.Provider = ""
			req.Document = &doc
		}
	}
	if req.Provider == "" {
		if ctxMap, ok := payload["context"].(map[string]any); ok {
			if provider, ok := ctxMap["provider"].(string); ok {
				req.Provider = provider
			}
		}
	}
	if req.ChatType == "" {
		req.ChatType = domain.ChatGeneral
	}
	return req, nil
}

func decodePayload(payload map[string]any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode task payload: %v", domain.ErrInvalidInput, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode task payload: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
