package domain

import "time"

type TaskType string

const (
	TaskPing            TaskType = "PING"
	TaskDocumentAnalyze TaskType = "DOCUMENT_ANALYZE"
	TaskDocumentReview  TaskType = "DOCUMENT_REVIEW"
	TaskWorkflowSuggest TaskType = "WORKFLOW_SUGGEST"
	TaskChat            TaskType = "CHAT"
)

type TaskStatus string

const (
	TaskStatusProcessing   TaskStatus = "PROCESSING"
	TaskStatusSuccess      TaskStatus = "SUCCESS"
	TaskStatusChatResponse TaskStatus = "CHAT_RESPONSE"
	TaskStatusError        TaskStatus = "ERROR"
)

// SuccessStatus is the status published when a task of type t completes.
func (t TaskType) SuccessStatus() TaskStatus {
	if t == TaskChat {
		return TaskStatusChatResponse
	}
	return TaskStatusSuccess
}

type Task struct {
	SchemaVersion int            `json:"schema_version"`
	CorrelationID string         `json:"correlation_id"`
	CreatedAt     string         `json:"created_at"`
	TaskID        string         `json:"task_id"`
	Type          TaskType       `json:"type"`
	Payload       map[string]any `json:"payload"`
	ReplyTo       string         `json:"reply_to,omitempty"`
}

type TaskResult struct {
	SchemaVersion int            `json:"schema_version"`
	CorrelationID string         `json:"correlation_id"`
	CreatedAt     string         `json:"created_at"`
	TaskID        string         `json:"task_id"`
	Status        TaskStatus     `json:"status"`
	Result        map[string]any `json:"result"`
	Error         string         `json:"error,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
}

func NewTaskResult(task Task, status TaskStatus, now time.Time) TaskResult {
	version := task.SchemaVersion
	if version == 0 {
		version = 1
	}
	return TaskResult{
		SchemaVersion: version,
		CorrelationID: task.CorrelationID,
		CreatedAt:     now.UTC().Format(time.RFC3339Nano),
		TaskID:        task.TaskID,
		Status:        status,
		Result:        map[string]any{},
	}
}

type WorkflowSuggestRequest struct {
	DocumentType string   `json:"document_type"`
	Roles        []string `json:"roles"`
	Goal         string   `json:"goal"`
	Provider     string   `json:"provider,omitempty"`
}

type ChatType string

const (
	ChatGeneral  ChatType = "GENERAL"
	ChatDocument ChatType = "DOCUMENT"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Sender  string `json:"sender,omitempty"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Content    string           `json:"content"`
	ChannelID  int64            `json:"channel_id"`
	SenderID   int64            `json:"sender_id"`
	SenderName string           `json:"sender_name"`
	ChatType   ChatType         `json:"chat_type"`
	History    []ChatMessage    `json:"history"`
	Provider   string           `json:"provider,omitempty"`
	Document   *AnalysisRequest `json:"document,omitempty"`
}

type ChatResponse struct {
	Response  string `json:"response"`
	ChannelID int64  `json:"channel_id"`
	UsedModel string `json:"used_model,omitempty"`
}
