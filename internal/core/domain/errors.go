package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDocumentAnalysis = errors.New("document analysis failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")
	ErrEmptyResponse    = errors.New("llm returned empty response")
	ErrNotConfigured    = errors.New("provider not configured")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Error codes reported to callers alongside the human readable message.
const (
	CodeFileValidation   = "FILE_VALIDATION_ERROR"
	CodeFileDownload     = "FILE_DOWNLOAD_ERROR"
	CodeTextExtraction   = "TEXT_EXTRACTION_ERROR"
	CodeLLMProcessing    = "LLM_PROCESSING_ERROR"
	CodeJSONParsing      = "JSON_PARSING_ERROR"
	CodeDocumentNotFound = "DOCUMENT_NOT_FOUND"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeTimeout          = "ANALYSIS_TIMEOUT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeUnknown          = "UNKNOWN_ERROR"
)

// AnalysisError is implemented by every member of the document analysis taxonomy.
type AnalysisError interface {
	error
	Code() string
	Details() map[string]any
}

type FileValidationError struct {
	Message  string
	FileSize int64
	MimeType string
}

func (e *FileValidationError) Error() string { return e.Message }

func (e *FileValidationError) Is(target error) bool { return target == ErrDocumentAnalysis }

func (e *FileValidationError) Code() string { return CodeFileValidation }

func (e *FileValidationError) Details() map[string]any {
	details := map[string]any{}
	if e.FileSize > 0 {
		details["file_size"] = e.FileSize
	}
	if e.MimeType != "" {
		details["mime_type"] = e.MimeType
	}
	return details
}

type FileDownloadError struct {
	URL        string
	LastStatus int
	Attempts   int
	Err        error
}

func (e *FileDownloadError) Error() string {
	msg := fmt.Sprintf("download %s failed after %d attempt(s)", e.URL, e.Attempts)
	if e.LastStatus != 0 {
		msg += fmt.Sprintf(" (last status %d)", e.LastStatus)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FileDownloadError) Unwrap() error { return e.Err }

func (e *FileDownloadError) Is(target error) bool { return target == ErrDocumentAnalysis }

func (e *FileDownloadError) Code() string { return CodeFileDownload }

func (e *FileDownloadError) Details() map[string]any {
	details := map[string]any{
		"url":      e.URL,
		"attempts": e.Attempts,
	}
	if e.LastStatus != 0 {
		details["status_code"] = e.LastStatus
	}
	return details
}

type TextExtractionError struct {
	MimeType string
	Reason   string
	Err      error
}

func (e *TextExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract text from %q: %s: %v", e.MimeType, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract text from %q: %s", e.MimeType, e.Reason)
}

func (e *TextExtractionError) Unwrap() error { return e.Err }

func (e *TextExtractionError) Is(target error) bool { return target == ErrDocumentAnalysis }

func (e *TextExtractionError) Code() string { return CodeTextExtraction }

func (e *TextExtractionError) Details() map[string]any {
	return map[string]any{"mime_type": e.MimeType}
}

type LlmProcessingError struct {
	Provider Provider
	Attempts int
	Cause    error
}

func (e *LlmProcessingError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("llm provider %s failed after %d attempts: %v", e.Provider, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("llm provider %s failed: %v", e.Provider, e.Cause)
}

func (e *LlmProcessingError) Unwrap() error { return e.Cause }

func (e *LlmProcessingError) Is(target error) bool { return target == ErrDocumentAnalysis }

func (e *LlmProcessingError) Code() string { return CodeLLMProcessing }

func (e *LlmProcessingError) Details() map[string]any {
	details := map[string]any{"provider": string(e.Provider)}
	if e.Attempts > 0 {
		details["attempts"] = e.Attempts
	}
	return details
}

type JsonParsingError struct {
	RawTextExcerpt string
	RawLength      int
	Cause          error
}

func (e *JsonParsingError) Error() string {
	return fmt.Sprintf("parse llm response as json object: %v", e.Cause)
}

func (e *JsonParsingError) Unwrap() error { return e.Cause }

func (e *JsonParsingError) Is(target error) bool { return target == ErrDocumentAnalysis }

func (e *JsonParsingError) Code() string { return CodeJSONParsing }

func (e *JsonParsingError) Details() map[string]any {
	return map[string]any{
		"response_length":  e.RawLength,
		"response_excerpt": e.RawTextExcerpt,
	}
}

type DocumentNotFoundError struct {
	Resource string
	ID       string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *DocumentNotFoundError) Is(target error) bool { return target == ErrDocumentAnalysis }

func (e *DocumentNotFoundError) Code() string { return CodeDocumentNotFound }

func (e *DocumentNotFoundError) Details() map[string]any {
	return map[string]any{"resource": e.Resource, "id": e.ID}
}

// StageError attaches correlation context to a pipeline failure. The wrapped
// taxonomy error stays reachable through errors.As.
type StageError struct {
	RequestID string
	Stage     Stage
	Elapsed   time.Duration
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("request %s: stage %s: %v", e.RequestID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrorCode resolves the caller-facing code of err.
func ErrorCode(err error) string {
	var analysisErr AnalysisError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &analysisErr):
		return analysisErr.Code()
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrTemporary):
		return CodeUnavailable
	default:
		return CodeUnknown
	}
}
