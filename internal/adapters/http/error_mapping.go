package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

type errorResponse struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	ElapsedMS *int64         `json:"elapsed_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	switch domain.ErrorCode(err) {
	case domain.CodeFileValidation, domain.CodeTextExtraction:
		return http.StatusUnprocessableEntity
	case domain.CodeFileDownload, domain.CodeLLMProcessing:
		return http.StatusBadGateway
	case domain.CodeDocumentNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newErrorResponse(requestID string, err error) errorResponse {
	resp := errorResponse{
		Error:     domain.ErrorCode(err),
		Message:   err.Error(),
		RequestID: requestID,
	}

	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = string(stageErr.Stage)
		elapsed := stageErr.Elapsed.Milliseconds()
		resp.ElapsedMS = &elapsed
		if stageErr.RequestID != "" {
			resp.RequestID = stageErr.RequestID
		}
		if stageErr.Err != nil {
			resp.Message = stageErr.Err.Error()
		}
	}

	var analysisErr domain.AnalysisError
	if errors.As(err, &analysisErr) {
		resp.Details = analysisErr.Details()
	}
	if resp.Error == domain.CodeUnknown {
		resp.Message = "internal error"
	}
	return resp
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, newErrorResponse(requestIDFromContext(r.Context()), err))
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestIDFromContext(r.Context()),
	})
}
