package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

// AllowedMimeTypes lists the declared MIME types the pipeline can extract.
var AllowedMimeTypes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/markdown",
	"text/csv",
	"text/html",
	"application/json",
}

type Validator struct {
	maxFileSize  int64
	maxURLLength int
	allowed      map[string]struct{}
}

func New(maxFileSize int64) *Validator {
	if maxFileSize <= 0 || maxFileSize > domain.MaxFileSizeBytes {
		maxFileSize = domain.MaxFileSizeBytes
	}
	allowed := make(map[string]struct{}, len(AllowedMimeTypes))
	for _, mime := range AllowedMimeTypes {
		allowed[mime] = struct{}{}
	}
	return &Validator{
		maxFileSize:  maxFileSize,
		maxURLLength: domain.MaxURLLength,
		allowed:      allowed,
	}
}

func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}

func (v *Validator) Validate(req domain.AnalysisRequest) error {
	if req.Priority != "" && !req.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidInput, req.Priority)
	}

	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		if strings.TrimSpace(req.Text) != "" {
			return nil
		}
		return &domain.FileValidationError{Message: "file_url or text is required"}
	}

	if len(rawURL) > v.maxURLLength {
		return &domain.FileValidationError{
			Message: fmt.Sprintf("file_url exceeds %d characters", v.maxURLLength),
		}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &domain.FileValidationError{Message: fmt.Sprintf("file_url is malformed: %v", err)}
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return &domain.FileValidationError{
			Message: fmt.Sprintf("file_url scheme %q is not allowed, use http or https", parsed.Scheme),
		}
	}
	if parsed.Host == "" {
		return &domain.FileValidationError{Message: "file_url has no host"}
	}

	if req.FileSize < 0 {
		return &domain.FileValidationError{
			Message:  "file_size must not be negative",
			FileSize: req.FileSize,
		}
	}
	if req.FileSize > v.maxFileSize {
		return &domain.FileValidationError{
			Message:  fmt.Sprintf("file size %d exceeds limit of %d bytes", req.FileSize, v.maxFileSize),
			FileSize: req.FileSize,
		}
	}

	mime := NormalizeMime(req.MimeType)
	if mime != "" && mime != "application/octet-stream" {
		if _, ok := v.allowed[mime]; !ok {
			return &domain.FileValidationError{
				Message:  fmt.Sprintf("mime type %q is not supported", req.MimeType),
				FileSize: req.FileSize,
				MimeType: req.MimeType,
			}
		}
	}
	return nil
}

// NormalizeMime lowercases a MIME type and strips its parameters.
func NormalizeMime(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}
