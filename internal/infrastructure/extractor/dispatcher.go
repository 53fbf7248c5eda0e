package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/validation"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/extractor/html"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/extractor/xlsx"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeHTML = "text/html"
)

// Backend extracts text from one document format.
type Backend interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}

type Dispatcher struct {
	backends map[string]Backend
}

func NewDispatcher() *Dispatcher {
	text := plaintext.NewExtractor()
	return &Dispatcher{
		backends: map[string]Backend{
			MimePDF:            pdf.NewExtractor(),
			MimeDOCX:           docx.NewExtractor(),
			MimeXLSX:           xlsx.NewExtractor(),
			MimeHTML:           html.NewExtractor(),
			"text/plain":       text,
			"text/markdown":    text,
			"text/csv":         text,
			"application/json": text,
		},
	}
}

// Register adds or replaces the backend for mime.
func (d *Dispatcher) Register(mime string, backend Backend) {
	d.backends[validation.NormalizeMime(mime)] = backend
}

func (d *Dispatcher) Extract(ctx context.Context, file *domain.DownloadedFile) (*domain.ExtractedText, error) {
	if file == nil {
		return nil, &domain.TextExtractionError{Reason: "no file"}
	}
	mime := validation.NormalizeMime(file.MimeType)
	backend, ok := d.backends[mime]
	if !ok {
		return nil, &domain.TextExtractionError{
			MimeType: file.MimeType,
			Reason:   "unsupported mime type",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := backend.Extract(ctx, file.Bytes)
	if err != nil {
		return nil, &domain.TextExtractionError{
			MimeType: mime,
			Reason:   "corrupt or unreadable content",
			Err:      err,
		}
	}
	text = strings.TrimSpace(text)
	if text == "" && len(file.Bytes) > 0 {
		return nil, &domain.TextExtractionError{
			MimeType: mime,
			Reason:   "no text could be extracted",
		}
	}
	if text == "" {
		return nil, &domain.TextExtractionError{
			MimeType: mime,
			Reason:   fmt.Sprintf("empty document (%d bytes)", len(file.Bytes)),
		}
	}
	return &domain.ExtractedText{Text: text, SourceMime: mime}, nil
}
