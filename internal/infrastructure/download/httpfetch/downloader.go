package httpfetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/validation"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/resilience"
)

const UserAgent = "DocFlow-AIService/1.0"

type Config struct {
	AttemptTimeout time.Duration
	MaxFileSize    int64
	Retry          resilience.Config
}

func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 30 * time.Second,
		MaxFileSize:    domain.MaxFileSizeBytes,
		Retry:          resilience.DownloadConfig(),
	}
}

type Downloader struct {
	httpClient     *http.Client
	executor       *resilience.Executor
	attemptTimeout time.Duration
	maxFileSize    int64
}

func New(cfg Config) *Downloader {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = domain.MaxFileSizeBytes
	}
	return &Downloader{
		httpClient:     &http.Client{},
		executor:       resilience.NewExecutor(cfg.Retry),
		attemptTimeout: cfg.AttemptTimeout,
		maxFileSize:    cfg.MaxFileSize,
	}
}

// WithSleeper replaces the backoff wait, see resilience.Executor.WithSleeper.
func (d *Downloader) WithSleeper(sleep resilience.Sleeper) *Downloader {
	d.executor.WithSleeper(sleep)
	return d
}

type statusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status: %s", e.Status)
	}
	return fmt.Sprintf("unexpected status: %s: %s", e.Status, e.Body)
}

func (d *Downloader) Download(ctx context.Context, req domain.AnalysisRequest) (*domain.DownloadedFile, error) {
	var (
		body        []byte
		contentType string
		lastStatus  int
	)

	attempts, err := d.executor.ExecuteAttempts(ctx, "document_download", func(ctx context.Context) error {
		data, ct, status, fetchErr := d.fetchOnce(ctx, req)
		if status != 0 {
			lastStatus = status
		}
		if fetchErr != nil {
			return fetchErr
		}
		body = data
		contentType = ct
		return nil
	}, classifyDownloadError)
	if err != nil {
		var validationErr *domain.FileValidationError
		if errors.As(err, &validationErr) {
			return nil, validationErr
		}
		return nil, &domain.FileDownloadError{
			URL:        req.URL,
			LastStatus: lastStatus,
			Attempts:   attempts,
			Err:        err,
		}
	}

	checksum := Checksum(body)
	if want := strings.TrimSpace(req.Checksum); want != "" && !strings.EqualFold(want, checksum) {
		return nil, &domain.FileValidationError{
			Message:  fmt.Sprintf("checksum mismatch: declared %s, computed %s", want, checksum),
			FileSize: int64(len(body)),
			MimeType: req.MimeType,
		}
	}

	return &domain.DownloadedFile{
		Bytes:            body,
		ActualSize:       int64(len(body)),
		ComputedChecksum: checksum,
		MimeType:         ResolveMime(req.MimeType, contentType, body),
		Attempts:         attempts,
	}, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, req domain.AnalysisRequest) ([]byte, string, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("create download request: %w", err)
	}
	httpReq.Header.Set("User-Agent", UserAgent)
	if token := strings.TrimSpace(req.ServiceToken); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", 0, fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", resp.StatusCode, &statusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxFileSize+1))
	if err != nil {
		return nil, "", resp.StatusCode, fmt.Errorf("read download body: %w", err)
	}
	if int64(len(data)) > d.maxFileSize {
		return nil, "", resp.StatusCode, &domain.FileValidationError{
			Message:  fmt.Sprintf("downloaded file exceeds limit of %d bytes", d.maxFileSize),
			FileSize: int64(len(data)),
			MimeType: req.MimeType,
		}
	}
	return data, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

func classifyDownloadError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, domain.ErrDocumentAnalysis) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return resilience.ErrorClassification{
			Retryable:     isRetryableStatus(statusErr.StatusCode),
			RecordFailure: true,
		}
	}

	// Per-attempt deadline and transport failures.
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// isRetryableStatus retries every non-2xx answer except 401, which no retry
// can fix.
func isRetryableStatus(code int) bool {
	return code != http.StatusUnauthorized
}

// Checksum is the lowercase hex sha256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ResolveMime keeps a specific declared type and otherwise prefers the
// response Content-Type, then content sniffing.
func ResolveMime(declared, contentType string, data []byte) string {
	if mime := validation.NormalizeMime(declared); mime != "" && mime != "application/octet-stream" {
		return mime
	}
	if mime := validation.NormalizeMime(contentType); mime != "" && mime != "application/octet-stream" && mime != "binary/octet-stream" {
		return mime
	}
	return validation.NormalizeMime(mimetype.Detect(data).String())
}
