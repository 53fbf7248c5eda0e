package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/resilience"
)

// DefaultRetryConfig is three attempts separated by 1s and 2s, with a breaker
// per provider.
func DefaultRetryConfig() resilience.Config {
	return resilience.DefaultConfig()
}

// Retrying wraps a client with bounded retries and converts the final failure
// into a domain.LlmProcessingError.
type Retrying struct {
	inner    ports.LLMClient
	executor *resilience.Executor
}

func NewRetrying(inner ports.LLMClient, executor *resilience.Executor) *Retrying {
	return &Retrying{inner: inner, executor: executor}
}

func (r *Retrying) Provider() domain.Provider {
	return r.inner.Provider()
}

// Unwrap returns the decorated client.
func (r *Retrying) Unwrap() ports.LLMClient {
	return r.inner
}

func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	return r.run(ctx, "llm_generate", prompt, r.inner.Generate)
}

func (r *Retrying) GenerateText(ctx context.Context, prompt string) (string, error) {
	return r.run(ctx, "llm_generate_text", prompt, r.inner.GenerateText)
}

func (r *Retrying) run(
	ctx context.Context,
	operation string,
	prompt string,
	call func(context.Context, string) (string, error),
) (string, error) {
	provider := r.inner.Provider()
	var out string
	attempts, err := r.executor.ExecuteAttempts(ctx, operation+"_"+string(provider), func(ctx context.Context) error {
		text, callErr := call(ctx, prompt)
		if callErr != nil {
			return callErr
		}
		out = text
		return nil
	}, ClassifyError)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("llm %s interrupted: %w (last error: %v)", provider, ctxErr, err)
		}
		return "", &domain.LlmProcessingError{
			Provider: provider,
			Attempts: attempts,
			Cause:    err,
		}
	}
	return out, nil
}

type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyError decides whether a provider failure is worth another attempt.
func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		retryable := isRetryableStatus(statusErr.HTTPStatus())
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	if errors.Is(err, domain.ErrEmptyResponse) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return code >= 500
	}
}
