package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

const defaultTimeout = 60 * time.Second

type Client struct {
	model  string
	models *genai.Models
}

func New(settings domain.GeminiSettings) (*Client, error) {
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is required for the gemini provider", domain.ErrNotConfigured)
	}
	if strings.TrimSpace(settings.Model) == "" {
		return nil, fmt.Errorf("%w: GEMINI_MODEL is required for the gemini provider", domain.ErrNotConfigured)
	}

	cfg := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     settings.APIKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
	if baseURL := strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/"); baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL + "/"}
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		model:  strings.TrimPrefix(settings.Model, "models/"),
		models: client.Models,
	}, nil
}

func (c *Client) Provider() domain.Provider {
	return domain.ProviderGemini
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, &genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

func (c *Client) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &HTTPStatusError{StatusCode: apiErr.Code, Status: apiErr.Status, Body: apiErr.Message}
		}
		return "", fmt.Errorf("gemini generate request: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", resp.PromptFeedback.BlockReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini generate: %w", domain.ErrEmptyResponse)
	}
	return text, nil
}

// HTTPStatusError carries the status of a rejected Gemini call so the retry
// layer can classify it.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gemini generate status: %d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("gemini generate status: %d %s: %s", e.StatusCode, e.Status, strings.TrimSpace(e.Body))
}

func (e *HTTPStatusError) HTTPStatus() int {
	return e.StatusCode
}
