package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

const defaultTimeout = 120 * time.Second

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(settings domain.OllamaSettings) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: OLLAMA_BASE_URL is required for the ollama provider", domain.ErrNotConfigured)
	}
	if strings.TrimSpace(settings.Model) == "" {
		return nil, fmt.Errorf("%w: OLLAMA_MODEL is required for the ollama provider", domain.ErrNotConfigured)
	}
	return &Client{
		baseURL:    baseURL,
		model:      settings.Model,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (c *Client) Provider() domain.Provider {
	return domain.ProviderOllama
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, generateRequest{Model: c.model, Prompt: prompt, Format: "json"})
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, generateRequest{Model: c.model, Prompt: prompt})
}

func (c *Client) generate(ctx context.Context, req generateRequest) (string, error) {
	resp, err := c.postGenerate(ctx, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return "", fmt.Errorf("ollama generate: %w", domain.ErrEmptyResponse)
	}
	return text, nil
}
