package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/parsing"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
)

const (
	defaultStatusTimeout = 5 * time.Second
	testResponseLimit    = 100
)

type ProviderAdminUseCase struct {
	llm           ports.LLMClientFactory
	statusTimeout time.Duration
}

func NewProviderAdminUseCase(llm ports.LLMClientFactory, statusTimeout time.Duration) *ProviderAdminUseCase {
	if statusTimeout <= 0 {
		statusTimeout = defaultStatusTimeout
	}
	return &ProviderAdminUseCase{llm: llm, statusTimeout: statusTimeout}
}

func (uc *ProviderAdminUseCase) ListProviders() []domain.Provider {
	out := make([]domain.Provider, len(domain.Providers))
	copy(out, domain.Providers)
	return out
}

func (uc *ProviderAdminUseCase) Config() domain.ProviderConfigView {
	s := uc.llm.Snapshot()
	return domain.ProviderConfigView{
		CurrentProvider:    s.Active,
		AvailableProviders: uc.ListProviders(),
		ProviderConfigs: map[domain.Provider]map[string]any{
			domain.ProviderMock: {"enabled": true},
			domain.ProviderGemini: {
				"api_key_set": s.Gemini.APIKey != "",
				"model":       s.Gemini.Model,
				"base_url":    s.Gemini.BaseURL,
			},
			domain.ProviderGroq: {
				"api_key_set": s.Groq.APIKey != "",
				"model":       s.Groq.Model,
				"base_url":    s.Groq.BaseURL,
			},
			domain.ProviderOllama: {
				"base_url": s.Ollama.BaseURL,
				"model":    s.Ollama.Model,
			},
		},
	}
}

// Status checks every provider concurrently, each bounded by the status
// timeout. Check failures are reported, never returned.
func (uc *ProviderAdminUseCase) Status(ctx context.Context) []domain.ProviderStatus {
	providers := uc.ListProviders()
	statuses := make([]domain.ProviderStatus, len(providers))

	var g errgroup.Group
	for i, provider := range providers {
		g.Go(func() error {
			statuses[i] = uc.checkProvider(ctx, provider)
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

func (uc *ProviderAdminUseCase) checkProvider(ctx context.Context, provider domain.Provider) domain.ProviderStatus {
	status := domain.ProviderStatus{Provider: provider}
	client, err := uc.llm.New(provider)
	if err != nil {
		status.ErrorMessage = err.Error()
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, uc.statusTimeout)
	defer cancel()
	if _, err := client.GenerateText(checkCtx, providerStatusPrompt); err != nil {
		status.ErrorMessage = err.Error()
		return status
	}
	status.IsAvailable = true
	return status
}

func (uc *ProviderAdminUseCase) Switch(name string) (domain.Provider, error) {
	provider, ok := domain.ParseProvider(name)
	if !ok {
		return "", fmt.Errorf("%w: invalid provider %q, available: %v", domain.ErrInvalidInput, name, domain.Providers)
	}
	if err := uc.llm.SetActive(provider); err != nil {
		return "", err
	}
	return provider, nil
}

// Test sends a trivial prompt to one provider. Unknown names are rejected;
// construction and generation failures are reported in the result.
func (uc *ProviderAdminUseCase) Test(ctx context.Context, name string) (*domain.ProviderTestReport, error) {
	provider, ok := domain.ParseProvider(name)
	if !ok {
		return nil, fmt.Errorf("%w: invalid provider %q, available: %v", domain.ErrInvalidInput, name, domain.Providers)
	}
	report := &domain.ProviderTestReport{Provider: provider}

	client, err := uc.llm.New(provider)
	if err != nil {
		report.Status = "error"
		report.Error = err.Error()
		return report, nil
	}

	start := time.Now()
	answer, err := client.GenerateText(ctx, providerTestPrompt)
	report.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		slog.Warn("llm_provider_test_failed", "provider", string(provider), "error", err)
		report.Status = "error"
		report.Error = err.Error()
		return report, nil
	}
	report.Status = "working"
	report.CanGenerate = true
	report.TestResponse = parsing.Excerpt(answer, testResponseLimit)
	return report, nil
}
