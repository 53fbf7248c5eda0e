package domain

import "strings"

type Provider string

const (
	ProviderMock   Provider = "mock"
	ProviderGemini Provider = "gemini"
	ProviderGroq   Provider = "groq"
	ProviderOllama Provider = "ollama"
)

// Providers is the closed set of supported backends in display order.
var Providers = []Provider{ProviderMock, ProviderGemini, ProviderGroq, ProviderOllama}

func ParseProvider(name string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Providers {
		if p == known {
			return p, true
		}
	}
	return "", false
}

type GeminiSettings struct {
	APIKey  string `json:"-"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
}

type GroqSettings struct {
	APIKey  string `json:"-"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
}

type OllamaSettings struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// ProviderSnapshot is an immutable view of provider configuration. Replace it
// as a whole; never mutate a published snapshot.
type ProviderSnapshot struct {
	Active Provider
	Gemini GeminiSettings
	Groq   GroqSettings
	Ollama OllamaSettings
}

func (s ProviderSnapshot) WithActive(p Provider) ProviderSnapshot {
	out := s
	out.Active = p
	return out
}

type ProviderStatus struct {
	Provider     Provider `json:"provider"`
	IsAvailable  bool     `json:"is_available"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

type ProviderTestReport struct {
	Provider     Provider `json:"provider"`
	Status       string   `json:"status"`
	LatencyMS    int64    `json:"latency_ms"`
	TestResponse string   `json:"test_response,omitempty"`
	CanGenerate  bool     `json:"can_generate"`
	Error        string   `json:"error,omitempty"`
}

type ProviderConfigView struct {
	CurrentProvider    Provider                    `json:"current_provider"`
	AvailableProviders []Provider                  `json:"available_providers"`
	ProviderConfigs    map[Provider]map[string]any `json:"provider_configs"`
}
