package llm

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/llm/groq"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/llm/mock"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/resilience"
)

// ProviderDisabled resolves to the mock provider.
const ProviderDisabled = "disabled"

// Builder constructs a client from the provider snapshot current at call time.
type Builder func(snapshot domain.ProviderSnapshot) (ports.LLMClient, error)

// Registry owns the active provider configuration. The snapshot is replaced as
// a whole, so a request that resolved a client keeps it across switches.
type Registry struct {
	snapshot atomic.Pointer[domain.ProviderSnapshot]
	executor *resilience.Executor

	mu       sync.RWMutex
	builders map[domain.Provider]Builder
}

func NewRegistry(initial domain.ProviderSnapshot, retry resilience.Config) *Registry {
	r := &Registry{
		executor: resilience.NewExecutor(retry),
		builders: DefaultBuilders(),
	}
	if _, ok := domain.ParseProvider(string(initial.Active)); !ok {
		initial.Active = domain.ProviderMock
	}
	r.snapshot.Store(&initial)
	return r
}

func DefaultBuilders() map[domain.Provider]Builder {
	return map[domain.Provider]Builder{
		domain.ProviderMock: func(domain.ProviderSnapshot) (ports.LLMClient, error) {
			return mock.New(), nil
		},
		domain.ProviderGemini: func(s domain.ProviderSnapshot) (ports.LLMClient, error) {
			return gemini.New(s.Gemini)
		},
		domain.ProviderGroq: func(s domain.ProviderSnapshot) (ports.LLMClient, error) {
			return groq.New(s.Groq)
		},
		domain.ProviderOllama: func(s domain.ProviderSnapshot) (ports.LLMClient, error) {
			return ollama.New(s.Ollama)
		},
	}
}

// Register replaces the builder of provider.
func (r *Registry) Register(provider domain.Provider, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[provider] = builder
}

// WithSleeper replaces the backoff wait of the retry decorator.
func (r *Registry) WithSleeper(sleep resilience.Sleeper) *Registry {
	r.executor.WithSleeper(sleep)
	return r
}

func (r *Registry) Snapshot() domain.ProviderSnapshot {
	return *r.snapshot.Load()
}

func (r *Registry) SetActive(provider domain.Provider) error {
	if _, ok := domain.ParseProvider(string(provider)); !ok {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	for {
		current := r.snapshot.Load()
		next := current.WithActive(provider)
		if _, err := r.build(provider, next); err != nil {
			return fmt.Errorf("%w: cannot initialize provider %s: %w", domain.ErrInvalidInput, provider, err)
		}
		if r.snapshot.CompareAndSwap(current, &next) {
			slog.Info("llm_provider_switched", "from", string(current.Active), "to", string(provider))
			return nil
		}
	}
}

func (r *Registry) New(provider domain.Provider) (ports.LLMClient, error) {
	if _, ok := domain.ParseProvider(string(provider)); !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	return r.build(provider, r.Snapshot())
}

func (r *Registry) Resolve(override string) (ports.LLMClient, error) {
	snapshot := r.Snapshot()

	name := strings.ToLower(strings.TrimSpace(override))
	if name == "" {
		name = string(snapshot.Active)
	}
	if name == "" || name == ProviderDisabled {
		return r.decorate(mock.New()), nil
	}
	provider, ok := domain.ParseProvider(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, name)
	}

	client, err := r.build(provider, snapshot)
	if err != nil {
		slog.Warn("llm_provider_fallback",
			"provider", string(provider),
			"fallback", string(domain.ProviderMock),
			"error", err,
		)
		client = mock.New()
	}
	return r.decorate(client), nil
}

func (r *Registry) build(provider domain.Provider, snapshot domain.ProviderSnapshot) (ports.LLMClient, error) {
	r.mu.RLock()
	builder, ok := r.builders[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no builder for provider %q", domain.ErrNotConfigured, provider)
	}
	return builder(snapshot)
}

func (r *Registry) decorate(client ports.LLMClient) ports.LLMClient {
	return NewRetrying(client, r.executor)
}
