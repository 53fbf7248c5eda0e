package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/docflow-ai/internal/config"
	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/parsing"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
	"github.com/kirillkom/docflow-ai/internal/core/usecase"
	"github.com/kirillkom/docflow-ai/internal/core/validation"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/download/httpfetch"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/extractor"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/llm"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/repository/inmemory"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Registry  *llm.Registry
	Journal   ports.AnalysisJournal
	Analyzer  *usecase.AnalyzeDocumentUseCase
	Providers *usecase.ProviderAdminUseCase
	Workflow  *usecase.WorkflowUseCase
	Chat      *usecase.ChatUseCase
	Tasks     *usecase.TaskRouter

	closers []func()
}

// New wires the analysis pipeline. observer may be nil.
func New(ctx context.Context, cfg config.Config, observer ports.PipelineObserver) (*App, error) {
	app := &App{Config: cfg}

	journal, err := app.openJournal(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Journal = journal

	registry := llm.NewRegistry(ProviderSnapshot(cfg), LLMRetryConfig(cfg))
	app.Registry = registry

	companyContext, err := usecase.LoadCompanyContext(cfg.CompanyContextPath)
	if err != nil {
		slog.Warn("company_context_unavailable", "path", cfg.CompanyContextPath, "error", err)
	}

	parser := parsing.New()
	app.Analyzer = usecase.NewAnalyzeDocumentUseCase(
		validation.New(cfg.MaxFileSizeBytes),
		httpfetch.New(DownloadConfig(cfg)),
		extractor.NewDispatcher(),
		registry,
		parser,
		journal,
		observer,
		usecase.AnalyzeConfig{
			Timeout:      cfg.AnalyzeTimeout,
			MaxTextChars: cfg.MaxTextChars,
		},
	)
	app.Providers = usecase.NewProviderAdminUseCase(registry, cfg.ProviderStatusTimeout)
	app.Workflow = usecase.NewWorkflowUseCase(registry, parser)
	app.Chat = usecase.NewChatUseCase(registry, app.Analyzer, companyContext)
	app.Tasks = usecase.NewTaskRouter(app.Analyzer, app.Workflow, app.Chat)

	slog.Info("pipeline_ready",
		"provider", registry.Snapshot().Active,
		"journal", journalKind(cfg),
		"max_file_size", cfg.MaxFileSizeBytes,
	)
	return app, nil
}

func (a *App) openJournal(ctx context.Context) (ports.AnalysisJournal, error) {
	if strings.TrimSpace(a.Config.JournalPostgresDSN) == "" {
		return inmemory.NewJournal(a.Config.JournalMemoryCapacity), nil
	}
	db, err := postgres.OpenDB(a.Config.JournalPostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	journal := postgres.NewAnalysisJournal(db)
	if err := journal.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure journal schema: %w", err)
	}
	return journal, nil
}

// NewWorker connects to NATS and builds the task worker on top of the app's
// task router.
func (a *App) NewWorker(observer nats.TaskObserver) (*nats.TaskWorker, error) {
	cfg := a.Config
	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		Name:               cfg.AppName + " worker",
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	a.closers = append(a.closers, queue.Close)

	decoder, err := nats.NewEnvelopeDecoder()
	if err != nil {
		return nil, fmt.Errorf("init task decoder: %w", err)
	}

	return nats.NewTaskWorker(queue, decoder, a.Tasks, observer, nats.WorkerConfig{
		Service:       cfg.AppName,
		TaskSubject:   cfg.NATSTaskSubject,
		ResultSubject: cfg.NATSResultSubject,
		RetrySubject:  cfg.NATSRetrySubject,
		DLQSubject:    cfg.NATSDLQSubject,
		QueueGroup:    cfg.NATSQueueGroup,
		RetryDelay:    cfg.NATSRetryDelay,
		MaxRetries:    cfg.NATSMaxRetries,
		TaskTimeout:   cfg.TaskTimeout,
	}), nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ProviderSnapshot maps configuration onto the initial provider snapshot.
// "disabled" and unknown names fall back to mock.
func ProviderSnapshot(cfg config.Config) domain.ProviderSnapshot {
	active, ok := domain.ParseProvider(cfg.LLMProvider)
	if !ok {
		if !strings.EqualFold(strings.TrimSpace(cfg.LLMProvider), llm.ProviderDisabled) && cfg.LLMProvider != "" {
			slog.Warn("unknown_llm_provider", "provider", cfg.LLMProvider, "fallback", domain.ProviderMock)
		}
		active = domain.ProviderMock
	}
	return domain.ProviderSnapshot{
		Active: active,
		Gemini: domain.GeminiSettings{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		},
		Groq: domain.GroqSettings{
			APIKey:  cfg.GroqAPIKey,
			Model:   cfg.GroqModel,
			BaseURL: cfg.GroqBaseURL,
		},
		Ollama: domain.OllamaSettings{
			BaseURL: cfg.OllamaBaseURL,
			Model:   cfg.OllamaModel,
		},
	}
}

// DownloadConfig keeps the 1s, 2s, 4s shape of the download schedule scaled to
// the configured initial backoff.
func DownloadConfig(cfg config.Config) httpfetch.Config {
	retry := resilience.DownloadConfig()
	if cfg.DownloadMaxAttempts > 0 {
		retry.RetryMaxAttempts = cfg.DownloadMaxAttempts
	}
	if cfg.DownloadInitialBackoff > 0 {
		retry.RetrySchedule = resilience.ScheduleFrom(cfg.DownloadInitialBackoff, 2, retry.RetryMaxAttempts)
	}
	return httpfetch.Config{
		AttemptTimeout: cfg.DownloadTimeout,
		MaxFileSize:    cfg.MaxFileSizeBytes,
		Retry:          retry,
	}
}

func LLMRetryConfig(cfg config.Config) resilience.Config {
	retry := llm.DefaultRetryConfig()
	if cfg.LLMMaxAttempts > 0 {
		retry.RetryMaxAttempts = cfg.LLMMaxAttempts
	}
	if cfg.LLMInitialBackoff > 0 {
		retry.RetryInitialBackoff = cfg.LLMInitialBackoff
		retry.RetryMaxBackoff = 4 * cfg.LLMInitialBackoff
	}
	return retry
}

func journalKind(cfg config.Config) string {
	if strings.TrimSpace(cfg.JournalPostgresDSN) == "" {
		return "memory"
	}
	return "postgres"
}
