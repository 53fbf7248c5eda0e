package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
)

const (
	OperationAnalyze = "analyze"
	OperationReview  = "review"

	truncationMarker = "\n\n[TRUNCATED]"
)

type AnalyzeConfig struct {
	Timeout      time.Duration
	MaxTextChars int
}

func DefaultAnalyzeConfig() AnalyzeConfig {
	return AnalyzeConfig{
		Timeout:      120 * time.Second,
		MaxTextChars: domain.MaxTextChars,
	}
}

type AnalyzeDocumentUseCase struct {
	validator  ports.RequestValidator
	downloader ports.FileDownloader
	extractor  ports.TextExtractor
	llm        ports.LLMClientFactory
	parser     ports.ResponseParser
	journal    ports.AnalysisJournal
	observer   ports.PipelineObserver
	cfg        AnalyzeConfig
	now        func() time.Time
}

func NewAnalyzeDocumentUseCase(
	validator ports.RequestValidator,
	downloader ports.FileDownloader,
	extractor ports.TextExtractor,
	llm ports.LLMClientFactory,
	parser ports.ResponseParser,
	journal ports.AnalysisJournal,
	observer ports.PipelineObserver,
	cfg AnalyzeConfig,
) *AnalyzeDocumentUseCase {
	def := DefaultAnalyzeConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = def.MaxTextChars
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &AnalyzeDocumentUseCase{
		validator:  validator,
		downloader: downloader,
		extractor:  extractor,
		llm:        llm,
		parser:     parser,
		journal:    journal,
		observer:   observer,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, requestID string, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	return uc.run(ctx, OperationAnalyze, requestID, req, func(text string) string {
		return buildAnalysisPrompt(text)
	})
}

func (uc *AnalyzeDocumentUseCase) Review(ctx context.Context, requestID string, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	return uc.run(ctx, OperationReview, requestID, req, func(text string) string {
		return buildReviewPrompt(text, req.Topic)
	})
}

// pipelineRun carries per-request state. It is never shared between requests.
type pipelineRun struct {
	operation string
	requestID string
	req       domain.AnalysisRequest
	started   time.Time
	stage     domain.Stage
	checksum  string
	provider  domain.Provider
}

func (uc *AnalyzeDocumentUseCase) run(
	ctx context.Context,
	operation string,
	requestID string,
	req domain.AnalysisRequest,
	prompt func(text string) string,
) (*domain.AnalysisResult, error) {
	if strings.TrimSpace(requestID) == "" {
		requestID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	run := &pipelineRun{
		operation: operation,
		requestID: requestID,
		req:       req,
		started:   uc.now(),
	}
	slog.Info("analysis_started",
		"request_id", requestID,
		"operation", operation,
		"document_id", req.DocumentID,
		"version_id", req.VersionID,
		"has_url", req.URL != "",
		"has_text", req.Text != "",
	)

	text, truncated, err := uc.documentText(ctx, run)
	if err != nil {
		return nil, uc.fail(ctx, run, err)
	}

	var client ports.LLMClient
	err = uc.stage(run, domain.StageGenerating, func() error {
		var resolveErr error
		client, resolveErr = uc.llm.Resolve(req.Provider)
		return resolveErr
	})
	if err != nil {
		return nil, uc.fail(ctx, run, err)
	}
	run.provider = client.Provider()

	var raw string
	err = uc.stage(run, domain.StageGenerating, func() error {
		callStart := uc.now()
		var genErr error
		raw, genErr = client.Generate(ctx, prompt(text))
		uc.observer.ObserveLLMCall(run.provider, uc.now().Sub(callStart), genErr)
		return genErr
	})
	if err != nil {
		return nil, uc.fail(ctx, run, err)
	}

	var parsed map[string]any
	err = uc.stage(run, domain.StageParsing, func() error {
		var parseErr error
		parsed, parseErr = uc.parser.ParseObject(raw)
		return parseErr
	})
	if err != nil {
		return nil, uc.fail(ctx, run, err)
	}

	run.stage = domain.StageDone
	elapsed := uc.now().Sub(run.started)
	uc.record(ctx, run, elapsed, nil)
	slog.Info("analysis_completed",
		"request_id", requestID,
		"operation", operation,
		"provider", string(run.provider),
		"truncated", truncated,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return &domain.AnalysisResult{
		RequestID:    requestID,
		ParsedJSON:   parsed,
		ProviderUsed: string(run.provider),
		Checksum:     run.checksum,
		Truncated:    truncated,
	}, nil
}

// DocumentText runs validation, download and extraction only. Chat uses it to
// ground answers on a document.
func (uc *AnalyzeDocumentUseCase) DocumentText(ctx context.Context, requestID string, req domain.AnalysisRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	run := &pipelineRun{operation: "document_text", requestID: requestID, req: req, started: uc.now()}
	text, _, err := uc.documentText(ctx, run)
	if err != nil {
		return "", uc.wrap(ctx, run, err)
	}
	return text, nil
}

func (uc *AnalyzeDocumentUseCase) documentText(ctx context.Context, run *pipelineRun) (string, bool, error) {
	if err := uc.stage(run, domain.StageValidating, func() error {
		return uc.validator.Validate(run.req)
	}); err != nil {
		return "", false, err
	}

	var text string
	if strings.TrimSpace(run.req.URL) == "" {
		text = strings.TrimSpace(run.req.Text)
	} else {
		var file *domain.DownloadedFile
		if err := uc.stage(run, domain.StageDownloading, func() error {
			var dlErr error
			file, dlErr = uc.downloader.Download(ctx, run.req)
			return dlErr
		}); err != nil {
			return "", false, err
		}
		run.checksum = file.ComputedChecksum

		var extracted *domain.ExtractedText
		if err := uc.stage(run, domain.StageExtracting, func() error {
			var exErr error
			extracted, exErr = uc.extractor.Extract(ctx, file)
			return exErr
		}); err != nil {
			return "", false, err
		}
		text = extracted.Text
	}

	text, truncated := Truncate(text, uc.cfg.MaxTextChars)
	return text, truncated, nil
}

func (uc *AnalyzeDocumentUseCase) stage(run *pipelineRun, stage domain.Stage, fn func() error) error {
	run.stage = stage
	start := uc.now()
	err := fn()
	uc.observer.ObserveStage(run.operation, stage, uc.now().Sub(start), err)
	return err
}

func (uc *AnalyzeDocumentUseCase) wrap(ctx context.Context, run *pipelineRun, err error) *domain.StageError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s exceeded %s at stage %s: %v", context.DeadlineExceeded, run.operation, uc.cfg.Timeout, run.stage, err)
	}
	return &domain.StageError{
		RequestID: run.requestID,
		Stage:     run.stage,
		Elapsed:   uc.now().Sub(run.started),
		Err:       err,
	}
}

func (uc *AnalyzeDocumentUseCase) fail(ctx context.Context, run *pipelineRun, err error) error {
	stageErr := uc.wrap(ctx, run, err)
	slog.Error("analysis_stage_failed",
		"request_id", run.requestID,
		"operation", run.operation,
		"stage", string(run.stage),
		"error_code", domain.ErrorCode(stageErr),
		"elapsed_ms", stageErr.Elapsed.Milliseconds(),
		"error", err,
	)
	uc.record(ctx, run, stageErr.Elapsed, stageErr)
	return stageErr
}

func (uc *AnalyzeDocumentUseCase) record(ctx context.Context, run *pipelineRun, elapsed time.Duration, runErr error) {
	if uc.journal == nil {
		return
	}
	entry := domain.JournalEntry{
		RequestID:  run.requestID,
		Operation:  run.operation,
		DocumentID: run.req.DocumentID,
		VersionID:  run.req.VersionID,
		URL:        run.req.URL,
		Checksum:   run.checksum,
		Provider:   string(run.provider),
		Status:     domain.JournalSucceeded,
		Stage:      run.stage,
		ElapsedMS:  elapsed.Milliseconds(),
		CreatedAt:  uc.now().UTC(),
	}
	if runErr != nil {
		entry.Status = domain.JournalFailed
		entry.ErrorCode = domain.ErrorCode(runErr)
		entry.ErrorText = runErr.Error()
	}

	// The request context may already be past its deadline.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := uc.journal.Record(recordCtx, entry); err != nil {
		slog.Warn("analysis_journal_record_failed", "request_id", run.requestID, "error", err)
	}
}

// Truncate caps text at limit runes and appends the truncation marker.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		return text, false
	}
	if len(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	return string(runes[:limit]) + truncationMarker, true
}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, domain.Stage, time.Duration, error) {}

func (noopObserver) ObserveLLMCall(domain.Provider, time.Duration, error) {}
