package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
)

type downloaderFake struct {
	calls atomic.Int32
	file  *domain.DownloadedFile
	err   error
}

func (f *downloaderFake) Download(context.Context, domain.AnalysisRequest) (*domain.DownloadedFile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.file, nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(_ context.Context, file *domain.DownloadedFile) (*domain.ExtractedText, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ExtractedText{Text: f.text, SourceMime: file.MimeType}, nil
}

type clientFake struct {
	provider domain.Provider
	answer   string
	err      error
	block    bool

	mu      sync.Mutex
	prompts []string
}

func (c *clientFake) Provider() domain.Provider { return c.provider }

func (c *clientFake) Generate(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	if c.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if c.err != nil {
		return "", c.err
	}
	return c.answer, nil
}

func (c *clientFake) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.Generate(ctx, prompt)
}

func (c *clientFake) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

type factoryFake struct {
	mu        sync.Mutex
	snapshot  domain.ProviderSnapshot
	clients   map[domain.Provider]ports.LLMClient
	buildErrs map[domain.Provider]error
	resolved  []string
}

func newFactoryFake(active ports.LLMClient) *factoryFake {
	return &factoryFake{
		snapshot: domain.ProviderSnapshot{Active: active.Provider()},
		clients:  map[domain.Provider]ports.LLMClient{active.Provider(): active},
	}
}

func (f *factoryFake) Resolve(override string) (ports.LLMClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, override)
	name := domain.Provider(override)
	if override == "" {
		name = f.snapshot.Active
	}
	client, ok := f.clients[name]
	if !ok {
		return nil, errors.Join(domain.ErrInvalidInput, errors.New("unknown provider"))
	}
	return client, nil
}

func (f *factoryFake) New(provider domain.Provider) (ports.LLMClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.buildErrs[provider]; err != nil {
		return nil, err
	}
	client, ok := f.clients[provider]
	if !ok {
		return nil, domain.ErrNotConfigured
	}
	return client, nil
}

func (f *factoryFake) Snapshot() domain.ProviderSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *factoryFake) SetActive(provider domain.Provider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[provider]; !ok {
		return errors.Join(domain.ErrInvalidInput, domain.ErrNotConfigured)
	}
	f.snapshot.Active = provider
	return nil
}

type journalFake struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (j *journalFake) Record(_ context.Context, entry domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *journalFake) GetByRequestID(_ context.Context, id string) (*domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.entries {
		if j.entries[i].RequestID == id {
			entry := j.entries[i]
			return &entry, nil
		}
	}
	return nil, &domain.DocumentNotFoundError{Resource: "analysis", ID: id}
}

func (j *journalFake) last() domain.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entries[len(j.entries)-1]
}

type stageObservation struct {
	operation string
	stage     domain.Stage
	err       error
}

type observerFake struct {
	mu       sync.Mutex
	stages   []stageObservation
	llmCalls int
}

func (o *observerFake) ObserveStage(operation string, stage domain.Stage, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stageObservation{operation: operation, stage: stage, err: err})
}

func (o *observerFake) ObserveLLMCall(domain.Provider, time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.llmCalls++
}

type parserFake struct{}

func (parserFake) ParseObject(raw string) (map[string]any, error) {
	if raw == "" || raw[0] != '{' {
		return nil, &domain.JsonParsingError{RawTextExcerpt: raw, RawLength: len(raw), Cause: errors.New("not an object")}
	}
	return map[string]any{"raw": raw}, nil
}
