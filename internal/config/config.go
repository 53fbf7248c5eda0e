package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string
	AppName  string
	AppEnv   string

	LLMProvider   string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	GroqAPIKey    string
	GroqModel     string
	GroqBaseURL   string
	OllamaBaseURL string
	OllamaModel   string

	MaxFileSizeBytes       int64
	MaxTextChars           int
	DownloadTimeout        time.Duration
	DownloadMaxAttempts    int
	DownloadInitialBackoff time.Duration
	LLMMaxAttempts         int
	LLMInitialBackoff      time.Duration
	AnalyzeTimeout         time.Duration
	ProviderStatusTimeout  time.Duration

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration
	APIAdminToken       string
	MetricsEnabled      bool

	NATSURL           string
	NATSTaskSubject   string
	NATSResultSubject string
	NATSRetrySubject  string
	NATSDLQSubject    string
	NATSQueueGroup    string
	NATSRetryDelay    time.Duration
	NATSMaxRetries    int
	TaskTimeout       time.Duration

	JournalPostgresDSN    string
	JournalMemoryCapacity int

	CompanyContextPath string
	WorkerMetricsPort  string
}

// Load reads configuration from the environment. When CONFIG_PATH points to a
// YAML file of KEY: value pairs, its values are used for keys the environment
// leaves unset.
func Load() (Config, error) {
	overlay, err := readOverlay(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return Config{}, err
	}
	s := source{overlay: overlay}

	return Config{
		APIPort:  s.mustEnv("API_PORT", "8000"),
		LogLevel: s.mustEnv("LOG_LEVEL", "info"),
		AppName:  s.mustEnv("APP_NAME", "AI Service"),
		AppEnv:   s.mustEnv("APP_ENV", "dev"),

		LLMProvider:   s.mustEnv("LLM_PROVIDER", "mock"),
		GeminiAPIKey:  s.mustEnv("GEMINI_API_KEY", ""),
		GeminiModel:   s.mustEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: s.mustEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GroqAPIKey:    s.mustEnv("GROQ_API_KEY", ""),
		GroqModel:     s.mustEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqBaseURL:   s.mustEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OllamaBaseURL: s.mustEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   s.mustEnv("OLLAMA_MODEL", "llama3.1:8b"),

		MaxFileSizeBytes:       s.mustEnvInt64("MAX_FILE_SIZE_BYTES", 50*1024*1024),
		MaxTextChars:           s.mustEnvInt("MAX_TEXT_CHARS", 80_000),
		DownloadTimeout:        s.mustEnvDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
		DownloadMaxAttempts:    s.mustEnvInt("DOWNLOAD_MAX_ATTEMPTS", 3),
		DownloadInitialBackoff: s.mustEnvDuration("DOWNLOAD_INITIAL_BACKOFF", 1*time.Second),
		LLMMaxAttempts:         s.mustEnvInt("LLM_MAX_ATTEMPTS", 3),
		LLMInitialBackoff:      s.mustEnvDuration("LLM_INITIAL_BACKOFF", 1*time.Second),
		AnalyzeTimeout:         s.mustEnvDuration("ANALYZE_TIMEOUT", 120*time.Second),
		ProviderStatusTimeout:  s.mustEnvDuration("PROVIDER_STATUS_TIMEOUT", 5*time.Second),

		APIRateLimitRPS:     s.mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:   s.mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:      s.mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIBackpressureWait: s.mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),
		APIAdminToken:       s.mustEnv("API_ADMIN_TOKEN", ""),
		MetricsEnabled:      s.mustEnvBool("METRICS_ENABLED", true),

		NATSURL:           s.mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSTaskSubject:   s.mustEnv("NATS_TASK_SUBJECT", "ai_tasks"),
		NATSResultSubject: s.mustEnv("NATS_RESULT_SUBJECT", "dockflow.core.ai_results"),
		NATSRetrySubject:  s.mustEnv("NATS_RETRY_SUBJECT", "ai_tasks.retry"),
		NATSDLQSubject:    s.mustEnv("NATS_DLQ_SUBJECT", "ai_tasks.dlq"),
		NATSQueueGroup:    s.mustEnv("NATS_QUEUE_GROUP", "docflow-ai-workers"),
		NATSRetryDelay:    s.mustEnvDuration("NATS_RETRY_DELAY", 5*time.Second),
		NATSMaxRetries:    s.mustEnvInt("NATS_MAX_RETRIES", 5),
		TaskTimeout:       s.mustEnvDuration("TASK_TIMEOUT", 5*time.Minute),

		JournalPostgresDSN:    s.mustEnv("JOURNAL_POSTGRES_DSN", ""),
		JournalMemoryCapacity: s.mustEnvInt("JOURNAL_MEMORY_CAPACITY", 1000),

		CompanyContextPath: s.mustEnv("COMPANY_CONTEXT_PATH", "company_context.md"),
		WorkerMetricsPort:  s.mustEnv("WORKER_METRICS_PORT", "9090"),
	}, nil
}

func readOverlay(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for key, value := range doc {
		if value == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return out, nil
}

type source struct {
	overlay map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.overlay[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvInt64(key string, fallback int64) int64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("1500ms") or bare milliseconds.
func (s source) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
