package domain

import "time"

const (
	MaxFileSizeBytes = 50 * 1024 * 1024
	MaxURLLength     = 2048
	MaxTextChars     = 80_000
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	default:
		return false
	}
}

type Stage string

const (
	StageValidating  Stage = "validating"
	StageDownloading Stage = "downloading"
	StageExtracting  Stage = "extracting"
	StageGenerating  Stage = "generating"
	StageParsing     Stage = "parsing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

type AnalysisRequest struct {
	DocumentID   int64    `json:"document_id,omitempty"`
	VersionID    int64    `json:"version_id,omitempty"`
	URL          string   `json:"file_url,omitempty"`
	FileSize     int64    `json:"file_size,omitempty"`
	Checksum     string   `json:"checksum,omitempty"`
	Priority     Priority `json:"priority,omitempty"`
	MimeType     string   `json:"mime_type,omitempty"`
	FileName     string   `json:"file_name,omitempty"`
	ServiceToken string   `json:"service_token,omitempty"`
	Text         string   `json:"text,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	Topic        string   `json:"topic,omitempty"`
}

type DownloadedFile struct {
	Bytes            []byte
	ActualSize       int64
	ComputedChecksum string
	MimeType         string
	Attempts         int
}

type ExtractedText struct {
	Text       string
	SourceMime string
}

type LlmResult struct {
	RawText  string
	Provider Provider
	Latency  time.Duration
}

type AnalysisResult struct {
	RequestID    string         `json:"request_id"`
	ParsedJSON   map[string]any `json:"result"`
	ProviderUsed string         `json:"provider_used"`
	Checksum     string         `json:"checksum,omitempty"`
	Truncated    bool           `json:"truncated,omitempty"`
}

type JournalStatus string

const (
	JournalSucceeded JournalStatus = "succeeded"
	JournalFailed    JournalStatus = "failed"
)

// JournalEntry is the audit record of one pipeline run. It never carries
// document bytes or model output.
type JournalEntry struct {
	RequestID  string        `json:"request_id"`
	Operation  string        `json:"operation"`
	DocumentID int64         `json:"document_id,omitempty"`
	VersionID  int64         `json:"version_id,omitempty"`
	URL        string        `json:"file_url,omitempty"`
	Checksum   string        `json:"checksum,omitempty"`
	Provider   string        `json:"provider,omitempty"`
	Status     JournalStatus `json:"status"`
	Stage      Stage         `json:"stage"`
	ErrorCode  string        `json:"error_code,omitempty"`
	ErrorText  string        `json:"error,omitempty"`
	ElapsedMS  int64         `json:"elapsed_ms"`
	CreatedAt  time.Time     `json:"created_at"`
}
