package parsing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

const excerptLimit = 200

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

// ParseObject decodes raw model output into a JSON object. Only surrounding
// whitespace and a single Markdown code fence are tolerated.
func (p *Parser) ParseObject(raw string) (map[string]any, error) {
	text := stripFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, newParsingError(raw, errors.New("empty response"))
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, newParsingError(raw, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, newParsingError(raw, errors.New("unexpected data after json value"))
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, newParsingError(raw, fmt.Errorf("top-level json value is %s, want object", jsonKind(value)))
	}
	return obj, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	inner := text[3 : len(text)-3]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		lang := strings.TrimSpace(inner[:nl])
		if lang == "" || isFenceLanguage(lang) {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}

func isFenceLanguage(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func newParsingError(raw string, cause error) error {
	return &domain.JsonParsingError{
		RawTextExcerpt: Excerpt(raw, excerptLimit),
		RawLength:      len(raw),
		Cause:          cause,
	}
}

// Excerpt returns at most limit runes of s.
func Excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Compact renders obj as compact JSON for logs and prompts.
func Compact(obj map[string]any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
