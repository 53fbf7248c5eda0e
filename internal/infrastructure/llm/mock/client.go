package mock

import (
	"context"
	"strings"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

// AnalysisJSON is returned for prompts that ask for the analysis schema.
const AnalysisJSON = `{"doc_type":"contract","language":"ru","semantic_summary":{"purpose":"Оказание услуг по разработке ПО (mock)","audience":"Менеджмент и технические специалисты (mock)","expected_actions":["Подписание договора","Согласование ТЗ"]},"requirements":["Сдача работ по акту","Оплата в течение 10 дней"],"recommendations":["Проверить наличие всех приложений к договору"],"risks":[{"type":"MISSING_SIGNATURE","description":"Электронные подписи сторон не найдены в тексте (mock)","severity":"high"}],"ambiguities":["Не указана конкретная дата начала работ"],"workflow_decision":{"suggested_reviewers":["Legal","CEO"],"approval_complexity":"multi-step","decision_flags":{"can_auto_approve":false,"requires_human_review":true,"missing_mandatory_info":false},"analysis_confidence":0.95}}`

// ReviewJSON is returned for review prompts.
const ReviewJSON = `{"weaknesses":[{"title":"Нет сроков оплаты (mock)","description":"Документ не фиксирует конкретную дату оплаты (mock)","topic_relevance":"general","severity":"medium"}],"recommendation":"Уточнить сроки и приложить спецификацию (mock)","approval_suggestion":"request_changes","confidence":0.8}`

// WorkflowJSON is returned for workflow suggestion prompts.
const WorkflowJSON = `{"steps":[{"order":1,"role":"Manager","action":"review"},{"order":2,"role":"Legal","action":"approve"},{"order":3,"role":"CEO","action":"sign"}]}`

const (
	answerPrefix   = "[MOCK LLM ANSWER] "
	echoLimit      = 200
	documentMarker = "\nDOCUMENT:\n"
)

// Client is a deterministic offline provider.
type Client struct{}

func New() *Client {
	return &Client{}
}

func (c *Client) Provider() domain.Provider {
	return domain.ProviderMock
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	head := instructions(prompt)
	switch {
	case strings.Contains(head, `"weaknesses"`):
		return ReviewJSON, nil
	case strings.Contains(head, `"doc_type"`) || strings.Contains(head, "JSON schema"):
		return AnalysisJSON, nil
	case strings.Contains(head, "approval workflow"):
		return WorkflowJSON, nil
	default:
		return echo(prompt), nil
	}
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return echo(prompt), nil
}

// instructions drops the document body so its text cannot steer the reply.
func instructions(prompt string) string {
	if before, _, ok := strings.Cut(prompt, documentMarker); ok {
		return before
	}
	return prompt
}

func echo(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > echoLimit {
		runes = runes[:echoLimit]
	}
	return answerPrefix + string(runes)
}
