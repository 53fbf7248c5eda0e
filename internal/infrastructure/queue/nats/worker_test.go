package nats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

type publisherFake struct {
	mu     sync.Mutex
	msgs   []*nats.Msg
	failOn func(msg *nats.Msg) error
}

func (p *publisherFake) PublishMsg(msg *nats.Msg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn != nil {
		if err := p.failOn(msg); err != nil {
			return err
		}
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *publisherFake) onSubject(subject string) []*nats.Msg {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*nats.Msg
	for _, m := range p.msgs {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

type handlerFake struct {
	result map[string]any
	err    error
	calls  int
}

func (h *handlerFake) Handle(context.Context, domain.Task) (map[string]any, error) {
	h.calls++
	return h.result, h.err
}

type observerFake struct {
	started     int
	finished    []error
	redelivered []string
}

func (o *observerFake) StartTask() { o.started++ }

func (o *observerFake) FinishTask(_ string, _ domain.TaskType, _ time.Duration, err error) {
	o.finished = append(o.finished, err)
}

func (o *observerFake) RecordRedelivery(_ string, target string) {
	o.redelivered = append(o.redelivered, target)
}

func (o *observerFake) ObserveQueueLag(string, time.Duration) {}

func testWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Service:       "test",
		TaskSubject:   "ai.tasks",
		ResultSubject: "ai.results",
		RetrySubject:  "ai.tasks.retry",
		DLQSubject:    "ai.tasks.dlq",
		RetryDelay:    5 * time.Second,
		MaxRetries:    2,
	}
}

func newTestWorker(t *testing.T, pub *publisherFake, handler *handlerFake, observer *observerFake) *TaskWorker {
	t.Helper()
	decoder, err := NewEnvelopeDecoder()
	if err != nil {
		t.Fatalf("NewEnvelopeDecoder() error = %v", err)
	}
	w := NewTaskWorker(newQueueWithPublisher(pub, nil), decoder, handler, observer, testWorkerConfig())
	w.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return w
}

func decodeResult(t *testing.T, msg *nats.Msg) domain.TaskResult {
	t.Helper()
	var result domain.TaskResult
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return result
}

func taskMsg(body string) *nats.Msg {
	msg := nats.NewMsg("ai.tasks")
	msg.Data = []byte(body)
	return msg
}

func TestWorkerPublishesProcessingThenSuccess(t *testing.T) {
	pub := &publisherFake{}
	handler := &handlerFake{result: map[string]any{"message": "pong"}}
	observer := &observerFake{}
	w := newTestWorker(t, pub, handler, observer)

	w.Handle(context.Background(), taskMsg(`{"task_id":"t-1","type":"PING","correlation_id":"c-1","schema_version":2}`))

	results := pub.onSubject("ai.results")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first, second := decodeResult(t, results[0]), decodeResult(t, results[1])
	if first.Status != domain.TaskStatusProcessing || second.Status != domain.TaskStatusSuccess {
		t.Fatalf("unexpected statuses: %s, %s", first.Status, second.Status)
	}
	if second.TaskID != "t-1" || second.CorrelationID != "c-1" || second.SchemaVersion != 2 {
		t.Fatalf("result does not echo envelope: %+v", second)
	}
	if second.Result["message"] != "pong" {
		t.Fatalf("unexpected result payload: %v", second.Result)
	}
	if results[1].Header.Get("X-Correlation-Id") != "c-1" {
		t.Fatalf("missing correlation header")
	}
	if observer.started != 1 || len(observer.finished) != 1 || observer.finished[0] != nil {
		t.Fatalf("unexpected observations: %+v", observer)
	}
}

func TestWorkerUsesReplyToAndChatStatus(t *testing.T) {
	pub := &publisherFake{}
	w := newTestWorker(t, pub, &handlerFake{result: map[string]any{"response": "hi"}}, &observerFake{})

	w.Handle(context.Background(), taskMsg(`{"task_id":"t-2","type":"CHAT","reply_to":"chat.replies","payload":{"content":"hi"}}`))

	if n := len(pub.onSubject("ai.results")); n != 0 {
		t.Fatalf("expected no results on default subject, got %d", n)
	}
	replies := pub.onSubject("chat.replies")
	if len(replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(replies))
	}
	if got := decodeResult(t, replies[1]).Status; got != domain.TaskStatusChatResponse {
		t.Fatalf("expected CHAT_RESPONSE, got %s", got)
	}
}

func TestWorkerPublishesErrorResultWithoutRedelivery(t *testing.T) {
	pub := &publisherFake{}
	handler := &handlerFake{err: &domain.StageError{
		Stage: domain.StageDownloading,
		Err:   &domain.FileDownloadError{URL: "https://files.example.com/a.pdf", LastStatus: 503, Attempts: 3},
	}}
	observer := &observerFake{}
	w := newTestWorker(t, pub, handler, observer)

	w.Handle(context.Background(), taskMsg(`{"task_id":"t-3","type":"DOCUMENT_ANALYZE","payload":{"file_url":"https://files.example.com/a.pdf"}}`))

	results := pub.onSubject("ai.results")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	final := decodeResult(t, results[1])
	if final.Status != domain.TaskStatusError || final.ErrorCode != domain.CodeFileDownload || final.Error == "" {
		t.Fatalf("unexpected error result: %+v", final)
	}
	if len(pub.onSubject("ai.tasks.retry")) != 0 || len(pub.onSubject("ai.tasks.dlq")) != 0 {
		t.Fatalf("domain failures must not be redelivered")
	}
	if len(observer.redelivered) != 0 {
		t.Fatalf("unexpected redelivery observations: %v", observer.redelivered)
	}
}

func TestWorkerRedeliversMalformedEnvelope(t *testing.T) {
	pub := &publisherFake{}
	handler := &handlerFake{}
	observer := &observerFake{}
	w := newTestWorker(t, pub, handler, observer)

	w.Handle(context.Background(), taskMsg(`{"type":"NOPE"}`))

	if handler.calls != 0 {
		t.Fatalf("handler must not run for an invalid envelope")
	}
	retries := pub.onSubject("ai.tasks.retry")
	if len(retries) != 1 {
		t.Fatalf("expected one retry message, got %d", len(retries))
	}
	msg := retries[0]
	if got := msg.Header.Get(HeaderRetryCount); got != "1" {
		t.Fatalf("expected retry count 1, got %q", got)
	}
	notBefore, err := time.Parse(time.RFC3339Nano, msg.Header.Get(HeaderRetryNotBefore))
	if err != nil {
		t.Fatalf("parse not-before: %v", err)
	}
	if want := w.now().Add(5 * time.Second); !notBefore.Equal(want) {
		t.Fatalf("expected not-before %s, got %s", want, notBefore)
	}
	if string(msg.Data) != `{"type":"NOPE"}` {
		t.Fatalf("retry must carry the original body")
	}
	if len(observer.redelivered) != 1 || observer.redelivered[0] != "retry" {
		t.Fatalf("unexpected redelivery observations: %v", observer.redelivered)
	}
}

func TestWorkerSendsToDLQAfterMaxRetries(t *testing.T) {
	pub := &publisherFake{}
	w := newTestWorker(t, pub, &handlerFake{}, &observerFake{})

	msg := taskMsg(`not json`)
	msg.Header.Set(HeaderRetryCount, "2")
	w.Handle(context.Background(), msg)

	dlq := pub.onSubject("ai.tasks.dlq")
	if len(dlq) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(dlq))
	}
	if got := dlq[0].Header.Get(HeaderRetryCount); got != "3" {
		t.Fatalf("expected retry count 3, got %q", got)
	}
	if dlq[0].Header.Get(HeaderLastError) == "" {
		t.Fatalf("dead letter must carry the last error")
	}
	if len(pub.onSubject("ai.tasks.retry")) != 0 {
		t.Fatalf("message past max retries must not be retried")
	}
}

func TestWorkerRedeliversWhenResultPublishFails(t *testing.T) {
	pub := &publisherFake{failOn: func(msg *nats.Msg) error {
		if msg.Subject == "ai.results" {
			return nats.ErrConnectionClosed
		}
		return nil
	}}
	observer := &observerFake{}
	w := newTestWorker(t, pub, &handlerFake{result: map[string]any{}}, observer)

	w.Handle(context.Background(), taskMsg(`{"task_id":"t-4","type":"PING"}`))

	if len(pub.onSubject("ai.tasks.retry")) != 1 {
		t.Fatalf("expected publish failure to be retried")
	}
	if len(observer.finished) != 1 || !errors.Is(observer.finished[0], domain.ErrTemporary) {
		t.Fatalf("expected temporary failure observation, got %v", observer.finished)
	}
}

func TestHandleRetryWaitsUntilNotBefore(t *testing.T) {
	pub := &publisherFake{}
	handler := &handlerFake{result: map[string]any{}}
	w := newTestWorker(t, pub, handler, &observerFake{})
	var waited time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	}

	msg := taskMsg(`{"task_id":"t-5","type":"PING"}`)
	msg.Header.Set(HeaderRetryCount, "1")
	msg.Header.Set(HeaderRetryNotBefore, w.now().Add(3*time.Second).Format(time.RFC3339Nano))
	w.HandleRetry(context.Background(), msg)

	if waited != 3*time.Second {
		t.Fatalf("expected 3s wait, got %s", waited)
	}
	if handler.calls != 1 {
		t.Fatalf("expected task to be handled after the wait")
	}
}

func TestRetryCount(t *testing.T) {
	h := nats.Header{}
	if RetryCount(h) != 0 || RetryCount(nil) != 0 {
		t.Fatalf("missing header must count as zero")
	}
	h.Set(HeaderRetryCount, "garbage")
	if RetryCount(h) != 0 {
		t.Fatalf("malformed header must count as zero")
	}
	h.Set(HeaderRetryCount, "4")
	if RetryCount(h) != 4 {
		t.Fatalf("expected 4")
	}
}
