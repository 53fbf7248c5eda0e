package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
	"github.com/kirillkom/docflow-ai/internal/infrastructure/resilience"
)

const (
	HeaderRetryCount     = "X-Retry-Count"
	HeaderRetryNotBefore = "X-Retry-Not-Before"
	HeaderLastError      = "X-Last-Error"

	lastErrorLimit = 512
)

type WorkerConfig struct {
	Service       string
	TaskSubject   string
	ResultSubject string
	RetrySubject  string
	DLQSubject    string
	QueueGroup    string
	RetryDelay    time.Duration
	MaxRetries    int
	TaskTimeout   time.Duration
}

// TaskObserver receives worker lifecycle events. *metrics.WorkerMetrics
// implements it.
type TaskObserver interface {
	StartTask()
	FinishTask(service string, taskType domain.TaskType, duration time.Duration, err error)
	RecordRedelivery(service, target string)
	ObserveQueueLag(service string, lag time.Duration)
}

// TaskWorker consumes task envelopes, publishes PROCESSING and final results,
// and republishes messages it could not handle to the retry or dead letter
// subject.
type TaskWorker struct {
	queue    *Queue
	decoder  *EnvelopeDecoder
	handler  ports.TaskHandler
	observer TaskObserver
	cfg      WorkerConfig
	now      func() time.Time
	sleep    resilience.Sleeper
}

func NewTaskWorker(queue *Queue, decoder *EnvelopeDecoder, handler ports.TaskHandler, observer TaskObserver, cfg WorkerConfig) *TaskWorker {
	if cfg.Service == "" {
		cfg.Service = "docflow-worker"
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = "docflow-ai-workers"
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 5 * time.Minute
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &TaskWorker{
		queue:    queue,
		decoder:  decoder,
		handler:  handler,
		observer: observer,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Run subscribes to the task and retry subjects and blocks until ctx is done,
// then drains both subscriptions.
func (w *TaskWorker) Run(ctx context.Context) error {
	if w.queue.conn == nil {
		return fmt.Errorf("nats worker: queue is not connected")
	}

	subs := make([]*nats.Subscription, 0, 2)
	taskSub, err := w.queue.conn.QueueSubscribe(w.cfg.TaskSubject, w.cfg.QueueGroup, func(msg *nats.Msg) {
		w.Handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", w.cfg.TaskSubject, err)
	}
	subs = append(subs, taskSub)

	if w.cfg.RetrySubject != "" {
		retrySub, err := w.queue.conn.QueueSubscribe(w.cfg.RetrySubject, w.cfg.QueueGroup, func(msg *nats.Msg) {
			w.HandleRetry(ctx, msg)
		})
		if err != nil {
			return fmt.Errorf("nats subscribe %s: %w", w.cfg.RetrySubject, err)
		}
		subs = append(subs, retrySub)
	}

	if err := w.queue.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("worker_subscribed",
		"task_subject", w.cfg.TaskSubject,
		"retry_subject", w.cfg.RetrySubject,
		"queue_group", w.cfg.QueueGroup,
	)

	<-ctx.Done()
	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			return fmt.Errorf("nats drain subscription: %w", err)
		}
	}
	if err := w.queue.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// HandleRetry waits until the message's retry time has passed, then handles
// it like a fresh task. Shutdown cuts the wait short.
func (w *TaskWorker) HandleRetry(ctx context.Context, msg *nats.Msg) {
	if raw := msg.Header.Get(HeaderRetryNotBefore); raw != "" {
		if notBefore, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			if wait := notBefore.Sub(w.now()); wait > 0 {
				_ = w.sleep(ctx, wait)
			}
		}
	}
	w.Handle(ctx, msg)
}

// Handle processes one message. Messages already drained at shutdown still
// run to completion.
func (w *TaskWorker) Handle(ctx context.Context, msg *nats.Msg) {
	processCtx := context.WithoutCancel(ctx)
	if err := w.process(processCtx, msg.Data); err != nil {
		w.redeliver(processCtx, msg, err)
	}
}

func (w *TaskWorker) process(ctx context.Context, data []byte) error {
	task, err := w.decoder.Decode(data)
	if err != nil {
		slog.Error("task_envelope_invalid", "error", err)
		return err
	}

	start := w.now()
	w.observer.StartTask()
	if created, parseErr := time.Parse(time.RFC3339Nano, task.CreatedAt); parseErr == nil {
		w.observer.ObserveQueueLag(w.cfg.Service, start.Sub(created))
	}

	replyTo := strings.TrimSpace(task.ReplyTo)
	if replyTo == "" {
		replyTo = w.cfg.ResultSubject
	}

	if err := w.queue.PublishResult(ctx, replyTo, domain.NewTaskResult(task, domain.TaskStatusProcessing, w.now())); err != nil {
		w.observer.FinishTask(w.cfg.Service, task.Type, w.now().Sub(start), err)
		return fmt.Errorf("publish processing status: %w", err)
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.cfg.TaskTimeout)
	payload, handleErr := w.handler.Handle(taskCtx, task)
	cancel()

	result := domain.NewTaskResult(task, task.Type.SuccessStatus(), w.now())
	if handleErr != nil {
		result.Status = domain.TaskStatusError
		result.Error = handleErr.Error()
		result.ErrorCode = domain.ErrorCode(handleErr)
		slog.Warn("task_failed",
			"task_id", task.TaskID,
			"correlation_id", task.CorrelationID,
			"type", string(task.Type),
			"error_code", result.ErrorCode,
			"error", handleErr,
		)
	} else if payload != nil {
		result.Result = payload
	}

	if err := w.queue.PublishResult(ctx, replyTo, result); err != nil {
		w.observer.FinishTask(w.cfg.Service, task.Type, w.now().Sub(start), err)
		return fmt.Errorf("publish task result: %w", err)
	}
	w.observer.FinishTask(w.cfg.Service, task.Type, w.now().Sub(start), handleErr)
	slog.Info("task_completed",
		"task_id", task.TaskID,
		"correlation_id", task.CorrelationID,
		"type", string(task.Type),
		"status", string(result.Status),
		"elapsed_ms", w.now().Sub(start).Milliseconds(),
	)
	return nil
}

// redeliver republishes msg to the retry subject with an incremented retry
// count, or to the dead letter subject once the count exceeds MaxRetries.
func (w *TaskWorker) redeliver(ctx context.Context, msg *nats.Msg, cause error) {
	count := RetryCount(msg.Header) + 1

	target, kind := w.cfg.RetrySubject, "retry"
	if count > w.cfg.MaxRetries || target == "" {
		target, kind = w.cfg.DLQSubject, "dlq"
	}
	if target == "" {
		slog.Error("task_dropped", "retry_count", count, "error", cause)
		return
	}

	out := nats.NewMsg(target)
	out.Data = msg.Data
	for key, values := range msg.Header {
		out.Header[key] = append([]string(nil), values...)
	}
	out.Header.Set(HeaderRetryCount, strconv.Itoa(count))
	out.Header.Set(HeaderLastError, truncateHeader(cause.Error()))
	if kind == "retry" {
		out.Header.Set(HeaderRetryNotBefore, w.now().Add(w.cfg.RetryDelay).UTC().Format(time.RFC3339Nano))
	} else {
		out.Header.Del(HeaderRetryNotBefore)
	}

	if err := w.queue.publish(ctx, "nats.redeliver", out); err != nil {
		slog.Error("task_redelivery_failed", "target", target, "retry_count", count, "error", errors.Join(cause, err))
		return
	}
	w.observer.RecordRedelivery(w.cfg.Service, kind)
	slog.Warn("task_redelivered", "target", target, "retry_count", count, "max_retries", w.cfg.MaxRetries, "error", cause)
}

// RetryCount reads the retry counter header; missing or malformed means zero.
func RetryCount(header nats.Header) int {
	if header == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(header.Get(HeaderRetryCount)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func truncateHeader(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= lastErrorLimit {
		return s
	}
	return s[:lastErrorLimit]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopObserver struct{}

func (noopObserver) StartTask() {}

func (noopObserver) FinishTask(string, domain.TaskType, time.Duration, error) {}

func (noopObserver) RecordRedelivery(string, string) {}

func (noopObserver) ObserveQueueLag(string, time.Duration) {}
