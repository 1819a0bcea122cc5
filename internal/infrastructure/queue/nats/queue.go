package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/resilience"
)

const workerQueueGroup = "submission-workers"

// submissionEvent is the payload published for every accepted upload.
type submissionEvent struct {
	SubmissionID string    `json:"submission_id"`
	PublishedAt  time.Time `json:"published_at"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("trade-compliance-engine"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishSubmissionReceived(ctx context.Context, submissionID string) error {
	payload, err := encodeEvent(submissionID, time.Now().UTC())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

// SubscribeSubmissionReceived blocks until ctx is cancelled, then drains the subscription.
func (q *Queue) SubscribeSubmissionReceived(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		event, err := decodeEvent(msg.Data)
		if err != nil {
			q.logger.Error("submission_event_invalid", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event.SubmissionID); err != nil {
			q.logger.Error("submission_handler_failed", "submission_id", event.SubmissionID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(submissionID string, at time.Time) ([]byte, error) {
	if strings.TrimSpace(submissionID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode submission event", errors.New("empty submission id"))
	}
	payload, err := json.Marshal(submissionEvent{SubmissionID: submissionID, PublishedAt: at})
	if err != nil {
		return nil, fmt.Errorf("marshal submission event: %w", err)
	}
	return payload, nil
}

// decodeEvent also accepts a bare id so events queued by older publishers still drain.
func decodeEvent(data []byte) (submissionEvent, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return submissionEvent{}, errors.New("empty message")
	}
	if !strings.HasPrefix(raw, "{") {
		return submissionEvent{SubmissionID: raw}, nil
	}
	var event submissionEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return submissionEvent{}, fmt.Errorf("unmarshal submission event: %w", err)
	}
	if strings.TrimSpace(event.SubmissionID) == "" {
		return submissionEvent{}, errors.New("submission event without id")
	}
	return event, nil
}
