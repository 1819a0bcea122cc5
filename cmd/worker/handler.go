package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
	"github.com/kirillkom/trade-compliance-engine/internal/observability/metrics"
)

const serviceName = "worker"

type submissionProcessor interface {
	Process(ctx context.Context, submissionID string) (*domain.DocumentRecord, error)
}

// submissionHandler processes one delivered submission id at most once per
// guard TTL. A guard outage degrades to at-least-once processing.
type submissionHandler struct {
	processor   submissionProcessor
	submissions ports.SubmissionReader
	guard       ports.DeliveryGuard
	metrics     *metrics.WorkerMetrics
	logger      *slog.Logger
	timeout     time.Duration
	now         func() time.Time
}

func (h *submissionHandler) Handle(ctx context.Context, submissionID string) error {
	claimed, err := h.guard.Claim(ctx, submissionID)
	if err != nil {
		h.logger.Warn("delivery_guard_unavailable", "submission_id", submissionID, "error", err)
		claimed = true
	}
	if !claimed {
		h.metrics.RecordDuplicate(serviceName)
		h.logger.Info("submission_duplicate_skipped", "submission_id", submissionID)
		return nil
	}

	if sub, err := h.submissions.GetSubmission(ctx, submissionID); err == nil {
		h.metrics.ObserveQueueLag(serviceName, h.now().Sub(sub.CreatedAt))
	}

	processCtx, cancel := context.WithCancel(ctx)
	if h.timeout > 0 {
		processCtx, cancel = context.WithTimeout(ctx, h.timeout)
	}
	defer cancel()

	h.metrics.StartSubmission()
	start := h.now()
	record, err := h.processor.Process(processCtx, submissionID)
	h.metrics.FinishSubmission(serviceName, h.now().Sub(start), err)
	if err != nil {
		if releaseErr := h.guard.Release(context.WithoutCancel(ctx), submissionID); releaseErr != nil {
			h.logger.Warn("delivery_guard_release_failed", "submission_id", submissionID, "error", releaseErr)
		}
		h.logger.Error("submission_failed",
			"submission_id", submissionID,
			"invalid_input", domain.IsKind(err, domain.ErrInvalidInput),
			"error", err,
		)
		return err
	}

	h.metrics.RecordClassification(serviceName, string(record.Kind), record.Confidence)
	h.logger.Info("submission_processed",
		"submission_id", submissionID,
		"record_id", record.ID,
		"kind", record.Kind,
		"confidence", record.Confidence,
		"origin", record.Origin,
	)
	return nil
}
