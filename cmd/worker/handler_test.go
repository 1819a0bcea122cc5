package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/observability/metrics"
)

type guardFake struct {
	claimed  map[string]bool
	claimErr error
	released []string
}

func (g *guardFake) Claim(_ context.Context, key string) (bool, error) {
	if g.claimErr != nil {
		return false, g.claimErr
	}
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func (g *guardFake) Release(_ context.Context, key string) error {
	delete(g.claimed, key)
	g.released = append(g.released, key)
	return nil
}

type processorFake struct {
	calls int
	err   error
}

func (p *processorFake) Process(_ context.Context, id string) (*domain.DocumentRecord, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &domain.DocumentRecord{ID: "rec-" + id, Kind: domain.KindPackingList, Confidence: 60}, nil
}

type submissionsFake struct{}

func (submissionsFake) GetSubmission(_ context.Context, id string) (*domain.Submission, error) {
	return &domain.Submission{ID: id, CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}, nil
}

func newHandler(processor *processorFake, guard *guardFake) *submissionHandler {
	return &submissionHandler{
		processor:   processor,
		submissions: submissionsFake{},
		guard:       guard,
		metrics:     metrics.NewWorkerMetrics(serviceName),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:     time.Second,
		now:         func() time.Time { return time.Date(2026, 3, 14, 10, 0, 5, 0, time.UTC) },
	}
}

func TestHandlerSkipsDuplicateDelivery(t *testing.T) {
	processor := &processorFake{}
	h := newHandler(processor, &guardFake{claimed: map[string]bool{}})

	if err := h.Handle(context.Background(), "sub-1"); err != nil {
		t.Fatalf("first Handle() error = %v", err)
	}
	if err := h.Handle(context.Background(), "sub-1"); err != nil {
		t.Fatalf("second Handle() error = %v", err)
	}
	if processor.calls != 1 {
		t.Fatalf("expected one processing call, got %d", processor.calls)
	}
}

func TestHandlerReleasesClaimOnFailure(t *testing.T) {
	processor := &processorFake{err: domain.WrapError(domain.ErrTemporary, "extract", errors.New("disk busy"))}
	guard := &guardFake{claimed: map[string]bool{}}
	h := newHandler(processor, guard)

	if err := h.Handle(context.Background(), "sub-2"); err == nil {
		t.Fatalf("expected processing error")
	}
	if len(guard.released) != 1 || guard.released[0] != "sub-2" {
		t.Fatalf("expected claim release, got %v", guard.released)
	}
	if guard.claimed["sub-2"] {
		t.Fatalf("claim must be gone so a redelivery can retry")
	}
}

func TestHandlerProcessesWhenGuardUnavailable(t *testing.T) {
	processor := &processorFake{}
	h := newHandler(processor, &guardFake{claimed: map[string]bool{}, claimErr: errors.New("redis down")})

	if err := h.Handle(context.Background(), "sub-3"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if processor.calls != 1 {
		t.Fatalf("expected processing despite guard outage, got %d calls", processor.calls)
	}
}
