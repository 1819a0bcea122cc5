package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/engine"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
)

type ProcessSubmissionUseCase struct {
	submissions      ports.SubmissionRepository
	records          ports.DocumentRecordRepository
	extractor        ports.TextExtractor
	engine           *engine.Engine
	knownInternalIDs []string
}

func NewProcessSubmissionUseCase(
	submissions ports.SubmissionRepository,
	records ports.DocumentRecordRepository,
	extractor ports.TextExtractor,
	eng *engine.Engine,
	knownInternalIDs []string,
) *ProcessSubmissionUseCase {
	return &ProcessSubmissionUseCase{
		submissions:      submissions,
		records:          records,
		extractor:        extractor,
		engine:           eng,
		knownInternalIDs: knownInternalIDs,
	}
}

func (uc *ProcessSubmissionUseCase) ProcessByID(ctx context.Context, submissionID string) error {
	_, err := uc.Process(ctx, submissionID)
	return err
}

// Process runs one submission through extraction and analysis and returns the stored record.
// A submission that is already ready returns its existing record, so a redelivered id
// never produces a second record.
func (uc *ProcessSubmissionUseCase) Process(ctx context.Context, submissionID string) (*domain.DocumentRecord, error) {
	sub, err := uc.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("fetch submission by id: %w", err)
	}
	if sub.Status == domain.StatusReady && sub.RecordID != "" {
		record, err := uc.records.GetByID(ctx, sub.RecordID)
		if err != nil {
			return nil, fmt.Errorf("fetch processed record: %w", err)
		}
		return record, nil
	}

	if err := uc.markStatus(ctx, submissionID, domain.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	record, err := uc.processPipeline(ctx, sub)
	if err == nil {
		if readyErr := uc.submissions.MarkReady(ctx, submissionID, record.ID); readyErr != nil {
			err = fmt.Errorf("set status=ready for record %s: %w", record.ID, readyErr)
		}
	}
	if err != nil {
		if failErr := uc.markFailed(ctx, submissionID, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}
	return record, nil
}

func (uc *ProcessSubmissionUseCase) processPipeline(ctx context.Context, sub *domain.Submission) (*domain.DocumentRecord, error) {
	text, err := uc.extractText(ctx, sub)
	if err != nil {
		return nil, err
	}

	record := uc.engine.Analyze(sub.Filename, text, uc.knownInternalIDs)
	if err := uc.records.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save document record: %w", err)
	}
	return &record, nil
}

func (uc *ProcessSubmissionUseCase) extractText(ctx context.Context, sub *domain.Submission) (string, error) {
	text, err := uc.extractor.Extract(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *ProcessSubmissionUseCase) markStatus(ctx context.Context, submissionID string, status domain.SubmissionStatus, errMessage string) error {
	return uc.submissions.UpdateStatus(ctx, submissionID, status, errMessage)
}

func (uc *ProcessSubmissionUseCase) markFailed(ctx context.Context, submissionID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, submissionID, domain.StatusFailed, processErr.Error())
}
