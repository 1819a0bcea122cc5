package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
)

type IngestSubmissionUseCase struct {
	repo    ports.SubmissionRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestSubmissionUseCase(
	repo ports.SubmissionRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestSubmissionUseCase {
	return &IngestSubmissionUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestSubmissionUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Submission, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload submission", errors.New("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	sub := &domain.Submission{
		ID:          id,
		Filename:    filepath.Base(filename),
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission metadata: %w", err)
	}

	if err := uc.queue.PublishSubmissionReceived(ctx, sub.ID); err != nil {
		return nil, fmt.Errorf("publish submission event: %w", err)
	}

	return sub, nil
}

func (uc *IngestSubmissionUseCase) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	sub, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
