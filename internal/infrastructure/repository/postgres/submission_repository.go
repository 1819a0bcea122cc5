package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO submissions (
	id, filename, mime_type, storage_path, status, record_id, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		sub.ID, sub.Filename, sub.MimeType, sub.StoragePath, string(sub.Status), sub.RecordID, sub.Error,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, status, record_id, error_message, created_at, updated_at
FROM submissions
WHERE id = $1
`, id)

	var sub domain.Submission
	var status string
	err := row.Scan(
		&sub.ID, &sub.Filename, &sub.MimeType, &sub.StoragePath, &status, &sub.RecordID, &sub.Error,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	sub.Status = domain.SubmissionStatus(status)
	return &sub, nil
}

func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	return expectOneRow(result, domain.ErrSubmissionNotFound, "update submission status", id)
}

func (r *SubmissionRepository) MarkReady(ctx context.Context, id, recordID string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET status = $2, record_id = $3, error_message = '', updated_at = $4
WHERE id = $1
`, id, string(domain.StatusReady), recordID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark submission ready: %w", err)
	}
	return expectOneRow(result, domain.ErrSubmissionNotFound, "mark submission ready", id)
}

func expectOneRow(result sql.Result, kind error, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(kind, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
