package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

// SubmissionRepository persists upload state until the worker produces a record.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) error
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, errMessage string) error
	MarkReady(ctx context.Context, id, recordID string) error
}

// DocumentRecordRepository stores immutable analysis results.
type DocumentRecordRepository interface {
	Save(ctx context.Context, rec domain.DocumentRecord) error
	GetByID(ctx context.Context, id string) (*domain.DocumentRecord, error)
	// ListUnassigned returns external records that belong to no case file.
	ListUnassigned(ctx context.Context) ([]domain.DocumentRecord, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.DocumentRecord, error)
}

// CaseRepository persists case files and their membership.
type CaseRepository interface {
	CreateCases(ctx context.Context, cases []domain.CaseFile) error
	GetByID(ctx context.Context, id string) (*domain.CaseFile, error)
	List(ctx context.Context) ([]domain.CaseFile, error)
	SaveValidation(ctx context.Context, caseID string, result domain.ConsistencyResult) error
	// AttachDocument stores updated derived fields and appends recordID as its last member.
	AttachDocument(ctx context.Context, updated domain.CaseFile, recordID string) error
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes submission events.
type MessageQueue interface {
	PublishSubmissionReceived(ctx context.Context, submissionID string) error
	SubscribeSubmissionReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor turns a stored upload into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, sub *domain.Submission) (string, error)
}

// DeliveryGuard suppresses duplicate processing of redelivered messages.
type DeliveryGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// CaseExporter renders case files into a downloadable report.
type CaseExporter interface {
	ExportCases(ctx context.Context, cases []domain.CaseFile, w io.Writer) error
}
