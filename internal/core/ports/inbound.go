package ports

import (
	"context"
	"io"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

// SubmissionIngestor accepts uploads for asynchronous analysis.
type SubmissionIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Submission, error)
}

// SubmissionReader is the read model for upload state.
type SubmissionReader interface {
	GetSubmission(ctx context.Context, id string) (*domain.Submission, error)
}

// SubmissionProcessor is the inbound contract for the worker.
type SubmissionProcessor interface {
	ProcessByID(ctx context.Context, submissionID string) error
}

// DocumentAnalyzer classifies already extracted text synchronously.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, filename, text string, knownInternalIDs []string) (*domain.DocumentRecord, error)
}

// DocumentReader is the read model for analyzed documents.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error)
	ListUnassigned(ctx context.Context) ([]domain.DocumentRecord, error)
}

// CaseService builds, reads and validates case files.
type CaseService interface {
	BuildCases(ctx context.Context, documentIDs []string) ([]domain.CaseFile, error)
	GetCase(ctx context.Context, id string) (*domain.CaseFile, error)
	ListCases(ctx context.Context) ([]domain.CaseFile, error)
	ValidateCase(ctx context.Context, id string) (*domain.ConsistencyResult, error)
	ExportCases(ctx context.Context, w io.Writer) error
}

// AssociationService suggests and vets homes for orphan documents.
type AssociationService interface {
	Suggest(ctx context.Context, documentID string) ([]domain.AssociationSuggestion, error)
	Associate(ctx context.Context, caseID, documentID string) (*domain.AssociationResult, *domain.CaseFile, error)
}
