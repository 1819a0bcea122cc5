package httpadapter

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/config"
	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

var testTime = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

type ingestFake struct {
	err      error
	gotName  string
	gotMime  string
	gotBytes []byte
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.gotName, f.gotMime, f.gotBytes = filename, mimeType, raw
	return &domain.Submission{
		ID:        "sub-1",
		Filename:  filename,
		MimeType:  mimeType,
		Status:    domain.StatusUploaded,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}, nil
}

type submissionsFake struct {
	err error
}

func (f submissionsFake) GetSubmission(_ context.Context, id string) (*domain.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Submission{ID: id, Status: domain.StatusReady, RecordID: "rec-1"}, nil
}

type analyzerFake struct {
	err    error
	gotIDs []string
}

func (f *analyzerFake) Analyze(_ context.Context, filename, _ string, ids []string) (*domain.DocumentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotIDs = ids
	return &domain.DocumentRecord{
		ID:         "rec-1",
		Filename:   filename,
		Kind:       domain.KindCommercialInvoice,
		Confidence: 90,
		Origin:     domain.OriginExternal,
		AnalyzedAt: testTime,
	}, nil
}

type documentsFake struct {
	err error
}

func (f documentsFake) GetDocument(_ context.Context, id string) (*domain.DocumentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.DocumentRecord{ID: id, Kind: domain.KindPackingList, Origin: domain.OriginExternal}, nil
}

func (f documentsFake) ListUnassigned(context.Context) ([]domain.DocumentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.DocumentRecord{{ID: "rec-9", Origin: domain.OriginExternal}}, nil
}

type casesFake struct {
	err      error
	gotIDs   []string
	exported bool
}

func (f *casesFake) BuildCases(_ context.Context, ids []string) ([]domain.CaseFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotIDs = ids
	return []domain.CaseFile{{ID: "case-1", Reference: "EXP-20260314-001", State: domain.ComplianceYellow}}, nil
}

func (f *casesFake) GetCase(_ context.Context, id string) (*domain.CaseFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CaseFile{ID: id, Reference: "EXP-20260314-001"}, nil
}

func (f *casesFake) ListCases(context.Context) ([]domain.CaseFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.CaseFile{{ID: "case-1"}}, nil
}

func (f *casesFake) ValidateCase(context.Context, string) (*domain.ConsistencyResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ConsistencyResult{Consistent: true, Score: 100, Verdict: domain.VerdictApproved, Discrepancies: []domain.Discrepancy{}}, nil
}

func (f *casesFake) ExportCases(_ context.Context, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	f.exported = true
	_, err := w.Write([]byte("PK\x03\x04xlsx"))
	return err
}

type associationsFake struct {
	err    error
	result domain.AssociationResult
}

func (f associationsFake) Suggest(context.Context, string) ([]domain.AssociationSuggestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.AssociationSuggestion{{CaseID: "case-1", Score: 60, Reasons: []string{"importer matches"}}}, nil
}

func (f associationsFake) Associate(_ context.Context, caseID, _ string) (*domain.AssociationResult, *domain.CaseFile, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	result := f.result
	return &result, &domain.CaseFile{ID: caseID}, nil
}

func newTestServices() Services {
	return Services{
		Ingestor:     &ingestFake{},
		Submissions:  submissionsFake{},
		Analyzer:     &analyzerFake{},
		Documents:    documentsFake{},
		Cases:        &casesFake{},
		Associations: associationsFake{result: domain.AssociationResult{Success: true, Outcome: domain.AssociationApproved}},
	}
}

func newTestHandler(t *testing.T, cfg config.Config, svc Services) http.Handler {
	t.Helper()
	handler, err := NewRouter(cfg, svc).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}
