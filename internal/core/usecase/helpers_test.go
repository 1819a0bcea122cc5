package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/engine"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

type sequenceIDs struct{ n int }

func (s *sequenceIDs) NewID() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testNow }

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	rules := domain.RuleSet{
		Version:        "usecase-test",
		InternalMarker: "TCE-INTERNAL-PIPELINE",
		Kinds: []domain.KindRules{
			{Kind: domain.KindCommercialInvoice, Keywords: []domain.WeightedTerm{{Term: "commercial invoice", Weight: 30}, {Term: "invoice", Weight: 10}}},
			{Kind: domain.KindBillOfLading, Keywords: []domain.WeightedTerm{{Term: "bill of lading", Weight: 30}}},
			{Kind: domain.KindPackingList, Keywords: []domain.WeightedTerm{{Term: "packing list", Weight: 30}}},
		},
		Patterns: []domain.PatternRule{
			{Name: "importer", Field: domain.FieldImporter, Priority: 10, Pattern: `(?im)^\s*importer\s*:\s*(.+?)\s*$`},
			{Name: "invoice-number", Field: domain.FieldDocumentNumber, Priority: 10, Pattern: `(?im)invoice\s*no\s*:\s*([A-Z0-9\-]+)`},
		},
		Chapters: []domain.ChapterRule{
			{Label: "plant products", From: 6, To: 14, Requires: []domain.DocumentKind{domain.KindPhytosanitaryCertificate}},
		},
	}
	eng, err := engine.New(rules, engine.WithIDGenerator(&sequenceIDs{}), engine.WithClock(fixedClock{}))
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return eng
}

func weight(v float64) *float64 { return &v }

func externalRecord(id string, kind domain.DocumentKind, importer string) domain.DocumentRecord {
	return domain.DocumentRecord{
		ID:       id,
		Filename: id + ".txt",
		Kind:     kind,
		Fields:   domain.ExtractedFields{Importer: importer},
		Origin:   domain.OriginExternal,
	}
}

// recordStoreFake keeps records in insertion order; assigned ids are tracked
// so ListUnassigned behaves like the database query.
type recordStoreFake struct {
	order    []string
	byID     map[string]domain.DocumentRecord
	assigned map[string]bool
	saveErr  error
}

func newRecordStore(records ...domain.DocumentRecord) *recordStoreFake {
	f := &recordStoreFake{byID: map[string]domain.DocumentRecord{}, assigned: map[string]bool{}}
	for _, rec := range records {
		f.order = append(f.order, rec.ID)
		f.byID[rec.ID] = rec
	}
	return f
}

func (f *recordStoreFake) Save(_ context.Context, rec domain.DocumentRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.order = append(f.order, rec.ID)
	f.byID[rec.ID] = rec
	return nil
}

func (f *recordStoreFake) GetByID(_ context.Context, id string) (*domain.DocumentRecord, error) {
	rec, ok := f.byID[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document record", errors.New(id))
	}
	return &rec, nil
}

func (f *recordStoreFake) ListUnassigned(context.Context) ([]domain.DocumentRecord, error) {
	out := make([]domain.DocumentRecord, 0)
	for _, id := range f.order {
		rec := f.byID[id]
		if !f.assigned[id] && rec.Origin == domain.OriginExternal {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *recordStoreFake) ListByIDs(_ context.Context, ids []string) ([]domain.DocumentRecord, error) {
	out := make([]domain.DocumentRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok := f.byID[id]
		if !ok {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "list records by id", errors.New(id))
		}
		out = append(out, rec)
	}
	return out, nil
}

type caseStoreFake struct {
	records      *recordStoreFake
	cases        []domain.CaseFile
	createdToday int
	validations  map[string]domain.ConsistencyResult
	attachCalls  int
}

func newCaseStore(records *recordStoreFake, cases ...domain.CaseFile) *caseStoreFake {
	f := &caseStoreFake{records: records, validations: map[string]domain.ConsistencyResult{}}
	for _, c := range cases {
		f.cases = append(f.cases, c)
		for _, m := range c.Members {
			records.assigned[m.ID] = true
		}
	}
	return f
}

func (f *caseStoreFake) CreateCases(_ context.Context, cases []domain.CaseFile) error {
	for _, c := range cases {
		for _, m := range c.Members {
			if f.records.assigned[m.ID] {
				return domain.WrapError(domain.ErrConflict, "assign record", errors.New(m.ID))
			}
		}
	}
	for _, c := range cases {
		for _, m := range c.Members {
			f.records.assigned[m.ID] = true
		}
		f.cases = append(f.cases, c)
	}
	return nil
}

func (f *caseStoreFake) GetByID(_ context.Context, id string) (*domain.CaseFile, error) {
	for _, c := range f.cases {
		if c.ID == id {
			copyCase := c
			return &copyCase, nil
		}
	}
	return nil, domain.WrapError(domain.ErrCaseNotFound, "get case file", errors.New(id))
}

func (f *caseStoreFake) List(context.Context) ([]domain.CaseFile, error) {
	return append([]domain.CaseFile{}, f.cases...), nil
}

func (f *caseStoreFake) SaveValidation(_ context.Context, caseID string, result domain.ConsistencyResult) error {
	for i := range f.cases {
		if f.cases[i].ID == caseID {
			f.validations[caseID] = result
			f.cases[i].LastValidation = &result
			return nil
		}
	}
	return domain.WrapError(domain.ErrCaseNotFound, "save case validation", errors.New(caseID))
}

func (f *caseStoreFake) AttachDocument(_ context.Context, updated domain.CaseFile, recordID string) error {
	f.attachCalls++
	if f.records.assigned[recordID] {
		return domain.WrapError(domain.ErrConflict, "assign record", errors.New(recordID))
	}
	for i := range f.cases {
		if f.cases[i].ID == updated.ID {
			f.cases[i] = updated
			f.records.assigned[recordID] = true
			return nil
		}
	}
	return domain.WrapError(domain.ErrCaseNotFound, "attach document", errors.New(updated.ID))
}

func (f *caseStoreFake) CountCreatedSince(_ context.Context, since time.Time) (int, error) {
	if !since.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)) {
		return 0, fmt.Errorf("unexpected start of day %s", since)
	}
	return f.createdToday, nil
}

type exporterFake struct {
	exported []domain.CaseFile
}

func (f *exporterFake) ExportCases(_ context.Context, cases []domain.CaseFile, w io.Writer) error {
	f.exported = cases
	_, err := io.WriteString(w, fmt.Sprintf("%d cases", len(cases)))
	return err
}
