package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/engine"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
)

type CaseUseCase struct {
	records  ports.DocumentRecordRepository
	cases    ports.CaseRepository
	exporter ports.CaseExporter
	engine   *engine.Engine
}

func NewCaseUseCase(
	records ports.DocumentRecordRepository,
	cases ports.CaseRepository,
	exporter ports.CaseExporter,
	eng *engine.Engine,
) *CaseUseCase {
	return &CaseUseCase{
		records:  records,
		cases:    cases,
		exporter: exporter,
		engine:   eng,
	}
}

// BuildCases groups records into new case files. With no ids the whole
// unassigned pool is used. Reference numbering continues after the cases
// already created today.
func (uc *CaseUseCase) BuildCases(ctx context.Context, documentIDs []string) ([]domain.CaseFile, error) {
	records, err := uc.loadRecords(ctx, documentIDs)
	if err != nil {
		return nil, err
	}

	now := uc.engine.Clock().Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	existing, err := uc.cases.CountCreatedSince(ctx, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("count today's cases: %w", err)
	}

	built := uc.engine.Aggregator.AggregateFrom(records, existing)
	if len(built) == 0 {
		return built, nil
	}
	if err := uc.cases.CreateCases(ctx, built); err != nil {
		return nil, fmt.Errorf("create cases: %w", err)
	}
	return built, nil
}

func (uc *CaseUseCase) loadRecords(ctx context.Context, documentIDs []string) ([]domain.DocumentRecord, error) {
	ids := mergeIDs(documentIDs)
	if len(ids) == 0 {
		records, err := uc.records.ListUnassigned(ctx)
		if err != nil {
			return nil, fmt.Errorf("list unassigned documents: %w", err)
		}
		return records, nil
	}
	records, err := uc.records.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return records, nil
}

func (uc *CaseUseCase) GetCase(ctx context.Context, id string) (*domain.CaseFile, error) {
	c, err := uc.cases.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (uc *CaseUseCase) ListCases(ctx context.Context) ([]domain.CaseFile, error) {
	cases, err := uc.cases.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return cases, nil
}

// ValidateCase cross-checks the case and stores the result as its last validation.
func (uc *CaseUseCase) ValidateCase(ctx context.Context, id string) (*domain.ConsistencyResult, error) {
	c, err := uc.cases.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	result := uc.engine.Validate(*c)
	if err := uc.cases.SaveValidation(ctx, c.ID, result); err != nil {
		return nil, fmt.Errorf("save validation: %w", err)
	}
	return &result, nil
}

func (uc *CaseUseCase) ExportCases(ctx context.Context, w io.Writer) error {
	cases, err := uc.cases.List(ctx)
	if err != nil {
		return fmt.Errorf("list cases: %w", err)
	}
	if err := uc.exporter.ExportCases(ctx, cases, w); err != nil {
		return fmt.Errorf("export cases: %w", err)
	}
	return nil
}
