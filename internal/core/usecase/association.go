package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/engine"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
)

// AssociationUseCase finds and vets a case file for a document that was left
// out of aggregation.
type AssociationUseCase struct {
	records ports.DocumentRecordRepository
	cases   ports.CaseRepository
	engine  *engine.Engine
}

func NewAssociationUseCase(records ports.DocumentRecordRepository, cases ports.CaseRepository, eng *engine.Engine) *AssociationUseCase {
	return &AssociationUseCase{
		records: records,
		cases:   cases,
		engine:  eng,
	}
}

func (uc *AssociationUseCase) Suggest(ctx context.Context, documentID string) ([]domain.AssociationSuggestion, error) {
	record, err := uc.records.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	cases, err := uc.cases.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return uc.engine.Suggest(*record, cases), nil
}

// Associate vets the document against the case and attaches it on approval.
// A rejection leaves both untouched and returns the unchanged case.
func (uc *AssociationUseCase) Associate(ctx context.Context, caseID, documentID string) (*domain.AssociationResult, *domain.CaseFile, error) {
	record, err := uc.records.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get document: %w", err)
	}
	target, err := uc.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, nil, fmt.Errorf("get case: %w", err)
	}
	if err := uc.ensureUnassigned(ctx, documentID); err != nil {
		return nil, nil, err
	}

	result := uc.engine.VetAssociation(*record, *target)
	if result.Outcome != domain.AssociationApproved {
		return &result, target, nil
	}

	updated := uc.engine.Aggregator.Attach(*target, *record)
	if err := uc.cases.AttachDocument(ctx, updated, record.ID); err != nil {
		return nil, nil, fmt.Errorf("attach document: %w", err)
	}
	return &result, &updated, nil
}

func (uc *AssociationUseCase) ensureUnassigned(ctx context.Context, documentID string) error {
	cases, err := uc.cases.List(ctx)
	if err != nil {
		return fmt.Errorf("list cases: %w", err)
	}
	for _, c := range cases {
		if c.HasMember(documentID) {
			return domain.WrapError(
				domain.ErrConflict,
				"associate document",
				fmt.Errorf("document %s already belongs to case %s", documentID, c.Reference),
			)
		}
	}
	return nil
}
