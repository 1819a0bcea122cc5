package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/engine"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
)

// DocumentUseCase analyzes text that was already extracted by the caller and
// serves the stored records.
type DocumentUseCase struct {
	records          ports.DocumentRecordRepository
	engine           *engine.Engine
	knownInternalIDs []string
}

func NewDocumentUseCase(records ports.DocumentRecordRepository, eng *engine.Engine, knownInternalIDs []string) *DocumentUseCase {
	return &DocumentUseCase{
		records:          records,
		engine:           eng,
		knownInternalIDs: knownInternalIDs,
	}
}

func (uc *DocumentUseCase) Analyze(ctx context.Context, filename, text string, knownInternalIDs []string) (*domain.DocumentRecord, error) {
	record := uc.engine.Analyze(filename, text, mergeIDs(uc.knownInternalIDs, knownInternalIDs))
	if err := uc.records.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save document record: %w", err)
	}
	return &record, nil
}

func (uc *DocumentUseCase) GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	record, err := uc.records.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return record, nil
}

func (uc *DocumentUseCase) ListUnassigned(ctx context.Context) ([]domain.DocumentRecord, error) {
	records, err := uc.records.ListUnassigned(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unassigned documents: %w", err)
	}
	return records, nil
}

// mergeIDs concatenates the id lists keeping the first occurrence of each
// trimmed, non-empty id.
func mergeIDs(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range lists {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
