package engine

import (
	"strconv"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

// DecideCompliance is the three-state decision table: missing base documents
// make a case red, missing permits make it yellow, otherwise it is green.
func DecideCompliance(missingDocs, missingPermits []domain.DocumentKind) domain.ComplianceState {
	switch {
	case len(missingDocs) > 0:
		return domain.ComplianceRed
	case len(missingPermits) > 0:
		return domain.ComplianceYellow
	default:
		return domain.ComplianceGreen
	}
}

// PermitTable resolves the permits required for a tariff-code hint.
type PermitTable struct {
	chapters []domain.ChapterRule
}

func NewPermitTable(t *Tables) PermitTable {
	return PermitTable{chapters: t.chapters}
}

// Required returns the permits every matching chapter rule asks for, in rule
// order and without duplicates. An empty or malformed hint requires nothing.
func (p PermitTable) Required(tariffCode string) []domain.DocumentKind {
	digits := digitsOnly(tariffCode)
	if len(digits) < 2 {
		return nil
	}
	chapter, err := strconv.Atoi(digits[:2])
	if err != nil {
		return nil
	}

	var required []domain.DocumentKind
	seen := make(map[domain.DocumentKind]bool)
	for _, rule := range p.chapters {
		if chapter < rule.From || chapter > rule.To {
			continue
		}
		for _, kind := range rule.Requires {
			if seen[kind] {
				continue
			}
			seen[kind] = true
			required = append(required, kind)
		}
	}
	return required
}
