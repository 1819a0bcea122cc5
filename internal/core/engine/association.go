package engine

import (
	"fmt"
	"math"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

const associationWeightTolerance = 0.10

const (
	levelCritical = "CRITICAL: "
	levelWarning  = "WARNING: "
	levelInfo     = "INFO: "
	levelOK       = "OK: "
)

// AssociationValidator re-checks an operator-chosen (document, case) pairing
// independently of its suggestion score.
type AssociationValidator struct{}

func NewAssociationValidator() AssociationValidator { return AssociationValidator{} }

func (AssociationValidator) Validate(doc domain.DocumentRecord, c domain.CaseFile) domain.AssociationResult {
	v := vetting{}

	if c.HasMember(doc.ID) {
		v.critical("document %s already belongs to case %s", doc.ID, c.Reference)
	}

	if IdentityMatch(doc.Fields.Importer, c.Importer) {
		v.ok("importer %q matches case importer %q", doc.Fields.Importer, c.Importer)
	} else {
		v.critical("importer %q does not match case importer %q", doc.Fields.Importer, c.Importer)
	}

	if doc.Kind != domain.KindUnknown && c.HasKind(doc.Kind) {
		v.info("case already holds a %s document; duplicates of a kind are allowed", doc.Kind)
	}

	if doc.Kind == domain.KindCommercialInvoice && normalize(doc.Fields.Exporter) != "" {
		v.checkInvoiceExporter(doc.Fields.Exporter, c.Members)
	}

	if doc.Fields.DeclaredWeightKg != nil {
		v.checkWeight(*doc.Fields.DeclaredWeightKg, c.Members)
	}

	if v.blocked {
		return domain.AssociationResult{
			Success:            false,
			Outcome:            domain.AssociationRejected,
			Details:            v.details,
			ReturnToUnassigned: true,
		}
	}
	return domain.AssociationResult{
		Success: true,
		Outcome: domain.AssociationApproved,
		Details: v.details,
	}
}

type vetting struct {
	details []string
	blocked bool
}

func (v *vetting) line(level, format string, args ...any) {
	v.details = append(v.details, level+fmt.Sprintf(format, args...))
}

func (v *vetting) critical(format string, args ...any) {
	v.blocked = true
	v.line(levelCritical, format, args...)
}

func (v *vetting) warning(format string, args ...any) { v.line(levelWarning, format, args...) }
func (v *vetting) info(format string, args ...any)    { v.line(levelInfo, format, args...) }
func (v *vetting) ok(format string, args ...any)      { v.line(levelOK, format, args...) }

func (v *vetting) checkInvoiceExporter(exporter string, members []domain.DocumentRecord) {
	declared := 0
	for _, m := range members {
		if normalize(m.Fields.Exporter) == "" {
			continue
		}
		declared++
		if IdentityMatch(exporter, m.Fields.Exporter) {
			v.ok("invoice exporter %q matches member %s", exporter, m.Filename)
			return
		}
	}
	if declared == 0 {
		v.critical("no case member declares an exporter; invoice exporter %q cannot be corroborated", exporter)
		return
	}
	v.critical("invoice exporter %q matches no exporter declared in the case", exporter)
}

func (v *vetting) checkWeight(weight float64, members []domain.DocumentRecord) {
	for _, m := range members {
		if m.Kind != domain.KindBillOfLading || m.Fields.DeclaredWeightKg == nil {
			continue
		}
		transport := *m.Fields.DeclaredWeightKg
		diff := math.Abs(weight - transport)
		tolerance := transport * associationWeightTolerance
		if diff > tolerance {
			v.warning("declared weight %s kg differs from transport document weight %s kg by more than 10%%",
				formatNumber(weight), formatNumber(transport))
			return
		}
		v.ok("declared weight %s kg is within 10%% of transport document weight %s kg",
			formatNumber(weight), formatNumber(transport))
		return
	}
}
