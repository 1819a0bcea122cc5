package engine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

const (
	importerPoints = 25
	exporterPoints = 20
	weightPoints   = 25
	valuePoints    = 20
	originPoints   = 10

	weightTolerance = 0.05
	valueTolerance  = 0.02

	approvedScore = 90
	observedScore = 60
)

// ConsistencyValidator cross-checks the commercial invoice against the
// transport document of a case file.
type ConsistencyValidator struct{}

func NewConsistencyValidator() ConsistencyValidator { return ConsistencyValidator{} }

// Validate compares the first invoice with the first transport document in
// member order. Extra base documents are reported as a critical discrepancy
// and block the verdict. It never mutates c.
func (ConsistencyValidator) Validate(c domain.CaseFile) domain.ConsistencyResult {
	invoice, hasInvoice := c.FirstOfKind(domain.KindCommercialInvoice)
	transport, hasTransport := c.FirstOfKind(domain.KindBillOfLading)
	if !hasInvoice || !hasTransport {
		return missingBasePair(hasInvoice, hasTransport)
	}

	s := scorecard{}
	inv, tr := invoice.Fields, transport.Fields
	s.identity("importer", inv.Importer, tr.Importer, importerPoints)
	s.identity("exporter", inv.Exporter, tr.Exporter, exporterPoints)
	s.weight(inv.DeclaredWeightKg, tr.DeclaredWeightKg)
	s.value(inv.DeclaredValue, tr.DeclaredValue)
	s.origin(inv.OriginCountry, tr.OriginCountry)

	if s.possible == 0 {
		s.discrepancies = append(s.discrepancies, domain.Discrepancy{
			Field:       "comparable_fields",
			Severity:    domain.SeverityLow,
			Description: "no field is declared on both the invoice and the transport document",
		})
	}

	invoices := c.CountOfKind(domain.KindCommercialInvoice)
	transports := c.CountOfKind(domain.KindBillOfLading)
	extra := invoices > 1 || transports > 1
	if extra {
		s.add(extraBaseDocuments(invoices, transports))
	}

	result := domain.ConsistencyResult{
		Discrepancies: s.discrepancies,
		Score:         s.score(),
	}
	result.Consistent = result.CriticalCount() == 0
	result.Verdict = verdictFor(result.Score, result.Consistent)
	if extra {
		result.Verdict = domain.VerdictBlocked
	}
	return result
}

func extraBaseDocuments(invoices, transports int) domain.Discrepancy {
	var description string
	switch {
	case invoices > 1 && transports > 1:
		description = fmt.Sprintf("%d commercial invoices and %d transport documents, only the first of each compared", invoices, transports)
	case invoices > 1:
		description = fmt.Sprintf("%d commercial invoices, only the first compared", invoices)
	default:
		description = fmt.Sprintf("%d transport documents, only the first compared", transports)
	}
	return domain.Discrepancy{
		Field:          "base_documents",
		InvoiceValue:   strconv.Itoa(invoices),
		TransportValue: strconv.Itoa(transports),
		Severity:       domain.SeverityCritical,
		Description:    description,
	}
}

func verdictFor(score int, consistent bool) domain.Verdict {
	switch {
	case score >= approvedScore && consistent:
		return domain.VerdictApproved
	case score >= observedScore:
		return domain.VerdictObserved
	default:
		return domain.VerdictBlocked
	}
}

func missingBasePair(hasInvoice, hasTransport bool) domain.ConsistencyResult {
	presence := func(ok bool) string {
		if ok {
			return "present"
		}
		return "missing"
	}
	return domain.ConsistencyResult{
		Consistent: false,
		Score:      0,
		Verdict:    domain.VerdictBlocked,
		Discrepancies: []domain.Discrepancy{{
			Field:          "base_documents",
			InvoiceValue:   presence(hasInvoice),
			TransportValue: presence(hasTransport),
			Severity:       domain.SeverityCritical,
			Description:    "case file needs both a commercial invoice and a transport document before cross-validation",
		}},
	}
}

type scorecard struct {
	earned        int
	possible      int
	discrepancies []domain.Discrepancy
}

func (s *scorecard) score() int {
	if s.possible == 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.earned) / float64(s.possible)))
}

func (s *scorecard) add(d domain.Discrepancy) {
	s.discrepancies = append(s.discrepancies, d)
}

func (s *scorecard) identity(field, invoice, transport string, points int) {
	if normalize(invoice) == "" || normalize(transport) == "" {
		return
	}
	s.possible += points
	if IdentityMatch(invoice, transport) {
		s.earned += points
		return
	}
	s.add(domain.Discrepancy{
		Field:          field,
		InvoiceValue:   invoice,
		TransportValue: transport,
		Severity:       domain.SeverityCritical,
		Description:    fmt.Sprintf("%s differs between invoice and transport document", field),
	})
}

func (s *scorecard) weight(invoice, transport *float64) {
	if invoice == nil || transport == nil {
		return
	}
	s.possible += weightPoints
	diff := math.Abs(*invoice - *transport)
	tolerance := *transport * weightTolerance
	if diff <= tolerance {
		s.earned += weightPoints
		return
	}
	severity := domain.SeverityMedium
	if diff > 2*tolerance {
		severity = domain.SeverityCritical
	}
	s.add(domain.Discrepancy{
		Field:          "declared_weight",
		InvoiceValue:   formatNumber(*invoice),
		TransportValue: formatNumber(*transport),
		Severity:       severity,
		Description:    fmt.Sprintf("weight differs by %s kg (tolerance %s kg)", formatNumber(diff), formatNumber(tolerance)),
	})
}

func (s *scorecard) value(invoice, transport *float64) {
	if invoice == nil || transport == nil {
		return
	}
	s.possible += valuePoints
	diff := math.Abs(*invoice - *transport)
	tolerance := *invoice * valueTolerance
	if diff <= tolerance {
		s.earned += valuePoints
		return
	}
	s.add(domain.Discrepancy{
		Field:          "declared_value",
		InvoiceValue:   formatNumber(*invoice),
		TransportValue: formatNumber(*transport),
		Severity:       domain.SeverityMedium,
		Description:    fmt.Sprintf("declared value differs by %s (tolerance %s)", formatNumber(diff), formatNumber(tolerance)),
	})
}

func (s *scorecard) origin(invoice, transport string) {
	inv, tr := normalize(invoice), normalize(transport)
	if inv == "" || tr == "" {
		return
	}
	s.possible += originPoints
	if inv == tr {
		s.earned += originPoints
		return
	}
	s.add(domain.Discrepancy{
		Field:          "origin_country",
		InvoiceValue:   invoice,
		TransportValue: transport,
		Severity:       domain.SeverityMedium,
		Description:    "country of origin differs between invoice and transport document",
	})
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
