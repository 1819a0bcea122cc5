package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

type sequenceIDs struct{ n int }

func (s *sequenceIDs) NewID() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

var testDay = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func testRuleSet() domain.RuleSet {
	return domain.RuleSet{
		Version:        "test",
		InternalMarker: "TCE-INTERNAL-PIPELINE",
		Kinds: []domain.KindRules{
			{
				Kind: domain.KindCommercialInvoice,
				Keywords: []domain.WeightedTerm{
					{Term: "commercial invoice", Weight: 20},
					{Term: "invoice", Weight: 10},
					{Term: "unit price", Weight: 8},
					{Term: "incoterm", Weight: 6},
				},
				FilenameTokens: []domain.WeightedTerm{{Term: "inv", Weight: 10}},
			},
			{
				Kind: domain.KindBillOfLading,
				Keywords: []domain.WeightedTerm{
					{Term: "bill of lading", Weight: 25},
					{Term: "port of loading", Weight: 10},
					{Term: "vessel", Weight: 8},
					{Term: "consignee", Weight: 6},
				},
				FilenameTokens: []domain.WeightedTerm{{Term: "bl", Weight: 15}},
			},
			{
				Kind: domain.KindPackingList,
				Keywords: []domain.WeightedTerm{
					{Term: "packing list", Weight: 25},
					{Term: "cartons", Weight: 6},
				},
			},
			{
				Kind: domain.KindSanitaryPermit,
				Keywords: []domain.WeightedTerm{
					{Term: "sanitary permit", Weight: 25},
					{Term: "fit for human consumption", Weight: 12},
				},
			},
			{
				Kind: domain.KindPhytosanitaryCertificate,
				Keywords: []domain.WeightedTerm{
					{Term: "phytosanitary certificate", Weight: 30},
				},
			},
			{
				Kind: domain.KindSanitaryRegistration,
				Keywords: []domain.WeightedTerm{
					{Term: "sanitary registration", Weight: 25},
				},
			},
		},
		Patterns: []domain.PatternRule{
			{Name: "invoice-number", Field: domain.FieldDocumentNumber, Priority: 10, Pattern: `(?im)invoice\s*(?:no\.?|number|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/]{2,})`},
			{Name: "bl-number", Field: domain.FieldDocumentNumber, Priority: 20, Pattern: `(?im)b/l\s*(?:no\.?|number|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/]{2,})`},
			{Name: "iso-date", Field: domain.FieldDate, Priority: 10, Pattern: `(?im)date\s*[:\-]?\s*(\d{4}-\d{2}-\d{2})`},
			{Name: "consignee", Field: domain.FieldImporter, Priority: 20, Pattern: `(?im)^\s*consignee\s*[:\-]\s*(.+?)\s*$`},
			{Name: "importer", Field: domain.FieldImporter, Priority: 10, Pattern: `(?im)^\s*importer\s*[:\-]\s*(.+?)\s*$`},
			{Name: "exporter", Field: domain.FieldExporter, Priority: 10, Pattern: `(?im)^\s*(?:exporter|shipper)\s*[:\-]\s*(.+?)\s*$`},
			{Name: "hs-code", Field: domain.FieldTariffCode, Priority: 10, Pattern: `(?im)hs\s*code\s*[:#]?\s*(\d{4}(?:[.\s]?\d{2}){0,3})`},
			{Name: "total-value", Field: domain.FieldDeclaredValue, Priority: 10, Pattern: `(?im)total\s*value\s*:?\s*(?:usd|\$)?\s*([\d,]+(?:\.\d+)?)`},
			{Name: "gross-weight", Field: domain.FieldDeclaredWeight, Priority: 10, Pattern: `(?im)gross\s*weight\s*:?\s*([\d,]+(?:\.\d+)?)`},
			{Name: "origin", Field: domain.FieldOriginCountry, Priority: 10, Pattern: `(?im)country\s*of\s*origin\s*[:\-]?\s*([A-Za-z][A-Za-z .]{1,40}?)\s*$`},
		},
		Chapters: []domain.ChapterRule{
			{Label: "animal and food products", From: 1, To: 5, Requires: []domain.DocumentKind{domain.KindSanitaryPermit, domain.KindSanitaryRegistration}},
			{Label: "prepared foods", From: 15, To: 22, Requires: []domain.DocumentKind{domain.KindSanitaryPermit, domain.KindSanitaryRegistration}},
			{Label: "plant products", From: 6, To: 14, Requires: []domain.DocumentKind{domain.KindPhytosanitaryCertificate}},
			{Label: "pharmaceuticals", From: 30, To: 30, Requires: []domain.DocumentKind{domain.KindSanitaryRegistration}},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testRuleSet(), WithIDGenerator(&sequenceIDs{}), WithClock(fixedClock{at: testDay}))
	require.NoError(t, err)
	return e
}

func ptr(v float64) *float64 { return &v }

func record(id string, kind domain.DocumentKind, fields domain.ExtractedFields) domain.DocumentRecord {
	return domain.DocumentRecord{
		ID:       id,
		Filename: id + ".txt",
		Kind:     kind,
		Fields:   fields,
		Origin:   domain.OriginExternal,
	}
}
