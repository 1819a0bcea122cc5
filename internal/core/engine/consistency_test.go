package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

func pairCase(invoice, transport domain.ExtractedFields) domain.CaseFile {
	return domain.CaseFile{Members: []domain.DocumentRecord{
		record("inv", domain.KindCommercialInvoice, invoice),
		record("bl", domain.KindBillOfLading, transport),
	}}
}

func fullFields(weight, value float64) domain.ExtractedFields {
	return domain.ExtractedFields{
		Importer:         "Acme Import Corp",
		Exporter:         "Andes Export SAC",
		DeclaredWeightKg: ptr(weight),
		DeclaredValue:    ptr(value),
		OriginCountry:    "Peru",
	}
}

func TestValidateMissingBasePairIsBlocked(t *testing.T) {
	v := NewConsistencyValidator()

	for _, c := range []domain.CaseFile{
		{},
		{Members: []domain.DocumentRecord{record("inv", domain.KindCommercialInvoice, fullFields(1, 1))}},
		{Members: []domain.DocumentRecord{record("bl", domain.KindBillOfLading, fullFields(1, 1))}},
	} {
		got := v.Validate(c)
		assert.False(t, got.Consistent)
		assert.Equal(t, 0, got.Score)
		assert.Equal(t, domain.VerdictBlocked, got.Verdict)
		require.Len(t, got.Discrepancies, 1)
		assert.Equal(t, domain.SeverityCritical, got.Discrepancies[0].Severity)
		assert.Equal(t, "base_documents", got.Discrepancies[0].Field)
	}
}

func TestValidateMatchingPairIsApproved(t *testing.T) {
	got := NewConsistencyValidator().Validate(pairCase(fullFields(1000, 5000), fullFields(1020, 5050)))

	assert.True(t, got.Consistent)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, domain.VerdictApproved, got.Verdict)
	assert.Empty(t, got.Discrepancies)
}

func TestValidateWeightWithinDoubleToleranceIsMedium(t *testing.T) {
	got := NewConsistencyValidator().Validate(pairCase(fullFields(1000, 5000), fullFields(1060, 5000)))

	require.Len(t, got.Discrepancies, 1)
	d := got.Discrepancies[0]
	assert.Equal(t, "declared_weight", d.Field)
	assert.Equal(t, domain.SeverityMedium, d.Severity)
	assert.Equal(t, "1000", d.InvoiceValue)
	assert.Equal(t, "1060", d.TransportValue)
	assert.True(t, got.Consistent)
	assert.Equal(t, 75, got.Score)
	assert.Equal(t, domain.VerdictObserved, got.Verdict)
}

func TestValidateLargeWeightGapIsCritical(t *testing.T) {
	got := NewConsistencyValidator().Validate(pairCase(fullFields(1000, 5000), fullFields(1500, 5000)))

	require.Len(t, got.Discrepancies, 1)
	assert.Equal(t, domain.SeverityCritical, got.Discrepancies[0].Severity)
	assert.False(t, got.Consistent)
	assert.Equal(t, domain.VerdictObserved, got.Verdict, "score 75 still reaches observed")
}

func TestValidateIdentityAcceptsCaseAndPunctuationVariants(t *testing.T) {
	inv := fullFields(1000, 5000)
	tr := fullFields(1000, 5000)
	inv.Importer = "Acme Import Corp"
	tr.Importer = "ACME IMPORT CORP."

	got := NewConsistencyValidator().Validate(pairCase(inv, tr))

	assert.Empty(t, got.Discrepancies)
	assert.Equal(t, domain.VerdictApproved, got.Verdict)
}

func TestValidateScoresOnlyComparableFields(t *testing.T) {
	inv := domain.ExtractedFields{Importer: "Acme", DeclaredValue: ptr(100)}
	tr := domain.ExtractedFields{Importer: "Globex", OriginCountry: "Chile"}

	got := NewConsistencyValidator().Validate(pairCase(inv, tr))

	require.Len(t, got.Discrepancies, 1)
	assert.Equal(t, "importer", got.Discrepancies[0].Field)
	assert.Equal(t, domain.SeverityCritical, got.Discrepancies[0].Severity)
	assert.Equal(t, 0, got.Score)
	assert.False(t, got.Consistent)
	assert.Equal(t, domain.VerdictBlocked, got.Verdict)
}

func TestValidateValueAndOriginMismatchesAreMedium(t *testing.T) {
	inv := fullFields(1000, 10000)
	tr := fullFields(1000, 10300)
	tr.OriginCountry = "Chile"

	got := NewConsistencyValidator().Validate(pairCase(inv, tr))

	require.Len(t, got.Discrepancies, 2)
	assert.Equal(t, "declared_value", got.Discrepancies[0].Field)
	assert.Equal(t, domain.SeverityMedium, got.Discrepancies[0].Severity)
	assert.Equal(t, "origin_country", got.Discrepancies[1].Field)
	assert.Equal(t, domain.SeverityMedium, got.Discrepancies[1].Severity)
	assert.True(t, got.Consistent)
	assert.Equal(t, 70, got.Score)
	assert.Equal(t, domain.VerdictObserved, got.Verdict)
}

func TestValidateNothingComparable(t *testing.T) {
	got := NewConsistencyValidator().Validate(pairCase(domain.ExtractedFields{}, domain.ExtractedFields{}))

	assert.Equal(t, 0, got.Score)
	assert.Equal(t, domain.VerdictBlocked, got.Verdict)
	require.Len(t, got.Discrepancies, 1)
	assert.Equal(t, domain.SeverityLow, got.Discrepancies[0].Severity)
}

func TestValidateExtraTransportDocumentBlocks(t *testing.T) {
	second := fullFields(9000, 5000)
	second.Importer = "Globex Trading"
	c := pairCase(fullFields(1000, 5000), fullFields(1000, 5000))
	c.Members = append(c.Members, record("bl-2", domain.KindBillOfLading, second))

	got := NewConsistencyValidator().Validate(c)

	require.Len(t, got.Discrepancies, 1)
	d := got.Discrepancies[0]
	assert.Equal(t, "base_documents", d.Field)
	assert.Equal(t, domain.SeverityCritical, d.Severity)
	assert.Equal(t, "1", d.InvoiceValue)
	assert.Equal(t, "2", d.TransportValue)
	assert.Equal(t, "2 transport documents, only the first compared", d.Description)
	assert.False(t, got.Consistent)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, domain.VerdictBlocked, got.Verdict)
}

func TestValidateExtraInvoicesAndTransportsBlock(t *testing.T) {
	c := pairCase(fullFields(1000, 5000), fullFields(1000, 5000))
	c.Members = append(c.Members,
		record("inv-2", domain.KindCommercialInvoice, fullFields(1000, 5000)),
		record("bl-2", domain.KindBillOfLading, fullFields(1000, 5000)),
	)

	got := NewConsistencyValidator().Validate(c)

	require.Len(t, got.Discrepancies, 1)
	assert.Equal(t, "2 commercial invoices and 2 transport documents, only the first of each compared", got.Discrepancies[0].Description)
	assert.Equal(t, domain.VerdictBlocked, got.Verdict)
}

func TestValidateIsIdempotent(t *testing.T) {
	c := pairCase(fullFields(1000, 5000), fullFields(1500, 5300))
	v := NewConsistencyValidator()

	assert.Equal(t, v.Validate(c), v.Validate(c))
}
