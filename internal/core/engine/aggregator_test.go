package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

func TestAggregateGroupsByImporter(t *testing.T) {
	e := newTestEngine(t)
	internal := record("int-1", domain.KindCommercialInvoice, domain.ExtractedFields{Importer: "Acme Import Corp"})
	internal.Origin = domain.OriginInternal

	cases := e.Aggregate([]domain.DocumentRecord{
		record("a-inv", domain.KindCommercialInvoice, domain.ExtractedFields{Importer: "Acme Import Corp"}),
		record("z-bl", domain.KindBillOfLading, domain.ExtractedFields{Importer: "Zeta Foods"}),
		record("none", domain.KindPackingList, domain.ExtractedFields{}),
		record("a-bl", domain.KindBillOfLading, domain.ExtractedFields{Importer: "  ACME import corp "}),
		internal,
	})

	require.Len(t, cases, 3)
	assert.Equal(t, "Acme Import Corp", cases[0].Importer)
	assert.Equal(t, "EXP-20260314-001", cases[0].Reference)
	assert.Equal(t, "id-1", cases[0].ID)
	assert.Equal(t, []string{"a-inv", "a-bl"}, memberIDs(cases[0]))
	assert.Equal(t, testDay, cases[0].CreatedAt)

	assert.Equal(t, "", cases[1].Importer, "unidentified group has no importer")
	assert.Equal(t, []string{"none"}, memberIDs(cases[1]))
	assert.Equal(t, "EXP-20260314-002", cases[1].Reference)

	assert.Equal(t, "Zeta Foods", cases[2].Importer)
	assert.Equal(t, "EXP-20260314-003", cases[2].Reference)
}

func TestAggregateIgnoresInternalOnlyInput(t *testing.T) {
	rec := record("int-1", domain.KindCommercialInvoice, domain.ExtractedFields{Importer: "Acme"})
	rec.Origin = domain.OriginInternal

	assert.Empty(t, newTestEngine(t).Aggregate([]domain.DocumentRecord{rec}))
	assert.Empty(t, newTestEngine(t).Aggregate(nil))
}

func TestAggregateFromContinuesDailySequence(t *testing.T) {
	e := newTestEngine(t)

	cases := e.Aggregator.AggregateFrom([]domain.DocumentRecord{
		record("a", domain.KindCommercialInvoice, domain.ExtractedFields{Importer: "Acme"}),
	}, 7)

	require.Len(t, cases, 1)
	assert.Equal(t, "EXP-20260314-008", cases[0].Reference)
}

func TestRecomputeMissingBaseDocumentIsRed(t *testing.T) {
	e := newTestEngine(t)
	permit := record("p", domain.KindSanitaryPermit, domain.ExtractedFields{Importer: "Acme"})
	registration := record("r", domain.KindSanitaryRegistration, domain.ExtractedFields{Importer: "Acme"})

	for _, members := range [][]domain.DocumentRecord{
		{record("i", domain.KindCommercialInvoice, domain.ExtractedFields{Importer: "Acme", TariffCode: "0201"}), permit, registration},
		{record("b", domain.KindBillOfLading, domain.ExtractedFields{Importer: "Acme", TariffCode: "0201"}), permit, registration},
		{permit, registration},
	} {
		got := e.Aggregator.Recompute(domain.CaseFile{Importer: "Acme", Members: members})
		assert.Equal(t, domain.ComplianceRed, got.State)
		assert.False(t, got.ReadyForValidation)
		assert.NotEmpty(t, got.MissingDocuments)
	}
}

func TestRecomputeMissingPermitIsYellow(t *testing.T) {
	got := newTestEngine(t).Aggregator.Recompute(domain.CaseFile{Members: []domain.DocumentRecord{
		record("i", domain.KindCommercialInvoice, domain.ExtractedFields{TariffCode: "0803901100"}),
		record("b", domain.KindBillOfLading, domain.ExtractedFields{}),
	}})

	assert.Equal(t, domain.ComplianceYellow, got.State)
	assert.Empty(t, got.MissingDocuments)
	assert.Equal(t, []domain.DocumentKind{domain.KindPhytosanitaryCertificate}, got.MissingPermits)
	assert.Equal(t, "0803901100", got.TariffCode)
	assert.False(t, got.ReadyForValidation)
}

func TestRecomputeCompleteCaseIsGreen(t *testing.T) {
	got := newTestEngine(t).Aggregator.Recompute(domain.CaseFile{Members: []domain.DocumentRecord{
		record("i", domain.KindCommercialInvoice, domain.ExtractedFields{TariffCode: "0201", Exporter: "Pampa Beef"}),
		record("b", domain.KindBillOfLading, domain.ExtractedFields{Exporter: "Pampa Logistics"}),
		record("p", domain.KindSanitaryPermit, domain.ExtractedFields{}),
		record("r", domain.KindSanitaryRegistration, domain.ExtractedFields{}),
	}})

	assert.Equal(t, domain.ComplianceGreen, got.State)
	assert.True(t, got.ReadyForValidation)
	assert.Empty(t, got.MissingDocuments)
	assert.Empty(t, got.MissingPermits)
	assert.Equal(t, "Pampa Beef", got.Exporter)
}

func TestRecomputeWithoutTariffHintAssertsNoPermit(t *testing.T) {
	got := newTestEngine(t).Aggregator.Recompute(domain.CaseFile{Members: []domain.DocumentRecord{
		record("i", domain.KindCommercialInvoice, domain.ExtractedFields{}),
		record("b", domain.KindBillOfLading, domain.ExtractedFields{}),
	}})

	assert.Equal(t, domain.ComplianceGreen, got.State)
	assert.NotNil(t, got.MissingPermits)
	assert.Empty(t, got.MissingPermits)
}

func TestRecomputePrefersInvoiceTariffHint(t *testing.T) {
	got := newTestEngine(t).Aggregator.Recompute(domain.CaseFile{Members: []domain.DocumentRecord{
		record("cert", domain.KindPackingList, domain.ExtractedFields{TariffCode: "3004"}),
		record("b", domain.KindBillOfLading, domain.ExtractedFields{TariffCode: "0201"}),
		record("i", domain.KindCommercialInvoice, domain.ExtractedFields{TariffCode: "0803"}),
	}})
	assert.Equal(t, "0803", got.TariffCode)

	got = newTestEngine(t).Aggregator.Recompute(domain.CaseFile{Members: []domain.DocumentRecord{
		record("cert", domain.KindPackingList, domain.ExtractedFields{TariffCode: "3004"}),
		record("b", domain.KindBillOfLading, domain.ExtractedFields{TariffCode: "0201"}),
	}})
	assert.Equal(t, "0201", got.TariffCode)
}

func TestRecomputeDoesNotMutateInput(t *testing.T) {
	original := domain.CaseFile{Members: []domain.DocumentRecord{
		record("i", domain.KindCommercialInvoice, domain.ExtractedFields{}),
	}}

	_ = newTestEngine(t).Aggregator.Attach(original, record("b", domain.KindBillOfLading, domain.ExtractedFields{}))

	assert.Len(t, original.Members, 1)
	assert.Empty(t, original.State)
}

func TestAttachRecomputesAndDropsStaleValidation(t *testing.T) {
	e := newTestEngine(t)
	c := e.Aggregator.Recompute(domain.CaseFile{Members: []domain.DocumentRecord{
		record("i", domain.KindCommercialInvoice, domain.ExtractedFields{}),
	}})
	c.LastValidation = &domain.ConsistencyResult{Verdict: domain.VerdictBlocked}
	require.Equal(t, domain.ComplianceRed, c.State)

	got := e.Aggregator.Attach(c, record("b", domain.KindBillOfLading, domain.ExtractedFields{}))

	assert.Equal(t, domain.ComplianceGreen, got.State)
	assert.Nil(t, got.LastValidation)
	assert.Equal(t, []string{"i", "b"}, memberIDs(got))
}

func TestGroupingKey(t *testing.T) {
	assert.Equal(t, "acme import corp", GroupingKey("  Acme  Import CORP "))
	assert.Equal(t, UnidentifiedGroup, GroupingKey(""))
	assert.Equal(t, UnidentifiedGroup, GroupingKey("   "))
}

func memberIDs(c domain.CaseFile) []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.ID)
	}
	return ids
}
