package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

// UnidentifiedGroup collects external documents without an importer.
const UnidentifiedGroup = "unidentified"

// CaseAggregator groups external documents into case files and derives their
// compliance fields.
type CaseAggregator struct {
	permits PermitTable
	ids     IDGenerator
	clock   Clock
}

func NewCaseAggregator(t *Tables, ids IDGenerator, clock Clock) *CaseAggregator {
	return &CaseAggregator{permits: NewPermitTable(t), ids: ids, clock: clock}
}

// GroupingKey is the lower-cased, trimmed importer name.
func GroupingKey(importer string) string {
	key := normalize(importer)
	if key == "" {
		return UnidentifiedGroup
	}
	return key
}

// ReferenceCode formats the human reference of the seq-th case created on day.
func ReferenceCode(day time.Time, seq int) string {
	return fmt.Sprintf("EXP-%s-%03d", day.UTC().Format("20060102"), seq)
}

// Aggregate builds one case file per grouping key. Internal documents are ignored.
func (a *CaseAggregator) Aggregate(records []domain.DocumentRecord) []domain.CaseFile {
	return a.AggregateFrom(records, 0)
}

// AggregateFrom numbers references after the given count of cases already
// created today.
func (a *CaseAggregator) AggregateFrom(records []domain.DocumentRecord, existingToday int) []domain.CaseFile {
	groups := make(map[string][]domain.DocumentRecord)
	keys := make([]string, 0)
	for _, record := range records {
		if record.Origin != domain.OriginExternal {
			continue
		}
		key := GroupingKey(record.Fields.Importer)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], record)
	}
	sort.Strings(keys)

	now := a.clock.Now().UTC()
	cases := make([]domain.CaseFile, 0, len(keys))
	for i, key := range keys {
		members := groups[key]
		importer := ""
		if key != UnidentifiedGroup {
			importer = firstImporter(members)
		}
		cases = append(cases, a.Recompute(domain.CaseFile{
			ID:        a.ids.NewID(),
			Reference: ReferenceCode(now, existingToday+i+1),
			Importer:  importer,
			Members:   members,
			CreatedAt: now,
		}))
	}
	return cases
}

// Recompute returns a copy of c with every derived field evaluated from its members.
func (a *CaseAggregator) Recompute(c domain.CaseFile) domain.CaseFile {
	out := c
	out.Members = append([]domain.DocumentRecord{}, c.Members...)
	out.TariffCode = preferredValue(out.Members, func(f domain.ExtractedFields) string { return f.TariffCode })
	out.Exporter = preferredValue(out.Members, func(f domain.ExtractedFields) string { return f.Exporter })

	out.MissingDocuments = []domain.DocumentKind{}
	for _, kind := range domain.BaseKinds() {
		if !out.HasKind(kind) {
			out.MissingDocuments = append(out.MissingDocuments, kind)
		}
	}
	out.MissingPermits = []domain.DocumentKind{}
	for _, kind := range a.permits.Required(out.TariffCode) {
		if !out.HasKind(kind) {
			out.MissingPermits = append(out.MissingPermits, kind)
		}
	}

	out.State = DecideCompliance(out.MissingDocuments, out.MissingPermits)
	out.ReadyForValidation = out.State == domain.ComplianceGreen
	return out
}

// Attach appends record to c and recomputes the derived fields. A previous
// validation result no longer describes the new member set and is dropped.
func (a *CaseAggregator) Attach(c domain.CaseFile, record domain.DocumentRecord) domain.CaseFile {
	next := c
	next.Members = append(append([]domain.DocumentRecord{}, c.Members...), record)
	next.LastValidation = nil
	return a.Recompute(next)
}

func firstImporter(members []domain.DocumentRecord) string {
	for _, m := range members {
		if name := strings.TrimSpace(m.Fields.Importer); name != "" {
			return name
		}
	}
	return ""
}

// preferredValue picks a field from the invoice first, then the transport
// document, then any other member, each in member order.
func preferredValue(members []domain.DocumentRecord, get func(domain.ExtractedFields) string) string {
	passes := []func(domain.DocumentKind) bool{
		func(k domain.DocumentKind) bool { return k == domain.KindCommercialInvoice },
		func(k domain.DocumentKind) bool { return k == domain.KindBillOfLading },
		func(k domain.DocumentKind) bool {
			return k != domain.KindCommercialInvoice && k != domain.KindBillOfLading
		},
	}
	for _, accept := range passes {
		for _, m := range members {
			if !accept(m.Kind) {
				continue
			}
			if v := get(m.Fields); v != "" {
				return v
			}
		}
	}
	return ""
}
