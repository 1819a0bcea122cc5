package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

const minTariffDigits = 4

// FieldExtractor pulls structured fields out of raw document text.
// Fields no rule matched are left empty.
type FieldExtractor struct {
	evaluators map[domain.Field]ruleEvaluator
}

func NewFieldExtractor(t *Tables) *FieldExtractor {
	return &FieldExtractor{evaluators: t.evaluators}
}

func (e *FieldExtractor) Extract(text string) domain.ExtractedFields {
	return domain.ExtractedFields{
		DocumentNumber:   e.value(domain.FieldDocumentNumber, text),
		Date:             e.value(domain.FieldDate, text),
		Importer:         cleanName(e.value(domain.FieldImporter, text)),
		Exporter:         cleanName(e.value(domain.FieldExporter, text)),
		TariffCode:       normalizeTariffCode(e.value(domain.FieldTariffCode, text)),
		DeclaredValue:    parseAmount(e.value(domain.FieldDeclaredValue, text)),
		DeclaredWeightKg: parseAmount(e.value(domain.FieldDeclaredWeight, text)),
		OriginCountry:    cleanName(e.value(domain.FieldOriginCountry, text)),
	}
}

func (e *FieldExtractor) value(field domain.Field, text string) string {
	evaluator, ok := e.evaluators[field]
	if !ok {
		return ""
	}
	match, ok := evaluator.firstMatch(text)
	if !ok {
		return ""
	}
	return match.value
}

func cleanName(s string) string {
	return strings.TrimRight(strings.Join(strings.Fields(s), " "), ",;:")
}

func normalizeTariffCode(raw string) string {
	digits := digitsOnly(raw)
	if len(digits) < minTariffDigits {
		return ""
	}
	return digits
}

var amountCleaner = strings.NewReplacer(",", "", " ", "", "\u00a0", "")

// parseAmount strips thousands separators. Anything unparsable, negative or
// non-finite is treated as absent.
func parseAmount(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(amountCleaner.Replace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}
