package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

const (
	importerExactPoints    = 40
	importerContainsPoints = 30
	importerSimilarPoints  = 20
	exporterMatchPoints    = 25
	tariffSubheadingPoints = 20
	tariffHeadingPoints    = 10
	referencePoints        = 35
	sharedOriginPoints     = 10

	similarityThreshold = 0.6
	minReferenceLength  = 3
	maxSuggestionScore  = 100
)

// SuggestionRanker scores existing case files as homes for an orphan document.
type SuggestionRanker struct{}

func NewSuggestionRanker() SuggestionRanker { return SuggestionRanker{} }

// Rank returns every case with a positive score, best first. Ties are ordered
// by case reference.
func (SuggestionRanker) Rank(doc domain.DocumentRecord, cases []domain.CaseFile) []domain.AssociationSuggestion {
	suggestions := make([]domain.AssociationSuggestion, 0)
	for _, c := range cases {
		if c.HasMember(doc.ID) {
			continue
		}
		score, reasons := scoreCandidate(doc, c)
		if score == 0 {
			continue
		}
		if score > maxSuggestionScore {
			score = maxSuggestionScore
		}
		suggestions = append(suggestions, domain.AssociationSuggestion{
			CaseID:        c.ID,
			CaseReference: c.Reference,
			CaseImporter:  c.Importer,
			Score:         score,
			Reasons:       reasons,
		})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].CaseReference < suggestions[j].CaseReference
	})
	return suggestions
}

func scoreCandidate(doc domain.DocumentRecord, c domain.CaseFile) (int, []string) {
	score := 0
	reasons := make([]string, 0)
	award := func(points int, reason string) {
		score += points
		reasons = append(reasons, fmt.Sprintf("%s (+%d)", reason, points))
	}

	if points, reason := importerSignal(doc.Fields.Importer, c.Importer); points > 0 {
		award(points, reason)
	}
	if exporter := doc.Fields.Exporter; normalize(exporter) != "" {
		for _, m := range c.Members {
			if IdentityMatch(exporter, m.Fields.Exporter) {
				award(exporterMatchPoints, fmt.Sprintf("exporter matches member %s", m.Filename))
				break
			}
		}
	}
	if points, reason := tariffSignal(doc.Fields.TariffCode, c); points > 0 {
		award(points, reason)
	}
	if reason, ok := referenceSignal(doc.Fields.DocumentNumber, c); ok {
		award(referencePoints, reason)
	}
	if origin := normalize(doc.Fields.OriginCountry); origin != "" {
		for _, m := range c.Members {
			if normalize(m.Fields.OriginCountry) == origin {
				award(sharedOriginPoints, fmt.Sprintf("shares country of origin %s", doc.Fields.OriginCountry))
				break
			}
		}
	}
	return score, reasons
}

func importerSignal(docImporter, caseImporter string) (int, string) {
	d, c := normalize(docImporter), normalize(caseImporter)
	if d == "" || c == "" {
		return 0, ""
	}
	switch {
	case d == c:
		return importerExactPoints, "importer matches exactly"
	case strings.Contains(d, c) || strings.Contains(c, d):
		return importerContainsPoints, "importer partially matches"
	}
	if sim := Similarity(d, c); sim > similarityThreshold {
		return importerSimilarPoints, fmt.Sprintf("importer is similar (%.2f)", sim)
	}
	return 0, ""
}

func tariffSignal(docCode string, c domain.CaseFile) (int, string) {
	code := digitsOnly(docCode)
	if len(code) < minTariffDigits {
		return 0, ""
	}
	hints := []string{c.TariffCode}
	for _, m := range c.Members {
		hints = append(hints, m.Fields.TariffCode)
	}

	best := 0
	for _, hint := range hints {
		hint = digitsOnly(hint)
		switch {
		case len(code) >= 6 && len(hint) >= 6 && code[:6] == hint[:6]:
			best = tariffSubheadingPoints
		case len(hint) >= minTariffDigits && code[:4] == hint[:4] && best < tariffHeadingPoints:
			best = tariffHeadingPoints
		}
		if best == tariffSubheadingPoints {
			break
		}
	}
	switch best {
	case tariffSubheadingPoints:
		return best, "tariff code matches at 6 digits"
	case tariffHeadingPoints:
		return best, "tariff code matches at 4 digits"
	}
	return 0, ""
}

func referenceSignal(docNumber string, c domain.CaseFile) (string, bool) {
	number := normalize(docNumber)
	if len([]rune(number)) < minReferenceLength {
		return "", false
	}
	candidates := []string{c.Reference}
	for _, m := range c.Members {
		candidates = append(candidates, m.Fields.DocumentNumber)
	}
	for _, candidate := range candidates {
		ref := normalize(candidate)
		if len([]rune(ref)) < minReferenceLength {
			continue
		}
		if strings.Contains(ref, number) || strings.Contains(number, ref) {
			return fmt.Sprintf("reference %s matches %s", docNumber, candidate), true
		}
	}
	return "", false
}
