package engine

import (
	"math"
	"strings"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

const (
	// ConfidenceFloor is the minimum confidence for a non-unknown classification.
	ConfidenceFloor = 20
	// SaturationScore is the keyword score that maps to 100% confidence.
	SaturationScore = 50

	filenameKeywordPrefix = "filename:"
)

type Classification struct {
	Kind            domain.DocumentKind `json:"kind"`
	Confidence      int                 `json:"confidence"`
	Score           int                 `json:"score"`
	MatchedKeywords []string            `json:"matched_keywords"`
}

// TypeClassifier scores filename and text against the per-kind keyword dictionaries.
type TypeClassifier struct {
	kinds []domain.KindRules
}

func NewTypeClassifier(t *Tables) *TypeClassifier {
	return &TypeClassifier{kinds: t.kinds}
}

// Classify picks the highest scoring kind. Ties go to the kind declared first.
func (c *TypeClassifier) Classify(filename, text string) Classification {
	name := strings.ToLower(filename)
	body := strings.ToLower(text)
	nameTokens := tokenSet(name)

	best := Classification{Kind: domain.KindUnknown, MatchedKeywords: []string{}}
	for _, kr := range c.kinds {
		score, matched := scoreKind(kr, body, name, nameTokens)
		if score > best.Score {
			best = Classification{Kind: kr.Kind, Score: score, MatchedKeywords: matched}
		}
	}
	if best.Score == 0 {
		return best
	}

	best.Confidence = ConfidenceFor(best.Score)
	if best.Confidence < ConfidenceFloor {
		best.Kind = domain.KindUnknown
	}
	return best
}

func scoreKind(kr domain.KindRules, body, name string, nameTokens map[string]struct{}) (int, []string) {
	score := 0
	matched := make([]string, 0)
	for _, kw := range kr.Keywords {
		if containsTerm(body, kw.Term) || containsTerm(name, kw.Term) {
			score += kw.Weight
			matched = append(matched, kw.Term)
		}
	}
	for _, token := range kr.FilenameTokens {
		if _, ok := nameTokens[token.Term]; ok {
			score += token.Weight
			matched = append(matched, filenameKeywordPrefix+token.Term)
		}
	}
	return score, matched
}

// ConfidenceFor maps a keyword score to 0-100.
func ConfidenceFor(score int) int {
	if score <= 0 {
		return 0
	}
	confidence := int(math.Round(float64(score) / SaturationScore * 100))
	if confidence > 100 {
		return 100
	}
	return confidence
}
