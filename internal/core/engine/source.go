package engine

import (
	"strings"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

// SourceClassifier only reports internal origin on positive evidence.
type SourceClassifier struct {
	marker string
}

func NewSourceClassifier(t *Tables) *SourceClassifier {
	return &SourceClassifier{marker: t.marker}
}

func (s *SourceClassifier) Classify(text string, knownInternalIDs []string) domain.Origin {
	if s.marker != "" && strings.Contains(text, s.marker) {
		return domain.OriginInternal
	}
	for _, id := range knownInternalIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if strings.Contains(text, id) {
			return domain.OriginInternal
		}
	}
	return domain.OriginExternal
}
