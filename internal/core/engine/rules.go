package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

const maxChapter = 99

type compiledPattern struct {
	name     string
	priority int
	re       *regexp.Regexp
}

// patternMatch is the value captured by the winning pattern rule.
type patternMatch struct {
	rule  string
	value string
}

// ruleEvaluator holds the pattern rules of one field sorted by priority.
// Rules with equal priority keep their declaration order.
type ruleEvaluator struct {
	rules []compiledPattern
}

// firstMatch returns the capture of the first rule that matches text with a non-empty value.
func (e ruleEvaluator) firstMatch(text string) (patternMatch, bool) {
	for _, rule := range e.rules {
		sub := rule.re.FindStringSubmatch(text)
		if len(sub) < 2 {
			continue
		}
		value := strings.TrimSpace(sub[1])
		if value == "" {
			continue
		}
		return patternMatch{rule: rule.name, value: value}, true
	}
	return patternMatch{}, false
}

// ruleNames returns rule names in evaluation order.
func (e ruleEvaluator) ruleNames() []string {
	names := make([]string, 0, len(e.rules))
	for _, rule := range e.rules {
		names = append(names, rule.name)
	}
	return names
}

// Tables is a validated, compiled RuleSet.
type Tables struct {
	version    string
	marker     string
	kinds      []domain.KindRules
	evaluators map[domain.Field]ruleEvaluator
	chapters   []domain.ChapterRule
}

var extractableFields = map[domain.Field]bool{
	domain.FieldDocumentNumber: true,
	domain.FieldDate:           true,
	domain.FieldImporter:       true,
	domain.FieldExporter:       true,
	domain.FieldTariffCode:     true,
	domain.FieldDeclaredValue:  true,
	domain.FieldDeclaredWeight: true,
	domain.FieldOriginCountry:  true,
}

// Compile validates rs and prepares it for evaluation. Errors describe the first invalid entry.
func Compile(rs domain.RuleSet) (*Tables, error) {
	kinds, err := compileKinds(rs.Kinds)
	if err != nil {
		return nil, err
	}
	evaluators, err := compilePatterns(rs.Patterns)
	if err != nil {
		return nil, err
	}
	chapters, err := compileChapters(rs.Chapters)
	if err != nil {
		return nil, err
	}
	return &Tables{
		version:    rs.Version,
		marker:     strings.TrimSpace(rs.InternalMarker),
		kinds:      kinds,
		evaluators: evaluators,
		chapters:   chapters,
	}, nil
}

func (t *Tables) Version() string { return t.version }

func compileKinds(in []domain.KindRules) ([]domain.KindRules, error) {
	seen := make(map[domain.DocumentKind]bool, len(in))
	out := make([]domain.KindRules, 0, len(in))
	for _, kr := range in {
		if kr.Kind == domain.KindUnknown || !kr.Kind.Valid() {
			return nil, fmt.Errorf("kind rules: unsupported kind %q", kr.Kind)
		}
		if seen[kr.Kind] {
			return nil, fmt.Errorf("kind rules: duplicate kind %q", kr.Kind)
		}
		seen[kr.Kind] = true

		keywords, err := normalizeTerms(kr.Kind, kr.Keywords)
		if err != nil {
			return nil, err
		}
		tokens, err := normalizeTerms(kr.Kind, kr.FilenameTokens)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.KindRules{Kind: kr.Kind, Keywords: keywords, FilenameTokens: tokens})
	}
	return out, nil
}

func normalizeTerms(kind domain.DocumentKind, terms []domain.WeightedTerm) ([]domain.WeightedTerm, error) {
	out := make([]domain.WeightedTerm, 0, len(terms))
	for _, term := range terms {
		value := normalize(term.Term)
		if value == "" {
			return nil, fmt.Errorf("kind rules %s: empty term", kind)
		}
		if term.Weight <= 0 {
			return nil, fmt.Errorf("kind rules %s: term %q must have positive weight", kind, term.Term)
		}
		out = append(out, domain.WeightedTerm{Term: value, Weight: term.Weight})
	}
	return out, nil
}

func compilePatterns(in []domain.PatternRule) (map[domain.Field]ruleEvaluator, error) {
	byField := make(map[domain.Field][]compiledPattern)
	for i, rule := range in {
		if !extractableFields[rule.Field] {
			return nil, fmt.Errorf("pattern rule %d (%s): unknown field %q", i, rule.Name, rule.Field)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern rule %d (%s): %w", i, rule.Name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("pattern rule %d (%s): pattern needs a capture group", i, rule.Name)
		}
		name := rule.Name
		if name == "" {
			name = fmt.Sprintf("%s#%d", rule.Field, i)
		}
		byField[rule.Field] = append(byField[rule.Field], compiledPattern{name: name, priority: rule.Priority, re: re})
	}

	out := make(map[domain.Field]ruleEvaluator, len(byField))
	for field, rules := range byField {
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].priority < rules[j].priority })
		out[field] = ruleEvaluator{rules: rules}
	}
	return out, nil
}

func compileChapters(in []domain.ChapterRule) ([]domain.ChapterRule, error) {
	out := make([]domain.ChapterRule, 0, len(in))
	for _, rule := range in {
		if rule.From < 1 || rule.To > maxChapter || rule.From > rule.To {
			return nil, fmt.Errorf("chapter rule %q: invalid range %d-%d", rule.Label, rule.From, rule.To)
		}
		if len(rule.Requires) == 0 {
			return nil, fmt.Errorf("chapter rule %q: requires at least one document", rule.Label)
		}
		for _, kind := range rule.Requires {
			if kind == domain.KindUnknown || !kind.Valid() {
				return nil, fmt.Errorf("chapter rule %q: unsupported required kind %q", rule.Label, kind)
			}
		}
		rule.Requires = append([]domain.DocumentKind(nil), rule.Requires...)
		out = append(out, rule)
	}
	return out, nil
}
