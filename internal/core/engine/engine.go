// Package engine classifies trade documents, groups them into case files and
// cross-validates them. Every component is a pure function of its inputs and
// the compiled rule tables, so one Engine is safe for concurrent use.
package engine

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

type Engine struct {
	tables *Tables
	ids    IDGenerator
	clock  Clock

	Extractor   *FieldExtractor
	Classifier  *TypeClassifier
	Source      *SourceClassifier
	Aggregator  *CaseAggregator
	Consistency ConsistencyValidator
	Ranker      SuggestionRanker
	Association AssociationValidator
}

type Option func(*Engine)

func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) { e.ids = ids }
}

func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// New compiles rules and wires every component.
func New(rules domain.RuleSet, opts ...Option) (*Engine, error) {
	tables, err := Compile(rules)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compile rule set", err)
	}
	e := &Engine{tables: tables, ids: UUIDGenerator{}, clock: SystemClock{}}
	for _, opt := range opts {
		opt(e)
	}
	e.Extractor = NewFieldExtractor(tables)
	e.Classifier = NewTypeClassifier(tables)
	e.Source = NewSourceClassifier(tables)
	e.Aggregator = NewCaseAggregator(tables, e.ids, e.clock)
	e.Consistency = NewConsistencyValidator()
	e.Ranker = NewSuggestionRanker()
	e.Association = NewAssociationValidator()
	return e, nil
}

func (e *Engine) RulesVersion() string { return e.tables.Version() }

func (e *Engine) Clock() Clock { return e.clock }

// Analyze turns one (filename, text) pair into a new DocumentRecord.
func (e *Engine) Analyze(filename, text string, knownInternalIDs []string) domain.DocumentRecord {
	cls := e.Classifier.Classify(filename, text)
	sum := sha256.Sum256([]byte(text))
	return domain.DocumentRecord{
		ID:              e.ids.NewID(),
		Filename:        filename,
		Kind:            cls.Kind,
		Confidence:      cls.Confidence,
		Fields:          e.Extractor.Extract(text),
		Origin:          e.Source.Classify(text, knownInternalIDs),
		AnalyzedAt:      e.clock.Now().UTC(),
		MatchedKeywords: cls.MatchedKeywords,
		ContentHash:     hex.EncodeToString(sum[:]),
	}
}

func (e *Engine) Aggregate(records []domain.DocumentRecord) []domain.CaseFile {
	return e.Aggregator.Aggregate(records)
}

func (e *Engine) Validate(c domain.CaseFile) domain.ConsistencyResult {
	return e.Consistency.Validate(c)
}

func (e *Engine) Suggest(doc domain.DocumentRecord, cases []domain.CaseFile) []domain.AssociationSuggestion {
	return e.Ranker.Rank(doc, cases)
}

func (e *Engine) VetAssociation(doc domain.DocumentRecord, c domain.CaseFile) domain.AssociationResult {
	return e.Association.Validate(doc, c)
}
