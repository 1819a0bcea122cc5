package domain

// Field names the extractable fields of a document.
type Field string

const (
	FieldDocumentNumber Field = "document_number"
	FieldDate           Field = "date"
	FieldImporter       Field = "importer"
	FieldExporter       Field = "exporter"
	FieldTariffCode     Field = "tariff_code"
	FieldDeclaredValue  Field = "declared_value"
	FieldDeclaredWeight Field = "declared_weight"
	FieldOriginCountry  Field = "origin_country"
)

// WeightedTerm is a keyword (or filename token) and the score it contributes.
type WeightedTerm struct {
	Term   string `json:"term" yaml:"term"`
	Weight int    `json:"weight" yaml:"weight"`
}

// KindRules is the keyword dictionary for one document kind.
type KindRules struct {
	Kind           DocumentKind   `json:"kind" yaml:"kind"`
	Keywords       []WeightedTerm `json:"keywords" yaml:"keywords"`
	FilenameTokens []WeightedTerm `json:"filename_tokens,omitempty" yaml:"filename_tokens,omitempty"`
}

// PatternRule extracts one field; the first capture group is the value.
// Lower priority values are tried first.
type PatternRule struct {
	Name     string `json:"name" yaml:"name"`
	Field    Field  `json:"field" yaml:"field"`
	Pattern  string `json:"pattern" yaml:"pattern"`
	Priority int    `json:"priority" yaml:"priority"`
}

// ChapterRule maps an inclusive range of two-digit tariff chapters to the
// permits a case in that range must carry.
type ChapterRule struct {
	Label    string         `json:"label" yaml:"label"`
	From     int            `json:"from" yaml:"from"`
	To       int            `json:"to" yaml:"to"`
	Requires []DocumentKind `json:"requires" yaml:"requires"`
}

// RuleSet is the static configuration shared by every engine component.
// It is loaded once at start-up and treated as read-only.
type RuleSet struct {
	Version        string        `json:"version" yaml:"version"`
	InternalMarker string        `json:"internal_marker" yaml:"internal_marker"`
	Kinds          []KindRules   `json:"kinds" yaml:"kinds"`
	Patterns       []PatternRule `json:"patterns" yaml:"patterns"`
	Chapters       []ChapterRule `json:"chapters" yaml:"chapters"`
}
