package domain

import "time"

// ComplianceState is the red/yellow/green readiness signal of a case file.
type ComplianceState string

const (
	ComplianceRed    ComplianceState = "red"
	ComplianceYellow ComplianceState = "yellow"
	ComplianceGreen  ComplianceState = "green"
)

// CaseFile aggregates the documents believed to belong to one import transaction.
// State, MissingDocuments, MissingPermits, ReadyForValidation, Exporter and
// TariffCode are derived from Members and must only be set by the aggregator.
type CaseFile struct {
	ID                 string             `json:"id"`
	Reference          string             `json:"reference"`
	Importer           string             `json:"importer"`
	Exporter           string             `json:"exporter,omitempty"`
	Members            []DocumentRecord   `json:"members"`
	State              ComplianceState    `json:"state"`
	MissingDocuments   []DocumentKind     `json:"missing_documents"`
	MissingPermits     []DocumentKind     `json:"missing_permits"`
	ReadyForValidation bool               `json:"ready_for_validation"`
	CreatedAt          time.Time          `json:"created_at"`
	TariffCode         string             `json:"tariff_code,omitempty"`
	LastValidation     *ConsistencyResult `json:"last_validation,omitempty"`
}

// HasKind reports whether any member is of the given kind.
func (c CaseFile) HasKind(kind DocumentKind) bool {
	for _, member := range c.Members {
		if member.Kind == kind {
			return true
		}
	}
	return false
}

// FirstOfKind returns the first member of the given kind in member order.
func (c CaseFile) FirstOfKind(kind DocumentKind) (DocumentRecord, bool) {
	for _, member := range c.Members {
		if member.Kind == kind {
			return member, true
		}
	}
	return DocumentRecord{}, false
}

// CountOfKind returns how many members have the given kind.
func (c CaseFile) CountOfKind(kind DocumentKind) int {
	n := 0
	for _, member := range c.Members {
		if member.Kind == kind {
			n++
		}
	}
	return n
}

// HasMember reports whether the record id already belongs to the case.
func (c CaseFile) HasMember(recordID string) bool {
	for _, member := range c.Members {
		if member.ID == recordID {
			return true
		}
	}
	return false
}
