package domain

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Discrepancy is one field-level mismatch between the invoice and the transport document.
type Discrepancy struct {
	Field          string   `json:"field"`
	InvoiceValue   string   `json:"invoice_value"`
	TransportValue string   `json:"transport_value"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
}

type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictObserved Verdict = "observed"
	VerdictBlocked  Verdict = "blocked"
)

type ConsistencyResult struct {
	Consistent    bool          `json:"consistent"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	Score         int           `json:"score"`
	Verdict       Verdict       `json:"verdict"`
}

// CriticalCount returns the number of critical discrepancies.
func (r ConsistencyResult) CriticalCount() int {
	count := 0
	for _, d := range r.Discrepancies {
		if d.Severity == SeverityCritical {
			count++
		}
	}
	return count
}

type AssociationSuggestion struct {
	CaseID        string   `json:"case_id"`
	CaseReference string   `json:"case_reference"`
	CaseImporter  string   `json:"case_importer"`
	Score         int      `json:"score"`
	Reasons       []string `json:"reasons"`
}

type AssociationOutcome string

const (
	AssociationApproved AssociationOutcome = "approved"
	AssociationRejected AssociationOutcome = "rejected"
)

type AssociationResult struct {
	Success            bool               `json:"success"`
	Outcome            AssociationOutcome `json:"outcome"`
	Details            []string           `json:"details"`
	ReturnToUnassigned bool               `json:"return_to_unassigned"`
}
