package domain

import "time"

// DocumentKind is the closed set of trade document types the classifier can emit.
type DocumentKind string

const (
	KindCommercialInvoice        DocumentKind = "commercial_invoice"
	KindBillOfLading             DocumentKind = "bill_of_lading"
	KindPackingList              DocumentKind = "packing_list"
	KindInsuranceCertificate     DocumentKind = "insurance_certificate"
	KindCertificateOfOrigin      DocumentKind = "certificate_of_origin"
	KindSanitaryPermit           DocumentKind = "sanitary_permit"
	KindPhytosanitaryCertificate DocumentKind = "phytosanitary_certificate"
	KindSanitaryRegistration     DocumentKind = "sanitary_registration"
	KindUnknown                  DocumentKind = "unknown"
)

var knownKinds = []DocumentKind{
	KindCommercialInvoice,
	KindBillOfLading,
	KindPackingList,
	KindInsuranceCertificate,
	KindCertificateOfOrigin,
	KindSanitaryPermit,
	KindPhytosanitaryCertificate,
	KindSanitaryRegistration,
}

// KnownKinds returns every classifiable kind, excluding unknown.
func KnownKinds() []DocumentKind {
	return append([]DocumentKind(nil), knownKinds...)
}

// BaseKinds are the two mandatory documents of every case file.
func BaseKinds() []DocumentKind {
	return []DocumentKind{KindCommercialInvoice, KindBillOfLading}
}

func (k DocumentKind) Valid() bool {
	if k == KindUnknown {
		return true
	}
	for _, known := range knownKinds {
		if k == known {
			return true
		}
	}
	return false
}

type Origin string

const (
	OriginInternal Origin = "internal"
	OriginExternal Origin = "external"
)

// ExtractedFields holds whatever the pattern rules found. Empty strings and nil
// numerics mean the field was not present in the text.
type ExtractedFields struct {
	DocumentNumber   string   `json:"document_number,omitempty"`
	Date             string   `json:"date,omitempty"`
	Importer         string   `json:"importer,omitempty"`
	Exporter         string   `json:"exporter,omitempty"`
	TariffCode       string   `json:"tariff_code,omitempty"`
	DeclaredValue    *float64 `json:"declared_value,omitempty"`
	DeclaredWeightKg *float64 `json:"declared_weight_kg,omitempty"`
	OriginCountry    string   `json:"origin_country,omitempty"`
}

// DocumentRecord is one classified document. Records are never mutated after
// analysis; re-analysis produces a new record.
type DocumentRecord struct {
	ID              string          `json:"id"`
	Filename        string          `json:"filename"`
	Kind            DocumentKind    `json:"kind"`
	Confidence      int             `json:"confidence"`
	Fields          ExtractedFields `json:"fields"`
	Origin          Origin          `json:"origin"`
	AnalyzedAt      time.Time       `json:"analyzed_at"`
	MatchedKeywords []string        `json:"matched_keywords"`
	ContentHash     string          `json:"content_hash,omitempty"`
}

type SubmissionStatus string

const (
	StatusUploaded   SubmissionStatus = "uploaded"
	StatusProcessing SubmissionStatus = "processing"
	StatusReady      SubmissionStatus = "ready"
	StatusFailed     SubmissionStatus = "failed"
)

// Submission tracks an uploaded source file until the worker turns it into a DocumentRecord.
type Submission struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	MimeType    string           `json:"mime_type"`
	StoragePath string           `json:"storage_path"`
	Status      SubmissionStatus `json:"status"`
	RecordID    string           `json:"record_id,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
