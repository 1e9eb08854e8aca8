package domain

import (
	"io"
	"strings"
	"time"
)

// DocumentType is the classification label of a document. On the model
// fallback path it may be any free-text label returned by the model.
type DocumentType string

const (
	TypeInvoice       DocumentType = "invoice"
	TypeContract      DocumentType = "contract"
	TypePurchaseOrder DocumentType = "purchase order"

	// Sentinel labels reported when classification could not produce a type.
	LabelUnknown DocumentType = "Unknown"
	LabelError   DocumentType = "Error"
)

// CandidateLabels is the fixed label set offered to both classifiers.
func CandidateLabels() []string {
	return []string{string(TypeInvoice), string(TypeContract), string(TypePurchaseOrder)}
}

// ParseDocumentType normalises a free-text label for schema dispatch.
// The second return value is false when the label is not a known type.
func ParseDocumentType(label string) (DocumentType, bool) {
	normalized := strings.Join(strings.Fields(strings.ToLower(label)), " ")
	switch DocumentType(normalized) {
	case TypeInvoice, TypeContract, TypePurchaseOrder:
		return DocumentType(normalized), true
	default:
		return DocumentType(label), false
	}
}

type ClassificationPath string

const (
	PathZeroShot      ClassificationPath = "zero_shot"
	PathModelFallback ClassificationPath = "model_fallback"
	PathUnresolved    ClassificationPath = "unresolved"
)

type Classification struct {
	Label      DocumentType       `json:"label"`
	Confidence float64            `json:"confidence"`
	Path       ClassificationPath `json:"path"`
}

// LabelScore is one ranked candidate from the zero-shot model.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type UploadRequest struct {
	Email    string
	Filename string
	MimeType string
	Body     io.Reader
}

// Document is an uploaded file owned by one identity. Documents are
// immutable once stored.
type Document struct {
	Email       string       `json:"email"`
	Name        string       `json:"document_name"`
	Type        DocumentType `json:"document_type"`
	DocumentKey string       `json:"document_key"`
	TextKey     string       `json:"extracted_text_key"`
	DocumentURL string       `json:"document_url"`
	TextURL     string       `json:"extracted_text_url"`
	CreatedAt   time.Time    `json:"created_at"`
}

type UploadResult struct {
	Document        Document         `json:"document"`
	Classification  Classification   `json:"classification"`
	Extraction      ExtractionResult `json:"extracted_data"`
	RecordPersisted bool             `json:"record_persisted"`
}

// StoredDocument is one entry of an identity's document listing.
type StoredDocument struct {
	Name         string    `json:"document_name"`
	URL          string    `json:"document_url"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectInfo describes an object returned by a storage prefix listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
