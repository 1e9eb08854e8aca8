package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// ModelClient sends one prompt to a hosted language model and returns its text reply.
type ModelClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// ZeroShotClassifier ranks candidate labels for a text, highest score first.
type ZeroShotClassifier interface {
	Rank(ctx context.Context, text string, labels []string) ([]domain.LabelScore, error)
}

// TextExtractor turns uploaded bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename, mimeType string, data []byte) (string, error)
}

// ObjectStorage stores raw documents and their extracted text.
// Get returns an error of kind domain.ErrNotFound for a missing key.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error)
	URL(key string) string
}

// RecordRepository persists structured fields extracted from documents.
type RecordRepository interface {
	InsertInvoice(ctx context.Context, rec domain.InvoiceRecord) error
	InsertPurchaseOrder(ctx context.Context, rec domain.PurchaseOrderRecord) error
	ListInvoices(ctx context.Context, email string) ([]domain.InvoiceRecord, error)
	ListPurchaseOrders(ctx context.Context, email string) ([]domain.PurchaseOrderRecord, error)
}

// SimilarityScorer scores how well a needle matches inside a line, 0..100.
type SimilarityScorer interface {
	PartialRatio(a, b string) int
}

// RecordExporter renders a record set as a downloadable file.
type RecordExporter interface {
	Export(set domain.RecordSet) ([]byte, error)
	ContentType() string
	FileExtension() string
}
