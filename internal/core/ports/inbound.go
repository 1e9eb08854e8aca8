package ports

import (
	"context"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// DocumentIngestor is the inbound contract for upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error)
}

// DocumentQueryService answers questions over an identity's documents.
type DocumentQueryService interface {
	Answer(ctx context.Context, query, email string) (*domain.Answer, error)
}

// DocumentCatalog is the read model over stored documents and records.
type DocumentCatalog interface {
	ListDocuments(ctx context.Context, email string) ([]domain.StoredDocument, error)
	ListRecords(ctx context.Context, email string) (domain.RecordSet, error)
	ExportRecords(ctx context.Context, email string) (*domain.ExportFile, error)
}
