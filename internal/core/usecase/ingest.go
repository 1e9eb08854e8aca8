package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const DefaultMaxUploadBytes int64 = 20 << 20

// Classifier is the document classification step of the ingest pipeline.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// Extractor is the field extraction step of the ingest pipeline.
type Extractor interface {
	Extract(ctx context.Context, text string, documentType domain.DocumentType) (domain.ExtractionResult, error)
}

type IngestDocumentUseCase struct {
	textExtractor  ports.TextExtractor
	classifier     Classifier
	fieldExtractor Extractor
	storage        ports.ObjectStorage
	records        ports.RecordRepository
	events         ports.EventPublisher
	observer       ports.PipelineObserver
	logger         *zap.Logger
	maxUploadBytes int64
	now            func() time.Time
}

type IngestOption func(*IngestDocumentUseCase)

func WithEventPublisher(events ports.EventPublisher) IngestOption {
	return func(uc *IngestDocumentUseCase) {
		uc.events = events
	}
}

func WithIngestObserver(observer ports.PipelineObserver) IngestOption {
	return func(uc *IngestDocumentUseCase) {
		if observer != nil {
			uc.observer = observer
		}
	}
}

func WithMaxUploadBytes(limit int64) IngestOption {
	return func(uc *IngestDocumentUseCase) {
		if limit > 0 {
			uc.maxUploadBytes = limit
		}
	}
}

func NewIngestDocumentUseCase(
	textExtractor ports.TextExtractor,
	classifier Classifier,
	fieldExtractor Extractor,
	storage ports.ObjectStorage,
	records ports.RecordRepository,
	logger *zap.Logger,
	opts ...IngestOption,
) *IngestDocumentUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &IngestDocumentUseCase{
		textExtractor:  textExtractor,
		classifier:     classifier,
		fieldExtractor: fieldExtractor,
		storage:        storage,
		records:        records,
		observer:       ports.NoopObserver(),
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Upload runs the full pipeline for one file. Classification and field
// extraction failures degrade the result instead of failing the upload;
// storage failures are returned.
func (uc *IngestDocumentUseCase) Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}
	if req.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("file body is required"))
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, uc.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if int64(len(raw)) > uc.maxUploadBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("file exceeds %d bytes", uc.maxUploadBytes))
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("file is empty"))
	}

	name := sanitizeFilename(req.Filename)
	logger := uc.logger.With(zap.String("email", email), zap.String("document_name", name))

	text, err := uc.textExtractor.Extract(ctx, name, req.MimeType, raw)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", err)
	}

	classification, err := uc.classifier.Classify(ctx, text)
	if err != nil {
		logger.Warn("ingest.classification_degraded", zap.String("label", string(classification.Label)), zap.Error(err))
	}

	doc := domain.Document{
		Email:       email,
		Name:        name,
		Type:        classification.Label,
		DocumentKey: documentKey(email, name),
		TextKey:     textKey(email, name),
		CreatedAt:   uc.now(),
	}
	contentType := req.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := uc.storage.Put(ctx, doc.DocumentKey, bytes.NewReader(raw), int64(len(raw)), contentType); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if err := uc.storage.Put(ctx, doc.TextKey, strings.NewReader(text), int64(len(text)), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("store extracted text: %w", err)
	}
	doc.DocumentURL = uc.storage.URL(doc.DocumentKey)
	doc.TextURL = uc.storage.URL(doc.TextKey)

	extraction, err := uc.fieldExtractor.Extract(ctx, text, classification.Label)
	extracted := err == nil
	if err != nil {
		logger.Warn("ingest.extraction_degraded", zap.Error(err))
	}

	persisted := false
	if extracted {
		persisted = uc.persistRecord(ctx, logger, email, name, extraction)
	}

	result := &domain.UploadResult{
		Document:        doc,
		Classification:  classification,
		Extraction:      extraction,
		RecordPersisted: persisted,
	}
	uc.publish(ctx, logger, result)

	logger.Info("ingest.completed",
		zap.String("document_type", string(doc.Type)),
		zap.String("classification_path", string(classification.Path)),
		zap.Int("extracted_fields", extraction.Len()),
		zap.Bool("record_persisted", persisted),
	)
	return result, nil
}

// persistRecord stores the structured record of a known document type. A
// failure is logged and reported through the return value only.
func (uc *IngestDocumentUseCase) persistRecord(
	ctx context.Context,
	logger *zap.Logger,
	email, name string,
	extraction domain.ExtractionResult,
) bool {
	if uc.records == nil {
		return false
	}
	invoice, order := RecordsFromExtraction(email, name, extraction)

	var err error
	switch {
	case invoice != nil:
		invoice.CreatedAt = uc.now()
		err = uc.records.InsertInvoice(ctx, *invoice)
	case order != nil:
		order.CreatedAt = uc.now()
		err = uc.records.InsertPurchaseOrder(ctx, *order)
	default:
		return false
	}
	if err != nil {
		logger.Error("ingest.persist_failed", zap.String("document_type", string(extraction.DocumentType)), zap.Error(err))
		uc.observer.ObservePersistFailure(extraction.DocumentType)
		return false
	}
	return true
}

func (uc *IngestDocumentUseCase) publish(ctx context.Context, logger *zap.Logger, result *domain.UploadResult) {
	if uc.events == nil {
		return
	}
	event := domain.DocumentProcessedEvent{
		EventID:         uuid.NewString(),
		Email:           result.Document.Email,
		DocumentName:    result.Document.Name,
		DocumentType:    result.Document.Type,
		ExtractedFields: result.Extraction.Len(),
		RecordPersisted: result.RecordPersisted,
		OccurredAt:      uc.now(),
	}
	if err := uc.events.PublishDocumentProcessed(ctx, event); err != nil {
		logger.Warn("ingest.publish_failed", zap.String("event_id", event.EventID), zap.Error(err))
	}
}
