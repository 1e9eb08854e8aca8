package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

// CatalogUseCase lists what an identity has uploaded and what was extracted.
type CatalogUseCase struct {
	storage  ports.ObjectStorage
	records  ports.RecordRepository
	exporter ports.RecordExporter
	logger   *zap.Logger
}

func NewCatalogUseCase(
	storage ports.ObjectStorage,
	records ports.RecordRepository,
	exporter ports.RecordExporter,
	logger *zap.Logger,
) *CatalogUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogUseCase{
		storage:  storage,
		records:  records,
		exporter: exporter,
		logger:   logger,
	}
}

func (uc *CatalogUseCase) ListDocuments(ctx context.Context, email string) ([]domain.StoredDocument, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	prefix := documentPrefix(email)
	objects, err := uc.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(objects) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "list documents", errors.New("no documents found"))
	}

	docs := make([]domain.StoredDocument, 0, len(objects))
	for _, obj := range objects {
		docs = append(docs, domain.StoredDocument{
			Name:         documentNameFromKey(obj.Key, prefix),
			URL:          uc.storage.URL(obj.Key),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return docs, nil
}

func (uc *CatalogUseCase) ListRecords(ctx context.Context, email string) (domain.RecordSet, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.RecordSet{}, err
	}

	invoices, err := uc.records.ListInvoices(ctx, email)
	if err != nil {
		return domain.RecordSet{}, fmt.Errorf("list invoices: %w", err)
	}
	orders, err := uc.records.ListPurchaseOrders(ctx, email)
	if err != nil {
		return domain.RecordSet{}, fmt.Errorf("list purchase orders: %w", err)
	}

	set := domain.RecordSet{
		Invoices:       invoices,
		PurchaseOrders: orders,
	}
	if set.Invoices == nil {
		set.Invoices = []domain.InvoiceRecord{}
	}
	if set.PurchaseOrders == nil {
		set.PurchaseOrders = []domain.PurchaseOrderRecord{}
	}
	if set.Empty() {
		return domain.RecordSet{}, domain.WrapError(domain.ErrNotFound, "list records", errors.New("no records found"))
	}
	return set, nil
}

func (uc *CatalogUseCase) ExportRecords(ctx context.Context, email string) (*domain.ExportFile, error) {
	if uc.exporter == nil {
		return nil, errors.New("record export is not configured")
	}
	set, err := uc.ListRecords(ctx, email)
	if err != nil {
		return nil, err
	}

	data, err := uc.exporter.Export(set)
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	uc.logger.Info("catalog.exported",
		zap.Int("invoices", len(set.Invoices)),
		zap.Int("purchase_orders", len(set.PurchaseOrders)),
	)
	return &domain.ExportFile{
		Filename:    "records" + uc.exporter.FileExtension(),
		ContentType: uc.exporter.ContentType(),
		Data:        data,
	}, nil
}
