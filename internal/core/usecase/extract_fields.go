package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const (
	extractMaxTokens   = 1000
	extractTemperature = 0
)

// FieldExtractor pulls the schema fields of a classified document out of its
// text with one language model call.
type FieldExtractor struct {
	model    ports.ModelClient
	decoders map[domain.DocumentType]*fieldDecoder
	observer ports.PipelineObserver
	logger   *zap.Logger
}

func NewFieldExtractor(model ports.ModelClient, observer ports.PipelineObserver, logger *zap.Logger) *FieldExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = ports.NoopObserver()
	}

	decoders := make(map[domain.DocumentType]*fieldDecoder, 2)
	for _, schema := range []domain.Schema{domain.InvoiceSchema, domain.PurchaseOrderSchema} {
		decoder, err := newFieldDecoder(schema)
		if err != nil {
			logger.Error("extract.schema_compile_failed", zap.String("document_type", string(schema.Type)), zap.Error(err))
		}
		decoders[schema.Type] = decoder
	}

	return &FieldExtractor{
		model:    model,
		decoders: decoders,
		observer: observer,
		logger:   logger,
	}
}

// Extract returns an empty result for document types without a schema. On a
// failed model call the result still carries every schema key, all set to
// domain.MissingValue, and the error is of kind domain.ErrExtraction.
func (e *FieldExtractor) Extract(ctx context.Context, text string, documentType domain.DocumentType) (domain.ExtractionResult, error) {
	docType, known := domain.ParseDocumentType(string(documentType))
	schema, ok := domain.SchemaFor(docType)
	if !known || !ok {
		e.logger.Debug("extract.no_schema", zap.String("document_type", string(documentType)))
		return domain.EmptyExtraction(documentType), nil
	}

	if e.model == nil {
		err := domain.WrapError(domain.ErrExtraction, "extract fields", errors.New("model client is not configured"))
		e.observer.ObserveExtraction(docType, domain.DecoderNone, err)
		return domain.NewExtractionResult(schema), err
	}

	reply, err := e.model.Complete(ctx, domain.CompletionRequest{
		Prompt:      buildExtractionPrompt(schema, text),
		System:      extractionSystemPrompt,
		MaxTokens:   extractMaxTokens,
		Temperature: extractTemperature,
	})
	if err != nil {
		e.logger.Warn("extract.model_failed", zap.String("document_type", string(docType)), zap.Error(err))
		err = domain.WrapError(domain.ErrExtraction, "extract fields", err)
		e.observer.ObserveExtraction(docType, domain.DecoderNone, err)
		return domain.NewExtractionResult(schema), err
	}

	result := e.decoders[docType].Decode(reply)
	if result.Decoder == domain.DecoderTolerant {
		e.logger.Info("extract.tolerant_decode", zap.String("document_type", string(docType)))
	}
	e.observer.ObserveExtraction(docType, result.Decoder, nil)
	return result, nil
}

// RecordsFromExtraction maps an extraction result onto the record type of
// its schema. Exactly one of the returned pointers is non-nil for a known
// schema; both are nil otherwise.
func RecordsFromExtraction(email, documentName string, result domain.ExtractionResult) (*domain.InvoiceRecord, *domain.PurchaseOrderRecord) {
	switch result.DocumentType {
	case domain.TypeInvoice:
		return &domain.InvoiceRecord{
			Email:         email,
			DocumentName:  documentName,
			InvoiceNumber: result.Get("invoice_number"),
			InvoiceDate:   result.Get("invoice_date"),
			TotalAmount:   result.Get("total_amount"),
			VendorName:    result.Get("vendor_name"),
		}, nil
	case domain.TypePurchaseOrder:
		return nil, &domain.PurchaseOrderRecord{
			Email:               email,
			DocumentName:        documentName,
			PurchaseOrderNumber: result.Get("purchase_order_number"),
			OrderDate:           result.Get("order_date"),
			TotalAmount:         result.Get("total_amount"),
			SupplierName:        result.Get("supplier_name"),
		}
	default:
		return nil, nil
	}
}
