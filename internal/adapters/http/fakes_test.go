package httpadapter

import (
	"context"
	"io"
	"net/http"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type ingestFake struct {
	err      error
	received domain.UploadRequest
	body     string
}

func (f *ingestFake) Upload(_ context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	f.received = req
	f.body = string(raw)

	extraction := domain.NewExtractionResult(domain.InvoiceSchema)
	extraction.Set("invoice_number", "INV-123")
	return &domain.UploadResult{
		Document: domain.Document{
			Email:       req.Email,
			Name:        req.Filename,
			Type:        domain.TypeInvoice,
			DocumentURL: "s3://bucket/documents/" + req.Email + "_" + req.Filename,
			TextURL:     "s3://bucket/extractedtexts/" + req.Email + "_a.txt",
		},
		Classification:  domain.Classification{Label: domain.TypeInvoice, Confidence: 0.91, Path: domain.PathZeroShot},
		Extraction:      extraction,
		RecordPersisted: true,
	}, nil
}

type queryFake struct {
	answer *domain.Answer
	err    error
}

func (f queryFake) Answer(context.Context, string, string) (*domain.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type catalogFake struct {
	docs    []domain.StoredDocument
	records domain.RecordSet
	export  *domain.ExportFile
	err     error
	email   string
}

func (f *catalogFake) ListDocuments(_ context.Context, email string) ([]domain.StoredDocument, error) {
	f.email = email
	return f.docs, f.err
}

func (f *catalogFake) ListRecords(_ context.Context, email string) (domain.RecordSet, error) {
	f.email = email
	return f.records, f.err
}

func (f *catalogFake) ExportRecords(_ context.Context, email string) (*domain.ExportFile, error) {
	f.email = email
	return f.export, f.err
}

func newTestHandler(cfg config.Config, ingest *ingestFake, query queryFake, catalog *catalogFake, opts ...RouterOption) http.Handler {
	if ingest == nil {
		ingest = &ingestFake{}
	}
	if catalog == nil {
		catalog = &catalogFake{}
	}
	return NewRouter(cfg, ingest, query, catalog, opts...).Handler()
}
