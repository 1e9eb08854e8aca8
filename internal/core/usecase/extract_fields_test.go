package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

func TestExtractInvoiceStrictJSON(t *testing.T) {
	model := &modelFake{reply: "```json\n{\"invoice_number\": \"INV-123\", \"invoice_date\": \"2024-01-05\", \"total_amount\": 500.5, \"vendor_name\": \"Acme Corp\"}\n```"}
	observer := &observerFake{}
	extractor := NewFieldExtractor(model, observer, nil)

	got, err := extractor.Extract(context.Background(), "Invoice INV-123 from Acme Corp", domain.TypeInvoice)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Decoder != domain.DecoderStrict {
		t.Fatalf("expected strict decode, got %q", got.Decoder)
	}
	want := map[string]string{
		"invoice_number": "INV-123",
		"invoice_date":   "2024-01-05",
		"total_amount":   "500.5",
		"vendor_name":    "Acme Corp",
	}
	for key, value := range want {
		if got.Get(key) != value {
			t.Fatalf("field %s = %q, want %q", key, got.Get(key), value)
		}
	}

	req := model.requests[0]
	if req.System != "You are a document extraction expert." || req.MaxTokens != 1000 || req.Temperature != 0 {
		t.Fatalf("unexpected call parameters: %+v", req)
	}
	if !strings.Contains(req.Prompt, "Invoice INV-123 from Acme Corp") {
		t.Fatalf("expected document text in prompt")
	}
	if len(observer.extractions) != 1 || observer.extractions[0] != domain.DecoderStrict {
		t.Fatalf("unexpected observations: %v", observer.extractions)
	}
}

func TestExtractFallsBackToPatternSearch(t *testing.T) {
	reply := `Sure! Here are the fields:
"invoice_number": "INV-9",
"vendor_name": "Globex"
and the rest is missing`
	extractor := NewFieldExtractor(&modelFake{reply: reply}, nil, nil)

	got, err := extractor.Extract(context.Background(), "text", domain.TypeInvoice)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Decoder != domain.DecoderTolerant {
		t.Fatalf("expected tolerant decode, got %q", got.Decoder)
	}
	if got.Get("invoice_number") != "INV-9" || got.Get("vendor_name") != "Globex" {
		t.Fatalf("unexpected fields: %v", got.Fields())
	}
	if got.Get("invoice_date") != domain.MissingValue || got.Get("total_amount") != domain.MissingValue {
		t.Fatalf("expected missing markers, got %v", got.Fields())
	}
}

func TestExtractEveryKeyPresentForGarbage(t *testing.T) {
	extractor := NewFieldExtractor(&modelFake{reply: "I cannot help with that."}, nil, nil)

	got, err := extractor.Extract(context.Background(), "text", domain.TypePurchaseOrder)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	keys := got.Keys()
	if strings.Join(keys, ",") != strings.Join(domain.PurchaseOrderSchema.Keys(), ",") {
		t.Fatalf("unexpected keys: %v", keys)
	}
	for _, key := range keys {
		if got.Get(key) != domain.MissingValue {
			t.Fatalf("expected %s to be missing, got %q", key, got.Get(key))
		}
	}
}

func TestExtractPurchaseOrderAcceptsLabelKeys(t *testing.T) {
	reply := `{"Purchase Order Number": "PO-42", "Order Date": "2024-03-01", "Total Amount": "1,200.00", "Supplier Name": "Initech"}`
	extractor := NewFieldExtractor(&modelFake{reply: reply}, nil, nil)

	got, err := extractor.Extract(context.Background(), "text", domain.DocumentType("Purchase Order"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.DocumentType != domain.TypePurchaseOrder {
		t.Fatalf("expected purchase order dispatch, got %q", got.DocumentType)
	}
	if got.Decoder != domain.DecoderStrict {
		t.Fatalf("expected aliased keys to pass strict decode, got %q", got.Decoder)
	}
	if got.Get("purchase_order_number") != "PO-42" || got.Get("supplier_name") != "Initech" || got.Get("total_amount") != "1,200.00" {
		t.Fatalf("unexpected fields: %v", got.Fields())
	}
}

func TestExtractNullAndNoneBecomeMissing(t *testing.T) {
	reply := `{"invoice_number": null, "invoice_date": "None", "total_amount": "", "vendor_name": "Acme"}`
	extractor := NewFieldExtractor(&modelFake{reply: reply}, nil, nil)

	got, err := extractor.Extract(context.Background(), "text", domain.TypeInvoice)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	for _, key := range []string{"invoice_number", "invoice_date", "total_amount"} {
		if got.Get(key) != domain.MissingValue {
			t.Fatalf("expected %s missing, got %q", key, got.Get(key))
		}
	}
	if got.Get("vendor_name") != "Acme" {
		t.Fatalf("unexpected vendor: %q", got.Get("vendor_name"))
	}
}

func TestExtractUnknownTypeSkipsModel(t *testing.T) {
	for _, docType := range []domain.DocumentType{domain.TypeContract, domain.LabelUnknown, domain.LabelError, "Receipt"} {
		model := &modelFake{reply: "{}"}
		extractor := NewFieldExtractor(model, nil, nil)

		got, err := extractor.Extract(context.Background(), "text", docType)
		if err != nil {
			t.Fatalf("Extract(%q) error = %v", docType, err)
		}
		if got.Len() != 0 {
			t.Fatalf("expected empty extraction for %q, got %v", docType, got.Fields())
		}
		if len(model.requests) != 0 {
			t.Fatalf("expected no model call for %q", docType)
		}
	}
}

func TestExtractModelFailureReturnsMissingFields(t *testing.T) {
	model := &modelFake{err: errors.New("rate limited")}
	observer := &observerFake{}
	extractor := NewFieldExtractor(model, observer, nil)

	got, err := extractor.Extract(context.Background(), "text", domain.TypeInvoice)
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if got.Len() != len(domain.InvoiceSchema.Fields) {
		t.Fatalf("expected fully keyed result, got %v", got.Fields())
	}
	if len(model.requests) != 1 {
		t.Fatalf("expected no retry, got %d calls", len(model.requests))
	}
	if len(observer.extractions) != 1 || observer.extractions[0] != domain.DecoderNone {
		t.Fatalf("unexpected observations: %v", observer.extractions)
	}
}

func TestRecordsFromExtraction(t *testing.T) {
	result := domain.NewExtractionResult(domain.InvoiceSchema)
	result.Set("invoice_number", "INV-1")

	invoice, order := RecordsFromExtraction("a@b.com", "inv.pdf", result)
	if order != nil || invoice == nil {
		t.Fatalf("expected invoice record only")
	}
	if invoice.InvoiceNumber != "INV-1" || invoice.VendorName != domain.MissingValue || invoice.Email != "a@b.com" {
		t.Fatalf("unexpected record: %+v", invoice)
	}

	invoice, order = RecordsFromExtraction("a@b.com", "c.pdf", domain.EmptyExtraction(domain.TypeContract))
	if invoice != nil || order != nil {
		t.Fatalf("expected no record for contract")
	}
}
