package domain

import (
	"encoding/json"
	"time"
)

// MissingValue marks a schema field the model did not provide.
const MissingValue = "None"

// Field is one key of an extraction schema. Aliases are alternative
// spellings accepted from model output.
type Field struct {
	Key     string
	Label   string
	Aliases []string
}

// Schema is the fixed field set extracted for one document type.
type Schema struct {
	Type   DocumentType
	Fields []Field
}

func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

var (
	InvoiceSchema = Schema{
		Type: TypeInvoice,
		Fields: []Field{
			{Key: "invoice_number", Label: "Invoice Number"},
			{Key: "invoice_date", Label: "Invoice Date"},
			{Key: "total_amount", Label: "Total Amount"},
			{Key: "vendor_name", Label: "Vendor Name"},
		},
	}
	PurchaseOrderSchema = Schema{
		Type: TypePurchaseOrder,
		Fields: []Field{
			{Key: "purchase_order_number", Label: "Purchase Order Number", Aliases: []string{"Purchase Order Number", "po_number"}},
			{Key: "order_date", Label: "Order Date", Aliases: []string{"Order Date"}},
			{Key: "total_amount", Label: "Total Amount", Aliases: []string{"Total Amount"}},
			{Key: "supplier_name", Label: "Supplier Name", Aliases: []string{"Supplier Name"}},
		},
	}
)

// SchemaFor returns the extraction schema of a document type.
func SchemaFor(t DocumentType) (Schema, bool) {
	switch t {
	case TypeInvoice:
		return InvoiceSchema, true
	case TypePurchaseOrder:
		return PurchaseOrderSchema, true
	default:
		return Schema{}, false
	}
}

type DecoderKind string

const (
	DecoderNone     DecoderKind = ""
	DecoderStrict   DecoderKind = "strict"
	DecoderTolerant DecoderKind = "tolerant"
)

// ExtractionResult holds the fields parsed for one document. For a known
// schema every key is present, holding either a value or MissingValue.
type ExtractionResult struct {
	DocumentType DocumentType
	Decoder      DecoderKind
	keys         []string
	fields       map[string]string
}

// NewExtractionResult returns a result with every schema key set to MissingValue.
func NewExtractionResult(schema Schema) ExtractionResult {
	out := ExtractionResult{
		DocumentType: schema.Type,
		keys:         schema.Keys(),
		fields:       make(map[string]string, len(schema.Fields)),
	}
	for _, key := range out.keys {
		out.fields[key] = MissingValue
	}
	return out
}

// EmptyExtraction is the result for a document type without a schema.
func EmptyExtraction(t DocumentType) ExtractionResult {
	return ExtractionResult{DocumentType: t, fields: map[string]string{}}
}

func (r *ExtractionResult) Set(key, value string) {
	if r.fields == nil {
		r.fields = map[string]string{}
	}
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	if value == "" {
		value = MissingValue
	}
	r.fields[key] = value
}

func (r ExtractionResult) Get(key string) string {
	return r.fields[key]
}

func (r ExtractionResult) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r ExtractionResult) Len() int {
	return len(r.keys)
}

// Fields returns a copy of the parsed key/value pairs.
func (r ExtractionResult) Fields() map[string]string {
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

type InvoiceRecord struct {
	Email         string    `json:"user_email"`
	DocumentName  string    `json:"document_name"`
	InvoiceNumber string    `json:"invoice_number"`
	InvoiceDate   string    `json:"invoice_date"`
	TotalAmount   string    `json:"total_amount"`
	VendorName    string    `json:"vendor_name"`
	CreatedAt     time.Time `json:"created_at"`
}

type PurchaseOrderRecord struct {
	Email               string    `json:"user_email"`
	DocumentName        string    `json:"document_name"`
	PurchaseOrderNumber string    `json:"purchase_order_number"`
	OrderDate           string    `json:"order_date"`
	TotalAmount         string    `json:"total_amount"`
	SupplierName        string    `json:"supplier_name"`
	CreatedAt           time.Time `json:"created_at"`
}

// RecordSet groups the structured records of one identity.
type RecordSet struct {
	Invoices       []InvoiceRecord       `json:"invoices"`
	PurchaseOrders []PurchaseOrderRecord `json:"purchase_orders"`
}

func (s RecordSet) Empty() bool {
	return len(s.Invoices) == 0 && len(s.PurchaseOrders) == 0
}

// DocumentProcessedEvent is published after an upload finished processing.
type DocumentProcessedEvent struct {
	EventID         string       `json:"event_id"`
	Email           string       `json:"email"`
	DocumentName    string       `json:"document_name"`
	DocumentType    DocumentType `json:"document_type"`
	ExtractedFields int          `json:"extracted_fields"`
	RecordPersisted bool         `json:"record_persisted"`
	OccurredAt      time.Time    `json:"occurred_at"`
}

// ExportFile is a rendered record export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
