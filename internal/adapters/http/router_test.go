package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/observability/metrics"
)

func multipartUpload(t *testing.T, path, email, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if email != "" {
		if err := writer.WriteField("email", email); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthzAndRoot(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, queryFake{}, nil)
	for _, path := range []string{"/healthz", "/"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, res.Code)
		}
		if res.Header().Get(requestIDHeader) == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestHandler(config.Config{MaxUploadBytes: 1 << 20}, ingest, queryFake{}, nil)

	for _, path := range []string{"/v1/documents", "/upload_document/"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, multipartUpload(t, path, "u@x.com", "a.pdf", "%PDF-raw"))
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, res.Code, res.Body.String())
		}
		resp := decodeBody(t, res)
		if resp["document_type"] != "invoice" || resp["record_persisted"] != true {
			t.Fatalf("unexpected response %+v", resp)
		}
		data, ok := resp["extracted_data"].(map[string]any)
		if !ok || data["invoice_number"] != "INV-123" || data["vendor_name"] != domain.MissingValue {
			t.Fatalf("unexpected extracted_data %+v", resp["extracted_data"])
		}
		if ingest.received.Email != "u@x.com" || ingest.received.Filename != "a.pdf" || ingest.body != "%PDF-raw" {
			t.Fatalf("unexpected upload request %+v body=%q", ingest.received, ingest.body)
		}
	}
}

func TestUploadDocumentValidation(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, queryFake{}, nil)

	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without multipart file, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "/v1/documents", "", "a.pdf", "x"))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without email, got %d", res.Code)
	}
}

func TestUploadDocumentTooLarge(t *testing.T) {
	handler := newTestHandler(config.Config{MaxUploadBytes: 16}, nil, queryFake{}, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "/v1/documents", "u@x.com", "a.txt", strings.Repeat("x", 2<<20)))
	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestUploadMapsDomainErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("bad email")),
		http.StatusServiceUnavailable:  domain.WrapError(domain.ErrTemporary, "put", errors.New("s3 down")),
		http.StatusInternalServerError: errors.New("boom"),
	}
	for status, err := range cases {
		handler := newTestHandler(config.Config{}, &ingestFake{err: err}, queryFake{}, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, multipartUpload(t, "/v1/documents", "u@x.com", "a.pdf", "x"))
		if res.Code != status {
			t.Fatalf("expected %d for %v, got %d", status, err, res.Code)
		}
		if status >= 500 && strings.Contains(res.Body.String(), "s3 down") {
			t.Fatalf("server error details leaked: %s", res.Body.String())
		}
	}
}

func TestListDocuments(t *testing.T) {
	catalog := &catalogFake{docs: []domain.StoredDocument{{Name: "a.pdf", URL: "s3://b/documents/u@x.com_a.pdf"}}}
	handler := newTestHandler(config.Config{}, nil, queryFake{}, catalog)

	for _, path := range []string{"/v1/documents?email=u@x.com", "/documents?email=u@x.com"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, res.Code)
		}
		docs, ok := decodeBody(t, res)["documents"].([]any)
		if !ok || len(docs) != 1 {
			t.Fatalf("unexpected documents payload")
		}
		if docs[0].(map[string]any)["document_name"] != "a.pdf" {
			t.Fatalf("unexpected document %+v", docs[0])
		}
	}
	if catalog.email != "u@x.com" {
		t.Fatalf("expected email to be forwarded, got %q", catalog.email)
	}
}

func TestListDocumentsNotFound(t *testing.T) {
	catalog := &catalogFake{err: domain.WrapError(domain.ErrNotFound, "list documents", errors.New("none"))}
	handler := newTestHandler(config.Config{}, nil, queryFake{}, catalog)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents?email=u@x.com", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if msg := decodeBody(t, res)["error"]; msg != "No documents found for this user." {
		t.Fatalf("unexpected message %v", msg)
	}
}

func TestListRecordsAndAlias(t *testing.T) {
	catalog := &catalogFake{records: domain.RecordSet{
		Invoices:       []domain.InvoiceRecord{{Email: "u@x.com", InvoiceNumber: "INV-1"}},
		PurchaseOrders: []domain.PurchaseOrderRecord{},
	}}
	handler := newTestHandler(config.Config{}, nil, queryFake{}, catalog)

	for _, path := range []string{"/v1/records?email=u@x.com", "/get_key_details?email=u@x.com"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, res.Code)
		}
		body := decodeBody(t, res)
		if invoices, ok := body["invoices"].([]any); !ok || len(invoices) != 1 {
			t.Fatalf("unexpected invoices %+v", body["invoices"])
		}
		if orders, ok := body["purchase_orders"].([]any); !ok || len(orders) != 0 {
			t.Fatalf("expected empty purchase_orders array, got %+v", body["purchase_orders"])
		}
	}
}

func TestExportRecords(t *testing.T) {
	catalog := &catalogFake{export: &domain.ExportFile{Filename: "records.xlsx", ContentType: "application/test", Data: []byte("xlsx")}}
	handler := newTestHandler(config.Config{}, nil, queryFake{}, catalog)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/records/export?email=u@x.com", nil))
	if res.Code != http.StatusOK || res.Body.String() != "xlsx" {
		t.Fatalf("unexpected export response %d %q", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "records.xlsx") {
		t.Fatalf("missing attachment header")
	}
}

func TestSearchAnswer(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, queryFake{answer: &domain.Answer{Text: "500", SourceDocuments: []string{"a.pdf"}}}, nil)

	for _, path := range []string{"/v1/search/answer", "/search_answer/"} {
		res := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"query":"total?","email":"u@x.com"}`))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, res.Code)
		}
		body := decodeBody(t, res)
		if body["answer"] != "500" {
			t.Fatalf("unexpected answer %+v", body)
		}
	}
}

func TestSearchAnswerErrors(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		err     error
		status  int
		message string
	}{
		{"invalid json", `{`, nil, http.StatusBadRequest, "invalid json"},
		{"missing query", `{"email":"u@x.com"}`, nil, http.StatusBadRequest, "query and email are required"},
		{"no matches", `{"query":"q","email":"u@x.com"}`, domain.WrapError(domain.ErrNotFound, "search", errors.New("none")), http.StatusNotFound, "No relevant documents found for this query."},
		{"generation failed", `{"query":"q","email":"u@x.com"}`, domain.WrapError(domain.ErrGeneration, "answer", errors.New("fallback")), http.StatusInternalServerError, "failed to generate an answer"},
	}
	for _, tc := range cases {
		handler := newTestHandler(config.Config{}, nil, queryFake{err: tc.err}, nil)
		res := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/search/answer", strings.NewReader(tc.payload))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(res, req)
		if res.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, res.Code)
		}
		if msg := decodeBody(t, res)["error"]; msg != tc.message {
			t.Fatalf("%s: unexpected message %v", tc.name, msg)
		}
	}
}

func TestMetricsAndOpenAPIEndpoints(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	handler := newTestHandler(config.Config{}, nil, queryFake{}, nil,
		WithMetrics(m), WithOpenAPIDocument([]byte(`{"openapi":"3.0.3"}`)))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "docintel_http_requests_total") {
		t.Fatalf("unexpected metrics response %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "3.0.3") {
		t.Fatalf("unexpected openapi response %d", res.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, queryFake{}, nil)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/nowhere", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/records", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
