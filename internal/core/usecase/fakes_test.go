package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type modelFake struct {
	reply    string
	err      error
	requests []domain.CompletionRequest
}

func (f *modelFake) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type zeroShotFake struct {
	ranked []domain.LabelScore
	err    error
	calls  int
}

func (f *zeroShotFake) Rank(context.Context, string, []string) ([]domain.LabelScore, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ranked, nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	listErr error
	getErr  map[string]error
	puts    []string
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}, getErr: map[string]error{}}
}

func (f *storageFake) Put(_ context.Context, key string, data io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	f.puts = append(f.puts, key)
	return nil
}

func (f *storageFake) Get(_ context.Context, key string) ([]byte, error) {
	if err := f.getErr[key]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get", errors.New(key))
	}
	return raw, nil
}

func (f *storageFake) List(_ context.Context, prefix string) ([]domain.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ObjectInfo, 0)
	for key, raw := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, domain.ObjectInfo{Key: key, Size: int64(len(raw))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *storageFake) URL(key string) string {
	return "mem://bucket/" + key
}

type recordsFake struct {
	invoices    []domain.InvoiceRecord
	orders      []domain.PurchaseOrderRecord
	insertErr   error
	listErr     error
	insertCalls int
}

func (f *recordsFake) InsertInvoice(_ context.Context, rec domain.InvoiceRecord) error {
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.invoices = append(f.invoices, rec)
	return nil
}

func (f *recordsFake) InsertPurchaseOrder(_ context.Context, rec domain.PurchaseOrderRecord) error {
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.orders = append(f.orders, rec)
	return nil
}

func (f *recordsFake) ListInvoices(_ context.Context, email string) ([]domain.InvoiceRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.InvoiceRecord
	for _, rec := range f.invoices {
		if rec.Email == email {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *recordsFake) ListPurchaseOrders(_ context.Context, email string) ([]domain.PurchaseOrderRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.PurchaseOrderRecord
	for _, rec := range f.orders {
		if rec.Email == email {
			out = append(out, rec)
		}
	}
	return out, nil
}

// scorerFake returns a fixed score per line and 0 for anything else.
type scorerFake struct {
	scores map[string]int
}

func (f scorerFake) PartialRatio(_, line string) int {
	return f.scores[line]
}

type textExtractorFake struct {
	text string
	err  error
}

func (f textExtractorFake) Extract(context.Context, string, string, []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type eventsFake struct {
	events []domain.DocumentProcessedEvent
	err    error
}

func (f *eventsFake) PublishDocumentProcessed(_ context.Context, event domain.DocumentProcessedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type observerFake struct {
	classifications []domain.ClassificationPath
	extractions     []domain.DecoderKind
	persistFailures int
	retrievals      []int
	fallbacks       int
}

func (f *observerFake) ObserveClassification(path domain.ClassificationPath, _ domain.DocumentType) {
	f.classifications = append(f.classifications, path)
}

func (f *observerFake) ObserveExtraction(_ domain.DocumentType, decoder domain.DecoderKind, _ error) {
	f.extractions = append(f.extractions, decoder)
}

func (f *observerFake) ObservePersistFailure(domain.DocumentType) { f.persistFailures++ }

func (f *observerFake) ObserveRetrieval(matches int, _ time.Duration) {
	f.retrievals = append(f.retrievals, matches)
}

func (f *observerFake) ObserveAnswerFallback() { f.fallbacks++ }

type exporterFake struct {
	set domain.RecordSet
	err error
}

func (f *exporterFake) Export(set domain.RecordSet) ([]byte, error) {
	f.set = set
	if f.err != nil {
		return nil, f.err
	}
	return []byte("xlsx"), nil
}

func (f *exporterFake) ContentType() string   { return "application/test" }
func (f *exporterFake) FileExtension() string { return ".xlsx" }
