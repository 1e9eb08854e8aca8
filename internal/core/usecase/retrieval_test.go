package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/fuzzy"
)

func seedTexts(storage *storageFake, email string, texts map[string]string) {
	for name, text := range texts {
		storage.objects[textPrefix(email)+name] = []byte(text)
	}
}

func TestSearchKeepsOnlyDocumentsAboveThreshold(t *testing.T) {
	storage := newStorageFake()
	seedTexts(storage, "u@x.com", map[string]string{
		"a.txt": "header\nstrong line",
		"b.txt": "weak line",
		"c.txt": "edge line",
	})
	scorer := scorerFake{scores: map[string]int{"strong line": 80, "weak line": 30, "edge line": 50}}
	observer := &observerFake{}
	engine := NewRetrievalEngine(storage, scorer, 50, observer, nil)

	matches, err := engine.Search(context.Background(), "query", "u@x.com")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one match, got %+v", matches)
	}
	if matches[0].DocumentName != "a.txt" || matches[0].Score != 80 {
		t.Fatalf("unexpected match: %+v", matches[0])
	}
	if matches[0].RelevantText != "strong line\n" {
		t.Fatalf("expected only relevant lines, got %q", matches[0].RelevantText)
	}
	if len(observer.retrievals) != 1 || observer.retrievals[0] != 1 {
		t.Fatalf("unexpected observations: %v", observer.retrievals)
	}
}

func TestSearchSortsByScoreAndKeepsListingOrderForTies(t *testing.T) {
	storage := newStorageFake()
	seedTexts(storage, "u@x.com", map[string]string{
		"a.txt": "tie-a",
		"b.txt": "top",
		"c.txt": "tie-c",
	})
	scorer := scorerFake{scores: map[string]int{"tie-a": 70, "top": 95, "tie-c": 70}}
	engine := NewRetrievalEngine(storage, scorer, 50, nil, nil)

	matches, err := engine.Search(context.Background(), "q", "u@x.com")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	got := []string{}
	for _, m := range matches {
		got = append(got, m.DocumentName)
	}
	want := []string{"b.txt", "a.txt", "c.txt"}
	if len(got) != len(want) {
		t.Fatalf("unexpected matches: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSearchCollectsEveryRelevantLine(t *testing.T) {
	storage := newStorageFake()
	seedTexts(storage, "u@x.com", map[string]string{
		"doc.txt": "one\ntwo\nthree",
	})
	scorer := scorerFake{scores: map[string]int{"one": 60, "two": 10, "three": 99}}
	engine := NewRetrievalEngine(storage, scorer, 50, nil, nil)

	matches, err := engine.Search(context.Background(), "q", "u@x.com")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Score != 99 || matches[0].RelevantText != "one\nthree\n" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestSearchIgnoresOtherIdentitiesAndBlankDocuments(t *testing.T) {
	storage := newStorageFake()
	seedTexts(storage, "u@x.com", map[string]string{"blank.txt": "   \n  "})
	seedTexts(storage, "other@x.com", map[string]string{"doc.txt": "hit"})
	engine := NewRetrievalEngine(storage, scorerFake{scores: map[string]int{"hit": 100, "   ": 100}}, 50, nil, nil)

	matches, err := engine.Search(context.Background(), "q", "u@x.com")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %+v", matches)
	}
}

func TestSearchPropagatesListingFailure(t *testing.T) {
	storage := newStorageFake()
	storage.listErr = domain.WrapError(domain.ErrTemporary, "list", errors.New("bucket unreachable"))
	engine := NewRetrievalEngine(storage, scorerFake{}, 50, nil, nil)

	_, err := engine.Search(context.Background(), "q", "u@x.com")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestSearchSkipsVanishedObject(t *testing.T) {
	storage := newStorageFake()
	seedTexts(storage, "u@x.com", map[string]string{"gone.txt": "hit", "kept.txt": "hit"})
	storage.getErr[textPrefix("u@x.com")+"gone.txt"] = domain.WrapError(domain.ErrNotFound, "get", errors.New("gone"))
	engine := NewRetrievalEngine(storage, scorerFake{scores: map[string]int{"hit": 90}}, 50, nil, nil)

	matches, err := engine.Search(context.Background(), "q", "u@x.com")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 || matches[0].DocumentName != "kept.txt" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestSearchWithPartialRatioScorer(t *testing.T) {
	storage := newStorageFake()
	seedTexts(storage, "u@x.com", map[string]string{
		"invoice.txt": "Vendor: Acme Corp\nInvoice #123",
		"memo.txt":    "zzzz\nqqqq",
	})
	engine := NewRetrievalEngine(storage, fuzzy.NewScorer(), 50, nil, nil)

	matches, err := engine.Search(context.Background(), "Invoice #123", "u@x.com")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 || matches[0].DocumentName != "invoice.txt" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	if matches[0].Score != 100 || matches[0].RelevantText != "Invoice #123\n" {
		t.Fatalf("expected the identical line to score 100, got %+v", matches[0])
	}
}

func TestSearchScoresAcmeInvoiceAboveThreshold(t *testing.T) {
	storage := newStorageFake()
	seedTexts(storage, "u@x.com", map[string]string{
		"acme.txt": "Vendor: Acme Corp Invoice #123",
		"memo.txt": "lunch order for friday",
	})
	engine := NewRetrievalEngine(storage, fuzzy.NewScorer(), DefaultRetrievalMinScore, nil, nil)

	matches, err := engine.Search(context.Background(), "acme invoice", "u@x.com")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected only the invoice, got %+v", matches)
	}
	if m := matches[0]; m.DocumentName != "acme.txt" || m.Score != 58 || m.RelevantText != "Vendor: Acme Corp Invoice #123\n" {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestSearchDoesNotReachIdentitiesSharingAPrefix(t *testing.T) {
	storage := newStorageFake()
	uc := newIngestForTest(storage, &recordsFake{}, &extractorFake{result: invoiceExtraction()})

	_, err := uc.Upload(context.Background(), domain.UploadRequest{
		Email: "bob@corp.com_x.io", Filename: "secret.pdf", Body: strings.NewReader("payroll"),
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected underscore domain to be rejected, got %v", err)
	}
	if _, err := uc.Upload(context.Background(), domain.UploadRequest{
		Email: "bob@corp.com", Filename: "own.pdf", Body: strings.NewReader("payroll"),
	}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	engine := NewRetrievalEngine(storage, scorerFake{scores: map[string]int{"Invoice #123": 90}}, 50, nil, nil)
	matches, err := engine.Search(context.Background(), "payroll", "bob@corp.com")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 || matches[0].DocumentName != "own.txt" {
		t.Fatalf("expected only the caller's document, got %+v", matches)
	}
	if _, err := engine.Search(context.Background(), "payroll", "bob@corp.com_x.io"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid identity, got %v", err)
	}
}
