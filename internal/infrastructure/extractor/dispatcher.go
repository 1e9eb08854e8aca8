package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

// Dispatcher sniffs the upload content and routes it to the PDF or the plain
// text extractor. Declared MIME types and extensions are only hints.
type Dispatcher struct {
	pdf  ports.TextExtractor
	text ports.TextExtractor
}

func NewDispatcher(pdf, text ports.TextExtractor) *Dispatcher {
	return &Dispatcher{pdf: pdf, text: text}
}

func (d *Dispatcher) Extract(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	detected := mimetype.Detect(data)
	switch {
	case detected.Is("application/pdf"):
		return d.pdf.Extract(ctx, filename, detected.String(), data)
	case isText(detected):
		return d.text.Extract(ctx, filename, detected.String(), data)
	case strings.EqualFold(filepath.Ext(filename), ".pdf") || strings.HasPrefix(mimeType, "application/pdf"):
		return d.pdf.Extract(ctx, filename, mimeType, data)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported content type %s for %s", detected.String(), filename))
	}
}

func isText(m *mimetype.MIME) bool {
	for cur := m; cur != nil; cur = cur.Parent() {
		if cur.Is("text/plain") {
			return true
		}
	}
	return false
}
