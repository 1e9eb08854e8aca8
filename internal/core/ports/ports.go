package ports

import (
	"context"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// EventPublisher announces finished uploads.
type EventPublisher interface {
	PublishDocumentProcessed(ctx context.Context, event domain.DocumentProcessedEvent) error
}

// EventSubscriber consumes document.processed events until ctx is done.
type EventSubscriber interface {
	SubscribeDocumentProcessed(ctx context.Context, handler func(context.Context, domain.DocumentProcessedEvent) error) error
}

// PipelineObserver receives pipeline outcomes for metrics.
type PipelineObserver interface {
	ObserveClassification(path domain.ClassificationPath, label domain.DocumentType)
	ObserveExtraction(docType domain.DocumentType, decoder domain.DecoderKind, err error)
	ObservePersistFailure(docType domain.DocumentType)
	ObserveRetrieval(matches int, duration time.Duration)
	ObserveAnswerFallback()
}

type noopObserver struct{}

func (noopObserver) ObserveClassification(domain.ClassificationPath, domain.DocumentType) {}
func (noopObserver) ObserveExtraction(domain.DocumentType, domain.DecoderKind, error)     {}
func (noopObserver) ObservePersistFailure(domain.DocumentType)                            {}
func (noopObserver) ObserveRetrieval(int, time.Duration)                                  {}
func (noopObserver) ObserveAnswerFallback()                                               {}

// NoopObserver discards every observation.
func NoopObserver() PipelineObserver {
	return noopObserver{}
}
