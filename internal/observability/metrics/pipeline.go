package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// PipelineMetrics implements ports.PipelineObserver on prometheus collectors.
type PipelineMetrics struct {
	service string

	classificationsTotal *prometheus.CounterVec
	extractionsTotal     *prometheus.CounterVec
	persistFailuresTotal *prometheus.CounterVec
	retrievalMatches     *prometheus.HistogramVec
	retrievalDuration    *prometheus.HistogramVec
	answerFallbacksTotal *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	classificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "classifications_total",
			Help:      "Document classifications by resolution path and label.",
		},
		[]string{"service", "path", "label"},
	)
	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "extractions_total",
			Help:      "Field extractions by document type, decoder and status.",
		},
		[]string{"service", "document_type", "decoder", "status"},
	)
	persistFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "persist_failures_total",
			Help:      "Structured records that could not be persisted.",
		},
		[]string{"service", "document_type"},
	)
	retrievalMatches := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "retrieval_matches",
			Help:      "Documents above the relevance threshold per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "retrieval_duration_seconds",
			Help:      "Fuzzy retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	answerFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "answer_fallbacks_total",
			Help:      "Answers replaced by the fallback text.",
		},
		[]string{"service"},
	)

	registerer.MustRegister(
		classificationsTotal,
		extractionsTotal,
		persistFailuresTotal,
		retrievalMatches,
		retrievalDuration,
		answerFallbacksTotal,
	)

	return &PipelineMetrics{
		service:              service,
		classificationsTotal: classificationsTotal,
		extractionsTotal:     extractionsTotal,
		persistFailuresTotal: persistFailuresTotal,
		retrievalMatches:     retrievalMatches,
		retrievalDuration:    retrievalDuration,
		answerFallbacksTotal: answerFallbacksTotal,
	}
}

func (m *PipelineMetrics) ObserveClassification(path domain.ClassificationPath, label domain.DocumentType) {
	m.classificationsTotal.WithLabelValues(m.service, string(path), typeLabel(label)).Inc()
}

func (m *PipelineMetrics) ObserveExtraction(docType domain.DocumentType, decoder domain.DecoderKind, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.extractionsTotal.WithLabelValues(m.service, typeLabel(docType), labelValue(string(decoder)), status).Inc()
}

func (m *PipelineMetrics) ObservePersistFailure(docType domain.DocumentType) {
	m.persistFailuresTotal.WithLabelValues(m.service, typeLabel(docType)).Inc()
}

func (m *PipelineMetrics) ObserveRetrieval(matches int, duration time.Duration) {
	m.retrievalMatches.WithLabelValues(m.service).Observe(float64(matches))
	m.retrievalDuration.WithLabelValues(m.service).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveAnswerFallback() {
	m.answerFallbacksTotal.WithLabelValues(m.service).Inc()
}

func labelValue(v string) string {
	if v == "" {
		return "none"
	}
	return v
}

// typeLabel keeps label values bounded: free text from the fallback model is
// reported as "other".
func typeLabel(t domain.DocumentType) string {
	switch t {
	case "":
		return "none"
	case domain.LabelUnknown, domain.LabelError:
		return string(t)
	}
	if known, ok := domain.ParseDocumentType(string(t)); ok {
		return string(known)
	}
	return "other"
}
