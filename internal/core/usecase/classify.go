package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const (
	DefaultConfidenceThreshold = 0.7

	classifyFallbackMaxTokens   = 100
	classifyFallbackTemperature = 0.2
)

// DocumentClassifier labels document text with a zero-shot model and falls
// back to a hosted language model when the zero-shot confidence is low.
type DocumentClassifier struct {
	zeroShot  ports.ZeroShotClassifier
	model     ports.ModelClient
	labels    []string
	threshold float64
	observer  ports.PipelineObserver
	logger    *zap.Logger
}

type ClassifierOption func(*DocumentClassifier)

func WithConfidenceThreshold(threshold float64) ClassifierOption {
	return func(c *DocumentClassifier) {
		if threshold > 0 && threshold <= 1 {
			c.threshold = threshold
		}
	}
}

func WithCandidateLabels(labels []string) ClassifierOption {
	return func(c *DocumentClassifier) {
		if len(labels) > 0 {
			c.labels = append([]string(nil), labels...)
		}
	}
}

func WithClassifierObserver(observer ports.PipelineObserver) ClassifierOption {
	return func(c *DocumentClassifier) {
		if observer != nil {
			c.observer = observer
		}
	}
}

func NewDocumentClassifier(
	zeroShot ports.ZeroShotClassifier,
	model ports.ModelClient,
	logger *zap.Logger,
	opts ...ClassifierOption,
) *DocumentClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &DocumentClassifier{
		zeroShot:  zeroShot,
		model:     model,
		labels:    domain.CandidateLabels(),
		threshold: DefaultConfidenceThreshold,
		observer:  ports.NoopObserver(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never aborts the caller: when no label can be produced it returns
// a sentinel label together with an ErrClassification error.
func (c *DocumentClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	top, confidence := c.rankZeroShot(ctx, text)
	if top != "" && confidence >= c.threshold {
		c.logger.Debug("classify.fast_path", zap.String("label", top), zap.Float64("confidence", confidence))
		result := domain.Classification{
			Label:      domain.DocumentType(top),
			Confidence: confidence,
			Path:       domain.PathZeroShot,
		}
		c.observer.ObserveClassification(result.Path, result.Label)
		return result, nil
	}

	c.logger.Info("classify.fallback",
		zap.String("zero_shot_label", top),
		zap.Float64("confidence", confidence),
		zap.Float64("threshold", c.threshold),
	)
	result, err := c.classifyWithModel(ctx, text)
	result.Confidence = confidence
	c.observer.ObserveClassification(result.Path, result.Label)
	return result, err
}

func (c *DocumentClassifier) rankZeroShot(ctx context.Context, text string) (string, float64) {
	if c.zeroShot == nil {
		return "", 0
	}
	ranked, err := c.zeroShot.Rank(ctx, text, c.labels)
	if err != nil {
		c.logger.Warn("classify.zero_shot_failed", zap.Error(err))
		return "", 0
	}
	if len(ranked) == 0 {
		return "", 0
	}

	best := ranked[0]
	for _, candidate := range ranked[1:] {
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	return best.Label, clampUnit(best.Score)
}

func (c *DocumentClassifier) classifyWithModel(ctx context.Context, text string) (domain.Classification, error) {
	unresolved := func(label domain.DocumentType, err error) (domain.Classification, error) {
		return domain.Classification{Label: label, Path: domain.PathUnresolved}, err
	}
	if c.model == nil {
		return unresolved(domain.LabelError, domain.WrapError(domain.ErrClassification, "classify fallback", errors.New("model client is not configured")))
	}

	reply, err := c.model.Complete(ctx, domain.CompletionRequest{
		Prompt:      text,
		System:      buildClassificationSystemPrompt(c.labels),
		MaxTokens:   classifyFallbackMaxTokens,
		Temperature: classifyFallbackTemperature,
	})
	if err != nil {
		c.logger.Warn("classify.fallback_failed", zap.Error(err))
		return unresolved(domain.LabelError, domain.WrapError(domain.ErrClassification, "classify fallback", err))
	}

	label := strings.TrimSpace(reply)
	if label == "" {
		return unresolved(domain.LabelUnknown, domain.WrapError(domain.ErrClassification, "classify fallback", fmt.Errorf("empty label: %w", domain.ErrMalformedResponse)))
	}
	return domain.Classification{Label: domain.DocumentType(label), Path: domain.PathModelFallback}, nil
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
