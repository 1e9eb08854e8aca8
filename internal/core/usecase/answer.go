package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const (
	answerMaxTokens   = 1000
	answerTemperature = 0.7
)

type AnswerGenerator struct {
	model    ports.ModelClient
	observer ports.PipelineObserver
	logger   *zap.Logger
}

func NewAnswerGenerator(model ports.ModelClient, observer ports.PipelineObserver, logger *zap.Logger) *AnswerGenerator {
	if observer == nil {
		observer = ports.NoopObserver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerGenerator{model: model, observer: observer, logger: logger}
}

// Generate returns domain.FallbackAnswer when the model call fails or
// produces nothing.
func (g *AnswerGenerator) Generate(ctx context.Context, relevantText, query string) string {
	if g.model == nil {
		g.observer.ObserveAnswerFallback()
		return domain.FallbackAnswer
	}

	reply, err := g.model.Complete(ctx, domain.CompletionRequest{
		Prompt:      buildAnswerPrompt(relevantText, query),
		System:      answerSystemPrompt,
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
	})
	if err != nil {
		g.logger.Warn("answer.model_failed", zap.Error(err))
		g.observer.ObserveAnswerFallback()
		return domain.FallbackAnswer
	}

	answer := strings.TrimSpace(reply)
	if answer == "" {
		g.logger.Warn("answer.empty_reply")
		g.observer.ObserveAnswerFallback()
		return domain.FallbackAnswer
	}
	return answer
}
