package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// Retriever finds the documents relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query, email string) ([]domain.RetrievalMatch, error)
}

// Generator writes an answer from retrieved text.
type Generator interface {
	Generate(ctx context.Context, relevantText, query string) string
}

type QueryUseCase struct {
	retriever Retriever
	generator Generator
	logger    *zap.Logger
}

func NewQueryUseCase(retriever Retriever, generator Generator, logger *zap.Logger) *QueryUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryUseCase{
		retriever: retriever,
		generator: generator,
		logger:    logger,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, query, email string) (*domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("query is required"))
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	matches, err := uc.retriever.Search(ctx, query, email)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "answer", errors.New("no relevant documents found"))
	}

	texts := make([]string, 0, len(matches))
	sources := make([]string, 0, len(matches))
	for _, match := range matches {
		texts = append(texts, match.RelevantText)
		sources = append(sources, match.DocumentName)
	}

	answer := uc.generator.Generate(ctx, strings.Join(texts, " "), query)
	if answer == domain.FallbackAnswer {
		return nil, domain.WrapError(domain.ErrGeneration, "answer", errors.New(domain.FallbackAnswer))
	}

	uc.logger.Info("query.answered", zap.String("email", email), zap.Int("sources", len(sources)))
	return &domain.Answer{
		Text:            answer,
		SourceDocuments: sources,
		Matches:         matches,
	}, nil
}
