package usecase

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const DefaultRetrievalMinScore = 50

// RetrievalEngine scores every extracted text of an identity against a query
// and keeps the documents whose best line beats the relevance threshold.
type RetrievalEngine struct {
	storage  ports.ObjectStorage
	scorer   ports.SimilarityScorer
	minScore int
	observer ports.PipelineObserver
	logger   *zap.Logger
}

func NewRetrievalEngine(
	storage ports.ObjectStorage,
	scorer ports.SimilarityScorer,
	minScore int,
	observer ports.PipelineObserver,
	logger *zap.Logger,
) *RetrievalEngine {
	if minScore <= 0 || minScore >= 100 {
		minScore = DefaultRetrievalMinScore
	}
	if observer == nil {
		observer = ports.NoopObserver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrievalEngine{
		storage:  storage,
		scorer:   scorer,
		minScore: minScore,
		observer: observer,
		logger:   logger,
	}
}

// Search returns matches ordered by score, highest first. Equal scores keep
// the storage listing order. No match is not an error.
func (e *RetrievalEngine) Search(ctx context.Context, query, email string) ([]domain.RetrievalMatch, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	prefix := textPrefix(email)
	objects, err := e.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list extracted texts: %w", err)
	}

	matches := make([]domain.RetrievalMatch, 0, len(objects))
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := e.storage.Get(ctx, obj.Key)
		if err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				e.logger.Warn("retrieval.object_vanished", zap.String("key", obj.Key))
				continue
			}
			return nil, fmt.Errorf("read extracted text %s: %w", obj.Key, err)
		}

		match, ok := e.scoreDocument(query, string(raw))
		if !ok {
			continue
		}
		match.Key = obj.Key
		match.DocumentName = documentNameFromKey(obj.Key, prefix)
		matches = append(matches, match)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	e.observer.ObserveRetrieval(len(matches), time.Since(start))
	e.logger.Debug("retrieval.done",
		zap.Int("candidates", len(objects)),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}

func (e *RetrievalEngine) scoreDocument(query, text string) (domain.RetrievalMatch, bool) {
	if strings.TrimSpace(text) == "" {
		return domain.RetrievalMatch{}, false
	}

	lines := strings.Split(text, "\n")
	best := 0
	var relevant strings.Builder
	for _, line := range lines {
		score := e.scorer.PartialRatio(query, line)
		if score > best {
			best = score
		}
		if score > e.minScore {
			relevant.WriteString(line)
			relevant.WriteString("\n")
		}
	}
	if best <= e.minScore {
		return domain.RetrievalMatch{}, false
	}
	return domain.RetrievalMatch{
		RelevantText: relevant.String(),
		Score:        best,
	}, true
}

func documentNameFromKey(key, prefix string) string {
	name := strings.TrimPrefix(key, prefix)
	if name == key {
		name = path.Base(key)
	}
	return name
}
