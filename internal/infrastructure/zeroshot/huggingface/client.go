package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

// Client ranks candidate labels with a zero-shot classification model served
// behind a Hugging Face inference compatible endpoint.
type Client struct {
	endpoint   string
	token      string
	maxChars   int
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Token              string
	MaxChars           int
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(endpoint string, options Options) *Client {
	maxChars := options.MaxChars
	if maxChars <= 0 {
		maxChars = 2000
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      strings.TrimSpace(options.Token),
		maxChars:   maxChars,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type rankRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters rankParameters `json:"parameters"`
}

type rankParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

// The inference server answers 503 while the model is loading.
var classifyError = resilience.HTTPClassifier(
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
)

func (c *Client) Rank(ctx context.Context, text string, labels []string) ([]domain.LabelScore, error) {
	if len(labels) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "zero-shot rank", errors.New("no candidate labels"))
	}
	body, err := json.Marshal(rankRequest{
		Inputs:     truncateRunes(text, c.maxChars),
		Parameters: rankParameters{CandidateLabels: labels},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal zero-shot request: %w", err)
	}

	var raw []byte
	call := func(callCtx context.Context) error {
		out, postErr := c.post(callCtx, body)
		if postErr != nil {
			return postErr
		}
		raw = out
		return nil
	}
	if c.executor != nil {
		err = c.executor.Execute(ctx, "zeroshot.rank", call, classifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, resilience.AsTemporary("zero-shot rank", err, classifyError)
	}

	ranked, err := decodeRanking(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "zero-shot rank", err)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create zero-shot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zero-shot request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, resilience.NewStatusError("zero-shot", "rank", resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read zero-shot response: %w", err)
	}
	return raw, nil
}

// decodeRanking accepts both the pipeline shape {labels, scores} and the
// list shape [{label, score}].
func decodeRanking(raw []byte) ([]domain.LabelScore, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	if trimmed[0] == '[' {
		var list []domain.LabelScore
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode label list: %w", err)
		}
		if len(list) == 0 {
			return nil, errors.New("empty label list")
		}
		return list, nil
	}

	var pipeline struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal(trimmed, &pipeline); err != nil {
		return nil, fmt.Errorf("decode pipeline output: %w", err)
	}
	if len(pipeline.Labels) == 0 || len(pipeline.Labels) != len(pipeline.Scores) {
		return nil, fmt.Errorf("labels/scores mismatch: %d/%d", len(pipeline.Labels), len(pipeline.Scores))
	}
	out := make([]domain.LabelScore, 0, len(pipeline.Labels))
	for i, label := range pipeline.Labels {
		out = append(out, domain.LabelScore{Label: label, Score: pipeline.Scores[i]})
	}
	return out, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
