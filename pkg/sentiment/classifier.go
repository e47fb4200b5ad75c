package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://router.huggingface.co/hf-inference/models/ProsusAI/finbert"
	DefaultTimeout  = 10 * time.Second

	fallbackConfidence = 0.7
)

type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// Result is either a classifier answer (StatusOK) or the keyword heuristic's answer (StatusDegraded)
// with Reason describing why the remote call was not used.
type Result struct {
	Label  Label   `json:"label"`
	Score  float64 `json:"score"`
	Status Status  `json:"status"`
	Reason string  `json:"reason,omitempty"`
}

func (r Result) Degraded() bool {
	return r.Status == StatusDegraded
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%.2f)", r.Label, r.Score)
}

// Analyzer classifies the tone of a piece of text. Implementations never fail.
type Analyzer interface {
	Classify(ctx context.Context, text string) Result
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier calls a hosted text-classification model (FinBERT by default) and falls back to
// keyword counting when the call does not produce a usable answer.
type Classifier struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
}

var _ Analyzer = &Classifier{}

func NewClassifier(endpoint, apiKey string, timeout time.Duration) *Classifier {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Classifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
		client:   &http.Client{},
	}
}

func (c *Classifier) Classify(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Fallback(text, "empty input")
	}

	best, err := c.remote(ctx, text)
	if err != nil {
		return Fallback(text, err.Error())
	}

	return Result{
		Label:  best.label,
		Score:  round3(clamp01(best.score)),
		Status: StatusOK,
	}
}

type scored struct {
	label Label
	score float64
}

func (c *Classifier) remote(ctx context.Context, text string) (*scored, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("classifier error: status %d", resp.StatusCode)
	}

	candidates, err := decodeCandidates(body)
	if err != nil {
		return nil, err
	}

	return pickBest(candidates)
}

// decodeCandidates accepts both the nested ([[...]]) and flat ([...]) shapes the inference API returns.
func decodeCandidates(body []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}

	return nil, fmt.Errorf("malformed classifier response")
}

func pickBest(candidates []labelScore) (*scored, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("empty classifier response")
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}

	label, ok := normalizeLabel(best.Label)
	if !ok {
		return nil, fmt.Errorf("unknown classifier label %q", best.Label)
	}

	return &scored{label: label, score: best.Score}, nil
}

func normalizeLabel(raw string) (Label, bool) {
	switch Label(strings.ToLower(strings.TrimSpace(raw))) {
	case Positive:
		return Positive, true
	case Negative:
		return Negative, true
	case Neutral:
		return Neutral, true
	}
	return "", false
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
