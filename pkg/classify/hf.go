package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultInferenceBaseURL = "https://api-inference.huggingface.co"
	// The hate speech model the pipeline was tuned against.
	defaultInferenceModel = "Hate-speech-CNERG/dehatebert-mono-english"
)

// HTTPScorer calls a HuggingFace-style text-classification inference
// endpoint. Requests are rate limited client-side so a large backlog
// does not hammer the hosted API.
type HTTPScorer struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
	limiter *rate.Limiter
}

// HTTPScorerOpts configures NewHTTPScorer. Zero values pick defaults.
type HTTPScorerOpts struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// NewHTTPScorer creates a scorer against a hosted inference endpoint.
func NewHTTPScorer(opts HTTPScorerOpts) *HTTPScorer {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultInferenceBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultInferenceModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	return &HTTPScorer{
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		apiKey:  opts.APIKey,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
	}
}

func (s *HTTPScorer) Name() string { return "http:" + s.model }

// labelScore is one entry of the inference API's per-text response.
type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ScoreBatch sends all texts in one request. The API returns, per
// input, a list of (label, score) pairs; labels are mapped onto the
// binary verdict, accepting both the model's NON_HATE/HATE names and
// the generic LABEL_0/LABEL_1 fallback.
func (s *HTTPScorer) ScoreBatch(ctx context.Context, texts []string) ([]Score, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scorer rate limit: %w", err)
	}

	payload := map[string]any{
		"inputs":  texts,
		"options": map[string]any{"wait_for_model": true},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode inference request: %w", err)
	}

	url := s.baseURL + "/models/" + s.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call inference api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var results [][]labelScore
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("inference api returned %d results for %d inputs", len(results), len(texts))
	}

	scores := make([]Score, len(results))
	for i, labels := range results {
		for _, ls := range labels {
			switch strings.ToUpper(ls.Label) {
			case "NON_HATE", "LABEL_0":
				scores[i].NonHate = ls.Score
			case "HATE", "LABEL_1":
				scores[i].HateSpeech = ls.Score
			}
		}
	}
	return scores, nil
}
