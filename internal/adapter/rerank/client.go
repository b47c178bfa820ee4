// Package rerank implements the re-ranking model collaborator over HTTP.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"retrieval-engine/internal/domain"
	"retrieval-engine/internal/metrics"
)

// Request is the request payload for the rerank endpoint.
type Request struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
	TopK       int      `json:"top_k,omitempty"`
}

// ResponseResult is a single result in the rerank response.
type ResponseResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Response is the response from the rerank endpoint.
type Response struct {
	Results          []ResponseResult `json:"results"`
	Model            string           `json:"model"`
	ProcessingTimeMs *float64         `json:"processing_time_ms,omitempty"`
}

// Client implements domain.Reranker via HTTP calls to the scoring model
// service.
type Client struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewClient constructs a rerank client. baseURL is the model service URL,
// model the default cross-encoder name. If client is nil, a default
// http.Client is created with the given timeout.
func NewClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *Client {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

// WithModel returns a client bound to a different model variant, sharing
// the underlying HTTP client. Experiments pin variants this way.
func (c *Client) WithModel(model string) domain.Reranker {
	clone := *c
	clone.Model = model
	return &clone
}

// Rerank scores candidates against the query using a cross-encoder model.
// Returns results sorted by score descending.
func (c *Client) Rerank(ctx context.Context, query string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	if len(candidates) == 0 {
		return []domain.RerankResult{}, nil
	}

	startTime := time.Now()

	c.logger.Info("reranking_started",
		slog.String("query", truncateString(query, 100)),
		slog.Int("candidate_count", len(candidates)),
		slog.String("model", c.Model))

	contents := make([]string, len(candidates))
	for i, cand := range candidates {
		contents[i] = cand.Content
	}

	reqBody := Request{
		Query:      query,
		Candidates: contents,
		Model:      c.Model,
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		metrics.RerankFailuresTotal.Inc()
		c.logger.Warn("reranking_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrModelTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.RerankFailuresTotal.Inc()
		c.logger.Warn("reranking_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("%w: rerank endpoint returned %d", domain.ErrModelUnavailable, resp.StatusCode)
	}

	var rerankResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	// Map results back to candidate IDs
	results := make([]domain.RerankResult, len(rerankResp.Results))
	for i, r := range rerankResp.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			return nil, fmt.Errorf("invalid result index %d for %d candidates", r.Index, len(candidates))
		}
		results[i] = domain.RerankResult{
			ID:    candidates[r.Index].ID,
			Score: r.Score,
		}
	}

	elapsedMs := time.Since(startTime).Milliseconds()
	c.logger.Info("reranking_completed",
		slog.Int("result_count", len(results)),
		slog.String("model", rerankResp.Model),
		slog.Int64("elapsed_ms", elapsedMs))

	return results, nil
}

// ModelName returns the model identifier for logging/debugging.
func (c *Client) ModelName() string {
	return c.Model
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
