// Package cohere provides an HTTP client for the Cohere embed API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/PhysicalAI/bookrag-mvp/pkg/fn"
	"github.com/PhysicalAI/bookrag-mvp/pkg/resilience"
)

const (
	// DefaultBaseURL is the Cohere API endpoint.
	DefaultBaseURL = "https://api.cohere.com/v1"
	// DefaultModel is the embedding model used for both documents and queries.
	DefaultModel = "embed-english-v3.0"

	inputTypeDocument = "search_document"
	inputTypeQuery    = "search_query"
)

// Client calls the Cohere embed endpoint. Requests are rate limited to stay
// under the free-tier quota.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	limiter *resilience.Limiter
}

// New creates a Cohere client. An empty baseURL falls back to DefaultBaseURL.
func New(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 1, Burst: 2}),
	}
}

type embedRequest struct {
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
	Texts     []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *Client) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(embedRequest{Model: c.model, InputType: inputType, Texts: texts})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("cohere embed: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("cohere embed decode: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("cohere embed: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}

// EmbedQuery embeds a single search query. Retrieval-time only; documents
// are embedded with a different input type and the two must not be mixed.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := c.embed(ctx, []string{query}, inputTypeQuery)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds document texts in sequential batches, order preserved.
// A failed batch aborts the whole call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	all := make([][]float32, 0, len(texts))
	start := 0
	for _, batch := range fn.Chunk(texts, batchSize) {
		embeddings, err := c.embed(ctx, batch, inputTypeDocument)
		if err != nil {
			return nil, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		all = append(all, embeddings...)
		start += len(batch)
	}
	return all, nil
}

// Healthcheck embeds a trivial query to verify API reachability.
func (c *Client) Healthcheck(ctx context.Context) error {
	_, err := c.EmbedQuery(ctx, "ping")
	return err
}
