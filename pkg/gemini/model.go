// Package gemini provides a chat completion client for the Gemini API via
// its OpenAI-compatible endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PhysicalAI/bookrag-mvp/pkg/resilience"
)

const (
	// DefaultBaseURL is the OpenAI-compatible Gemini endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	// DefaultModel is the chat model used for answer generation.
	DefaultModel = "gemini-2.0-flash"
)

// Client calls the Gemini chat completions API. Calls go through a circuit
// breaker so a flapping upstream fails fast instead of piling up timeouts.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	breaker *resilience.Breaker
}

// New creates a Gemini client. An empty baseURL falls back to DefaultBaseURL.
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
		http:    &http.Client{Timeout: 60 * time.Second},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete generates an answer to the question constrained to the given
// passages. The passages are inlined into the user message so the model has
// no other material to draw from.
func (c *Client) Complete(ctx context.Context, system, question string, passages []string) (string, error) {
	var answer string
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		reply, err := c.chat(ctx, system, userMessage(question, passages))
		if err != nil {
			return err
		}
		answer = reply
		return nil
	})
	return answer, err
}

func userMessage(question string, passages []string) string {
	var b strings.Builder
	b.WriteString("Book passages:\n\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, p)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	body, _ := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("gemini chat: status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("gemini chat decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("gemini chat: empty response")
	}
	return result.Choices[0].Message.Content, nil
}

// Healthcheck verifies API reachability via the models listing.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gemini healthcheck: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("gemini healthcheck: status %d", resp.StatusCode)
	}
	return nil
}
