package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Generator wraps a LanguageModel with the answer-only-from-evidence
// instruction. When the model call fails or yields no usable content it
// falls back to deterministic synthesis from the passages, so the pipeline
// is never blocked by an unavailable model.
type Generator struct {
	model   LanguageModel
	system  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGenerator creates a Generator around the given model.
func NewGenerator(model LanguageModel, system string, timeout time.Duration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if system == "" {
		system = defaultSystemPrompt
	}
	return &Generator{model: model, system: system, timeout: timeout, logger: logger}
}

// Generate produces an answer to the question from the passages.
func (g *Generator) Generate(ctx context.Context, question string, passages []string) string {
	if len(passages) == 0 {
		return AnswerNoSupport
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.model.Complete(ctx, g.system, question, passages)
	if err != nil {
		g.logger.Warn("model completion failed, synthesizing from passages", "err", err)
		return synthesize(question, passages)
	}
	if strings.TrimSpace(text) == "" {
		g.logger.Warn("model returned empty completion, synthesizing from passages")
		return synthesize(question, passages)
	}
	return text
}

// synthesize builds an answer directly from the passages. Passages sharing
// a keyword with the question's first five words win; otherwise the leading
// passages are returned as-is.
func synthesize(question string, passages []string) string {
	keywords := strings.Fields(strings.ToLower(question))
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	var relevant []string
	for _, p := range passages {
		lower := strings.ToLower(p)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				relevant = append(relevant, p)
				break
			}
		}
	}

	if len(relevant) > 0 {
		if len(relevant) > 2 {
			relevant = relevant[:2]
		}
		return fmt.Sprintf("Regarding your question about %q, here's what the book says:\n\n%s",
			question, strings.Join(relevant, "\n\n"))
	}

	top := passages
	if len(top) > 2 {
		top = top[:2]
	}
	return "Here's information from the book related to your query:\n\n" + strings.Join(top, "\n\n")
}

// OfflineModel is the deterministic LanguageModel used when no model
// provider is configured. Selected at startup via LLM_PROVIDER=offline.
type OfflineModel struct{}

// Complete synthesizes an answer from the passages without any network call.
func (OfflineModel) Complete(_ context.Context, _ string, question string, passages []string) (string, error) {
	if len(passages) == 0 {
		return AnswerNoSupport, nil
	}
	return synthesize(question, passages), nil
}

// Healthcheck always succeeds; there is nothing to reach.
func (OfflineModel) Healthcheck(context.Context) error { return nil }
