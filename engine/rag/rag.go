// Package rag orchestrates the book question-answering pipeline. It accepts
// a user question, embeds it, searches the vector index (optionally within a
// caller-selected set of chunks), generates an answer constrained to the
// retrieved passages, and assembles a structured response with evidence
// citations and a confidence label. Every failure downstream of input
// validation terminates in a well-formed response, never an error.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PhysicalAI/bookrag-mvp/engine/domain"
	"github.com/PhysicalAI/bookrag-mvp/engine/semantic"
	"github.com/google/uuid"
)

// Fixed answer strings surfaced by the pipeline's early-exit branches.
const (
	AnswerRetrievalError = "Error retrieving information from the knowledge base. Please try again later."
	AnswerSelectedMiss   = "Answer not available in the selected text."
	AnswerNoSupport      = "No supporting text found in the book."

	followUpQuestion = "Do you have any follow-up questions?"
)

// Embedder converts a query into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Healthcheck(ctx context.Context) error
}

// Searcher abstracts nearest-neighbour search over the book index.
type Searcher interface {
	SearchWithin(ctx context.Context, embedding []float32, limit int, chunkIDs []string) ([]semantic.SearchResult, error)
	Healthcheck(ctx context.Context) error
}

// LanguageModel produces an answer constrained to the supplied passages.
type LanguageModel interface {
	Complete(ctx context.Context, system, question string, passages []string) (string, error)
	Healthcheck(ctx context.Context) error
}

// Options configures the pipeline behaviour.
type Options struct {
	SearchLimit     int
	EvidenceLimit   int
	QuoteMaxRunes   int
	MinOverlap      float64
	SystemPrompt    string
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		SearchLimit:     5,
		EvidenceLimit:   3,
		QuoteMaxRunes:   200,
		MinOverlap:      DefaultMinOverlap,
		SystemPrompt:    defaultSystemPrompt,
		SearchTimeout:   5 * time.Second,
		GenerateTimeout: 30 * time.Second,
	}
}

const defaultSystemPrompt = `You are an AI tutor for the Physical AI & Humanoid Robotics textbook.
Use ONLY the provided passages to answer.
If the answer is not in the passages, respond with exactly: "No supporting text found in the book."
If the user provided specific selected text and the answer is not in that selected text, respond with exactly: "Answer not available in the selected text."
Never invent facts or use external knowledge.
Always cite the source of your information when possible.
Keep answers concise, factual, and directly tied to the passages.
When quoting, keep quotes short and exact (at most 200 characters).`

// Service is the query orchestration service. It is stateless across
// queries; the injected gateways are shared read-only clients.
type Service struct {
	embed     Embedder
	search    Searcher
	gen       *Generator
	grounding Grounding
	opts      Options
	logger    *slog.Logger
}

// New creates the orchestrator with its collaborator gateways.
func New(embed Embedder, search Searcher, model LanguageModel, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embed:     embed,
		search:    search,
		gen:       NewGenerator(model, opts.SystemPrompt, opts.GenerateTimeout, logger),
		grounding: Grounding{MinOverlap: opts.MinOverlap},
		opts:      opts,
		logger:    logger,
	}
}

// ProcessQuery runs the full pipeline for one question. The only error it
// returns is a validation failure; every downstream failure is folded into
// a degraded structured response.
func (s *Service) ProcessQuery(ctx context.Context, question string, selectedChunkIDs []string) (*domain.Response, error) {
	q := domain.Query{
		ID:               uuid.NewString(),
		Text:             question,
		SelectedChunkIDs: selectedChunkIDs,
		SubmittedAt:      time.Now(),
	}
	if err := domain.ValidateQuery(q); err != nil {
		return nil, err
	}

	s.logger.Info("query start",
		"query_id", q.ID,
		"question_len", len(q.Text),
		"selected_chunks", len(q.SelectedChunkIDs),
	)

	matches, err := s.retrieve(ctx, q)
	if err != nil {
		s.logger.Warn("retrieval failed", "query_id", q.ID, "err", err)
		return s.respond(q, AnswerRetrievalError, nil, domain.ConfidenceLow, false), nil
	}

	if len(matches) == 0 {
		if q.Selected() {
			return s.respond(q, AnswerSelectedMiss, nil, domain.ConfidenceLow, false), nil
		}
		return s.respond(q, AnswerNoSupport, nil, domain.ConfidenceLow, false), nil
	}

	passages := make([]string, len(matches))
	scores := make([]float64, len(matches))
	for i, m := range matches {
		passages[i] = m.Content
		scores[i] = float64(m.Score)
	}

	answer := s.gen.Generate(ctx, q.Text, passages)
	confidence := ScoreConfidence(scores)
	evidence := BuildEvidence(matches, s.opts.EvidenceLimit, s.opts.QuoteMaxRunes)

	if !s.grounding.IsGrounded(answer, passages) && !strings.Contains(answer, AnswerNoSupport) {
		s.logger.Warn("answer rejected as ungrounded", "query_id", q.ID, "answer_len", len(answer))
		return s.respond(q, AnswerNoSupport, nil, domain.ConfidenceLow, false), nil
	}

	s.logger.Info("query done", "query_id", q.ID, "confidence", confidence, "evidence", len(evidence))
	return s.respond(q, answer, evidence, confidence, true), nil
}

// retrieve embeds the question and searches the index, both under the
// search timeout. Passages come back in index order, highest score first.
func (s *Service) retrieve(ctx context.Context, q domain.Query) ([]semantic.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	vec, err := s.embed.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	results, err := s.search.SearchWithin(ctx, vec, s.opts.SearchLimit, q.SelectedChunkIDs)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search: %w", err)
	}
	return results, nil
}

func (s *Service) respond(q domain.Query, answer string, evidence []domain.Evidence, confidence domain.Confidence, ask bool) *domain.Response {
	if evidence == nil {
		evidence = []domain.Evidence{}
	}
	followUp := domain.FollowUp{}
	if ask {
		followUp = domain.FollowUp{Ask: true, Question: followUpQuestion}
	}
	return &domain.Response{
		ID:         uuid.NewString(),
		QueryID:    q.ID,
		Answer:     answer,
		Evidence:   evidence,
		Confidence: confidence,
		FollowUp:   followUp,
		CreatedAt:  time.Now(),
	}
}

// Health reports each collaborator's status. A failing check maps to
// "unhealthy"; this never returns an error.
func (s *Service) Health(ctx context.Context) map[string]string {
	checks := []struct {
		name  string
		check func(context.Context) error
	}{
		{"embedding", s.embed.Healthcheck},
		{"index", s.search.Healthcheck},
		{"model", s.gen.model.Healthcheck},
	}

	out := make(map[string]string, len(checks))
	for _, c := range checks {
		status := "healthy"
		if err := c.check(ctx); err != nil {
			s.logger.Warn("healthcheck failed", "collaborator", c.name, "err", err)
			status = "unhealthy"
		}
		out[c.name] = status
	}
	return out
}
