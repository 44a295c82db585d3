// Package ingest provides the offline ingestion pipeline that processes
// crawled book pages through validation, parsing, chunking, embedding, and
// vector storage stages. It runs as a batch job, never inside the query path.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/PhysicalAI/bookrag-mvp/engine/domain"
	"github.com/PhysicalAI/bookrag-mvp/engine/semantic"
	"github.com/PhysicalAI/bookrag-mvp/pkg/fn"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	// IngestSubject is the NATS subject for incoming crawled pages.
	IngestSubject = "bookrag.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "bookrag.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
	// EmbedBatchSize is the max chunks per embedding request.
	EmbedBatchSize = 50
)

// Embedder batches texts into embeddings, order preserved.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error)
}

// VectorUpserter stores embedding records. Satisfied by *semantic.VectorStore.
type VectorUpserter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder     Embedder
	VectorStore  VectorUpserter
	DeduplicateF func(ctx context.Context, docID string) (bool, error) // returns true if already ingested
	Logger       *slog.Logger
}

// --- Pipeline Stages ---

// Validate checks a page via domain validation.
var Validate fn.Stage[domain.Page, domain.Page] = func(_ context.Context, page domain.Page) fn.Result[domain.Page] {
	if err := domain.ValidatePage(page); err != nil {
		return fn.Err[domain.Page](err)
	}
	return fn.Ok(page)
}

// Parse converts a page into a ParsedDoc.
var Parse fn.Stage[domain.Page, ParsedDoc] = func(_ context.Context, page domain.Page) fn.Result[ParsedDoc] {
	return fn.Ok(parsedDocFromPage(page))
}

// ChunkDoc splits a ParsedDoc into a ChunkedDoc.
var ChunkDoc fn.Stage[ParsedDoc, ChunkedDoc] = func(_ context.Context, doc ParsedDoc) fn.Result[ChunkedDoc] {
	chunks := chunkSentences(doc.ID, doc.Sentences, DefaultChunkSize, DefaultOverlap)
	if len(chunks) == 0 {
		// Single chunk fallback for short content.
		chunks = []Chunk{{Text: doc.Content, Index: 0, DocID: doc.ID, ChunkID: chunkID(doc.ID, 0)}}
	}
	return fn.Ok(ChunkedDoc{ParsedDoc: doc, Chunks: chunks})
}

// NewEmbed creates an Embed stage over the embedding gateway. A failed
// batch aborts the whole document; partial embeddings are useless.
func NewEmbed(embedder Embedder) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		texts := make([]string, len(doc.Chunks))
		for i, c := range doc.Chunks {
			texts[i] = c.Text
		}

		embeddings, err := embedder.EmbedBatch(ctx, texts, EmbedBatchSize)
		if err != nil {
			return fn.Errf[EmbeddedDoc]("embed chunks: %w", err)
		}
		if len(embeddings) != len(doc.Chunks) {
			return fn.Errf[EmbeddedDoc]("embed chunks: got %d embeddings for %d chunks", len(embeddings), len(doc.Chunks))
		}

		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: embeddings})
	}
}

// NewStore creates a Store stage that writes chunk vectors to Qdrant with
// the payload schema the query path reads: text, doc_id, chunk_id, title,
// url, source.
func NewStore(vs VectorUpserter) fn.Stage[EmbeddedDoc, string] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[string] {
		records := make([]semantic.VectorRecord, len(doc.Chunks))
		for i, chunk := range doc.Chunks {
			// Deterministic point id from the chunk id, so re-ingestion
			// overwrites instead of duplicating.
			pointID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunk.ChunkID)).String()
			records[i] = semantic.VectorRecord{
				ID:        pointID,
				Embedding: doc.Embeddings[i],
				Payload: map[string]any{
					"text":     chunk.Text,
					"doc_id":   chunk.DocID,
					"chunk_id": chunk.ChunkID,
					"title":    doc.Title,
					"url":      doc.URL,
					"source":   doc.Source,
				},
			}
		}
		if err := vs.Upsert(ctx, records); err != nil {
			return fn.Errf[string]("vector upsert: %w", err)
		}
		return fn.Ok(doc.ID)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the full ingestion pipeline with all stages wired:
// Validate → Parse → Chunk → Embed → Store.
func NewPipeline(deps Deps) fn.Stage[domain.Page, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(LoggedTap[domain.Page]("validate", log), Validate)
	parsed := fn.Then(validated, fn.Then(LoggedTap[domain.Page]("parse", log), Parse))
	chunked := fn.Then(parsed, fn.Then(LoggedTap[ParsedDoc]("chunk", log), ChunkDoc))
	embedded := fn.Then(chunked, fn.Then(LoggedTap[ChunkedDoc]("embed", log), NewEmbed(deps.Embedder)))
	stored := fn.Then(embedded, fn.Then(LoggedTap[EmbeddedDoc]("store", log), NewStore(deps.VectorStore)))

	return stored
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Page    domain.Page `json:"page"`
	Error   string      `json:"error"`
	Retries int         `json:"retries"`
}

// StartConsumer subscribes to the ingest subject and runs crawled pages
// through the pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var page domain.Page
		if err := json.Unmarshal(msg.Data, &page); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		if deps.DeduplicateF != nil {
			docID := page.Source + ":" + page.PageID
			exists, err := deps.DeduplicateF(ctx, docID)
			if err != nil {
				log.Warn("ingest: dedup check failed", "error", err)
			} else if exists {
				log.Info("ingest: skipping duplicate", "doc_id", docID)
				if msg.Reply != "" {
					_ = msg.Ack()
				}
				return
			}
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, page)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"page_id", page.PageID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Page: page, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(IngestSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			docID, _ := result.Unwrap()
			log.Info("ingest: success", "doc_id", docID)
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
