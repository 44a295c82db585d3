// Package main implements the book chatbot API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/PhysicalAI/bookrag-mvp/engine/domain"
	"github.com/PhysicalAI/bookrag-mvp/engine/rag"
	"github.com/PhysicalAI/bookrag-mvp/engine/semantic"
	"github.com/PhysicalAI/bookrag-mvp/pkg/cohere"
	"github.com/PhysicalAI/bookrag-mvp/pkg/gemini"
	"github.com/PhysicalAI/bookrag-mvp/pkg/metrics"
	"github.com/PhysicalAI/bookrag-mvp/pkg/mid"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	QdrantURL    string
	Collection   string
	CohereKey    string
	CohereURL    string
	GeminiKey    string
	GeminiURL    string
	LLMProvider  string
	CORSOrigin   string
	MetricsPort  int
}

func loadConfig() Config {
	metricsPort, _ := strconv.Atoi(envOr("METRICS_PORT", "9100"))
	return Config{
		Port:        envOr("PORT", "8080"),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", "book_chunks"),
		CohereKey:   os.Getenv("COHERE_API_KEY"),
		CohereURL:   os.Getenv("COHERE_BASE_URL"),
		GeminiKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiURL:   os.Getenv("GEMINI_BASE_URL"),
		LLMProvider: envOr("LLM_PROVIDER", "gemini"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		MetricsPort: metricsPort,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Embedding gateway ---
	embedder := cohere.New(cfg.CohereURL, cfg.CohereKey, "")

	// --- Language model ---
	var model rag.LanguageModel
	switch cfg.LLMProvider {
	case "offline":
		model = rag.OfflineModel{}
	default:
		model = gemini.New(cfg.GeminiURL, cfg.GeminiKey, "")
	}

	// --- Build RAG service ---
	ragSvc := rag.New(embedder, vectorStore, model, rag.DefaultOptions(), logger)

	// --- Metrics ---
	reg := metrics.New()
	reg.ServeAsync(cfg.MetricsPort)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", handleHealth(ragSvc))
	mux.HandleFunc("POST /api/v1/chat", handleChat(ragSvc, reg, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("bookrag-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	Dependencies map[string]string `json:"dependencies"`
}

func handleHealth(ragSvc *rag.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps := ragSvc.Health(r.Context())

		status := "healthy"
		for _, v := range deps {
			if v != "healthy" {
				status = "degraded"
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(HealthResponse{
			Status:       status,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Dependencies: deps,
		})
	}
}

// ChatRequest is the JSON body for POST /api/v1/chat.
type ChatRequest struct {
	Query          string   `json:"query"`
	SelectedChunks []string `json:"selected_chunks,omitempty"`
}

func handleChat(ragSvc *rag.Service, reg *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	queries := reg.Counter("chat_queries_total", "Total chat queries received")
	rejected := reg.Counter("chat_queries_rejected_total", "Queries rejected by validation")
	degraded := reg.Counter("chat_answers_degraded_total", "Answers that fell back to a fixed degraded reply")
	latency := reg.Histogram("chat_request_seconds", "Chat request duration", metrics.DefaultBuckets)

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer latency.Since(start)

		queries.Inc()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rejected.Inc()
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		resp, err := ragSvc.ProcessQuery(r.Context(), req.Query, req.SelectedChunks)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				rejected.Inc()
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			logger.Error("chat query failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		switch resp.Answer {
		case rag.AnswerRetrievalError, rag.AnswerSelectedMiss, rag.AnswerNoSupport:
			degraded.Inc()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
