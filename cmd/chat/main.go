// Command chat is a terminal REPL for asking the book questions, wired
// directly to the query pipeline without the HTTP layer.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/PhysicalAI/bookrag-mvp/engine/rag"
	"github.com/PhysicalAI/bookrag-mvp/engine/semantic"
	"github.com/PhysicalAI/bookrag-mvp/pkg/cohere"
	"github.com/PhysicalAI/bookrag-mvp/pkg/gemini"
	"github.com/joho/godotenv"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	qdrantAddr := envOr("QDRANT_URL", "localhost:6334")
	collection := envOr("QDRANT_COLLECTION", "book_chunks")

	store, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		fmt.Fprintln(os.Stderr, "qdrant connect failed:", err)
		os.Exit(1)
	}
	defer store.Close()

	embedder := cohere.New(os.Getenv("COHERE_BASE_URL"), os.Getenv("COHERE_API_KEY"), "")

	var model rag.LanguageModel
	if envOr("LLM_PROVIDER", "gemini") == "offline" {
		model = rag.OfflineModel{}
	} else {
		model = gemini.New(os.Getenv("GEMINI_BASE_URL"), os.Getenv("GEMINI_API_KEY"), "")
	}

	svc := rag.New(embedder, store, model, rag.DefaultOptions(), logger)

	fmt.Println("Ask the book a question. Empty line or Ctrl-D exits.")
	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		resp, err := svc.ProcessQuery(ctx, question, nil)
		if err != nil {
			fmt.Println("invalid question:", err)
			continue
		}

		fmt.Println()
		fmt.Println(resp.Answer)
		if len(resp.Evidence) > 0 {
			fmt.Println()
			for i, ev := range resp.Evidence {
				fmt.Printf("  [%d] %s: %q\n", i+1, ev.ChunkID, ev.Quote)
			}
		}
		fmt.Printf("\nconfidence: %s\n", resp.Confidence)
		if resp.FollowUp.Ask {
			fmt.Println(resp.FollowUp.Question)
		}
		fmt.Println()
	}
}
