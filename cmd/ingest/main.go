// Command ingest consumes crawled book pages from NATS and watches a
// directory for page JSON files, running both through the ingestion
// pipeline into Qdrant.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PhysicalAI/bookrag-mvp/engine/domain"
	"github.com/PhysicalAI/bookrag-mvp/engine/ingest"
	"github.com/PhysicalAI/bookrag-mvp/engine/semantic"
	"github.com/PhysicalAI/bookrag-mvp/pkg/cohere"
	"github.com/PhysicalAI/bookrag-mvp/pkg/fn"
	"github.com/PhysicalAI/bookrag-mvp/pkg/metrics"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

var met = metrics.New()

// Ingest metrics
var (
	mDocsTotal      = func(source string) *metrics.Counter { return met.Counter(metrics.WithLabels("bookrag_ingest_docs_total", "source", source), "Total documents ingested") }
	mErrorsTotal    = func(stage string) *metrics.Counter { return met.Counter(metrics.WithLabels("bookrag_ingest_errors_total", "stage", stage), "Total ingestion errors") }
	mDocsSkipped    = met.Counter("bookrag_ingest_docs_skipped_total", "Documents skipped by dedup")
	mFilesProcessed = met.Counter("bookrag_ingest_files_processed_total", "Files processed")
	mBytesScanned   = met.Counter("bookrag_ingest_bytes_scanned_total", "Bytes of new page data picked up by scans")
	mActiveDocs     = met.Gauge("bookrag_ingest_active_docs", "Currently processing documents")
	mLastScan       = met.Gauge("bookrag_ingest_last_scan_timestamp", "Epoch of last directory scan")
	mPipelineDur    = met.Histogram("bookrag_ingest_pipeline_duration_seconds", "Per-doc pipeline time", nil)
)

// embed-english-v3.0 output dimension.
const vectorDims = 1024

func main() {
	var (
		dataDir    = flag.String("dir", "/tmp/bookrag-data", "directory to watch for page JSON files")
		natsURL    = flag.String("nats", nats.DefaultURL, "NATS server URL, empty disables the consumer")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "book_chunks", "Qdrant collection name")
		interval   = flag.Duration("interval", 30*time.Second, "scan interval")
		stateFile  = flag.String("state", "/tmp/bookrag-data/.ingest-state.json", "processed files state")
	)
	flag.Parse()

	_ = godotenv.Load()

	met.ServeAsync(9091)

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Connect Qdrant
	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, vectorDims); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", vectorDims)

	// Cohere embedder
	embedder := cohere.New(os.Getenv("COHERE_BASE_URL"), os.Getenv("COHERE_API_KEY"), "")

	// Dedup map
	var mu sync.Mutex
	seen := make(map[string]bool)

	deps := ingest.Deps{
		Embedder:    embedder,
		VectorStore: vs,
		DeduplicateF: func(_ context.Context, docID string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if seen[docID] {
				mDocsSkipped.Inc()
				return true, nil
			}
			seen[docID] = true
			return false, nil
		},
		Logger: log,
	}

	pipeline := ingest.NewPipeline(deps)

	// NATS consumer for the crawler feed
	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			log.Warn("nats connect failed, consumer disabled", "error", err)
		} else {
			defer nc.Drain()
			sub, err := ingest.StartConsumer(nc, deps)
			if err != nil {
				log.Error("nats subscribe failed", "error", err)
				os.Exit(1)
			}
			defer sub.Unsubscribe()
			log.Info("consuming crawled pages", "subject", ingest.IngestSubject)
		}
	}

	// Load state
	processed := loadState(*stateFile)

	// Ensure data dir
	os.MkdirAll(*dataDir, 0o755)

	log.Info("watching for page data", "dir", *dataDir, "interval", *interval)

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		entries, err := os.ReadDir(*dataDir)
		if err != nil {
			mErrorsTotal("scan").Inc()
			log.Error("readdir failed", "error", err)
			return
		}

		for _, e := range entries {
			key, size, ok := fileKey(e)
			if !ok {
				continue
			}
			path := filepath.Join(*dataDir, e.Name())

			if processed[key] {
				continue
			}
			mBytesScanned.Add(size)

			log.Info("processing file", "file", e.Name())
			count, errs := processFile(ctx, path, pipeline)
			log.Info("file done", "file", e.Name(), "ingested", count, "errors", errs)
			mFilesProcessed.Inc()

			// Only mark as fully processed if no errors (allows retry on next scan)
			if errs == 0 {
				processed[key] = true
				saveState(*stateFile, processed)
			} else {
				log.Warn("file had errors, will retry on next scan", "file", e.Name(), "errors", errs)
			}
		}
	}

	// Initial scan
	scan()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

// fileKey derives the dedup key for a directory entry, filtering out
// non-page files. The file may vanish between ReadDir and Info; such
// entries are skipped and picked up on the next scan.
func fileKey(e os.DirEntry) (key string, size int64, ok bool) {
	if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name()[0] == '.' {
		return "", 0, false
	}
	info, err := e.Info()
	if err != nil {
		return "", 0, false
	}
	return fmt.Sprintf("%s:%d", e.Name(), info.Size()), info.Size(), true
}

// processFile reads one or more page JSON documents from a file and runs
// each through the pipeline. Files may hold a single page or a stream of
// concatenated page objects.
func processFile(ctx context.Context, path string, pipeline fn.Stage[domain.Page, string]) (int, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 1
	}

	var pages []domain.Page
	dec := json.NewDecoder(strings.NewReader(string(data)))
	for {
		var page domain.Page
		if err := dec.Decode(&page); err != nil {
			break
		}
		if page.PageID != "" && page.Content != "" {
			pages = append(pages, page)
		}
	}

	count, errs := 0, 0
	log := slog.Default()
	for _, p := range pages {
		if ctx.Err() != nil {
			break
		}
		mActiveDocs.Inc()
		docStart := time.Now()
		result := pipeline(ctx, p)
		mPipelineDur.Since(docStart)
		mActiveDocs.Dec()
		if result.IsErr() {
			_, err := result.Unwrap()
			log.Error("pipeline error", "page_id", p.PageID, "error", err)
			mErrorsTotal("pipeline").Inc()
			errs++
		} else {
			mDocsTotal(p.Source).Inc()
			count++
		}
	}
	return count, errs
}

func loadState(path string) map[string]bool {
	m := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	json.Unmarshal(data, &m)
	return m
}

func saveState(path string, m map[string]bool) {
	data, _ := json.Marshal(m)
	os.WriteFile(path, data, 0o644)
}
