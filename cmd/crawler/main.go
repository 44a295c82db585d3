// Command crawler fetches the book's sitemap, scrapes each page, and
// publishes the pages to NATS for the ingest worker.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/PhysicalAI/bookrag-mvp/engine/ingest"
	"github.com/PhysicalAI/bookrag-mvp/pkg/natsutil"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"
)

func main() {
	var (
		sitemapURL = flag.String("sitemap", "https://robotics-book-gamma.vercel.app/sitemap.xml", "book sitemap URL")
		natsURL    = flag.String("nats", nats.DefaultURL, "NATS server URL")
		source     = flag.String("source", "book", "source label stored with each page")
		every      = flag.Duration("every", 500*time.Millisecond, "minimum delay between page fetches")
	)
	flag.Parse()

	_ = godotenv.Load()

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	crawler := NewCrawler(*source, rate.NewLimiter(rate.Every(*every), 1))

	urls, err := crawler.SitemapURLs(ctx, *sitemapURL)
	if err != nil {
		log.Error("sitemap fetch failed", "error", err)
		os.Exit(1)
	}
	log.Info("sitemap fetched", "urls", len(urls))

	published, failed := 0, 0
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}

		page, err := crawler.FetchPage(ctx, u)
		if err != nil {
			log.Warn("page fetch failed", "url", u, "error", err)
			failed++
			continue
		}

		if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, page); err != nil {
			log.Error("publish failed", "url", u, "error", err)
			failed++
			continue
		}
		published++
		log.Info("page published", "page_id", page.PageID, "title", page.Title)
	}

	log.Info("crawl complete", "published", published, "failed", failed)
	if failed > 0 && published == 0 {
		os.Exit(1)
	}
}
