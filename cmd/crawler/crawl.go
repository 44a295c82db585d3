package main

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PhysicalAI/bookrag-mvp/engine/domain"
	"golang.org/x/time/rate"
)

// Crawler fetches book pages politely, one at a time.
type Crawler struct {
	source  string
	client  *http.Client
	limiter *rate.Limiter
}

func NewCrawler(source string, limiter *rate.Limiter) *Crawler {
	return &Crawler{
		source:  source,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
	}
}

type sitemap struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// SitemapURLs fetches and parses the sitemap, returning page URLs in order.
func (c *Crawler) SitemapURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	body, err := c.get(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}

	var sm sitemap
	if err := xml.Unmarshal(body, &sm); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	urls := make([]string, 0, len(sm.URLs))
	for _, u := range sm.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// FetchPage downloads a page and extracts its title and visible text.
func (c *Crawler) FetchPage(ctx context.Context, pageURL string) (domain.Page, error) {
	body, err := c.get(ctx, pageURL)
	if err != nil {
		return domain.Page{}, err
	}

	html := string(body)
	return domain.Page{
		Source:    c.source,
		PageID:    pageID(pageURL),
		Title:     extractTitle(html),
		Content:   extractText(html),
		URL:       pageURL,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (c *Crawler) get(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("get %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

var (
	scriptBlock = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	titleTag    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)
	multiSpace  = regexp.MustCompile(`\s+`)
)

var entities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ")

func extractTitle(html string) string {
	m := titleTag.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(entities.Replace(multiSpace.ReplaceAllString(m[1], " ")))
}

// extractText strips script and style blocks, removes tags, and collapses
// whitespace into single spaces.
func extractText(html string) string {
	text := scriptBlock.ReplaceAllString(html, " ")
	text = anyTag.ReplaceAllString(text, " ")
	text = entities.Replace(text)
	return strings.TrimSpace(multiSpace.ReplaceAllString(text, " "))
}

// pageID derives a stable page identifier from the URL path.
func pageID(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "index"
	}
	id := strings.Trim(u.Path, "/")
	return strings.ReplaceAll(id, "/", "-")
}
