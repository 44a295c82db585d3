package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Chapter 1 &amp; Basics</title>
  <style>body { color: red; }</style>
  <script>console.log("hidden");</script>
</head>
<body>
  <h1>Humanoid Robotics</h1>
  <p>Humanoid robots resemble   the human body.</p>
</body>
</html>`

func TestExtractTitle(t *testing.T) {
	if got := extractTitle(samplePage); got != "Chapter 1 & Basics" {
		t.Errorf("unexpected title: %q", got)
	}
	if got := extractTitle("<p>no title</p>"); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}

func TestExtractText(t *testing.T) {
	text := extractText(samplePage)

	for _, want := range []string{"Humanoid Robotics", "Humanoid robots resemble the human body."} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
	for _, banned := range []string{"console.log", "color: red", "<p>", "<h1>"} {
		if strings.Contains(text, banned) {
			t.Errorf("found %q in %q", banned, text)
		}
	}
}

func TestPageID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/", "index"},
		{"https://example.com/chapter-1", "chapter-1"},
		{"https://example.com/part-2/chapter-5/", "part-2-chapter-5"},
	}
	for _, tc := range cases {
		if got := pageID(tc.url); got != tc.want {
			t.Errorf("pageID(%s) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestSitemapURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/chapter-1</loc></url>
  <url><loc> https://example.com/chapter-2 </loc></url>
</urlset>`))
	}))
	defer srv.Close()

	c := NewCrawler("book", rate.NewLimiter(rate.Inf, 1))
	urls, err := c.SitemapURLs(context.Background(), srv.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d: %v", len(urls), urls)
	}
	if urls[0] != "https://example.com/chapter-1" || urls[1] != "https://example.com/chapter-2" {
		t.Errorf("unexpected urls: %v", urls)
	}
}

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	c := NewCrawler("book", rate.NewLimiter(rate.Inf, 1))
	page, err := c.FetchPage(context.Background(), srv.URL+"/chapter-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Source != "book" {
		t.Errorf("unexpected source: %s", page.Source)
	}
	if page.PageID != "chapter-1" {
		t.Errorf("unexpected page id: %s", page.PageID)
	}
	if page.Title != "Chapter 1 & Basics" {
		t.Errorf("unexpected title: %q", page.Title)
	}
	if page.FetchedAt.IsZero() {
		t.Error("expected fetched timestamp")
	}
}
