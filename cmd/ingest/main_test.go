package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/PhysicalAI/bookrag-mvp/engine/domain"
	"github.com/PhysicalAI/bookrag-mvp/pkg/fn"
)

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

func TestFileKey(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pages.json"), []byte(`{"page_id":"p1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	var keys []string
	for _, e := range dirEntries(t, dir) {
		key, size, ok := fileKey(e)
		if !ok {
			continue
		}
		if size <= 0 {
			t.Fatalf("size = %d for %s", size, key)
		}
		keys = append(keys, key)
	}

	if len(keys) != 1 {
		t.Fatalf("keys = %v, want exactly the pages.json entry", keys)
	}
	want := fmt.Sprintf("pages.json:%d", len(`{"page_id":"p1"}`))
	if keys[0] != want {
		t.Fatalf("key = %q, want %q", keys[0], want)
	}
}

func TestFileKey_SkipsVanishedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gone.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	entries := dirEntries(t, dir)
	if err := os.Remove(filepath.Join(dir, "gone.json")); err != nil {
		t.Fatal(err)
	}

	for _, e := range entries {
		if _, _, ok := fileKey(e); ok {
			t.Fatal("fileKey accepted an entry whose file no longer exists")
		}
	}
}

func TestProcessFile_ConcatenatedPages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.json")
	body := `{"page_id":"ch1","source":"gutenberg","content":"Call me Ishmael."}` + "\n" +
		`{"page_id":"ch2","source":"gutenberg","content":"The town of New Bedford."}` + "\n" +
		`{"page_id":"","source":"gutenberg","content":"no id, dropped"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	var seen []string
	ok := fn.Stage[domain.Page, string](func(_ context.Context, p domain.Page) fn.Result[string] {
		seen = append(seen, p.PageID)
		return fn.Ok(p.PageID)
	})

	count, errs := processFile(context.Background(), path, ok)
	if count != 2 || errs != 0 {
		t.Fatalf("processFile = (%d, %d), want (2, 0)", count, errs)
	}
	if len(seen) != 2 || seen[0] != "ch1" || seen[1] != "ch2" {
		t.Fatalf("pipeline saw %v", seen)
	}
}

func TestProcessFile_CountsPipelineErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.json")
	body := `{"page_id":"ch1","source":"gutenberg","content":"ok"}` + "\n" +
		`{"page_id":"ch2","source":"gutenberg","content":"bad"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	stage := fn.Stage[domain.Page, string](func(_ context.Context, p domain.Page) fn.Result[string] {
		if p.PageID == "ch2" {
			return fn.Err[string](errors.New("embed unavailable"))
		}
		return fn.Ok(p.PageID)
	})

	count, errs := processFile(context.Background(), path, stage)
	if count != 1 || errs != 1 {
		t.Fatalf("processFile = (%d, %d), want (1, 1)", count, errs)
	}
}

func TestProcessFile_MissingFile(t *testing.T) {
	noop := fn.Stage[domain.Page, string](func(_ context.Context, p domain.Page) fn.Result[string] {
		return fn.Ok(p.PageID)
	})
	count, errs := processFile(context.Background(), filepath.Join(t.TempDir(), "absent.json"), noop)
	if count != 0 || errs != 1 {
		t.Fatalf("processFile = (%d, %d), want (0, 1)", count, errs)
	}
}
