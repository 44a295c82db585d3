package fn

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResult_OkAndErr(t *testing.T) {
	ok := Ok("chapter-1")
	if !ok.IsOk() || ok.IsErr() {
		t.Fatal("Ok result reported as error")
	}
	v, err := ok.Unwrap()
	if err != nil || v != "chapter-1" {
		t.Fatalf("Unwrap = (%q, %v)", v, err)
	}

	sentinel := errors.New("empty page")
	bad := Err[string](sentinel)
	if bad.IsOk() || !bad.IsErr() {
		t.Fatal("Err result reported as ok")
	}
	if _, err := bad.Unwrap(); !errors.Is(err, sentinel) {
		t.Fatalf("Unwrap err = %v, want sentinel", err)
	}
}

func TestErrf_WrapsWithVerb(t *testing.T) {
	cause := errors.New("connection refused")
	r := Errf[int]("embed chunks: %w", cause)
	_, err := r.Unwrap()
	if !errors.Is(err, cause) {
		t.Fatalf("Errf did not wrap cause: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "embed chunks: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestThen_ComposesStages(t *testing.T) {
	normalize := Stage[string, string](func(_ context.Context, s string) Result[string] {
		return Ok(strings.ToLower(strings.TrimSpace(s)))
	})
	count := Stage[string, int](func(_ context.Context, s string) Result[int] {
		return Ok(len(strings.Fields(s)))
	})

	pipeline := Then(normalize, count)
	r := pipeline(context.Background(), "  The Quick Brown Fox  ")
	n, err := r.Unwrap()
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("word count = %d, want 4", n)
	}
}

func TestThen_ShortCircuitsOnFirstError(t *testing.T) {
	sentinel := errors.New("page has no content")
	reject := Stage[string, string](func(_ context.Context, _ string) Result[string] {
		return Err[string](sentinel)
	})
	var secondRan bool
	second := Stage[string, int](func(_ context.Context, _ string) Result[int] {
		secondRan = true
		return Ok(0)
	})

	r := Then(reject, second)(context.Background(), "anything")
	if _, err := r.Unwrap(); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if secondRan {
		t.Fatal("second stage ran after first stage failed")
	}
}

func TestChunk(t *testing.T) {
	texts := []string{"a", "b", "c", "d", "e"}

	groups := Chunk(texts, 2)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	if len(groups[0]) != 2 || len(groups[1]) != 2 || len(groups[2]) != 1 {
		t.Fatalf("unexpected group sizes: %v", groups)
	}
	if groups[2][0] != "e" {
		t.Fatalf("last element = %q, want e", groups[2][0])
	}

	if got := Chunk(texts, 10); len(got) != 1 || len(got[0]) != 5 {
		t.Fatalf("oversized chunk: %v", got)
	}
	if got := Chunk([]string(nil), 3); got != nil {
		t.Fatalf("empty input should yield nil, got %v", got)
	}
	if got := Chunk(texts, 0); got != nil {
		t.Fatalf("size 0 should yield nil, got %v", got)
	}
}
