package rag

import (
	"strings"
	"unicode"
)

// DefaultMinOverlap is the fraction of answer tokens that must appear in
// the retrieved passages for the answer to count as grounded.
const DefaultMinOverlap = 0.5

// Grounding checks that a generated answer is actually supported by the
// retrieved passages. It is deliberately biased toward rejection: a
// rejected paraphrase degrades to the safe not-found response, while an
// accepted fabrication breaks the answer-only-from-the-book guarantee.
type Grounding struct {
	MinOverlap float64
}

// IsGrounded reports whether the answer's content words are covered by the
// passages. The two fixed fallback strings are always accepted verbatim.
func (g Grounding) IsGrounded(answer string, passages []string) bool {
	if answer == AnswerNoSupport || answer == AnswerSelectedMiss {
		return true
	}

	tokens := tokenize(answer)
	if len(tokens) == 0 {
		return false
	}

	supported := make(map[string]bool)
	for _, p := range passages {
		for _, t := range tokenize(p) {
			supported[t] = true
		}
	}

	matched := 0
	for _, t := range tokens {
		if supported[t] {
			matched++
		}
	}

	min := g.MinOverlap
	if min <= 0 {
		min = DefaultMinOverlap
	}
	return float64(matched)/float64(len(tokens)) >= min
}

// stopWords are excluded from overlap scoring.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "to": true,
	"of": true, "in": true, "for": true, "on": true, "with": true,
	"at": true, "by": true, "from": true, "as": true, "into": true,
	"through": true, "during": true, "before": true, "after": true,
	"what": true, "where": true, "when": true, "how": true, "which": true,
	"who": true, "whom": true, "this": true, "that": true, "these": true,
	"those": true, "i": true, "me": true, "my": true, "it": true,
	"its": true, "and": true, "but": true, "or": true, "not": true,
	"here": true, "there": true, "about": true, "your": true, "you": true,
	"says": true, "book": true, "regarding": true, "question": true,
}

// tokenize splits text into unique lowercase content words.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}
