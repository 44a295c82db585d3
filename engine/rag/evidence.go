package rag

import (
	"unicode/utf8"

	"github.com/PhysicalAI/bookrag-mvp/engine/domain"
	"github.com/PhysicalAI/bookrag-mvp/engine/semantic"
)

// ScoreConfidence maps retrieval similarity scores to a confidence label
// using a fixed threshold table: mean >= 0.7 is High, mean >= 0.4 is Medium,
// anything else (including no scores) is Low.
func ScoreConfidence(scores []float64) domain.Confidence {
	if len(scores) == 0 {
		return domain.ConfidenceLow
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))

	switch {
	case mean >= 0.7:
		return domain.ConfidenceHigh
	case mean >= 0.4:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// BuildEvidence derives citation records from the leading matches, order
// preserved. Quotes longer than maxQuote runes are truncated at
// construction time.
func BuildEvidence(matches []semantic.SearchResult, limit, maxQuote int) []domain.Evidence {
	if limit > len(matches) {
		limit = len(matches)
	}
	out := make([]domain.Evidence, 0, limit)
	for _, m := range matches[:limit] {
		out = append(out, domain.Evidence{
			DocumentID: m.DocID,
			ChunkID:    m.ChunkID,
			Quote:      truncateRunes(m.Content, maxQuote),
		})
	}
	return out
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
