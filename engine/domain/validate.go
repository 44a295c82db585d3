package domain

import (
	"strings"
	"unicode/utf8"
)

// maxQueryLength bounds the question text in runes.
const maxQueryLength = 1000

// ValidateQuery checks a query before any external call is made. A failure
// here is a client error, never a degraded response.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return NewValidationError("text", q.Text, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(text) > maxQueryLength {
		// Slice by runes so the excerpt cannot split a multi-byte character.
		return NewValidationError("text", string([]rune(text)[:32])+"...", ErrQueryTooLong)
	}

	for _, id := range q.SelectedChunkIDs {
		if strings.TrimSpace(id) == "" {
			return NewValidationError("selected_chunk_ids", id, ErrInvalidChunkID)
		}
	}
	return nil
}

// ValidatePage checks a crawled page before ingestion.
func ValidatePage(p Page) error {
	if strings.TrimSpace(p.Content) == "" {
		return NewValidationError("content", "", ErrEmptyPage)
	}
	if p.PageID == "" {
		return NewValidationError("page_id", "", ErrMissingPageID)
	}
	if p.Source == "" {
		return NewValidationError("source", "", ErrMissingSource)
	}
	return nil
}
