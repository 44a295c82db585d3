// Package domain defines core types, constants, and validation for the
// book RAG pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// Confidence labels how well the retrieved passages support an answer.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Query represents a user question, optionally restricted to a set of
// selected content chunks. Immutable once created.
type Query struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	SelectedChunkIDs []string  `json:"selected_chunk_ids,omitempty"`
	SessionID        string    `json:"session_id,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Selected reports whether the query is running in selected-text mode.
func (q Query) Selected() bool { return len(q.SelectedChunkIDs) > 0 }

// Evidence cites one passage backing an answer.
type Evidence struct {
	DocumentID string `json:"doc_id"`
	ChunkID    string `json:"chunk_id"`
	Quote      string `json:"quote"`
}

// FollowUp tells the caller whether to prompt for another question.
type FollowUp struct {
	Ask      bool   `json:"ask"`
	Question string `json:"question"`
}

// Response is the structured answer produced for one query. Created once by
// the orchestrator, returned to the caller, and discarded.
type Response struct {
	ID         string     `json:"id"`
	QueryID    string     `json:"query_id"`
	Answer     string     `json:"answer"`
	Evidence   []Evidence `json:"evidence"`
	Confidence Confidence `json:"confidence"`
	FollowUp   FollowUp   `json:"follow_up"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Page is one crawled book page, the unit of ingestion.
type Page struct {
	Source    string    `json:"source"`
	PageID    string    `json:"page_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
}
