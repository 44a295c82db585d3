package ingest

import "github.com/PhysicalAI/bookrag-mvp/engine/domain"

// ParsedDoc represents a crawled page after parsing.
type ParsedDoc struct {
	ID        string
	Source    string
	Title     string
	URL       string
	Content   string
	Sentences []string
}

// ChunkedDoc is a parsed document split into embeddable chunks.
type ChunkedDoc struct {
	ParsedDoc
	Chunks []Chunk
}

// Chunk is a text segment ready for embedding. ChunkID is the stable
// identifier stored in the index payload and cited in evidence.
type Chunk struct {
	Text    string
	Index   int
	DocID   string
	ChunkID string
}

// EmbeddedDoc is a chunked document with embeddings, one per chunk.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}

// parsedDocFromPage converts a crawled page into a ParsedDoc.
func parsedDocFromPage(page domain.Page) ParsedDoc {
	return ParsedDoc{
		ID:        page.Source + ":" + page.PageID,
		Source:    page.Source,
		Title:     page.Title,
		URL:       page.URL,
		Content:   page.Content,
		Sentences: splitSentences(page.Content),
	}
}
