package semantic

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Content string  `json:"content"`
	DocID   string  `json:"doc_id"`
	ChunkID string  `json:"chunk_id"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Source  string  `json:"source"`
}

// VectorRecord represents a single vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // text, doc_id, chunk_id, title, url, source
}
