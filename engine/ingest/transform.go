package ingest

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the target number of tokens per chunk.
	DefaultChunkSize = 512
	// DefaultOverlap is the number of overlapping tokens between chunks.
	DefaultOverlap = 50
)

// splitSentences splits text into sentences using punctuation and newlines.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			// End-of-sentence only when followed by space or end of text.
			if r == '\n' || i == len(text)-1 || (i+1 < len(text) && unicode.IsSpace(rune(text[i+1]))) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// chunkSentences groups sentences into chunks of ~chunkSize tokens with
// overlap. Token count is approximated as word count. Chunk ids are
// deterministic so re-ingesting a page overwrites its old points.
func chunkSentences(docID string, sentences []string, chunkSize, overlap int) []Chunk {
	if len(sentences) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []Chunk
	idx := 0
	start := 0

	for start < len(sentences) {
		var buf strings.Builder
		tokens := 0
		end := start

		for end < len(sentences) {
			words := wordCount(sentences[end])
			if tokens+words > chunkSize && tokens > 0 {
				break
			}
			if buf.Len() > 0 {
				buf.WriteRune(' ')
			}
			buf.WriteString(sentences[end])
			tokens += words
			end++
		}

		chunks = append(chunks, Chunk{
			Text:    buf.String(),
			Index:   idx,
			DocID:   docID,
			ChunkID: chunkID(docID, idx),
		})
		idx++

		// Back up by the overlap amount, guaranteeing forward progress.
		overlapTokens := 0
		newStart := end
		for newStart > start && overlapTokens < overlap {
			newStart--
			overlapTokens += wordCount(sentences[newStart])
		}
		if newStart == start {
			start = end
		} else {
			start = newStart
		}
	}
	return chunks
}

// chunkID builds the stable chunk identifier stored in the index payload.
func chunkID(docID string, index int) string {
	return fmt.Sprintf("%s-%d", docID, index)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
