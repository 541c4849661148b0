package knowledge

import (
	"strings"
)

// Splitter breaks document text into fixed-size overlapping chunks. Split
// points prefer paragraph, then sentence, then word boundaries so passages
// stay readable when spoken back to a caller.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewSplitter creates a splitter. Non-positive values fall back to the
// corpus defaults (1000/200).
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 200
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 5
		}
	}
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

var separators = []string{"\n\n", "\n", ". ", " "}

// Split returns the chunks of text in document order. Whitespace-only input
// yields no chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + s.ChunkSize
		if end >= len(text) {
			chunk := strings.TrimSpace(text[start:])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		end = s.splitPoint(text, start, end)
		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - s.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// splitPoint finds the latest natural boundary in (start, limit]. Falls back
// to the hard limit when the window has no separator at all.
func (s *Splitter) splitPoint(text string, start, limit int) int {
	window := text[start:limit]
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + idx + len(sep)
		}
	}
	return limit
}
