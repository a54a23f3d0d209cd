package text

import "strings"

const (
	// DefaultChunkSize is the maximum chunk width in characters.
	DefaultChunkSize = 500

	// DefaultOverlap is how many characters consecutive chunks share.
	DefaultOverlap = 50
)

// Chunk splits content into an ordered sequence of segments using a
// fixed-width sliding window: each segment is at most size characters, and
// consecutive segments overlap by overlap characters, so the window advances
// by (size - overlap) per step.
//
// Empty or whitespace-only content yields no chunks. Content of size
// characters or fewer yields a single chunk holding the whole text. The final
// chunk may be shorter than size; it is never padded.
//
// Sizes are measured in runes so multi-byte text never splits mid-character.
func Chunk(content string, size, overlap int) []string {
	if size <= 0 || strings.TrimSpace(content) == "" {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		// The window must advance by at least one character.
		overlap = size - 1
	}

	runes := []rune(content)
	var chunks []string

	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, string(runes[start:end]))

		if end >= len(runes) {
			break
		}
		start = end - overlap
	}

	return chunks
}
