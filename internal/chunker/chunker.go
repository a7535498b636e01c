// Package chunker splits document text into fixed-size overlapping windows.
// Sizes and offsets count runes so a window never splits a UTF-8 sequence.
package chunker

import (
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

func Validate(chunkSize, overlap int) error {
	if overlap < 0 {
		return appErr.Invalidf("chunk overlap must be >= 0, got %d", overlap)
	}
	if chunkSize <= overlap {
		return appErr.Invalidf("chunk size (%d) must be greater than overlap (%d)", chunkSize, overlap)
	}
	return nil
}

// Chunk emits text[off:off+chunkSize] for off = 0, step, 2*step, ... with
// step = chunkSize-overlap, stopping after the window that reaches the end
// of the text. Only the last window may be shorter than chunkSize.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	step := chunkSize - overlap
	chunks := make([]string, 0, Count(len(runes), chunkSize, overlap))
	for off := 0; off < len(runes); off += step {
		end := off + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[off:]))
			break
		}
		chunks = append(chunks, string(runes[off:end]))
	}
	return chunks, nil
}

// Count returns how many windows Chunk produces for a text of n runes.
func Count(n, chunkSize, overlap int) int {
	step := chunkSize - overlap
	if n <= 0 || step <= 0 {
		return 0
	}
	if n <= chunkSize {
		return 1
	}
	return 1 + (n-chunkSize+step-1)/step
}
