// Package chunker splits cleaned document text into overlapping,
// bounded-size segments with stable indices.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/letha11/backend-chatbot/internal/models"
)

// Chunker produces character-based chunks with a configurable overlap.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a Chunker. Size must be positive; overlap may be any
// non-negative value, including one at or above the chunk size, since
// forward progress is still guaranteed.
func New(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split chunks the text. Boundaries snap back to the nearest preceding space
// so words are not cut, and the next chunk starts overlap characters before
// the previous end. Empty or whitespace-only input yields no chunks.
func (c *Chunker) Split(text string) []models.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []models.Chunk
	start := 0
	index := 0

	for start < len(text) {
		end := start + c.chunkSize
		if end < len(text) {
			// Snap back to a word boundary when one exists inside the chunk.
			if lastSpace := strings.LastIndex(text[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			} else if end = runeStart(text, end); end <= start {
				// A single rune wider than the chunk size is taken whole.
				_, width := utf8.DecodeRuneInString(text[start:])
				end = start + width
			}
		} else {
			end = len(text)
		}

		if chunkText := strings.TrimSpace(text[start:end]); chunkText != "" {
			chunks = append(chunks, models.Chunk{
				Text:      chunkText,
				Index:     index,
				StartChar: start,
				EndChar:   end,
			})
			index++
		}

		if end >= len(text) {
			break
		}

		next := runeStart(text, end-c.chunkOverlap)
		// Never regress to or before the previous start; snapping forward to
		// end guarantees termination even when overlap >= chunk size.
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// runeStart walks a byte offset back to the start of the rune containing it,
// so slicing at the offset never splits a multi-byte character.
func runeStart(text string, offset int) int {
	if offset < 0 {
		return 0
	}
	for offset > 0 && offset < len(text) && !utf8.RuneStart(text[offset]) {
		offset--
	}
	return offset
}

// ChunkSize returns the configured chunk size in characters.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// ChunkOverlap returns the configured overlap in characters.
func (c *Chunker) ChunkOverlap() int { return c.chunkOverlap }
