// Package knowledge provides the knowledge corpus: chunking, storage, and
// feedback-driven signal scoring.
package knowledge

import (
	"strings"
	"unicode/utf8"
)

// Chunking policy defaults. Target size and overlap are configuration knobs,
// not constants; these are only the fallbacks.
const (
	// DefaultChunkTargetSize is the default chunk size in characters.
	DefaultChunkTargetSize = 1000
	// DefaultChunkOverlap is the default trailing-context overlap in characters.
	DefaultChunkOverlap = 150
)

// Piece is a single chunk produced by splitting a document. Text includes the
// overlap prefix carried from the previous chunk; Overlap records its length
// in bytes so that de-overlapped concatenation reconstructs the document.
type Piece struct {
	Text    string
	Overlap int
}

// Chunk splits a document into overlapping pieces no longer than targetSize
// characters (excluding the overlap prefix). Policy, applied in order:
//
//  1. A document that fits in targetSize is emitted whole.
//  2. Otherwise the document is split on paragraph boundaries and
//     consecutive short paragraphs are merged up to targetSize.
//  3. A single paragraph exceeding targetSize is split at the nearest
//     sentence boundary at or before the limit, or hard-cut as a last
//     resort.
//  4. Each piece after the first carries `overlap` trailing characters of
//     the previous piece, prepended, so information spanning a split point
//     is not lost to either side.
//
// An empty document yields an empty sequence, not an error.
func Chunk(document string, targetSize, overlap int) []Piece {
	if document == "" {
		return nil
	}
	if targetSize < 1 {
		targetSize = DefaultChunkTargetSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		overlap = targetSize - 1
	}

	if len(document) <= targetSize {
		return []Piece{{Text: document}}
	}

	// Paragraphs retain their trailing separators so that concatenating the
	// raw (de-overlapped) pieces reconstructs the document byte for byte.
	var fragments []string
	for _, para := range strings.SplitAfter(document, "\n\n") {
		if para == "" {
			continue
		}
		fragments = append(fragments, splitOversized(para, targetSize)...)
	}

	raw := mergeFragments(fragments, targetSize)
	return applyOverlap(raw, overlap)
}

// splitOversized splits a paragraph longer than targetSize at sentence
// boundaries, falling back to a hard cut when no boundary is in range.
func splitOversized(paragraph string, targetSize int) []string {
	if len(paragraph) <= targetSize {
		return []string{paragraph}
	}

	var parts []string
	rest := paragraph
	for len(rest) > targetSize {
		cut := lastSentenceEnd(rest, targetSize)
		if cut <= 0 {
			// No sentence boundary in range: hard cut at the size limit,
			// backed off to a rune boundary.
			cut = targetSize
			for cut > 1 && !utf8.RuneStart(rest[cut]) {
				cut--
			}
		}
		parts = append(parts, rest[:cut])
		rest = rest[cut:]
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// lastSentenceEnd returns the byte offset just past the last sentence
// terminator at or before limit, absorbing one following space. Returns 0 if
// no boundary exists in range.
func lastSentenceEnd(s string, limit int) int {
	if limit > len(s) {
		limit = len(s)
	}
	for i := limit - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			end := i + 1
			if end < len(s) && end < limit && (s[end] == ' ' || s[end] == '\n') {
				end++
			}
			// A terminator at the very start is not a usable boundary.
			if end > 1 {
				return end
			}
		}
	}
	return 0
}

// mergeFragments greedily packs fragments into chunks without exceeding
// targetSize. Every fragment is at most targetSize long by construction, so
// no merged chunk exceeds the limit.
func mergeFragments(fragments []string, targetSize int) []string {
	var chunks []string
	var cur strings.Builder
	for _, frag := range fragments {
		if cur.Len() > 0 && cur.Len()+len(frag) > targetSize {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(frag)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// applyOverlap prepends trailing context from each previous chunk onto the
// next one.
func applyOverlap(raw []string, overlap int) []Piece {
	pieces := make([]Piece, 0, len(raw))
	for i, text := range raw {
		if i == 0 || overlap == 0 {
			pieces = append(pieces, Piece{Text: text})
			continue
		}
		prev := raw[i-1]
		start := len(prev) - overlap
		if start < 0 {
			start = 0
		}
		for start < len(prev) && !utf8.RuneStart(prev[start]) {
			start++
		}
		prefix := prev[start:]
		pieces = append(pieces, Piece{Text: prefix + text, Overlap: len(prefix)})
	}
	return pieces
}
