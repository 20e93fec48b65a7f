// Package models defines knowledge corpus structures for Wellspring.
package models

import (
	"errors"
	"time"
)

// Knowledge store policy defaults. Signal bounds and learning rate are
// tunable; these are the neutral starting points.
const (
	// MaxChunkTextLength bounds the text of a single knowledge chunk.
	MaxChunkTextLength = 4096
	// SignalScoreNeutral is the default signal score assigned at ingestion.
	SignalScoreNeutral = 1.0
)

// Error variables for retrieval contract violations and backend failures.
var (
	// ErrInvalidArgument indicates a programming-contract violation in a
	// retrieval call (bad top-k or threshold). Fatal, never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRetrievalUnavailable indicates the embedding or search backend
	// failed. Distinct from an empty result set, which is valid.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrChunkNotFound indicates the requested chunk does not exist.
	ErrChunkNotFound = errors.New("knowledge chunk not found")
)

// KnowledgeChunk is the unit of retrievable context: a bounded span of corpus
// text with an embedding, a hierarchical source label (e.g.
// "wellness/centers/alpine"), and a feedback-adjusted signal score.
//
// Chunk text is immutable after ingestion; corpus edits create new chunks.
// Only the signal score is mutated, through the signal updater.
type KnowledgeChunk struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Source      string    `json:"source"`
	Embedding   []float32 `json:"embedding"`
	SignalScore float64   `json:"signal_score"`
	CreatedAt   time.Time `json:"created_at"`
}

// SignalOutcome is an observed outcome for content that used a chunk.
type SignalOutcome string

const (
	SignalAccepted SignalOutcome = "accepted"
	SignalRejected SignalOutcome = "rejected"
	SignalNeutral  SignalOutcome = "neutral"
)

// IsValidSignalOutcome checks if the given outcome is supported.
func IsValidSignalOutcome(o SignalOutcome) bool {
	switch o {
	case SignalAccepted, SignalRejected, SignalNeutral:
		return true
	default:
		return false
	}
}
