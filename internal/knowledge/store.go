// Package knowledge provides storage backends for the knowledge corpus.
//
// The store is shared across conversations: read concurrently without
// restriction, mutated only through per-chunk signal updates.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/canokcuer/wellspring/internal/models"
)

// Store provides access to the append-only knowledge corpus. Implementations
// must be safe for concurrent use; ApplySignal must serialize updates to the
// same chunk so concurrent reinforcement cannot lose an update.
type Store interface {
	// AddChunk appends a chunk to the corpus.
	AddChunk(ctx context.Context, chunk models.KnowledgeChunk) error

	// GetChunk retrieves a chunk by ID. Returns models.ErrChunkNotFound if
	// the chunk does not exist.
	GetChunk(ctx context.Context, id string) (*models.KnowledgeChunk, error)

	// ListChunks returns a snapshot of every chunk in the corpus.
	ListChunks(ctx context.Context) ([]models.KnowledgeChunk, error)

	// ApplySignal atomically applies a read-modify-write to a chunk's signal
	// score and returns the new score. The apply function must be pure.
	ApplySignal(ctx context.Context, id string, apply func(old float64) float64) (float64, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for persistent knowledge stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for knowledge store constructors.
type Option func(*Opts)

// WithDSN sets the database DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// chunkEntry pairs a chunk with its own mutex so signal updates to different
// chunks never contend with each other.
type chunkEntry struct {
	mu    sync.Mutex
	chunk models.KnowledgeChunk
}

// InMemoryStore is a thread-safe in-memory knowledge store. It backs tests
// and deployments without a database DSN.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]*chunkEntry
	order  []string // insertion order, for stable listing
}

// NewInMemoryStore creates an empty in-memory knowledge store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chunks: make(map[string]*chunkEntry)}
}

// AddChunk appends a chunk to the corpus.
func (s *InMemoryStore) AddChunk(ctx context.Context, chunk models.KnowledgeChunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.chunks[chunk.ID]; exists {
		return fmt.Errorf("chunk %s already exists", chunk.ID)
	}
	chunk.Embedding = append([]float32(nil), chunk.Embedding...)
	s.chunks[chunk.ID] = &chunkEntry{chunk: chunk}
	s.order = append(s.order, chunk.ID)
	slog.Debug("InMemoryStore AddChunk succeeded", "id", chunk.ID, "source", chunk.Source)
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *InMemoryStore) GetChunk(ctx context.Context, id string) (*models.KnowledgeChunk, error) {
	s.mu.RLock()
	entry, ok := s.chunks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chunk %s: %w", id, models.ErrChunkNotFound)
	}

	entry.mu.Lock()
	cp := entry.chunk
	entry.mu.Unlock()
	cp.Embedding = append([]float32(nil), cp.Embedding...)
	return &cp, nil
}

// ListChunks returns a snapshot of every chunk in insertion order.
func (s *InMemoryStore) ListChunks(ctx context.Context) ([]models.KnowledgeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.KnowledgeChunk, 0, len(s.order))
	for _, id := range s.order {
		entry := s.chunks[id]
		entry.mu.Lock()
		cp := entry.chunk
		entry.mu.Unlock()
		out = append(out, cp)
	}
	return out, nil
}

// ApplySignal atomically applies a read-modify-write to a chunk's signal
// score. Updates to different chunks proceed in parallel; updates to the
// same chunk are serialized by the per-chunk mutex.
func (s *InMemoryStore) ApplySignal(ctx context.Context, id string, apply func(old float64) float64) (float64, error) {
	s.mu.RLock()
	entry, ok := s.chunks[id]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("chunk %s: %w", id, models.ErrChunkNotFound)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.chunk.SignalScore = apply(entry.chunk.SignalScore)
	return entry.chunk.SignalScore, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
