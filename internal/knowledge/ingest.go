// Package knowledge provides corpus ingestion: documents are chunked,
// embedded, and appended to the store.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/canokcuer/wellspring/internal/embedding"
	"github.com/canokcuer/wellspring/internal/models"
	"github.com/canokcuer/wellspring/internal/util"
)

// Ingestor splits documents into chunks, embeds them, and appends them to a
// knowledge store. Chunks start at the neutral signal score.
type Ingestor struct {
	store      Store
	embedder   embedding.Embedder
	targetSize int
	overlap    int
}

// NewIngestor creates an ingestor with the given chunking policy. Non-positive
// sizes fall back to the package defaults.
func NewIngestor(store Store, embedder embedding.Embedder, targetSize, overlap int) *Ingestor {
	if targetSize < 1 {
		targetSize = DefaultChunkTargetSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	return &Ingestor{store: store, embedder: embedder, targetSize: targetSize, overlap: overlap}
}

// Ingest chunks and embeds a single document, appending each piece to the
// store under the given source path. Returns the IDs of the chunks created.
func (ing *Ingestor) Ingest(ctx context.Context, document, source string) ([]string, error) {
	pieces := Chunk(document, ing.targetSize, ing.overlap)
	if len(pieces) == 0 {
		slog.Debug("Ingestor skipping empty document", "source", source)
		return nil, nil
	}

	ids := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		vec, err := ing.embedder.EncodeDocument(ctx, piece.Text)
		if err != nil {
			slog.Error("Ingestor embedding failed", "error", err, "source", source, "piece", i)
			return ids, fmt.Errorf("failed to embed piece %d of %s: %w", i, source, err)
		}

		chunk := models.KnowledgeChunk{
			ID:          util.GenerateChunkID(),
			Text:        piece.Text,
			Source:      source,
			Embedding:   vec,
			SignalScore: models.SignalScoreNeutral,
			CreatedAt:   time.Now(),
		}
		if err := ing.store.AddChunk(ctx, chunk); err != nil {
			slog.Error("Ingestor store append failed", "error", err, "source", source, "piece", i)
			return ids, fmt.Errorf("failed to store piece %d of %s: %w", i, source, err)
		}
		ids = append(ids, chunk.ID)
	}

	slog.Info("Ingestor document ingested", "source", source, "chunks", len(ids))
	return ids, nil
}

// IngestDirectory walks a directory tree and ingests every .txt and .md file,
// using the path relative to root as the chunk source. Used for the startup
// corpus bulk load.
func (ing *Ingestor) IngestDirectory(ctx context.Context, root string) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		source := strings.TrimSuffix(filepath.ToSlash(rel), ext)

		ids, err := ing.Ingest(ctx, string(data), source)
		if err != nil {
			return err
		}
		total += len(ids)
		return nil
	})
	if err != nil {
		slog.Error("Ingestor directory walk failed", "error", err, "root", root)
		return total, fmt.Errorf("failed to ingest directory %s: %w", root, err)
	}
	slog.Info("Ingestor directory ingested", "root", root, "chunks", total)
	return total, nil
}
