package knowledge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/canokcuer/wellspring/internal/models"
)

func testChunk(id string) models.KnowledgeChunk {
	return models.KnowledgeChunk{
		ID:          id,
		Text:        "Cold plunges improve recovery when paired with sauna.",
		Source:      "wellness/recovery",
		Embedding:   []float32{0.1, 0.2, 0.3},
		SignalScore: models.SignalScoreNeutral,
		CreatedAt:   time.Now(),
	}
}

func TestInMemoryStoreAddAndGet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.AddChunk(ctx, testChunk("k_1")); err != nil {
		t.Fatalf("AddChunk failed: %v", err)
	}

	got, err := store.GetChunk(ctx, "k_1")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if got.Source != "wellness/recovery" || got.SignalScore != models.SignalScoreNeutral {
		t.Errorf("unexpected chunk: %+v", got)
	}
}

func TestInMemoryStoreGetMissing(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.GetChunk(context.Background(), "k_missing")
	if !errors.Is(err, models.ErrChunkNotFound) {
		t.Errorf("expected ErrChunkNotFound, got %v", err)
	}
}

func TestInMemoryStoreRejectsDuplicateID(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	if err := store.AddChunk(ctx, testChunk("k_dup")); err != nil {
		t.Fatalf("first AddChunk failed: %v", err)
	}
	if err := store.AddChunk(ctx, testChunk("k_dup")); err == nil {
		t.Error("expected error for duplicate chunk ID")
	}
}

func TestInMemoryStoreListInsertionOrder(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	ids := []string{"k_a", "k_b", "k_c"}
	for _, id := range ids {
		if err := store.AddChunk(ctx, testChunk(id)); err != nil {
			t.Fatalf("AddChunk %s failed: %v", id, err)
		}
	}

	chunks, err := store.ListChunks(ctx)
	if err != nil {
		t.Fatalf("ListChunks failed: %v", err)
	}
	if len(chunks) != len(ids) {
		t.Fatalf("expected %d chunks, got %d", len(ids), len(chunks))
	}
	for i, id := range ids {
		if chunks[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, chunks[i].ID)
		}
	}
}

func TestInMemoryStoreEmbeddingIsolation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	src := testChunk("k_iso")
	if err := store.AddChunk(ctx, src); err != nil {
		t.Fatalf("AddChunk failed: %v", err)
	}

	// Mutating the caller's slice must not reach the stored chunk.
	src.Embedding[0] = 99
	got, err := store.GetChunk(ctx, "k_iso")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if got.Embedding[0] == 99 {
		t.Error("stored embedding aliases the caller's slice")
	}
}

func TestInMemoryStoreApplySignalNoLostUpdates(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	chunk := testChunk("k_sig")
	chunk.SignalScore = 0
	if err := store.AddChunk(ctx, chunk); err != nil {
		t.Fatalf("AddChunk failed: %v", err)
	}

	// Concurrent increments: if read-modify-write is not serialized per
	// chunk, some increments get lost and the final score falls short.
	const workers = 50
	const perWorker = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := store.ApplySignal(ctx, "k_sig", func(old float64) float64 { return old + 1 }); err != nil {
					t.Errorf("ApplySignal failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := store.GetChunk(ctx, "k_sig")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if got.SignalScore != workers*perWorker {
		t.Errorf("lost updates: expected %d, got %v", workers*perWorker, got.SignalScore)
	}
}

func TestInMemoryStoreApplySignalMissingChunk(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.ApplySignal(context.Background(), "k_missing", func(old float64) float64 { return old })
	if !errors.Is(err, models.ErrChunkNotFound) {
		t.Errorf("expected ErrChunkNotFound, got %v", err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dsn := t.TempDir() + "/knowledge.db"
	store, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	chunk := testChunk("k_sql")
	if err := store.AddChunk(ctx, chunk); err != nil {
		t.Fatalf("AddChunk failed: %v", err)
	}

	got, err := store.GetChunk(ctx, "k_sql")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if got.Text != chunk.Text || got.Source != chunk.Source {
		t.Errorf("unexpected chunk: %+v", got)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != 0.2 {
		t.Errorf("embedding did not survive the round trip: %v", got.Embedding)
	}

	score, err := store.ApplySignal(ctx, "k_sql", func(old float64) float64 { return old * 2 })
	if err != nil {
		t.Fatalf("ApplySignal failed: %v", err)
	}
	if score != 2.0 {
		t.Errorf("expected score 2.0, got %v", score)
	}

	if _, err := store.GetChunk(ctx, "k_absent"); !errors.Is(err, models.ErrChunkNotFound) {
		t.Errorf("expected ErrChunkNotFound, got %v", err)
	}
}
