package knowledge

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/canokcuer/wellspring/internal/models"
)

func newSignalFixture(t *testing.T, startScore float64) (*Updater, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	chunk := testChunk("k_sig")
	chunk.SignalScore = startScore
	if err := store.AddChunk(context.Background(), chunk); err != nil {
		t.Fatalf("AddChunk failed: %v", err)
	}
	return NewUpdater(store, DefaultSignalConfig()), store
}

func TestUpdateAcceptedRaisesScore(t *testing.T) {
	updater, _ := newSignalFixture(t, models.SignalScoreNeutral)
	score, err := updater.Update(context.Background(), "k_sig", models.SignalAccepted)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	// 1.0 + 0.3*(1.5-1.0) = 1.15
	if math.Abs(score-1.15) > 1e-9 {
		t.Errorf("expected 1.15, got %v", score)
	}
}

func TestUpdateRejectedLowersScore(t *testing.T) {
	updater, _ := newSignalFixture(t, models.SignalScoreNeutral)
	score, err := updater.Update(context.Background(), "k_sig", models.SignalRejected)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	// 1.0 + 0.3*(0.5-1.0) = 0.85
	if math.Abs(score-0.85) > 1e-9 {
		t.Errorf("expected 0.85, got %v", score)
	}
}

func TestUpdateNeutralConverges(t *testing.T) {
	updater, _ := newSignalFixture(t, 1.8)
	ctx := context.Background()

	var score float64
	var err error
	for i := 0; i < 40; i++ {
		score, err = updater.Update(ctx, "k_sig", models.SignalNeutral)
		if err != nil {
			t.Fatalf("Update %d failed: %v", i, err)
		}
	}
	if math.Abs(score-1.0) > 1e-3 {
		t.Errorf("repeated neutral outcomes should converge to 1.0, got %v", score)
	}
}

func TestUpdateStaysWithinBounds(t *testing.T) {
	cfg := DefaultSignalConfig()
	ctx := context.Background()

	updater, store := newSignalFixture(t, cfg.UpperBound)
	for i := 0; i < 20; i++ {
		if _, err := updater.Update(ctx, "k_sig", models.SignalAccepted); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	got, _ := store.GetChunk(ctx, "k_sig")
	if got.SignalScore > cfg.UpperBound {
		t.Errorf("score %v exceeds upper bound %v", got.SignalScore, cfg.UpperBound)
	}

	updater, store = newSignalFixture(t, cfg.LowerBound)
	for i := 0; i < 20; i++ {
		if _, err := updater.Update(ctx, "k_sig", models.SignalRejected); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	got, _ = store.GetChunk(ctx, "k_sig")
	if got.SignalScore < cfg.LowerBound {
		t.Errorf("score %v below lower bound %v", got.SignalScore, cfg.LowerBound)
	}
}

func TestUpdateInvalidOutcome(t *testing.T) {
	updater, _ := newSignalFixture(t, models.SignalScoreNeutral)
	if _, err := updater.Update(context.Background(), "k_sig", models.SignalOutcome("meh")); err == nil {
		t.Error("expected error for invalid outcome")
	}
}

func TestUpdateMissingChunk(t *testing.T) {
	updater, _ := newSignalFixture(t, models.SignalScoreNeutral)
	_, err := updater.Update(context.Background(), "k_missing", models.SignalAccepted)
	if !errors.Is(err, models.ErrChunkNotFound) {
		t.Errorf("expected ErrChunkNotFound, got %v", err)
	}
}
