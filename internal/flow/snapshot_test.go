package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/canokcuer/wellspring/internal/models"
)

func TestSnapshotUnknownConversation(t *testing.T) {
	f := newFixture(completeBriefJSON)

	_, err := f.orch.Snapshot(context.Background(), "c_never_seen")
	if !errors.Is(err, models.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSnapshotReportsProgress(t *testing.T) {
	f := newFixture(completeBriefJSON)
	driveToFeedback(t, f, "c_snap")

	snapshot, err := f.orch.Snapshot(context.Background(), "c_snap")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.State != models.StateAwaitingFeedback {
		t.Errorf("expected AWAITING_FEEDBACK, got %s", snapshot.State)
	}
	if snapshot.Iteration != 1 {
		t.Errorf("expected iteration 1, got %d", snapshot.Iteration)
	}
	if snapshot.Draft == nil {
		t.Error("expected the surfaced draft in the snapshot")
	}
	if len(snapshot.MissingFields) != 0 {
		t.Errorf("complete brief should report no missing fields, got %v", snapshot.MissingFields)
	}
}

func TestSnapshotDoesNotAdvanceState(t *testing.T) {
	f := newFixture(completeBriefJSON)
	driveToFeedback(t, f, "c_snap2")

	first, err := f.orch.Snapshot(context.Background(), "c_snap2")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	second, err := f.orch.Snapshot(context.Background(), "c_snap2")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if first.State != second.State || first.Iteration != second.Iteration {
		t.Errorf("snapshots diverged: %+v vs %+v", first, second)
	}
}
