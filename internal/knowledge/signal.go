// Package knowledge provides feedback-driven signal score updates.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/canokcuer/wellspring/internal/models"
)

// SignalConfig configures the signal score update policy. The exponential
// moving average pulls a chunk's score toward the outcome target:
//
//	new = clamp(old + LearningRate * (target - old), LowerBound, UpperBound)
//
// Targets must satisfy TargetAccepted > TargetNeutral > TargetRejected so
// that acceptance strictly outranks neutrality outranks rejection.
type SignalConfig struct {
	LearningRate   float64
	TargetAccepted float64
	TargetNeutral  float64
	TargetRejected float64
	LowerBound     float64
	UpperBound     float64
}

// DefaultSignalConfig returns the default signal update policy.
func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		LearningRate:   0.3,
		TargetAccepted: 1.5,
		TargetNeutral:  1.0,
		TargetRejected: 0.5,
		LowerBound:     0.1,
		UpperBound:     2.0,
	}
}

// Updater adjusts chunk signal scores from observed outcomes. It is safe for
// concurrent use; per-chunk serialization is delegated to the store's
// ApplySignal.
type Updater struct {
	store Store
	cfg   SignalConfig
}

// NewUpdater creates a signal updater over the given store.
func NewUpdater(store Store, cfg SignalConfig) *Updater {
	return &Updater{store: store, cfg: cfg}
}

// Update applies one observed outcome to a chunk's signal score and returns
// the new score.
func (u *Updater) Update(ctx context.Context, chunkID string, outcome models.SignalOutcome) (float64, error) {
	if !models.IsValidSignalOutcome(outcome) {
		return 0, fmt.Errorf("invalid signal outcome %q", outcome)
	}

	target := u.target(outcome)
	newScore, err := u.store.ApplySignal(ctx, chunkID, func(old float64) float64 {
		return clamp(old+u.cfg.LearningRate*(target-old), u.cfg.LowerBound, u.cfg.UpperBound)
	})
	if err != nil {
		slog.Error("SignalUpdater Update failed", "error", err, "chunkID", chunkID, "outcome", outcome)
		return 0, fmt.Errorf("failed to update signal for chunk %s: %w", chunkID, err)
	}

	slog.Debug("SignalUpdater Update succeeded", "chunkID", chunkID, "outcome", outcome, "newScore", newScore)
	return newScore, nil
}

func (u *Updater) target(outcome models.SignalOutcome) float64 {
	switch outcome {
	case models.SignalAccepted:
		return u.cfg.TargetAccepted
	case models.SignalRejected:
		return u.cfg.TargetRejected
	default:
		return u.cfg.TargetNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
