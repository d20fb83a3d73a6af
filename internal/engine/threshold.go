// Package engine implements the approval-matrix core: threshold
// resolution, stage policy evaluation, workflow instantiation and the
// approval router. Everything here is pure in-memory computation — no
// I/O, no clocks beyond the timestamps callers pass in via now().
package engine

import (
	"github.com/diligince-ai/be-procurement-approvals/internal/apperrors"
	"github.com/diligince-ai/be-procurement-approvals/internal/domain"
)

// ErrNoMatchingThreshold is returned when no active threshold range
// contains the amount. Submission must be blocked on it: silently routing
// an unmatched amount through the cheapest chain is how high-value
// requirements escape board review.
var ErrNoMatchingThreshold = apperrors.New(apperrors.ErrCodeValidation,
	"no approval threshold matches the requirement amount")

// ResolveThreshold returns the first active threshold whose inclusive
// [MinAmount, MaxAmount] range contains amount. A nil MaxAmount is
// unbounded above. Thresholds are scanned in configuration order.
func ResolveThreshold(thresholds []domain.Threshold, amount int64) (*domain.Threshold, error) {
	for i := range thresholds {
		t := &thresholds[i]
		if !t.IsActive {
			continue
		}
		if amount < t.MinAmount {
			continue
		}
		if t.MaxAmount != nil && amount > *t.MaxAmount {
			continue
		}
		return t, nil
	}
	return nil, ErrNoMatchingThreshold
}

// ResolveThresholdOrDefault is the legacy resolution policy: on a
// configuration gap it falls back to the first active threshold instead
// of failing. Kept for diagnostics and operator tooling; the submission
// path uses ResolveThreshold.
func ResolveThresholdOrDefault(thresholds []domain.Threshold, amount int64) *domain.Threshold {
	if t, err := ResolveThreshold(thresholds, amount); err == nil {
		return t
	}
	for i := range thresholds {
		if thresholds[i].IsActive {
			return &thresholds[i]
		}
	}
	return nil
}
