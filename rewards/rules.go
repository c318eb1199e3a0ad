/*
rules.go - The redemption validation pipeline (pure)

PURPOSE:
  One function, Redeemable, encodes every gate a redemption must pass, in a
  fixed order, short-circuiting on the first failure. The engine runs it
  before committing a redemption and the listing query runs the exact same
  function to filter the catalog, so what the UI offers and what the engine
  accepts can never drift apart. Tests pin this equivalence.

PIPELINE ORDER (each failure maps to a distinct error):
  1. Status active         -> ErrRewardInactive
  2. Not expired (live)    -> ErrRewardExpired
  3. Stock remaining       -> ErrOutOfStock
  4. On the allow-list     -> ErrNotEligible
  5. Balance >= price      -> ErrInsufficientPoints
  6. Under per-person cap  -> ErrAlreadyRedeemed

  Existence checks (reward/trainee resolve) live in the engine: the pipeline
  takes already-resolved values.

PER-PERSON LIMIT:
  The limit is enforced by counting prior redemptions for the
  (reward, trainee) pair and rejecting at count >= LimitPerPerson. The
  system this replaces only enforced the limit when it was exactly 1;
  counting generalizes that to N>1, which was the evident intent.

SIDE EFFECTS:
  None. Redeemable reads its arguments and returns an error or nil.
*/
package rewards

import (
	"fmt"
	"time"

	"github.com/warp/progression-engine/progression"
)

// Redeemable checks whether the trainee could redeem the reward right now,
// given their balance and how many times they have redeemed it before.
// Returns nil when every gate passes.
func Redeemable(r *Reward, traineeID progression.TraineeID, balance, priorCount int, now time.Time) error {
	if r.Status != RewardActive {
		return ErrRewardInactive
	}
	if r.Expired(now) {
		return ErrRewardExpired
	}
	if r.TotalRedeemed >= r.AvailableQuantity {
		return ErrOutOfStock
	}
	if !r.TargetsTrainee(traineeID) {
		return ErrNotEligible
	}
	if balance < r.PointsRequired {
		return &InsufficientPointsError{
			TraineeID: traineeID,
			RewardID:  r.ID,
			Balance:   balance,
			Required:  r.PointsRequired,
		}
	}
	if priorCount >= r.LimitPerPerson {
		return &LimitReachedError{
			TraineeID: traineeID,
			RewardID:  r.ID,
			Limit:     r.LimitPerPerson,
			Redeemed:  priorCount,
		}
	}
	return nil
}

// =============================================================================
// ADMIN-SIDE FIELD VALIDATION
// =============================================================================

// ValidateNew checks field constraints for a reward about to be created.
func ValidateNew(r *Reward) error {
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidReward)
	}
	if r.PointsRequired <= 0 {
		return fmt.Errorf("%w: points required must be positive", ErrInvalidReward)
	}
	if r.AvailableQuantity <= 0 {
		return fmt.Errorf("%w: available quantity must be positive", ErrInvalidReward)
	}
	if r.LimitPerPerson < 0 {
		return fmt.Errorf("%w: limit per person cannot be negative", ErrInvalidReward)
	}
	if r.Value.IsNegative() {
		return fmt.Errorf("%w: value cannot be negative", ErrInvalidReward)
	}
	return nil
}

// merge applies a patch to a reward in place. Timestamps are the caller's
// responsibility.
func merge(r *Reward, p RewardPatch) error {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.PointsRequired != nil {
		if *p.PointsRequired <= 0 {
			return fmt.Errorf("%w: points required must be positive", ErrInvalidReward)
		}
		r.PointsRequired = *p.PointsRequired
	}
	if p.AvailableQuantity != nil {
		if *p.AvailableQuantity <= 0 {
			return fmt.Errorf("%w: available quantity must be positive", ErrInvalidReward)
		}
		// Deliberately no retroactive clamp against TotalRedeemed: a
		// quantity below the redeemed count reads as out of stock.
		r.AvailableQuantity = *p.AvailableQuantity
	}
	if p.LimitPerPerson != nil {
		if *p.LimitPerPerson <= 0 {
			return fmt.Errorf("%w: limit per person must be positive", ErrInvalidReward)
		}
		r.LimitPerPerson = *p.LimitPerPerson
	}
	if p.ClearExpiry {
		r.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		r.ExpiresAt = &t
	}
	if p.Status != nil {
		if *p.Status != RewardActive && *p.Status != RewardInactive {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidReward, *p.Status)
		}
		r.Status = *p.Status
	}
	if p.TargetedTrainees != nil {
		r.TargetedTrainees = append([]progression.TraineeID(nil), (*p.TargetedTrainees)...)
	}
	if p.Value != nil {
		if p.Value.IsNegative() {
			return fmt.Errorf("%w: value cannot be negative", ErrInvalidReward)
		}
		r.Value = *p.Value
	}
	return nil
}
