/*
errors.go - Redemption error taxonomy

PURPOSE:
  Every way a redemption can be rejected, as typed errors rather than
  booleans or panics. All of these are expected, user-facing, recoverable
  conditions: the caller displays the specific message and does not retry
  automatically. There are no fatal error classes in this package.

ORDERING:
  The sentinels below mirror the validation pipeline order in rules.go.
  The pipeline short-circuits on the first failure, so a caller sees the
  earliest applicable reason.

USAGE:
  _, err := engine.Redeem(ctx, rewardID, traineeID)
  if errors.Is(err, rewards.ErrInsufficientPoints) {
      var ipe *rewards.InsufficientPointsError
      errors.As(err, &ipe) // ipe.Shortfall for the message
  }

SEE ALSO:
  - rules.go: Where these errors are produced
*/
package rewards

import (
	"errors"
	"fmt"

	"github.com/warp/progression-engine/progression"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRewardNotFound is returned when a reward identifier does not resolve.
	ErrRewardNotFound = errors.New("reward not found")

	// ErrTraineeNotFound is returned when a trainee identifier does not resolve.
	ErrTraineeNotFound = errors.New("trainee not found")

	// ErrRewardInactive is returned when the reward's administrative status
	// is not active.
	ErrRewardInactive = errors.New("reward is inactive")

	// ErrRewardExpired is returned when the current time is at or after the
	// reward's expiry.
	ErrRewardExpired = errors.New("reward has expired")

	// ErrOutOfStock is returned when the redeemed count has reached the
	// available quantity.
	ErrOutOfStock = errors.New("reward is out of stock")

	// ErrNotEligible is returned when the trainee is not on the reward's
	// restricted target list.
	ErrNotEligible = errors.New("trainee is not eligible for this reward")

	// ErrInsufficientPoints is returned when the trainee's balance is below
	// the reward's price.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrAlreadyRedeemed is returned when the per-person limit is already
	// satisfied.
	ErrAlreadyRedeemed = errors.New("per-person redemption limit reached")

	// ErrInvalidReward is returned when a create/update produces a reward
	// that violates basic field constraints.
	ErrInvalidReward = errors.New("invalid reward definition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError reports how far short the balance fell.
type InsufficientPointsError struct {
	TraineeID progression.TraineeID
	RewardID  RewardID
	Balance   int
	Required  int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: have %d, need %d (short %d)",
		e.Balance, e.Required, e.Required-e.Balance)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// Shortfall is the number of points missing.
func (e *InsufficientPointsError) Shortfall() int { return e.Required - e.Balance }

// LimitReachedError reports a per-person limit rejection.
type LimitReachedError struct {
	TraineeID progression.TraineeID
	RewardID  RewardID
	Limit     int
	Redeemed  int
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("per-person limit reached: %d of %d redemptions used", e.Redeemed, e.Limit)
}

func (e *LimitReachedError) Unwrap() error { return ErrAlreadyRedeemed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing reward or trainee.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRewardNotFound) || errors.Is(err, ErrTraineeNotFound)
}

// IsClientError reports whether the error is a clean rejection the caller
// should display, as opposed to a storage failure.
func IsClientError(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrRewardInactive) ||
		errors.Is(err, ErrRewardExpired) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrAlreadyRedeemed) ||
		errors.Is(err, ErrInvalidReward)
}
