/*
Package rewards implements the reward catalog, the redemption ledger, and
the transactional redemption engine.

PURPOSE:
  Rewards are redeemable items (gift cards, merchandise, experiences) with a
  point price and finite stock. This package owns:
  - The mutable reward catalog (create / update / soft-retire)
  - The append-only redemption ledger
  - The redemption engine: validate eligibility, stock, expiry and
    per-person limits, then exchange points for a reward as one atomic unit
  - The single point-update operation every balance change flows through

KEY INVARIANTS:
  1. TotalRedeemed <= AvailableQuantity, always - stock is never oversold,
     even under concurrent redemption of the last unit
  2. TotalRedeemed only increases, by exactly 1 per successful redemption
  3. Redemption records are append-only and snapshot the price at
     redemption time - later price changes never rewrite history
  4. A failed redemption mutates nothing: the validation pipeline is
     read-only until every check has passed

EXAMPLE FLOW:
  1. Trainee checks in: +10 points (may raise a level-up)
  2. Trainee redeems a 75-point gift
  3. Engine validates, then atomically: appends the redemption record,
     increments the gift's TotalRedeemed, debits 75 points

SEE ALSO:
  - rules.go: The validation pipeline (pure)
  - engine.go: The transactional engine
  - store.go: Persistence interfaces
*/
package rewards

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/progression-engine/progression"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RewardID string
type RedemptionID string

// =============================================================================
// REWARD - Mutable catalog entry
// =============================================================================

type RewardStatus string

const (
	RewardActive   RewardStatus = "active"
	RewardInactive RewardStatus = "inactive"
)

// Reward is a redeemable item with a point price and finite stock.
//
// TargetedTrainees is an allow-list: when non-empty, only listed trainees
// are eligible; when empty the reward is open to all.
//
// Value is the monetary worth of one unit, carried for redemption reporting
// only - it plays no part in eligibility or pricing.
type Reward struct {
	ID                RewardID
	Title             string
	Description       string
	PointsRequired    int // positive
	AvailableQuantity int // positive; total ever issuable
	TotalRedeemed     int // non-negative, monotone
	LimitPerPerson    int // positive; defaults to 1
	ExpiresAt         *time.Time
	Status            RewardStatus
	TargetedTrainees  []progression.TraineeID
	Value             decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Remaining returns units still issuable. Never negative, even if an admin
// lowered AvailableQuantity below TotalRedeemed (see RewardPatch).
func (r *Reward) Remaining() int {
	left := r.AvailableQuantity - r.TotalRedeemed
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the reward is past its expiry at the given time.
// Expiry is evaluated live; the stored Status is never auto-flipped, so a
// reward can sit active yet perpetually fail redemption once past its date.
func (r *Reward) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Targeted reports whether the reward restricts eligibility to a list.
func (r *Reward) Targeted() bool { return len(r.TargetedTrainees) > 0 }

// TargetsTrainee reports whether the trainee passes the allow-list.
func (r *Reward) TargetsTrainee(id progression.TraineeID) bool {
	if !r.Targeted() {
		return true
	}
	for _, t := range r.TargetedTrainees {
		if t == id {
			return true
		}
	}
	return false
}

// =============================================================================
// REWARD PATCH - Partial update for the admin surface
// =============================================================================

// RewardPatch is a field-merge update. Nil fields are left untouched.
//
// Lowering AvailableQuantity below the current TotalRedeemed is allowed and
// not clamped: the stock gate then reads the reward as permanently out of
// stock, which is the administratively intended effect of shrinking stock.
type RewardPatch struct {
	Title             *string
	Description       *string
	PointsRequired    *int
	AvailableQuantity *int
	LimitPerPerson    *int
	ExpiresAt         *time.Time
	ClearExpiry       bool
	Status            *RewardStatus
	TargetedTrainees  *[]progression.TraineeID
	Value             *decimal.Decimal
}

// =============================================================================
// REDEMPTION - Append-only ledger entry
// =============================================================================

type RedemptionStatus string

const (
	RedemptionCompleted RedemptionStatus = "completed"
)

// Redemption records one successful exchange of points for a reward.
// PointsDeducted snapshots the reward's price at redemption time.
type Redemption struct {
	ID             RedemptionID
	RewardID       RewardID
	TraineeID      progression.TraineeID
	PointsDeducted int
	Status         RedemptionStatus
	RedeemedAt     time.Time
}

// =============================================================================
// POINT CHANGE - Result of the point-update operation
// =============================================================================

// PointChange is what the point-update entry point returns to its caller:
// the recorded event plus the level transition for the caller to optionally
// surface as a notification. The engine does not track "seen" state.
type PointChange struct {
	Event      progression.PointEvent
	Transition progression.Transition
}

// =============================================================================
// REWARD STATS - Admin reporting
// =============================================================================

// RewardStats summarizes a reward's redemption history.
type RewardStats struct {
	RewardID    RewardID
	Redeemed    int
	Remaining   int
	PointsSpent int
	CashValue   decimal.Decimal // Redeemed * Value
}
