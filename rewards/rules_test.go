package rewards_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/progression-engine/progression"
	"github.com/warp/progression-engine/rewards"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func activeReward() *rewards.Reward {
	return &rewards.Reward{
		ID:                "gift-card",
		Title:             "Gift Card",
		PointsRequired:    75,
		AvailableQuantity: 10,
		TotalRedeemed:     0,
		LimitPerPerson:    1,
		Status:            rewards.RewardActive,
	}
}

// =============================================================================
// GATE TESTS - one per rejection reason
// =============================================================================

func TestRedeemable_AllGatesPass(t *testing.T) {
	err := rewards.Redeemable(activeReward(), "trainee-1", 100, 0, testNow)
	assert.NoError(t, err)
}

func TestRedeemable_Inactive(t *testing.T) {
	r := activeReward()
	r.Status = rewards.RewardInactive

	err := rewards.Redeemable(r, "trainee-1", 100, 0, testNow)
	assert.ErrorIs(t, err, rewards.ErrRewardInactive)
}

func TestRedeemable_Expired(t *testing.T) {
	r := activeReward()
	past := testNow.Add(-time.Hour)
	r.ExpiresAt = &past

	err := rewards.Redeemable(r, "trainee-1", 100, 0, testNow)
	assert.ErrorIs(t, err, rewards.ErrRewardExpired)
}

func TestRedeemable_ExpiryBoundary(t *testing.T) {
	// Expiry is inclusive: at the exact expiry instant the reward is gone.
	r := activeReward()
	r.ExpiresAt = &testNow

	err := rewards.Redeemable(r, "trainee-1", 100, 0, testNow)
	assert.ErrorIs(t, err, rewards.ErrRewardExpired)

	// One tick before expiry it is still redeemable
	justBefore := testNow.Add(time.Nanosecond)
	r.ExpiresAt = &justBefore
	err = rewards.Redeemable(r, "trainee-1", 100, 0, testNow)
	assert.NoError(t, err)
}

func TestRedeemable_NoExpirySet(t *testing.T) {
	// A reward without an expiry never expires.
	r := activeReward()
	r.ExpiresAt = nil

	err := rewards.Redeemable(r, "trainee-1", 100, 0, testNow.AddDate(100, 0, 0))
	assert.NoError(t, err)
}

func TestRedeemable_OutOfStock(t *testing.T) {
	r := activeReward()
	r.TotalRedeemed = r.AvailableQuantity

	err := rewards.Redeemable(r, "trainee-1", 100, 0, testNow)
	assert.ErrorIs(t, err, rewards.ErrOutOfStock)
}

func TestRedeemable_QuantityLoweredBelowRedeemed(t *testing.T) {
	// An admin shrank stock below the redeemed count; the gate reads that
	// as permanently out of stock.
	r := activeReward()
	r.AvailableQuantity = 3
	r.TotalRedeemed = 5

	err := rewards.Redeemable(r, "trainee-1", 100, 0, testNow)
	assert.ErrorIs(t, err, rewards.ErrOutOfStock)
	assert.Equal(t, 0, r.Remaining())
}

func TestRedeemable_NotOnTargetList(t *testing.T) {
	r := activeReward()
	r.TargetedTrainees = []progression.TraineeID{"trainee-2", "trainee-3"}

	err := rewards.Redeemable(r, "trainee-1", 100, 0, testNow)
	assert.ErrorIs(t, err, rewards.ErrNotEligible)

	err = rewards.Redeemable(r, "trainee-2", 100, 0, testNow)
	assert.NoError(t, err)
}

func TestRedeemable_EmptyTargetListIsOpenToAll(t *testing.T) {
	r := activeReward()
	r.TargetedTrainees = nil

	err := rewards.Redeemable(r, "anyone", 100, 0, testNow)
	assert.NoError(t, err)
}

func TestRedeemable_InsufficientPoints(t *testing.T) {
	err := rewards.Redeemable(activeReward(), "trainee-1", 50, 0, testNow)
	require.ErrorIs(t, err, rewards.ErrInsufficientPoints)

	var ipe *rewards.InsufficientPointsError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, 50, ipe.Balance)
	assert.Equal(t, 75, ipe.Required)
	assert.Equal(t, 25, ipe.Shortfall())
}

func TestRedeemable_ExactBalance(t *testing.T) {
	// Balance exactly equal to the price passes.
	err := rewards.Redeemable(activeReward(), "trainee-1", 75, 0, testNow)
	assert.NoError(t, err)
}

func TestRedeemable_PerPersonLimit(t *testing.T) {
	r := activeReward()
	r.LimitPerPerson = 2

	assert.NoError(t, rewards.Redeemable(r, "trainee-1", 100, 0, testNow))
	assert.NoError(t, rewards.Redeemable(r, "trainee-1", 100, 1, testNow))

	err := rewards.Redeemable(r, "trainee-1", 100, 2, testNow)
	require.ErrorIs(t, err, rewards.ErrAlreadyRedeemed)

	var lre *rewards.LimitReachedError
	require.ErrorAs(t, err, &lre)
	assert.Equal(t, 2, lre.Limit)
	assert.Equal(t, 2, lre.Redeemed)
}

func TestRedeemable_GateOrder(t *testing.T) {
	// GIVEN: A reward failing several gates at once
	// THEN: The earliest gate in the pipeline wins
	r := activeReward()
	r.Status = rewards.RewardInactive
	r.TotalRedeemed = r.AvailableQuantity
	past := testNow.Add(-time.Hour)
	r.ExpiresAt = &past

	err := rewards.Redeemable(r, "trainee-1", 0, 99, testNow)
	assert.ErrorIs(t, err, rewards.ErrRewardInactive)

	r.Status = rewards.RewardActive
	err = rewards.Redeemable(r, "trainee-1", 0, 99, testNow)
	assert.ErrorIs(t, err, rewards.ErrRewardExpired)

	r.ExpiresAt = nil
	err = rewards.Redeemable(r, "trainee-1", 0, 99, testNow)
	assert.ErrorIs(t, err, rewards.ErrOutOfStock)

	r.TotalRedeemed = 0
	err = rewards.Redeemable(r, "trainee-1", 0, 99, testNow)
	assert.ErrorIs(t, err, rewards.ErrInsufficientPoints)

	err = rewards.Redeemable(r, "trainee-1", 1000, 99, testNow)
	assert.ErrorIs(t, err, rewards.ErrAlreadyRedeemed)
}

// =============================================================================
// FIELD VALIDATION TESTS
// =============================================================================

func TestValidateNew_Valid(t *testing.T) {
	assert.NoError(t, rewards.ValidateNew(activeReward()))
}

func TestValidateNew_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*rewards.Reward)
	}{
		{"missing title", func(r *rewards.Reward) { r.Title = "" }},
		{"zero price", func(r *rewards.Reward) { r.PointsRequired = 0 }},
		{"negative price", func(r *rewards.Reward) { r.PointsRequired = -5 }},
		{"zero quantity", func(r *rewards.Reward) { r.AvailableQuantity = 0 }},
		{"negative limit", func(r *rewards.Reward) { r.LimitPerPerson = -1 }},
		{"negative value", func(r *rewards.Reward) { r.Value = decimal.NewFromInt(-10) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := activeReward()
			tt.mutate(r)
			err := rewards.ValidateNew(r)
			assert.ErrorIs(t, err, rewards.ErrInvalidReward)
		})
	}
}

// =============================================================================
// ERROR HELPER TESTS
// =============================================================================

func TestIsClientError(t *testing.T) {
	assert.True(t, rewards.IsClientError(rewards.ErrOutOfStock))
	assert.True(t, rewards.IsClientError(&rewards.InsufficientPointsError{Balance: 1, Required: 2}))
	assert.True(t, rewards.IsClientError(rewards.ErrTraineeNotFound))
	assert.False(t, rewards.IsClientError(errors.New("disk on fire")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, rewards.IsNotFound(rewards.ErrRewardNotFound))
	assert.True(t, rewards.IsNotFound(rewards.ErrTraineeNotFound))
	assert.False(t, rewards.IsNotFound(rewards.ErrOutOfStock))
}
