package rewards_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/progression-engine/progression"
	"github.com/warp/progression-engine/rewards"
	"github.com/warp/progression-engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*rewards.Engine, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	engine := rewards.NewEngine(st, progression.DefaultCatalog())
	engine.Now = func() time.Time { return testNow }
	return engine, st
}

// registerWithPoints creates a trainee and funds them through the point
// operation, the only write path there is.
func registerWithPoints(t *testing.T, engine *rewards.Engine, id string, points int) {
	t.Helper()
	ctx := context.Background()
	tr := &progression.Trainee{ID: progression.TraineeID(id), Name: id}
	_, err := engine.RegisterTrainee(ctx, tr, 0)
	require.NoError(t, err)
	if points > 0 {
		_, err = engine.ApplyPoints(ctx, tr.ID, points, progression.SourceAdjustment, "test funding")
		require.NoError(t, err)
	}
}

func createReward(t *testing.T, engine *rewards.Engine, r *rewards.Reward) {
	t.Helper()
	require.NoError(t, engine.CreateReward(context.Background(), r))
}

// =============================================================================
// POINT-UPDATE TESTS
// =============================================================================

func TestApplyPoints_LevelUpScenario(t *testing.T) {
	// GIVEN: A trainee at 90 points (amateur)
	// WHEN: A check-in awards 10 points
	// THEN: The trainee reaches 100 and the change reports a level-up
	engine, st := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 90)

	change, err := engine.ApplyPoints(ctx, "alex", 10, progression.SourceCheckIn, "morning session")
	require.NoError(t, err)

	assert.True(t, change.Transition.LeveledUp)
	assert.Equal(t, progression.LevelID("amateur"), change.Transition.OldLevel.ID)
	assert.Equal(t, progression.LevelID("beginner"), change.Transition.NewLevel.ID)
	assert.Equal(t, 10, change.Transition.PointsGained)

	tr, err := st.GetTrainee(ctx, "alex")
	require.NoError(t, err)
	assert.Equal(t, 100, tr.Points)
}

func TestApplyPoints_UnknownTrainee(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.ApplyPoints(context.Background(), "ghost", 10, progression.SourceCheckIn, "")
	assert.ErrorIs(t, err, rewards.ErrTraineeNotFound)
}

func TestApplyPoints_PenaltyClampsAtZero(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 30)

	change, err := engine.ApplyPoints(ctx, "alex", -100, progression.SourcePenalty, "missed sessions")
	require.NoError(t, err)
	assert.Equal(t, 0, change.Event.NewPoints)
	assert.False(t, change.Transition.LeveledUp)

	tr, err := st.GetTrainee(ctx, "alex")
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Points)
}

func TestSetPoints_AbsoluteAdjustment(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 40)

	change, err := engine.SetPoints(ctx, "alex", 250, "data correction")
	require.NoError(t, err)
	assert.Equal(t, 250, change.Event.NewPoints)
	assert.Equal(t, 210, change.Event.Delta)
	assert.True(t, change.Transition.LeveledUp, "40 -> 250 crosses two boundaries")

	tr, err := st.GetTrainee(ctx, "alex")
	require.NoError(t, err)
	assert.Equal(t, 250, tr.Points)
}

func TestApplyPoints_EveryChangeIsOnTheLedger(t *testing.T) {
	// Each write appends exactly one event with contiguous old/new balances.
	engine, st := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 0)

	deltas := []int{10, 25, -5, 100}
	for _, d := range deltas {
		_, err := engine.ApplyPoints(ctx, "alex", d, progression.SourceAdjustment, "")
		require.NoError(t, err)
	}

	events, err := st.PointEvents(ctx, "alex")
	require.NoError(t, err)
	require.Len(t, events, len(deltas))

	balance := 0
	for i, ev := range events {
		assert.Equal(t, balance, ev.OldPoints, "event %d", i)
		balance = ev.NewPoints
	}
	assert.Equal(t, 130, balance)
}

// =============================================================================
// REGISTRATION TESTS
// =============================================================================

func TestRegisterTrainee_WelcomeBonus(t *testing.T) {
	// GIVEN: A welcome bonus of 10
	// WHEN: A trainee registers
	// THEN: They start at 10 points with a registration event on the ledger
	engine, st := newTestEngine(t)
	ctx := context.Background()

	tr := &progression.Trainee{ID: "nina", Name: "Nina"}
	change, err := engine.RegisterTrainee(ctx, tr, 10)
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Equal(t, 10, tr.Points)
	assert.Equal(t, progression.SourceRegistration, change.Event.Source)

	events, err := st.PointEvents(ctx, "nina")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 0, events[0].OldPoints)
	assert.Equal(t, 10, events[0].NewPoints)
}

func TestRegisterTrainee_NoBonus(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	tr := &progression.Trainee{ID: "nina", Name: "Nina"}
	change, err := engine.RegisterTrainee(ctx, tr, 0)
	require.NoError(t, err)
	assert.Nil(t, change)
	assert.Equal(t, 0, tr.Points)

	events, err := st.PointEvents(ctx, "nina")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRegisterTrainee_GeneratesID(t *testing.T) {
	engine, _ := newTestEngine(t)

	tr := &progression.Trainee{Name: "Anonymous"}
	_, err := engine.RegisterTrainee(context.Background(), tr, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
}

// =============================================================================
// REWARD ADMINISTRATION TESTS
// =============================================================================

func TestCreateReward_DefaultsAndValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	r := &rewards.Reward{Title: "Water Bottle", PointsRequired: 50, AvailableQuantity: 20}
	require.NoError(t, engine.CreateReward(ctx, r))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 1, r.LimitPerPerson, "limit defaults to 1")
	assert.Equal(t, rewards.RewardActive, r.Status)
	assert.Equal(t, 0, r.TotalRedeemed)

	bad := &rewards.Reward{Title: "", PointsRequired: 50, AvailableQuantity: 20}
	assert.ErrorIs(t, engine.CreateReward(ctx, bad), rewards.ErrInvalidReward)
}

func TestUpdateReward_PatchMerge(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	r := &rewards.Reward{ID: "mug", Title: "Mug", PointsRequired: 50, AvailableQuantity: 20}
	createReward(t, engine, r)

	newPrice := 80
	newTitle := "Branded Mug"
	updated, err := engine.UpdateReward(ctx, "mug", rewards.RewardPatch{
		Title:          &newTitle,
		PointsRequired: &newPrice,
	})
	require.NoError(t, err)
	assert.Equal(t, "Branded Mug", updated.Title)
	assert.Equal(t, 80, updated.PointsRequired)
	assert.Equal(t, 20, updated.AvailableQuantity, "untouched fields survive")
}

func TestUpdateReward_UnknownReward(t *testing.T) {
	engine, _ := newTestEngine(t)

	title := "x"
	_, err := engine.UpdateReward(context.Background(), "missing", rewards.RewardPatch{Title: &title})
	assert.ErrorIs(t, err, rewards.ErrRewardNotFound)
}

func TestRetireReward_SoftRetire(t *testing.T) {
	// GIVEN: An active reward with redemption history
	// WHEN: It is retired
	// THEN: Status flips to inactive, history survives, redemption rejects
	engine, st := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 200)

	r := &rewards.Reward{ID: "mug", Title: "Mug", PointsRequired: 50, AvailableQuantity: 20}
	createReward(t, engine, r)
	_, err := engine.Redeem(ctx, "mug", "alex")
	require.NoError(t, err)

	retired, err := engine.RetireReward(ctx, "mug")
	require.NoError(t, err)
	assert.Equal(t, rewards.RewardInactive, retired.Status)

	_, err = engine.Redeem(ctx, "mug", "alex")
	assert.ErrorIs(t, err, rewards.ErrRewardInactive)

	recs, err := st.RedemptionsByReward(ctx, "mug")
	require.NoError(t, err)
	assert.Len(t, recs, 1, "history survives retirement")
}

// =============================================================================
// REDEMPTION TESTS
// =============================================================================

func TestRedeem_HappyPath(t *testing.T) {
	// GIVEN: A trainee with 200 points and a 75-point reward
	// WHEN: They redeem it
	// THEN: Record appended, stock bumped, balance debited - atomically
	engine, st := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 200)

	r := &rewards.Reward{ID: "gift", Title: "Gift Card", PointsRequired: 75, AvailableQuantity: 10}
	createReward(t, engine, r)

	rec, err := engine.Redeem(ctx, "gift", "alex")
	require.NoError(t, err)
	assert.Equal(t, 75, rec.PointsDeducted)
	assert.Equal(t, rewards.RedemptionCompleted, rec.Status)

	tr, err := st.GetTrainee(ctx, "alex")
	require.NoError(t, err)
	assert.Equal(t, 125, tr.Points)

	got, err := st.GetReward(ctx, "gift")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalRedeemed)

	events, err := st.PointEvents(ctx, "alex")
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, progression.SourceRedemption, last.Source)
	assert.Equal(t, -75, last.Delta)
	assert.False(t, last.LeveledUp, "a debit never raises a level-up")
}

func TestRedeem_PriceSnapshotSurvivesPriceChange(t *testing.T) {
	// GIVEN: A redemption at 75 points
	// WHEN: The price later rises to 120
	// THEN: The historical record still says 75
	engine, st := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 200)

	r := &rewards.Reward{ID: "gift", Title: "Gift Card", PointsRequired: 75, AvailableQuantity: 10}
	createReward(t, engine, r)
	_, err := engine.Redeem(ctx, "gift", "alex")
	require.NoError(t, err)

	newPrice := 120
	_, err = engine.UpdateReward(ctx, "gift", rewards.RewardPatch{PointsRequired: &newPrice})
	require.NoError(t, err)

	recs, err := st.RedemptionsByReward(ctx, "gift")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 75, recs[0].PointsDeducted)
}

func TestRedeem_FailureMutatesNothing(t *testing.T) {
	// GIVEN: A trainee 25 points short
	// WHEN: They attempt to redeem
	// THEN: Balance, stock, and both ledgers are untouched
	engine, st := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 50)

	r := &rewards.Reward{ID: "gift", Title: "Gift Card", PointsRequired: 75, AvailableQuantity: 10}
	createReward(t, engine, r)

	_, err := engine.Redeem(ctx, "gift", "alex")
	require.ErrorIs(t, err, rewards.ErrInsufficientPoints)

	tr, _ := st.GetTrainee(ctx, "alex")
	assert.Equal(t, 50, tr.Points)

	got, _ := st.GetReward(ctx, "gift")
	assert.Equal(t, 0, got.TotalRedeemed)

	recs, _ := st.RedemptionsByTrainee(ctx, "alex")
	assert.Empty(t, recs)

	events, _ := st.PointEvents(ctx, "alex")
	assert.Len(t, events, 1, "only the funding event")
}

func TestRedeem_UnknownRewardAndTrainee(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 100)

	_, err := engine.Redeem(ctx, "missing", "alex")
	assert.ErrorIs(t, err, rewards.ErrRewardNotFound)

	r := &rewards.Reward{ID: "gift", Title: "Gift", PointsRequired: 10, AvailableQuantity: 1}
	createReward(t, engine, r)
	_, err = engine.Redeem(ctx, "gift", "ghost")
	assert.ErrorIs(t, err, rewards.ErrTraineeNotFound)
}

func TestRedeem_PerPersonLimitCounts(t *testing.T) {
	// A limit of 2 allows exactly two redemptions per trainee.
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 500)

	r := &rewards.Reward{ID: "snack", Title: "Snack", PointsRequired: 10,
		AvailableQuantity: 100, LimitPerPerson: 2}
	createReward(t, engine, r)

	_, err := engine.Redeem(ctx, "snack", "alex")
	require.NoError(t, err)
	_, err = engine.Redeem(ctx, "snack", "alex")
	require.NoError(t, err)

	_, err = engine.Redeem(ctx, "snack", "alex")
	require.ErrorIs(t, err, rewards.ErrAlreadyRedeemed)

	var lre *rewards.LimitReachedError
	require.ErrorAs(t, err, &lre)
	assert.Equal(t, 2, lre.Redeemed)
}

func TestRedeem_LimitIsPerTrainee(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 100)
	registerWithPoints(t, engine, "nina", 100)

	r := &rewards.Reward{ID: "snack", Title: "Snack", PointsRequired: 10, AvailableQuantity: 100}
	createReward(t, engine, r)

	_, err := engine.Redeem(ctx, "snack", "alex")
	require.NoError(t, err)
	_, err = engine.Redeem(ctx, "snack", "nina")
	assert.NoError(t, err, "another trainee's limit is independent")
}

func TestRedeem_ExpiredReward(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 100)

	past := testNow.Add(-time.Hour)
	r := &rewards.Reward{ID: "gift", Title: "Gift", PointsRequired: 10,
		AvailableQuantity: 5, ExpiresAt: &past}
	createReward(t, engine, r)

	_, err := engine.Redeem(ctx, "gift", "alex")
	assert.ErrorIs(t, err, rewards.ErrRewardExpired)
}

func TestRedeem_TargetedReward(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 100)
	registerWithPoints(t, engine, "nina", 100)

	r := &rewards.Reward{ID: "vip", Title: "VIP Session", PointsRequired: 10,
		AvailableQuantity: 5, TargetedTrainees: []progression.TraineeID{"nina"}}
	createReward(t, engine, r)

	_, err := engine.Redeem(ctx, "vip", "alex")
	assert.ErrorIs(t, err, rewards.ErrNotEligible)

	_, err = engine.Redeem(ctx, "vip", "nina")
	assert.NoError(t, err)
}

// =============================================================================
// STOCK CONSERVATION UNDER CONCURRENCY
// =============================================================================

func TestRedeem_ConcurrentLastUnit(t *testing.T) {
	// GIVEN: One unit of stock and two funded trainees
	// WHEN: Both redeem concurrently
	// THEN: Exactly one succeeds; the other sees out-of-stock; stock is 1
	engine, st := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 100)
	registerWithPoints(t, engine, "nina", 100)

	r := &rewards.Reward{ID: "last", Title: "Last One", PointsRequired: 10, AvailableQuantity: 1}
	createReward(t, engine, r)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, who := range []progression.TraineeID{"alex", "nina"} {
		wg.Add(1)
		go func(i int, who progression.TraineeID) {
			defer wg.Done()
			_, errs[i] = engine.Redeem(ctx, "last", who)
		}(i, who)
	}
	wg.Wait()

	successes, outOfStock := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, rewards.ErrOutOfStock):
			outOfStock++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, outOfStock)

	got, err := st.GetReward(ctx, "last")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalRedeemed, "stock never oversold")
}

// =============================================================================
// LISTING / REDEEM EQUIVALENCE
// =============================================================================

func TestAvailableRewardsFor_MatchesRedeemOutcome(t *testing.T) {
	// What the listing offers is exactly what Redeem would accept.
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 80)

	past := testNow.Add(-time.Hour)
	createReward(t, engine, &rewards.Reward{ID: "ok", Title: "Affordable", PointsRequired: 50, AvailableQuantity: 5})
	createReward(t, engine, &rewards.Reward{ID: "pricey", Title: "Pricey", PointsRequired: 500, AvailableQuantity: 5})
	createReward(t, engine, &rewards.Reward{ID: "gone", Title: "Expired", PointsRequired: 10, AvailableQuantity: 5, ExpiresAt: &past})
	createReward(t, engine, &rewards.Reward{ID: "vip", Title: "VIP", PointsRequired: 10, AvailableQuantity: 5,
		TargetedTrainees: []progression.TraineeID{"someone-else"}})
	_, err := engine.RetireReward(ctx, "pricey")
	require.NoError(t, err)

	eligible, err := engine.AvailableRewardsFor(ctx, "alex")
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, rewards.RewardID("ok"), eligible[0].ID)

	// The offered reward redeems; the excluded ones reject.
	_, err = engine.Redeem(ctx, "ok", "alex")
	assert.NoError(t, err)
	_, err = engine.Redeem(ctx, "gone", "alex")
	assert.Error(t, err)
	_, err = engine.Redeem(ctx, "vip", "alex")
	assert.Error(t, err)
}

func TestAvailableRewardsFor_ExcludesExhaustedLimit(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 100)

	createReward(t, engine, &rewards.Reward{ID: "once", Title: "One Shot", PointsRequired: 10, AvailableQuantity: 5})
	_, err := engine.Redeem(ctx, "once", "alex")
	require.NoError(t, err)

	eligible, err := engine.AvailableRewardsFor(ctx, "alex")
	require.NoError(t, err)
	assert.Empty(t, eligible, "limit reached, nothing left to offer")
}

// =============================================================================
// STATS TESTS
// =============================================================================

func TestRewardStatsFor(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	registerWithPoints(t, engine, "alex", 100)
	registerWithPoints(t, engine, "nina", 100)

	createReward(t, engine, &rewards.Reward{ID: "gift", Title: "Gift", PointsRequired: 25,
		AvailableQuantity: 10, Value: decimal.RequireFromString("19.99")})

	_, err := engine.Redeem(ctx, "gift", "alex")
	require.NoError(t, err)
	_, err = engine.Redeem(ctx, "gift", "nina")
	require.NoError(t, err)

	stats, err := engine.RewardStatsFor(ctx, "gift")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Redeemed)
	assert.Equal(t, 8, stats.Remaining)
	assert.Equal(t, 50, stats.PointsSpent)
	assert.Equal(t, "39.98", stats.CashValue.String())
}
