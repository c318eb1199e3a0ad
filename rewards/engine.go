/*
engine.go - The transactional progression & redemption engine

PURPOSE:
  The Engine is the only component allowed to mutate state: trainee
  balances, the reward catalog, and the two append-only ledgers. It wires
  the pure pieces together - the level catalog for transitions, the rules
  pipeline for redemption gates - and wraps every multi-step effect in a
  store transaction.

SINGLE MUTATION CHOKE POINT:
  ApplyPoints/SetPoints is the ONLY path that changes a trainee's balance.
  Registration bonus, check-in, course completion, admin adjustment,
  penalty, and the redemption debit all route through it, so the
  level-transition check can never be skipped. There is no other public
  setter for the points field anywhere in the module.

REDEMPTION ATOMICITY:
  Redeem holds a per-reward lock across validate + commit, so two
  concurrent attempts at the last unit of stock serialize: one succeeds,
  the other revalidates against the incremented count and fails with
  ErrOutOfStock. The commit itself (append record, bump TotalRedeemed,
  debit points, append point event) runs inside WithTx, so no intermediate
  state is ever observable. Validation is read-only: a failed redemption
  mutates nothing.

  Different rewards hash to different locks and proceed independently.

TIME:
  The engine takes its clock as a field so expiry tests can pin "now".

SEE ALSO:
  - rules.go: The gate pipeline Redeem and AvailableRewardsFor share
  - progression/transition.go: The detector every point change runs
*/
package rewards

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/progression-engine/metrics"
	"github.com/warp/progression-engine/progression"
)

// rewardLockCount is the size of the striped lock table. Collisions are
// harmless (two rewards sharing a stripe serialize needlessly) and 64
// stripes keeps contention negligible for any plausible catalog size.
const rewardLockCount = 64

// Engine owns every state mutation in the system.
type Engine struct {
	store   TxStore
	catalog *progression.Catalog

	rewardLocks [rewardLockCount]sync.Mutex

	// Now is the engine's clock; overridable in tests.
	Now func() time.Time
}

// NewEngine creates an engine over the given store and level catalog.
func NewEngine(store TxStore, catalog *progression.Catalog) *Engine {
	return &Engine{
		store:   store,
		catalog: catalog,
		Now:     time.Now,
	}
}

// Catalog returns the injected level catalog.
func (e *Engine) Catalog() *progression.Catalog { return e.catalog }

func (e *Engine) lockFor(id RewardID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &e.rewardLocks[h.Sum32()%rewardLockCount]
}

// =============================================================================
// POINT-UPDATE ENTRY POINT (the single mutation choke point)
// =============================================================================

// ApplyPoints applies a delta to the trainee's balance, clamping at zero,
// records a point event, and returns the level transition for the caller to
// surface. Every balance change in the system goes through here.
func (e *Engine) ApplyPoints(ctx context.Context, id progression.TraineeID, delta int, source progression.PointSource, reason string) (*PointChange, error) {
	var change *PointChange
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		change, err = e.applyPoints(ctx, s, id, delta, source, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.record(change)
	return change, nil
}

// SetPoints moves the trainee's balance to an absolute value (manual admin
// adjustment). Implemented as a delta so it shares the same event record
// and transition check.
func (e *Engine) SetPoints(ctx context.Context, id progression.TraineeID, points int, reason string) (*PointChange, error) {
	if points < 0 {
		points = 0
	}

	var change *PointChange
	err := e.store.WithTx(ctx, func(s Store) error {
		t, err := s.GetTrainee(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTraineeNotFound
		}
		change, err = e.applyPoints(ctx, s, id, points-t.Points, progression.SourceAdjustment, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.record(change)
	return change, nil
}

// applyPoints is the shared write path. Callers must be inside a store
// transaction.
func (e *Engine) applyPoints(ctx context.Context, s Store, id progression.TraineeID, delta int, source progression.PointSource, reason string) (*PointChange, error) {
	t, err := s.GetTrainee(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTraineeNotFound
	}

	newPoints, tr := e.catalog.ApplyDelta(t.Points, delta)
	if err := s.UpdateTraineePoints(ctx, id, newPoints); err != nil {
		return nil, err
	}

	ev := progression.PointEvent{
		ID:        progression.EventID(fmt.Sprintf("ev-%d", time.Now().UnixNano())),
		TraineeID: id,
		Delta:     delta,
		OldPoints: t.Points,
		NewPoints: newPoints,
		Source:    source,
		Reason:    reason,
		LeveledUp: tr.LeveledUp,
		LevelID:   tr.NewLevel.ID,
		CreatedAt: e.Now().UTC(),
	}
	if err := s.AppendPointEvent(ctx, ev); err != nil {
		return nil, err
	}

	return &PointChange{Event: ev, Transition: tr}, nil
}

func (e *Engine) record(c *PointChange) {
	if c == nil {
		return
	}
	if c.Event.Delta > 0 {
		metrics.RecordPointsAwarded(string(c.Event.Source), c.Event.Delta)
	}
	if c.Transition.LeveledUp {
		metrics.RecordLevelUp(string(c.Transition.NewLevel.ID))
	}
}

// =============================================================================
// TRAINEE REGISTRATION
// =============================================================================

// RegisterTrainee creates a trainee and, when welcomeBonus is positive,
// grants it through the choke point so even the first points are on the
// event ledger.
func (e *Engine) RegisterTrainee(ctx context.Context, t *progression.Trainee, welcomeBonus int) (*PointChange, error) {
	if t.ID == "" {
		t.ID = progression.TraineeID(fmt.Sprintf("trainee-%d", time.Now().UnixNano()))
	}
	t.Points = 0
	t.CreatedAt = e.Now().UTC()

	var change *PointChange
	err := e.store.WithTx(ctx, func(s Store) error {
		if err := s.SaveTrainee(ctx, t); err != nil {
			return err
		}
		if welcomeBonus <= 0 {
			return nil
		}
		var err error
		change, err = e.applyPoints(ctx, s, t.ID, welcomeBonus, progression.SourceRegistration, "welcome bonus")
		if err == nil {
			t.Points = change.Event.NewPoints
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	e.record(change)
	return change, nil
}

// =============================================================================
// REWARD ADMINISTRATION
// =============================================================================

// CreateReward adds a reward to the catalog. TotalRedeemed starts at 0 and
// the reward is active. A LimitPerPerson of 0 defaults to 1.
func (e *Engine) CreateReward(ctx context.Context, r *Reward) error {
	if r.LimitPerPerson == 0 {
		r.LimitPerPerson = 1
	}
	if err := ValidateNew(r); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = RewardID(fmt.Sprintf("reward-%d", time.Now().UnixNano()))
	}
	r.TotalRedeemed = 0
	r.Status = RewardActive
	now := e.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	return e.store.SaveReward(ctx, r)
}

// UpdateReward merges a patch into the reward. TotalRedeemed is not
// touchable through this path.
func (e *Engine) UpdateReward(ctx context.Context, id RewardID, patch RewardPatch) (*Reward, error) {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	r, err := e.store.GetReward(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrRewardNotFound
	}
	if err := merge(r, patch); err != nil {
		return nil, err
	}
	r.UpdatedAt = e.Now().UTC()
	if err := e.store.UpdateReward(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// RetireReward soft-retires a reward (status -> inactive). The redemption
// history stays intact; there is no hard delete.
func (e *Engine) RetireReward(ctx context.Context, id RewardID) (*Reward, error) {
	inactive := RewardInactive
	return e.UpdateReward(ctx, id, RewardPatch{Status: &inactive})
}

// RewardStatsFor summarizes a reward's redemption history for the admin
// surface.
func (e *Engine) RewardStatsFor(ctx context.Context, id RewardID) (*RewardStats, error) {
	r, err := e.store.GetReward(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrRewardNotFound
	}
	recs, err := e.store.RedemptionsByReward(ctx, id)
	if err != nil {
		return nil, err
	}

	spent := 0
	for _, rec := range recs {
		spent += rec.PointsDeducted
	}
	return &RewardStats{
		RewardID:    id,
		Redeemed:    len(recs),
		Remaining:   r.Remaining(),
		PointsSpent: spent,
		CashValue:   r.Value.Mul(decimal.NewFromInt(int64(len(recs)))),
	}, nil
}

// =============================================================================
// REDEMPTION
// =============================================================================

// Redeem validates and commits a redemption as one atomic unit.
// On success the returned record carries the price snapshot; on failure
// nothing has been mutated and the error identifies the first failed gate.
func (e *Engine) Redeem(ctx context.Context, rewardID RewardID, traineeID progression.TraineeID) (*Redemption, error) {
	start := e.Now()

	mu := e.lockFor(rewardID)
	mu.Lock()
	defer mu.Unlock()

	var rec *Redemption
	err := e.store.WithTx(ctx, func(s Store) error {
		r, err := s.GetReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrRewardNotFound
		}
		t, err := s.GetTrainee(ctx, traineeID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTraineeNotFound
		}

		prior, err := s.CountRedemptions(ctx, rewardID, traineeID)
		if err != nil {
			return err
		}
		if err := Redeemable(r, traineeID, t.Points, prior, e.Now()); err != nil {
			return err
		}

		// All gates passed; the three effects below are one logical unit.
		rec = &Redemption{
			ID:             RedemptionID(fmt.Sprintf("red-%d", time.Now().UnixNano())),
			RewardID:       rewardID,
			TraineeID:      traineeID,
			PointsDeducted: r.PointsRequired, // price snapshot
			Status:         RedemptionCompleted,
			RedeemedAt:     e.Now().UTC(),
		}
		if err := s.AppendRedemption(ctx, *rec); err != nil {
			return err
		}

		r.TotalRedeemed++
		r.UpdatedAt = e.Now().UTC()
		if err := s.UpdateReward(ctx, r); err != nil {
			return err
		}

		// Debit through the choke point. A debit never raises a level-up.
		_, err = e.applyPoints(ctx, s, traineeID, -r.PointsRequired,
			progression.SourceRedemption, fmt.Sprintf("redeemed %s", r.Title))
		return err
	})

	status := "success"
	if err != nil {
		status = "failed"
		if IsClientError(err) {
			status = "rejected"
		}
	}
	metrics.RecordRedeemDuration(status, e.Now().Sub(start).Seconds())

	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AvailableRewardsFor filters the catalog down to rewards the trainee could
// redeem right now. Pure query: runs the exact pipeline Redeem runs (minus
// existence, which listing implies) and mutates nothing.
func (e *Engine) AvailableRewardsFor(ctx context.Context, traineeID progression.TraineeID) ([]Reward, error) {
	t, err := e.store.GetTrainee(ctx, traineeID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTraineeNotFound
	}

	all, err := e.store.ListRewards(ctx)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	eligible := make([]Reward, 0, len(all))
	for i := range all {
		prior, err := e.store.CountRedemptions(ctx, all[i].ID, traineeID)
		if err != nil {
			return nil, err
		}
		if Redeemable(&all[i], traineeID, t.Points, prior, now) == nil {
			eligible = append(eligible, all[i])
		}
	}
	return eligible, nil
}
