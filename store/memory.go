// Package store provides the in-memory rewards.Store implementation,
// used by tests and for running the server without a database file.
package store

import (
	"context"
	"sync"

	"github.com/warp/progression-engine/progression"
	"github.com/warp/progression-engine/rewards"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements rewards.TxStore entirely in memory.
// All values are copied on the way in and out so callers can never alias
// stored state.
type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes whole WithTx transactions

	trainees    map[progression.TraineeID]progression.Trainee
	rewards     map[rewards.RewardID]rewards.Reward
	redemptions []rewards.Redemption
	events      map[progression.TraineeID][]progression.PointEvent
}

var _ rewards.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		trainees: make(map[progression.TraineeID]progression.Trainee),
		rewards:  make(map[rewards.RewardID]rewards.Reward),
		events:   make(map[progression.TraineeID][]progression.PointEvent),
	}
}

// =============================================================================
// TRAINEES
// =============================================================================

func (m *Memory) GetTrainee(_ context.Context, id progression.TraineeID) (*progression.Trainee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTraineeLocked(id), nil
}

func (m *Memory) getTraineeLocked(id progression.TraineeID) *progression.Trainee {
	t, ok := m.trainees[id]
	if !ok {
		return nil
	}
	return &t
}

func (m *Memory) SaveTrainee(_ context.Context, t *progression.Trainee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainees[t.ID] = *t
	return nil
}

func (m *Memory) UpdateTraineePoints(_ context.Context, id progression.TraineeID, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trainees[id]
	if !ok {
		return rewards.ErrTraineeNotFound
	}
	t.Points = points
	m.trainees[id] = t
	return nil
}

func (m *Memory) ListTrainees(_ context.Context) ([]progression.Trainee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]progression.Trainee, 0, len(m.trainees))
	for _, t := range m.trainees {
		out = append(out, t)
	}
	return out, nil
}

// =============================================================================
// REWARDS
// =============================================================================

func (m *Memory) GetReward(_ context.Context, id rewards.RewardID) (*rewards.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rewards[id]
	if !ok {
		return nil, nil
	}
	cp := r
	cp.TargetedTrainees = append([]progression.TraineeID(nil), r.TargetedTrainees...)
	return &cp, nil
}

func (m *Memory) SaveReward(_ context.Context, r *rewards.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	cp.TargetedTrainees = append([]progression.TraineeID(nil), r.TargetedTrainees...)
	m.rewards[r.ID] = cp
	return nil
}

func (m *Memory) UpdateReward(_ context.Context, r *rewards.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rewards[r.ID]; !ok {
		return rewards.ErrRewardNotFound
	}
	cp := *r
	cp.TargetedTrainees = append([]progression.TraineeID(nil), r.TargetedTrainees...)
	m.rewards[r.ID] = cp
	return nil
}

func (m *Memory) ListRewards(_ context.Context) ([]rewards.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rewards.Reward, 0, len(m.rewards))
	for _, r := range m.rewards {
		cp := r
		cp.TargetedTrainees = append([]progression.TraineeID(nil), r.TargetedTrainees...)
		out = append(out, cp)
	}
	return out, nil
}

// =============================================================================
// REDEMPTION LEDGER (append-only)
// =============================================================================

func (m *Memory) AppendRedemption(_ context.Context, rec rewards.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redemptions = append(m.redemptions, rec)
	return nil
}

func (m *Memory) CountRedemptions(_ context.Context, rewardID rewards.RewardID, traineeID progression.TraineeID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.redemptions {
		if rec.RewardID == rewardID && rec.TraineeID == traineeID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) RedemptionsByReward(_ context.Context, rewardID rewards.RewardID) ([]rewards.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []rewards.Redemption
	for _, rec := range m.redemptions {
		if rec.RewardID == rewardID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) RedemptionsByTrainee(_ context.Context, traineeID progression.TraineeID) ([]rewards.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []rewards.Redemption
	for _, rec := range m.redemptions {
		if rec.TraineeID == traineeID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// =============================================================================
// POINT-EVENT LEDGER (append-only)
// =============================================================================

func (m *Memory) AppendPointEvent(_ context.Context, ev progression.PointEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.TraineeID] = append(m.events[ev.TraineeID], ev)
	return nil
}

func (m *Memory) PointEvents(_ context.Context, traineeID progression.TraineeID) ([]progression.PointEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]progression.PointEvent, len(m.events[traineeID]))
	copy(out, m.events[traineeID])
	return out, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback
// =============================================================================

// WithTx executes fn against the store. For the memory store atomicity is
// simulated with a snapshot taken up front and restored if fn fails; txMu
// serializes whole transactions so two WithTx calls never interleave.
func (m *Memory) WithTx(_ context.Context, fn func(rewards.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := memorySnapshot{
		trainees:    make(map[progression.TraineeID]progression.Trainee, len(m.trainees)),
		rewards:     make(map[rewards.RewardID]rewards.Reward, len(m.rewards)),
		redemptions: append([]rewards.Redemption(nil), m.redemptions...),
		events:      make(map[progression.TraineeID][]progression.PointEvent, len(m.events)),
	}
	for k, v := range m.trainees {
		s.trainees[k] = v
	}
	for k, v := range m.rewards {
		s.rewards[k] = v
	}
	for k, v := range m.events {
		s.events[k] = append([]progression.PointEvent(nil), v...)
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainees = s.trainees
	m.rewards = s.rewards
	m.redemptions = s.redemptions
	m.events = s.events
}

type memorySnapshot struct {
	trainees    map[progression.TraineeID]progression.Trainee
	rewards     map[rewards.RewardID]rewards.Reward
	redemptions []rewards.Redemption
	events      map[progression.TraineeID][]progression.PointEvent
}
