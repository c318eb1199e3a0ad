/*
store.go - Persistence interfaces for trainees, rewards and ledgers

PURPOSE:
  Defines the interface between the engine and the database. Implementations
  live in store/ (in-memory, for tests and dev) and store/sqlite/
  (production). The engine only ever talks to these interfaces.

APPEND-ONLY CONTRACT:
  Redemptions and point events have Append and read methods only - no
  Update, no Delete. Corrections are made with compensating entries.
  Rewards and trainees are mutable (catalog administration, balance debits)
  but every write still flows through the engine.

ATOMICITY:
  WithTx executes a function against a transactional view of the store.
  If the function returns an error nothing is visible afterwards. The
  redemption engine relies on this for its append + increment + debit unit.

SEE ALSO:
  - store/memory.go: Snapshot/rollback in-memory implementation
  - store/sqlite/sqlite.go: sqlx-over-SQLite implementation
*/
package rewards

import (
	"context"

	"github.com/warp/progression-engine/progression"
)

// Store is the persistence surface the engine requires.
//
// Get methods return (nil, nil) when the identifier does not resolve;
// the engine maps that to its not-found errors.
type Store interface {
	// Trainees
	GetTrainee(ctx context.Context, id progression.TraineeID) (*progression.Trainee, error)
	SaveTrainee(ctx context.Context, t *progression.Trainee) error
	UpdateTraineePoints(ctx context.Context, id progression.TraineeID, points int) error
	ListTrainees(ctx context.Context) ([]progression.Trainee, error)

	// Rewards catalog
	GetReward(ctx context.Context, id RewardID) (*Reward, error)
	SaveReward(ctx context.Context, r *Reward) error
	UpdateReward(ctx context.Context, r *Reward) error
	ListRewards(ctx context.Context) ([]Reward, error)

	// Redemption ledger (append-only)
	AppendRedemption(ctx context.Context, rec Redemption) error
	CountRedemptions(ctx context.Context, rewardID RewardID, traineeID progression.TraineeID) (int, error)
	RedemptionsByReward(ctx context.Context, rewardID RewardID) ([]Redemption, error)
	RedemptionsByTrainee(ctx context.Context, traineeID progression.TraineeID) ([]Redemption, error)

	// Point-event ledger (append-only)
	AppendPointEvent(ctx context.Context, ev progression.PointEvent) error
	PointEvents(ctx context.Context, traineeID progression.TraineeID) ([]progression.PointEvent, error)
}

// TxStore wraps Store with transaction support.
//
// WithTx executes fn against a store view whose writes become visible only
// if fn returns nil. Implementations may serialize transactions; the engine
// additionally holds a per-reward lock around redemption, so different
// rewards never contend on correctness, only on the store's own locking.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
