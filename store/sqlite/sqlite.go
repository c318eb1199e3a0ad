/*
Package sqlite provides a SQLite-backed implementation of rewards.TxStore.

PURPOSE:
  Production persistence for trainees, the reward catalog, and the two
  append-only ledgers (redemptions, point events). Uses sqlx over the
  mattn/go-sqlite3 driver; the same queries apply to PostgreSQL with only
  placeholder-dialect changes.

KEY TABLES:
  trainees:     Trainee records with the current point balance
  rewards:      Reward catalog (targeted list and perks stored as JSON)
  redemptions:  Immutable redemption ledger
  point_events: Immutable point-change ledger

APPEND-ONLY ENFORCEMENT:
  redemptions and point_events have INSERT and SELECT paths only - no
  UPDATE, no DELETE. Rewards are never deleted either; retirement flips the
  status column.

CONCURRENCY:
  SQLite is opened in WAL mode; a store-wide mutex serializes transactions
  (single writer), matching SQLite's own write model. The engine's
  per-reward locks sit above this.

USAGE:
  st, err := sqlite.New("./data/progression.db")
  if err != nil { log.Fatal(err) }
  defer st.Close()
  engine := rewards.NewEngine(st, progression.DefaultCatalog())

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool instead.

SEE ALSO:
  - rewards/store.go: Interface definitions
  - store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/progression-engine/progression"
	"github.com/warp/progression-engine/rewards"
)

// Store implements rewards.TxStore using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex // serializes write transactions
}

var _ rewards.TxStore = (*Store)(nil)

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer anyway, and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trainees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rewards (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		points_required INTEGER NOT NULL CHECK (points_required > 0),
		available_quantity INTEGER NOT NULL CHECK (available_quantity > 0),
		total_redeemed INTEGER NOT NULL DEFAULT 0 CHECK (total_redeemed >= 0),
		limit_per_person INTEGER NOT NULL DEFAULT 1 CHECK (limit_per_person > 0),
		expires_at TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		targeted_json TEXT NOT NULL DEFAULT '[]',
		value TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rewards_status ON rewards(status);

	-- Redemption ledger (append-only: INSERT and SELECT only)
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		reward_id TEXT NOT NULL REFERENCES rewards(id),
		trainee_id TEXT NOT NULL REFERENCES trainees(id),
		points_deducted INTEGER NOT NULL,
		status TEXT NOT NULL,
		redeemed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_reward ON redemptions(reward_id);
	CREATE INDEX IF NOT EXISTS idx_redemptions_trainee ON redemptions(trainee_id);
	-- Hot path: per-person limit counting
	CREATE INDEX IF NOT EXISTS idx_redemptions_pair ON redemptions(reward_id, trainee_id);

	-- Point-event ledger (append-only)
	CREATE TABLE IF NOT EXISTS point_events (
		id TEXT PRIMARY KEY,
		trainee_id TEXT NOT NULL REFERENCES trainees(id),
		delta INTEGER NOT NULL,
		old_points INTEGER NOT NULL,
		new_points INTEGER NOT NULL,
		source TEXT NOT NULL,
		reason TEXT,
		leveled_up BOOLEAN NOT NULL DEFAULT FALSE,
		level_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_point_events_trainee ON point_events(trainee_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by both *sqlx.DB and *sqlx.Tx so the same query
// helpers serve direct calls and transactional ones.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// =============================================================================
// ROW TYPES
// =============================================================================

type traineeRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Email     sql.NullString `db:"email"`
	Points    int            `db:"points"`
	CreatedAt string         `db:"created_at"`
}

func (r traineeRow) toTrainee() progression.Trainee {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return progression.Trainee{
		ID:        progression.TraineeID(r.ID),
		Name:      r.Name,
		Email:     r.Email.String,
		Points:    r.Points,
		CreatedAt: created,
	}
}

type rewardRow struct {
	ID                string         `db:"id"`
	Title             string         `db:"title"`
	Description       sql.NullString `db:"description"`
	PointsRequired    int            `db:"points_required"`
	AvailableQuantity int            `db:"available_quantity"`
	TotalRedeemed     int            `db:"total_redeemed"`
	LimitPerPerson    int            `db:"limit_per_person"`
	ExpiresAt         sql.NullString `db:"expires_at"`
	Status            string         `db:"status"`
	TargetedJSON      string         `db:"targeted_json"`
	Value             string         `db:"value"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

func (r rewardRow) toReward() (rewards.Reward, error) {
	var targeted []progression.TraineeID
	if err := json.Unmarshal([]byte(r.TargetedJSON), &targeted); err != nil {
		return rewards.Reward{}, fmt.Errorf("bad targeted list for reward %s: %w", r.ID, err)
	}
	value, err := decimal.NewFromString(r.Value)
	if err != nil {
		return rewards.Reward{}, fmt.Errorf("bad value for reward %s: %w", r.ID, err)
	}

	out := rewards.Reward{
		ID:                rewards.RewardID(r.ID),
		Title:             r.Title,
		Description:       r.Description.String,
		PointsRequired:    r.PointsRequired,
		AvailableQuantity: r.AvailableQuantity,
		TotalRedeemed:     r.TotalRedeemed,
		LimitPerPerson:    r.LimitPerPerson,
		Status:            rewards.RewardStatus(r.Status),
		TargetedTrainees:  targeted,
		Value:             value,
	}
	out.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	out.UpdatedAt, _ = time.Parse(time.RFC3339, r.UpdatedAt)
	if r.ExpiresAt.Valid {
		t, err := time.Parse(time.RFC3339, r.ExpiresAt.String)
		if err == nil {
			out.ExpiresAt = &t
		}
	}
	return out, nil
}

type redemptionRow struct {
	ID             string `db:"id"`
	RewardID       string `db:"reward_id"`
	TraineeID      string `db:"trainee_id"`
	PointsDeducted int    `db:"points_deducted"`
	Status         string `db:"status"`
	RedeemedAt     string `db:"redeemed_at"`
}

func (r redemptionRow) toRedemption() rewards.Redemption {
	at, _ := time.Parse(time.RFC3339, r.RedeemedAt)
	return rewards.Redemption{
		ID:             rewards.RedemptionID(r.ID),
		RewardID:       rewards.RewardID(r.RewardID),
		TraineeID:      progression.TraineeID(r.TraineeID),
		PointsDeducted: r.PointsDeducted,
		Status:         rewards.RedemptionStatus(r.Status),
		RedeemedAt:     at,
	}
}

type pointEventRow struct {
	ID        string         `db:"id"`
	TraineeID string         `db:"trainee_id"`
	Delta     int            `db:"delta"`
	OldPoints int            `db:"old_points"`
	NewPoints int            `db:"new_points"`
	Source    string         `db:"source"`
	Reason    sql.NullString `db:"reason"`
	LeveledUp bool           `db:"leveled_up"`
	LevelID   string         `db:"level_id"`
	CreatedAt string         `db:"created_at"`
}

func (r pointEventRow) toEvent() progression.PointEvent {
	at, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return progression.PointEvent{
		ID:        progression.EventID(r.ID),
		TraineeID: progression.TraineeID(r.TraineeID),
		Delta:     r.Delta,
		OldPoints: r.OldPoints,
		NewPoints: r.NewPoints,
		Source:    progression.PointSource(r.Source),
		Reason:    r.Reason.String,
		LeveledUp: r.LeveledUp,
		LevelID:   progression.LevelID(r.LevelID),
		CreatedAt: at,
	}
}

// =============================================================================
// TRAINEES
// =============================================================================

func (s *Store) GetTrainee(ctx context.Context, id progression.TraineeID) (*progression.Trainee, error) {
	return getTrainee(ctx, s.db, id)
}

func getTrainee(ctx context.Context, db execer, id progression.TraineeID) (*progression.Trainee, error) {
	var row traineeRow
	err := db.GetContext(ctx, &row,
		`SELECT id, name, email, points, created_at FROM trainees WHERE id = ?`, string(id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trainee: %w", err)
	}
	t := row.toTrainee()
	return &t, nil
}

func (s *Store) SaveTrainee(ctx context.Context, t *progression.Trainee) error {
	return saveTrainee(ctx, s.db, t)
}

func saveTrainee(ctx context.Context, db execer, t *progression.Trainee) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO trainees (id, name, email, points, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(t.ID), t.Name, t.Email, t.Points, t.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save trainee: %w", err)
	}
	return nil
}

func (s *Store) UpdateTraineePoints(ctx context.Context, id progression.TraineeID, points int) error {
	return updateTraineePoints(ctx, s.db, id, points)
}

func updateTraineePoints(ctx context.Context, db execer, id progression.TraineeID, points int) error {
	res, err := db.ExecContext(ctx,
		`UPDATE trainees SET points = ? WHERE id = ?`, points, string(id))
	if err != nil {
		return fmt.Errorf("failed to update points: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return rewards.ErrTraineeNotFound
	}
	return nil
}

func (s *Store) ListTrainees(ctx context.Context) ([]progression.Trainee, error) {
	var rows []traineeRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, email, points, created_at FROM trainees ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trainees: %w", err)
	}
	out := make([]progression.Trainee, len(rows))
	for i, r := range rows {
		out[i] = r.toTrainee()
	}
	return out, nil
}

// =============================================================================
// REWARDS
// =============================================================================

const rewardColumns = `id, title, description, points_required, available_quantity,
	total_redeemed, limit_per_person, expires_at, status, targeted_json, value,
	created_at, updated_at`

func (s *Store) GetReward(ctx context.Context, id rewards.RewardID) (*rewards.Reward, error) {
	return getReward(ctx, s.db, id)
}

func getReward(ctx context.Context, db execer, id rewards.RewardID) (*rewards.Reward, error) {
	var row rewardRow
	err := db.GetContext(ctx, &row,
		`SELECT `+rewardColumns+` FROM rewards WHERE id = ?`, string(id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	r, err := row.toReward()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SaveReward(ctx context.Context, r *rewards.Reward) error {
	return saveReward(ctx, s.db, r)
}

func saveReward(ctx context.Context, db execer, r *rewards.Reward) error {
	targeted, _ := json.Marshal(r.TargetedTrainees)
	if r.TargetedTrainees == nil {
		targeted = []byte("[]")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO rewards (`+rewardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), r.Title, r.Description, r.PointsRequired, r.AvailableQuantity,
		r.TotalRedeemed, r.LimitPerPerson, nullTime(r.ExpiresAt), string(r.Status),
		string(targeted), r.Value.String(),
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save reward: %w", err)
	}
	return nil
}

func (s *Store) UpdateReward(ctx context.Context, r *rewards.Reward) error {
	return updateReward(ctx, s.db, r)
}

func updateReward(ctx context.Context, db execer, r *rewards.Reward) error {
	targeted, _ := json.Marshal(r.TargetedTrainees)
	if r.TargetedTrainees == nil {
		targeted = []byte("[]")
	}
	res, err := db.ExecContext(ctx, `
		UPDATE rewards SET title = ?, description = ?, points_required = ?,
			available_quantity = ?, total_redeemed = ?, limit_per_person = ?,
			expires_at = ?, status = ?, targeted_json = ?, value = ?, updated_at = ?
		WHERE id = ?`,
		r.Title, r.Description, r.PointsRequired,
		r.AvailableQuantity, r.TotalRedeemed, r.LimitPerPerson,
		nullTime(r.ExpiresAt), string(r.Status), string(targeted), r.Value.String(),
		r.UpdatedAt.UTC().Format(time.RFC3339),
		string(r.ID))
	if err != nil {
		return fmt.Errorf("failed to update reward: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return rewards.ErrRewardNotFound
	}
	return nil
}

func (s *Store) ListRewards(ctx context.Context) ([]rewards.Reward, error) {
	return listRewards(ctx, s.db)
}

func listRewards(ctx context.Context, db execer) ([]rewards.Reward, error) {
	var rows []rewardRow
	err := db.SelectContext(ctx, &rows,
		`SELECT `+rewardColumns+` FROM rewards ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	out := make([]rewards.Reward, 0, len(rows))
	for _, row := range rows {
		r, err := row.toReward()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// =============================================================================
// REDEMPTION LEDGER
// =============================================================================

func (s *Store) AppendRedemption(ctx context.Context, rec rewards.Redemption) error {
	return appendRedemption(ctx, s.db, rec)
}

func appendRedemption(ctx context.Context, db execer, rec rewards.Redemption) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO redemptions (id, reward_id, trainee_id, points_deducted, status, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.RewardID), string(rec.TraineeID),
		rec.PointsDeducted, string(rec.Status), rec.RedeemedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append redemption: %w", err)
	}
	return nil
}

func (s *Store) CountRedemptions(ctx context.Context, rewardID rewards.RewardID, traineeID progression.TraineeID) (int, error) {
	return countRedemptions(ctx, s.db, rewardID, traineeID)
}

func countRedemptions(ctx context.Context, db execer, rewardID rewards.RewardID, traineeID progression.TraineeID) (int, error) {
	var n int
	err := db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM redemptions WHERE reward_id = ? AND trainee_id = ?`,
		string(rewardID), string(traineeID))
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return n, nil
}

func (s *Store) RedemptionsByReward(ctx context.Context, rewardID rewards.RewardID) ([]rewards.Redemption, error) {
	return selectRedemptions(ctx, s.db, `WHERE reward_id = ?`, string(rewardID))
}

func (s *Store) RedemptionsByTrainee(ctx context.Context, traineeID progression.TraineeID) ([]rewards.Redemption, error) {
	return selectRedemptions(ctx, s.db, `WHERE trainee_id = ?`, string(traineeID))
}

func selectRedemptions(ctx context.Context, db execer, where string, arg any) ([]rewards.Redemption, error) {
	var rows []redemptionRow
	err := db.SelectContext(ctx, &rows, `
		SELECT id, reward_id, trainee_id, points_deducted, status, redeemed_at
		FROM redemptions `+where+` ORDER BY redeemed_at ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to load redemptions: %w", err)
	}
	out := make([]rewards.Redemption, len(rows))
	for i, r := range rows {
		out[i] = r.toRedemption()
	}
	return out, nil
}

// =============================================================================
// POINT-EVENT LEDGER
// =============================================================================

func (s *Store) AppendPointEvent(ctx context.Context, ev progression.PointEvent) error {
	return appendPointEvent(ctx, s.db, ev)
}

func appendPointEvent(ctx context.Context, db execer, ev progression.PointEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO point_events (id, trainee_id, delta, old_points, new_points,
			source, reason, leveled_up, level_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.ID), string(ev.TraineeID), ev.Delta, ev.OldPoints, ev.NewPoints,
		string(ev.Source), ev.Reason, ev.LeveledUp, string(ev.LevelID),
		ev.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append point event: %w", err)
	}
	return nil
}

func (s *Store) PointEvents(ctx context.Context, traineeID progression.TraineeID) ([]progression.PointEvent, error) {
	return selectPointEvents(ctx, s.db, traineeID)
}

func selectPointEvents(ctx context.Context, db execer, traineeID progression.TraineeID) ([]progression.PointEvent, error) {
	var rows []pointEventRow
	err := db.SelectContext(ctx, &rows, `
		SELECT id, trainee_id, delta, old_points, new_points, source, reason,
			leveled_up, level_id, created_at
		FROM point_events WHERE trainee_id = ? ORDER BY created_at ASC`, string(traineeID))
	if err != nil {
		return nil, fmt.Errorf("failed to load point events: %w", err)
	}
	out := make([]progression.PointEvent, len(rows))
	for i, r := range rows {
		out[i] = r.toEvent()
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn inside a database transaction. The store-wide mutex
// keeps SQLite's single-writer model honest under concurrent callers.
func (s *Store) WithTx(ctx context.Context, fn func(rewards.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore is the transactional view handed to WithTx callbacks.
type txStore struct {
	tx *sqlx.Tx
}

var _ rewards.Store = (*txStore)(nil)

func (t *txStore) GetTrainee(ctx context.Context, id progression.TraineeID) (*progression.Trainee, error) {
	return getTrainee(ctx, t.tx, id)
}

func (t *txStore) SaveTrainee(ctx context.Context, tr *progression.Trainee) error {
	return saveTrainee(ctx, t.tx, tr)
}

func (t *txStore) UpdateTraineePoints(ctx context.Context, id progression.TraineeID, points int) error {
	return updateTraineePoints(ctx, t.tx, id, points)
}

func (t *txStore) ListTrainees(ctx context.Context) ([]progression.Trainee, error) {
	var rows []traineeRow
	err := t.tx.SelectContext(ctx, &rows,
		`SELECT id, name, email, points, created_at FROM trainees ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trainees: %w", err)
	}
	out := make([]progression.Trainee, len(rows))
	for i, r := range rows {
		out[i] = r.toTrainee()
	}
	return out, nil
}

func (t *txStore) GetReward(ctx context.Context, id rewards.RewardID) (*rewards.Reward, error) {
	return getReward(ctx, t.tx, id)
}

func (t *txStore) SaveReward(ctx context.Context, r *rewards.Reward) error {
	return saveReward(ctx, t.tx, r)
}

func (t *txStore) UpdateReward(ctx context.Context, r *rewards.Reward) error {
	return updateReward(ctx, t.tx, r)
}

func (t *txStore) ListRewards(ctx context.Context) ([]rewards.Reward, error) {
	return listRewards(ctx, t.tx)
}

func (t *txStore) AppendRedemption(ctx context.Context, rec rewards.Redemption) error {
	return appendRedemption(ctx, t.tx, rec)
}

func (t *txStore) CountRedemptions(ctx context.Context, rewardID rewards.RewardID, traineeID progression.TraineeID) (int, error) {
	return countRedemptions(ctx, t.tx, rewardID, traineeID)
}

func (t *txStore) RedemptionsByReward(ctx context.Context, rewardID rewards.RewardID) ([]rewards.Redemption, error) {
	return selectRedemptions(ctx, t.tx, `WHERE reward_id = ?`, string(rewardID))
}

func (t *txStore) RedemptionsByTrainee(ctx context.Context, traineeID progression.TraineeID) ([]rewards.Redemption, error) {
	return selectRedemptions(ctx, t.tx, `WHERE trainee_id = ?`, string(traineeID))
}

func (t *txStore) AppendPointEvent(ctx context.Context, ev progression.PointEvent) error {
	return appendPointEvent(ctx, t.tx, ev)
}

func (t *txStore) PointEvents(ctx context.Context, traineeID progression.TraineeID) ([]progression.PointEvent, error) {
	return selectPointEvents(ctx, t.tx, traineeID)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
