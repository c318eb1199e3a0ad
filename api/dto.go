/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Trainees:
    TraineeDTO, CreateTraineeRequest, PointUpdateRequest, PointChangeDTO

  Levels:
    LevelDTO, ProgressDTO, TransitionDTO

  Rewards:
    RewardDTO, CreateRewardRequest, UpdateRewardRequest, RewardStatsDTO

  Redemptions:
    RedemptionDTO, RedeemRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - progression/types.go: Domain types behind LevelDTO/TransitionDTO
*/
package api

import (
	"time"

	"github.com/warp/progression-engine/progression"
	"github.com/warp/progression-engine/rewards"
)

// =============================================================================
// LEVEL TYPES
// =============================================================================

// LevelDTO represents a catalog level. MaxPoints is omitted for the
// terminal (unbounded) level.
type LevelDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Rank      int      `json:"rank"`
	MinPoints int      `json:"min_points"`
	MaxPoints *int     `json:"max_points,omitempty"`
	Perks     []string `json:"perks,omitempty"`
}

// ProgressDTO represents advancement through the current level.
type ProgressDTO struct {
	Percent      int `json:"percent"`
	PointsToNext int `json:"points_to_next"`
}

// TransitionDTO represents the level effect of a point change.
type TransitionDTO struct {
	LeveledUp    bool     `json:"leveled_up"`
	OldLevel     LevelDTO `json:"old_level"`
	NewLevel     LevelDTO `json:"new_level"`
	PointsGained int      `json:"points_gained"`
	OldPoints    int      `json:"old_points"`
	NewPoints    int      `json:"new_points"`
}

// =============================================================================
// TRAINEE TYPES
// =============================================================================

// TraineeDTO represents a trainee with their computed level and progress.
type TraineeDTO struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email,omitempty"`
	Points    int         `json:"points"`
	Level     LevelDTO    `json:"level"`
	Progress  ProgressDTO `json:"progress"`
	CreatedAt string      `json:"created_at,omitempty"`
}

// CreateTraineeRequest is the request to register a trainee.
type CreateTraineeRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// PointUpdateRequest changes a trainee's balance. Exactly one of Delta or
// Points must be set: Delta applies a relative change, Points moves the
// balance to an absolute value (admin adjustment).
type PointUpdateRequest struct {
	Delta  *int   `json:"delta,omitempty"`
	Points *int   `json:"points,omitempty"`
	Source string `json:"source,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// PointChangeDTO is returned from the point-update endpoint: the new
// balance plus the transition for the client to surface.
type PointChangeDTO struct {
	TraineeID  string        `json:"trainee_id"`
	Points     int           `json:"points"`
	Transition TransitionDTO `json:"transition"`
}

// PointEventDTO represents one entry of the point-event ledger.
type PointEventDTO struct {
	ID        string `json:"id"`
	Delta     int    `json:"delta"`
	OldPoints int    `json:"old_points"`
	NewPoints int    `json:"new_points"`
	Source    string `json:"source"`
	Reason    string `json:"reason,omitempty"`
	LeveledUp bool   `json:"leveled_up"`
	LevelID   string `json:"level_id"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// REWARD TYPES
// =============================================================================

// RewardDTO represents a reward in API responses.
type RewardDTO struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	PointsRequired    int      `json:"points_required"`
	AvailableQuantity int      `json:"available_quantity"`
	TotalRedeemed     int      `json:"total_redeemed"`
	Remaining         int      `json:"remaining"`
	LimitPerPerson    int      `json:"limit_per_person"`
	ExpiresAt         *string  `json:"expires_at,omitempty"`
	Status            string   `json:"status"`
	TargetedTrainees  []string `json:"targeted_trainees,omitempty"`
	Value             string   `json:"value"`
	CreatedAt         string   `json:"created_at,omitempty"`
	UpdatedAt         string   `json:"updated_at,omitempty"`
}

// CreateRewardRequest is the request to add a reward to the catalog.
type CreateRewardRequest struct {
	ID                string   `json:"id,omitempty"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	PointsRequired    int      `json:"points_required"`
	AvailableQuantity int      `json:"available_quantity"`
	LimitPerPerson    int      `json:"limit_per_person,omitempty"`
	ExpiresAt         *string  `json:"expires_at,omitempty"` // RFC 3339
	TargetedTrainees  []string `json:"targeted_trainees,omitempty"`
	Value             string   `json:"value,omitempty"` // decimal string
}

// UpdateRewardRequest is a partial update; nil fields are left untouched.
// Setting clear_expiry removes the expiry date.
type UpdateRewardRequest struct {
	Title             *string   `json:"title,omitempty"`
	Description       *string   `json:"description,omitempty"`
	PointsRequired    *int      `json:"points_required,omitempty"`
	AvailableQuantity *int      `json:"available_quantity,omitempty"`
	LimitPerPerson    *int      `json:"limit_per_person,omitempty"`
	ExpiresAt         *string   `json:"expires_at,omitempty"`
	ClearExpiry       bool      `json:"clear_expiry,omitempty"`
	Status            *string   `json:"status,omitempty"`
	TargetedTrainees  *[]string `json:"targeted_trainees,omitempty"`
	Value             *string   `json:"value,omitempty"`
}

// RewardStatsDTO summarizes a reward's redemption history.
type RewardStatsDTO struct {
	RewardID    string `json:"reward_id"`
	Redeemed    int    `json:"redeemed"`
	Remaining   int    `json:"remaining"`
	PointsSpent int    `json:"points_spent"`
	CashValue   string `json:"cash_value"`
}

// =============================================================================
// REDEMPTION TYPES
// =============================================================================

// RedeemRequest is the request to redeem a reward.
type RedeemRequest struct {
	RewardID  string `json:"reward_id"`
	TraineeID string `json:"trainee_id"`
}

// RedemptionDTO represents one redemption ledger entry.
type RedemptionDTO struct {
	ID             string `json:"id"`
	RewardID       string `json:"reward_id"`
	TraineeID      string `json:"trainee_id"`
	PointsDeducted int    `json:"points_deducted"`
	Status         string `json:"status"`
	RedeemedAt     string `json:"redeemed_at"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toLevelDTO(l progression.Level) LevelDTO {
	dto := LevelDTO{
		ID:        string(l.ID),
		Name:      l.Name,
		Rank:      l.Rank,
		MinPoints: l.MinPoints,
		Perks:     l.Perks,
	}
	if l.Bounded() {
		max := l.MaxPoints
		dto.MaxPoints = &max
	}
	return dto
}

func toTransitionDTO(t progression.Transition) TransitionDTO {
	return TransitionDTO{
		LeveledUp:    t.LeveledUp,
		OldLevel:     toLevelDTO(t.OldLevel),
		NewLevel:     toLevelDTO(t.NewLevel),
		PointsGained: t.PointsGained,
		OldPoints:    t.OldPoints,
		NewPoints:    t.NewPoints,
	}
}

func toTraineeDTO(t progression.Trainee, catalog *progression.Catalog) TraineeDTO {
	level := catalog.LevelFor(t.Points)
	prog := catalog.ProgressFor(t.Points)
	return TraineeDTO{
		ID:        string(t.ID),
		Name:      t.Name,
		Email:     t.Email,
		Points:    t.Points,
		Level:     toLevelDTO(level),
		Progress:  ProgressDTO{Percent: prog.Percent, PointsToNext: prog.PointsToNext},
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

func toPointEventDTO(ev progression.PointEvent) PointEventDTO {
	return PointEventDTO{
		ID:        string(ev.ID),
		Delta:     ev.Delta,
		OldPoints: ev.OldPoints,
		NewPoints: ev.NewPoints,
		Source:    string(ev.Source),
		Reason:    ev.Reason,
		LeveledUp: ev.LeveledUp,
		LevelID:   string(ev.LevelID),
		CreatedAt: ev.CreatedAt.Format(time.RFC3339),
	}
}

func toRewardDTO(r rewards.Reward) RewardDTO {
	dto := RewardDTO{
		ID:                string(r.ID),
		Title:             r.Title,
		Description:       r.Description,
		PointsRequired:    r.PointsRequired,
		AvailableQuantity: r.AvailableQuantity,
		TotalRedeemed:     r.TotalRedeemed,
		Remaining:         r.Remaining(),
		LimitPerPerson:    r.LimitPerPerson,
		Status:            string(r.Status),
		Value:             r.Value.String(),
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         r.UpdatedAt.Format(time.RFC3339),
	}
	if r.ExpiresAt != nil {
		s := r.ExpiresAt.Format(time.RFC3339)
		dto.ExpiresAt = &s
	}
	for _, id := range r.TargetedTrainees {
		dto.TargetedTrainees = append(dto.TargetedTrainees, string(id))
	}
	return dto
}

func toRedemptionDTO(rec rewards.Redemption) RedemptionDTO {
	return RedemptionDTO{
		ID:             string(rec.ID),
		RewardID:       string(rec.RewardID),
		TraineeID:      string(rec.TraineeID),
		PointsDeducted: rec.PointsDeducted,
		Status:         string(rec.Status),
		RedeemedAt:     rec.RedeemedAt.Format(time.RFC3339),
	}
}
