/*
handlers.go - HTTP API handlers for the progression & rewards engine

PURPOSE:
  Exposes the progression engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Trainees:
    GET    /api/trainees                    List all trainees
    POST   /api/trainees                    Register trainee (welcome bonus)
    GET    /api/trainees/{id}               Trainee with level and progress
    POST   /api/trainees/{id}/points        Apply a point change
    GET    /api/trainees/{id}/level         Level and progress only
    GET    /api/trainees/{id}/events        Point-event ledger
    GET    /api/trainees/{id}/rewards       Rewards redeemable right now
    GET    /api/trainees/{id}/redemptions   Redemption history

  Rewards:
    GET    /api/rewards                     List catalog
    POST   /api/rewards                     Create reward
    GET    /api/rewards/{id}                Get reward
    PUT    /api/rewards/{id}                Partial update
    DELETE /api/rewards/{id}                Soft retire (status -> inactive)
    GET    /api/rewards/{id}/redemptions    Who redeemed it
    GET    /api/rewards/{id}/stats          Redemption summary

  Redemptions:
    POST   /api/redemptions                 Redeem a reward

  Levels:
    GET    /api/levels                      The level catalog

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Trainee or reward not found
  - 409: Redemption gate failures (stock, balance, limit, expiry, ...)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - rewards/engine.go: The domain logic behind every mutation here
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/progression-engine/progression"
	"github.com/warp/progression-engine/rewards"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for the API handlers.
type Handler struct {
	Engine *rewards.Engine
	Store  rewards.TxStore

	// WelcomeBonus is granted on registration; 0 disables it.
	WelcomeBonus int
}

// NewHandler creates a handler over the engine and store.
func NewHandler(engine *rewards.Engine, store rewards.TxStore, welcomeBonus int) *Handler {
	return &Handler{Engine: engine, Store: store, WelcomeBonus: welcomeBonus}
}

// =============================================================================
// TRAINEE ENDPOINTS
// =============================================================================

// ListTrainees returns all trainees with their computed levels.
// GET /api/trainees
func (h *Handler) ListTrainees(w http.ResponseWriter, r *http.Request) {
	trainees, err := h.Store.ListTrainees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list trainees", err)
		return
	}

	dtos := make([]TraineeDTO, 0, len(trainees))
	for _, t := range trainees {
		dtos = append(dtos, toTraineeDTO(t, h.Engine.Catalog()))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTrainee registers a trainee and grants the welcome bonus.
// POST /api/trainees
func (h *Handler) CreateTrainee(w http.ResponseWriter, r *http.Request) {
	var req CreateTraineeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	if req.ID != "" {
		existing, err := h.Store.GetTrainee(r.Context(), progression.TraineeID(req.ID))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to check trainee", err)
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "Trainee already exists", nil)
			return
		}
	}

	t := &progression.Trainee{
		ID:    progression.TraineeID(req.ID),
		Name:  req.Name,
		Email: req.Email,
	}
	if _, err := h.Engine.RegisterTrainee(r.Context(), t, h.WelcomeBonus); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register trainee", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTraineeDTO(*t, h.Engine.Catalog()))
}

// GetTrainee returns a trainee with level and progress.
// GET /api/trainees/{id}
func (h *Handler) GetTrainee(w http.ResponseWriter, r *http.Request) {
	id := progression.TraineeID(chi.URLParam(r, "id"))
	t, err := h.Store.GetTrainee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get trainee", err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Trainee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTraineeDTO(*t, h.Engine.Catalog()))
}

// UpdatePoints applies a point change and returns the transition.
// POST /api/trainees/{id}/points
func (h *Handler) UpdatePoints(w http.ResponseWriter, r *http.Request) {
	id := progression.TraineeID(chi.URLParam(r, "id"))

	var req PointUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if (req.Delta == nil) == (req.Points == nil) {
		writeError(w, http.StatusBadRequest, "Exactly one of delta or points is required", nil)
		return
	}

	var (
		change *rewards.PointChange
		err    error
	)
	if req.Points != nil {
		change, err = h.Engine.SetPoints(r.Context(), id, *req.Points, req.Reason)
	} else {
		source, ok := parseSource(req.Source)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown point source", nil)
			return
		}
		change, err = h.Engine.ApplyPoints(r.Context(), id, *req.Delta, source, req.Reason)
	}
	if err != nil {
		writeDomainError(w, "Failed to update points", err)
		return
	}

	writeJSON(w, http.StatusOK, PointChangeDTO{
		TraineeID:  string(id),
		Points:     change.Event.NewPoints,
		Transition: toTransitionDTO(change.Transition),
	})
}

// GetLevel returns just the trainee's level and progress.
// GET /api/trainees/{id}/level
func (h *Handler) GetLevel(w http.ResponseWriter, r *http.Request) {
	id := progression.TraineeID(chi.URLParam(r, "id"))
	t, err := h.Store.GetTrainee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get trainee", err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Trainee not found", nil)
		return
	}

	catalog := h.Engine.Catalog()
	prog := catalog.ProgressFor(t.Points)
	out := map[string]any{
		"trainee_id": string(id),
		"points":     t.Points,
		"level":      toLevelDTO(catalog.LevelFor(t.Points)),
		"progress":   ProgressDTO{Percent: prog.Percent, PointsToNext: prog.PointsToNext},
	}
	if next, ok := catalog.NextLevelFor(t.Points); ok {
		out["next_level"] = toLevelDTO(next)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPointEvents returns the trainee's point-event ledger.
// GET /api/trainees/{id}/events
func (h *Handler) GetPointEvents(w http.ResponseWriter, r *http.Request) {
	id := progression.TraineeID(chi.URLParam(r, "id"))
	if err := h.requireTrainee(w, r, id); err != nil {
		return
	}

	events, err := h.Store.PointEvents(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get point events", err)
		return
	}
	dtos := make([]PointEventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toPointEventDTO(ev))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAvailableRewards returns the rewards the trainee could redeem now.
// GET /api/trainees/{id}/rewards
func (h *Handler) GetAvailableRewards(w http.ResponseWriter, r *http.Request) {
	id := progression.TraineeID(chi.URLParam(r, "id"))
	eligible, err := h.Engine.AvailableRewardsFor(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list available rewards", err)
		return
	}
	dtos := make([]RewardDTO, 0, len(eligible))
	for _, rw := range eligible {
		dtos = append(dtos, toRewardDTO(rw))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTraineeRedemptions returns the trainee's redemption history.
// GET /api/trainees/{id}/redemptions
func (h *Handler) GetTraineeRedemptions(w http.ResponseWriter, r *http.Request) {
	id := progression.TraineeID(chi.URLParam(r, "id"))
	if err := h.requireTrainee(w, r, id); err != nil {
		return
	}

	recs, err := h.Store.RedemptionsByTrainee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get redemptions", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTOs(recs))
}

// requireTrainee 404s when the trainee does not exist. The error return
// only signals "response already written".
func (h *Handler) requireTrainee(w http.ResponseWriter, r *http.Request, id progression.TraineeID) error {
	t, err := h.Store.GetTrainee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get trainee", err)
		return err
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Trainee not found", nil)
		return rewards.ErrTraineeNotFound
	}
	return nil
}

// =============================================================================
// REWARD ENDPOINTS
// =============================================================================

// ListRewards returns the full reward catalog, retired rewards included.
// GET /api/rewards
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	all, err := h.Store.ListRewards(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rewards", err)
		return
	}
	dtos := make([]RewardDTO, 0, len(all))
	for _, rw := range all {
		dtos = append(dtos, toRewardDTO(rw))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateReward adds a reward to the catalog.
// POST /api/rewards
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req CreateRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	reward := &rewards.Reward{
		ID:                rewards.RewardID(req.ID),
		Title:             req.Title,
		Description:       req.Description,
		PointsRequired:    req.PointsRequired,
		AvailableQuantity: req.AvailableQuantity,
		LimitPerPerson:    req.LimitPerPerson,
	}
	for _, id := range req.TargetedTrainees {
		reward.TargetedTrainees = append(reward.TargetedTrainees, progression.TraineeID(id))
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires_at (use RFC 3339)", err)
			return
		}
		reward.ExpiresAt = &t
	}
	if req.Value != "" {
		v, err := decimal.NewFromString(req.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid value (use a decimal string)", err)
			return
		}
		reward.Value = v
	}

	if err := h.Engine.CreateReward(r.Context(), reward); err != nil {
		writeDomainError(w, "Failed to create reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRewardDTO(*reward))
}

// GetReward returns one reward.
// GET /api/rewards/{id}
func (h *Handler) GetReward(w http.ResponseWriter, r *http.Request) {
	id := rewards.RewardID(chi.URLParam(r, "id"))
	reward, err := h.Store.GetReward(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reward", err)
		return
	}
	if reward == nil {
		writeError(w, http.StatusNotFound, "Reward not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRewardDTO(*reward))
}

// UpdateReward applies a partial update.
// PUT /api/rewards/{id}
func (h *Handler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	id := rewards.RewardID(chi.URLParam(r, "id"))

	var req UpdateRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := rewards.RewardPatch{
		Title:             req.Title,
		Description:       req.Description,
		PointsRequired:    req.PointsRequired,
		AvailableQuantity: req.AvailableQuantity,
		LimitPerPerson:    req.LimitPerPerson,
		ClearExpiry:       req.ClearExpiry,
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires_at (use RFC 3339)", err)
			return
		}
		patch.ExpiresAt = &t
	}
	if req.Status != nil {
		s := rewards.RewardStatus(*req.Status)
		if s != rewards.RewardActive && s != rewards.RewardInactive {
			writeError(w, http.StatusBadRequest, "Invalid status (active or inactive)", nil)
			return
		}
		patch.Status = &s
	}
	if req.TargetedTrainees != nil {
		targeted := make([]progression.TraineeID, 0, len(*req.TargetedTrainees))
		for _, tid := range *req.TargetedTrainees {
			targeted = append(targeted, progression.TraineeID(tid))
		}
		patch.TargetedTrainees = &targeted
	}
	if req.Value != nil {
		v, err := decimal.NewFromString(*req.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid value (use a decimal string)", err)
			return
		}
		patch.Value = &v
	}

	reward, err := h.Engine.UpdateReward(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, "Failed to update reward", err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardDTO(*reward))
}

// RetireReward soft-retires a reward. History stays intact.
// DELETE /api/rewards/{id}
func (h *Handler) RetireReward(w http.ResponseWriter, r *http.Request) {
	id := rewards.RewardID(chi.URLParam(r, "id"))
	reward, err := h.Engine.RetireReward(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to retire reward", err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardDTO(*reward))
}

// GetRewardRedemptions returns every redemption of a reward.
// GET /api/rewards/{id}/redemptions
func (h *Handler) GetRewardRedemptions(w http.ResponseWriter, r *http.Request) {
	id := rewards.RewardID(chi.URLParam(r, "id"))
	reward, err := h.Store.GetReward(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reward", err)
		return
	}
	if reward == nil {
		writeError(w, http.StatusNotFound, "Reward not found", nil)
		return
	}

	recs, err := h.Store.RedemptionsByReward(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get redemptions", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTOs(recs))
}

// GetRewardStats returns the reward's redemption summary.
// GET /api/rewards/{id}/stats
func (h *Handler) GetRewardStats(w http.ResponseWriter, r *http.Request) {
	id := rewards.RewardID(chi.URLParam(r, "id"))
	stats, err := h.Engine.RewardStatsFor(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get reward stats", err)
		return
	}
	writeJSON(w, http.StatusOK, RewardStatsDTO{
		RewardID:    string(stats.RewardID),
		Redeemed:    stats.Redeemed,
		Remaining:   stats.Remaining,
		PointsSpent: stats.PointsSpent,
		CashValue:   stats.CashValue.String(),
	})
}

// =============================================================================
// REDEMPTION ENDPOINT
// =============================================================================

// Redeem exchanges points for a reward.
// POST /api/redemptions
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RewardID == "" || req.TraineeID == "" {
		writeError(w, http.StatusBadRequest, "reward_id and trainee_id are required", nil)
		return
	}

	rec, err := h.Engine.Redeem(r.Context(),
		rewards.RewardID(req.RewardID), progression.TraineeID(req.TraineeID))
	if err != nil {
		writeDomainError(w, "Redemption failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRedemptionDTO(*rec))
}

// =============================================================================
// LEVEL ENDPOINT
// =============================================================================

// ListLevels returns the level catalog.
// GET /api/levels
func (h *Handler) ListLevels(w http.ResponseWriter, r *http.Request) {
	levels := h.Engine.Catalog().Levels()
	dtos := make([]LevelDTO, 0, len(levels))
	for _, l := range levels {
		dtos = append(dtos, toLevelDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseSource(s string) (progression.PointSource, bool) {
	if s == "" {
		return progression.SourceAdjustment, true
	}
	switch src := progression.PointSource(s); src {
	case progression.SourceRegistration,
		progression.SourceCheckIn,
		progression.SourceCourseCompletion,
		progression.SourceAdjustment,
		progression.SourcePenalty:
		return src, true
	}
	// SourceRedemption is reserved for the engine's own debit path.
	return "", false
}

func toRedemptionDTOs(recs []rewards.Redemption) []RedemptionDTO {
	dtos := make([]RedemptionDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toRedemptionDTO(rec))
	}
	return dtos
}

// writeDomainError maps domain errors onto HTTP statuses: missing entities
// to 404, validation to 400, redemption gate failures to 409.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case rewards.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, rewards.ErrInvalidReward):
		writeError(w, http.StatusBadRequest, message, err)
	case rewards.IsClientError(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
