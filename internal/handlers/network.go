package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"socialfeed/internal/middleware"
	"socialfeed/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// NetworkHandler handles follow relationship HTTP requests
type NetworkHandler struct {
	follows  services.FollowStore
	profiles services.ProfileSource
}

// NewNetworkHandler creates a new network handler
func NewNetworkHandler(follows services.FollowStore, profiles services.ProfileSource) *NetworkHandler {
	return &NetworkHandler{follows: follows, profiles: profiles}
}

// FollowRequest represents the request body for following a user
type FollowRequest struct {
	UserID string `json:"user_id"`
}

// load builds a fresh view of the caller's network
func (h *NetworkHandler) load(ctx context.Context, userID string) (*services.NetworkView, error) {
	view := services.NewNetworkView(h.follows, h.profiles, userID)
	if err := view.Load(ctx); err != nil {
		return nil, err
	}
	return view, nil
}

// GetNetwork handles GET /api/v1/network
func (h *NetworkHandler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	view, err := h.load(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Error fetching network")
		return
	}
	respondJSON(w, http.StatusOK, view.Groups())
}

// Follow handles POST /api/v1/network/following
func (h *NetworkHandler) Follow(w http.ResponseWriter, r *http.Request) {
	var req FollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		respondError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	h.mutate(w, r, "follow", req.UserID, (*services.NetworkView).Follow)
}

// Unfollow handles DELETE /api/v1/network/following/{user_id}
func (h *NetworkHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "unfollow", chi.URLParam(r, "user_id"), (*services.NetworkView).Unfollow)
}

// RemoveFollower handles DELETE /api/v1/network/followers/{user_id}
func (h *NetworkHandler) RemoveFollower(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "remove_follower", chi.URLParam(r, "user_id"), (*services.NetworkView).RemoveFollower)
}

func (h *NetworkHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	action, targetID string,
	apply func(*services.NetworkView, context.Context, string) error,
) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	view, err := h.load(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Error fetching network")
		return
	}
	if err := apply(view, ctx, targetID); err != nil {
		respondServiceError(w, err, userID, "Relationship update failed")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("target_id", targetID).
		Str("action", action).
		Msg("Relationship updated")

	respondJSON(w, http.StatusOK, view.Groups())
}
