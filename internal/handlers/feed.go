package handlers

import (
	"net/http"
	"strconv"

	"socialfeed/internal/middleware"
	"socialfeed/internal/models"
	"socialfeed/internal/services"
)

// FeedHandler handles feed HTTP requests
type FeedHandler struct {
	feed services.FeedPager
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feed services.FeedPager) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// FeedResponse is one feed page
type FeedResponse struct {
	Page  int                `json:"page"`
	Posts []*models.FeedPost `json:"posts"`
	// End is set when the page came back empty
	End bool `json:"end"`
}

// GetFeed handles GET /api/v1/feed
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		parsed, err := strconv.Atoi(pageStr)
		if err != nil {
			respondError(w, "page must be a number", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	posts, err := h.feed.Page(ctx, userID, page)
	if err != nil {
		respondServiceError(w, err, userID, "Error fetching news feed")
		return
	}
	if posts == nil {
		posts = []*models.FeedPost{}
	}

	respondJSON(w, http.StatusOK, FeedResponse{Page: page, Posts: posts, End: len(posts) == 0})
}
