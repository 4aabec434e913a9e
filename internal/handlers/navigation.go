package handlers

import (
	"net/http"
	"strconv"

	"socialfeed/internal/middleware"
	"socialfeed/internal/navigation"
)

// NavigationResponse describes what the shell should render
type NavigationResponse struct {
	navigation.Resolution
	Authenticated bool `json:"authenticated"`
	HeaderVisible bool `json:"header_visible"`
	// Routes is the full route table so the shell can prefetch views
	Routes []navigation.Route `json:"routes"`
}

// GetNavigation handles GET /api/v1/navigation
func GetNavigation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	_, authenticated := middleware.SessionFrom(r.Context())

	previous, err := intParam(q.Get("last_scroll_y"))
	if err != nil {
		respondError(w, "last_scroll_y must be a number", http.StatusBadRequest)
		return
	}
	current, err := intParam(q.Get("scroll_y"))
	if err != nil {
		respondError(w, "scroll_y must be a number", http.StatusBadRequest)
		return
	}

	res := navigation.Resolve(q.Get("path"), authenticated)
	status := http.StatusOK
	if res.NotFound {
		status = http.StatusNotFound
	}
	respondJSON(w, status, NavigationResponse{
		Resolution:    res,
		Authenticated: authenticated,
		HeaderVisible: navigation.HeaderVisible(previous, current),
		Routes:        navigation.Routes(),
	})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
