// Package navigation holds the route table of the client shell, the rules
// that gate it on authentication, and the header visibility state machine.
package navigation

import (
	"strings"
	"sync"
)

// Route paths
const (
	PathSignIn  = "/"
	PathFeed    = "/feed"
	PathAddPost = "/addpost"
	PathNetwork = "/network"
)

// HideThreshold is the scroll offset past which scrolling down hides the header
const HideThreshold = 50

// Route is one entry of the route table
type Route struct {
	Path  string `json:"path"`
	View  string `json:"view"`
	Gated bool   `json:"gated"`
}

var routes = []Route{
	{Path: PathSignIn, View: "signin"},
	{Path: PathFeed, View: "feed", Gated: true},
	{Path: PathAddPost, View: "addpost", Gated: true},
	{Path: PathNetwork, View: "network", Gated: true},
}

// Routes returns the route table
func Routes() []Route {
	return append([]Route(nil), routes...)
}

// Resolution is the outcome of navigating to a path
type Resolution struct {
	Path     string `json:"path"`
	View     string `json:"view,omitempty"`
	Redirect bool   `json:"redirect"`
	NotFound bool   `json:"not_found"`
	// Links are the header links shown to an authenticated user
	Links []Route `json:"links"`
}

// Resolve decides which view to show for path. Gated routes send an
// unauthenticated visitor to the sign-in screen; an authenticated visitor
// on the sign-in screen is sent to the feed.
func Resolve(path string, authenticated bool) Resolution {
	path = normalize(path)

	var links []Route
	if authenticated {
		for _, r := range routes {
			if r.Gated {
				links = append(links, r)
			}
		}
	} else {
		links = []Route{}
	}

	route, ok := lookup(path)
	switch {
	case !ok:
		return Resolution{Path: path, NotFound: true, Links: links}
	case route.Gated && !authenticated:
		signIn, _ := lookup(PathSignIn)
		return Resolution{Path: signIn.Path, View: signIn.View, Redirect: true, Links: links}
	case route.Path == PathSignIn && authenticated:
		feed, _ := lookup(PathFeed)
		return Resolution{Path: feed.Path, View: feed.View, Redirect: true, Links: links}
	}
	return Resolution{Path: route.Path, View: route.View, Links: links}
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return PathSignIn
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = PathSignIn
		}
	}
	return strings.ToLower(path)
}

func lookup(path string) (Route, bool) {
	for _, r := range routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Header tracks header visibility from successive scroll positions of one client
type Header struct {
	mu   sync.Mutex
	last int
}

// NewHeader returns a header at scroll position 0
func NewHeader() *Header {
	return &Header{}
}

// Scroll records a new scroll position and returns whether the header is visible
func (h *Header) Scroll(y int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	visible := HeaderVisible(h.last, y)
	h.last = y
	return visible
}

// HeaderVisible is the stateless form of Header.Scroll
func HeaderVisible(previous, current int) bool {
	return !(current > previous && current > HideThreshold)
}
