package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		authenticated bool
		wantPath      string
		wantView      string
		redirect      bool
		notFound      bool
	}{
		{"signin anonymous", "/", false, "/", "signin", false, false},
		{"signin authenticated", "/", true, "/feed", "feed", true, false},
		{"feed anonymous", "/feed", false, "/", "signin", true, false},
		{"feed authenticated", "/feed", true, "/feed", "feed", false, false},
		{"addpost anonymous", "/addpost", false, "/", "signin", true, false},
		{"network authenticated", "/network/", true, "/network", "network", false, false},
		{"query stripped", "/feed?x=1", true, "/feed", "feed", false, false},
		{"empty path", "", false, "/", "signin", false, false},
		{"unknown", "/settings", true, "/settings", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.path, tt.authenticated)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Equal(t, tt.wantView, got.View)
			assert.Equal(t, tt.redirect, got.Redirect)
			assert.Equal(t, tt.notFound, got.NotFound)
		})
	}
}

func TestResolveLinks(t *testing.T) {
	assert.Empty(t, Resolve("/", false).Links)

	links := Resolve("/feed", true).Links
	var paths []string
	for _, l := range links {
		paths = append(paths, l.Path)
	}
	assert.Equal(t, []string{"/feed", "/addpost", "/network"}, paths)
}

func TestHeader(t *testing.T) {
	h := NewHeader()

	assert.True(t, h.Scroll(30), "below threshold stays visible")
	assert.False(t, h.Scroll(80), "scrolling down past threshold hides")
	assert.False(t, h.Scroll(200))
	assert.True(t, h.Scroll(190), "any upward movement shows")
	assert.True(t, h.Scroll(190), "no movement shows")
	assert.False(t, h.Scroll(191))
	assert.True(t, h.Scroll(0), "back at the top")
}

func TestRoutesReturnsCopy(t *testing.T) {
	table := Routes()
	require.Len(t, table, 4)
	assert.Equal(t, PathSignIn, table[0].Path)
	assert.False(t, table[0].Gated)

	table[1].Gated = false
	assert.True(t, Routes()[1].Gated)
}

func TestHeaderVisible(t *testing.T) {
	assert.True(t, HeaderVisible(0, 50))
	assert.False(t, HeaderVisible(0, 51))
	assert.True(t, HeaderVisible(100, 60))
}
