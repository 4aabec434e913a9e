package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"socialfeed/internal/models"
	"socialfeed/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type part struct {
	name string
	body []byte
}

func multipartRequest(t *testing.T, content string, files ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("content", content))
	for _, f := range files {
		fw, err := mw.CreateFormFile("media", f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return authed(req, "u1")
}

func defaultLimits() services.ComposerLimits {
	return services.ComposerLimits{MaxChars: 300, MaxMediaBytes: 5 << 20, RecentLimit: 5}
}

func TestCreatePost(t *testing.T) {
	composer := &fakeComposer{limits: defaultLimits()}
	h := NewPostHandler(composer, nil)

	rec := httptest.NewRecorder()
	h.CreatePost(rec, multipartRequest(t, "hello @bob #go",
		part{name: "cat.png", body: pngBytes},
		part{name: "notes.txt", body: []byte("just text")},
	))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, composer.calls, 1)
	call := composer.calls[0]
	assert.Equal(t, "u1", call.authorID)
	assert.Equal(t, "hello @bob #go", call.content)
	require.Len(t, call.media, 2)
	assert.Equal(t, "cat.png", call.media[0].Name)
	assert.Equal(t, "image/png", call.media[0].ContentType)
	assert.Equal(t, int64(len(pngBytes)), call.media[0].Size)
	assert.Equal(t, pngBytes, call.bodies[0], "body is rewound after sniffing")
	assert.Equal(t, "text/plain", call.media[1].ContentType)

	var result services.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []string{"@bob"}, result.Tokens.Mentions)
	assert.Equal(t, []string{"#go"}, result.Tokens.Hashtags)
}

type chanNotifier chan *models.Post

func (n chanNotifier) NotifyPostCreated(ctx context.Context, post *models.Post) (int, error) {
	n <- post
	return 1, nil
}

func TestCreatePostAnnouncesNewPost(t *testing.T) {
	notifier := make(chanNotifier, 1)
	h := NewPostHandler(&fakeComposer{limits: defaultLimits()}, notifier)

	rec := httptest.NewRecorder()
	h.CreatePost(rec, multipartRequest(t, "fresh"))
	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case post := <-notifier:
		assert.Equal(t, "u1", post.UserID)
		assert.Equal(t, "fresh", post.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("new post was not announced")
	}
}

func TestCreatePostFailureIsNotAnnounced(t *testing.T) {
	notifier := make(chanNotifier, 1)
	h := NewPostHandler(&fakeComposer{limits: defaultLimits(), err: services.ErrEmptyContent}, notifier)

	rec := httptest.NewRecorder()
	h.CreatePost(rec, multipartRequest(t, ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	select {
	case post := <-notifier:
		t.Fatalf("unexpected announcement for post %d", post.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCreatePostErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"empty", services.ErrEmptyContent, http.StatusBadRequest, "Post content cannot be empty."},
		{"too large", fmt.Errorf("%w: big.png", services.ErrMediaTooLarge), http.StatusRequestEntityTooLarge, "Image size must be less than 5MB"},
		{"unsupported", fmt.Errorf("%w: text/plain", services.ErrUnsupportedMedia), http.StatusBadRequest, "Unsupported file type"},
		{"insert failed", fmt.Errorf("%w: %w", services.ErrSubmitFailed, errBoom), http.StatusBadGateway, "Post submission failed. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPostHandler(&fakeComposer{limits: defaultLimits(), err: tt.err}, nil)
			rec := httptest.NewRecorder()
			h.CreatePost(rec, multipartRequest(t, "x"))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestCreatePostRejectsBadForm(t *testing.T) {
	composer := &fakeComposer{limits: defaultLimits()}
	h := NewPostHandler(composer, nil)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader("nope")), "u1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.CreatePost(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, composer.calls)
}

func TestCreatePostBodyLimit(t *testing.T) {
	limits := defaultLimits()
	limits.MaxMediaBytes = 16
	composer := &fakeComposer{limits: limits}
	h := NewPostHandler(composer, nil)

	rec := httptest.NewRecorder()
	h.CreatePost(rec, multipartRequest(t, "hi", part{name: "big.png", body: make([]byte, 1024)}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, composer.calls)
}

func TestGetRecent(t *testing.T) {
	h := NewPostHandler(&fakeComposer{limits: defaultLimits()}, nil)
	rec := httptest.NewRecorder()
	h.GetRecent(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/posts/recent", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"posts":[]}`, rec.Body.String())

	h = NewPostHandler(&fakeComposer{limits: defaultLimits(), recent: []*models.Post{{ID: 7, UserID: "u1", Content: "hi"}}}, nil)
	rec = httptest.NewRecorder()
	h.GetRecent(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/posts/recent", nil), "u1"))
	assert.Contains(t, rec.Body.String(), `"content":"hi"`)
}

func TestPreviewTokens(t *testing.T) {
	limits := defaultLimits()
	limits.MaxChars = 10
	h := NewPostHandler(&fakeComposer{limits: limits}, nil)

	tests := []struct {
		content   string
		chars     int
		canSubmit bool
	}{
		{"@ann #x", 7, true},
		{"   ", 3, false},
		{"@ann #xyz long", 14, false},
	}
	for _, tt := range tests {
		body, _ := json.Marshal(TokensRequest{Content: tt.content})
		rec := httptest.NewRecorder()
		h.PreviewTokens(rec, httptest.NewRequest(http.MethodPost, "/api/v1/posts/tokens", bytes.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TokensResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tt.chars, resp.Chars, tt.content)
		assert.Equal(t, 10-tt.chars, resp.Remaining, tt.content)
		assert.Equal(t, tt.canSubmit, resp.CanSubmit, tt.content)
	}
}
