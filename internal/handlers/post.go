package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"

	"socialfeed/internal/middleware"
	"socialfeed/internal/models"
	"socialfeed/internal/services"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const (
	multipartMemory = 8 << 20
	maxMediaFiles   = 10
)

// PostComposer validates and creates posts
type PostComposer interface {
	Submit(ctx context.Context, authorID string, d services.Draft) (*services.SubmitResult, error)
	Recent(ctx context.Context, authorID string) ([]*models.Post, error)
	Limits() services.ComposerLimits
}

// PostNotifier announces newly created posts to connected readers
type PostNotifier interface {
	NotifyPostCreated(ctx context.Context, post *models.Post) (int, error)
}

// PostHandler handles post HTTP requests
type PostHandler struct {
	composer PostComposer
	notifier PostNotifier
}

// NewPostHandler creates a new post handler. notifier may be nil.
func NewPostHandler(composer PostComposer, notifier PostNotifier) *PostHandler {
	return &PostHandler{composer: composer, notifier: notifier}
}

// CreatePost handles POST /api/v1/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	limits := h.composer.Limits()

	// one extra media ceiling of slack for multipart framing and the text field
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxMediaFiles+1)*limits.MaxMediaBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, services.ErrMediaTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["media"]
	if len(headers) > maxMediaFiles {
		respondError(w, fmt.Sprintf("at most %d media files per post", maxMediaFiles), http.StatusBadRequest)
		return
	}

	draft := services.Draft{Content: r.FormValue("content")}
	for _, fh := range headers {
		media, closeFn, err := openMedia(fh)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("filename", fh.Filename).Msg("Failed to read upload")
			respondError(w, "Invalid media file", http.StatusBadRequest)
			return
		}
		defer closeFn()
		draft.Media = append(draft.Media, media)
	}

	result, err := h.composer.Submit(ctx, userID, draft)
	if err != nil {
		respondServiceError(w, err, userID, "Post submission failed")
		return
	}

	if h.notifier != nil && result.Post != nil {
		go h.notify(context.WithoutCancel(ctx), result.Post)
	}

	respondJSON(w, http.StatusCreated, result)
}

func (h *PostHandler) notify(ctx context.Context, post *models.Post) {
	n, err := h.notifier.NotifyPostCreated(ctx, post)
	if err != nil {
		log.Warn().Err(err).Int64("post_id", post.ID).Msg("Failed to announce new post")
		return
	}
	log.Debug().Int64("post_id", post.ID).Int("notified", n).Msg("New post announced")
}

// openMedia opens an uploaded file and sniffs its content type from its bytes
func openMedia(fh *multipart.FileHeader) (services.MediaFile, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return services.MediaFile{}, nil, err
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return services.MediaFile{}, nil, fmt.Errorf("failed to detect media type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return services.MediaFile{}, nil, err
	}

	contentType, _, _ := strings.Cut(mtype.String(), ";")
	return services.MediaFile{
		Name:        fh.Filename,
		ContentType: strings.TrimSpace(contentType),
		Size:        fh.Size,
		Body:        f,
	}, func() { f.Close() }, nil
}

// GetRecent handles GET /api/v1/posts/recent
func (h *PostHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	posts, err := h.composer.Recent(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Error fetching posts")
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// TokensRequest carries draft text
type TokensRequest struct {
	Content string `json:"content"`
}

// TokensResponse is the live composer preview of a draft
type TokensResponse struct {
	services.Tokens
	Chars     int  `json:"chars"`
	Remaining int  `json:"remaining"`
	CanSubmit bool `json:"can_submit"`
}

// PreviewTokens handles POST /api/v1/posts/tokens
func (h *PostHandler) PreviewTokens(w http.ResponseWriter, r *http.Request) {
	var req TokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	maxChars := h.composer.Limits().MaxChars
	chars := utf8.RuneCountInString(req.Content)
	respondJSON(w, http.StatusOK, TokensResponse{
		Tokens:    services.ExtractTokens(req.Content),
		Chars:     chars,
		Remaining: maxChars - chars,
		CanSubmit: strings.TrimSpace(req.Content) != "" && chars <= maxChars,
	})
}
