package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"socialfeed/internal/metrics"
	"socialfeed/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxPostChars  = 300
	DefaultMaxMediaBytes = 5 * 1024 * 1024
	DefaultRecentLimit   = 5
	// SuccessNoticeDuration is how long the post-created notice stays visible
	SuccessNoticeDuration = 3 * time.Second
)

var (
	mentionPattern = regexp.MustCompile(`@\w+`)
	hashtagPattern = regexp.MustCompile(`#\w+`)
)

// AcceptedMediaTypes lists the content types a post may carry
var AcceptedMediaTypes = map[string]bool{
	"image/jpeg":       true,
	"image/png":        true,
	"image/gif":        true,
	"video/mp4":        true,
	"video/avi":        true,
	"video/x-msvideo":  true,
	"video/mkv":        true,
	"video/x-matroska": true,
}

// Tokens are the mentions and hashtags found in post text
type Tokens struct {
	Mentions []string `json:"mentions"`
	Hashtags []string `json:"hashtags"`
}

// ExtractTokens scans text for @word and #word tokens in order of appearance
func ExtractTokens(text string) Tokens {
	t := Tokens{
		Mentions: mentionPattern.FindAllString(text, -1),
		Hashtags: hashtagPattern.FindAllString(text, -1),
	}
	if t.Mentions == nil {
		t.Mentions = []string{}
	}
	if t.Hashtags == nil {
		t.Hashtags = []string{}
	}
	return t
}

// MediaFile is one attachment of a draft
type MediaFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Draft is the composer input
type Draft struct {
	Content string
	Media   []MediaFile
}

// SubmitResult is returned after a post is created
type SubmitResult struct {
	Post            *models.Post   `json:"post"`
	Tokens          Tokens         `json:"tokens"`
	Recent          []*models.Post `json:"recent"`
	NoticeExpiresAt time.Time      `json:"notice_expires_at"`
}

// ComposerLimits bounds drafts
type ComposerLimits struct {
	MaxChars      int
	MaxMediaBytes int64
	RecentLimit   int
}

// Composer validates drafts, uploads their media and creates posts
type Composer struct {
	posts   PostStore
	objects ObjectStore
	limits  ComposerLimits
	now     func() time.Time
}

// NewComposer creates a new composer. Zero limits select the defaults.
func NewComposer(posts PostStore, objects ObjectStore, limits ComposerLimits) *Composer {
	if limits.MaxChars <= 0 {
		limits.MaxChars = DefaultMaxPostChars
	}
	if limits.MaxMediaBytes <= 0 {
		limits.MaxMediaBytes = DefaultMaxMediaBytes
	}
	if limits.RecentLimit <= 0 {
		limits.RecentLimit = DefaultRecentLimit
	}
	return &Composer{posts: posts, objects: objects, limits: limits, now: time.Now}
}

// Limits returns the composer limits in effect
func (c *Composer) Limits() ComposerLimits { return c.limits }

// Validate checks a draft without side effects
func (c *Composer) Validate(d Draft) error {
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(d.Content) > c.limits.MaxChars {
		return fmt.Errorf("%w (%d)", ErrContentTooLong, c.limits.MaxChars)
	}
	for _, m := range d.Media {
		if m.Size > c.limits.MaxMediaBytes {
			return fmt.Errorf("%w: %s", ErrMediaTooLarge, m.Name)
		}
		if !AcceptedMediaTypes[m.ContentType] {
			return fmt.Errorf("%w: %s", ErrUnsupportedMedia, m.ContentType)
		}
	}
	return nil
}

// Submit validates the draft, uploads its media, and creates the post.
// A failed upload leaves an empty URL at its position; it does not abort the post.
func (c *Composer) Submit(ctx context.Context, authorID string, d Draft) (*SubmitResult, error) {
	if err := c.Validate(d); err != nil {
		return nil, err
	}

	urls := c.uploadAll(ctx, authorID, d.Media)

	post := &models.Post{
		UserID:   authorID,
		Content:  d.Content,
		ImageURL: urls,
	}
	if err := c.posts.Create(ctx, post); err != nil {
		log.Error().Err(err).Str("user_id", authorID).Msg("Failed to insert post")
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	metrics.PostsCreated.Inc()

	log.Info().
		Str("user_id", authorID).
		Int64("post_id", post.ID).
		Int("media", len(urls)).
		Msg("Post created")

	recent, err := c.Recent(ctx, authorID)
	if err != nil {
		log.Error().Err(err).Str("user_id", authorID).Msg("Error fetching posts")
	}

	return &SubmitResult{
		Post:            post,
		Tokens:          ExtractTokens(d.Content),
		Recent:          recent,
		NoticeExpiresAt: c.now().Add(SuccessNoticeDuration),
	}, nil
}

// Recent returns the author's most recent posts
func (c *Composer) Recent(ctx context.Context, authorID string) ([]*models.Post, error) {
	return c.posts.ListRecentByUser(ctx, authorID, c.limits.RecentLimit)
}

// uploadAll uploads media concurrently and returns their public URLs in input order
func (c *Composer) uploadAll(ctx context.Context, authorID string, media []MediaFile) []string {
	urls := make([]string, len(media))
	if len(media) == 0 {
		return urls
	}

	now := c.now()
	var g errgroup.Group
	for i, m := range media {
		i, m := i, m
		key := MediaKey(now, i, m.Name)
		g.Go(func() error {
			err := c.objects.Upload(ctx, key, m.Body, m.Size, m.ContentType)
			metrics.MediaUploads.WithLabelValues(metrics.Result(err)).Inc()
			if err != nil {
				log.Error().Err(err).Str("user_id", authorID).Str("key", key).Msg("Image upload error")
				return nil
			}
			urls[i] = c.objects.PublicURL(key)
			return nil
		})
	}
	_ = g.Wait()
	return urls
}

// MediaKey builds the object key for the index-th upload of a submission:
// images/<unix-ms>_<index>_<basename>
func MediaKey(now time.Time, index int, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return fmt.Sprintf("images/%d_%d_%s", now.UnixMilli(), index, base)
}
