package services

import (
	"context"
	"fmt"
	"math"
	"sync"

	"socialfeed/internal/metrics"
	"socialfeed/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultFeedPageSize is the number of posts per feed page
	DefaultFeedPageSize = 10
	// SentinelThreshold is the visible fraction of the trailing sentinel that requests the next page
	SentinelThreshold = 0.5
)

// FeedService builds the following-based news feed
type FeedService struct {
	follows  FollowStore
	posts    PostStore
	pageSize int
}

// NewFeedService creates a new feed service. A non-positive pageSize selects DefaultFeedPageSize.
func NewFeedService(follows FollowStore, posts PostStore, pageSize int) *FeedService {
	if pageSize <= 0 {
		pageSize = DefaultFeedPageSize
	}
	return &FeedService{follows: follows, posts: posts, pageSize: pageSize}
}

// PageSize returns the configured page size
func (s *FeedService) PageSize() int { return s.pageSize }

// Page returns page (1-based) of posts written by userID or anyone userID follows, newest first.
// Pages whose offset would overflow an int are rejected with ErrInvalidPage.
func (s *FeedService) Page(ctx context.Context, userID string, page int) ([]*models.FeedPost, error) {
	if page < 1 || page > math.MaxInt/s.pageSize {
		return nil, ErrInvalidPage
	}

	posts, err := s.page(ctx, userID, page)
	label := metrics.Result(err)
	if err == nil && len(posts) == 0 {
		label = "empty"
	}
	metrics.FeedPages.WithLabelValues(label).Inc()
	return posts, err
}

func (s *FeedService) page(ctx context.Context, userID string, page int) ([]*models.FeedPost, error) {
	rec, err := s.follows.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	authors := feedAuthors(userID, rec.Following)
	posts, err := s.posts.ListByAuthors(ctx, authors, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	return posts, nil
}

// feedAuthors returns following ∪ {self} without duplicates, preserving order
func feedAuthors(self string, following []string) []string {
	seen := make(map[string]struct{}, len(following)+1)
	authors := make([]string, 0, len(following)+1)
	for _, id := range append(append([]string(nil), following...), self) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		authors = append(authors, id)
	}
	return authors
}

// FeedPager fetches a single feed page
type FeedPager interface {
	Page(ctx context.Context, userID string, page int) ([]*models.FeedPost, error)
}

// FeedPaginator accumulates feed pages for one viewer.
//
// Pages are requested in strictly increasing order. An empty page latches
// end-of-stream and no further page is requested until Reset. Fetched pages
// are appended as-is, so a post shifted across a page boundary by concurrent
// inserts shows up twice.
type FeedPaginator struct {
	pager  FeedPager
	userID string

	mu         sync.Mutex
	page       int
	posts      []*models.FeedPost
	loading    bool
	endReached bool
	generation int
	err        error
}

// NewFeedPaginator creates a paginator for userID
func NewFeedPaginator(pager FeedPager, userID string) *FeedPaginator {
	return &FeedPaginator{pager: pager, userID: userID}
}

// LoadNext fetches the next page and returns the posts it added.
// It is a no-op while a fetch is in flight or after end-of-stream.
func (p *FeedPaginator) LoadNext(ctx context.Context) ([]*models.FeedPost, error) {
	p.mu.Lock()
	if p.loading || p.endReached {
		p.mu.Unlock()
		return nil, nil
	}
	p.loading = true
	p.err = nil
	next := p.page + 1
	gen := p.generation
	p.mu.Unlock()

	posts, err := p.pager.Page(ctx, p.userID, next)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		// Reset while in flight; the result belongs to the discarded stream
		return nil, nil
	}
	p.loading = false
	if err != nil {
		p.err = err
		log.Error().Err(err).Str("user_id", p.userID).Int("page", next).Msg("Error fetching news feed")
		return nil, err
	}
	if len(posts) == 0 {
		p.endReached = true
		return nil, nil
	}
	p.page = next
	p.posts = append(p.posts, posts...)
	return posts, nil
}

// OnSentinelVisible is called when the trailing sentinel's visible fraction changes.
// It requests the next page when ratio reaches SentinelThreshold and the paginator is idle.
func (p *FeedPaginator) OnSentinelVisible(ctx context.Context, ratio float64) (bool, []*models.FeedPost, error) {
	if ratio < SentinelThreshold {
		return false, nil, nil
	}
	p.mu.Lock()
	idle := !p.loading && !p.endReached
	p.mu.Unlock()
	if !idle {
		return false, nil, nil
	}
	posts, err := p.LoadNext(ctx)
	return true, posts, err
}

// Reset discards accumulated posts and clears end-of-stream so the next load starts at page 1
func (p *FeedPaginator) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.page = 0
	p.posts = nil
	p.loading = false
	p.endReached = false
	p.err = nil
}

// Posts returns a copy of every post loaded so far
func (p *FeedPaginator) Posts() []*models.FeedPost {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.FeedPost(nil), p.posts...)
}

// Page returns the last page successfully loaded, 0 before the first
func (p *FeedPaginator) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// EndReached reports whether an empty page has been returned
func (p *FeedPaginator) EndReached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endReached
}

// Loading reports whether a fetch is in flight
func (p *FeedPaginator) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Err returns the error of the most recent fetch, if it failed
func (p *FeedPaginator) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
