package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"socialfeed/internal/models"
	"socialfeed/internal/repository"
	"socialfeed/internal/services"
)

var errBoom = errors.New("boom")

type fakeFeed struct {
	pages map[int][]*models.FeedPost
	err   error
	calls []int
}

func (f *fakeFeed) Page(ctx context.Context, userID string, page int) ([]*models.FeedPost, error) {
	f.calls = append(f.calls, page)
	if page < 1 {
		return nil, services.ErrInvalidPage
	}
	if f.err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrFeedUnavailable, f.err)
	}
	return f.pages[page], nil
}

type memFollows struct {
	mu        sync.Mutex
	records   map[string]*models.FollowRecord
	updateErr error
}

func newMemFollows(records ...*models.FollowRecord) *memFollows {
	m := &memFollows{records: map[string]*models.FollowRecord{}}
	for i, r := range records {
		r.ID = int64(i + 1)
		m.records[r.UserID] = r
	}
	return m
}

func (m *memFollows) GetByUserID(ctx context.Context, userID string) (*models.FollowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[userID]; ok {
		return r.Clone(), nil
	}
	return nil, repository.ErrNotFound
}

func (m *memFollows) List(ctx context.Context) ([]*models.FollowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.FollowRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memFollows) UpdateFollowing(ctx context.Context, userID string, following []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.records[userID].Following = append([]string(nil), following...)
	return nil
}

func (m *memFollows) UpdateFollowers(ctx context.Context, userID string, followers []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.records[userID].Followers = append([]string(nil), followers...)
	return nil
}

func (m *memFollows) failUpdates(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = err
}

func (m *memFollows) following(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.records[userID].Following...)
}

type staticProfiles []*models.Profile

func (p staticProfiles) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	return p, nil
}

func profiles(ids ...string) staticProfiles {
	out := make(staticProfiles, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Profile{ID: id, Username: "name-" + id})
	}
	return out
}

type submitCall struct {
	authorID string
	content  string
	media    []services.MediaFile
	bodies   [][]byte
}

type fakeComposer struct {
	limits services.ComposerLimits
	err    error
	recent []*models.Post
	calls  []submitCall
}

func (c *fakeComposer) Submit(ctx context.Context, authorID string, d services.Draft) (*services.SubmitResult, error) {
	call := submitCall{authorID: authorID, content: d.Content, media: d.Media}
	for _, m := range d.Media {
		b, _ := io.ReadAll(m.Body)
		call.bodies = append(call.bodies, b)
	}
	c.calls = append(c.calls, call)
	if c.err != nil {
		return nil, c.err
	}
	return &services.SubmitResult{
		Post:   &models.Post{ID: 1, UserID: authorID, Content: d.Content, ImageURL: []string{}},
		Tokens: services.ExtractTokens(d.Content),
		Recent: c.recent,
	}, nil
}

func (c *fakeComposer) Recent(ctx context.Context, authorID string) ([]*models.Post, error) {
	return c.recent, c.err
}

func (c *fakeComposer) Limits() services.ComposerLimits { return c.limits }

type fakeValidator map[string]services.Session

func (v fakeValidator) ValidateToken(ctx context.Context, token string) (services.Session, error) {
	if s, ok := v[token]; ok {
		return s, nil
	}
	return services.Session{}, services.ErrInvalidToken
}
