package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"socialfeed/internal/models"
	"socialfeed/internal/repository"
)

var errBackend = errors.New("backend unavailable")

type fakeFollowStore struct {
	mu           sync.Mutex
	records      map[string]*models.FollowRecord
	getErr       error
	listErr      error
	updateErr    error
	followingLog [][]string
	followersLog [][]string
}

func newFakeFollowStore(records ...*models.FollowRecord) *fakeFollowStore {
	s := &fakeFollowStore{records: make(map[string]*models.FollowRecord)}
	for i, r := range records {
		r.ID = int64(i + 1)
		s.records[r.UserID] = r
	}
	return s
}

func (s *fakeFollowStore) GetByUserID(ctx context.Context, userID string) (*models.FollowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("follow record for %q: %w", userID, repository.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *fakeFollowStore) List(ctx context.Context) ([]*models.FollowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]*models.FollowRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeFollowStore) UpdateFollowing(ctx context.Context, userID string, following []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followingLog = append(s.followingLog, append([]string(nil), following...))
	if s.updateErr != nil {
		return s.updateErr
	}
	s.records[userID].Following = append([]string(nil), following...)
	return nil
}

func (s *fakeFollowStore) UpdateFollowers(ctx context.Context, userID string, followers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followersLog = append(s.followersLog, append([]string(nil), followers...))
	if s.updateErr != nil {
		return s.updateErr
	}
	s.records[userID].Followers = append([]string(nil), followers...)
	return nil
}

type fakePostStore struct {
	mu        sync.Mutex
	posts     []*models.Post
	usernames map[string]string
	nextID    int64
	createErr error
	listErr   error
	listCalls int
	created   []*models.Post
}

func newFakePostStore(posts ...*models.Post) *fakePostStore {
	s := &fakePostStore{usernames: map[string]string{}}
	for _, p := range posts {
		s.nextID++
		if p.ID == 0 {
			p.ID = s.nextID
		}
		s.posts = append(s.posts, p)
	}
	return s
}

func (s *fakePostStore) Create(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	post.ID = s.nextID
	post.CreatedAt = time.Unix(1_700_000_000+s.nextID, 0)
	cp := *post
	s.posts = append(s.posts, &cp)
	s.created = append(s.created, &cp)
	return nil
}

func (s *fakePostStore) sorted() []*models.Post {
	out := append([]*models.Post(nil), s.posts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *fakePostStore) ListByAuthors(ctx context.Context, authors []string, limit, offset int) ([]*models.FeedPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	in := make(map[string]bool, len(authors))
	for _, a := range authors {
		in[a] = true
	}
	var matched []*models.FeedPost
	for _, p := range s.sorted() {
		if !in[p.UserID] {
			continue
		}
		name, ok := s.usernames[p.UserID]
		if !ok {
			name = "Unknown"
		}
		matched = append(matched, &models.FeedPost{Post: *p, Username: name})
	}
	if offset >= len(matched) {
		return []*models.FeedPost{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *fakePostStore) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Post
	for _, p := range s.sorted() {
		if p.UserID == userID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	profiles []*models.Profile
	err      error
}

func (f *fakeProfiles) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	return f.profiles, f.err
}

type uploadCall struct {
	key         string
	size        int64
	contentType string
	body        []byte
}

type fakeObjectStore struct {
	mu      sync.Mutex
	calls   []uploadCall
	failKey func(key string) bool
}

func (s *fakeObjectStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, _ := io.ReadAll(body)
	s.mu.Lock()
	s.calls = append(s.calls, uploadCall{key: key, size: size, contentType: contentType, body: data})
	s.mu.Unlock()
	if s.failKey != nil && s.failKey(key) {
		return errBackend
	}
	return nil
}

func (s *fakeObjectStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (s *fakeObjectStore) uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newMedia(name, contentType string, size int) MediaFile {
	return MediaFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(size),
		Body:        bytes.NewReader(make([]byte, size)),
	}
}
