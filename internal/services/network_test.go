package services

import (
	"context"
	"testing"

	"socialfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileIDs(ps []*models.Profile) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func allProfiles(ids ...string) *fakeProfiles {
	f := &fakeProfiles{}
	for _, id := range ids {
		f.profiles = append(f.profiles, &models.Profile{ID: id, Username: "user_" + id})
	}
	return f
}

func loadedView(t *testing.T, follows *fakeFollowStore, profiles *fakeProfiles, userID string) *NetworkView {
	t.Helper()
	v := NewNetworkView(follows, profiles, userID)
	require.NoError(t, v.Load(context.Background()))
	return v
}

func TestNetworkGroupsDerivation(t *testing.T) {
	follows := newFakeFollowStore(
		&models.FollowRecord{UserID: "me", Followers: []string{"a", "b"}, Following: []string{"c"}},
		&models.FollowRecord{UserID: "a", Following: []string{"me"}},
	)
	v := loadedView(t, follows, allProfiles("me", "a", "b", "c", "d"), "me")

	g := v.Groups()
	assert.Equal(t, []string{"a", "b"}, profileIDs(g.Followers))
	assert.Equal(t, []string{"c"}, profileIDs(g.Following))
	assert.Equal(t, []string{"a", "b", "d"}, profileIDs(g.Suggested))
}

func TestNetworkGroupsDropUnresolvedIDs(t *testing.T) {
	follows := newFakeFollowStore(
		&models.FollowRecord{UserID: "me", Followers: []string{"ghost", "a"}, Following: []string{"phantom"}},
	)
	v := loadedView(t, follows, allProfiles("me", "a"), "me")

	g := v.Groups()
	assert.Equal(t, []string{"a"}, profileIDs(g.Followers))
	assert.Empty(t, g.Following)
	assert.Equal(t, []string{"a"}, profileIDs(g.Suggested))
}

func TestNetworkGroupsWithoutOwnRecord(t *testing.T) {
	v := loadedView(t, newFakeFollowStore(), allProfiles("me", "a"), "me")
	g := v.Groups()
	assert.Empty(t, g.Followers)
	assert.Empty(t, g.Following)
	assert.Equal(t, []string{"a"}, profileIDs(g.Suggested))

	assert.ErrorIs(t, v.Follow(context.Background(), "a"), ErrFollowRecordNotFound)
}

func TestNetworkLoadPartialFailure(t *testing.T) {
	follows := newFakeFollowStore(&models.FollowRecord{UserID: "me", Following: []string{"a"}})
	follows.listErr = errBackend
	v := NewNetworkView(follows, allProfiles("me", "a", "b"), "me")

	err := v.Load(context.Background())
	assert.ErrorIs(t, err, errBackend)
	assert.True(t, v.Loaded())
	// profiles loaded, records did not
	assert.Equal(t, []string{"a", "b"}, profileIDs(v.Groups().Suggested))
}

func TestNetworkMutationRequiresLoad(t *testing.T) {
	v := NewNetworkView(newFakeFollowStore(), allProfiles(), "me")
	assert.ErrorIs(t, v.Follow(context.Background(), "a"), ErrNetworkNotLoaded)
}

func TestNetworkFollowAndUnfollow(t *testing.T) {
	ctx := context.Background()
	follows := newFakeFollowStore(&models.FollowRecord{UserID: "me", Following: []string{"c"}})
	v := loadedView(t, follows, allProfiles("me", "a", "c"), "me")

	require.NoError(t, v.Follow(ctx, "a"))
	assert.Equal(t, []string{"c", "a"}, v.Record().Following)
	assert.Equal(t, []string{"c", "a"}, follows.records["me"].Following)
	assert.Empty(t, v.Groups().Suggested)

	// following twice writes nothing
	require.NoError(t, v.Follow(ctx, "a"))
	assert.Len(t, follows.followingLog, 1)

	require.NoError(t, v.Unfollow(ctx, "c"))
	assert.Equal(t, []string{"a"}, follows.records["me"].Following)
	assert.Equal(t, []string{"c"}, profileIDs(v.Groups().Suggested))

	assert.ErrorIs(t, v.Follow(ctx, "me"), ErrSelfFollow)
}

func TestNetworkRemoveFollower(t *testing.T) {
	follows := newFakeFollowStore(&models.FollowRecord{UserID: "me", Followers: []string{"a", "b"}})
	v := loadedView(t, follows, allProfiles("me", "a", "b"), "me")

	require.NoError(t, v.RemoveFollower(context.Background(), "a"))
	assert.Equal(t, []string{"b"}, profileIDs(v.Groups().Followers))
	assert.Equal(t, [][]string{{"b"}}, follows.followersLog)
}

func TestNetworkMutationRollsBackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	follows := newFakeFollowStore(&models.FollowRecord{UserID: "me", Followers: []string{"b"}, Following: []string{"c"}})
	v := loadedView(t, follows, allProfiles("me", "a", "b", "c"), "me")
	follows.updateErr = errBackend

	err := v.Follow(ctx, "a")
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, []string{"c"}, v.Record().Following)

	err = v.RemoveFollower(ctx, "b")
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, []string{"b"}, v.Record().Followers)

	// the write was attempted with the optimistic list
	assert.Equal(t, [][]string{{"c", "a"}}, follows.followingLog)
}

type gatedFollowStore struct {
	*fakeFollowStore
	entered chan struct{}
	release chan error
}

func (g *gatedFollowStore) UpdateFollowing(ctx context.Context, userID string, following []string) error {
	g.entered <- struct{}{}
	if err := <-g.release; err != nil {
		return err
	}
	return g.fakeFollowStore.UpdateFollowing(ctx, userID, following)
}

func TestNetworkOptimisticStateVisibleBeforeWriteResolves(t *testing.T) {
	store := &gatedFollowStore{
		fakeFollowStore: newFakeFollowStore(&models.FollowRecord{UserID: "me"}),
		entered:         make(chan struct{}),
		release:         make(chan error),
	}
	v := NewNetworkView(store, allProfiles("me", "a"), "me")
	require.NoError(t, v.Load(context.Background()))

	done := make(chan error)
	go func() { done <- v.Follow(context.Background(), "a") }()

	<-store.entered
	assert.Equal(t, []string{"a"}, profileIDs(v.Groups().Following))

	store.release <- errBackend
	assert.ErrorIs(t, <-done, errBackend)
	assert.Empty(t, v.Groups().Following)
}
