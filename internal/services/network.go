package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"socialfeed/internal/metrics"
	"socialfeed/internal/models"

	"github.com/rs/zerolog/log"
)

// NetworkGroups are the followers, following and suggested profiles of a viewer
type NetworkGroups struct {
	Followers []*models.Profile `json:"followers"`
	Following []*models.Profile `json:"following"`
	Suggested []*models.Profile `json:"suggested"`
}

// NetworkView is an in-memory projection of every follow record and profile,
// seen from one viewer. Mutations are applied to the projection before they
// are persisted and reverted if persisting fails.
type NetworkView struct {
	follows  FollowStore
	profiles ProfileSource
	userID   string

	mu           sync.Mutex
	loaded       bool
	records      []*models.FollowRecord
	profileByID  map[string]*models.Profile
	profileOrder []*models.Profile
}

// NewNetworkView creates a network view for userID
func NewNetworkView(follows FollowStore, profiles ProfileSource, userID string) *NetworkView {
	return &NetworkView{
		follows:     follows,
		profiles:    profiles,
		userID:      userID,
		profileByID: make(map[string]*models.Profile),
	}
}

// Load fetches all follow records and all profiles. The two fetches are
// independent: whichever succeeds replaces its half of the projection.
func (v *NetworkView) Load(ctx context.Context) error {
	records, followsErr := v.follows.List(ctx)
	if followsErr != nil {
		log.Error().Err(followsErr).Str("user_id", v.userID).Msg("Failed to load follow records")
	}
	profiles, profilesErr := v.profiles.ListProfiles(ctx)
	if profilesErr != nil {
		log.Error().Err(profilesErr).Str("user_id", v.userID).Msg("Failed to load profiles")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if followsErr == nil {
		v.records = records
	}
	if profilesErr == nil {
		v.profileOrder = profiles
		v.profileByID = make(map[string]*models.Profile, len(profiles))
		for _, p := range profiles {
			v.profileByID[p.ID] = p
		}
	}
	v.loaded = true

	return errors.Join(followsErr, profilesErr)
}

// Loaded reports whether Load has completed at least once
func (v *NetworkView) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// ownIndex returns the index of the viewer's record; callers hold v.mu
func (v *NetworkView) ownIndex() int {
	return slices.IndexFunc(v.records, func(r *models.FollowRecord) bool { return r.UserID == v.userID })
}

// resolve maps ids to loaded profiles, silently dropping unknown ids; callers hold v.mu
func (v *NetworkView) resolve(ids []string) []*models.Profile {
	out := make([]*models.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := v.profileByID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Groups derives followers, following and suggested from the projection.
// Suggested is every profile except the viewer and anyone the viewer follows.
func (v *NetworkView) Groups() NetworkGroups {
	v.mu.Lock()
	defer v.mu.Unlock()

	var own *models.FollowRecord
	if i := v.ownIndex(); i >= 0 {
		own = v.records[i]
	}

	groups := NetworkGroups{
		Followers: []*models.Profile{},
		Following: []*models.Profile{},
		Suggested: []*models.Profile{},
	}
	followed := map[string]struct{}{}
	if own != nil {
		groups.Followers = v.resolve(own.Followers)
		groups.Following = v.resolve(own.Following)
		for _, id := range own.Following {
			followed[id] = struct{}{}
		}
	}
	for _, p := range v.profileOrder {
		if p.ID == v.userID {
			continue
		}
		if _, ok := followed[p.ID]; ok {
			continue
		}
		groups.Suggested = append(groups.Suggested, p)
	}
	return groups
}

// Record returns a copy of the viewer's follow record, or nil when absent
func (v *NetworkView) Record() *models.FollowRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i := v.ownIndex(); i >= 0 {
		return v.records[i].Clone()
	}
	return nil
}

// Follow adds targetID to the viewer's following list
func (v *NetworkView) Follow(ctx context.Context, targetID string) error {
	if targetID == v.userID {
		return ErrSelfFollow
	}
	return v.mutate(ctx, "follow", targetID,
		func(rec *models.FollowRecord) bool {
			if slices.Contains(rec.Following, targetID) {
				return false
			}
			rec.Following = append(rec.Following, targetID)
			return true
		},
		func(ctx context.Context, rec *models.FollowRecord) error {
			return v.follows.UpdateFollowing(ctx, v.userID, rec.Following)
		},
	)
}

// Unfollow removes targetID from the viewer's following list
func (v *NetworkView) Unfollow(ctx context.Context, targetID string) error {
	return v.mutate(ctx, "unfollow", targetID,
		func(rec *models.FollowRecord) bool {
			before := len(rec.Following)
			rec.Following = without(rec.Following, targetID)
			return len(rec.Following) != before
		},
		func(ctx context.Context, rec *models.FollowRecord) error {
			return v.follows.UpdateFollowing(ctx, v.userID, rec.Following)
		},
	)
}

// RemoveFollower removes followerID from the viewer's followers list
func (v *NetworkView) RemoveFollower(ctx context.Context, followerID string) error {
	return v.mutate(ctx, "remove_follower", followerID,
		func(rec *models.FollowRecord) bool {
			before := len(rec.Followers)
			rec.Followers = without(rec.Followers, followerID)
			return len(rec.Followers) != before
		},
		func(ctx context.Context, rec *models.FollowRecord) error {
			return v.follows.UpdateFollowers(ctx, v.userID, rec.Followers)
		},
	)
}

// mutate applies change to the viewer's record, releases the lock while persist
// runs, and restores the pre-mutation record if persist fails.
func (v *NetworkView) mutate(
	ctx context.Context,
	action, targetID string,
	change func(rec *models.FollowRecord) bool,
	persist func(ctx context.Context, rec *models.FollowRecord) error,
) error {
	v.mu.Lock()
	if !v.loaded {
		v.mu.Unlock()
		return ErrNetworkNotLoaded
	}
	i := v.ownIndex()
	if i < 0 {
		v.mu.Unlock()
		return ErrFollowRecordNotFound
	}
	snapshot := v.records[i]
	updated := snapshot.Clone()
	if !change(updated) {
		v.mu.Unlock()
		return nil
	}
	v.records[i] = updated
	v.mu.Unlock()

	err := persist(ctx, updated.Clone())
	if err == nil {
		metrics.RelationshipMutations.WithLabelValues(action, "ok").Inc()
		return nil
	}

	v.mu.Lock()
	// a later mutation may already have replaced our record; only undo our own write
	if j := v.ownIndex(); j >= 0 && v.records[j] == updated {
		v.records[j] = snapshot
	}
	v.mu.Unlock()

	metrics.RelationshipMutations.WithLabelValues(action, "rollback").Inc()
	log.Error().
		Err(err).
		Str("user_id", v.userID).
		Str("target_id", targetID).
		Str("action", action).
		Msg("Relationship update failed, local state reverted")
	return fmt.Errorf("failed to %s %s: %w", action, targetID, err)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
