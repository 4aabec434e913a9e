package models

import "time"

// User represents a user profile row
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	ProfilePicture string    `json:"profile_picture"`
	Bio            string    `json:"bio"`
	CreatedAt      time.Time `json:"created_at"`
}

// Profile is the public projection of a user shown in the network view
type Profile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
	Bio            string `json:"bio"`
}

// FollowRecord lists a user's followers and the users they follow.
// There is one record per user.
type FollowRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Followers []string  `json:"followers"`
	Following []string  `json:"following"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the record
func (f *FollowRecord) Clone() *FollowRecord {
	if f == nil {
		return nil
	}
	c := *f
	c.Followers = append([]string(nil), f.Followers...)
	c.Following = append([]string(nil), f.Following...)
	return &c
}

// Post represents a post created by a user
type Post struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	ImageURL  []string  `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedPost is a post joined with its author's display fields
type FeedPost struct {
	Post
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}
