package services

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Session is the read-only projection of an authenticated identity
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	TokenID   string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionEventType describes a session lifecycle change
type SessionEventType string

const (
	SessionSignedIn  SessionEventType = "signed_in"
	SessionSignedOut SessionEventType = "signed_out"
	SessionExpired   SessionEventType = "expired"
)

// SessionEvent is published whenever a session is created or destroyed
type SessionEvent struct {
	Type    SessionEventType `json:"type"`
	Session Session          `json:"session"`
}

// SessionProvider fans out session changes to subscribers
type SessionProvider struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(SessionEvent)
}

// NewSessionProvider creates a new session provider
func NewSessionProvider() *SessionProvider {
	return &SessionProvider{subs: make(map[int]func(SessionEvent))}
}

// Subscribe registers fn for session events. The returned function removes the
// subscription and is safe to call more than once.
func (p *SessionProvider) Subscribe(fn func(SessionEvent)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber synchronously
func (p *SessionProvider) Publish(ev SessionEvent) {
	p.mu.RLock()
	fns := make([]func(SessionEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	log.Debug().
		Str("user_id", ev.Session.UserID).
		Str("event", string(ev.Type)).
		Int("subscribers", len(fns)).
		Msg("Session event")

	for _, fn := range fns {
		fn(ev)
	}
}
