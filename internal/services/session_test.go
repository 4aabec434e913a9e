package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionProviderSubscribeAndTeardown(t *testing.T) {
	p := NewSessionProvider()

	var a, b []SessionEvent
	unsubA := p.Subscribe(func(ev SessionEvent) { a = append(a, ev) })
	unsubB := p.Subscribe(func(ev SessionEvent) { b = append(b, ev) })

	p.Publish(SessionEvent{Type: SessionSignedIn, Session: Session{UserID: "u1"}})
	unsubA()
	unsubA()
	p.Publish(SessionEvent{Type: SessionSignedOut, Session: Session{UserID: "u1"}})
	unsubB()
	p.Publish(SessionEvent{Type: SessionExpired, Session: Session{UserID: "u1"}})

	assert.Len(t, a, 1)
	assert.Equal(t, SessionSignedIn, a[0].Type)
	assert.Len(t, b, 2)
	assert.Equal(t, SessionSignedOut, b[1].Type)
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, Session{}.Expired(now))
	assert.False(t, Session{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Session{ExpiresAt: now}.Expired(now))
}
