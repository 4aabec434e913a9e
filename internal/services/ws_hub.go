package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"socialfeed/internal/models"
	"socialfeed/internal/navigation"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocket message types
const (
	MsgFeedVisible    = "feed_visible"
	MsgFeedReset      = "feed_reset"
	MsgFeedPage       = "feed_page"
	MsgFeedEnd        = "feed_end"
	MsgNetworkLoad    = "network_load"
	MsgFollow         = "follow"
	MsgUnfollow       = "unfollow"
	MsgRemoveFollower = "remove_follower"
	MsgNetwork        = "network"
	MsgSession        = "session"
	MsgScroll         = "scroll"
	MsgHeader         = "header"
	MsgPostCreated    = "post_created"
	MsgError          = "error"
)

// DefaultWriteWait bounds a single write to a WebSocket peer
const DefaultWriteWait = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Ratio   float64     `json:"ratio,omitempty"`
	UserID  string      `json:"user_id,omitempty"`
	Page    int         `json:"page,omitempty"`
	ScrollY int         `json:"scroll_y,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WSClient is one live connection together with the feed, network and header state it has mounted
type WSClient struct {
	conn    *websocket.Conn
	session Session
	Feed    *FeedPaginator
	Network *NetworkView
	Header  *navigation.Header

	writeMu   sync.Mutex
	writeWait time.Duration
	expiry    *time.Timer
}

// Session returns the session the connection was opened with
func (c *WSClient) Session() Session { return c.session }

// Send writes message to the connection. A peer that stops reading fails the
// write once the hub's write timeout elapses.
func (c *WSClient) Send(message WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendError writes an error message to the connection
func (c *WSClient) SendError(message string) {
	if err := c.Send(WSMessage{Type: MsgError, Message: message}); err != nil {
		log.Error().Err(err).Str("user_id", c.session.UserID).Msg("Failed to send error message")
	}
}

// WSHub manages WebSocket connections
type WSHub struct {
	feed     FeedPager
	follows  FollowStore
	profiles ProfileSource
	sessions *SessionProvider
	// writeWait bounds each write so a stalled peer cannot block publishers
	writeWait time.Duration

	mu          sync.RWMutex
	connections map[string]map[*WSClient]struct{}
	unsubscribe func()
}

// NewWSHub creates a new WebSocket hub subscribed to session changes.
// A non-positive writeWait selects DefaultWriteWait.
func NewWSHub(feed FeedPager, follows FollowStore, profiles ProfileSource, sessions *SessionProvider, writeWait time.Duration) *WSHub {
	if writeWait <= 0 {
		writeWait = DefaultWriteWait
	}
	h := &WSHub{
		feed:        feed,
		follows:     follows,
		profiles:    profiles,
		sessions:    sessions,
		writeWait:   writeWait,
		connections: make(map[string]map[*WSClient]struct{}),
	}
	h.unsubscribe = sessions.Subscribe(h.onSessionEvent)
	return h
}

// Register registers a new WebSocket connection for session
func (h *WSHub) Register(session Session, conn *websocket.Conn) *WSClient {
	client := &WSClient{
		conn:      conn,
		session:   session,
		Feed:      NewFeedPaginator(h.feed, session.UserID),
		Network:   NewNetworkView(h.follows, h.profiles, session.UserID),
		Header:    navigation.NewHeader(),
		writeWait: h.writeWait,
	}

	if !session.ExpiresAt.IsZero() {
		client.expiry = time.AfterFunc(time.Until(session.ExpiresAt), func() {
			h.sessions.Publish(SessionEvent{Type: SessionExpired, Session: session})
		})
	}

	h.mu.Lock()
	set, ok := h.connections[session.UserID]
	if !ok {
		set = make(map[*WSClient]struct{})
		h.connections[session.UserID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()

	log.Info().Str("user_id", session.UserID).Msg("WebSocket connection registered")
	return client
}

// Unregister removes a WebSocket connection
func (h *WSHub) Unregister(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, exists := h.connections[client.session.UserID]
	if !exists {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.connections, client.session.UserID)
	}
	if client.expiry != nil {
		client.expiry.Stop()
	}
	client.conn.Close()
	log.Info().Str("user_id", client.session.UserID).Msg("WebSocket connection unregistered")
}

// SendToUser sends a message to every connection of a user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	clients := h.clients(userID, "")
	if len(clients) == 0 {
		return fmt.Errorf("user %s is not connected", userID)
	}

	var firstErr error
	for _, c := range clients {
		if err := c.Send(message); err != nil {
			h.Unregister(c)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NotifyPostCreated tells the author and every connected follower of the
// author that a new post exists, so their feeds can be reset. It returns the
// number of users notified.
func (h *WSHub) NotifyPostCreated(ctx context.Context, post *models.Post) (int, error) {
	records, err := h.follows.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list follow records: %w", err)
	}

	recipients := []string{post.UserID}
	for _, rec := range records {
		if rec.UserID != post.UserID && slices.Contains(rec.Following, post.UserID) {
			recipients = append(recipients, rec.UserID)
		}
	}

	msg := WSMessage{Type: MsgPostCreated, UserID: post.UserID, Data: post}
	notified := 0
	for _, userID := range recipients {
		if !h.IsOnline(userID) {
			continue
		}
		if err := h.SendToUser(userID, msg); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("Failed to notify new post")
			continue
		}
		notified++
	}
	return notified, nil
}

// IsOnline checks if a user has at least one connection
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID]) > 0
}

// Close drops the session subscription and closes every connection
func (h *WSHub) Close() {
	h.unsubscribe()

	h.mu.RLock()
	var all []*WSClient
	for _, set := range h.connections {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.Unregister(c)
	}
}

// clients returns the connections of userID, restricted to tokenID when it is set
func (h *WSHub) clients(userID, tokenID string) []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*WSClient
	for c := range h.connections[userID] {
		if tokenID == "" || c.session.TokenID == tokenID {
			out = append(out, c)
		}
	}
	return out
}

// onSessionEvent tears down connections whose session ended
func (h *WSHub) onSessionEvent(ev SessionEvent) {
	if ev.Type == SessionSignedIn {
		return
	}

	for _, c := range h.clients(ev.Session.UserID, ev.Session.TokenID) {
		if err := c.Send(WSMessage{Type: MsgSession, Data: ev}); err != nil {
			log.Debug().Err(err).Str("user_id", c.session.UserID).Msg("Failed to notify session end")
		}
		h.Unregister(c)
	}

	log.Info().
		Str("user_id", ev.Session.UserID).
		Str("event", string(ev.Type)).
		Msg("Session ended")
}
