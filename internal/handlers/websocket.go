package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"socialfeed/internal/middleware"
	"socialfeed/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub       *services.WSHub
	validator middleware.TokenValidator
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. checkOrigin may be nil to allow every origin.
func NewWebSocketHandler(hub *services.WSHub, validator middleware.TokenValidator, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WebSocketHandler{
		hub:       hub,
		validator: validator,
		upgrader:  websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// HeaderState is the payload of a header message
type HeaderState struct {
	Visible bool `json:"visible"`
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on a WebSocket handshake, so the token may come in the query
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	session, err := h.validator.ValidateToken(r.Context(), token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := h.hub.Register(session, conn)
	defer h.hub.Unregister(client)

	ctx := middleware.WithSession(context.Background(), session)
	userID := session.UserID

	if err := client.Send(services.WSMessage{Type: services.MsgSession, Data: services.SessionEvent{
		Type:    services.SessionSignedIn,
		Session: session,
	}}); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send session message")
		return
	}

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			client.SendError("Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, client, msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("Failed to handle message")
			break
		}
	}
}

// handleMessage processes incoming WebSocket messages. The returned error is a
// transport failure; domain failures are reported to the client as error messages.
func (h *WebSocketHandler) handleMessage(ctx context.Context, client *services.WSClient, msg services.WSMessage) error {
	switch msg.Type {
	case services.MsgFeedVisible:
		triggered, posts, err := client.Feed.OnSentinelVisible(ctx, msg.Ratio)
		if !triggered {
			return nil
		}
		return h.sendFeed(client, posts, err)
	case services.MsgFeedReset:
		client.Feed.Reset()
		posts, err := client.Feed.LoadNext(ctx)
		return h.sendFeed(client, posts, err)
	case services.MsgNetworkLoad:
		err := client.Network.Load(ctx)
		return h.sendNetwork(client, err)
	case services.MsgFollow:
		return h.handleRelationship(ctx, client, msg, client.Network.Follow)
	case services.MsgUnfollow:
		return h.handleRelationship(ctx, client, msg, client.Network.Unfollow)
	case services.MsgRemoveFollower:
		return h.handleRelationship(ctx, client, msg, client.Network.RemoveFollower)
	case services.MsgScroll:
		return client.Send(services.WSMessage{
			Type: services.MsgHeader,
			Data: HeaderState{Visible: client.Header.Scroll(msg.ScrollY)},
		})
	default:
		client.SendError("Unknown message type")
		return nil
	}
}

func (h *WebSocketHandler) sendFeed(client *services.WSClient, posts interface{}, err error) error {
	if err != nil {
		_, message := errorStatus(err)
		return client.Send(services.WSMessage{Type: services.MsgError, Message: message})
	}
	if client.Feed.EndReached() {
		return client.Send(services.WSMessage{Type: services.MsgFeedEnd, Page: client.Feed.Page()})
	}
	return client.Send(services.WSMessage{
		Type: services.MsgFeedPage,
		Page: client.Feed.Page(),
		Data: posts,
	})
}

func (h *WebSocketHandler) handleRelationship(
	ctx context.Context,
	client *services.WSClient,
	msg services.WSMessage,
	apply func(context.Context, string) error,
) error {
	if msg.UserID == "" {
		client.SendError("user_id is required")
		return nil
	}
	return h.sendNetwork(client, apply(ctx, msg.UserID))
}

// sendNetwork reports err, if any, then the current network groups
func (h *WebSocketHandler) sendNetwork(client *services.WSClient, err error) error {
	if err != nil {
		message := err.Error()
		if !errors.Is(err, services.ErrNetworkNotLoaded) {
			_, message = errorStatus(err)
		}
		if sendErr := client.Send(services.WSMessage{Type: services.MsgError, Message: message}); sendErr != nil {
			return sendErr
		}
		if !client.Network.Loaded() {
			return nil
		}
	}
	return client.Send(services.WSMessage{Type: services.MsgNetwork, Data: client.Network.Groups()})
}
