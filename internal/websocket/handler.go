package websocket

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/Ifsling/os-in-website/internal/sessions"
)

// Message types
const (
	TypeOpen      = "open"
	TypeWatch     = "watch"
	TypeAction    = "action"
	TypeClose     = "close"
	TypeState     = "state"
	TypeRoundOver = "roundOver"
	TypeClosed    = "closed"
	TypeError     = "error"
)

// Message represents a message sent to the client
type Message struct {
	Type      string             `json:"type"`
	SessionID string             `json:"sessionId,omitempty"`
	Snapshot  *sessions.Snapshot `json:"snapshot,omitempty"`
	Result    *sessions.Result   `json:"result,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type       string           `json:"type"`
	SessionID  string           `json:"sessionId,omitempty"`
	Kind       string           `json:"kind,omitempty"`
	Difficulty string           `json:"difficulty,omitempty"`
	Mode       string           `json:"mode,omitempty"`
	Action     *sessions.Action `json:"action,omitempty"`
}

// Handler processes WebSocket messages
type Handler struct {
	hub      *Hub
	sessions *sessions.Manager
}

// NewHandler creates a new message handler
func NewHandler(hub *Hub, sm *sessions.Manager) *Handler {
	return &Handler{
		hub:      hub,
		sessions: sm,
	}
}

// HandleMessage processes an incoming message
func (h *Handler) HandleMessage(client *Client, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.sendMessage(Message{Type: TypeError, Message: "Invalid message format"})
		return
	}

	switch msg.Type {
	case TypeOpen:
		h.handleOpen(client, msg)
	case TypeWatch:
		h.handleWatch(client, msg.SessionID)
	case TypeAction:
		h.handleAction(client, msg)
	case TypeClose:
		h.handleClose(client, msg.SessionID)
	default:
		client.sendMessage(Message{Type: TypeError, Message: "Unknown message type"})
	}
}

// handleOpen opens (or reopens) a game for the client's player and watches it
func (h *Handler) handleOpen(client *Client, msg IncomingMessage) {
	kind, err := sessions.ParseKind(msg.Kind)
	if err != nil {
		client.sendMessage(Message{Type: TypeError, Message: err.Error()})
		return
	}

	s, _, err := h.sessions.Open(client.player, kind, sessions.Options{
		Difficulty: msg.Difficulty,
		Mode:       msg.Mode,
	})
	if err != nil {
		client.sendMessage(Message{Type: TypeError, Message: err.Error()})
		return
	}

	h.hub.Watch(s.ID, client)
	snap := s.Snapshot()
	client.sendMessage(Message{Type: TypeState, SessionID: s.ID, Snapshot: &snap})
}

// handleWatch subscribes the client to an existing session. Anyone may
// watch; only the owner may act
func (h *Handler) handleWatch(client *Client, sessionID string) {
	s, err := h.sessions.Get(sessionID)
	if err != nil {
		client.sendMessage(Message{Type: TypeError, SessionID: sessionID, Message: err.Error()})
		return
	}

	h.hub.Watch(s.ID, client)
	snap := s.Snapshot()
	client.sendMessage(Message{Type: TypeState, SessionID: s.ID, Snapshot: &snap})
}

// handleAction applies a player's action and broadcasts the result
func (h *Handler) handleAction(client *Client, msg IncomingMessage) {
	if msg.Action == nil {
		client.sendMessage(Message{Type: TypeError, SessionID: msg.SessionID, Message: "Missing action"})
		return
	}
	if !h.owns(client, msg.SessionID) {
		return
	}

	// the actor sees the update even without an explicit watch
	h.hub.Watch(msg.SessionID, client)

	snap, err := h.sessions.Apply(msg.SessionID, *msg.Action)
	if err != nil {
		logger.WithFields(log.Fields{
			"session": msg.SessionID,
			"action":  msg.Action.Type,
		}).WithError(err).Debug("action rejected")
		client.sendMessage(Message{Type: TypeError, SessionID: msg.SessionID, Message: err.Error()})
		return
	}

	// changes reach the watchers through the manager; a no-op is only
	// echoed back to the actor
	if !snap.Changed {
		client.sendMessage(Message{Type: TypeState, SessionID: snap.ID, Snapshot: &snap})
	}

	if snap.AwaitingReply {
		go h.hub.HandleReply(msg.SessionID)
	}
}

// handleClose closes the client's session. The watchers, the client
// included, hear about it through the manager's close callback
func (h *Handler) handleClose(client *Client, sessionID string) {
	if !h.owns(client, sessionID) {
		return
	}
	h.hub.Watch(sessionID, client)
	if err := h.sessions.Close(sessionID); err != nil {
		client.sendMessage(Message{Type: TypeError, SessionID: sessionID, Message: err.Error()})
	}
}

// owns reports whether the client's player opened the session, sending an
// error to the client when not
func (h *Handler) owns(client *Client, sessionID string) bool {
	s, err := h.sessions.Get(sessionID)
	if err != nil {
		client.sendMessage(Message{Type: TypeError, SessionID: sessionID, Message: err.Error()})
		return false
	}
	if s.Player != client.player {
		client.sendMessage(Message{Type: TypeError, SessionID: sessionID, Message: "Not your session"})
		return false
	}
	return true
}
