package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Ifsling/os-in-website/internal/logging"
	"github.com/Ifsling/os-in-website/internal/sessions"
)

var logger = logging.Component("websocket")

// Hub tracks connected clients and which sessions each one watches
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Watching clients by session ID
	watchers map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	sessions *sessions.Manager

	// Pause before the bot answers, so its move is visible as a separate step
	thinkDelay time.Duration

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(sm *sessions.Manager, thinkDelay time.Duration) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		watchers:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		sessions:   sm,
		thinkDelay: thinkDelay,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.WithField("player", client.player).Debug("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				for id, watching := range h.watchers {
					delete(watching, client)
					if len(watching) == 0 {
						delete(h.watchers, id)
					}
				}
				client.close()
			}
			h.mu.Unlock()
			logger.WithField("player", client.player).Debug("client unregistered")
		}
	}
}

// Watch subscribes a client to a session's updates
func (h *Hub) Watch(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.watchers[sessionID] == nil {
		h.watchers[sessionID] = make(map[*Client]bool)
	}
	h.watchers[sessionID][client] = true
}

// WatcherCount returns how many clients watch a session
func (h *Hub) WatcherCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[sessionID])
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastSnapshot sends a session's new state to its watchers, followed by
// a roundOver message when the state change finished a round. It is meant
// to be installed with sessions.Manager.SetOnChange
func (h *Hub) BroadcastSnapshot(snap sessions.Snapshot) {
	h.broadcastToSession(snap.ID, Message{
		Type:      TypeState,
		SessionID: snap.ID,
		Snapshot:  &snap,
	})
	if snap.Result != nil {
		h.broadcastToSession(snap.ID, Message{
			Type:      TypeRoundOver,
			SessionID: snap.ID,
			Result:    snap.Result,
		})
	}
}

// broadcastToSession sends a message to all clients watching a session
func (h *Hub) broadcastToSession(sessionID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WithError(err).Error("error marshaling message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.watchers[sessionID] {
		if !client.sendRaw(data) {
			logger.WithFields(log.Fields{
				"session": sessionID,
				"player":  client.player,
				"type":    msg.Type,
			}).Warn("dropped broadcast")
		}
	}
}

// CloseSession tells the watchers that a session is gone and forgets them.
// It is meant to be installed with sessions.Manager.SetOnClose
func (h *Hub) CloseSession(sessionID string) {
	h.broadcastToSession(sessionID, Message{Type: TypeClosed, SessionID: sessionID})

	h.mu.Lock()
	delete(h.watchers, sessionID)
	h.mu.Unlock()
}

// HandleReply plays the automatic reply for a session, such as the
// Tic-Tac-Toe bot's move, after the think delay
func (h *Hub) HandleReply(sessionID string) {
	if h.thinkDelay > 0 {
		time.Sleep(h.thinkDelay)
	}

	waiting, err := h.sessions.AwaitingReply(sessionID)
	if err != nil || !waiting {
		// closed, reset or already answered meanwhile
		return
	}

	if _, err := h.sessions.Apply(sessionID, sessions.Action{Type: sessions.ActionAI}); err != nil {
		logger.WithField("session", sessionID).WithError(err).Warn("bot move failed")
	}
}
