package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ifsling/os-in-website/internal/api"
	"github.com/Ifsling/os-in-website/internal/kafka"
	"github.com/Ifsling/os-in-website/internal/sessions"
)

type testServer struct {
	*httptest.Server
	hub      *Hub
	sessions *sessions.Manager
	stop     context.CancelFunc
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sm := sessions.NewManager()
	hub := NewHub(sm, 10*time.Millisecond)
	sm.SetOnChange(hub.BroadcastSnapshot)
	sm.SetOnClose(hub.CloseSession)
	handler := NewHandler(hub, sm)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := chi.NewRouter()
	r.Route("/api", api.NewHandlers(sm, nil, &kafka.Producer{}, nil).RegisterRoutes)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, handler, w, r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testServer{Server: srv, hub: hub, sessions: sm, stop: cancel}
}

func (ts *testServer) dial(t *testing.T, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?player=" + player
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type received struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Snapshot  json.RawMessage `json:"snapshot"`
	Result    *struct {
		Outcome string `json:"outcome"`
	} `json:"result"`
	Message string `json:"message"`
}

type ticTacToeSnapshot struct {
	ID            string `json:"id"`
	Player        string `json:"player"`
	AwaitingReply bool   `json:"awaitingReply"`
	State         struct {
		Board []*string `json:"board"`
	} `json:"state"`
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func receiveBoard(t *testing.T, conn *websocket.Conn) ticTacToeSnapshot {
	t.Helper()
	msg := receive(t, conn)
	require.Equal(t, TypeState, msg.Type, msg.Message)
	var snap ticTacToeSnapshot
	require.NoError(t, json.Unmarshal(msg.Snapshot, &snap))
	return snap
}

func mark(board []*string, i int) string {
	if board[i] == nil {
		return ""
	}
	return *board[i]
}

func TestServeWsRequiresPlayer(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOpenAndPlayAgainstBot(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "ann")

	send(t, conn, IncomingMessage{Type: TypeOpen, Kind: "tictactoe", Mode: "ai"})
	opened := receiveBoard(t, conn)
	require.NotEmpty(t, opened.ID)
	assert.Equal(t, "ann", opened.Player)

	send(t, conn, IncomingMessage{
		Type:      TypeAction,
		SessionID: opened.ID,
		Action:    &sessions.Action{Type: sessions.ActionMove, Index: 0},
	})

	played := receiveBoard(t, conn)
	assert.Equal(t, "X", mark(played.State.Board, 0))
	assert.True(t, played.AwaitingReply)

	reply := receiveBoard(t, conn)
	assert.Equal(t, "O", mark(reply.State.Board, 4))
	assert.False(t, reply.AwaitingReply)
}

func TestSpectatorSeesMovesButCannotAct(t *testing.T) {
	ts := newTestServer(t)
	ann := ts.dial(t, "ann")
	bob := ts.dial(t, "bob")

	send(t, ann, IncomingMessage{Type: TypeOpen, Kind: "tictactoe", Mode: "pvp"})
	id := receiveBoard(t, ann).ID

	send(t, bob, IncomingMessage{Type: TypeWatch, SessionID: id})
	receiveBoard(t, bob)
	assert.Equal(t, 2, ts.hub.WatcherCount(id))

	send(t, ann, IncomingMessage{
		Type:      TypeAction,
		SessionID: id,
		Action:    &sessions.Action{Type: sessions.ActionMove, Index: 8},
	})
	assert.Equal(t, "X", mark(receiveBoard(t, ann).State.Board, 8))
	assert.Equal(t, "X", mark(receiveBoard(t, bob).State.Board, 8))

	send(t, bob, IncomingMessage{
		Type:      TypeAction,
		SessionID: id,
		Action:    &sessions.Action{Type: sessions.ActionMove, Index: 0},
	})
	msg := receive(t, bob)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "Not your session", msg.Message)

	send(t, ann, IncomingMessage{Type: TypeClose, SessionID: id})
	assert.Equal(t, TypeClosed, receive(t, ann).Type)
	assert.Equal(t, TypeClosed, receive(t, bob).Type)
	assert.Eventually(t, func() bool { return ts.hub.WatcherCount(id) == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, ts.sessions.ActiveCount())
}

func TestRoundOverIsBroadcast(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "ann")

	send(t, conn, IncomingMessage{Type: TypeOpen, Kind: "tictactoe", Mode: "pvp"})
	id := receiveBoard(t, conn).ID

	for _, i := range []int{0, 3, 1, 4, 2} {
		send(t, conn, IncomingMessage{
			Type:      TypeAction,
			SessionID: id,
			Action:    &sessions.Action{Type: sessions.ActionMove, Index: i},
		})
		receiveBoard(t, conn)
	}

	msg := receive(t, conn)
	require.Equal(t, TypeRoundOver, msg.Type)
	require.NotNil(t, msg.Result)
	assert.Equal(t, "won", msg.Result.Outcome)
}

func TestBadMessages(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "ann")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "Invalid message format", receive(t, conn).Message)

	send(t, conn, map[string]string{"type": "dance"})
	assert.Equal(t, "Unknown message type", receive(t, conn).Message)

	send(t, conn, IncomingMessage{Type: TypeOpen, Kind: "snake"})
	assert.Equal(t, TypeError, receive(t, conn).Type)

	send(t, conn, IncomingMessage{Type: TypeWatch, SessionID: "missing"})
	assert.Equal(t, TypeError, receive(t, conn).Type)

	send(t, conn, IncomingMessage{Type: TypeAction, SessionID: "missing"})
	assert.Equal(t, "Missing action", receive(t, conn).Message)

	send(t, conn, IncomingMessage{Type: TypeOpen, Kind: "hangman"})
	id := receive(t, conn).SessionID
	send(t, conn, IncomingMessage{
		Type:      TypeAction,
		SessionID: id,
		Action:    &sessions.Action{Type: sessions.ActionGuess, Letter: "12"},
	})
	assert.Equal(t, TypeError, receive(t, conn).Type)
}

func TestDisconnectUnregisters(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "ann")

	send(t, conn, IncomingMessage{Type: TypeOpen, Kind: "2048"})
	id := receive(t, conn).SessionID
	assert.Eventually(t, func() bool { return ts.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, ts.hub.WatcherCount(id))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return ts.hub.ClientCount() == 0 && ts.hub.WatcherCount(id) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// the session outlives the connection
	_, err := ts.sessions.Get(id)
	assert.NoError(t, err)
}

func TestChangesFromOtherTransportsAreBroadcast(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "ann")

	send(t, conn, IncomingMessage{Type: TypeOpen, Kind: "tictactoe", Mode: "pvp"})
	id := receiveBoard(t, conn).ID

	// as the REST API would
	_, err := ts.sessions.Apply(id, sessions.Action{Type: sessions.ActionMove, Index: 6})
	require.NoError(t, err)

	assert.Equal(t, "X", mark(receiveBoard(t, conn).State.Board, 6))
}

func TestClosingSessionNotifiesWatchers(t *testing.T) {
	tests := []struct {
		name  string
		close func(t *testing.T, ts *testServer, id string)
	}{
		{
			name: "rest delete",
			close: func(t *testing.T, ts *testServer, id string) {
				req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
				require.NoError(t, err)
				resp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				resp.Body.Close()
				require.Equal(t, http.StatusOK, resp.StatusCode)
			},
		},
		{
			name: "idle reaper",
			close: func(t *testing.T, ts *testServer, id string) {
				require.Equal(t, 1, ts.sessions.ReapIdle(-time.Hour))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ann := ts.dial(t, "ann")
			bob := ts.dial(t, "bob")

			send(t, ann, IncomingMessage{Type: TypeOpen, Kind: "tictactoe", Mode: "pvp"})
			id := receiveBoard(t, ann).ID
			send(t, bob, IncomingMessage{Type: TypeWatch, SessionID: id})
			receiveBoard(t, bob)
			require.Equal(t, 2, ts.hub.WatcherCount(id))

			tt.close(t, ts, id)

			for _, conn := range []*websocket.Conn{ann, bob} {
				msg := receive(t, conn)
				assert.Equal(t, TypeClosed, msg.Type)
				assert.Equal(t, id, msg.SessionID)
			}
			assert.Equal(t, 0, ts.hub.WatcherCount(id))
			assert.Equal(t, 0, ts.sessions.ActiveCount())
		})
	}
}

func TestConnectAfterHubStopped(t *testing.T) {
	ts := newTestServer(t)
	ts.stop()
	select {
	case <-ts.hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	conn := ts.dial(t, "ann")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	// the server hung up rather than leaving the connection waiting
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout())
	}
	assert.Equal(t, 0, ts.hub.ClientCount())
}

func TestDisconnectAfterHubStopped(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "ann")
	assert.Eventually(t, func() bool { return ts.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	var client *Client
	ts.hub.mu.RLock()
	for c := range ts.hub.clients {
		client = c
	}
	ts.hub.mu.RUnlock()

	ts.stop()
	<-ts.hub.done
	require.NoError(t, conn.Close())

	// readPump gives up on the stopped hub and closes the client itself
	assert.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.closed
	}, 2*time.Second, 10*time.Millisecond)
}
