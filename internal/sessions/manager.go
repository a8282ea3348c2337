package sessions

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MaxPlayerLength is the longest accepted player name, in runes
const MaxPlayerLength = 50

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownKind     = errors.New("unknown game kind")
	ErrUnknownAction   = errors.New("unknown action")
	ErrInvalidInput    = errors.New("invalid input")
)

// Kind names one of the arcade games
type Kind string

const (
	KindMinesweeper Kind = "minesweeper"
	KindTicTacToe   Kind = "tictactoe"
	KindTwenty48    Kind = "2048"
	KindHangman     Kind = "hangman"
)

// Kinds lists every game that can be opened
var Kinds = []Kind{KindMinesweeper, KindTicTacToe, KindTwenty48, KindHangman}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Options configure a newly opened game. Fields that do not apply to the
// kind are ignored
type Options struct {
	Difficulty string `json:"difficulty,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

// Snapshot is the externally visible state of a session after an action
type Snapshot struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Player        string    `json:"player"`
	State         any       `json:"state"`
	Changed       bool      `json:"changed"`
	AwaitingReply bool      `json:"awaitingReply"`
	Result        *Result   `json:"result,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Session is one opened game window
type Session struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Player   string    `json:"player"`
	OpenedAt time.Time `json:"openedAt"`

	game       game
	lastActive time.Time
	mu         sync.Mutex
}

// Snapshot returns the current state without applying anything
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:            s.ID,
		Kind:          s.Kind,
		Player:        s.Player,
		State:         s.game.view(),
		AwaitingReply: s.game.awaitingReply(),
		UpdatedAt:     s.lastActive,
	}
}

// LastActive returns when the session last changed
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Manager owns every open session. It replaces a process-wide store: the
// transports receive it explicitly
type Manager struct {
	sessions map[string]*Session        // sessionID -> session
	byPlayer map[string]map[Kind]string // player -> kind -> sessionID
	mu       sync.Mutex

	onOpen     func(s *Session)
	onAction   func(s *Session, a Action)
	onChange   func(snap Snapshot)
	onRoundEnd func(r Result)
	onClose    func(id string)

	newRand func() *rand.Rand
	now     func() time.Time
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		byPlayer: make(map[string]map[Kind]string),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		now: time.Now,
	}
}

// SetOnOpen sets the callback for newly opened sessions
func (m *Manager) SetOnOpen(callback func(s *Session)) {
	m.onOpen = callback
}

// SetOnAction sets the callback for every accepted action
func (m *Manager) SetOnAction(callback func(s *Session, a Action)) {
	m.onAction = callback
}

// SetOnChange sets the callback for state changes. It receives the snapshot
// Apply returns, including the round result when there is one
func (m *Manager) SetOnChange(callback func(snap Snapshot)) {
	m.onChange = callback
}

// SetOnClose sets the callback for sessions removed by Close or ReapIdle.
// It runs after the manager lock is released
func (m *Manager) SetOnClose(callback func(id string)) {
	m.onClose = callback
}

// SetOnRoundEnd sets the callback for finished rounds. It runs once per
// round, after the session lock is released
func (m *Manager) SetOnRoundEnd(callback func(r Result)) {
	m.onRoundEnd = callback
}

// Open opens a game for player. When the player already has that kind
// open, the existing session is returned and created is false
func (m *Manager) Open(player string, kind Kind, opts Options) (s *Session, created bool, err error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return nil, false, fmt.Errorf("%w: player name required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(player) > MaxPlayerLength {
		return nil, false, fmt.Errorf("%w: player name longer than %d characters", ErrInvalidInput, MaxPlayerLength)
	}
	kind, err = ParseKind(string(kind))
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	if id, ok := m.byPlayer[player][kind]; ok {
		if existing, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			return existing, false, nil
		}
	}
	m.mu.Unlock()

	now := m.now()
	g, err := newGame(kind, opts, m.newRand(), m.now)
	if err != nil {
		return nil, false, err
	}
	s = &Session{
		ID:         uuid.New().String(),
		Kind:       kind,
		Player:     player,
		OpenedAt:   now,
		game:       g,
		lastActive: now,
	}

	m.mu.Lock()
	// another request may have opened the same kind meanwhile
	if id, ok := m.byPlayer[player][kind]; ok {
		if existing, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			return existing, false, nil
		}
	}
	m.sessions[s.ID] = s
	if m.byPlayer[player] == nil {
		m.byPlayer[player] = make(map[Kind]string)
	}
	m.byPlayer[player][kind] = s.ID
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"session": s.ID,
		"kind":    kind,
		"player":  player,
	}).Info("session opened")

	if m.onOpen != nil {
		m.onOpen(s)
	}
	return s, true, nil
}

// Get returns a session by ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns the player's open sessions, oldest first. An empty player
// lists every session
func (m *Manager) List(player string) []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if player == "" || s.Player == player {
			out = append(out, s)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].Kind < out[j].Kind
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Close removes a session. Unfinished rounds are discarded
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.removeLocked(s)
	m.mu.Unlock()

	log.WithFields(log.Fields{"session": id, "kind": s.Kind}).Info("session closed")
	if m.onClose != nil {
		m.onClose(id)
	}
	return nil
}

func (m *Manager) removeLocked(s *Session) {
	delete(m.sessions, s.ID)
	if kinds := m.byPlayer[s.Player]; kinds != nil {
		if kinds[s.Kind] == s.ID {
			delete(kinds, s.Kind)
		}
		if len(kinds) == 0 {
			delete(m.byPlayer, s.Player)
		}
	}
}

// ActiveCount returns the number of open sessions
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Apply runs one action against a session's game and returns the new
// state. Actions on the same session are serialised
func (m *Manager) Apply(id string, a Action) (Snapshot, error) {
	s, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	eff, err := s.game.apply(a)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if eff.changed {
		s.lastActive = m.now()
	}
	snap := s.snapshotLocked()
	snap.Changed = eff.changed
	s.mu.Unlock()

	if eff.end != nil {
		r := Result{
			ID:         uuid.New().String(),
			SessionID:  s.ID,
			Kind:       s.Kind,
			Player:     s.Player,
			Outcome:    eff.end.outcome,
			Winner:     eff.end.winner,
			Mode:       eff.end.mode,
			Difficulty: eff.end.difficulty,
			Moves:      eff.end.moves,
			DurationMs: eff.end.duration.Milliseconds(),
			Score:      eff.end.score,
			FinishedAt: m.now(),
		}
		snap.Result = &r

		log.WithFields(log.Fields{
			"session": s.ID,
			"kind":    s.Kind,
			"player":  s.Player,
			"outcome": r.Outcome,
		}).Info("round finished")
	}

	if eff.changed && m.onAction != nil {
		m.onAction(s, a)
	}
	if eff.changed && m.onChange != nil {
		m.onChange(snap)
	}
	if snap.Result != nil && m.onRoundEnd != nil {
		m.onRoundEnd(*snap.Result)
	}
	return snap, nil
}

// AwaitingReply reports whether the session waits for an automatic move,
// such as the Tic-Tac-Toe bot
func (m *Manager) AwaitingReply(id string) (bool, error) {
	s, err := m.Get(id)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.awaitingReply(), nil
}

// ReapIdle closes sessions idle for longer than ttl and returns how many
// were closed
func (m *Manager) ReapIdle(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	var reaped []string
	for _, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			m.removeLocked(s)
			reaped = append(reaped, s.ID)
		}
	}
	m.mu.Unlock()

	if len(reaped) > 0 {
		log.WithField("closed", len(reaped)).Info("reaped idle sessions")
	}
	if m.onClose != nil {
		for _, id := range reaped {
			m.onClose(id)
		}
	}
	return len(reaped)
}

// Reap calls ReapIdle periodically until ctx is done. A ttl of zero or
// less disables reaping and returns at once
func (m *Manager) Reap(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := max(ttl/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ReapIdle(ttl)
		}
	}
}
