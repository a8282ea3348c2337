package tictactoe

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Mode selects who plays O
type Mode string

const (
	PlayerVsPlayer Mode = "pvp"
	PlayerVsAI     Mode = "ai"
)

// ParseMode accepts only the enumerated modes
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case PlayerVsPlayer, PlayerVsAI:
		return m, nil
	}
	return "", fmt.Errorf("unknown tic-tac-toe mode %q", s)
}

// ErrNotYourTurn is returned when a move is submitted for the side not on turn
var ErrNotYourTurn = errors.New("not your turn")

// Scoreboard survives rounds until explicitly reset
type Scoreboard struct {
	WinsX int `json:"winsX"`
	WinsO int `json:"winsO"`
	Draws int `json:"draws"`
}

// Move represents a single move in a round
type Move struct {
	Player    Mark      `json:"player"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
}

// Game is a sequence of rounds with a shared scoreboard. X always opens
type Game struct {
	Board         Board
	CurrentPlayer Mark
	Status        Status
	Mode          Mode
	Difficulty    Difficulty
	Scores        Scoreboard
	Moves         []Move
	StartTime     time.Time
	EndTime       time.Time
	bot           *Bot
	mu            sync.RWMutex
}

// NewGame creates a game with an empty board. The bot plays O
func NewGame(mode Mode, difficulty Difficulty, rng *rand.Rand) *Game {
	g := &Game{
		Mode:       mode,
		Difficulty: difficulty,
		bot:        NewBot(O, rng),
	}
	g.resetRound()
	return g
}

// Play makes a move for the player on turn. In PlayerVsAI mode O belongs to
// the bot and is played through PlayAI
func (g *Game) Play(index int) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Mode == PlayerVsAI && g.CurrentPlayer == g.bot.Player() {
		return g.Status, ErrNotYourTurn
	}
	return g.commit(index, g.CurrentPlayer)
}

// PlayAI lets the bot move. It fails unless the bot is on turn
func (g *Game) PlayAI() (int, Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.awaitingAI() {
		return -1, g.Status, ErrNotYourTurn
	}

	index, err := g.bot.ChooseMove(g.Board, g.Difficulty)
	if err != nil {
		return -1, g.Status, err
	}
	status, err := g.commit(index, g.bot.Player())
	return index, status, err
}

// AwaitingAI reports whether the bot should move next
func (g *Game) AwaitingAI() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.awaitingAI()
}

func (g *Game) awaitingAI() bool {
	return g.Mode == PlayerVsAI && g.CurrentPlayer == g.bot.Player() && g.Status.Outcome == Playing
}

// commit applies a validated move and updates turn and scores. The scoreboard
// changes only here, on the move that ends the round
func (g *Game) commit(index int, player Mark) (Status, error) {
	board, err := ApplyMove(g.Board, index, player)
	if err != nil {
		return g.Status, err
	}

	g.Board = board
	g.Moves = append(g.Moves, Move{
		Player:    player,
		Index:     index,
		Timestamp: time.Now(),
	})

	g.Status = Evaluate(board)
	switch g.Status.Outcome {
	case Won:
		g.EndTime = time.Now()
		if g.Status.Winner == X {
			g.Scores.WinsX++
		} else {
			g.Scores.WinsO++
		}
	case Draw:
		g.EndTime = time.Now()
		g.Scores.Draws++
	default:
		g.CurrentPlayer = player.Opponent()
	}

	return g.Status, nil
}

// Reset starts a new round and keeps the scoreboard
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetRound()
}

// ResetScores clears the scoreboard and starts a new round
func (g *Game) ResetScores() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Scores = Scoreboard{}
	g.resetRound()
}

// SetMode switches mode and starts a new round
func (g *Game) SetMode(mode Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Mode = mode
	g.resetRound()
}

// SetDifficulty switches difficulty and starts a new round
func (g *Game) SetDifficulty(d Difficulty) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Difficulty = d
	g.resetRound()
}

func (g *Game) resetRound() {
	g.Board = Board{}
	g.CurrentPlayer = X
	g.Status = Status{Outcome: Playing}
	g.Moves = make([]Move, 0, Cells)
	g.StartTime = time.Now()
	g.EndTime = time.Time{}
}

// GetDuration returns the round duration
func (g *Game) GetDuration() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.EndTime.IsZero() {
		return time.Since(g.StartTime)
	}
	return g.EndTime.Sub(g.StartTime)
}

// GetState returns the current game state for serialization
func (g *Game) GetState() *GameState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	state := &GameState{
		Board:         g.Board,
		CurrentPlayer: g.CurrentPlayer,
		Status:        g.Status,
		Mode:          g.Mode,
		Difficulty:    g.Difficulty,
		Scores:        g.Scores,
		MoveCount:     len(g.Moves),
		AwaitingAI:    g.awaitingAI(),
	}
	if len(g.Moves) > 0 {
		last := g.Moves[len(g.Moves)-1]
		state.LastMove = &last
	}
	return state
}

// GameState represents the serializable game state
type GameState struct {
	Board         Board      `json:"board"`
	CurrentPlayer Mark       `json:"currentPlayer"`
	Status        Status     `json:"status"`
	Mode          Mode       `json:"mode"`
	Difficulty    Difficulty `json:"difficulty"`
	Scores        Scoreboard `json:"scores"`
	MoveCount     int        `json:"moveCount"`
	LastMove      *Move      `json:"lastMove,omitempty"`
	AwaitingAI    bool       `json:"awaitingAI"`
}
