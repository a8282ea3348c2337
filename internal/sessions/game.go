package sessions

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Action types accepted by Apply
const (
	ActionReveal      = "reveal"
	ActionFlag        = "flag"
	ActionMove        = "move"
	ActionAI          = "ai"
	ActionReset       = "reset"
	ActionResetScores = "reset_scores"
	ActionMode        = "mode"
	ActionDifficulty  = "difficulty"
	ActionSlide       = "slide"
	ActionContinue    = "continue"
	ActionGuess       = "guess"
)

// Action is one piece of player input. Only the fields relevant to Type
// are read
type Action struct {
	Type       string `json:"type"`
	Row        int    `json:"row,omitempty"`
	Col        int    `json:"col,omitempty"`
	Index      int    `json:"index,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Letter     string `json:"letter,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// Outcome of a finished round from the session owner's point of view
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
	OutcomeDraw Outcome = "draw"
)

// Result describes one finished round
type Result struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Kind       Kind      `json:"kind"`
	Player     string    `json:"player"`
	Outcome    Outcome   `json:"outcome"`
	Winner     string    `json:"winner,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	Difficulty string    `json:"difficulty,omitempty"`
	Moves      int       `json:"moves"`
	DurationMs int64     `json:"durationMs"`
	Score      int       `json:"score"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration returns the round length
func (r Result) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// roundEnd is reported by a game on the action that finishes a round
type roundEnd struct {
	outcome    Outcome
	winner     string
	mode       string
	difficulty string
	moves      int
	duration   time.Duration
	score      int
}

type effect struct {
	changed bool
	end     *roundEnd
}

// game adapts one engine to player actions. Implementations are not safe
// for concurrent use; Session serialises calls
type game interface {
	apply(a Action) (effect, error)
	view() any
	awaitingReply() bool
}

func newGame(kind Kind, opts Options, rng *rand.Rand, now func() time.Time) (game, error) {
	switch kind {
	case KindMinesweeper:
		return newMinesweeperGame(opts, rng, now)
	case KindTicTacToe:
		return newTicTacToeGame(opts, rng)
	case KindTwenty48:
		return newTwenty48Game(rng, now), nil
	case KindHangman:
		return newHangmanGame(rng, now), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func unknownAction(kind Kind, a Action) error {
	return fmt.Errorf("%w: %q for %s", ErrUnknownAction, a.Type, kind)
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
