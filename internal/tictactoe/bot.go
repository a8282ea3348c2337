package tictactoe

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Difficulty selects how the computer opponent plays
type Difficulty string

const (
	Easy       Difficulty = "easy"
	Medium     Difficulty = "medium"
	Unbeatable Difficulty = "unbeatable"
)

// ParseDifficulty accepts only the enumerated difficulties
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(s)); d {
	case Easy, Medium, Unbeatable:
		return d, nil
	}
	return "", fmt.Errorf("unknown tic-tac-toe difficulty %q", s)
}

// openingMoves are the corners and the centre
var openingMoves = [...]int{0, 2, 4, 6, 8}

// Bot represents the AI player
type Bot struct {
	player   Mark
	opponent Mark
	rng      *rand.Rand
}

// NewBot creates a bot playing the given mark
func NewBot(player Mark, rng *rand.Rand) *Bot {
	return &Bot{
		player:   player,
		opponent: player.Opponent(),
		rng:      rng,
	}
}

// Player returns the mark the bot plays
func (bot *Bot) Player() Mark {
	return bot.player
}

// ChooseMove returns the index the bot plays on b. The Medium difficulty flips
// a coin on every move between the Easy and Unbeatable strategies
func (bot *Bot) ChooseMove(b Board, d Difficulty) (int, error) {
	if Evaluate(b).Terminal() {
		return -1, ErrNoMove
	}

	switch d {
	case Easy:
		return bot.randomMove(b), nil
	case Medium:
		if bot.rng.Float64() < 0.5 {
			return bot.randomMove(b), nil
		}
		return bot.bestMove(b), nil
	case Unbeatable:
		return bot.bestMove(b), nil
	default:
		return -1, fmt.Errorf("unknown tic-tac-toe difficulty %q", d)
	}
}

// randomMove picks uniformly among empty cells
func (bot *Bot) randomMove(b Board) int {
	cells := b.EmptyCells()
	return cells[bot.rng.IntN(len(cells))]
}

// bestMove runs a full minimax search. Equal scores keep the lowest index
func (bot *Bot) bestMove(b Board) int {
	// Opening shortcut instead of searching the whole tree
	if b.IsEmpty() {
		return openingMoves[bot.rng.IntN(len(openingMoves))]
	}

	bestScore := -1000
	bestIndex := -1
	for i := 0; i < Cells; i++ {
		if b[i] != Empty {
			continue
		}
		next := b
		next[i] = bot.player
		score := bot.minimax(next, 0, false)
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}
	return bestIndex
}

// minimax scores a position from the bot's point of view: 10-depth for a bot
// win, depth-10 for an opponent win, 0 for a draw
func (bot *Bot) minimax(b Board, depth int, isMaximizing bool) int {
	switch status := Evaluate(b); status.Outcome {
	case Won:
		if status.Winner == bot.player {
			return 10 - depth
		}
		return depth - 10
	case Draw:
		return 0
	}

	if isMaximizing {
		bestScore := -1000
		for i := 0; i < Cells; i++ {
			if b[i] != Empty {
				continue
			}
			b[i] = bot.player
			bestScore = max(bestScore, bot.minimax(b, depth+1, false))
			b[i] = Empty
		}
		return bestScore
	}

	bestScore := 1000
	for i := 0; i < Cells; i++ {
		if b[i] != Empty {
			continue
		}
		b[i] = bot.opponent
		bestScore = min(bestScore, bot.minimax(b, depth+1, true))
		b[i] = Empty
	}
	return bestScore
}
