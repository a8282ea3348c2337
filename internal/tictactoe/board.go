package tictactoe

import (
	"encoding/json"
	"errors"
)

// Mark is the content of a single cell
type Mark int

const (
	Empty Mark = iota
	X
	O
)

// String returns "X", "O" or "" for an empty cell
func (m Mark) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Opponent returns the other player's mark
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// MarshalJSON encodes a mark as "X", "O" or null
func (m Mark) MarshalJSON() ([]byte, error) {
	if m == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}

// Cells is the number of squares on the board
const Cells = 9

// Board is the 3x3 grid stored row-major
type Board [Cells]Mark

// Outcome is the state of a round
type Outcome string

const (
	Playing Outcome = "playing"
	Won     Outcome = "won"
	Draw    Outcome = "draw"
)

// Status is the evaluated state of a board. Winner is set only when Outcome is Won
type Status struct {
	Outcome Outcome `json:"outcome"`
	Winner  Mark    `json:"winner"`
}

// Terminal reports whether the round is over
func (s Status) Terminal() bool {
	return s.Outcome != Playing
}

// Errors
var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidMark     = errors.New("invalid mark")
	ErrCellTaken       = errors.New("cell already taken")
	ErrGameOver        = errors.New("game already finished")
	ErrNoMove          = errors.New("no move available")
)

// lines are the 8 winning triples: rows, columns, diagonals
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Evaluate returns Won(p) if any triple is uniformly p, Draw if the board is
// full otherwise, and Playing in every other case
func Evaluate(b Board) Status {
	for _, ln := range lines {
		if m := b[ln[0]]; m != Empty && m == b[ln[1]] && m == b[ln[2]] {
			return Status{Outcome: Won, Winner: m}
		}
	}
	if b.Full() {
		return Status{Outcome: Draw}
	}
	return Status{Outcome: Playing}
}

// ApplyMove places p at index and returns the new board. The input board is
// left untouched whatever the result
func ApplyMove(b Board, index int, p Mark) (Board, error) {
	if index < 0 || index >= Cells {
		return b, ErrInvalidPosition
	}
	if p != X && p != O {
		return b, ErrInvalidMark
	}
	if Evaluate(b).Terminal() {
		return b, ErrGameOver
	}
	if b[index] != Empty {
		return b, ErrCellTaken
	}

	b[index] = p
	return b, nil
}

// EmptyCells returns the indices of empty cells in ascending order
func (b Board) EmptyCells() []int {
	cells := make([]int, 0, Cells)
	for i, m := range b {
		if m == Empty {
			cells = append(cells, i)
		}
	}
	return cells
}

// Full reports whether every cell is taken
func (b Board) Full() bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no cell is taken
func (b Board) IsEmpty() bool {
	for _, m := range b {
		if m != Empty {
			return false
		}
	}
	return true
}
