package minesweeper

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the board-level game status
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// Terminal reports whether only a reset can leave this status
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// Difficulty is one of the fixed board presets
type Difficulty struct {
	Name  string `json:"name"`
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
	Mines int    `json:"mines"`
}

var (
	Easy   = Difficulty{Name: "easy", Rows: 9, Cols: 9, Mines: 10}
	Medium = Difficulty{Name: "medium", Rows: 16, Cols: 16, Mines: 40}
	Hard   = Difficulty{Name: "hard", Rows: 16, Cols: 30, Mines: 99}
)

// Difficulties lists the presets in menu order
var Difficulties = []Difficulty{Easy, Medium, Hard}

var ErrUnknownDifficulty = errors.New("unknown difficulty")

// ParseDifficulty resolves a preset by name, case-insensitively
func ParseDifficulty(name string) (Difficulty, error) {
	for _, d := range Difficulties {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return Difficulty{}, fmt.Errorf("%w: %q", ErrUnknownDifficulty, name)
}

// Cell is a single square of the board
type Cell struct {
	Revealed      bool `json:"revealed"`
	HasMine       bool `json:"hasMine"`
	Flagged       bool `json:"flagged"`
	AdjacentMines int  `json:"adjacentMines"`
}

// Board holds the full state of one Minesweeper round.
// Mines are not placed until the first reveal
type Board struct {
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	Mines     int      `json:"mines"`
	MinesLeft int      `json:"minesLeft"`
	Status    Status   `json:"status"`
	Cells     [][]Cell `json:"cells"`

	revealed int
}

// ParamsError describes board dimensions that cannot be played
type ParamsError struct {
	Rows, Cols, Mines int
}

func (e *ParamsError) Error() string {
	switch {
	case e.Rows <= 0:
		return fmt.Sprintf("cannot create a board with %d rows", e.Rows)
	case e.Cols <= 0:
		return fmt.Sprintf("cannot create a board with %d columns", e.Cols)
	case e.Mines < 0:
		return fmt.Sprintf("cannot create a board with %d mines", e.Mines)
	default:
		return fmt.Sprintf("not enough space for %d mines on a %dx%d board", e.Mines, e.Rows, e.Cols)
	}
}

// NewBoard creates an empty board for a preset
func NewBoard(d Difficulty) *Board {
	b, err := NewCustomBoard(d.Rows, d.Cols, d.Mines)
	if err != nil {
		// presets are always valid
		panic(err)
	}
	return b
}

// NewCustomBoard creates an empty board with arbitrary dimensions.
// One cell must stay free of mines for the first reveal
func NewCustomBoard(rows, cols, mines int) (*Board, error) {
	if rows <= 0 || cols <= 0 || mines < 0 || mines >= rows*cols {
		return nil, &ParamsError{Rows: rows, Cols: cols, Mines: mines}
	}

	cells := make([][]Cell, rows)
	for r := range cells {
		cells[r] = make([]Cell, cols)
	}

	return &Board{
		Rows:      rows,
		Cols:      cols,
		Mines:     mines,
		MinesLeft: mines,
		Status:    StatusWaiting,
		Cells:     cells,
	}, nil
}

// Clone returns a deep copy of the board
func (b *Board) Clone() *Board {
	nb := *b
	nb.Cells = make([][]Cell, b.Rows)
	for r := range b.Cells {
		nb.Cells[r] = make([]Cell, b.Cols)
		copy(nb.Cells[r], b.Cells[r])
	}
	return &nb
}

// InBounds reports whether (row, col) is on the board
func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.Rows && col >= 0 && col < b.Cols
}

// RevealedCount returns the number of revealed cells
func (b *Board) RevealedCount() int {
	return b.revealed
}

// neighbours calls fn for every in-bounds cell around (row, col)
func (b *Board) neighbours(row, col int, fn func(r, c int)) {
	for r := max(0, row-1); r <= min(b.Rows-1, row+1); r++ {
		for c := max(0, col-1); c <= min(b.Cols-1, col+1); c++ {
			if r != row || c != col {
				fn(r, c)
			}
		}
	}
}

// String renders the board the way a player sees it, for debugging and tests.
// '#' hidden, 'F' flagged, '*' revealed mine, '.' empty, digits for counts
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			cell := b.Cells[r][c]
			switch {
			case cell.Flagged:
				sb.WriteByte('F')
			case !cell.Revealed:
				sb.WriteByte('#')
			case cell.HasMine:
				sb.WriteByte('*')
			case cell.AdjacentMines == 0:
				sb.WriteByte('.')
			default:
				sb.WriteByte(byte('0' + cell.AdjacentMines))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
