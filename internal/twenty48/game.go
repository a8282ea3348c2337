// Package twenty48 implements the sliding-tile 2048 game on a 4x4 grid
package twenty48

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Board dimensions and the tile that wins a round
const (
	Size        = 4
	WinningTile = 2048
)

// Grid holds tile values; 0 is an empty cell
type Grid [Size][Size]int

// Direction is the way tiles slide
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// ErrUnknownDirection is returned for a direction other than up, down, left or right
var ErrUnknownDirection = errors.New("unknown direction")

// ParseDirection turns a case-insensitive direction name into a Direction
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case Up, Down, Left, Right:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Status is the state of the current round
type Status string

const (
	Playing  Status = "playing"
	Won      Status = "won"
	GameOver Status = "game-over"
)

// Game is one 2048 board plus its score. Best survives Reset
type Game struct {
	Grid        Grid   `json:"grid"`
	Score       int    `json:"score"`
	Best        int    `json:"best"`
	Status      Status `json:"status"`
	KeepPlaying bool   `json:"keepPlaying"`
	Moves       int    `json:"moves"`

	won bool
	rng *rand.Rand
}

// New creates a game with two starting tiles, drawing tile positions from rng
func New(rng *rand.Rand) *Game {
	g := &Game{rng: rng}
	g.Reset()
	return g
}

// Reset clears the grid and places two starting tiles
func (g *Game) Reset() {
	g.Grid = Grid{}
	g.Score = 0
	g.Status = Playing
	g.KeepPlaying = false
	g.Moves = 0
	g.won = false
	g.spawn()
	g.spawn()
}

// Reached2048 reports whether the winning tile has appeared this round,
// including when the same move also locked the grid
func (g *Game) Reached2048() bool { return g.won }

// Continue resumes play after reaching 2048
func (g *Game) Continue() bool {
	if g.Status != Won {
		return false
	}
	g.KeepPlaying = true
	g.Status = Playing
	return true
}

// Slide moves every tile in d, merging equal neighbours once per move.
// It reports whether anything moved; a move that changes nothing spawns no tile
func (g *Game) Slide(d Direction) bool {
	if g.Status == GameOver || (g.Status == Won && !g.KeepPlaying) {
		return false
	}

	moved := false
	for i := 0; i < Size; i++ {
		line := g.line(d, i)
		merged, gained := collapse(line)
		if merged != line {
			moved = true
			g.setLine(d, i, merged)
			g.Score += gained
		}
	}
	if !moved {
		return false
	}

	g.Moves++
	if g.Score > g.Best {
		g.Best = g.Score
	}
	if !g.won && g.maxTile() >= WinningTile {
		g.won = true
		g.Status = Won
	}
	g.spawn()
	if !g.canMove() {
		g.Status = GameOver
	}
	return true
}

// line reads row or column i ordered so that tiles travel towards index 0
func (g *Game) line(d Direction, i int) [Size]int {
	var l [Size]int
	for j := 0; j < Size; j++ {
		r, c := coords(d, i, j)
		l[j] = g.Grid[r][c]
	}
	return l
}

func (g *Game) setLine(d Direction, i int, l [Size]int) {
	for j := 0; j < Size; j++ {
		r, c := coords(d, i, j)
		g.Grid[r][c] = l[j]
	}
}

func coords(d Direction, i, j int) (row, col int) {
	switch d {
	case Left:
		return i, j
	case Right:
		return i, Size - 1 - j
	case Up:
		return j, i
	default:
		return Size - 1 - j, i
	}
}

// collapse slides a line towards index 0 and merges equal pairs from the
// front; a tile produced by a merge does not merge again in the same move
func collapse(line [Size]int) ([Size]int, int) {
	var out [Size]int
	n, gained := 0, 0
	justMerged := false
	for _, v := range line {
		if v == 0 {
			continue
		}
		if n > 0 && !justMerged && out[n-1] == v {
			out[n-1] *= 2
			gained += out[n-1]
			justMerged = true
			continue
		}
		out[n] = v
		n++
		justMerged = false
	}
	return out, gained
}

// spawn puts a 2 (90%) or a 4 (10%) on a random empty cell
func (g *Game) spawn() {
	var empty [][2]int
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if g.Grid[r][c] == 0 {
				empty = append(empty, [2]int{r, c})
			}
		}
	}
	if len(empty) == 0 {
		return
	}
	cell := empty[g.rng.IntN(len(empty))]
	v := 2
	if g.rng.Float64() >= 0.9 {
		v = 4
	}
	g.Grid[cell[0]][cell[1]] = v
}

func (g *Game) maxTile() int {
	m := 0
	for r := range g.Grid {
		for _, v := range g.Grid[r] {
			m = max(m, v)
		}
	}
	return m
}

// canMove reports whether any slide could change the grid
func (g *Game) canMove() bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			v := g.Grid[r][c]
			if v == 0 {
				return true
			}
			if r < Size-1 && g.Grid[r+1][c] == v {
				return true
			}
			if c < Size-1 && g.Grid[r][c+1] == v {
				return true
			}
		}
	}
	return false
}
