package minesweeper

import "math/rand/v2"

type point struct{ row, col int }

// Reveal opens the cell at (row, col) and returns whether the board changed.
//
// The first reveal of a round places the mines, never on the clicked cell.
// Hitting a mine discloses every mine and loses the round; opening a cell with
// no adjacent mines opens the surrounding region. Revealing the last safe cell
// wins and flags the remaining mines
func (b *Board) Reveal(rng *rand.Rand, row, col int) bool {
	if b.Status.Terminal() || !b.InBounds(row, col) {
		return false
	}
	target := &b.Cells[row][col]
	if target.Revealed || target.Flagged {
		return false
	}

	if b.Status == StatusWaiting {
		b.placeMines(rng, row, col)
		b.Status = StatusPlaying
	}

	if target.HasMine {
		b.revealMines()
		b.Status = StatusLost
		return true
	}

	b.floodFill(row, col)

	if b.revealed == b.Rows*b.Cols-b.Mines {
		b.win()
	}
	return true
}

// ToggleFlag flips the flag on a hidden cell. MinesLeft is advisory and goes
// negative when more cells are flagged than there are mines
func (b *Board) ToggleFlag(row, col int) bool {
	if b.Status.Terminal() || !b.InBounds(row, col) {
		return false
	}
	cell := &b.Cells[row][col]
	if cell.Revealed {
		return false
	}

	cell.Flagged = !cell.Flagged
	if cell.Flagged {
		b.MinesLeft--
	} else {
		b.MinesLeft++
	}
	return true
}

// placeMines picks b.Mines distinct cells uniformly among all cells except the
// excluded one, then fills in the adjacency counts
func (b *Board) placeMines(rng *rand.Rand, exRow, exCol int) {
	excluded := exRow*b.Cols + exCol
	candidates := make([]int, 0, b.Rows*b.Cols-1)
	for i := 0; i < b.Rows*b.Cols; i++ {
		if i != excluded {
			candidates = append(candidates, i)
		}
	}

	// partial Fisher-Yates: the first b.Mines slots end up a uniform sample
	for i := 0; i < b.Mines; i++ {
		j := i + rng.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
		b.Cells[candidates[i]/b.Cols][candidates[i]%b.Cols].HasMine = true
	}

	b.countAdjacent()
}

func (b *Board) countAdjacent() {
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			if b.Cells[r][c].HasMine {
				continue
			}
			count := 0
			b.neighbours(r, c, func(nr, nc int) {
				if b.Cells[nr][nc].HasMine {
					count++
				}
			})
			b.Cells[r][c].AdjacentMines = count
		}
	}
}

// floodFill reveals (row, col) and expands through zero-count cells using an
// explicit queue. Each cell is revealed at most once, so the loop ends after
// at most Rows*Cols reveals
func (b *Board) floodFill(row, col int) {
	queue := []point{{row, col}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		cell := &b.Cells[p.row][p.col]
		if cell.Revealed || cell.Flagged || cell.HasMine {
			continue
		}
		cell.Revealed = true
		b.revealed++

		if cell.AdjacentMines != 0 {
			continue
		}
		b.neighbours(p.row, p.col, func(nr, nc int) {
			n := b.Cells[nr][nc]
			if !n.Revealed && !n.Flagged {
				queue = append(queue, point{nr, nc})
			}
		})
	}
}

// revealMines discloses every mine after a loss. A flag on a mine is dropped
// so no cell ends up both revealed and flagged
func (b *Board) revealMines() {
	for r := range b.Cells {
		for c := range b.Cells[r] {
			cell := &b.Cells[r][c]
			if cell.HasMine && !cell.Revealed {
				cell.Revealed = true
				cell.Flagged = false
				b.revealed++
			}
		}
	}
}

func (b *Board) win() {
	b.Status = StatusWon
	for r := range b.Cells {
		for c := range b.Cells[r] {
			if b.Cells[r][c].HasMine {
				b.Cells[r][c].Flagged = true
			}
		}
	}
	b.MinesLeft = 0
}
