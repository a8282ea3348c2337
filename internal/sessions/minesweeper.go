package sessions

import (
	"math/rand/v2"
	"time"

	"github.com/Ifsling/os-in-website/internal/minesweeper"
)

type minesweeperGame struct {
	board      *minesweeper.Board
	difficulty minesweeper.Difficulty
	moves      int
	started    time.Time
	ended      time.Time
	rng        *rand.Rand
	now        func() time.Time
}

func newMinesweeperGame(opts Options, rng *rand.Rand, now func() time.Time) (*minesweeperGame, error) {
	d := minesweeper.Easy
	if opts.Difficulty != "" {
		var err error
		if d, err = minesweeper.ParseDifficulty(opts.Difficulty); err != nil {
			return nil, invalidInput(err)
		}
	}
	return &minesweeperGame{
		board:      minesweeper.NewBoard(d),
		difficulty: d,
		rng:        rng,
		now:        now,
	}, nil
}

func (g *minesweeperGame) reset(d minesweeper.Difficulty) {
	g.board = minesweeper.NewBoard(d)
	g.difficulty = d
	g.moves = 0
	g.started = time.Time{}
	g.ended = time.Time{}
}

func (g *minesweeperGame) apply(a Action) (effect, error) {
	switch a.Type {
	case ActionReveal:
		first := g.board.Status == minesweeper.StatusWaiting
		if !g.board.Reveal(g.rng, a.Row, a.Col) {
			return effect{}, nil
		}
		if first {
			g.started = g.now()
		}
		g.moves++
		return effect{changed: true, end: g.roundEnd()}, nil

	case ActionFlag:
		if !g.board.ToggleFlag(a.Row, a.Col) {
			return effect{}, nil
		}
		g.moves++
		return effect{changed: true}, nil

	case ActionReset:
		g.reset(g.difficulty)
		return effect{changed: true}, nil

	case ActionDifficulty:
		d, err := minesweeper.ParseDifficulty(a.Difficulty)
		if err != nil {
			return effect{}, invalidInput(err)
		}
		g.reset(d)
		return effect{changed: true}, nil
	}
	return effect{}, unknownAction(KindMinesweeper, a)
}

func (g *minesweeperGame) roundEnd() *roundEnd {
	var outcome Outcome
	switch g.board.Status {
	case minesweeper.StatusWon:
		outcome = OutcomeWon
	case minesweeper.StatusLost:
		outcome = OutcomeLost
	default:
		return nil
	}
	g.ended = g.now()
	return &roundEnd{
		outcome:    outcome,
		difficulty: g.difficulty.Name,
		moves:      g.moves,
		duration:   g.ended.Sub(g.started),
	}
}

func (g *minesweeperGame) awaitingReply() bool { return false }

// cellView hides mine positions and counts of covered cells until the
// round is over
type cellView struct {
	Revealed bool `json:"revealed"`
	Flagged  bool `json:"flagged"`
	Mine     bool `json:"mine,omitempty"`
	Adjacent int  `json:"adjacent,omitempty"`
}

type minesweeperView struct {
	Difficulty     string             `json:"difficulty"`
	Rows           int                `json:"rows"`
	Cols           int                `json:"cols"`
	Mines          int                `json:"mines"`
	MinesLeft      int                `json:"minesLeft"`
	Status         minesweeper.Status `json:"status"`
	Moves          int                `json:"moves"`
	ElapsedSeconds int                `json:"elapsedSeconds"`
	Cells          [][]cellView       `json:"cells"`
}

func (g *minesweeperGame) view() any {
	b := g.board
	over := b.Status.Terminal()
	cells := make([][]cellView, b.Rows)
	for r := range cells {
		cells[r] = make([]cellView, b.Cols)
		for c, cell := range b.Cells[r] {
			v := cellView{Revealed: cell.Revealed, Flagged: cell.Flagged}
			if cell.Revealed || over {
				v.Mine = cell.HasMine
				v.Adjacent = cell.AdjacentMines
			}
			cells[r][c] = v
		}
	}

	// the timer stops with the round
	elapsed := 0
	switch {
	case b.Status == minesweeper.StatusPlaying:
		elapsed = int(g.now().Sub(g.started).Seconds())
	case over && !g.ended.IsZero():
		elapsed = int(g.ended.Sub(g.started).Seconds())
	}
	return minesweeperView{
		Difficulty:     g.difficulty.Name,
		Rows:           b.Rows,
		Cols:           b.Cols,
		Mines:          b.Mines,
		MinesLeft:      b.MinesLeft,
		Status:         b.Status,
		Moves:          g.moves,
		ElapsedSeconds: elapsed,
		Cells:          cells,
	}
}
