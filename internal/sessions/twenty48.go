package sessions

import (
	"math/rand/v2"
	"time"

	"github.com/Ifsling/os-in-website/internal/twenty48"
)

// twenty48Game reports a round once: won when 2048 is first reached, even if
// that move also locks the grid, and lost when the grid locks up before that
type twenty48Game struct {
	game     *twenty48.Game
	recorded bool
	started  time.Time
	now      func() time.Time
}

func newTwenty48Game(rng *rand.Rand, now func() time.Time) *twenty48Game {
	return &twenty48Game{game: twenty48.New(rng), now: now}
}

func (g *twenty48Game) apply(a Action) (effect, error) {
	switch a.Type {
	case ActionSlide:
		d, err := twenty48.ParseDirection(a.Direction)
		if err != nil {
			return effect{}, invalidInput(err)
		}
		if g.game.Moves == 0 {
			g.started = g.now()
		}
		if !g.game.Slide(d) {
			return effect{}, nil
		}
		return effect{changed: true, end: g.roundEnd()}, nil

	case ActionContinue:
		return effect{changed: g.game.Continue()}, nil

	case ActionReset:
		g.game.Reset()
		g.recorded = false
		return effect{changed: true}, nil
	}
	return effect{}, unknownAction(KindTwenty48, a)
}

func (g *twenty48Game) roundEnd() *roundEnd {
	if g.recorded {
		return nil
	}
	var outcome Outcome
	switch {
	case g.game.Reached2048():
		outcome = OutcomeWon
	case g.game.Status == twenty48.GameOver:
		outcome = OutcomeLost
	default:
		return nil
	}
	g.recorded = true
	return &roundEnd{
		outcome:  outcome,
		moves:    g.game.Moves,
		duration: g.now().Sub(g.started),
		score:    g.game.Score,
	}
}

func (g *twenty48Game) awaitingReply() bool { return false }

func (g *twenty48Game) view() any {
	v := *g.game
	return &v
}
