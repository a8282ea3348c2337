package sessions

import (
	"errors"
	"math/rand/v2"

	"github.com/Ifsling/os-in-website/internal/tictactoe"
)

type ticTacToeGame struct {
	game *tictactoe.Game
}

func newTicTacToeGame(opts Options, rng *rand.Rand) (*ticTacToeGame, error) {
	mode, difficulty := tictactoe.PlayerVsAI, tictactoe.Unbeatable
	var err error
	if opts.Mode != "" {
		if mode, err = tictactoe.ParseMode(opts.Mode); err != nil {
			return nil, invalidInput(err)
		}
	}
	if opts.Difficulty != "" {
		if difficulty, err = tictactoe.ParseDifficulty(opts.Difficulty); err != nil {
			return nil, invalidInput(err)
		}
	}
	return &ticTacToeGame{game: tictactoe.NewGame(mode, difficulty, rng)}, nil
}

func (g *ticTacToeGame) apply(a Action) (effect, error) {
	switch a.Type {
	case ActionMove:
		status, err := g.game.Play(a.Index)
		if errors.Is(err, tictactoe.ErrInvalidPosition) {
			return effect{}, invalidInput(err)
		}
		if err != nil {
			return effect{}, err
		}
		return effect{changed: true, end: g.roundEnd(status)}, nil

	case ActionAI:
		_, status, err := g.game.PlayAI()
		if err != nil {
			return effect{}, err
		}
		return effect{changed: true, end: g.roundEnd(status)}, nil

	case ActionReset:
		g.game.Reset()
		return effect{changed: true}, nil

	case ActionResetScores:
		g.game.ResetScores()
		return effect{changed: true}, nil

	case ActionMode:
		mode, err := tictactoe.ParseMode(a.Mode)
		if err != nil {
			return effect{}, invalidInput(err)
		}
		g.game.SetMode(mode)
		return effect{changed: true}, nil

	case ActionDifficulty:
		d, err := tictactoe.ParseDifficulty(a.Difficulty)
		if err != nil {
			return effect{}, invalidInput(err)
		}
		g.game.SetDifficulty(d)
		return effect{changed: true}, nil
	}
	return effect{}, unknownAction(KindTicTacToe, a)
}

// roundEnd maps a terminal status to the owner's outcome. Against the bot
// the owner plays X; in a local two-player game any win counts as won
func (g *ticTacToeGame) roundEnd(status tictactoe.Status) *roundEnd {
	if !status.Terminal() {
		return nil
	}
	state := g.game.GetState()
	end := &roundEnd{
		mode:     string(state.Mode),
		moves:    state.MoveCount,
		duration: g.game.GetDuration(),
	}
	if state.Mode == tictactoe.PlayerVsAI {
		end.difficulty = string(state.Difficulty)
	}

	switch {
	case status.Outcome == tictactoe.Draw:
		end.outcome = OutcomeDraw
	case state.Mode == tictactoe.PlayerVsAI && status.Winner == tictactoe.O:
		end.outcome = OutcomeLost
		end.winner = status.Winner.String()
	default:
		end.outcome = OutcomeWon
		end.winner = status.Winner.String()
	}
	return end
}

func (g *ticTacToeGame) awaitingReply() bool { return g.game.AwaitingAI() }

func (g *ticTacToeGame) view() any { return g.game.GetState() }
