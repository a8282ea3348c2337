package sessions

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/Ifsling/os-in-website/internal/hangman"
)

type hangmanGame struct {
	game    *hangman.Game
	started time.Time
	now     func() time.Time
}

func newHangmanGame(rng *rand.Rand, now func() time.Time) *hangmanGame {
	return &hangmanGame{game: hangman.New(rng, nil), started: now(), now: now}
}

func (g *hangmanGame) apply(a Action) (effect, error) {
	switch a.Type {
	case ActionGuess:
		if _, err := g.game.Guess(a.Letter); err != nil {
			if errors.Is(err, hangman.ErrInvalidLetter) {
				return effect{}, invalidInput(err)
			}
			return effect{}, err
		}
		eff := effect{changed: true}
		if g.game.Status != hangman.Playing {
			outcome := OutcomeWon
			if g.game.Status == hangman.Lost {
				outcome = OutcomeLost
			}
			eff.end = &roundEnd{
				outcome:  outcome,
				moves:    len(g.game.Guessed),
				duration: g.now().Sub(g.started),
				score:    hangman.MaxWrongGuesses - g.game.Wrong,
			}
		}
		return eff, nil

	case ActionReset:
		g.game.NewRound()
		g.started = g.now()
		return effect{changed: true}, nil
	}
	return effect{}, unknownAction(KindHangman, a)
}

func (g *hangmanGame) awaitingReply() bool { return false }

type hangmanView struct {
	Masked      string         `json:"masked"`
	Guessed     string         `json:"guessed"`
	Wrong       int            `json:"wrong"`
	GuessesLeft int            `json:"guessesLeft"`
	Status      hangman.Status `json:"status"`
	Wins        int            `json:"wins"`
	Losses      int            `json:"losses"`
}

func (g *hangmanGame) view() any {
	return hangmanView{
		Masked:      g.game.Masked(),
		Guessed:     string(g.game.Guessed),
		Wrong:       g.game.Wrong,
		GuessesLeft: g.game.GuessesLeft(),
		Status:      g.game.Status,
		Wins:        g.game.Wins,
		Losses:      g.game.Losses,
	}
}
