package tictactoe

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestUnbeatableTakesWin(t *testing.T) {
	bot := NewBot(O, newRand(1))
	b := Board{X, X, Empty, O, O, Empty, Empty, Empty, Empty}

	move, err := bot.ChooseMove(b, Unbeatable)
	require.NoError(t, err)
	// 5 completes O's middle row; 2 would only block
	assert.Equal(t, 5, move)
}

func TestUnbeatableBlocks(t *testing.T) {
	bot := NewBot(O, newRand(1))
	b := Board{X, X, Empty, O, Empty, Empty, Empty, Empty, Empty}

	move, err := bot.ChooseMove(b, Unbeatable)
	require.NoError(t, err)
	assert.Equal(t, 2, move)
}

func TestUnbeatableTieBreaksOnLowestIndex(t *testing.T) {
	bot := NewBot(O, newRand(1))
	// O wins at 1, 6 and 8
	b := Board{O, Empty, O, X, O, X, Empty, X, Empty}

	move, err := bot.ChooseMove(b, Unbeatable)
	require.NoError(t, err)
	assert.Equal(t, 1, move)
}

func TestUnbeatableOpening(t *testing.T) {
	bot := NewBot(O, newRand(9))
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		move, err := bot.ChooseMove(Board{}, Unbeatable)
		require.NoError(t, err)
		require.Contains(t, []int{0, 2, 4, 6, 8}, move)
		seen[move] = true
	}
	assert.Len(t, seen, 5)
}

func TestChooseMoveOnFinishedBoard(t *testing.T) {
	bot := NewBot(O, newRand(1))
	for _, b := range []Board{
		{X, X, X, O, O, Empty, Empty, Empty, Empty},
		{X, O, X, X, O, O, O, X, X},
	} {
		for _, d := range []Difficulty{Easy, Medium, Unbeatable} {
			move, err := bot.ChooseMove(b, d)
			assert.ErrorIs(t, err, ErrNoMove)
			assert.Equal(t, -1, move)
		}
	}
}

func TestChooseMoveUnknownDifficulty(t *testing.T) {
	bot := NewBot(O, newRand(1))
	_, err := bot.ChooseMove(Board{X}, Difficulty("nightmare"))
	assert.Error(t, err)
}

func TestEveryDifficultyPicksEmptyCell(t *testing.T) {
	rng := newRand(42)
	bot := NewBot(O, newRand(43))

	for game := 0; game < 300; game++ {
		var b Board
		turn := X
		for Evaluate(b).Outcome == Playing {
			var move int
			if turn == X {
				cells := b.EmptyCells()
				move = cells[rng.IntN(len(cells))]
			} else {
				d := []Difficulty{Easy, Medium, Unbeatable}[game%3]
				var err error
				move, err = bot.ChooseMove(b, d)
				require.NoError(t, err)
				require.Equal(t, Empty, b[move], "bot chose occupied cell %d on %v", move, b)
			}
			var err error
			b, err = ApplyMove(b, move, turn)
			require.NoError(t, err)
			turn = turn.Opponent()
		}
	}
}

// playAllX explores every X strategy against the bot playing O and returns
// the number of finished games
func playAllX(t *testing.T, bot *Bot, b Board) int {
	t.Helper()

	status := Evaluate(b)
	if status.Terminal() {
		require.NotEqual(t, Status{Outcome: Won, Winner: X}, status, "X beat the bot: %v", b)
		return 1
	}

	games := 0
	for _, i := range b.EmptyCells() {
		afterX, err := ApplyMove(b, i, X)
		require.NoError(t, err)
		if Evaluate(afterX).Terminal() {
			games += playAllX(t, bot, afterX)
			continue
		}

		move, err := bot.ChooseMove(afterX, Unbeatable)
		require.NoError(t, err)
		afterO, err := ApplyMove(afterX, move, O)
		require.NoError(t, err)
		games += playAllX(t, bot, afterO)
	}
	return games
}

func TestUnbeatableNeverLoses(t *testing.T) {
	if testing.Short() {
		t.Skip("exhaustive search")
	}
	bot := NewBot(O, newRand(1))
	games := playAllX(t, bot, Board{})
	assert.Greater(t, games, 0)
}

func TestUnbeatableAsFirstPlayerNeverLoses(t *testing.T) {
	if testing.Short() {
		t.Skip("exhaustive search")
	}
	for seed := uint64(0); seed < 5; seed++ {
		bot := NewBot(X, newRand(seed))
		first, err := bot.ChooseMove(Board{}, Unbeatable)
		require.NoError(t, err)
		var b Board
		b[first] = X

		var walk func(b Board)
		walk = func(b Board) {
			if status := Evaluate(b); status.Terminal() {
				require.NotEqual(t, O, status.Winner, "O beat the bot: %v", b)
				return
			}
			for _, i := range b.EmptyCells() {
				afterO, _ := ApplyMove(b, i, O)
				if Evaluate(afterO).Terminal() {
					walk(afterO)
					continue
				}
				move, err := bot.ChooseMove(afterO, Unbeatable)
				require.NoError(t, err)
				afterX, err := ApplyMove(afterO, move, X)
				require.NoError(t, err)
				walk(afterX)
			}
		}
		walk(b)
	}
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty("Unbeatable")
	require.NoError(t, err)
	assert.Equal(t, Unbeatable, d)

	_, err = ParseDifficulty("hard")
	assert.Error(t, err)
}
