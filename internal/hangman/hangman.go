// Package hangman implements the letter-guessing game
package hangman

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
)

// MaxWrongGuesses is the number of misses that loses a round
const MaxWrongGuesses = 6

// Words is the default word list. All entries are upper-case A-Z
var Words = []string{
	"GOROUTINE", "CHANNEL", "INTERFACE", "POINTER", "SLICE",
	"MUTEX", "COMPILER", "PACKAGE", "STRUCT", "CLOSURE",
	"BROWSER", "TERMINAL", "DESKTOP", "WINDOW", "FOLDER",
	"NOTEPAD", "CALCULATOR", "KEYBOARD", "MONITOR", "NETWORK",
}

type Status string

const (
	Playing Status = "playing"
	Won     Status = "won"
	Lost    Status = "lost"
)

var (
	ErrInvalidLetter  = errors.New("guess must be a single letter A-Z")
	ErrAlreadyGuessed = errors.New("letter already guessed")
	ErrGameOver       = errors.New("round is over")
)

// Game holds one round plus the running tally
type Game struct {
	Word    string
	Guessed []rune
	Wrong   int
	Status  Status
	Wins    int
	Losses  int

	words []string
	rng   *rand.Rand
}

// New starts a round with a word drawn from words (Words when empty)
func New(rng *rand.Rand, words []string) *Game {
	if len(words) == 0 {
		words = Words
	}
	g := &Game{words: words, rng: rng}
	g.NewRound()
	return g
}

// NewRound draws a new word and keeps wins and losses
func (g *Game) NewRound() {
	g.Word = strings.ToUpper(g.words[g.rng.IntN(len(g.words))])
	g.Guessed = g.Guessed[:0]
	g.Wrong = 0
	g.Status = Playing
}

// Guess plays one letter and returns whether it is in the word
func (g *Game) Guess(s string) (bool, error) {
	if g.Status != Playing {
		return false, ErrGameOver
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 1 || s[0] < 'A' || s[0] > 'Z' {
		return false, ErrInvalidLetter
	}
	letter := rune(s[0])
	if slices.Contains(g.Guessed, letter) {
		return false, ErrAlreadyGuessed
	}

	g.Guessed = append(g.Guessed, letter)
	hit := strings.ContainsRune(g.Word, letter)
	if !hit {
		g.Wrong++
	}

	switch {
	case g.solved():
		g.Status = Won
		g.Wins++
	case g.Wrong >= MaxWrongGuesses:
		g.Status = Lost
		g.Losses++
	}
	return hit, nil
}

func (g *Game) solved() bool {
	for _, r := range g.Word {
		if !slices.Contains(g.Guessed, r) {
			return false
		}
	}
	return true
}

// Masked shows guessed letters and '_' for the rest. A lost round shows the word
func (g *Game) Masked() string {
	if g.Status == Lost {
		return g.Word
	}
	var sb strings.Builder
	for _, r := range g.Word {
		if slices.Contains(g.Guessed, r) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// GuessesLeft returns the remaining misses before the round is lost
func (g *Game) GuessesLeft() int {
	return MaxWrongGuesses - g.Wrong
}
