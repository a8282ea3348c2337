package storage

import (
	"time"
)

// LeaderboardEntry represents a player's ranking
type LeaderboardEntry struct {
	Rank      int     `json:"rank"`
	Player    string  `json:"player"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Draws     int     `json:"draws"`
	Games     int     `json:"games"`
	WinRate   float64 `json:"winRate"`
	BestScore int     `json:"bestScore"`
}

// KindStats holds a player's record in one game
type KindStats struct {
	Kind          string  `json:"kind"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Draws         int     `json:"draws"`
	Games         int     `json:"games"`
	BestScore     int     `json:"bestScore"`
	AvgDurationMs float64 `json:"avgDurationMs"`

	totalDurationMs int64
}

// PlayerStats represents detailed player statistics
type PlayerStats struct {
	Player        string      `json:"player"`
	Wins          int         `json:"wins"`
	Losses        int         `json:"losses"`
	Draws         int         `json:"draws"`
	TotalGames    int         `json:"totalGames"`
	WinRate       float64     `json:"winRate"`
	AvgDurationMs float64     `json:"avgDurationMs"`
	ByKind        []KindStats `json:"byKind"`
}

// BestTime is one fast Minesweeper win
type BestTime struct {
	Rank       int       `json:"rank"`
	Player     string    `json:"player"`
	Difficulty string    `json:"difficulty"`
	DurationMs int64     `json:"durationMs"`
	Moves      int       `json:"moves"`
	FinishedAt time.Time `json:"finishedAt"`
}

// GameAnalytics represents aggregated round analytics
type GameAnalytics struct {
	TotalGames         int            `json:"totalGames"`
	TotalPlayers       int            `json:"totalPlayers"`
	AvgDurationMs      float64        `json:"avgDurationMs"`
	GamesToday         int            `json:"gamesToday"`
	GamesThisHour      int            `json:"gamesThisHour"`
	MostFrequentWinner string         `json:"mostFrequentWinner"`
	GamesByKind        map[string]int `json:"gamesByKind"`
}
