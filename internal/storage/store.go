// Package storage persists finished rounds and answers leaderboard queries
package storage

import (
	"context"
	"time"

	"github.com/Ifsling/os-in-website/internal/sessions"
)

const (
	defaultLeaderboardLimit = 10
	maxLimit                = 100
)

// Store is implemented by PostgresStore and SQLiteStore
type Store interface {
	SaveResult(ctx context.Context, r sessions.Result) error
	// Leaderboard ranks players by wins. An empty kind ranks across all games
	Leaderboard(ctx context.Context, kind string, limit int) ([]LeaderboardEntry, error)
	PlayerStats(ctx context.Context, player string) (*PlayerStats, error)
	// BestTimes returns the fastest Minesweeper wins for a difficulty
	BestTimes(ctx context.Context, difficulty string, limit int) ([]BestTime, error)
	Analytics(ctx context.Context) (*GameAnalytics, error)
	Clear(ctx context.Context) error
	Close()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLeaderboardLimit
	}
	return min(limit, maxLimit)
}

func winRate(wins, games int) float64 {
	if games == 0 {
		return 0
	}
	return float64(int(float64(wins)/float64(games)*1000+0.5)) / 10
}

// analyticsWindow returns the start of the current UTC day and hour
func analyticsWindow(now time.Time) (today, thisHour time.Time) {
	now = now.UTC()
	return now.Truncate(24 * time.Hour), now.Truncate(time.Hour)
}

// summarize fills the totals of ps from its per-kind rows
func summarize(ps *PlayerStats) {
	var totalDuration int64
	for i := range ps.ByKind {
		k := &ps.ByKind[i]
		if k.Games > 0 {
			k.AvgDurationMs = float64(k.totalDurationMs) / float64(k.Games)
		}
		ps.Wins += k.Wins
		ps.Losses += k.Losses
		ps.Draws += k.Draws
		ps.TotalGames += k.Games
		totalDuration += k.totalDurationMs
	}
	ps.WinRate = winRate(ps.Wins, ps.TotalGames)
	if ps.TotalGames > 0 {
		ps.AvgDurationMs = float64(totalDuration) / float64(ps.TotalGames)
	}
	if ps.ByKind == nil {
		ps.ByKind = []KindStats{}
	}
}
