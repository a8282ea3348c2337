package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"github.com/Ifsling/os-in-website/internal/sessions"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS round_results (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	player TEXT NOT NULL,
	outcome TEXT NOT NULL,
	winner TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL DEFAULT '',
	difficulty TEXT NOT NULL DEFAULT '',
	moves INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	score INTEGER NOT NULL DEFAULT 0,
	finished_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_round_results_player ON round_results(player);
CREATE INDEX IF NOT EXISTS idx_round_results_kind ON round_results(kind);
`

// SQLiteStore keeps results in a local SQLite file. finished_at is stored
// as Unix milliseconds
type SQLiteStore struct {
	DB *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path not set")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// a single writer avoids "database is locked" under concurrent rounds
	db.SetMaxOpenConns(1)

	// Need to ping the database to check if the file could be opened
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.WithFields(log.Fields{"component": "storage", "path": path}).Info("opened SQLite database")
	return &SQLiteStore{DB: db}, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, r sessions.Result) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO round_results (id, session_id, kind, player, outcome, winner, mode,
		                                     difficulty, moves, duration_ms, score, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, string(r.Kind), r.Player, string(r.Outcome), r.Winner, r.Mode,
		r.Difficulty, r.Moves, r.DurationMs, r.Score, r.FinishedAt.UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) Leaderboard(ctx context.Context, kind string, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT
			player,
			SUM(CASE WHEN outcome = 'won' THEN 1 ELSE 0 END) AS wins,
			SUM(CASE WHEN outcome = 'lost' THEN 1 ELSE 0 END) AS losses,
			SUM(CASE WHEN outcome = 'draw' THEN 1 ELSE 0 END) AS draws,
			COUNT(*) AS games,
			COALESCE(MAX(score), 0) AS best_score
		FROM round_results
		WHERE ? = '' OR kind = ?
		GROUP BY player
		ORDER BY wins DESC, games ASC, player ASC
		LIMIT ?`,
		kind, kind, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.Player, &entry.Wins, &entry.Losses, &entry.Draws, &entry.Games, &entry.BestScore); err != nil {
			return nil, err
		}
		entry.Rank = len(entries) + 1
		entry.WinRate = winRate(entry.Wins, entry.Games)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) PlayerStats(ctx context.Context, player string) (*PlayerStats, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT
			kind,
			SUM(CASE WHEN outcome = 'won' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'lost' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'draw' THEN 1 ELSE 0 END),
			COUNT(*),
			COALESCE(MAX(score), 0),
			COALESCE(SUM(duration_ms), 0)
		FROM round_results
		WHERE player = ?
		GROUP BY kind
		ORDER BY kind`,
		player,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &PlayerStats{Player: player}
	for rows.Next() {
		var k KindStats
		if err := rows.Scan(&k.Kind, &k.Wins, &k.Losses, &k.Draws, &k.Games, &k.BestScore, &k.totalDurationMs); err != nil {
			return nil, err
		}
		stats.ByKind = append(stats.ByKind, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summarize(stats)
	return stats, nil
}

func (s *SQLiteStore) BestTimes(ctx context.Context, difficulty string, limit int) ([]BestTime, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT player, difficulty, duration_ms, moves, finished_at
		FROM round_results
		WHERE kind = 'minesweeper' AND outcome = 'won' AND difficulty = ?
		ORDER BY duration_ms ASC, finished_at ASC
		LIMIT ?`,
		difficulty, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := []BestTime{}
	for rows.Next() {
		var bt BestTime
		var finished int64
		if err := rows.Scan(&bt.Player, &bt.Difficulty, &bt.DurationMs, &bt.Moves, &finished); err != nil {
			return nil, err
		}
		bt.FinishedAt = time.UnixMilli(finished).UTC()
		bt.Rank = len(times) + 1
		times = append(times, bt)
	}
	return times, rows.Err()
}

func (s *SQLiteStore) Analytics(ctx context.Context) (*GameAnalytics, error) {
	today, thisHour := analyticsWindow(time.Now())

	analytics := GameAnalytics{GamesByKind: map[string]int{}}
	err := s.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT player),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(SUM(CASE WHEN finished_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN finished_at >= ? THEN 1 ELSE 0 END), 0)
		FROM round_results`,
		today.UnixMilli(), thisHour.UnixMilli(),
	).Scan(
		&analytics.TotalGames,
		&analytics.TotalPlayers,
		&analytics.AvgDurationMs,
		&analytics.GamesToday,
		&analytics.GamesThisHour,
	)
	if err != nil {
		return nil, err
	}

	err = s.DB.QueryRowContext(ctx, `
		SELECT player FROM round_results
		WHERE outcome = 'won'
		GROUP BY player
		ORDER BY COUNT(*) DESC, player ASC
		LIMIT 1`,
	).Scan(&analytics.MostFrequentWinner)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT kind, COUNT(*) FROM round_results GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		analytics.GamesByKind[kind] = n
	}
	return &analytics, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM round_results`)
	return err
}

func (s *SQLiteStore) Close() {
	s.DB.Close()
}
