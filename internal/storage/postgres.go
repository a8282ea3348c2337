package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/Ifsling/os-in-website/internal/sessions"
)

// PostgresStore handles database operations
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dbURL and creates the schema
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.WithField("component", "storage").Info("connected to PostgreSQL")
	return store, nil
}

// initSchema creates the necessary tables
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS round_results (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL,
			kind VARCHAR(20) NOT NULL,
			player VARCHAR(50) NOT NULL,
			outcome VARCHAR(10) NOT NULL,
			winner VARCHAR(10) NOT NULL DEFAULT '',
			mode VARCHAR(10) NOT NULL DEFAULT '',
			difficulty VARCHAR(20) NOT NULL DEFAULT '',
			moves INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			score INTEGER NOT NULL DEFAULT 0,
			finished_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_round_results_player ON round_results(player);
		CREATE INDEX IF NOT EXISTS idx_round_results_kind ON round_results(kind);
		CREATE INDEX IF NOT EXISTS idx_round_results_finished_at ON round_results(finished_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// SaveResult stores a finished round
func (s *PostgresStore) SaveResult(ctx context.Context, r sessions.Result) error {
	query := `
		INSERT INTO round_results (id, session_id, kind, player, outcome, winner, mode,
		                           difficulty, moves, duration_ms, score, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.SessionID,
		string(r.Kind),
		r.Player,
		string(r.Outcome),
		r.Winner,
		r.Mode,
		r.Difficulty,
		r.Moves,
		r.DurationMs,
		r.Score,
		r.FinishedAt,
	)
	return err
}

// Leaderboard returns the top players by wins
func (s *PostgresStore) Leaderboard(ctx context.Context, kind string, limit int) ([]LeaderboardEntry, error) {
	query := `
		SELECT
			player,
			COUNT(*) FILTER (WHERE outcome = 'won') AS wins,
			COUNT(*) FILTER (WHERE outcome = 'lost') AS losses,
			COUNT(*) FILTER (WHERE outcome = 'draw') AS draws,
			COUNT(*) AS games,
			COALESCE(MAX(score), 0) AS best_score
		FROM round_results
		WHERE $1::text = '' OR kind = $1::text
		GROUP BY player
		ORDER BY wins DESC, games ASC, player ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, kind, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	rank := 1
	for rows.Next() {
		var entry LeaderboardEntry
		err := rows.Scan(&entry.Player, &entry.Wins, &entry.Losses, &entry.Draws, &entry.Games, &entry.BestScore)
		if err != nil {
			return nil, err
		}
		entry.Rank = rank
		entry.WinRate = winRate(entry.Wins, entry.Games)
		entries = append(entries, entry)
		rank++
	}

	return entries, rows.Err()
}

// PlayerStats returns per-game and overall statistics for a player
func (s *PostgresStore) PlayerStats(ctx context.Context, player string) (*PlayerStats, error) {
	query := `
		SELECT
			kind,
			COUNT(*) FILTER (WHERE outcome = 'won') AS wins,
			COUNT(*) FILTER (WHERE outcome = 'lost') AS losses,
			COUNT(*) FILTER (WHERE outcome = 'draw') AS draws,
			COUNT(*) AS games,
			COALESCE(MAX(score), 0) AS best_score,
			COALESCE(SUM(duration_ms), 0)::bigint AS total_duration
		FROM round_results
		WHERE player = $1
		GROUP BY kind
		ORDER BY kind
	`

	rows, err := s.pool.Query(ctx, query, player)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &PlayerStats{Player: player}
	for rows.Next() {
		var k KindStats
		err := rows.Scan(&k.Kind, &k.Wins, &k.Losses, &k.Draws, &k.Games, &k.BestScore, &k.totalDurationMs)
		if err != nil {
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

// BestTimes returns the fastest Minesweeper wins on a difficulty
func (s *PostgresStore) BestTimes(ctx context.Context, difficulty string, limit int) ([]BestTime, error) {
	query := `
		SELECT player, difficulty, duration_ms, moves, finished_at
		FROM round_results
		WHERE kind = 'minesweeper' AND outcome = 'won' AND difficulty = $1
		ORDER BY duration_ms ASC, finished_at ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, difficulty, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := []BestTime{}
	for rows.Next() {
		var bt BestTime
		if err := rows.Scan(&bt.Player, &bt.Difficulty, &bt.DurationMs, &bt.Moves, &bt.FinishedAt); err != nil {
			return nil, err
		}
		bt.Rank = len(times) + 1
		times = append(times, bt)
	}

	return times, rows.Err()
}

// Analytics returns aggregated round analytics
func (s *PostgresStore) Analytics(ctx context.Context) (*GameAnalytics, error) {
	today, thisHour := analyticsWindow(time.Now())

	query := `
		SELECT
			COUNT(*) AS total_games,
			COUNT(DISTINCT player) AS total_players,
			COALESCE(AVG(duration_ms), 0)::float8 AS avg_duration,
			COUNT(*) FILTER (WHERE finished_at >= $1) AS games_today,
			COUNT(*) FILTER (WHERE finished_at >= $2) AS games_this_hour
		FROM round_results
	`

	analytics := GameAnalytics{GamesByKind: map[string]int{}}
	err := s.pool.QueryRow(ctx, query, today, thisHour).Scan(
		&analytics.TotalGames,
		&analytics.TotalPlayers,
		&analytics.AvgDurationMs,
		&analytics.GamesToday,
		&analytics.GamesThisHour,
	)
	if err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT player FROM round_results
		WHERE outcome = 'won'
		GROUP BY player
		ORDER BY COUNT(*) DESC, player ASC
		LIMIT 1
	`).Scan(&analytics.MostFrequentWinner)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT kind, COUNT(*) FROM round_results GROUP BY kind`)
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

// Clear deletes every stored round
func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM round_results`)
	return err
}

// Close closes the database connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
