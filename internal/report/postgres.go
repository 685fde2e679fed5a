package report

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const createMatchHistory = `CREATE TABLE IF NOT EXISTS match_history (
	id          TEXT PRIMARY KEY,
	user_ids    TEXT[] NOT NULL,
	scores      INTEGER[] NOT NULL,
	winner      TEXT,
	reason      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`

const insertMatch = `INSERT INTO match_history
	(id, user_ids, scores, winner, reason, created_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING`

// PostgresReporter stores results in the match_history table.
type PostgresReporter struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresReporter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	r := NewPostgresReporter(db)
	if err := r.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("Successfully connected to PostgreSQL")
	return r, nil
}

// NewPostgresReporter wraps an open database.
func NewPostgresReporter(db *sql.DB) *PostgresReporter {
	return &PostgresReporter{db: db}
}

// EnsureSchema creates the match_history table.
func (p *PostgresReporter) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createMatchHistory); err != nil {
		return fmt.Errorf("create match_history: %w", err)
	}
	return nil
}

// Report implements Reporter.
func (p *PostgresReporter) Report(ctx context.Context, r MatchResult) error {
	var winner sql.NullString
	if r.Winner != "" {
		winner = sql.NullString{String: r.Winner, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, insertMatch,
		r.GameID,
		pq.Array(r.Players[:]),
		pq.Array([]int64{int64(r.Scores[0]), int64(r.Scores[1])}),
		winner,
		r.Reason,
		r.StartedAt.UTC(),
		r.EndedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert match %s: %w", r.GameID, err)
	}
	log.Debugf("Match %s saved to PostgreSQL", r.GameID)
	return nil
}

// Close closes the database.
func (p *PostgresReporter) Close() error {
	return p.db.Close()
}
