// Package store is the local durable sink for synced campaigns, backed by
// SQLite. Writes are idempotent upserts keyed by the campaign's external
// identity, so a re-run of the same sync is always safe.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/adops-io/campaign-sync/pkg/campaign"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SyncRun is the durable audit row written at the end of each run.
type SyncRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Success    int
	Failure    int
	Total      int
}

// Store is the SQLite persistence sink.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open connects to the SQLite database at dbPath (":memory:" for an
// in-memory database), applies pragmas, and runs migrations. Opening an
// already-migrated database is a no-op beyond the connection itself.
func Open(ctx context.Context, dbPath string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite allows a single writer; one connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Ping verifies the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// UpsertCampaign inserts the record or overwrites all non-identity fields
// of an existing one. The statement is fully parameterized.
func (s *Store) UpsertCampaign(ctx context.Context, rec campaign.Record) error {
	query := `
		INSERT INTO campaigns (id, name, status, impressions, clicks, spend, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			impressions = excluded.impressions,
			clicks = excluded.clicks,
			spend = excluded.spend,
			synced_at = excluded.synced_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Name,
		rec.Status,
		rec.Impressions,
		rec.Clicks,
		rec.Spend,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert campaign %s: %w", rec.ID, err)
	}

	return nil
}

// GetCampaign retrieves one stored campaign by ID.
// Returns sql.ErrNoRows when absent.
func (s *Store) GetCampaign(ctx context.Context, id string) (campaign.Record, error) {
	query := `
		SELECT id, name, status, impressions, clicks, spend
		FROM campaigns
		WHERE id = ?
	`

	var rec campaign.Record
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Name,
		&rec.Status,
		&rec.Impressions,
		&rec.Clicks,
		&rec.Spend,
	)
	if err != nil {
		return campaign.Record{}, fmt.Errorf("get campaign %s: %w", id, err)
	}

	return rec, nil
}

// CountCampaigns returns the number of stored campaigns.
func (s *Store) CountCampaigns(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count campaigns: %w", err)
	}
	return count, nil
}

// RecordRun persists the audit row for a completed sync run.
func (s *Store) RecordRun(ctx context.Context, run SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, started_at, finished_at, success_count, failure_count, total)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.Unix(),
		run.FinishedAt.Unix(),
		run.Success,
		run.Failure,
		run.Total,
	)
	if err != nil {
		return fmt.Errorf("record sync run %s: %w", run.ID, err)
	}

	s.logger.Debug().
		Str("run_id", run.ID).
		Int("success", run.Success).
		Int("failure", run.Failure).
		Msg("Recorded sync run")

	return nil
}
