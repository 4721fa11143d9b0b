package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adops-io/campaign-sync/pkg/campaign"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestOpen_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	count, err := s.CountCampaigns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUpsertCampaign_InsertThenOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := campaign.Record{
		ID:          "c-1",
		Name:        "Spring Push",
		Status:      "active",
		Impressions: 100,
		Clicks:      5,
		Spend:       12.5,
	}
	require.NoError(t, s.UpsertCampaign(ctx, first))

	// Same identity, different field values: must leave exactly one row
	// with the latest values.
	updated := campaign.Record{
		ID:          "c-1",
		Name:        "Spring Push v2",
		Status:      "paused",
		Impressions: 2500,
		Clicks:      80,
		Spend:       310.75,
	}
	require.NoError(t, s.UpsertCampaign(ctx, updated))

	count, err := s.CountCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetCampaign(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestUpsertCampaign_HostileIdentifierStaysData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Parameterized statements must treat SQL metacharacters as data.
	hostile := campaign.Record{
		ID:     `c-1'; DROP TABLE campaigns; --`,
		Name:   `Robert"); DROP TABLE campaigns;--`,
		Status: "active",
	}
	require.NoError(t, s.UpsertCampaign(ctx, hostile))

	got, err := s.GetCampaign(ctx, hostile.ID)
	require.NoError(t, err)
	assert.Equal(t, hostile.Name, got.Name)

	count, err := s.CountCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetCampaign_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCampaign(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestRecordRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := SyncRun{
		ID:         uuid.NewString(),
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Success:    99,
		Failure:    1,
		Total:      100,
	}
	require.NoError(t, s.RecordRun(ctx, run))

	var success, failure, total int
	err := s.db.QueryRowContext(ctx,
		`SELECT success_count, failure_count, total FROM sync_runs WHERE id = ?`, run.ID).
		Scan(&success, &failure, &total)
	require.NoError(t, err)
	assert.Equal(t, 99, success)
	assert.Equal(t, 1, failure)
	assert.Equal(t, 100, total)
}

func TestOpen_Idempotent(t *testing.T) {
	// Re-opening (and thus re-migrating) the same database must not fail.
	dir := t.TempDir()
	path := dir + "/sync.db"
	ctx := context.Background()

	s1, err := Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s1.UpsertCampaign(ctx, campaign.Record{ID: "c-1", Name: "n", Status: "active"}))
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()

	count, err := s2.CountCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
