package logs

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/investment-portfolio-manager/internal/database"
)

func setupRepo(t *testing.T) *Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1) // each :memory: connection is a separate database
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema("cache")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return NewRepository(db, zerolog.Nop())
}

func TestInsertAndList(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Insert(LogEntry{Level: "warn", Category: "flex", Message: "statement not ready"}))
	require.NoError(t, repo.Insert(LogEntry{Level: "error", Category: "ibkr", Message: "allocation failed"}))

	all, err := repo.List(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	errorsOnly, err := repo.List(Filter{Level: "error"})
	require.NoError(t, err)
	require.Len(t, errorsOnly, 1)
	assert.Equal(t, "allocation failed", errorsOnly[0].Message)

	byCategory, err := repo.List(Filter{Category: "flex"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)
}

func TestListTimeWindowAndPaging(t *testing.T) {
	repo := setupRepo(t)

	base := time.Now().Unix()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(LogEntry{
			Timestamp: base + int64(i),
			Level:     "warn",
			Message:   "event",
		}))
	}

	window, err := repo.List(Filter{From: base + 1, To: base + 3})
	require.NoError(t, err)
	assert.Len(t, window, 3)

	page, err := repo.List(Filter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first, so offset 1 skips the latest entry.
	assert.Equal(t, base+3, page[0].Timestamp)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := setupRepo(t)

	old := time.Now().AddDate(0, 0, -40).Unix()
	require.NoError(t, repo.Insert(LogEntry{Timestamp: old, Level: "warn", Message: "old"}))
	require.NoError(t, repo.Insert(LogEntry{Level: "warn", Message: "recent"}))

	deleted, err := repo.DeleteOlderThan(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := repo.List(Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "recent", remaining[0].Message)
}

func TestDeleteOlderThanDisabled(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Insert(LogEntry{Level: "warn", Message: "kept"}))

	deleted, err := repo.DeleteOlderThan(0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestStorePersistsWarnAndAbove(t *testing.T) {
	repo := setupRepo(t)
	store := NewStore()
	store.Attach(repo)
	log := zerolog.New(store).With().Str("service", "flex").Logger()

	log.Info().Msg("ignored")
	log.Warn().Msg("kept warn")
	log.Error().Err(errors.New("poll limit reached")).Msg("kept error")

	entries, err := repo.List(Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "kept error", entries[0].Message)
	assert.Equal(t, "error", entries[0].Level)
	assert.Equal(t, "flex", entries[0].Category)
	assert.Equal(t, "poll limit reached", entries[0].Details)
	assert.Equal(t, "kept warn", entries[1].Message)

	byCategory, err := repo.List(Filter{Category: "flex"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 2)
}

func TestStoreCategoryFromRepoTag(t *testing.T) {
	repo := setupRepo(t)
	store := NewStore()
	store.Attach(repo)
	log := zerolog.New(store).With().Str("repo", "ibkr").Logger()

	log.Warn().Msg("dedup skipped row")

	entries, err := repo.List(Filter{Category: "ibkr"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dedup skipped row", entries[0].Message)
}

func TestStoreWithoutRepositoryDropsEvents(t *testing.T) {
	store := NewStore()
	log := zerolog.New(store)

	log.Warn().Msg("nowhere to go")
}
