package allocation

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/investment-portfolio-manager/internal/database"
)

func setupPresetRepo(t *testing.T) *PresetRepository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1) // each :memory: connection is a separate database
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema("config")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return NewPresetRepository(db, zerolog.Nop())
}

func TestPresetSaveAndGet(t *testing.T) {
	repo := setupPresetRepo(t)

	preset := RowSet{
		{PortfolioID: "p1", Percentage: 60},
		{PortfolioID: "p2", Percentage: 40},
	}
	require.NoError(t, repo.Save(preset))

	stored, err := repo.Get()
	require.NoError(t, err)
	assert.ElementsMatch(t, preset, stored)
}

func TestPresetSaveReplacesPrevious(t *testing.T) {
	repo := setupPresetRepo(t)

	require.NoError(t, repo.Save(RowSet{
		{PortfolioID: "p1", Percentage: 50},
		{PortfolioID: "p2", Percentage: 50},
	}))
	require.NoError(t, repo.Save(RowSet{
		{PortfolioID: "p3", Percentage: 100},
	}))

	stored, err := repo.Get()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "p3", stored[0].PortfolioID)
}

func TestPresetSaveRejectsInvalid(t *testing.T) {
	repo := setupPresetRepo(t)

	err := repo.Save(RowSet{
		{PortfolioID: "p1", Percentage: 60},
		{PortfolioID: "p2", Percentage: 50},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, SumMismatch, verr.Code)

	stored, getErr := repo.Get()
	require.NoError(t, getErr)
	assert.Empty(t, stored)
}

func TestPresetClear(t *testing.T) {
	repo := setupPresetRepo(t)

	require.NoError(t, repo.Save(RowSet{{PortfolioID: "p1", Percentage: 100}}))
	require.NoError(t, repo.Clear())

	stored, err := repo.Get()
	require.NoError(t, err)
	assert.Empty(t, stored)
}
