package portfolios

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/investment-portfolio-manager/internal/database"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/funds"
)

func setupDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1) // each :memory: connection is a separate database
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema("portfolio")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

func TestCreateAndListPortfolios(t *testing.T) {
	repo := NewRepository(setupDB(t), zerolog.Nop())

	created, err := repo.Create(Portfolio{Name: "Pension", Description: "long term"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	list, err := repo.List(false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Pension", list[0].Name)
}

func TestArchivedPortfoliosExcludedFromList(t *testing.T) {
	repo := NewRepository(setupDB(t), zerolog.Nop())

	active, err := repo.Create(Portfolio{Name: "Active"})
	require.NoError(t, err)
	archived, err := repo.Create(Portfolio{Name: "Archived"})
	require.NoError(t, err)
	require.NoError(t, repo.SetArchived(archived.ID, true))

	list, err := repo.List(false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)

	all, err := repo.List(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFundMembership(t *testing.T) {
	db := setupDB(t)
	repo := NewRepository(db, zerolog.Nop())
	fundRepo := funds.NewRepository(db, zerolog.Nop())

	fund, err := fundRepo.Create(funds.Fund{Name: "VWRL", Symbol: "VWRL"})
	require.NoError(t, err)
	p, err := repo.Create(Portfolio{Name: "Pension"})
	require.NoError(t, err)

	require.NoError(t, repo.AddFund(p.ID, fund.ID))

	ids, err := repo.FundIDs(p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{fund.ID}, ids)

	require.NoError(t, repo.RemoveFund(p.ID, fund.ID))
	ids, err = repo.FundIDs(p.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestHoldingFundSkipsArchived(t *testing.T) {
	db := setupDB(t)
	repo := NewRepository(db, zerolog.Nop())
	fundRepo := funds.NewRepository(db, zerolog.Nop())

	fund, err := fundRepo.Create(funds.Fund{Name: "VWRL", Symbol: "VWRL"})
	require.NoError(t, err)

	active, err := repo.Create(Portfolio{Name: "Active"})
	require.NoError(t, err)
	archived, err := repo.Create(Portfolio{Name: "Archived"})
	require.NoError(t, err)

	require.NoError(t, repo.AddFund(active.ID, fund.ID))
	require.NoError(t, repo.AddFund(archived.ID, fund.ID))
	require.NoError(t, repo.SetArchived(archived.ID, true))

	holding, err := repo.HoldingFund(fund.ID)
	require.NoError(t, err)
	require.Len(t, holding, 1)
	assert.Equal(t, active.ID, holding[0].ID)
}

func TestUpdatePortfolioNotFound(t *testing.T) {
	repo := NewRepository(setupDB(t), zerolog.Nop())

	err := repo.Update(Portfolio{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
