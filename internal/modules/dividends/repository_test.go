package dividends

import (
	"database/sql"
	"testing"

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

	schema, err := database.Schema("portfolio")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return NewRepository(db, zerolog.Nop())
}

func TestCreateDerivesTotalAmount(t *testing.T) {
	repo := setupRepo(t)

	created, err := repo.Create(Dividend{
		PortfolioID:      "p1",
		FundID:           "f1",
		RecordDate:       "2026-08-01",
		ExDividendDate:   "2026-07-28",
		SharesOwned:      12.5,
		DividendPerShare: 0.4567,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.InDelta(t, 5.71, created.TotalAmount, 1e-9) // 12.5 * 0.4567 = 5.70875
}

func TestListFiltersByPortfolio(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.Create(Dividend{PortfolioID: "p1", FundID: "f1", RecordDate: "2026-08-01", SharesOwned: 10, DividendPerShare: 1})
	require.NoError(t, err)
	_, err = repo.Create(Dividend{PortfolioID: "p2", FundID: "f1", RecordDate: "2026-08-02", SharesOwned: 5, DividendPerShare: 1})
	require.NoError(t, err)

	all, err := repo.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	// Newest record date first
	assert.Equal(t, "2026-08-02", all[0].RecordDate)

	forP1, err := repo.List("p1")
	require.NoError(t, err)
	require.Len(t, forP1, 1)
	assert.Equal(t, "p1", forP1[0].PortfolioID)
}

func TestMarkReinvested(t *testing.T) {
	repo := setupRepo(t)

	created, err := repo.Create(Dividend{PortfolioID: "p1", FundID: "f1", RecordDate: "2026-08-01", SharesOwned: 10, DividendPerShare: 1})
	require.NoError(t, err)
	require.Nil(t, created.ReinvestedTransactionID)

	require.NoError(t, repo.MarkReinvested(created.ID, "txn-1"))

	fetched, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.ReinvestedTransactionID)
	assert.Equal(t, "txn-1", *fetched.ReinvestedTransactionID)
}

func TestUpdateNotFound(t *testing.T) {
	repo := setupRepo(t)

	err := repo.Update(Dividend{ID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteDividend(t *testing.T) {
	repo := setupRepo(t)

	created, err := repo.Create(Dividend{PortfolioID: "p1", FundID: "f1", RecordDate: "2026-08-01", SharesOwned: 1, DividendPerShare: 1})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(created.ID))

	fetched, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)
}
