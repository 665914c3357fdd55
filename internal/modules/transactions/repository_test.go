package transactions

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

func seed(t *testing.T, repo *Repository) {
	fixtures := []Transaction{
		{PortfolioID: "p1", FundID: "f1", Date: "2026-01-10", Type: TypeBuy, Shares: 10, PricePerShare: 100},
		{PortfolioID: "p1", FundID: "f1", Date: "2026-02-10", Type: TypeSell, Shares: 4, PricePerShare: 110},
		{PortfolioID: "p1", FundID: "f2", Date: "2026-03-10", Type: TypeBuy, Shares: 5, PricePerShare: 50},
		{PortfolioID: "p2", FundID: "f1", Date: "2026-04-10", Type: TypeBuy, Shares: 1, PricePerShare: 100},
	}
	for _, f := range fixtures {
		_, err := repo.Create(f)
		require.NoError(t, err)
	}
}

func TestCreateDerivesCost(t *testing.T) {
	repo := setupRepo(t)

	created, err := repo.Create(Transaction{
		PortfolioID: "p1", FundID: "f1", Date: "2026-01-10",
		Type: TypeBuy, Shares: 3, PricePerShare: 33.335,
	})
	require.NoError(t, err)
	assert.InDelta(t, 100.01, created.Cost, 1e-9) // 3 * 33.335 = 100.005, rounds to cents
}

func TestListFilters(t *testing.T) {
	repo := setupRepo(t)
	seed(t, repo)

	all, err := repo.List(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	// Newest first
	assert.Equal(t, "2026-04-10", all[0].Date)

	byPortfolio, err := repo.List(Filter{PortfolioID: "p1"})
	require.NoError(t, err)
	assert.Len(t, byPortfolio, 3)

	byFund, err := repo.List(Filter{PortfolioID: "p1", FundID: "f1"})
	require.NoError(t, err)
	assert.Len(t, byFund, 2)

	byType, err := repo.List(Filter{Type: TypeSell})
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	byDate, err := repo.List(Filter{FromDate: "2026-02-01", ToDate: "2026-03-31"})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)
}

func TestUpdateRecomputesCost(t *testing.T) {
	repo := setupRepo(t)

	created, err := repo.Create(Transaction{
		PortfolioID: "p1", FundID: "f1", Date: "2026-01-10",
		Type: TypeBuy, Shares: 10, PricePerShare: 100,
	})
	require.NoError(t, err)

	created.Shares = 20
	require.NoError(t, repo.Update(*created))

	fetched, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2000, fetched.Cost, 1e-9)

	err = repo.Update(Transaction{ID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteTransaction(t *testing.T) {
	repo := setupRepo(t)

	created, err := repo.Create(Transaction{
		PortfolioID: "p1", FundID: "f1", Date: "2026-01-10",
		Type: TypeBuy, Shares: 1, PricePerShare: 1,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(created.ID))

	fetched, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)
}
