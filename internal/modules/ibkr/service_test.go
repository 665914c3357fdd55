package ibkr

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/investment-portfolio-manager/internal/cache"
	"github.com/ndewijer/investment-portfolio-manager/internal/database"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/allocation"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/dividends"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/funds"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/portfolios"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/transactions"
)

type fixture struct {
	service    *Service
	repo       *Repository
	txns       *transactions.Repository
	divs       *dividends.Repository
	funds      *funds.Repository
	portfolios *portfolios.Repository
	presets    *allocation.PresetRepository

	fund *funds.Fund
	p1   *portfolios.Portfolio
	p2   *portfolios.Portfolio
}

func openDB(t *testing.T, schemaName string) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1) // each :memory: connection is a separate database
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema(schemaName)
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

func newFixture(t *testing.T) *fixture {
	log := zerolog.Nop()
	portfolioDB := openDB(t, "portfolio")
	ibkrDB := openDB(t, "ibkr")
	configDB := openDB(t, "config")
	cacheDB := openDB(t, "cache")

	f := &fixture{
		repo:       NewRepository(ibkrDB, log),
		txns:       transactions.NewRepository(portfolioDB, log),
		divs:       dividends.NewRepository(portfolioDB, log),
		funds:      funds.NewRepository(portfolioDB, log),
		portfolios: portfolios.NewRepository(portfolioDB, log),
		presets:    allocation.NewPresetRepository(configDB, log),
	}
	f.service = NewService(
		f.repo, f.txns, f.divs, f.funds, f.portfolios,
		f.presets,
		NewFlexClient("", "", "", log),
		cache.NewSymbolCache(16),
		cache.NewSnapshotStore(cacheDB, log),
		log,
	)

	var err error
	f.fund, err = f.funds.Create(funds.Fund{Name: "Vanguard FTSE All-World", ISIN: "IE00B3RBWM25", Symbol: "VWRL", Currency: "EUR"})
	require.NoError(t, err)
	f.p1, err = f.portfolios.Create(portfolios.Portfolio{Name: "Pension"})
	require.NoError(t, err)
	f.p2, err = f.portfolios.Create(portfolios.Portfolio{Name: "Savings"})
	require.NoError(t, err)
	require.NoError(t, f.portfolios.AddFund(f.p1.ID, f.fund.ID))
	require.NoError(t, f.portfolios.AddFund(f.p2.ID, f.fund.ID))

	return f
}

func (f *fixture) insertInbox(t *testing.T, txn InboxTransaction) *InboxTransaction {
	inserted, err := f.repo.Insert(txn)
	require.NoError(t, err)
	require.True(t, inserted)

	list, err := f.repo.List("")
	require.NoError(t, err)
	for _, row := range list {
		if row.TransactionID == txn.TransactionID {
			return &row
		}
	}
	t.Fatalf("inserted transaction %s not found", txn.TransactionID)
	return nil
}

func pendingBuy(amount, quantity, price, commission float64) InboxTransaction {
	return InboxTransaction{
		TransactionID: "T-1",
		Symbol:        "VWRL",
		ISIN:          "IE00B3RBWM25",
		Description:   "VANGUARD FTSE AW",
		TradeDate:     "2026-08-20",
		Type:          TypeBuy,
		Quantity:      quantity,
		Price:         price,
		Amount:        amount,
		Commission:    commission,
		Currency:      "EUR",
	}
}

func TestAllocateSplitsAcrossPortfolios(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 1.00))

	err := f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 33.33},
		{PortfolioID: f.p2.ID, Percentage: 66.67},
	})
	require.NoError(t, err)

	updated, err := f.repo.GetByID(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, updated.Status)

	allocations, err := f.repo.AllocationsFor(txn.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 2)

	// Last row absorbs the rounding residual so amounts sum exactly.
	assert.InDelta(t, 33.33, allocations[0].Amount, 1e-9)
	assert.InDelta(t, 66.67, allocations[1].Amount, 1e-9)
	assert.InDelta(t, 100.00, allocations[0].Amount+allocations[1].Amount, 1e-9)
	assert.InDelta(t, 10.0, allocations[0].Shares+allocations[1].Shares, 1e-9)
	assert.InDelta(t, 1.00, allocations[0].Commission+allocations[1].Commission, 1e-9)

	// Each allocation created a matching portfolio transaction.
	for _, a := range allocations {
		require.NotNil(t, a.CreatedTransactionID)
		created, err := f.txns.GetByID(*a.CreatedTransactionID)
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, transactions.TypeBuy, created.Type)
		assert.Equal(t, f.fund.ID, created.FundID)
		assert.InDelta(t, a.Shares, created.Shares, 1e-9)
	}
}

func TestAllocateResidualCentsGoToLastTarget(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 3, 33.3333, 0))

	err := f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 33.33},
		{PortfolioID: f.p2.ID, Percentage: 33.33},
	})
	require.Error(t, err) // 66.66 != 100

	err = f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 66.67},
		{PortfolioID: f.p2.ID, Percentage: 33.33},
	})
	require.NoError(t, err)

	allocations, err := f.repo.AllocationsFor(txn.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.InDelta(t, 66.67, allocations[0].Amount, 1e-9)
	assert.InDelta(t, 33.33, allocations[1].Amount, 1e-9)
}

func TestAllocationsRoundTripInSubmittedOrder(t *testing.T) {
	f := newFixture(t)
	p3, err := f.portfolios.Create(portfolios.Portfolio{Name: "Kids"})
	require.NoError(t, err)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	require.NoError(t, f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p2.ID, Percentage: 20},
		{PortfolioID: p3.ID, Percentage: 30},
		{PortfolioID: f.p1.ID, Percentage: 50},
	}))

	allocations, err := f.repo.AllocationsFor(txn.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 3)
	assert.Equal(t, f.p2.ID, allocations[0].PortfolioID)
	assert.Equal(t, p3.ID, allocations[1].PortfolioID)
	assert.Equal(t, f.p1.ID, allocations[2].PortfolioID)
	assert.InDelta(t, 20, allocations[0].Percentage, 1e-9)
	assert.InDelta(t, 30, allocations[1].Percentage, 1e-9)
	assert.InDelta(t, 50, allocations[2].Percentage, 1e-9)
}

func TestAllocateRejectsInvalidRows(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	err := f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 50},
	})
	var validationErr *allocation.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, allocation.SumMismatch, validationErr.Code)

	// Nothing was persisted.
	updated, err := f.repo.GetByID(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
	list, err := f.txns.List(transactions.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAllocateRejectsAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	rows := allocation.RowSet{{PortfolioID: f.p1.ID, Percentage: 100}}
	require.NoError(t, f.service.Allocate(txn.ID, rows))

	err := f.service.Allocate(txn.ID, rows)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestAllocateDividendCreatesDividendRecords(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, InboxTransaction{
		TransactionID: "D-1",
		Symbol:        "VWRL",
		ISIN:          "IE00B3RBWM25",
		TradeDate:     "2026-08-20",
		Type:          TypeDividend,
		Quantity:      10,
		Amount:        25.00,
		Currency:      "EUR",
	})

	err := f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 100},
	})
	require.NoError(t, err)

	list, err := f.divs.List(f.p1.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.InDelta(t, 25.00, list[0].TotalAmount, 1e-9)

	// No portfolio transactions for dividend imports.
	txnList, err := f.txns.List(transactions.Filter{})
	require.NoError(t, err)
	assert.Empty(t, txnList)
}

func TestAllocateDividendRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, InboxTransaction{
		TransactionID: "D-2",
		Symbol:        "VWRL",
		ISIN:          "IE00B3RBWM25",
		TradeDate:     "2026-08-20",
		Type:          TypeDividend,
		Quantity:      10,
		Amount:        25.00,
		Currency:      "EUR",
	})

	// Second target does not exist, so the first dividend record must be
	// compensated away.
	err := f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 50},
		{PortfolioID: "missing", Percentage: 50},
	})
	require.Error(t, err)

	list, err := f.divs.List(f.p1.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	updated, err := f.repo.GetByID(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
}

func TestAllocateRollsBackTransactionsOnFailure(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	err := f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 50},
		{PortfolioID: "missing", Percentage: 50},
	})
	require.Error(t, err)

	list, err := f.txns.List(transactions.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUnallocateRemovesCreatedRecords(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	require.NoError(t, f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 50},
		{PortfolioID: f.p2.ID, Percentage: 50},
	}))
	require.NoError(t, f.service.Unallocate(txn.ID))

	updated, err := f.repo.GetByID(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)

	allocations, err := f.repo.AllocationsFor(txn.ID)
	require.NoError(t, err)
	assert.Empty(t, allocations)

	list, err := f.txns.List(transactions.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUnallocateRequiresProcessed(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	err := f.service.Unallocate(txn.ID)
	assert.ErrorIs(t, err, ErrNotProcessed)
}

func TestModifyAllocationsReplacesSplit(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	require.NoError(t, f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 100},
	}))
	require.NoError(t, f.service.ModifyAllocations(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 50},
		{PortfolioID: f.p2.ID, Percentage: 50},
	}))

	allocations, err := f.repo.AllocationsFor(txn.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 2)

	// The original single transaction was replaced by the new pair.
	list, err := f.txns.List(transactions.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestBulkAllocateContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	good := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))
	processed := f.insertInbox(t, InboxTransaction{
		TransactionID: "T-2",
		Symbol:        "VWRL",
		ISIN:          "IE00B3RBWM25",
		TradeDate:     "2026-08-21",
		Type:          TypeBuy,
		Quantity:      5,
		Price:         10,
		Amount:        50.00,
	})

	rows := allocation.RowSet{{PortfolioID: f.p1.ID, Percentage: 100}}
	require.NoError(t, f.service.Allocate(processed.ID, rows))

	result := f.service.BulkAllocate([]string{good.ID, processed.ID, "missing"}, rows)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors, 2)
}

func TestBulkAllocateRejectsInvalidRowsUpFront(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	result := f.service.BulkAllocate([]string{txn.ID}, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 40},
	})
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 1, result.Failed)

	updated, err := f.repo.GetByID(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
}

func TestIgnoreOnlyPending(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	require.NoError(t, f.service.Ignore(txn.ID))
	updated, err := f.repo.GetByID(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, updated.Status)

	err = f.service.Ignore(txn.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestDeleteRejectsProcessed(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	require.NoError(t, f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 100},
	}))

	err := f.service.Delete(txn.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	require.NoError(t, f.service.Unallocate(txn.ID))
	require.NoError(t, f.service.Delete(txn.ID))
	gone, err := f.repo.GetByID(txn.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAllocationFormCreateModeSeedsFirstEligible(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	form, err := f.service.AllocationForm([]string{txn.ID})
	require.NoError(t, err)
	assert.Equal(t, allocation.ModeCreate, form.Mode)
	require.Len(t, form.Rows, 1)
	assert.Equal(t, f.p1.ID, form.Rows[0].PortfolioID)
	assert.Equal(t, 0.0, form.Rows[0].Percentage)
	require.NotNil(t, form.MatchInfo)
	assert.True(t, form.MatchInfo.Found)
	assert.Equal(t, "isin", form.MatchInfo.MatchedBy)
}

func TestAllocationFormAppliesEligiblePreset(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	require.NoError(t, f.presets.Save(allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 60},
		{PortfolioID: f.p2.ID, Percentage: 40},
	}))

	form, err := f.service.AllocationForm([]string{txn.ID})
	require.NoError(t, err)
	require.Len(t, form.Rows, 2)
	byTarget := map[string]float64{}
	for _, row := range form.Rows {
		byTarget[row.PortfolioID] = row.Percentage
	}
	assert.Equal(t, 60.0, byTarget[f.p1.ID])
	assert.Equal(t, 40.0, byTarget[f.p2.ID])
}

func TestAllocationFormIgnoresPresetWithIneligibleTarget(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	// The preset points at a portfolio that does not hold the fund, so
	// eligibility seeding wins.
	other, err := f.portfolios.Create(portfolios.Portfolio{Name: "Cash"})
	require.NoError(t, err)
	require.NoError(t, f.presets.Save(allocation.RowSet{
		{PortfolioID: other.ID, Percentage: 100},
	}))

	form, err := f.service.AllocationForm([]string{txn.ID})
	require.NoError(t, err)
	require.Len(t, form.Rows, 1)
	assert.Equal(t, f.p1.ID, form.Rows[0].PortfolioID)
	assert.Equal(t, 0.0, form.Rows[0].Percentage)
}

func TestAllocationFormEditModeForProcessed(t *testing.T) {
	f := newFixture(t)
	txn := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))

	require.NoError(t, f.service.Allocate(txn.ID, allocation.RowSet{
		{PortfolioID: f.p1.ID, Percentage: 60},
		{PortfolioID: f.p2.ID, Percentage: 40},
	}))

	form, err := f.service.AllocationForm([]string{txn.ID})
	require.NoError(t, err)
	assert.Equal(t, allocation.ModeEdit, form.Mode)
	require.Len(t, form.Rows, 2)
	assert.Equal(t, 60.0, form.Rows[0].Percentage)
	require.Len(t, form.Existing, 2)
	assert.Equal(t, "Pension", form.Existing[0].PortfolioName)
}

func TestAllocationFormBulkModeIntersects(t *testing.T) {
	f := newFixture(t)

	// Second fund held only by p1, so the intersection is {p1}.
	other, err := f.funds.Create(funds.Fund{Name: "iShares Core S&P 500", ISIN: "IE00B5BMR087", Symbol: "CSPX"})
	require.NoError(t, err)
	require.NoError(t, f.portfolios.AddFund(f.p1.ID, other.ID))

	a := f.insertInbox(t, pendingBuy(100.00, 10, 10.0, 0))
	b := f.insertInbox(t, InboxTransaction{
		TransactionID: "T-3",
		Symbol:        "CSPX",
		ISIN:          "IE00B5BMR087",
		TradeDate:     "2026-08-21",
		Type:          TypeBuy,
		Quantity:      2,
		Price:         500,
		Amount:        1000.00,
	})

	form, err := f.service.AllocationForm([]string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, allocation.ModeBulk, form.Mode)
	require.Len(t, form.Rows, 1)
	assert.Equal(t, f.p1.ID, form.Rows[0].PortfolioID)
	assert.Equal(t, 0.0, form.Rows[0].Percentage)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, form.Selection)
	require.NotEmpty(t, form.Warnings)
	assert.Contains(t, form.Warnings[len(form.Warnings)-1], "share 1 eligible portfolios")
}

func TestInsertDeduplicatesByBrokerID(t *testing.T) {
	f := newFixture(t)

	first, err := f.repo.Insert(pendingBuy(100.00, 10, 10.0, 0))
	require.NoError(t, err)
	assert.True(t, first)

	second, err := f.repo.Insert(pendingBuy(100.00, 10, 10.0, 0))
	require.NoError(t, err)
	assert.False(t, second)

	list, err := f.repo.List("")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
