// Package di wires databases, repositories, and services together.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/cache"
	"github.com/ndewijer/investment-portfolio-manager/internal/config"
	"github.com/ndewijer/investment-portfolio-manager/internal/database"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/allocation"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/dividends"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/funds"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/ibkr"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/logs"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/portfolios"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/settings"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/transactions"
)

// Container holds every long-lived dependency of the application.
type Container struct {
	// Databases
	PortfolioDB *database.DB
	IbkrDB      *database.DB
	ConfigDB    *database.DB
	CacheDB     *database.DB

	// Repositories
	FundRepo        *funds.Repository
	PortfolioRepo   *portfolios.Repository
	TransactionRepo *transactions.Repository
	DividendRepo    *dividends.Repository
	IbkrRepo        *ibkr.Repository
	PresetRepo      *allocation.PresetRepository
	SettingsRepo    *settings.Repository
	LogRepo         *logs.Repository

	// Services
	PortfolioService   *portfolios.Service
	TransactionService *transactions.Service
	IbkrService        *ibkr.Service
	FlexScheduler      *ibkr.Scheduler

	// Shared state
	SymbolCache   *cache.SymbolCache
	SnapshotStore *cache.SnapshotStore
}

// Wire opens the databases, runs migrations, and builds the full
// dependency graph.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{}

	databases := []struct {
		target  **database.DB
		name    string
		profile database.Profile
	}{
		{&c.PortfolioDB, "portfolio", database.ProfileStandard},
		{&c.IbkrDB, "ibkr", database.ProfileLedger},
		{&c.ConfigDB, "config", database.ProfileStandard},
		{&c.CacheDB, "cache", database.ProfileCache},
	}
	for _, d := range databases {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, d.name+".db"),
			Profile: d.profile,
			Name:    d.name,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			c.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", d.name, err)
		}
		*d.target = db
	}

	c.FundRepo = funds.NewRepository(c.PortfolioDB.Conn(), log)
	c.PortfolioRepo = portfolios.NewRepository(c.PortfolioDB.Conn(), log)
	c.TransactionRepo = transactions.NewRepository(c.PortfolioDB.Conn(), log)
	c.DividendRepo = dividends.NewRepository(c.PortfolioDB.Conn(), log)
	c.IbkrRepo = ibkr.NewRepository(c.IbkrDB.Conn(), log)
	c.PresetRepo = allocation.NewPresetRepository(c.ConfigDB.Conn(), log)
	c.SettingsRepo = settings.NewRepository(c.ConfigDB.Conn(), log)
	c.LogRepo = logs.NewRepository(c.CacheDB.Conn(), log)

	c.PortfolioService = portfolios.NewService(c.PortfolioRepo, c.FundRepo, c.PortfolioDB.Conn(), log)
	c.TransactionService = transactions.NewService(c.TransactionRepo, log)

	c.SymbolCache = cache.NewSymbolCache(512)
	c.SnapshotStore = cache.NewSnapshotStore(c.CacheDB.Conn(), log)

	// Credentials stored through the settings page win over env/file config.
	if err := cfg.UpdateFromSettings(c.SettingsRepo); err != nil {
		c.Close()
		return nil, err
	}

	flexClient := ibkr.NewFlexClient(cfg.FlexBaseURL, cfg.FlexToken, cfg.FlexQueryID, log)
	c.IbkrService = ibkr.NewService(
		c.IbkrRepo,
		c.TransactionRepo,
		c.DividendRepo,
		c.FundRepo,
		c.PortfolioRepo,
		c.PresetRepo,
		flexClient,
		c.SymbolCache,
		c.SnapshotStore,
		log,
	)
	c.IbkrService.RestoreSymbolCache()
	c.FlexScheduler = ibkr.NewScheduler(c.IbkrService, log)

	return c, nil
}

// Close releases the databases. Safe to call on a partially wired container.
func (c *Container) Close() {
	for _, db := range []*database.DB{c.PortfolioDB, c.IbkrDB, c.ConfigDB, c.CacheDB} {
		if db != nil {
			db.Close()
		}
	}
}
