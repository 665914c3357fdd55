package ibkr

import (
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/allocation"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/funds"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/portfolios"
)

// dataSource adapts the funds and portfolios repositories to the lookups
// eligibility resolution needs.
type dataSource struct {
	funds      *funds.Repository
	portfolios *portfolios.Repository
}

// NewDataSource wraps the funds and portfolios repositories as an
// allocation data source.
func NewDataSource(f *funds.Repository, p *portfolios.Repository) allocation.DataSource {
	return &dataSource{funds: f, portfolios: p}
}

func toFundInfo(f *funds.Fund) *allocation.FundInfo {
	if f == nil {
		return nil
	}
	return &allocation.FundInfo{ID: f.ID, Name: f.Name, Symbol: f.Symbol, ISIN: f.ISIN}
}

func (d *dataSource) FundByISIN(isin string) (*allocation.FundInfo, error) {
	f, err := d.funds.GetByISIN(isin)
	if err != nil {
		return nil, err
	}
	return toFundInfo(f), nil
}

func (d *dataSource) FundBySymbol(symbol string) (*allocation.FundInfo, error) {
	f, err := d.funds.GetBySymbol(symbol)
	if err != nil {
		return nil, err
	}
	return toFundInfo(f), nil
}

func (d *dataSource) PortfoliosHoldingFund(fundID string) ([]allocation.Portfolio, error) {
	list, err := d.portfolios.HoldingFund(fundID)
	if err != nil {
		return nil, err
	}
	targets := make([]allocation.Portfolio, 0, len(list))
	for _, p := range list {
		targets = append(targets, allocation.Portfolio{ID: p.ID, Name: p.Name})
	}
	return targets, nil
}

func (d *dataSource) ActivePortfolios() ([]allocation.Portfolio, error) {
	list, err := d.portfolios.List(false)
	if err != nil {
		return nil, err
	}
	targets := make([]allocation.Portfolio, 0, len(list))
	for _, p := range list {
		targets = append(targets, allocation.Portfolio{ID: p.ID, Name: p.Name})
	}
	return targets, nil
}
