package ibkr

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/investment-portfolio-manager/internal/cache"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/allocation"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/dividends"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/funds"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/portfolios"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/transactions"
)

// Submission rejections surfaced to the client with their message intact.
var (
	ErrNotFound         = errors.New("inbox transaction not found")
	ErrAlreadyProcessed = errors.New("transaction is already allocated; unallocate it first")
	ErrNotProcessed     = errors.New("transaction has no allocations")
	ErrNotPending       = errors.New("only pending transactions can be ignored")
	ErrNoMatchingFund   = errors.New("no fund matches this transaction; create the fund first")
)

// snapshotName keys the symbol cache snapshot in cache.db.
const snapshotName = "ibkr_symbols"

// Service implements inbox allocation: splitting imported transactions into
// portfolio transactions by percentage, and the Flex import feeding the inbox.
type Service struct {
	repo       *Repository
	txns       *transactions.Repository
	divs       *dividends.Repository
	funds      *funds.Repository
	portfolios *portfolios.Repository
	resolver   *allocation.Resolver
	presets    *allocation.PresetRepository
	session    *allocation.Session
	flex       *FlexClient
	symbols    *cache.SymbolCache
	snapshots  *cache.SnapshotStore
	log        zerolog.Logger
}

// NewService creates the IBKR inbox service.
func NewService(
	repo *Repository,
	txns *transactions.Repository,
	divs *dividends.Repository,
	fundsRepo *funds.Repository,
	portfoliosRepo *portfolios.Repository,
	presets *allocation.PresetRepository,
	flex *FlexClient,
	symbols *cache.SymbolCache,
	snapshots *cache.SnapshotStore,
	log zerolog.Logger,
) *Service {
	serviceLog := log.With().Str("service", "ibkr").Logger()
	return &Service{
		repo:       repo,
		txns:       txns,
		divs:       divs,
		funds:      fundsRepo,
		portfolios: portfoliosRepo,
		resolver:   allocation.NewResolver(NewDataSource(fundsRepo, portfoliosRepo), serviceLog),
		presets:    presets,
		session:    allocation.NewSession(),
		flex:       flex,
		symbols:    symbols,
		snapshots:  snapshots,
		log:        serviceLog,
	}
}

func itemFrom(t *InboxTransaction) allocation.Item {
	return allocation.Item{
		ID:          t.ID,
		Symbol:      t.Symbol,
		ISIN:        t.ISIN,
		Description: t.Description,
	}
}

// Eligible resolves which portfolios an inbox transaction may be allocated
// into, degrading to the full portfolio list when the lookup fails.
func (s *Service) Eligible(id string) (*allocation.EligibilityResult, error) {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	result := s.resolver.ResolveOrFallback(itemFrom(t))
	return &result, nil
}

// Allocations returns the persisted allocation detail rows of a transaction.
func (s *Service) Allocations(id string) ([]Allocation, error) {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return s.repo.AllocationsFor(id)
}

// splitByPercentage divides a total across rows at two decimals. The last
// row absorbs the rounding residual so the parts always sum to the total.
func splitByPercentage(total float64, rows allocation.RowSet, places int32) []float64 {
	parts := make([]float64, len(rows))
	totalDec := decimal.NewFromFloat(total)
	remaining := totalDec
	for i, row := range rows {
		if i == len(rows)-1 {
			parts[i], _ = remaining.Round(places).Float64()
			break
		}
		part := totalDec.Mul(decimal.NewFromFloat(row.Percentage)).Div(decimal.NewFromInt(100)).Round(places)
		parts[i], _ = part.Float64()
		remaining = remaining.Sub(part)
	}
	return parts
}

// Allocate splits a pending inbox transaction across portfolios by
// percentage and creates the matching portfolio records.
func (s *Service) Allocate(id string, rows allocation.RowSet) error {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.Status == StatusProcessed {
		return ErrAlreadyProcessed
	}
	return s.allocate(t, rows)
}

func (s *Service) allocate(t *InboxTransaction, rows allocation.RowSet) error {
	if err := allocation.Validate(rows); err != nil {
		return err
	}

	fund, _, err := s.resolver.MatchFund(itemFrom(t))
	if err != nil {
		return err
	}
	if fund == nil {
		return ErrNoMatchingFund
	}

	amounts := splitByPercentage(t.Amount, rows, 2)
	shares := splitByPercentage(t.Quantity, rows, 4)
	commissions := splitByPercentage(t.Commission, rows, 2)

	allocations := make([]Allocation, len(rows))
	for i, row := range rows {
		p, err := s.portfolios.GetByID(row.PortfolioID)
		if err != nil {
			s.rollbackCreated(t, allocations[:i])
			return err
		}
		if p == nil {
			s.rollbackCreated(t, allocations[:i])
			return fmt.Errorf("portfolio %s not found", row.PortfolioID)
		}

		a := Allocation{
			IbkrTransactionID: t.ID,
			PortfolioID:       p.ID,
			PortfolioName:     p.Name,
			Percentage:        row.Percentage,
			Amount:            amounts[i],
			Shares:            shares[i],
			Commission:        commissions[i],
		}

		switch t.Type {
		case TypeBuy, TypeSell:
			created, err := s.txns.Create(transactions.Transaction{
				PortfolioID:   p.ID,
				FundID:        fund.ID,
				Date:          t.TradeDate,
				Type:          t.Type,
				Shares:        shares[i],
				PricePerShare: t.Price,
			})
			if err != nil {
				s.rollbackCreated(t, allocations[:i])
				return fmt.Errorf("failed to create transaction for portfolio %s: %w", p.Name, err)
			}
			a.CreatedTransactionID = &created.ID
		case TypeDividend:
			perShare := t.Price
			if perShare == 0 && t.Quantity != 0 {
				perShare = t.Amount / t.Quantity
			}
			created, err := s.divs.Create(dividends.Dividend{
				PortfolioID:      p.ID,
				FundID:           fund.ID,
				RecordDate:       t.TradeDate,
				ExDividendDate:   t.TradeDate,
				SharesOwned:      shares[i],
				DividendPerShare: perShare,
			})
			if err != nil {
				s.rollbackCreated(t, allocations[:i])
				return fmt.Errorf("failed to create dividend for portfolio %s: %w", p.Name, err)
			}
			a.CreatedTransactionID = &created.ID
		}
		allocations[i] = a
	}

	if err := s.repo.SaveAllocations(t.ID, allocations); err != nil {
		s.rollbackCreated(t, allocations)
		return err
	}

	s.log.Info().Str("transaction", t.ID).Int("portfolios", len(rows)).Msg("Inbox transaction allocated")
	return nil
}

// rollbackCreated removes portfolio records created before an allocation
// failed part-way: dividend rows created dividend records, everything else
// created transactions. The databases are separate files, so this
// compensation is best effort rather than transactional.
func (s *Service) rollbackCreated(t *InboxTransaction, allocations []Allocation) {
	for _, a := range allocations {
		if a.CreatedTransactionID == nil {
			continue
		}
		var err error
		if t.Type == TypeDividend {
			err = s.divs.Delete(*a.CreatedTransactionID)
		} else {
			err = s.txns.Delete(*a.CreatedTransactionID)
		}
		if err != nil {
			s.log.Error().Err(err).Str("record", *a.CreatedTransactionID).Msg("Failed to roll back created record")
		}
	}
}

// ModifyAllocations replaces the allocations of a processed transaction.
func (s *Service) ModifyAllocations(id string, rows allocation.RowSet) error {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.Status != StatusProcessed {
		return ErrNotProcessed
	}
	if err := allocation.Validate(rows); err != nil {
		return err
	}

	if err := s.removeArtifacts(t); err != nil {
		return err
	}
	return s.allocate(t, rows)
}

// Unallocate removes a transaction's allocations and the portfolio records
// they created, returning it to pending.
func (s *Service) Unallocate(id string) error {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.Status != StatusProcessed {
		return ErrNotProcessed
	}

	if err := s.removeArtifacts(t); err != nil {
		return err
	}
	if err := s.repo.ClearAllocations(id); err != nil {
		return err
	}

	s.log.Info().Str("transaction", id).Msg("Inbox transaction unallocated")
	return nil
}

// removeArtifacts deletes the portfolio transactions or dividends an
// allocation created.
func (s *Service) removeArtifacts(t *InboxTransaction) error {
	allocations, err := s.repo.AllocationsFor(t.ID)
	if err != nil {
		return err
	}
	for _, a := range allocations {
		if a.CreatedTransactionID == nil {
			continue
		}
		if t.Type == TypeDividend {
			err = s.divs.Delete(*a.CreatedTransactionID)
		} else {
			err = s.txns.Delete(*a.CreatedTransactionID)
		}
		if err != nil {
			return fmt.Errorf("failed to remove record %s created by allocation: %w", *a.CreatedTransactionID, err)
		}
	}
	return nil
}

// BulkAllocate applies one row set to every selected transaction. Per-item
// failures are collected; the batch continues with the rest.
func (s *Service) BulkAllocate(ids []string, rows allocation.RowSet) BulkResult {
	result := BulkResult{}
	if err := allocation.Validate(rows); err != nil {
		result.Failed = len(ids)
		result.Errors = []string{err.Error()}
		return result
	}

	for _, id := range ids {
		if err := s.Allocate(id, rows); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			s.log.Warn().Err(err).Str("transaction", id).Msg("Bulk allocation item failed")
			continue
		}
		result.Processed++
	}
	result.Success = result.Failed == 0
	return result
}

// Ignore marks a pending transaction as ignored.
func (s *Service) Ignore(id string) error {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.Status != StatusPending {
		return ErrNotPending
	}
	return s.repo.SetStatus(id, StatusIgnored)
}

// Delete removes an inbox transaction. Processed transactions must be
// unallocated first so their portfolio records are cleaned up.
func (s *Service) Delete(id string) error {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.Status == StatusProcessed {
		return ErrAlreadyProcessed
	}
	return s.repo.Delete(id)
}

// FormResponse is the seeded state of an allocation dialog.
type FormResponse struct {
	Mode       allocation.Mode                 `json:"mode"`
	Generation uint64                          `json:"generation"`
	Rows       allocation.RowSet               `json:"rows"`
	Existing   []allocation.ExistingAllocation `json:"existing,omitempty"`
	Warnings   []string                        `json:"warnings,omitempty"`
	MatchInfo  *allocation.EligibilityResult   `json:"matchInfo,omitempty"`
	Selection  []string                        `json:"selection,omitempty"`
}

// AllocationForm seeds the allocation dialog for the given transactions:
// create or edit mode for a single ID, bulk mode for several.
func (s *Service) AllocationForm(ids []string) (*FormResponse, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one transaction ID is required")
	}
	if len(ids) == 1 {
		return s.singleForm(ids[0])
	}
	return s.bulkForm(ids)
}

func (s *Service) singleForm(id string) (*FormResponse, error) {
	t, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}

	if t.Status == StatusProcessed {
		persisted, err := s.repo.AllocationsFor(id)
		if err != nil {
			return nil, err
		}
		existing := make([]allocation.ExistingAllocation, 0, len(persisted))
		for _, a := range persisted {
			existing = append(existing, allocation.ExistingAllocation{
				PortfolioID:   a.PortfolioID,
				PortfolioName: a.PortfolioName,
				Percentage:    a.Percentage,
				Amount:        a.Amount,
				Shares:        a.Shares,
				Commission:    a.Commission,
			})
		}
		gen := s.session.BeginEdit(existing)
		return &FormResponse{
			Mode:       allocation.ModeEdit,
			Generation: gen,
			Rows:       s.session.Rows(),
			Existing:   existing,
		}, nil
	}

	result := s.resolver.ResolveOrFallback(itemFrom(t))
	rows := allocation.SeedRows(result)

	// A saved preset overrides eligibility seeding when its targets are
	// still valid for this transaction.
	if preset, err := s.presets.Get(); err == nil && len(preset) > 0 {
		if allocation.Validate(preset) == nil && targetsEligible(preset, result.EligiblePortfolios) {
			rows = preset
		}
	}

	var warnings []string
	if result.Warning != "" {
		warnings = append(warnings, result.Warning)
	}
	gen := s.session.BeginCreate(rows, warnings...)
	return &FormResponse{
		Mode:       allocation.ModeCreate,
		Generation: gen,
		Rows:       s.session.Rows(),
		Warnings:   s.session.Warnings(),
		MatchInfo:  &result,
	}, nil
}

// targetsEligible reports whether every preset target is among the eligible
// portfolios, so a stale preset cannot point an allocation at portfolios that
// no longer hold the fund.
func targetsEligible(preset allocation.RowSet, eligible []allocation.Portfolio) bool {
	for _, row := range preset {
		found := false
		for _, p := range eligible {
			if p.ID == row.PortfolioID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Service) bulkForm(ids []string) (*FormResponse, error) {
	items := make([]allocation.Item, 0, len(ids))
	for _, id := range ids {
		t, err := s.repo.GetByID(id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		items = append(items, itemFrom(t))
	}

	outcome := s.resolver.ResolveBulk(items)

	s.session.Close(false)
	for _, id := range ids {
		s.session.ToggleSelected(id)
	}
	gen, selection := s.session.BeginBulk(outcome.Rows, outcome.Warnings...)

	return &FormResponse{
		Mode:       allocation.ModeBulk,
		Generation: gen,
		Rows:       s.session.Rows(),
		Warnings:   s.session.Warnings(),
		Selection:  selection,
	}, nil
}

// ImportFlex fetches the configured Flex statement and files new
// transactions into the inbox, skipping broker IDs already imported.
func (s *Service) ImportFlex(ctx context.Context) (*ImportResult, error) {
	fetched, err := s.flex.FetchStatement(ctx)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Fetched: len(fetched)}
	for _, t := range fetched {
		inserted, err := s.repo.Insert(t)
		if err != nil {
			return result, err
		}
		if inserted {
			result.Imported++
		} else {
			result.Duplicates++
		}

		if t.Symbol != "" {
			s.symbols.Put(cache.SymbolInfo{
				Symbol:   t.Symbol,
				Name:     t.Description,
				ISIN:     t.ISIN,
				Currency: t.Currency,
			})
		}
	}

	if err := s.snapshots.Save(snapshotName, s.symbols); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist symbol cache snapshot")
	}

	s.log.Info().
		Int("fetched", result.Fetched).
		Int("imported", result.Imported).
		Int("duplicates", result.Duplicates).
		Msg("Flex import finished")
	return result, nil
}

// RestoreSymbolCache reloads the symbol cache snapshot at startup.
func (s *Service) RestoreSymbolCache() {
	if err := s.snapshots.Load(snapshotName, s.symbols); err != nil {
		s.log.Warn().Err(err).Msg("Failed to restore symbol cache snapshot")
	}
}
