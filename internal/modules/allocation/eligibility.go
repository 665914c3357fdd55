package allocation

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Portfolio is an allocation target.
type Portfolio struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FundInfo is the subset of fund data eligibility matching needs.
type FundInfo struct {
	ID     string
	Name   string
	Symbol string
	ISIN   string
}

// Item is one imported broker transaction to resolve eligibility for.
type Item struct {
	ID          string
	Symbol      string
	ISIN        string
	Description string
}

// DataSource provides the fund and portfolio lookups eligibility resolution
// depends on. Implemented by the funds and portfolios repositories; mocked in
// tests. Lookups returning (nil, nil) mean "not found", not an error.
type DataSource interface {
	FundByISIN(isin string) (*FundInfo, error)
	FundBySymbol(symbol string) (*FundInfo, error)
	PortfoliosHoldingFund(fundID string) ([]Portfolio, error)
	ActivePortfolios() ([]Portfolio, error)
}

// EligibilityResult describes which portfolios one imported transaction can
// be allocated into, based on fund membership.
type EligibilityResult struct {
	Found              bool        `json:"found"`
	MatchedBy          string      `json:"matchedBy"` // "isin", "symbol", or ""
	SourceName         string      `json:"sourceName"`
	SourceSymbol       string      `json:"sourceSymbol"`
	EligiblePortfolios []Portfolio `json:"eligiblePortfolios"`
	Warning            string      `json:"warning,omitempty"`
}

// BulkOutcome aggregates eligibility across a multi-item selection.
type BulkOutcome struct {
	Common   []Portfolio                  `json:"common"`   // intersection of eligible sets
	Rows     RowSet                       `json:"rows"`     // seeded rows, one per common portfolio at 0%
	Warnings []string                     `json:"warnings"` // display lines: failures, not-found, no-eligible, summary
	Results  map[string]EligibilityResult `json:"results"`  // per item ID

	Failed     int `json:"failed"`
	NotFound   int `json:"notFound"`
	NoEligible int `json:"noEligible"`
	Eligible   int `json:"eligible"`
}

// Resolver determines which portfolios an imported transaction may be
// allocated into. Matching prefers ISIN and falls back to symbol.
type Resolver struct {
	source DataSource
	log    zerolog.Logger
}

// NewResolver creates a new eligibility resolver.
func NewResolver(source DataSource, log zerolog.Logger) *Resolver {
	return &Resolver{
		source: source,
		log:    log.With().Str("service", "eligibility").Logger(),
	}
}

// Resolve computes eligibility for a single imported transaction.
func (r *Resolver) Resolve(item Item) (EligibilityResult, error) {
	result := EligibilityResult{
		SourceName:   item.Description,
		SourceSymbol: item.Symbol,
	}

	fund, matchedBy, err := r.MatchFund(item)
	if err != nil {
		return result, err
	}
	if fund == nil {
		result.Warning = fmt.Sprintf(
			"no fund matches ISIN %q or symbol %q; select a portfolio manually", item.ISIN, item.Symbol)
		return result, nil
	}

	result.Found = true
	result.MatchedBy = matchedBy
	result.SourceName = fund.Name

	portfolios, err := r.source.PortfoliosHoldingFund(fund.ID)
	if err != nil {
		return result, fmt.Errorf("failed to look up portfolios holding fund %s: %w", fund.ID, err)
	}
	result.EligiblePortfolios = portfolios
	if len(portfolios) == 0 {
		result.Warning = fmt.Sprintf("fund %q is not held by any portfolio; select a portfolio manually", fund.Name)
	}

	return result, nil
}

// MatchFund finds the fund an imported transaction refers to, preferring the
// ISIN and falling back to the symbol. (nil, "", nil) means no match.
func (r *Resolver) MatchFund(item Item) (*FundInfo, string, error) {
	if item.ISIN != "" {
		fund, err := r.source.FundByISIN(item.ISIN)
		if err != nil {
			return nil, "", fmt.Errorf("failed to look up fund by ISIN %s: %w", item.ISIN, err)
		}
		if fund != nil {
			return fund, "isin", nil
		}
	}
	if item.Symbol != "" {
		fund, err := r.source.FundBySymbol(item.Symbol)
		if err != nil {
			return nil, "", fmt.Errorf("failed to look up fund by symbol %s: %w", item.Symbol, err)
		}
		if fund != nil {
			return fund, "symbol", nil
		}
	}
	return nil, "", nil
}

// ResolveOrFallback resolves eligibility for a single item, degrading to the
// full unfiltered portfolio list when the lookup itself fails. The dialog
// stays usable; the user just loses the filtering.
func (r *Resolver) ResolveOrFallback(item Item) EligibilityResult {
	result, err := r.Resolve(item)
	if err == nil {
		return result
	}

	r.log.Warn().Err(err).Str("item", item.ID).Msg("Eligibility check failed, falling back to full portfolio list")
	all, listErr := r.source.ActivePortfolios()
	if listErr != nil {
		r.log.Error().Err(listErr).Msg("Fallback portfolio list also failed")
	}
	return EligibilityResult{
		SourceName:         item.Description,
		SourceSymbol:       item.Symbol,
		EligiblePortfolios: all,
		Warning:            fmt.Sprintf("eligibility check failed (%v); showing all portfolios", err),
	}
}

// SeedRows builds the initial row set for a single-item allocation form.
// With eligible portfolios the first one is pre-selected at 0%; otherwise a
// single empty row forces a manual pick.
func SeedRows(result EligibilityResult) RowSet {
	if result.Found && len(result.EligiblePortfolios) > 0 {
		return RowSet{{PortfolioID: result.EligiblePortfolios[0].ID}}
	}
	return RowSet{{PortfolioID: ""}}
}

// ResolveBulk resolves eligibility for every item concurrently and intersects
// the eligible portfolio sets. A failed check degrades that one item to
// "failed"; the batch continues with whatever succeeded. If the whole pass
// panics, the outcome falls back to the full unfiltered portfolio list.
func (r *Resolver) ResolveBulk(items []Item) (outcome BulkOutcome) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Msg("Bulk eligibility check panicked, falling back to full portfolio list")
			all, err := r.source.ActivePortfolios()
			if err != nil {
				r.log.Error().Err(err).Msg("Fallback portfolio list failed")
			}
			outcome = BulkOutcome{
				Common:   all,
				Rows:     seedFromPortfolios(all),
				Warnings: []string{fmt.Sprintf("bulk eligibility check failed (%v); showing all portfolios", p)},
				Results:  map[string]EligibilityResult{},
				Failed:   len(items),
			}
		}
	}()

	type indexed struct {
		result EligibilityResult
		err    error
	}
	results := make([]indexed, len(items))

	// Concurrent fan-out; results are only intersected afterwards, so no
	// ordering requirement and no per-item retry.
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item) {
			defer wg.Done()
			res, err := r.Resolve(item)
			results[i] = indexed{result: res, err: err}
		}(i, item)
	}
	wg.Wait()

	outcome = BulkOutcome{Results: make(map[string]EligibilityResult, len(items))}

	// Partition: failed / fund-not-found / no-eligible / has-eligible
	var eligibleSets [][]Portfolio
	for i, res := range results {
		item := items[i]
		switch {
		case res.err != nil:
			outcome.Failed++
			r.log.Warn().Err(res.err).Str("item", item.ID).Msg("Eligibility check failed for bulk item")
		case !res.result.Found:
			outcome.NotFound++
			outcome.Results[item.ID] = res.result
		case len(res.result.EligiblePortfolios) == 0:
			outcome.NoEligible++
			outcome.Results[item.ID] = res.result
		default:
			outcome.Eligible++
			outcome.Results[item.ID] = res.result
			eligibleSets = append(eligibleSets, res.result.EligiblePortfolios)
		}
	}

	outcome.Common = intersect(eligibleSets)
	outcome.Rows = seedFromPortfolios(outcome.Common)
	outcome.Warnings = bulkWarnings(outcome, len(items))
	return outcome
}

// intersect computes the portfolios common to all eligible sets, preserving
// the order of the first set. An empty input yields an empty intersection.
func intersect(sets [][]Portfolio) []Portfolio {
	if len(sets) == 0 {
		return nil
	}

	common := make([]Portfolio, 0, len(sets[0]))
	for _, candidate := range sets[0] {
		inAll := true
		for _, set := range sets[1:] {
			found := false
			for _, p := range set {
				if p.ID == candidate.ID {
					found = true
					break
				}
			}
			if !found {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, candidate)
		}
	}
	return common
}

func seedFromPortfolios(portfolios []Portfolio) RowSet {
	rows := make(RowSet, 0, len(portfolios))
	for _, p := range portfolios {
		rows = append(rows, Row{PortfolioID: p.ID})
	}
	return rows
}

// bulkWarnings builds the human-readable summary lines. Display order:
// failures, not-found, no-eligible, then the success/partial-success line.
func bulkWarnings(outcome BulkOutcome, total int) []string {
	var warnings []string
	if outcome.Failed > 0 {
		warnings = append(warnings, fmt.Sprintf("%d eligibility checks failed", outcome.Failed))
	}
	if outcome.NotFound > 0 {
		warnings = append(warnings, fmt.Sprintf("%d transactions have no matching fund", outcome.NotFound))
	}
	if outcome.NoEligible > 0 {
		warnings = append(warnings, fmt.Sprintf("%d transactions have no eligible portfolios", outcome.NoEligible))
	}
	if len(outcome.Common) > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d of %d transactions share %d eligible portfolios", outcome.Eligible, total, len(outcome.Common)))
	} else {
		warnings = append(warnings, "no portfolios are eligible for every selected transaction")
	}
	return warnings
}
