// Package allocation implements the percentage-allocation rules used by the
// IBKR import inbox and the default-allocation presets: distribution
// strategies, validation, eligibility resolution, and the allocation session.
package allocation

import (
	"errors"
	"math"
)

// Epsilon is the tolerance when comparing percentage totals against 100.
const Epsilon = 0.01

// Distribution strategy errors. All strategies are pure: on error the input
// row set is returned unchanged and nothing is mutated.
var (
	ErrNoRows              = errors.New("add at least one target portfolio")
	ErrFullyAllocated      = errors.New("already fully allocated")
	ErrNothingToDistribute = errors.New("nothing to distribute")
)

// Row is a single (portfolio, percentage) pair in an allocation form.
// An empty PortfolioID means the user has not picked a target yet.
type Row struct {
	PortfolioID string  `json:"portfolioId"`
	Percentage  float64 `json:"percentage"`
}

// RowSet is an ordered sequence of allocation rows. It lives only for the
// duration of an open allocation session and is discarded after submission.
type RowSet []Row

// Total returns the sum of all percentages.
func (rs RowSet) Total() float64 {
	var total float64
	for _, row := range rs {
		total += row.Percentage
	}
	return total
}

// Clone returns an independent copy of the row set.
func (rs RowSet) Clone() RowSet {
	out := make(RowSet, len(rs))
	copy(out, rs)
	return out
}

// DistributeEqually assigns each row 100/N rounded to two decimals, with the
// last row absorbing the rounding residual so the total is exactly 100.00.
func DistributeEqually(rows RowSet) (RowSet, error) {
	n := len(rows)
	if n == 0 {
		return rows, ErrNoRows
	}

	out := rows.Clone()
	share := round2(100.0 / float64(n))
	for i := range out {
		out[i].Percentage = share
	}
	out[n-1].Percentage = round2(100.0 - share*float64(n-1))
	return out, nil
}

// DistributeRemaining splits 100 minus the current total evenly across the
// zero-valued rows. The last zero-valued row absorbs the rounding residual.
func DistributeRemaining(rows RowSet) (RowSet, error) {
	remaining := 100.0 - rows.Total()
	if math.Abs(remaining) < Epsilon {
		return rows, ErrFullyAllocated
	}

	var zeroIdx []int
	for i, row := range rows {
		if row.Percentage == 0 {
			zeroIdx = append(zeroIdx, i)
		}
	}
	if len(zeroIdx) == 0 {
		return rows, ErrNothingToDistribute
	}

	out := rows.Clone()
	share := round2(remaining / float64(len(zeroIdx)))
	for _, i := range zeroIdx[:len(zeroIdx)-1] {
		out[i].Percentage = share
	}

	// The last zero row gets whatever closes the set to exactly 100.00
	var allocated float64
	for i, row := range out {
		if i != zeroIdx[len(zeroIdx)-1] {
			allocated += row.Percentage
		}
	}
	out[zeroIdx[len(zeroIdx)-1]].Percentage = round2(100.0 - allocated)

	return out, nil
}

// round2 rounds a float64 to two decimal places.
func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
