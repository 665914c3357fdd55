package allocation

import (
	"fmt"
	"math"
)

// ValidationCode identifies why a row set was rejected.
type ValidationCode string

const (
	// SumMismatch - percentages do not add up to 100 within Epsilon
	SumMismatch ValidationCode = "sum_mismatch"
	// DuplicateTarget - the same portfolio appears in more than one row
	DuplicateTarget ValidationCode = "duplicate_target"
	// IncompleteRow - a row has no portfolio selected
	IncompleteRow ValidationCode = "incomplete_row"
)

// ValidationError describes a client-side rejection of an allocation row set.
// A failing validation blocks submission entirely; nothing is partially
// submitted and the backend is never contacted.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks an allocation row set before submission.
// Checks run in order: completeness, duplicates, total. The first failure
// is returned so the user sees one specific message at a time.
func Validate(rows RowSet) error {
	if len(rows) == 0 {
		return &ValidationError{
			Code:    IncompleteRow,
			Message: "at least one allocation row is required",
		}
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.PortfolioID == "" {
			return &ValidationError{
				Code:    IncompleteRow,
				Message: "every allocation row must have a portfolio selected",
			}
		}
		if seen[row.PortfolioID] {
			return &ValidationError{
				Code:    DuplicateTarget,
				Message: fmt.Sprintf("portfolio %s appears more than once", row.PortfolioID),
			}
		}
		seen[row.PortfolioID] = true
	}

	total := rows.Total()
	if math.Abs(total-100.0) > Epsilon {
		return &ValidationError{
			Code:    SumMismatch,
			Message: fmt.Sprintf("allocation percentages must total 100%%, got %.2f%%", total),
		}
	}

	return nil
}
