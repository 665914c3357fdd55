package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireValidationCode(t *testing.T, err error, code ValidationCode) {
	t.Helper()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, code, vErr.Code)
}

func TestValidateAcceptsValidSet(t *testing.T) {
	rows := RowSet{
		{PortfolioID: "A", Percentage: 60},
		{PortfolioID: "B", Percentage: 40},
	}
	assert.NoError(t, Validate(rows))
}

func TestValidateRejectsSumMismatch(t *testing.T) {
	rows := RowSet{{PortfolioID: "A", Percentage: 60}}
	requireValidationCode(t, Validate(rows), SumMismatch)
}

func TestValidateRejectsDuplicateTarget(t *testing.T) {
	rows := RowSet{
		{PortfolioID: "A", Percentage: 50},
		{PortfolioID: "A", Percentage: 50},
	}
	requireValidationCode(t, Validate(rows), DuplicateTarget)
}

func TestValidateRejectsIncompleteRow(t *testing.T) {
	rows := RowSet{
		{PortfolioID: "A", Percentage: 50},
		{PortfolioID: "", Percentage: 50},
	}
	requireValidationCode(t, Validate(rows), IncompleteRow)
}

func TestValidateRejectsEmptySet(t *testing.T) {
	requireValidationCode(t, Validate(RowSet{}), IncompleteRow)
}

func TestValidateAcceptsTotalWithinEpsilon(t *testing.T) {
	rows := RowSet{
		{PortfolioID: "A", Percentage: 33.33},
		{PortfolioID: "B", Percentage: 33.33},
		{PortfolioID: "C", Percentage: 33.34},
	}
	assert.NoError(t, Validate(rows))
}
