package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributeEquallyTotalsExactly100(t *testing.T) {
	for n := 1; n <= 12; n++ {
		rows := make(RowSet, n)
		for i := range rows {
			rows[i].PortfolioID = string(rune('A' + i))
		}

		out, err := DistributeEqually(rows)
		require.NoError(t, err, "n=%d", n)
		assert.InDelta(t, 100.0, out.Total(), 1e-9, "n=%d", n)
	}
}

func TestDistributeEquallyThreeWaySplit(t *testing.T) {
	rows := RowSet{{PortfolioID: "A"}, {PortfolioID: "B"}, {PortfolioID: "C"}}

	out, err := DistributeEqually(rows)
	require.NoError(t, err)

	assert.Equal(t, 33.33, out[0].Percentage)
	assert.Equal(t, 33.33, out[1].Percentage)
	assert.Equal(t, 33.34, out[2].Percentage, "last row absorbs the residual")
}

func TestDistributeEquallyNoRows(t *testing.T) {
	out, err := DistributeEqually(RowSet{})
	assert.ErrorIs(t, err, ErrNoRows)
	assert.Empty(t, out)
}

func TestDistributeEquallyDoesNotMutateInput(t *testing.T) {
	rows := RowSet{{PortfolioID: "A", Percentage: 70}, {PortfolioID: "B", Percentage: 30}}

	_, err := DistributeEqually(rows)
	require.NoError(t, err)

	assert.Equal(t, 70.0, rows[0].Percentage)
	assert.Equal(t, 30.0, rows[1].Percentage)
}

func TestDistributeRemainingFillsZeroRows(t *testing.T) {
	rows := RowSet{
		{PortfolioID: "A", Percentage: 40},
		{PortfolioID: "B"},
		{PortfolioID: "C"},
		{PortfolioID: "D"},
	}

	out, err := DistributeRemaining(rows)
	require.NoError(t, err)

	assert.Equal(t, 40.0, out[0].Percentage, "non-zero rows untouched")
	assert.Equal(t, 20.0, out[1].Percentage)
	assert.Equal(t, 20.0, out[2].Percentage)
	assert.Equal(t, 20.0, out[3].Percentage)
	assert.InDelta(t, 100.0, out.Total(), 1e-9)
}

func TestDistributeRemainingResidualGoesToLastZeroRow(t *testing.T) {
	rows := RowSet{
		{PortfolioID: "A", Percentage: 50},
		{PortfolioID: "B"},
		{PortfolioID: "C"},
		{PortfolioID: "D"},
	}

	out, err := DistributeRemaining(rows)
	require.NoError(t, err)

	// 50/3 = 16.67 rounded; last zero row closes the set to 100.00
	assert.Equal(t, 16.67, out[1].Percentage)
	assert.Equal(t, 16.67, out[2].Percentage)
	assert.Equal(t, 16.66, out[3].Percentage)
	assert.InDelta(t, 100.0, out.Total(), 1e-9)
}

func TestDistributeRemainingAlreadyFull(t *testing.T) {
	rows := RowSet{{PortfolioID: "A", Percentage: 60}, {PortfolioID: "B", Percentage: 40}}

	out, err := DistributeRemaining(rows)
	assert.ErrorIs(t, err, ErrFullyAllocated)
	assert.Equal(t, rows, out, "no mutation on error")
}

func TestDistributeRemainingNoZeroRows(t *testing.T) {
	rows := RowSet{{PortfolioID: "A", Percentage: 60}, {PortfolioID: "B", Percentage: 10}}

	_, err := DistributeRemaining(rows)
	assert.ErrorIs(t, err, ErrNothingToDistribute)
}

func TestDistributeRemainingOverAllocated(t *testing.T) {
	// Total above 100 distributes a negative remainder into the zero rows
	rows := RowSet{
		{PortfolioID: "A", Percentage: 80},
		{PortfolioID: "B", Percentage: 30},
		{PortfolioID: "C"},
	}

	out, err := DistributeRemaining(rows)
	require.NoError(t, err)
	assert.Equal(t, -10.0, out[2].Percentage)
	assert.InDelta(t, 100.0, out.Total(), 1e-9)
}
