package ibkr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlexCSV(t *testing.T) {
	data := []byte(`TradeID,Symbol,ISIN,Description,TradeDate,Buy/Sell,Quantity,TradePrice,TradeMoney,IBCommission,CurrencyPrimary
1001,VWRL,IE00B3RBWM25,VANGUARD FTSE AW,20260820,BUY,10,104.50,1045.00,-1.25,EUR
1002,CSPX,IE00B5BMR087,ISHARES CORE S&P500,20260821,SELL,-2,512.00,-1024.00,-1.10,USD
`)

	transactions, err := parseFlexCSV(data)
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	buy := transactions[0]
	assert.Equal(t, "1001", buy.TransactionID)
	assert.Equal(t, SourceFlex, buy.Source)
	assert.Equal(t, TypeBuy, buy.Type)
	assert.Equal(t, "VWRL", buy.Symbol)
	assert.Equal(t, "IE00B3RBWM25", buy.ISIN)
	assert.Equal(t, "2026-08-20", buy.TradeDate)
	assert.InDelta(t, 10, buy.Quantity, 1e-9)
	assert.InDelta(t, 104.50, buy.Price, 1e-9)
	assert.InDelta(t, 1045.00, buy.Amount, 1e-9)
	assert.InDelta(t, 1.25, buy.Commission, 1e-9) // commissions arrive negative
	assert.Equal(t, "EUR", buy.Currency)
	assert.Equal(t, StatusPending, buy.Status)

	sell := transactions[1]
	assert.Equal(t, TypeSell, sell.Type)
	assert.InDelta(t, 2, sell.Quantity, 1e-9) // quantity normalized positive
	assert.InDelta(t, 1024.00, sell.Amount, 1e-9)
}

func TestParseFlexCSVSkipsRowsWithoutID(t *testing.T) {
	data := []byte(`TradeID,Symbol,Quantity
,VWRL,10
1003,VWRL,5
`)

	transactions, err := parseFlexCSV(data)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "1003", transactions[0].TransactionID)
}

func TestParseFlexCSVEmpty(t *testing.T) {
	transactions, err := parseFlexCSV([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, transactions)
}

func TestParseFlexCSVColumnOrderIndependent(t *testing.T) {
	data := []byte(`Quantity,TradeID,TradePrice,Symbol,TradeDate
4,1004,25.00,AAPL,20260822
`)

	transactions, err := parseFlexCSV(data)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "AAPL", transactions[0].Symbol)
	assert.InDelta(t, 4, transactions[0].Quantity, 1e-9)
	assert.Equal(t, "2026-08-22", transactions[0].TradeDate)
}
