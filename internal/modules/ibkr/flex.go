package ibkr

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultFlexBaseURL is the IBKR Flex Web Service endpoint.
const DefaultFlexBaseURL = "https://ndcdyn.interactivebrokers.com/AccountManagement/FlexWebService"

// FlexClient fetches trade statements from the IBKR Flex Web Service. The
// protocol is two-step: SendRequest returns a reference code, GetStatement
// exchanges it for the generated statement once ready.
type FlexClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	queryID    string
	log        zerolog.Logger

	// polling knobs, overridable in tests
	pollInterval time.Duration
	maxPolls     int
}

// NewFlexClient creates a Flex Web Service client.
func NewFlexClient(baseURL, token, queryID string, log zerolog.Logger) *FlexClient {
	if baseURL == "" {
		baseURL = DefaultFlexBaseURL
	}
	return &FlexClient{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		queryID:      queryID,
		log:          log.With().Str("client", "flex").Logger(),
		pollInterval: 5 * time.Second,
		maxPolls:     6,
	}
}

// Configured reports whether the client has the token and query ID it needs.
func (c *FlexClient) Configured() bool {
	return c.token != "" && c.queryID != ""
}

// flexStatementResponse is the XML envelope both endpoints use for status
// and error reporting.
type flexStatementResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	ErrorCode     string   `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

// FetchStatement runs the full two-step exchange and parses the statement
// into inbox transactions.
func (c *FlexClient) FetchStatement(ctx context.Context) ([]InboxTransaction, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("flex client is not configured: token and query ID are required")
	}

	reference, err := c.sendRequest(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.getStatement(ctx, reference)
	if err != nil {
		return nil, err
	}

	transactions, err := parseFlexCSV(body)
	if err != nil {
		return nil, err
	}

	c.log.Info().Int("count", len(transactions)).Msg("Fetched flex statement")
	return transactions, nil
}

// sendRequest asks IBKR to generate the statement and returns the reference
// code to poll with.
func (c *FlexClient) sendRequest(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/SendRequest", c.queryID)
	if err != nil {
		return "", fmt.Errorf("flex SendRequest failed: %w", err)
	}

	var resp flexStatementResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse flex SendRequest response: %w", err)
	}
	if resp.Status != "Success" {
		return "", fmt.Errorf("flex SendRequest rejected: %s (%s)", resp.ErrorMessage, resp.ErrorCode)
	}
	if resp.ReferenceCode == "" {
		return "", fmt.Errorf("flex SendRequest returned no reference code")
	}
	return resp.ReferenceCode, nil
}

// getStatement polls GetStatement until the statement is ready. While
// generation is in progress IBKR answers with the XML envelope instead of
// the statement body.
func (c *FlexClient) getStatement(ctx context.Context, reference string) ([]byte, error) {
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pollInterval):
			}
		}

		body, err := c.get(ctx, "/GetStatement", reference)
		if err != nil {
			return nil, fmt.Errorf("flex GetStatement failed: %w", err)
		}

		if !bytes.Contains(body, []byte("FlexStatementResponse")) {
			return body, nil
		}

		var resp flexStatementResponse
		if err := xml.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse flex GetStatement response: %w", err)
		}
		// 1019 = statement generation in progress
		if resp.ErrorCode == "1019" || strings.Contains(resp.ErrorMessage, "in progress") {
			c.log.Debug().Int("attempt", attempt+1).Msg("Flex statement not ready yet")
			continue
		}
		return nil, fmt.Errorf("flex GetStatement rejected: %s (%s)", resp.ErrorMessage, resp.ErrorCode)
	}
	return nil, fmt.Errorf("flex statement not ready after %d attempts", c.maxPolls)
}

func (c *FlexClient) get(ctx context.Context, path, query string) ([]byte, error) {
	params := url.Values{}
	params.Set("t", c.token)
	params.Set("q", query)
	params.Set("v", "3")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseFlexCSV maps a Flex CSV trade statement onto inbox transactions.
// Columns are matched by header name, so the query's column order does not
// matter. Unknown rows (no transaction ID) are skipped.
func parseFlexCSV(data []byte) ([]InboxTransaction, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse flex CSV: %w", err)
	}
	if len(records) < 1 {
		return nil, nil
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.TrimSpace(name)] = i
	}
	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	num := func(record []string, name string) float64 {
		v, _ := strconv.ParseFloat(field(record, name), 64)
		return v
	}

	var transactions []InboxTransaction
	for _, record := range records[1:] {
		transactionID := field(record, "TransactionID")
		if transactionID == "" {
			transactionID = field(record, "TradeID")
		}
		if transactionID == "" {
			continue
		}

		quantity := num(record, "Quantity")
		txnType := TypeBuy
		switch {
		case strings.EqualFold(field(record, "Buy/Sell"), "SELL") || quantity < 0:
			txnType = TypeSell
		case strings.EqualFold(field(record, "Type"), "Dividends") ||
			strings.Contains(field(record, "Description"), "DIVIDEND"):
			txnType = TypeDividend
		}
		if quantity < 0 {
			quantity = -quantity
		}

		amount := num(record, "TradeMoney")
		if amount == 0 {
			amount = num(record, "Amount")
		}
		if amount < 0 {
			amount = -amount
		}
		commission := num(record, "IBCommission")
		if commission < 0 {
			commission = -commission
		}

		tradeDate := field(record, "TradeDate")
		if len(tradeDate) == 8 { // yyyymmdd
			tradeDate = tradeDate[:4] + "-" + tradeDate[4:6] + "-" + tradeDate[6:]
		}

		transactions = append(transactions, InboxTransaction{
			Source:        SourceFlex,
			TransactionID: transactionID,
			Symbol:        field(record, "Symbol"),
			ISIN:          field(record, "ISIN"),
			Description:   field(record, "Description"),
			TradeDate:     tradeDate,
			Type:          txnType,
			Quantity:      quantity,
			Price:         num(record, "TradePrice"),
			Amount:        amount,
			Commission:    commission,
			Currency:      field(record, "CurrencyPrimary"),
			Status:        StatusPending,
		})
	}
	return transactions, nil
}
