package protocol

import (
	"encoding/json"
	"fmt"
)

// MinHistoryBars is the smallest countback the chart server accepts for
// create_series. Requests below it are rejected with critical_error, so
// builders clamp to this value.
const MinHistoryBars = 300

// methodFrame builds the compact JSON body {"m":method,"p":params} and wraps
// it in the envelope. encoding/json produces no extra whitespace, matching
// the separators the server expects.
func methodFrame(method string, params []any) string {
	body, err := json.Marshal(struct {
		M string `json:"m"`
		P []any  `json:"p"`
	}{M: method, P: params})
	if err != nil {
		// Params are plain strings and numbers; marshaling cannot fail.
		panic(fmt.Sprintf("protocol: marshal %s: %v", method, err))
	}
	return EncodeFrame(string(body))
}

// SetAuthToken is the first frame on every connection.
func SetAuthToken(token string) string {
	return methodFrame("set_auth_token", []any{token})
}

// ChartCreateSession opens the chart context that series subscriptions
// attach to.
func ChartCreateSession(chartSession string) string {
	return methodFrame("chart_create_session", []any{chartSession, ""})
}

// QuoteCreateSession opens the quote context that delivers tick updates.
func QuoteCreateSession(quoteSession string) string {
	return methodFrame("quote_create_session", []any{quoteSession})
}

// QuoteSetFields restricts quote updates to last price and volume. The "ch"
// field is deliberately not requested: some server clusters answer it with
// critical_error and close the socket.
func QuoteSetFields(quoteSession string) string {
	return methodFrame("quote_set_fields", []any{quoteSession, "lp", "volume"})
}

// QuoteAddSymbols announces a symbol to the quote session. Sent once per
// unique symbol on a connection.
func QuoteAddSymbols(quoteSession, symbol string) string {
	return methodFrame("quote_add_symbols", []any{quoteSession, []any{symbol}})
}

// QuoteRemoveSymbols retracts a symbol from the quote session.
func QuoteRemoveSymbols(quoteSession, symbol string) string {
	return methodFrame("quote_remove_symbols", []any{quoteSession, symbol})
}

// ResolveSymbol binds an alias to a symbol descriptor within the chart
// session. Series creation refers to the alias.
func ResolveSymbol(chartSession, alias, symbol string) string {
	descriptor := fmt.Sprintf(`={"symbol":%q,"adjustment":"splits"}`, symbol)
	return methodFrame("resolve_symbol", []any{chartSession, alias, descriptor})
}

// CreateSeries subscribes a series to bar updates at the given resolution.
// history is the countback snapshot size, clamped to MinHistoryBars.
func CreateSeries(chartSession, seriesID, alias, resolution string, history int) string {
	if history < MinHistoryBars {
		history = MinHistoryBars
	}
	return methodFrame("create_series", []any{
		chartSession, seriesID, seriesID, alias, resolution, history, "",
	})
}

// RemoveSeries detaches a series from the chart session.
func RemoveSeries(chartSession, seriesID string) string {
	return methodFrame("remove_series", []any{chartSession, seriesID})
}
