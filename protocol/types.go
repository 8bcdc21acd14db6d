package protocol

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is an immutable (symbol, interval) pair. Symbol is an
// uppercase exchange-qualified identifier such as "BINANCE:BTCUSDT";
// Interval is a normalized resolution code. Subscriptions are comparable
// and usable as map keys.
type Subscription struct {
	Symbol   string
	Interval string
}

// NewSubscription uppercases the symbol and normalizes the interval.
func NewSubscription(symbol, interval string) (Subscription, error) {
	res, err := NormalizeInterval(interval)
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{Symbol: strings.ToUpper(symbol), Interval: res}, nil
}

// Event is implemented by every value the decoder can produce.
type Event interface {
	eventKind() string
}

// Tick is a last-price/volume update from the quote session.
type Tick struct {
	Time   time.Time
	Price  decimal.Decimal
	Volume float64
	Symbol string
}

// Candle is an OHLCV bar, either still forming or closed. OHLC values keep
// the textual precision of the wire representation.
type Candle struct {
	Symbol    string
	Interval  string
	TimeOpen  time.Time
	TimeClose time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    *float64
	Closed    bool
}

// SeriesCompleted marks the end of a requested history snapshot.
type SeriesCompleted struct {
	SubKey string
}

// SymbolInfo carries symbol_resolved metadata. Optional; consumers that only
// want market data can ignore it.
type SymbolInfo struct {
	Alias string
	Info  json.RawMessage
}

func (Tick) eventKind() string            { return "tick" }
func (Candle) eventKind() string          { return "candle" }
func (SeriesCompleted) eventKind() string { return "series_completed" }
func (SymbolInfo) eventKind() string      { return "symbol_info" }

type tickJSON struct {
	Type   string          `json:"type"`
	Time   string          `json:"ts"`
	Price  decimal.Decimal `json:"price"`
	Volume float64         `json:"volume"`
	Symbol string          `json:"symbol"`
}

// MarshalJSON encodes the tick with an RFC3339 UTC timestamp and the price
// as a decimal string, matching the NDJSON surface of the CLI.
func (t Tick) MarshalJSON() ([]byte, error) {
	return json.Marshal(tickJSON{
		Type:   "tick",
		Time:   t.Time.UTC().Format(time.RFC3339Nano),
		Price:  t.Price,
		Volume: t.Volume,
		Symbol: t.Symbol,
	})
}

type candleJSON struct {
	Type      string          `json:"type"`
	Symbol    string          `json:"symbol"`
	Interval  string          `json:"interval"`
	TimeOpen  string          `json:"ts_open"`
	TimeClose string          `json:"ts_close"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    *float64        `json:"volume"`
	Closed    bool            `json:"closed"`
}

// MarshalJSON encodes the candle with RFC3339 UTC timestamps and OHLC values
// as decimal strings so no precision is lost on output.
func (c Candle) MarshalJSON() ([]byte, error) {
	return json.Marshal(candleJSON{
		Type:      "bar",
		Symbol:    c.Symbol,
		Interval:  c.Interval,
		TimeOpen:  c.TimeOpen.UTC().Format(time.RFC3339Nano),
		TimeClose: c.TimeClose.UTC().Format(time.RFC3339Nano),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Closed:    c.Closed,
	})
}
