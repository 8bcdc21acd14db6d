package protocol

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SeriesResolver maps a server-assigned series id back to the subscription
// that created it. Frames for unknown series are dropped.
type SeriesResolver interface {
	LookupSeries(seriesID string) (Subscription, bool)
}

// SeriesResolverFunc adapts a function to the SeriesResolver interface.
type SeriesResolverFunc func(seriesID string) (Subscription, bool)

// LookupSeries implements SeriesResolver.
func (f SeriesResolverFunc) LookupSeries(seriesID string) (Subscription, bool) {
	return f(seriesID)
}

type wireMessage struct {
	Method string            `json:"m"`
	Params []json.RawMessage `json:"p"`
}

// quote status data: p[1] = {"n": symbol, "v": {"lp":…, "volume":…, "upd":…}}
type quoteData struct {
	Name   string `json:"n"`
	Values struct {
		LastPrice *json.Number `json:"lp"`
		Volume    *float64     `json:"volume"`
		Updated   *json.Number `json:"upd"`
	} `json:"v"`
}

type seriesElement struct {
	Index  json.Number       `json:"i"`
	Values []json.Number     `json:"v"`
	Labels *seriesLabelBlock `json:"lbs"`
}

type seriesLabelBlock struct {
	BarCloseTime *json.Number `json:"bar_close_time"`
}

type seriesBlock struct {
	Elements []seriesElement   `json:"s"`
	Labels   *seriesLabelBlock `json:"lbs"`
}

// DecodeFrame parses one envelope payload into zero or more typed events.
// Payloads that are not JSON method objects, methods the client does not
// consume and series updates for unregistered series all decode to an empty
// slice; only structurally broken JSON inside a known method is reported.
func DecodeFrame(payload string, resolver SeriesResolver) []Event {
	if !strings.HasPrefix(payload, "{") {
		return nil
	}

	var msg wireMessage
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil || msg.Method == "" {
		return nil
	}

	switch msg.Method {
	case "qsd":
		return decodeQuote(msg.Params)
	case "du", "timescale_update", "series_loading":
		return decodeSeriesUpdate(msg.Params, resolver)
	case "series_completed":
		return decodeSeriesCompleted(msg.Params)
	case "symbol_resolved":
		return decodeSymbolResolved(msg.Params)
	}
	return nil
}

func decodeQuote(params []json.RawMessage) []Event {
	if len(params) < 2 {
		return nil
	}
	var q quoteData
	if err := unmarshalNumber(params[1], &q); err != nil {
		return nil
	}
	// All three fields must be present; partial quote updates carry other
	// fields (bid/ask etc.) the client did not ask for.
	if q.Values.LastPrice == nil || q.Values.Volume == nil || q.Values.Updated == nil {
		return nil
	}
	price, err := decimal.NewFromString(q.Values.LastPrice.String())
	if err != nil {
		return nil
	}
	upd, err := q.Values.Updated.Int64()
	if err != nil {
		return nil
	}
	return []Event{Tick{
		Time:   time.UnixMilli(upd).UTC(),
		Price:  price,
		Volume: *q.Values.Volume,
		Symbol: q.Name,
	}}
}

func decodeSeriesUpdate(params []json.RawMessage, resolver SeriesResolver) []Event {
	if len(params) < 2 || resolver == nil {
		return nil
	}
	var series map[string]json.RawMessage
	if err := json.Unmarshal(params[1], &series); err != nil {
		return nil
	}

	var events []Event
	for seriesID, raw := range series {
		sub, ok := resolver.LookupSeries(seriesID)
		if !ok {
			continue
		}
		var block seriesBlock
		if err := unmarshalNumber(raw, &block); err != nil {
			continue
		}
		for _, el := range block.Elements {
			labels := el.Labels
			if labels == nil {
				labels = block.Labels
			}
			if c, ok := candleFromElement(el, labels, sub); ok {
				events = append(events, c)
			}
		}
	}
	return events
}

func candleFromElement(el seriesElement, labels *seriesLabelBlock, sub Subscription) (Candle, bool) {
	if len(el.Values) < 6 {
		return Candle{}, false
	}

	tsOpen, ok := epochTime(el.Values[0])
	if !ok {
		return Candle{}, false
	}

	open, err1 := decimal.NewFromString(el.Values[1].String())
	high, err2 := decimal.NewFromString(el.Values[2].String())
	low, err3 := decimal.NewFromString(el.Values[3].String())
	closePx, err4 := decimal.NewFromString(el.Values[4].String())
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Candle{}, false
	}

	var volume *float64
	if v, err := el.Values[5].Float64(); err == nil {
		volume = &v
	}

	var tsClose time.Time
	if labels != nil && labels.BarCloseTime != nil {
		if t, ok := epochTime(*labels.BarCloseTime); ok {
			tsClose = t
		}
	}
	if tsClose.IsZero() {
		tsClose = tsOpen.Add(IntervalDuration(sub.Interval))
	}

	closed := false
	if len(el.Values) > 6 {
		if f, err := el.Values[6].Float64(); err == nil && f != 0 {
			closed = true
		}
	}

	return Candle{
		Symbol:    sub.Symbol,
		Interval:  sub.Interval,
		TimeOpen:  tsOpen,
		TimeClose: tsClose,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
		Closed:    closed,
	}, true
}

func decodeSeriesCompleted(params []json.RawMessage) []Event {
	if len(params) < 2 {
		return nil
	}
	var subKey string
	if err := json.Unmarshal(params[1], &subKey); err != nil {
		return nil
	}
	return []Event{SeriesCompleted{SubKey: subKey}}
}

func decodeSymbolResolved(params []json.RawMessage) []Event {
	if len(params) < 3 {
		return nil
	}
	var alias string
	if err := json.Unmarshal(params[1], &alias); err != nil {
		return nil
	}
	return []Event{SymbolInfo{Alias: alias, Info: params[2]}}
}

// epochTime interprets a wire timestamp. Values above 1e12 are epoch
// milliseconds, everything else epoch seconds. Fractional seconds are kept.
func epochTime(n json.Number) (time.Time, bool) {
	f, err := n.Float64()
	if err != nil {
		return time.Time{}, false
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC(), true
}

func unmarshalNumber(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	return dec.Decode(v)
}
