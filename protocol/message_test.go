package protocol

import (
	"strings"
	"testing"
)

func TestSetAuthToken(t *testing.T) {
	got := SetAuthToken("unauthorized_user_token")
	want := EncodeFrame(`{"m":"set_auth_token","p":["unauthorized_user_token"]}`)
	if got != want {
		t.Errorf("SetAuthToken = %q, want %q", got, want)
	}
}

func TestChartCreateSession(t *testing.T) {
	got := ChartCreateSession("cs_abcdefghijkl")
	want := EncodeFrame(`{"m":"chart_create_session","p":["cs_abcdefghijkl",""]}`)
	if got != want {
		t.Errorf("ChartCreateSession = %q, want %q", got, want)
	}
}

func TestQuoteSetFields(t *testing.T) {
	got := QuoteSetFields("qs_abcdefghijkl")
	want := EncodeFrame(`{"m":"quote_set_fields","p":["qs_abcdefghijkl","lp","volume"]}`)
	if got != want {
		t.Errorf("QuoteSetFields = %q, want %q", got, want)
	}
	if strings.Contains(got, `"ch"`) {
		t.Error("quote_set_fields must not request the ch field")
	}
}

func TestQuoteAddSymbols(t *testing.T) {
	got := QuoteAddSymbols("qs_abcdefghijkl", "BINANCE:BTCUSDT")
	want := EncodeFrame(`{"m":"quote_add_symbols","p":["qs_abcdefghijkl",["BINANCE:BTCUSDT"]]}`)
	if got != want {
		t.Errorf("QuoteAddSymbols = %q, want %q", got, want)
	}
}

func TestQuoteRemoveSymbols(t *testing.T) {
	got := QuoteRemoveSymbols("qs_abcdefghijkl", "BINANCE:BTCUSDT")
	want := EncodeFrame(`{"m":"quote_remove_symbols","p":["qs_abcdefghijkl","BINANCE:BTCUSDT"]}`)
	if got != want {
		t.Errorf("QuoteRemoveSymbols = %q, want %q", got, want)
	}
}

func TestResolveSymbol(t *testing.T) {
	got := ResolveSymbol("cs_abcdefghijkl", "sym_1", "NASDAQ:AAPL")
	want := EncodeFrame(`{"m":"resolve_symbol","p":["cs_abcdefghijkl","sym_1","={\"symbol\":\"NASDAQ:AAPL\",\"adjustment\":\"splits\"}"]}`)
	if got != want {
		t.Errorf("ResolveSymbol = %q, want %q", got, want)
	}
}

func TestCreateSeries(t *testing.T) {
	got := CreateSeries("cs_abcdefghijkl", "s1234", "sym_1", "60", 500)
	want := EncodeFrame(`{"m":"create_series","p":["cs_abcdefghijkl","s1234","s1234","sym_1","60",500,""]}`)
	if got != want {
		t.Errorf("CreateSeries = %q, want %q", got, want)
	}
}

func TestCreateSeriesClampsHistory(t *testing.T) {
	for _, history := range []int{-5, 0, 1, 299} {
		got := CreateSeries("cs_abcdefghijkl", "s1234", "sym_1", "1", history)
		if !strings.Contains(got, ",300,") {
			t.Errorf("CreateSeries(history=%d) = %q, want countback clamped to 300", history, got)
		}
	}
	if got := CreateSeries("cs_abcdefghijkl", "s1234", "sym_1", "1", 301); !strings.Contains(got, ",301,") {
		t.Errorf("CreateSeries(history=301) = %q, want 301 preserved", got)
	}
}

func TestRemoveSeries(t *testing.T) {
	got := RemoveSeries("cs_abcdefghijkl", "s1234")
	want := EncodeFrame(`{"m":"remove_series","p":["cs_abcdefghijkl","s1234"]}`)
	if got != want {
		t.Errorf("RemoveSeries = %q, want %q", got, want)
	}
}
