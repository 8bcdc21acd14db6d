package wsconn

import (
	"math/rand"
	"sync"

	"github.com/tvstream/tvstream-go/protocol"
)

const sessionIDLetters = "abcdefghijklmnopqrstuvwxyz"

// NewChartSessionID returns a fresh chart session identifier (cs_ followed
// by 12 random lowercase letters). Identifiers are only valid for the socket
// they were announced on; every reconnect generates new ones.
func NewChartSessionID() string {
	return "cs_" + randomLetters(12)
}

// NewQuoteSessionID returns a fresh quote session identifier.
func NewQuoteSessionID() string {
	return "qs_" + randomLetters(12)
}

// NewSeriesID returns a series identifier of the form sNNNN.
func NewSeriesID() string {
	return "s" + string([]byte{
		byte('1' + rand.Intn(9)),
		byte('0' + rand.Intn(10)),
		byte('0' + rand.Intn(10)),
		byte('0' + rand.Intn(10)),
	})
}

func randomLetters(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = sessionIDLetters[rand.Intn(len(sessionIDLetters))]
	}
	return string(b)
}

// Session holds the per-connection protocol state: the chart and quote
// session ids, the handshake gate, the series registry and the set of quote
// symbols already announced. Created when a transport opens, discarded with
// it.
type Session struct {
	chartSession string
	quoteSession string
	token        string

	mu            sync.Mutex
	handshakeDone bool
	series        map[string]protocol.Subscription
	quoteSymbols  map[string]struct{}
}

// NewSession generates fresh session identifiers. token authenticates the
// connection; unauthenticated callers pass the anonymous token.
func NewSession(token string) *Session {
	return &Session{
		chartSession: NewChartSessionID(),
		quoteSession: NewQuoteSessionID(),
		token:        token,
		series:       make(map[string]protocol.Subscription),
		quoteSymbols: make(map[string]struct{}),
	}
}

// ChartSession returns the chart session identifier.
func (s *Session) ChartSession() string { return s.chartSession }

// QuoteSession returns the quote session identifier.
func (s *Session) QuoteSession() string { return s.quoteSession }

// EnsureHandshake sends the handshake sequence exactly once per session:
// set_auth_token, chart_create_session, quote_create_session,
// quote_set_fields. Concurrent subscribers race through this gate; only the
// first performs the sends, and the ordering guarantees that handshake
// frames precede any subscribe frames.
func (s *Session) EnsureHandshake(send func(frame string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handshakeDone {
		return nil
	}
	frames := []string{
		protocol.SetAuthToken(s.token),
		protocol.ChartCreateSession(s.chartSession),
		protocol.QuoteCreateSession(s.quoteSession),
		protocol.QuoteSetFields(s.quoteSession),
	}
	for _, f := range frames {
		if err := send(f); err != nil {
			return err
		}
	}
	s.handshakeDone = true
	return nil
}

// RegisterSeries records the subscription a server-assigned series id
// belongs to, so inbound du frames can be routed.
func (s *Session) RegisterSeries(seriesID string, sub protocol.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[seriesID] = sub
}

// UnregisterSeries drops a series mapping and returns it, if present.
func (s *Session) UnregisterSeries(seriesID string) (protocol.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.series[seriesID]
	delete(s.series, seriesID)
	return sub, ok
}

// SeriesFor returns the series ids registered for a subscription.
func (s *Session) SeriesFor(sub protocol.Subscription) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, registered := range s.series {
		if registered == sub {
			ids = append(ids, id)
		}
	}
	return ids
}

// LookupSeries implements protocol.SeriesResolver.
func (s *Session) LookupSeries(seriesID string) (protocol.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.series[seriesID]
	return sub, ok
}

// MarkQuoteSymbol records that quote_add_symbols was sent for symbol and
// reports whether it is the first announcement on this connection.
func (s *Session) MarkQuoteSymbol(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.quoteSymbols[symbol]; seen {
		return false
	}
	s.quoteSymbols[symbol] = struct{}{}
	return true
}

// DropQuoteSymbol forgets a symbol so a later subscribe re-announces it.
func (s *Session) DropQuoteSymbol(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quoteSymbols, symbol)
}
