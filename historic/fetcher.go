// Package historic fetches recent closed candles through a short-lived
// chart session. Results are cached for a minute and concurrent sessions
// are capped process-wide.
package historic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvstream/tvstream-go/auth"
	"github.com/tvstream/tvstream-go/internal/limiter"
	"github.com/tvstream/tvstream-go/internal/wsconn"
	"github.com/tvstream/tvstream-go/protocol"
	"github.com/tvstream/tvstream-go/stream"
)

// ErrTooManyRequests is returned when the concurrent history session cap is
// reached. Callers fail fast instead of queuing.
var ErrTooManyRequests = errors.New("too many concurrent history requests")

// DefaultTimeout bounds one history session when the caller passes no
// deadline of its own.
const DefaultTimeout = 10 * time.Second

// The one-shot session uses fixed identifiers; nothing else shares the
// connection.
const historySeriesID = "sds_1"

// Fetcher runs one-shot history sessions. The zero-argument constructor
// wires the production transport; tests inject a dialer and their own
// limiter so sessions stay isolated.
type Fetcher struct {
	dialer   wsconn.Dialer
	limiter  *limiter.SessionLimiter
	cache    *candleCache
	logger   zerolog.Logger
	url      string
	origin   string
	discover func() auth.Cookies
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithDialer injects a transport dialer.
func WithDialer(d wsconn.Dialer) FetcherOption {
	return func(f *Fetcher) { f.dialer = d }
}

// WithLimiter injects a session limiter.
func WithLimiter(l *limiter.SessionLimiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

// WithLogger sets a zerolog logger.
func WithLogger(logger zerolog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// WithEndpoint overrides the WebSocket endpoint.
func WithEndpoint(url string) FetcherOption {
	return func(f *Fetcher) { f.url = url }
}

// WithCookieDiscovery overrides how session cookies are resolved.
func WithCookieDiscovery(fn func() auth.Cookies) FetcherOption {
	return func(f *Fetcher) { f.discover = fn }
}

// NewFetcher creates an isolated fetcher with its own cache and semaphore.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		dialer:   wsconn.Dial,
		limiter:  limiter.NewSessionLimiter(),
		cache:    newCandleCache(),
		logger:   zerolog.Nop(),
		url:      stream.DefaultEndpoint,
		origin:   stream.DefaultOrigin,
		discover: auth.Discover,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var (
	defaultFetcher     *Fetcher
	defaultFetcherOnce sync.Once
)

// Default returns the process-wide fetcher, so independent callers share
// the cache and the session cap.
func Default() *Fetcher {
	defaultFetcherOnce.Do(func() {
		defaultFetcher = NewFetcher()
	})
	return defaultFetcher
}

// Fetch returns the most recent limit candles for a symbol and interval,
// oldest first. Results are cached for 60 seconds per (symbol, interval,
// limit). When the per-call deadline elapses the partial result collected so
// far is returned without error; transport failures are fatal.
func (f *Fetcher) Fetch(ctx context.Context, symbol, interval string, limit int, timeout time.Duration) ([]protocol.Candle, error) {
	res, err := protocol.NormalizeInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = protocol.MinHistoryBars
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	symbol = strings.ToUpper(symbol)

	key := cacheKey{symbol: symbol, interval: res, limit: limit}
	if cached, ok := f.cache.get(key); ok {
		return cached, nil
	}

	if !f.limiter.TryAcquire() {
		return nil, ErrTooManyRequests
	}
	defer f.limiter.Release()

	candles, err := f.fetchOnce(ctx, symbol, res, limit, timeout)
	if err != nil {
		return nil, err
	}
	f.cache.put(key, candles)
	return candles, nil
}

// fetchOnce drives one complete protocol session: handshake, resolve,
// create_series with the requested countback, then read until the snapshot
// is complete or the deadline passes.
func (f *Fetcher) fetchOnce(ctx context.Context, symbol, res string, limit int, timeout time.Duration) ([]protocol.Candle, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cookies := f.discover()

	transport, err := f.dialer(runCtx, wsconn.DialConfig{
		URL:       f.url,
		Origin:    f.origin,
		SessionID: cookies.SessionID,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	sub := protocol.Subscription{Symbol: symbol, Interval: res}
	resolver := protocol.SeriesResolverFunc(func(seriesID string) (protocol.Subscription, bool) {
		if seriesID == historySeriesID {
			return sub, true
		}
		return protocol.Subscription{}, false
	})

	var (
		mu        sync.Mutex
		byOpen    = make(map[int64]int)
		collected []protocol.Candle
		completed bool
	)

	handler := func(ctx context.Context, payload string) error {
		for _, ev := range protocol.DecodeFrame(payload, resolver) {
			switch typed := ev.(type) {
			case protocol.Candle:
				mu.Lock()
				// Deduplicate by open time, keeping the latest revision.
				if i, seen := byOpen[typed.TimeOpen.Unix()]; seen {
					collected[i] = typed
				} else {
					byOpen[typed.TimeOpen.Unix()] = len(collected)
					collected = append(collected, typed)
				}
				enough := completed && len(collected) >= limit
				mu.Unlock()
				if enough {
					cancel()
				}
			case protocol.SeriesCompleted:
				mu.Lock()
				completed = true
				enough := len(collected) >= limit
				mu.Unlock()
				if enough {
					cancel()
				}
			}
		}
		return nil
	}

	conn := wsconn.NewConnection(wsconn.Config{
		Transport: transport,
		Handler:   handler,
		Logger:    f.logger,
	})
	defer conn.Close()

	// The reader blocks inside the transport; closing it is what ends the
	// session when the deadline passes or the snapshot completes.
	go func() {
		<-runCtx.Done()
		_ = conn.Close()
	}()

	token := cookies.AuthToken
	if token == "" {
		token = stream.AnonymousToken
	}
	alias := "sds_sym_0"
	chart := wsconn.NewChartSessionID()
	setup := []string{
		protocol.SetAuthToken(token),
		protocol.ChartCreateSession(chart),
		protocol.ResolveSymbol(chart, alias, symbol),
		protocol.CreateSeries(chart, historySeriesID, alias, res, limit),
	}
	for _, frame := range setup {
		if err := conn.Send(runCtx, frame); err != nil {
			return nil, err
		}
	}

	runErr := conn.Run(runCtx)

	mu.Lock()
	result := make([]protocol.Candle, len(collected))
	copy(result, collected)
	done := completed && len(result) >= limit
	mu.Unlock()

	// Deadline or deliberate cancellation both surface as a context error;
	// either way the collected snapshot is the answer. Anything else is a
	// transport failure and fatal for a one-shot session.
	if runErr != nil && runCtx.Err() == nil {
		return nil, runErr
	}
	if !done && runCtx.Err() == context.DeadlineExceeded {
		f.logger.Warn().
			Str("symbol", symbol).Str("interval", res).
			Int("collected", len(result)).
			Msg("history fetch timed out, returning partial result")
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimeOpen.Before(result[j].TimeOpen)
	})
	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}
