package tvstream

import (
	"context"
	"time"

	"github.com/tvstream/tvstream-go/historic"
)

// GetHistoricCandles fetches the most recent limit closed candles for a
// symbol and interval, oldest first, over a short-lived connection. Repeat
// calls within a minute are served from a process-wide cache; at most three
// fetch sessions run concurrently, further calls fail with
// ErrTooManyRequests. When the timeout elapses before the full snapshot
// arrives, the candles collected so far are returned without error.
func GetHistoricCandles(ctx context.Context, symbol, interval string, limit int, timeout time.Duration) ([]Candle, error) {
	return historic.Default().Fetch(ctx, symbol, interval, limit, timeout)
}
