package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInterval is returned when an interval string cannot be mapped to
// a supported resolution code.
var ErrInvalidInterval = errors.New("invalid interval")

// Resolution codes accepted by the chart server. Sub-minute resolutions are
// not available over this endpoint.
var allowedIntervals = map[string]struct{}{
	"1": {}, "3": {}, "5": {}, "15": {}, "30": {},
	"60": {}, "120": {}, "240": {},
	"D": {}, "W": {}, "M": {},
}

// NormalizeInterval maps a user interval string to a server resolution code.
// Accepted inputs are minute strings ("5", "15"), suffixed aliases ("5m",
// "1h", "1mo") and the letter codes "D", "W", "M" in any case. The result is
// itself a valid input, so the function is idempotent.
func NormalizeInterval(raw string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case strings.HasSuffix(cleaned, "mo") && isDigits(cleaned[:len(cleaned)-2]):
		cleaned = "M"
	case strings.HasSuffix(cleaned, "m"):
		cleaned = cleaned[:len(cleaned)-1]
	case strings.HasSuffix(cleaned, "h") && isDigits(cleaned[:len(cleaned)-1]):
		n, _ := strconv.Atoi(cleaned[:len(cleaned)-1])
		cleaned = strconv.Itoa(n * 60)
	case strings.HasSuffix(cleaned, "d") && isDigits(cleaned[:len(cleaned)-1]):
		n, _ := strconv.Atoi(cleaned[:len(cleaned)-1])
		cleaned = strconv.Itoa(n * 1440)
	case strings.HasSuffix(cleaned, "w") && isDigits(cleaned[:len(cleaned)-1]):
		n, _ := strconv.Atoi(cleaned[:len(cleaned)-1])
		cleaned = strconv.Itoa(n * 10080)
	}

	if isDigits(cleaned) {
		if _, ok := allowedIntervals[cleaned]; !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidInterval, raw)
		}
		return cleaned, nil
	}

	cleaned = strings.ToUpper(cleaned)
	if _, ok := allowedIntervals[cleaned]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidInterval, raw)
	}
	return cleaned, nil
}

// IntervalDuration returns the wall-clock span covered by one bar of the
// given resolution code. Used to derive a close time when the server omits
// the bar_close_time label. Months are approximated as 30 days.
func IntervalDuration(code string) time.Duration {
	if isDigits(code) {
		n, _ := strconv.Atoi(code)
		return time.Duration(n) * time.Minute
	}
	switch code {
	case "D":
		return 24 * time.Hour
	case "W":
		return 7 * 24 * time.Hour
	case "M":
		return 30 * 24 * time.Hour
	}
	return time.Minute
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
