// Package auth discovers TradingView session cookies from the environment
// or from local browser cookie stores. Discovery never fails; missing or
// unreadable sources degrade to unauthenticated access.
package auth

import (
	"os"
	"runtime"
	"time"
)

// Cookies holds the TradingView session credentials.
type Cookies struct {
	SessionID string
	AuthToken string
	Expiry    *time.Time
}

// IsAuthenticated reports whether both cookie values are present.
func (c Cookies) IsAuthenticated() bool {
	return c.SessionID != "" && c.AuthToken != ""
}

// Discover resolves cookies in priority order: the TV_SESSIONID and
// TV_AUTH_TOKEN environment variables win, then the Safari cookie store on
// macOS. When nothing is found the zero value is returned and callers fall
// back to anonymous access.
func Discover() Cookies {
	sid := os.Getenv("TV_SESSIONID")
	token := os.Getenv("TV_AUTH_TOKEN")
	if sid != "" || token != "" {
		return Cookies{SessionID: sid, AuthToken: token}
	}

	if runtime.GOOS == "darwin" {
		if c := safariCookies(); c.SessionID != "" || c.AuthToken != "" {
			return c
		}
	}

	return Cookies{}
}
