package auth

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Safari stores cookie expiries as seconds since 2001-01-01 UTC.
const macEpochOffset = 978307200

func safariCookiePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home,
		"Library/Containers/com.apple.Safari/Data/Library/Cookies/Cookies.binarycookies")
}

// safariCookies reads the TradingView session cookies from Safari's binary
// cookie store. Any read or parse failure returns the zero value.
func safariCookies() Cookies {
	path := safariCookiePath()
	if path == "" {
		return Cookies{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Cookies{}
	}
	return cookiesFromBinary(data)
}

type binaryCookie struct {
	domain string
	name   string
	value  string
	expiry time.Time
}

// cookiesFromBinary extracts the sessionid and auth_token cookies for
// .tradingview.com from a Cookies.binarycookies blob.
func cookiesFromBinary(data []byte) Cookies {
	var out Cookies
	for _, c := range parseBinaryCookies(data) {
		if !strings.Contains(c.domain, ".tradingview.com") {
			continue
		}
		switch c.name {
		case "sessionid":
			out.SessionID = c.value
			if !c.expiry.IsZero() {
				exp := c.expiry
				out.Expiry = &exp
			}
		case "auth_token":
			out.AuthToken = c.value
		}
	}
	return out
}

// parseBinaryCookies walks the binarycookies layout: a "cook" magic, a
// big-endian page table, then pages holding little-endian cookie records.
// Malformed input yields whatever parsed cleanly before the damage.
func parseBinaryCookies(data []byte) []binaryCookie {
	if len(data) < 8 || string(data[:4]) != "cook" {
		return nil
	}
	pageCount := int(binary.BigEndian.Uint32(data[4:8]))
	if pageCount < 0 || 8+4*pageCount > len(data) {
		return nil
	}

	var cookies []binaryCookie
	offset := 8 + 4*pageCount
	for i := 0; i < pageCount; i++ {
		size := int(binary.BigEndian.Uint32(data[8+4*i : 12+4*i]))
		if size < 0 || offset+size > len(data) {
			return cookies
		}
		cookies = append(cookies, parsePage(data[offset:offset+size])...)
		offset += size
	}
	return cookies
}

func parsePage(page []byte) []binaryCookie {
	if len(page) < 8 {
		return nil
	}
	count := int(binary.LittleEndian.Uint32(page[4:8]))
	if count < 0 || 8+4*count > len(page) {
		return nil
	}

	var cookies []binaryCookie
	for i := 0; i < count; i++ {
		start := int(binary.LittleEndian.Uint32(page[8+4*i : 12+4*i]))
		if start < 0 || start >= len(page) {
			continue
		}
		if c, ok := parseCookieRecord(page[start:]); ok {
			cookies = append(cookies, c)
		}
	}
	return cookies
}

func parseCookieRecord(rec []byte) (binaryCookie, bool) {
	if len(rec) < 48 {
		return binaryCookie{}, false
	}
	size := int(binary.LittleEndian.Uint32(rec[0:4]))
	if size < 48 || size > len(rec) {
		return binaryCookie{}, false
	}
	rec = rec[:size]

	domainOff := int(binary.LittleEndian.Uint32(rec[16:20]))
	nameOff := int(binary.LittleEndian.Uint32(rec[20:24]))
	valueOff := int(binary.LittleEndian.Uint32(rec[28:32]))

	c := binaryCookie{
		domain: cString(rec, domainOff),
		name:   cString(rec, nameOff),
		value:  cString(rec, valueOff),
	}
	expiry := math.Float64frombits(binary.LittleEndian.Uint64(rec[40:48]))
	if expiry > 0 {
		c.expiry = time.Unix(int64(expiry)+macEpochOffset, 0).UTC()
	}
	return c, true
}

func cString(rec []byte, off int) string {
	if off <= 0 || off >= len(rec) {
		return ""
	}
	end := off
	for end < len(rec) && rec[end] != 0 {
		end++
	}
	return string(rec[off:end])
}
