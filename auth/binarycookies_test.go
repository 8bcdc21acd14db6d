package auth

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

// buildCookieRecord assembles one record in Safari's on-disk layout.
func buildCookieRecord(domain, name, value string, expiry float64) []byte {
	header := 56 // fixed fields plus string offsets
	rec := make([]byte, header+len(domain)+1+len(name)+1+len(value)+1)

	domainOff := header
	nameOff := domainOff + len(domain) + 1
	valueOff := nameOff + len(name) + 1

	binary.LittleEndian.PutUint32(rec[0:4], uint32(len(rec)))
	binary.LittleEndian.PutUint32(rec[16:20], uint32(domainOff))
	binary.LittleEndian.PutUint32(rec[20:24], uint32(nameOff))
	binary.LittleEndian.PutUint32(rec[28:32], uint32(valueOff))
	binary.LittleEndian.PutUint64(rec[40:48], math.Float64bits(expiry))

	copy(rec[domainOff:], domain)
	copy(rec[nameOff:], name)
	copy(rec[valueOff:], value)
	return rec
}

func buildPage(records ...[]byte) []byte {
	headerLen := 8 + 4*len(records)
	page := []byte{0x00, 0x00, 0x01, 0x00}
	page = append(page, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(page[4:8], uint32(len(records)))

	offset := headerLen
	for _, rec := range records {
		var off [4]byte
		binary.LittleEndian.PutUint32(off[:], uint32(offset))
		page = append(page, off[:]...)
		offset += len(rec)
	}
	for _, rec := range records {
		page = append(page, rec...)
	}
	return page
}

func buildStore(pages ...[]byte) []byte {
	data := []byte("cook")
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(pages)))
	data = append(data, count[:]...)
	for _, p := range pages {
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(p)))
		data = append(data, size[:]...)
	}
	for _, p := range pages {
		data = append(data, p...)
	}
	return data
}

func TestCookiesFromBinary(t *testing.T) {
	// Expiry is seconds since the Mac epoch (2001-01-01).
	expiry := float64(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC).Unix() - macEpochOffset)

	store := buildStore(buildPage(
		buildCookieRecord(".tradingview.com", "sessionid", "sid-value", expiry),
		buildCookieRecord(".tradingview.com", "auth_token", "tok-value", 0),
		buildCookieRecord(".example.com", "sessionid", "other-site", 0),
	))

	c := cookiesFromBinary(store)
	if c.SessionID != "sid-value" {
		t.Errorf("SessionID = %q, want sid-value", c.SessionID)
	}
	if c.AuthToken != "tok-value" {
		t.Errorf("AuthToken = %q, want tok-value", c.AuthToken)
	}
	if c.Expiry == nil {
		t.Fatal("Expiry = nil")
	}
	if want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC); !c.Expiry.Equal(want) {
		t.Errorf("Expiry = %v, want %v", c.Expiry, want)
	}
	if !c.IsAuthenticated() {
		t.Error("expected authenticated cookies")
	}
}

func TestCookiesFromBinaryIgnoresOtherDomains(t *testing.T) {
	store := buildStore(buildPage(
		buildCookieRecord(".example.com", "sessionid", "other", 0),
	))
	if c := cookiesFromBinary(store); c.SessionID != "" || c.AuthToken != "" {
		t.Errorf("got %+v, want zero value", c)
	}
}

func TestCookiesFromBinaryMalformed(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("xx"),
		[]byte("cook"),
		[]byte("cook\xff\xff\xff\xff"),
		buildStore([]byte{1, 2, 3}),
	}
	for _, data := range inputs {
		// Must not panic; malformed stores degrade to no cookies.
		if c := cookiesFromBinary(data); c.SessionID != "" || c.AuthToken != "" {
			t.Errorf("malformed input produced cookies: %+v", c)
		}
	}
}
