// Package protocol implements the TradingView WebSocket wire protocol:
// the ~m~ length-prefixed envelope, interval resolution codes, outbound
// method frames and the inbound frame decoder.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadFrame is returned when the length-prefixed envelope is malformed.
// Framing integrity is lost at that point, so callers close the connection.
var ErrBadFrame = errors.New("malformed protocol frame")

const envelopeMark = "~m~"

// EncodeFrame wraps a payload in the TradingView envelope. The declared
// length is the UTF-8 byte length of the payload, not its rune count.
func EncodeFrame(payload string) string {
	return envelopeMark + strconv.Itoa(len(payload)) + envelopeMark + payload
}

// SplitFrames extracts complete payloads from buf. Multiple envelopes may be
// coalesced in a single transport frame; a trailing partial envelope is
// returned as remainder and must be prepended to the next chunk. The function
// is pure: concatenating chunks in any split yields the same payload
// sequence as long as the remainder is carried over.
func SplitFrames(buf string) (frames []string, remainder string, err error) {
	for buf != "" {
		if !strings.HasPrefix(buf, envelopeMark) {
			if len(buf) < len(envelopeMark) && strings.HasPrefix(envelopeMark, buf) {
				// Could still be the start of a header.
				return frames, buf, nil
			}
			return nil, "", fmt.Errorf("%w: missing ~m~ header", ErrBadFrame)
		}

		rest := buf[len(envelopeMark):]
		end := strings.Index(rest, envelopeMark)
		if end < 0 {
			// Incomplete header; wait for more data unless the length field
			// is already implausibly long or non-numeric.
			if !partialHeader(rest) {
				return nil, "", fmt.Errorf("%w: unterminated length prefix", ErrBadFrame)
			}
			return frames, buf, nil
		}

		declared, convErr := strconv.Atoi(rest[:end])
		if convErr != nil || declared < 0 {
			return nil, "", fmt.Errorf("%w: bad length %q", ErrBadFrame, rest[:end])
		}

		body := rest[end+len(envelopeMark):]
		if len(body) < declared {
			return frames, buf, nil
		}

		frames = append(frames, body[:declared])
		buf = body[declared:]
	}
	return frames, "", nil
}

// IsHeartbeat reports whether a payload is a server keepalive (~h~<n>).
// Heartbeats must be echoed back verbatim inside their original envelope.
func IsHeartbeat(payload string) bool {
	return strings.HasPrefix(payload, "~h~")
}

// partialHeader reports whether s could still grow into a valid
// "<digits>~m~" header once more bytes arrive.
func partialHeader(s string) bool {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 10 {
		return false
	}
	// Whatever follows the digits must be a prefix of the closing mark.
	return strings.HasPrefix(envelopeMark, s[i:])
}
