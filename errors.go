package tvstream

import (
	"github.com/tvstream/tvstream-go/historic"
	"github.com/tvstream/tvstream-go/protocol"
	"github.com/tvstream/tvstream-go/stream"
)

// Common errors
var (
	// ErrInvalidInterval is returned when an interval string cannot be
	// normalized to a chart resolution.
	ErrInvalidInterval = protocol.ErrInvalidInterval

	// ErrBadFrame is returned when an inbound byte stream violates the
	// message envelope framing.
	ErrBadFrame = protocol.ErrBadFrame

	// ErrClosed is returned when attempting an operation on a closed streamer.
	ErrClosed = stream.ErrClosed

	// ErrTooManyRequests is returned when the concurrent history session cap
	// is reached.
	ErrTooManyRequests = historic.ErrTooManyRequests
)
