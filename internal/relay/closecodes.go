package relay

import (
	"errors"

	"github.com/fasthttp/websocket"
)

// Close codes used and classified by the relay. Anything outside the two
// sets below is treated as neither normal nor aborting; the reader simply
// ends and the writer drains out.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseUnsupportedData = 1003
	CloseAbnormal        = 1006
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
	CloseServiceRestart  = 1012
)

// IsAbortCode reports whether a peer close code must raise the exchange
// token. Only genuinely abnormal terminations count.
func IsAbortCode(code int) bool {
	switch code {
	case CloseAbnormal, CloseInternalError, CloseServiceRestart:
		return true
	}
	return false
}

// IsNormalCode reports whether a peer close code is an orderly shutdown.
func IsNormalCode(code int) bool {
	return code == CloseNormal || code == CloseGoingAway
}

// CloseCodeFrom extracts the close code from a read error. gofiber conns
// return fasthttp/websocket errors, which is where CloseError lives. A
// connection that died without a close frame reads as abnormal closure.
func CloseCodeFrom(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return CloseAbnormal
}
