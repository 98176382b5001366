package mtproto

import (
	"fmt"

	"github.com/ansel1/merry/v2"
)

// Error taxonomy. Each is a merry.New sentinel so callers classify
// with merry.Is; call sites stamp their own location with .Here().
var (
	// ErrMalformedFrame: envelope too short or inner length impossible.
	// Fatal to the current receive; caller should reconnect.
	ErrMalformedFrame = merry.New("mtproto: malformed frame")

	// ErrSecurityFault: an inbound envelope's auth_key_id, or its
	// msg_key recomputed over the decrypted plaintext, didn't match the
	// session's (see DESIGN.md Open Question 1).
	ErrSecurityFault = merry.New("mtproto: auth_key_id or msg_key mismatch")

	// ErrNoLiveRequest: a fault handler needed a live foreground request
	// (to resend or to confirm) but none was provided — e.g. bad_server_salt
	// observed from the background loop's updates-only receive.
	ErrNoLiveRequest = merry.New("mtproto: fault handler requires a live request")
)

// BadMessageError wraps any bad_msg_notification error code other than
// 16/17 (those two are locally recovered as a time-offset correction,
// not surfaced as an error at all).
type BadMessageError struct {
	Code int32
}

func (e *BadMessageError) Error() string {
	return fmt.Sprintf("mtproto: bad message notification, code %d", e.Code)
}

// RPCError is a generic rpc_error surfaced verbatim from the server.
type RPCError struct {
	Code    int32
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("mtproto: rpc error %d: %s", e.Code, e.Message)
}

// FloodWaitError reports a FLOOD_WAIT_ rpc_error with its wait, in seconds.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("mtproto: flood wait, retry after %ds", e.Seconds)
}

// InvalidDataCenterError reports a _MIGRATE_ rpc_error; the higher
// layer is responsible for performing the migration.
type InvalidDataCenterError struct {
	Inner *RPCError
}

func (e *InvalidDataCenterError) Error() string {
	return fmt.Sprintf("mtproto: data center migration required: %s", e.Inner.Error())
}

func (e *InvalidDataCenterError) Unwrap() error { return e.Inner }
