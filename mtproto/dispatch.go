package mtproto

import (
	"bytes"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	"github.com/MUTLCC/TeleDoge/mtproto/wire"
)

// dispatchResult tells the caller what the coordinator's receive loop
// should do next. A reentrant mutex would let the dispatcher call
// send() directly; since sync.Mutex is not reentrant, dispatch returns
// an action instead for the caller to perform after releasing it.
type dispatchResult struct {
	// resend, when non-nil, is the request the coordinator must re-send
	// (under the new salt) after this dispatch returns — the
	// bad_server_salt retransmission. The enclosing receive loop keeps
	// looping afterward rather than stopping; the resent request's
	// reply arrives on a later iteration.
	resend Request
	// updates carries every object with an unhandled tag this
	// dispatch (and, for containers, its inner records) turned up, for
	// the receive loop to both hand to its caller's updates sink and
	// fan out to registered update handlers.
	updates []Update
}

// dispatch reads the 32-bit tag at the head of r and routes to the
// matching handler, which reads on from just past the tag; for a tag it
// doesn't handle, r is rewound so the Update's body starts with the tag.
// Every msgID dispatched, container members included, is queued for
// acknowledgement. msgID/seqNo are the envelope's (or,
// for a container member, the inner record's) own msg_id and sequence.
func (c *Coordinator) dispatch(r *wire.Reader, msgID int64, seqNo int32, req Request) dispatchResult {
	c.acks.add(msgID)

	start := r.Pos()
	tag := r.UInt()

	switch tag {
	case wire.CRCMsgContainer:
		return c.handleContainer(r, req)

	case wire.CRCGzipPacked:
		body, err := gunzip(r.StringBytes())
		if err != nil {
			c.log.Warn("gzip_packed: %v", err)
			return dispatchResult{}
		}
		return c.dispatch(wire.NewReader(body), msgID, seqNo, req)

	case wire.CRCBadServerSalt:
		return c.handleBadServerSalt(r, req)

	case wire.CRCBadMsgNotification:
		c.handleBadMsgNotification(r, msgID)
		return dispatchResult{}

	case wire.CRCPong:
		c.handlePong(r, req)
		return dispatchResult{}

	case wire.CRCMsgsAck:
		c.handleMsgsAck(r, req)
		return dispatchResult{}

	case wire.CRCRPCResult:
		return c.handleRPCResult(r, req)

	default:
		r.SeekTo(start)
		body := r.Bytes(r.Len())
		return dispatchResult{updates: []Update{{Tag: tag, Body: body}}}
	}
}

// handleContainer dispatches each inner record of a msg_container on
// its own (msg_id, sequence); if the inner dispatch didn't consume the
// whole record the reader is forced forward to the next one, so a stale
// or unmatched inner rpc_result from a previous connection can never
// desync framing for the records that follow it.
func (c *Coordinator) handleContainer(r *wire.Reader, req Request) dispatchResult {
	count := r.Int()
	var result dispatchResult
	for i := int32(0); i < count && r.Err() == nil; i++ {
		innerMsgID := r.Long()
		innerSeqNo := r.Int()
		innerLen := r.Int()
		begin := r.Pos()
		if r.Err() != nil {
			break
		}

		inner := c.dispatch(r, innerMsgID, innerSeqNo, req)
		if inner.resend != nil {
			result.resend = inner.resend
		}
		result.updates = append(result.updates, inner.updates...)
		r.SeekTo(begin + int(innerLen))
	}
	return result
}

// handleBadServerSalt adopts the new salt and arranges for req to be
// resent under it. A live request is required; without one the fault
// is unrecoverable from inside receive.
func (c *Coordinator) handleBadServerSalt(r *wire.Reader, req Request) dispatchResult {
	r.Long() // bad_msg_id
	r.Int()  // bad_msg_seqno
	r.Int()  // error_code
	newSalt := r.Long()
	if r.Err() != nil {
		return dispatchResult{}
	}

	c.session.Salt = newSalt
	if req == nil {
		c.log.Error(ErrNoLiveRequest.Here(), "bad_server_salt with no live request to resend")
		return dispatchResult{}
	}
	return dispatchResult{resend: req}
}

// handleBadMsgNotification applies a time-offset correction for codes
// 16/17; any other code is surfaced as a fault.
func (c *Coordinator) handleBadMsgNotification(r *wire.Reader, currentInboundMsgID int64) {
	r.Long() // bad_msg_id
	r.Int()  // bad_msg_seqno
	code := r.Int()
	if r.Err() != nil {
		return
	}

	if code == 16 || code == 17 {
		c.session.UpdateTimeOffset(currentInboundMsgID)
		if err := c.store.Save(c.session); err != nil {
			c.log.Error(err, "saving session after time-offset correction")
		}
		return
	}
	c.lastFault = &BadMessageError{Code: code}
}

// handlePong completes req if the pong's ping_id matches its msg_id.
func (c *Coordinator) handlePong(r *wire.Reader, req Request) {
	r.Long() // msg_id the pong itself travelled in, unused
	pingMsgID := r.Long()
	if r.Err() != nil {
		return
	}
	if req != nil && pingMsgID == req.MsgID() {
		req.SetConfirmReceived(true)
	}
}

// handleMsgsAck completes req only while the coordinator is in its
// logging-out state; an ack on its own is otherwise not treated as a
// response to any particular request. Whether that gate is a workaround
// or deliberate is an open question, kept as is; see DESIGN.md, Open
// Questions, item 3.
func (c *Coordinator) handleMsgsAck(r *wire.Reader, req Request) {
	ids := r.VectorLong()
	if r.Err() != nil {
		return
	}
	if !c.loggingOut.Load() || req == nil {
		return
	}
	for _, id := range ids {
		if id == req.MsgID() {
			req.SetConfirmReceived(true)
		}
	}
}

// handleRPCResult completes req when its msg_id matches and hands the
// inner object to req's OnResponse callback.
func (c *Coordinator) handleRPCResult(r *wire.Reader, req Request) dispatchResult {
	reqMsgID := r.Long()
	innerTag := r.UInt()
	if r.Err() != nil {
		return dispatchResult{}
	}

	matches := req != nil && reqMsgID == req.MsgID()
	if matches {
		req.SetConfirmReceived(true)
	}

	switch innerTag {
	case wire.CRCRPCError:
		code := r.Int()
		message := r.String()
		if r.Err() != nil {
			return dispatchResult{}
		}
		return c.classifyRPCError(req, matches, code, message)

	case wire.CRCGzipPacked:
		body, err := gunzip(r.StringBytes())
		if err != nil {
			c.log.Warn("rpc_result gzip_packed: %v", err)
			return dispatchResult{}
		}
		if matches {
			if err := req.OnResponse(wire.NewReader(body)); err != nil {
				c.log.Error(err, "on_response (gzip) failed")
			}
		}
		return dispatchResult{}

	default:
		r.Seek(-4)
		if matches {
			if err := req.OnResponse(r); err != nil {
				c.log.Error(err, "on_response failed")
			}
		} else {
			c.log.Debug("result for unknown request %d (likely previous session)", reqMsgID)
		}
		return dispatchResult{}
	}
}

// classifyRPCError sorts an rpc_error message into a FLOOD_WAIT_,
// _MIGRATE_, must-resend, or generic fault.
func (c *Coordinator) classifyRPCError(req Request, matches bool, code int32, message string) dispatchResult {
	if strings.HasPrefix(message, "FLOOD_WAIT_") {
		seconds, _ := strconv.Atoi(strings.TrimPrefix(message, "FLOOD_WAIT_"))
		c.updatesThreadSleep.Store(int64(seconds))
		c.lastFault = &FloodWaitError{Seconds: seconds}
		return dispatchResult{}
	}
	if strings.Contains(message, "_MIGRATE_") {
		c.lastFault = &InvalidDataCenterError{Inner: &RPCError{Code: code, Message: message}}
		return dispatchResult{}
	}
	if isMustResendError(message) {
		if matches {
			req.SetConfirmReceived(false)
		}
		if req == nil {
			c.lastFault = ErrNoLiveRequest.Here()
			return dispatchResult{}
		}
		c.lastFault = &RPCError{Code: code, Message: message}
		return dispatchResult{}
	}
	c.lastFault = &RPCError{Code: code, Message: message}
	return dispatchResult{}
}

// isMustResendError reports whether message belongs to the small set
// of transient errors the server expects the client to retry verbatim
// rather than surface as a hard failure. Telegram doesn't publish a
// closed list; these are the well-known transient codes every MTProto
// client in the ecosystem retries on (the gogram family in
// other_examples among them).
func isMustResendError(message string) bool {
	switch message {
	case "RPC_CALL_FAIL", "WORKER_BUSY_TOO_LONG_RETRY":
		return true
	default:
		return false
	}
}

func gunzip(compressed []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
