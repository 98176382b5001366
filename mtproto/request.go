package mtproto

import (
	"sync/atomic"

	"github.com/MUTLCC/TeleDoge/mtproto/wire"
)

// Request is one foreground RPC call in flight.
// The coordinator assigns MsgID at send time and flips ConfirmReceived
// when a matching rpc_result, pong, or (while logging out) msgs_ack
// arrives; Receive loops until that latch is set.
type Request interface {
	// Body returns the serialized request payload, not including the
	// plaintext envelope prefix (that's codec's job).
	Body() []byte
	// ContentRelated reports whether this request consumes a sequence
	// slot — false only for msgs_ack.
	ContentRelated() bool

	SetMsgID(id int64)
	MsgID() int64

	ConfirmReceived() bool
	SetConfirmReceived(v bool)

	// OnResponse parses the server's result out of r into this
	// request's own output slot.
	OnResponse(r *wire.Reader) error
}

// baseRequest implements the msg_id/confirm_received bookkeeping every
// concrete Request needs, so call sites only have to supply a body and
// an OnResponse callback.
type baseRequest struct {
	body           []byte
	contentRelated bool
	msgID          int64
	confirmed      atomic.Bool
	onResponse     func(*wire.Reader) error
}

// NewRequest builds a Request around a pre-serialized body. Most
// callers outside this module will get a serialized body from a TL
// catalog and a result parser for the matching response type.
func NewRequest(body []byte, contentRelated bool, onResponse func(*wire.Reader) error) Request {
	return &baseRequest{body: body, contentRelated: contentRelated, onResponse: onResponse}
}

func (r *baseRequest) Body() []byte           { return r.body }
func (r *baseRequest) ContentRelated() bool   { return r.contentRelated }
func (r *baseRequest) SetMsgID(id int64)      { r.msgID = id }
func (r *baseRequest) MsgID() int64           { return r.msgID }
func (r *baseRequest) ConfirmReceived() bool  { return r.confirmed.Load() }
func (r *baseRequest) SetConfirmReceived(v bool) { r.confirmed.Store(v) }

func (r *baseRequest) OnResponse(reader *wire.Reader) error {
	if r.onResponse == nil {
		return nil
	}
	return r.onResponse(reader)
}

// NewPingRequest builds the content-related ping request the keep-alive
// loop and Coordinator.SendPing use. pingID is a caller-chosen random
// id; the pong handler matches it back
// by msg_id, not by pingID, so pingID only needs to be unique enough for
// logging.
func NewPingRequest(pingID int64) Request {
	w := wire.NewWriter(12)
	w.UInt(tagPing)
	w.Long(pingID)
	return NewRequest(w.Bytes(), true, nil)
}

const tagPing uint32 = 0x7abe77ec
