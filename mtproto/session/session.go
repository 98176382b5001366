// Package session models the MTProto session data the sender borrows
// for every send/receive cycle: the authorization key, server salt,
// session id, and the monotonic counters (sequence, msg_id, time
// offset) that live outside any single request.
package session

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"
	"time"
)

// Session is the mutable per-connection state the sender reads and
// writes under its own send/receive mutex — the sender, not Session,
// is responsible for serializing access; Session's own mutex here only
// protects NextMsgID's internal monotonic counter from being called
// off the sender's lock by mistake, e.g. from tests.
type Session struct {
	mu sync.Mutex

	AuthKey []byte
	// Salt is the 64-bit server-provided salt, rotated on bad_server_salt.
	Salt int64
	// ID is the session identifier, stable for the life of a session.
	ID int64
	// Sequence counts content-bearing messages sent; see NextSequence.
	Sequence int32
	// TimeOffset is added (in seconds) when minting msg_ids.
	TimeOffset int64

	lastMsgID int64
}

// New builds a Session around an already-negotiated auth key and a
// freshly generated session id. Acquiring the auth key (the DH
// handshake) is out of this package's scope.
func New(authKey []byte, sessionID int64) *Session {
	return &Session{AuthKey: authKey, ID: sessionID}
}

// KeyID returns the 64-bit auth_key_id: the low 64 bits of
// SHA1(auth_key), as MTProto's envelope format requires. SHA1 here
// matches the wire format's own historical choice, not a cryptographic
// strength decision; no third-party package offers this particular
// derivation, so it's computed directly against stdlib crypto/sha1.
func (s *Session) KeyID() uint64 {
	sum := sha1.Sum(s.AuthKey)
	return binary.LittleEndian.Uint64(sum[12:20])
}

// NextMsgID mints a strictly increasing msg_id, approximately
// server_time × 2³² plus TimeOffset. If two calls land in the same
// sub-tick the result is still bumped forward so msg_ids across a
// session never repeat or go backwards.
func (s *Session) NextMsgID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seconds := time.Now().Unix() + s.TimeOffset
	id := seconds << 32
	// low bits carry sub-second resolution and a parity guarantee
	// (MTProto msg_ids sent by a client must be divisible by 4).
	id |= int64(time.Now().Nanosecond()&0x3fffffff) << 2

	if id <= s.lastMsgID {
		id = s.lastMsgID + 4
	}
	s.lastMsgID = id
	return id
}

// UpdateTimeOffset recomputes TimeOffset from a server-confirmed
// correctMsgID, used after a bad_msg_notification with code 16 or 17.
// correctMsgID encodes the server's view of "now" in its top 32 bits.
func (s *Session) UpdateTimeOffset(correctMsgID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	serverSeconds := correctMsgID >> 32
	s.TimeOffset = serverSeconds - time.Now().Unix()
	s.lastMsgID = 0
}

// NextSequence returns the next outbound sequence number under MTProto's
// parity rule: content-related messages get 2n+1 and advance n;
// everything else gets 2n and leaves n untouched. Must be called under
// the sender's send lock exactly once per outbound message.
func (s *Session) NextSequence(contentRelated bool) int32 {
	if contentRelated {
		n := s.Sequence
		s.Sequence++
		return 2*n + 1
	}
	return 2 * s.Sequence
}
