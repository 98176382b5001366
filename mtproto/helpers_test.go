package mtproto_test

import (
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MUTLCC/TeleDoge/mtproto/cryptoutil"
	"github.com/MUTLCC/TeleDoge/mtproto/session"
	"github.com/MUTLCC/TeleDoge/mtproto/wire"
)

// newTestSession builds a Session with a fixed auth key, the way the
// handshake would hand one to a real Coordinator, but with a
// deterministic key so tests can reconstruct its derived parameters.
func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	authKey := make([]byte, 256)
	for i := range authKey {
		authKey[i] = byte(i)
	}
	sess := session.New(authKey, 0x0102030405060708)
	sess.Salt = 111
	return sess
}

// buildServerEnvelope is the server-side mirror of the coordinator's own
// encryptEnvelope (mtproto/codec.go): same plaintext layout, but derived
// with the server->client key direction, so tests can script an inbound
// frame a real data center would have produced for sess's current salt.
func buildServerEnvelope(t *testing.T, sess *session.Session, msgID int64, seq int32, body []byte) []byte {
	t.Helper()

	plain := wire.NewWriter(32 + len(body))
	plain.Long(sess.Salt)
	plain.Long(sess.ID)
	plain.Long(msgID)
	plain.Int(seq)
	plain.Int(int32(len(body)))
	plain.Raw(body)
	plainBytes := plain.Bytes()

	msgKey, err := cryptoutil.DeriveMsgKey(sess.AuthKey, plainBytes, false)
	require.NoError(t, err)
	key, iv, err := cryptoutil.DeriveAESParams(sess.AuthKey, msgKey, false)
	require.NoError(t, err)
	cipherText, err := cryptoutil.EncryptIGE(cryptoutil.PadIGE(plainBytes), key, iv)
	require.NoError(t, err)

	out := wire.NewWriter(24 + len(cipherText))
	out.ULong(sess.KeyID())
	out.Raw(msgKey)
	out.Raw(cipherText)
	return out.Bytes()
}

// decryptClientEnvelope is the test-side mirror of decryptEnvelope, used
// to inspect a frame the Coordinator handed to the fake transport: the
// client->server direction, the one the coordinator itself encrypts with.
func decryptClientEnvelope(t *testing.T, sess *session.Session, envelope []byte) (body []byte, msgID int64, seq int32) {
	t.Helper()

	r := wire.NewReader(envelope)
	r.ULong() // auth_key_id
	msgKey := r.Bytes(16)
	cipherText := r.Bytes(r.Len())
	require.NoError(t, r.Err())

	key, iv, err := cryptoutil.DeriveAESParams(sess.AuthKey, msgKey, true)
	require.NoError(t, err)
	plain, err := cryptoutil.DecryptIGE(cipherText, key, iv)
	require.NoError(t, err)

	pr := wire.NewReader(plain)
	pr.Long() // salt
	pr.Long() // session id
	id := pr.Long()
	sq := pr.Int()
	length := pr.Int()
	b := pr.Bytes(int(length))
	require.NoError(t, pr.Err())
	return b, id, sq
}

// minimalResultBody is a 4-byte placeholder "result:Object" — every real
// TL object carries at least a constructor tag, so an empty inner body
// (as a degenerate rpc_result would never actually have) isn't a valid
// stand-in for one in these tests.
func minimalResultBody() []byte {
	return []byte{0xb5, 0x75, 0x72, 0x99} // wire.CRCBoolTrue, little-endian
}

// buildRPCResult serializes rpc_result#f35c6d01 req_msg_id:long result:Object.
func buildRPCResult(reqMsgID int64, inner []byte) []byte {
	w := wire.NewWriter(12 + len(inner))
	w.UInt(wire.CRCRPCResult)
	w.Long(reqMsgID)
	w.Raw(inner)
	return w.Bytes()
}

// buildRPCError serializes rpc_error#2144ca19 error_code:int error_message:string.
func buildRPCError(code int32, message string) []byte {
	w := wire.NewWriter(8 + len(message))
	w.UInt(wire.CRCRPCError)
	w.Int(code)
	w.String(message)
	return w.Bytes()
}

// buildGzipPacked serializes gzip_packed#3072cfa1 packed_data:bytes.
func buildGzipPacked(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf gzipBuf
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(plain)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	w := wire.NewWriter(8 + len(buf.data))
	w.UInt(wire.CRCGzipPacked)
	w.StringBytes(buf.data)
	return w.Bytes()
}

// buildBadServerSalt serializes bad_server_salt#edab447b.
func buildBadServerSalt(badMsgID int64, badSeq, errorCode int32, newSalt int64) []byte {
	w := wire.NewWriter(32)
	w.UInt(wire.CRCBadServerSalt)
	w.Long(badMsgID)
	w.Int(badSeq)
	w.Int(errorCode)
	w.Long(newSalt)
	return w.Bytes()
}

// buildBadMsgNotification serializes bad_msg_notification#a7eff811.
func buildBadMsgNotification(badMsgID int64, badSeq, errorCode int32) []byte {
	w := wire.NewWriter(20)
	w.UInt(wire.CRCBadMsgNotification)
	w.Long(badMsgID)
	w.Int(badSeq)
	w.Int(errorCode)
	return w.Bytes()
}

// buildPong serializes pong#347773c5 msg_id:long ping_id:long.
func buildPong(msgID, pingID int64) []byte {
	w := wire.NewWriter(20)
	w.UInt(wire.CRCPong)
	w.Long(msgID)
	w.Long(pingID)
	return w.Bytes()
}

// buildMsgsAck serializes msgs_ack#62d6b459 msg_ids:Vector long.
func buildMsgsAck(ids []int64) []byte {
	w := wire.NewWriter(12 + 8*len(ids))
	w.UInt(wire.CRCMsgsAck)
	w.VectorLong(ids)
	return w.Bytes()
}

// containerRecord is one inner (msg_id, seqno, body) triple of a
// msg_container.
type containerRecord struct {
	MsgID int64
	Seq   int32
	Body  []byte
}

// buildMsgContainer serializes msg_container#73f1f8dc wrapping records.
func buildMsgContainer(records []containerRecord) []byte {
	w := wire.NewWriter(8)
	w.UInt(wire.CRCMsgContainer)
	w.Int(int32(len(records)))
	for _, rec := range records {
		w.Long(rec.MsgID)
		w.Int(rec.Seq)
		w.Int(int32(len(rec.Body)))
		w.Raw(rec.Body)
	}
	return w.Bytes()
}

// gzipBuf is a tiny io.Writer sink, avoiding a bytes.Buffer import just
// for this one accumulation.
type gzipBuf struct{ data []byte }

func (b *gzipBuf) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
