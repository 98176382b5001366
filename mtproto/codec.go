package mtproto

import (
	"bytes"

	"github.com/ansel1/merry/v2"

	"github.com/MUTLCC/TeleDoge/mtproto/cryptoutil"
	"github.com/MUTLCC/TeleDoge/mtproto/session"
	"github.com/MUTLCC/TeleDoge/mtproto/wire"
)

// decodedMessage is the frame codec's decrypt output.
type decodedMessage struct {
	Body          []byte
	RemoteMsgID   int64
	RemoteSeqNo   int32
}

// encryptEnvelope builds the full wire envelope for one outbound
// message: auth_key_id(8) || msg_key(16) || AES-IGE(plaintext), where
// plaintext is salt||session_id||msg_id||sequence||len||body.
func encryptEnvelope(sess *session.Session, msgID int64, sequence int32, body []byte) ([]byte, error) {
	plain := wire.NewWriter(32 + len(body))
	plain.Long(sess.Salt)
	plain.Long(sess.ID)
	plain.Long(msgID)
	plain.Int(sequence)
	plain.Int(int32(len(body)))
	plain.Raw(body)
	plainBytes := plain.Bytes()

	msgKey, err := cryptoutil.DeriveMsgKey(sess.AuthKey, plainBytes, true)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	key, iv, err := cryptoutil.DeriveAESParams(sess.AuthKey, msgKey, true)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	cipherText, err := cryptoutil.EncryptIGE(cryptoutil.PadIGE(plainBytes), key, iv)
	if err != nil {
		return nil, merry.Wrap(err)
	}

	out := wire.NewWriter(24 + len(cipherText))
	out.ULong(sess.KeyID())
	out.Raw(msgKey)
	out.Raw(cipherText)
	return out.Bytes(), nil
}

// decryptEnvelope is the inverse of encryptEnvelope. It validates both
// the auth_key_id and the recomputed msg_key against the session (see
// DESIGN.md for why this module validates rather than trusting the
// server's framing).
func decryptEnvelope(sess *session.Session, envelope []byte) (*decodedMessage, error) {
	if len(envelope) < 24 {
		return nil, ErrMalformedFrame.Here()
	}

	r := wire.NewReader(envelope)
	keyID := r.ULong()
	msgKey := r.Bytes(16)
	cipherText := r.Bytes(r.Len())
	if r.Err() != nil {
		return nil, merry.Wrap(ErrMalformedFrame)
	}

	if keyID != sess.KeyID() {
		return nil, merry.Wrap(ErrSecurityFault)
	}

	key, iv, err := cryptoutil.DeriveAESParams(sess.AuthKey, msgKey, false)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	plainPadded, err := cryptoutil.DecryptIGE(cipherText, key, iv)
	if err != nil {
		return nil, merry.Wrap(err)
	}

	pr := wire.NewReader(plainPadded)
	pr.Long() // remote salt, not validated (server is the salt authority)
	pr.Long() // remote session id
	remoteMsgID := pr.Long()
	remoteSeq := pr.Int()
	msgLen := pr.Int()
	if pr.Err() != nil {
		return nil, ErrMalformedFrame.Here()
	}
	if msgLen < 0 || pr.Len() < int(msgLen) {
		return nil, ErrMalformedFrame.Here()
	}
	body := pr.Bytes(int(msgLen))

	// Recompute the message key over the plaintext actually recovered
	// (trimmed to the real prefix + body, matching what the sender
	// would have hashed before padding) and compare.
	trimmed := plainPadded[:32+int(msgLen)]
	expectedKey, err := cryptoutil.DeriveMsgKey(sess.AuthKey, trimmed, false)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	if !bytes.Equal(expectedKey, msgKey) {
		return nil, merry.Wrap(ErrSecurityFault)
	}

	return &decodedMessage{Body: body, RemoteMsgID: remoteMsgID, RemoteSeqNo: remoteSeq}, nil
}
