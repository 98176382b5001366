package cryptoutil

import (
	"crypto/sha256"

	"github.com/ansel1/merry/v2"
)

// ErrShortAuthKey is returned when authKey is shorter than the 256 bytes
// MTProto 2.0 key derivation requires.
var ErrShortAuthKey = merry.New("cryptoutil: auth_key shorter than 256 bytes")

// DeriveMsgKey computes the 16-byte message key for plaintext under
// authKey, following MTProto 2.0's scheme (core.telegram.org/mtproto/description#defining-aes-key-and-iv).
// clientToServer selects the x=0 (client→server) or x=8 (server→client)
// offset into auth_key MTProto 2.0 defines.
func DeriveMsgKey(authKey, plaintext []byte, clientToServer bool) ([]byte, error) {
	if len(authKey) < 256 {
		return nil, merry.Wrap(ErrShortAuthKey)
	}
	x := 0
	if !clientToServer {
		x = 8
	}
	h := sha256.New()
	h.Write(authKey[88+x : 88+x+32])
	h.Write(plaintext)
	large := h.Sum(nil)
	return large[8:24], nil
}

// DeriveAESParams derives the AES-256 key and 32-byte IGE iv from
// authKey and a 16-byte msgKey, per the same MTProto 2.0 scheme.
func DeriveAESParams(authKey, msgKey []byte, clientToServer bool) (key, iv []byte, err error) {
	if len(authKey) < 256 {
		return nil, nil, merry.Wrap(ErrShortAuthKey)
	}
	if len(msgKey) != 16 {
		return nil, nil, ErrBadInput.Here()
	}
	x := 0
	if !clientToServer {
		x = 8
	}

	ha := sha256.New()
	ha.Write(msgKey)
	ha.Write(authKey[x : x+36])
	shaA := ha.Sum(nil)

	hb := sha256.New()
	hb.Write(authKey[40+x : 40+x+36])
	hb.Write(msgKey)
	shaB := hb.Sum(nil)

	key = make([]byte, 32)
	copy(key[0:8], shaA[0:8])
	copy(key[8:24], shaB[8:24])
	copy(key[24:32], shaA[24:32])

	iv = make([]byte, 32)
	copy(iv[0:8], shaB[0:8])
	copy(iv[8:24], shaA[8:24])
	copy(iv[24:32], shaB[24:32])

	return key, iv, nil
}
