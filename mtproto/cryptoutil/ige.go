// Package cryptoutil implements the cryptographic primitives the MTProto
// frame codec needs: message-key derivation and AES-256-IGE. MTProto's
// IGE chaining mode isn't offered by crypto/cipher or by any library
// present in the reference corpus, so it is built directly on the
// standard library's block-cipher primitive the same way every MTProto
// client in the wider Go ecosystem does.
package cryptoutil

import (
	"crypto/aes"

	"github.com/ansel1/merry/v2"
)

// ErrBadInput is returned when a plaintext/ciphertext isn't a multiple
// of the AES block size, or a key/iv has the wrong length.
var ErrBadInput = merry.New("cryptoutil: bad input length")

const blockSize = aes.BlockSize // 16

// EncryptIGE encrypts plain (which must be a multiple of 16 bytes —
// callers pad before calling) under AES-256 in Infinite Garble
// Extension mode. iv must be 32 bytes: the first half seeds the
// previous-ciphertext chain, the second half seeds the previous-plaintext
// chain, per the MTProto description.
func EncryptIGE(plain, key, iv []byte) ([]byte, error) {
	block, ivPrevCipher, ivPrevPlain, err := setup(plain, key, iv)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plain))
	prevCipher := ivPrevCipher
	prevPlain := ivPrevPlain
	for off := 0; off < len(plain); off += blockSize {
		var x [blockSize]byte
		xorBytes(x[:], plain[off:off+blockSize], prevCipher)
		block.Encrypt(x[:], x[:])
		xorBytes(x[:], x[:], prevPlain)
		copy(out[off:off+blockSize], x[:])

		prevCipher = out[off : off+blockSize]
		prevPlain = plain[off : off+blockSize]
	}
	return out, nil
}

// DecryptIGE is the inverse of EncryptIGE.
func DecryptIGE(cipher, key, iv []byte) ([]byte, error) {
	block, ivPrevCipher, ivPrevPlain, err := setup(cipher, key, iv)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(cipher))
	prevCipher := ivPrevCipher
	prevPlain := ivPrevPlain
	for off := 0; off < len(cipher); off += blockSize {
		var x [blockSize]byte
		xorBytes(x[:], cipher[off:off+blockSize], prevPlain)
		block.Decrypt(x[:], x[:])
		xorBytes(x[:], x[:], prevCipher)
		copy(out[off:off+blockSize], x[:])

		prevCipher = cipher[off : off+blockSize]
		prevPlain = out[off : off+blockSize]
	}
	return out, nil
}

func setup(data, key, iv []byte) (cipherBlock, []byte, []byte, error) {
	if len(data)%blockSize != 0 {
		return nil, nil, nil, ErrBadInput.Here()
	}
	if len(iv) != 32 {
		return nil, nil, nil, ErrBadInput.Here()
	}
	if len(key) != 32 {
		return nil, nil, nil, ErrBadInput.Here()
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, merry.Wrap(err)
	}
	return block, iv[:16], iv[16:], nil
}

// cipherBlock is the minimal subset of cipher.Block EncryptIGE/DecryptIGE
// need, kept narrow so the function signature doesn't force importing
// crypto/cipher's full interface everywhere.
type cipherBlock interface {
	Encrypt(dst, src []byte)
	Decrypt(dst, src []byte)
}

func xorBytes(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}

// PadIGE right-pads plain with zero bytes up to the next 16-byte
// boundary, as MTProto requires before AES-IGE encryption, and returns
// the padded copy; a plain already on a boundary is returned itself,
// not copied. The padding length is not itself encoded; it's
// recovered on decrypt from the inner msg_len field instead.
func PadIGE(plain []byte) []byte {
	rem := len(plain) % blockSize
	if rem == 0 {
		return plain
	}
	padded := make([]byte, len(plain)+(blockSize-rem))
	copy(padded, plain)
	return padded
}
