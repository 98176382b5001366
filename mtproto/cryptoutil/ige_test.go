package cryptoutil_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MUTLCC/TeleDoge/mtproto/cryptoutil"
)

func randBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestIGERoundTrip(t *testing.T) {
	key := randBytes(t, 32)
	iv := randBytes(t, 32)
	plain := cryptoutil.PadIGE([]byte("the quick brown fox jumps over the lazy dog"))

	cipherText, err := cryptoutil.EncryptIGE(plain, key, iv)
	require.NoError(t, err)
	require.Len(t, cipherText, len(plain))

	decoded, err := cryptoutil.DecryptIGE(cipherText, key, iv)
	require.NoError(t, err)
	require.Equal(t, plain, decoded)
}

func TestIGERejectsBadLengths(t *testing.T) {
	_, err := cryptoutil.EncryptIGE([]byte("short"), randBytes(t, 32), randBytes(t, 32))
	require.Error(t, err)

	_, err = cryptoutil.EncryptIGE(cryptoutil.PadIGE([]byte("abc")), randBytes(t, 32), randBytes(t, 8))
	require.Error(t, err)
}

func TestDeriveMsgKeyDirectionChangesOutput(t *testing.T) {
	authKey := randBytes(t, 256)
	plain := randBytes(t, 64)

	c2s, err := cryptoutil.DeriveMsgKey(authKey, plain, true)
	require.NoError(t, err)
	s2c, err := cryptoutil.DeriveMsgKey(authKey, plain, false)
	require.NoError(t, err)

	require.Len(t, c2s, 16)
	require.NotEqual(t, c2s, s2c)
}

func TestDeriveAESParamsDeterministic(t *testing.T) {
	authKey := randBytes(t, 256)
	msgKey := randBytes(t, 16)

	k1, iv1, err := cryptoutil.DeriveAESParams(authKey, msgKey, true)
	require.NoError(t, err)
	k2, iv2, err := cryptoutil.DeriveAESParams(authKey, msgKey, true)
	require.NoError(t, err)

	require.Equal(t, k1, k2)
	require.Equal(t, iv1, iv2)
	require.Len(t, k1, 32)
	require.Len(t, iv1, 32)
}

func TestDeriveMsgKeyRejectsShortAuthKey(t *testing.T) {
	_, err := cryptoutil.DeriveMsgKey(randBytes(t, 10), randBytes(t, 8), true)
	require.Error(t, err)
}
