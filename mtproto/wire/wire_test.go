package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MUTLCC/TeleDoge/mtproto/wire"
)

func TestLongRoundTrip(t *testing.T) {
	w := wire.NewWriter(16)
	w.Long(-123456789)
	r := wire.NewReader(w.Bytes())
	require.Equal(t, int64(-123456789), r.Long())
	require.NoError(t, r.Err())
}

func TestStringBytesRoundTripShort(t *testing.T) {
	w := wire.NewWriter(16)
	w.StringBytes([]byte("hello"))
	// padded to a 4-byte boundary: 1 (len) + 5 (data) = 6, pad 2 -> 8
	require.Equal(t, 8, w.Len())
	r := wire.NewReader(w.Bytes())
	require.Equal(t, []byte("hello"), r.StringBytes())
	require.NoError(t, r.Err())
}

func TestStringBytesRoundTripLong(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	w := wire.NewWriter(320)
	w.StringBytes(data)
	r := wire.NewReader(w.Bytes())
	require.Equal(t, data, r.StringBytes())
	require.NoError(t, r.Err())
}

func TestVectorLongRoundTrip(t *testing.T) {
	ids := []int64{1, 2, 3, 42}
	w := wire.NewWriter(32)
	w.VectorLong(ids)
	r := wire.NewReader(w.Bytes())
	require.Equal(t, ids, r.VectorLong())
	require.NoError(t, r.Err())
}

func TestReaderErrorOnShortBuffer(t *testing.T) {
	r := wire.NewReader([]byte{1, 2, 3})
	_ = r.Long()
	require.Error(t, r.Err())
}

func TestReaderSeekRewind(t *testing.T) {
	w := wire.NewWriter(8)
	w.UInt(wire.CRCPong)
	r := wire.NewReader(w.Bytes())
	tag := r.UInt()
	require.Equal(t, wire.CRCPong, tag)
	r.Seek(-4)
	require.Equal(t, 0, r.Pos())
	require.Equal(t, wire.CRCPong, r.UInt())
}
