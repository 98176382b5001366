package wire

import (
	"encoding/binary"
)

// Writer accumulates MTProto-encoded primitives into a growable buffer.
// It mirrors Reader's integer, string and vector methods so a caller can
// write a plaintext prefix and a matching Reader can read it back without
// translating field order by hand. Reader's Double and BigInt have no
// Writer counterpart, and Raw stands in for Reader.Bytes.
type Writer struct {
	buf []byte
}

// NewWriter allocates a Writer with capacity hint cap0.
func NewWriter(cap0 int) *Writer {
	return &Writer{buf: make([]byte, 0, cap0)}
}

// Bytes returns the accumulated buffer. The caller must not mutate it.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Long appends a signed 64-bit little-endian integer.
func (w *Writer) Long(v int64) *Writer {
	return w.ULong(uint64(v))
}

// ULong appends an unsigned 64-bit little-endian integer.
func (w *Writer) ULong(v uint64) *Writer {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// Int appends a signed 32-bit little-endian integer.
func (w *Writer) Int(v int32) *Writer {
	return w.UInt(uint32(v))
}

// UInt appends an unsigned 32-bit little-endian integer, used for wire
// tags.
func (w *Writer) UInt(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// Raw appends b unmodified, with no length prefix or padding.
func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// StringBytes appends b in TL length-prefixed, padded form, the mirror
// of Reader.StringBytes.
func (w *Writer) StringBytes(b []byte) *Writer {
	size := len(b)
	if size < 254 {
		w.buf = append(w.buf, byte(size))
		w.buf = append(w.buf, b...)
		padding := (4 - ((size + 1) % 4)) & 3
		w.buf = append(w.buf, make([]byte, padding)...)
	} else {
		w.buf = append(w.buf, 254, byte(size), byte(size>>8), byte(size>>16))
		w.buf = append(w.buf, b...)
		padding := (4 - size%4) & 3
		w.buf = append(w.buf, make([]byte, padding)...)
	}
	return w
}

// String appends s as StringBytes.
func (w *Writer) String(s string) *Writer {
	return w.StringBytes([]byte(s))
}

// VectorLong appends a TL vector of longs: CRCVector tag, count, values.
func (w *Writer) VectorLong(vs []int64) *Writer {
	w.UInt(CRCVector)
	w.Int(int32(len(vs)))
	for _, v := range vs {
		w.Long(v)
	}
	return w
}
