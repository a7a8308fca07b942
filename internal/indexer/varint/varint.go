// Package varint implements the variable-length unsigned integer format used
// inside doclist blobs.
//
// Each of the first eight bytes holds seven data bits, least-significant
// group first, and sets its high bit when more bytes follow. The final byte
// has the high bit clear. If a ninth byte is reached it carries a full eight
// data bits and always ends the value, so a uint64 needs at most 9 bytes.
//
// Values below 2^56 encode exactly like encoding/binary's Uvarint. Larger
// values do not: Uvarint spends ten bytes where this format spends nine, so
// the two must never be mixed on the same data.
package varint

import "errors"

// MaxLen is the longest encoding of a uint64.
const MaxLen = 9

// ErrCorrupt is returned when a byte sequence is not a valid varint.
var ErrCorrupt = errors.New("varint: corrupt encoding")

// Len returns the number of bytes Put would write for v.
func Len(v uint64) int {
	n := 1
	for v >= 0x80 && n < MaxLen {
		v >>= 7
		n++
	}
	return n
}

// Put encodes v into dst and returns the number of bytes written. dst must
// have room for Len(v) bytes.
func Put(dst []byte, v uint64) int {
	for i := 0; i < MaxLen-1; i++ {
		if v < 0x80 {
			dst[i] = byte(v)
			return i + 1
		}
		dst[i] = byte(v) | 0x80
		v >>= 7
	}
	dst[MaxLen-1] = byte(v)
	return MaxLen
}

// Append appends the encoding of v to dst.
func Append(dst []byte, v uint64) []byte {
	var buf [MaxLen]byte
	n := Put(buf[:], v)
	return append(dst, buf[:n]...)
}

// Get decodes a varint from the start of src, returning the value and the
// number of bytes consumed.
func Get(src []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < MaxLen-1; i++ {
		if i >= len(src) {
			return 0, 0, ErrCorrupt
		}
		b := src[i]
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	if len(src) < MaxLen {
		return 0, 0, ErrCorrupt
	}
	v |= uint64(src[MaxLen-1]) << 56
	return v, MaxLen, nil
}
