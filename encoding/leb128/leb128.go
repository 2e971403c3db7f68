// Package leb128 implements the variable-length integer
// encodings used by the WebAssembly binary format.
//
// Unsigned values use the same base-128 little-endian scheme as
// encoding/binary's uvarint. Signed values use two's-complement
// sign extension (sleb128), which differs from binary's zigzag
// varint, so both directions are implemented here.
package leb128

import (
	"errors"
	"io"
)

// ErrRange is returned when a decoded value does not fit the
// requested width.
var ErrRange = errors.New("leb128: value out of range")

// ErrOverlong is returned when an encoding uses more bytes than
// any value of the requested width requires.
var ErrOverlong = errors.New("leb128: overlong encoding")

// AppendUnsigned appends the uleb128 encoding of val to buf and
// returns the extended slice.
func AppendUnsigned(buf []byte, val uint64) []byte {
	for {
		b := byte(val & 0x7f)
		val >>= 7
		if val != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if val == 0 {
			return buf
		}
	}
}

// AppendSigned appends the sleb128 encoding of val to buf and
// returns the extended slice.
func AppendSigned(buf []byte, val int64) []byte {
	for {
		b := byte(val & 0x7f)
		val >>= 7
		if (val == 0 && b&0x40 == 0) || (val == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// ReadUnsigned reads a uleb128-encoded value from r, returning the
// value and the number of bytes consumed. Encodings longer than ten
// bytes, or extending past 64 bits, produce ErrOverlong.
func ReadUnsigned(r io.ByteReader) (uint64, int, error) {
	var (
		val   uint64
		shift uint
		n     int
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		if shift == 63 && b > 1 {
			return 0, n, ErrOverlong
		}
		val |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return val, n, nil
		}
		shift += 7
		if shift > 63 {
			return 0, n, ErrOverlong
		}
	}
}

// ReadSigned reads an sleb128-encoded value from r, returning the
// value and the number of bytes consumed.
func ReadSigned(r io.ByteReader) (int64, int, error) {
	var (
		val   int64
		shift uint
		n     int
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		val |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				val |= -1 << shift
			}
			return val, n, nil
		}
		if shift > 63 {
			return 0, n, ErrOverlong
		}
	}
}

// ReadUnsigned32 is ReadUnsigned restricted to 32-bit values, the
// width of most wasm immediates. Values past 32 bits produce
// ErrRange.
func ReadUnsigned32(r io.ByteReader) (uint32, int, error) {
	val, n, err := ReadUnsigned(r)
	if err != nil {
		return 0, n, err
	}
	if val > 0xffffffff {
		return 0, n, ErrRange
	}
	return uint32(val), n, nil
}
