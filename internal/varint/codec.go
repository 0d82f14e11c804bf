// Package varint implements the variable-int stream codec (§4.B). The
// tick loop's snapshot send path does not use it; deltas go out as
// CreateDelta produced them. A sequence of i32
// words is written as a stream of 7-bit-per-byte varints, the same way
// internal/packer frames a single field, but here it's used purely as
// a byte-run compressor with no message framing of its own.
package varint

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned by Decompress when the encoded stream ends
// mid-varint.
var ErrTruncated = errors.New("varint: truncated input")

// ErrCapacityExceeded is returned by Decompress when the decoded word
// count would exceed the caller-supplied capacity.
var ErrCapacityExceeded = errors.New("varint: output exceeds capacity")

// Compress encodes src — which must be a whole number of 4-byte
// little-endian signed words, as every snapshot delta buffer is — into
// a varint stream. The first byte of a word carries 6 payload bits and
// each further byte 7; bit 6 of the first byte holds the sign, bit 7
// of every byte is the
// continuation flag, identical in shape to packer.Packer.AddInt.
func Compress(src []byte) []byte {
	n := len(src) / 4
	out := make([]byte, 0, len(src))

	for i := 0; i < n; i++ {
		word := int32(binary.LittleEndian.Uint32(src[i*4 : i*4+4]))
		out = appendVarint(out, word)
	}
	return out
}

func appendVarint(out []byte, word int32) []byte {
	u := uint32(word)
	neg := word < 0
	if neg {
		u = uint32(-word)
	}

	first := byte(0)
	if neg {
		first |= 0x40
	}
	first |= byte(u) & 0x3f
	u >>= 6
	if u != 0 {
		first |= 0x80
	}
	out = append(out, first)

	for u != 0 {
		b := byte(u) & 0x7f
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// Decompress is the inverse of Compress. capWords bounds how many i32
// words the caller is willing to accept (the static-size snapshot
// table's notion of "how big can this item legally be"); exceeding it
// is a protocol violation, not a panic.
func Decompress(enc []byte, capWords int) ([]byte, error) {
	out := make([]byte, 0, capWords*4)
	pos := 0
	words := 0

	for pos < len(enc) {
		if words >= capWords {
			return nil, ErrCapacityExceeded
		}

		first := enc[pos]
		pos++

		sign := int32(1)
		if first&0x40 != 0 {
			sign = -1
		}
		val := uint32(first & 0x3f)
		shift := uint(6)
		more := first&0x80 != 0

		for more {
			if pos >= len(enc) {
				return nil, ErrTruncated
			}
			b := enc[pos]
			pos++
			val |= uint32(b&0x7f) << shift
			shift += 7
			more = b&0x80 != 0
			if shift > 35 {
				return nil, ErrTruncated
			}
		}

		word := sign * int32(val)
		var wordBuf [4]byte
		binary.LittleEndian.PutUint32(wordBuf[:], uint32(word))
		out = append(out, wordBuf[:]...)
		words++
	}

	return out, nil
}
