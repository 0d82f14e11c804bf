package varint

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func wordsToBytes(words []int32) []byte {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(w))
	}
	return buf
}

func TestRoundTrip(t *testing.T) {
	cases := [][]int32{
		{},
		{0},
		{1, -1, 2, -2},
		{1000000, -1000000, 0, 63, -64, 1 << 20},
	}

	for _, words := range cases {
		src := wordsToBytes(words)
		enc := Compress(src)
		dec, err := Decompress(enc, len(words)+1)
		if err != nil {
			t.Fatalf("Decompress(%v) error: %v", words, err)
		}
		if !bytes.Equal(dec, src) {
			t.Errorf("round trip mismatch for %v: got %v, want %v", words, dec, src)
		}
	}
}

func TestDecompressCapacityExceeded(t *testing.T) {
	src := wordsToBytes([]int32{1, 2, 3})
	enc := Compress(src)
	if _, err := Decompress(enc, 2); err != ErrCapacityExceeded {
		t.Errorf("Decompress() error = %v, want ErrCapacityExceeded", err)
	}
}

func TestDecompressTruncated(t *testing.T) {
	enc := Compress(wordsToBytes([]int32{100000}))
	truncated := enc[:len(enc)-1]
	if _, err := Decompress(truncated, 1); err != ErrTruncated {
		t.Errorf("Decompress() error = %v, want ErrTruncated", err)
	}
}

func TestCompressEmpty(t *testing.T) {
	if enc := Compress(nil); len(enc) != 0 {
		t.Errorf("Compress(nil) = %v, want empty", enc)
	}
}
