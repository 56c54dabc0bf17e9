// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package lzo

import (
	"bytes"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	vectors := [][]byte{
		nil,
		[]byte{},
		[]byte("a"),
		[]byte("hello, world"),
		bytes.Repeat([]byte{0xaa}, 17),
		bytes.Repeat([]byte{0x42}, 238),
		bytes.Repeat([]byte{0x42}, 239),
		bytes.Repeat([]byte{0x7f}, 1000),
		bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 5000),
	}

	for _, in := range vectors {
		enc := Compress(in)
		dec, err := Decompress(enc)
		if err != nil {
			t.Fatalf("Decompress(Compress(%d bytes)) error: %v", len(in), err)
		}
		if !bytes.Equal(dec, in) && !(len(dec) == 0 && len(in) == 0) {
			t.Errorf("round-trip mismatch for %d-byte input", len(in))
		}
	}
}

func TestDecompressEmptyMarker(t *testing.T) {
	dec, err := Decompress([]byte{0x11, 0x00, 0x00})
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if len(dec) != 0 {
		t.Errorf("Decompress(empty marker) = %v, want empty", dec)
	}
}

// TestDecompressM2Match hand-builds a stream using a real back-reference
// (the class the bundled encoder itself never emits) to exercise the
// decoder's M2 dispatch path: a literal run of "abc", then a 3-byte match
// copying "abc" again from distance 3, then the end marker.
func TestDecompressM2Match(t *testing.T) {
	// First token: literal run of length 3 -> opcode 17+3=20.
	// M2 opcode: mlen=3 -> (t>>5)+1=3 -> t>>5=2 -> t=0x40|... ; dist=3 -> dist-1=2.
	// 2 = ((t>>2)&0x7) + (b<<3). Choose t low bits: (t>>2)&0x7 = 2, b = 0.
	// t = 0x40 | (2<<2) = 0x48. embed low 2 bits of t = 0 -> next byte must be >=16 or literal opcode.
	stream := []byte{
		20, 'a', 'b', 'c', // literal run "abc"
		0x48, 0x00, // M2 match: len 3, dist 3
		0x11, 0x00, 0x00, // EOF
	}
	dec, err := Decompress(stream)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	want := "abcabc"
	if string(dec) != want {
		t.Errorf("Decompress = %q, want %q", dec, want)
	}
}

func TestDecompressCorruptDistance(t *testing.T) {
	defer func() {
		if recover() != nil {
			t.Fatal("Decompress should return an error, not panic, to its caller")
		}
	}()
	// Literal run of 1 byte, then an M2 match whose distance exceeds the
	// single decoded byte available so far.
	stream := []byte{18, 'a', 0x40, 0xff, 0x11, 0x00, 0x00}
	if _, err := Decompress(stream); err == nil {
		t.Fatal("Decompress accepted an out-of-range back-reference")
	}
}
