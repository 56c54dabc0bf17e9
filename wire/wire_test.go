// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dsnet/bordersave/record"
)

func TestVarintRoundTrip(t *testing.T) {
	vectors := []uint64{0, 1, 127, 128, 300, 16384, 1 << 35, ^uint64(0)}
	for _, v := range vectors {
		buf := AppendVarint(nil, v)
		got, n, err := ReadVarint(buf, 0)
		if err != nil {
			t.Fatalf("ReadVarint(%d) error: %v", v, err)
		}
		if got != v || n != len(buf) {
			t.Errorf("ReadVarint roundtrip for %d: got (%d, %d), want (%d, %d)", v, got, n, v, len(buf))
		}
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	tree := record.Tree{
		1: {{WireType: record.Varint, Value: uint64(42)}},
		2: {{WireType: record.LengthDelim, Value: []byte("hello")}},
		3: {
			{WireType: record.Varint, Value: uint64(1)},
			{WireType: record.Varint, Value: uint64(2)},
		},
		4: {{WireType: record.Fixed32, Value: uint64(0xdeadbeef)}},
		5: {{WireType: record.Fixed64, Value: uint64(0x0102030405060708)}},
	}

	buf := Encode(tree)
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(tree, got); diff != "" {
		t.Errorf("Decode(Encode(tree)) mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeUnsupportedWireType(t *testing.T) {
	// key = (1<<3)|3, an unsupported wire type.
	buf := AppendVarint(nil, (1<<3)|3)
	if _, err := Decode(buf); err == nil {
		t.Fatal("Decode accepted an unsupported wire type")
	}
}

func TestReadWriteRepeated(t *testing.T) {
	vals := []uint64{1, 2, 3, 255, 1000}
	buf := WriteRepeated(vals, record.Varint)
	got, err := ReadRepeated(buf, record.Varint)
	if err != nil {
		t.Fatalf("ReadRepeated: %v", err)
	}
	if diff := cmp.Diff(vals, got); diff != "" {
		t.Errorf("ReadRepeated(WriteRepeated(vals)) mismatch (-want +got):\n%s", diff)
	}
}
