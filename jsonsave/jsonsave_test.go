// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package jsonsave

import (
	"testing"

	"github.com/dsnet/bordersave/gamedata"
	"github.com/dsnet/bordersave/record"
	"github.com/google/go-cmp/cmp"
)

func sampleTree() record.Tree {
	return record.Tree{
		1: {{WireType: record.Varint, Value: uint64(7)}},
		2: {{WireType: record.Varint, Value: uint64(10)}},
		6: {{WireType: record.LengthDelim, Value: []byte{0x01, 0x02, 0xff, 0x80}}},
	}
}

func TestEncodeDecodeRawRoundTrip(t *testing.T) {
	tree := sampleTree()
	data, err := EncodeRaw(tree)
	if err != nil {
		t.Fatalf("EncodeRaw: %v", err)
	}
	got, err := DecodeRaw(data)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if diff := cmp.Diff(tree, got); diff != "" {
		t.Errorf("DecodeRaw(EncodeRaw(tree)) mismatch (-want +got):\n%s", diff)
	}
}

func sampleAmmoTree() record.Tree {
	return record.Tree{
		1: {{WireType: record.LengthDelim, Value: []byte("D_Resources.AmmoResources.Ammo_Combat_Rifle")}},
		2: {{WireType: record.LengthDelim, Value: []byte("D_Resourcepools.AmmoPools.Ammo_Combat_Rifle_Pool")}},
		3: {{WireType: record.Varint, Value: uint64(5)}},
		4: {{WireType: record.Fixed32, Value: uint64(0x42280000)}}, // 42.0 as IEEE-754 bits
	}
}

func TestEncodeDecodeSchemaRoundTrip(t *testing.T) {
	tree := sampleAmmoTree()
	data, err := EncodeSchema(tree, gamedata.AmmoResourceSchema)
	if err != nil {
		t.Fatalf("EncodeSchema: %v", err)
	}
	got, err := DecodeSchema(data, gamedata.AmmoResourceSchema)
	if err != nil {
		t.Fatalf("DecodeSchema: %v", err)
	}
	if diff := cmp.Diff(tree, got); diff != "" {
		t.Errorf("DecodeSchema(EncodeSchema(tree)) mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeAutoDetectsRawDump(t *testing.T) {
	tree := sampleTree()
	data, err := EncodeRaw(tree)
	if err != nil {
		t.Fatalf("EncodeRaw: %v", err)
	}
	got, err := DecodeAuto(data, gamedata.AmmoResourceSchema)
	if err != nil {
		t.Fatalf("DecodeAuto: %v", err)
	}
	if diff := cmp.Diff(tree, got); diff != "" {
		t.Errorf("DecodeAuto misdetected a raw dump (-want +got):\n%s", diff)
	}
}

func TestDecodeAutoDetectsSchemaDump(t *testing.T) {
	tree := sampleAmmoTree()
	data, err := EncodeSchema(tree, gamedata.AmmoResourceSchema)
	if err != nil {
		t.Fatalf("EncodeSchema: %v", err)
	}
	got, err := DecodeAuto(data, gamedata.AmmoResourceSchema)
	if err != nil {
		t.Fatalf("DecodeAuto: %v", err)
	}
	if diff := cmp.Diff(tree, got); diff != "" {
		t.Errorf("DecodeAuto misdetected a schema dump (-want +got):\n%s", diff)
	}
}

func TestLatin1RoundTrip(t *testing.T) {
	b := []byte{0x00, 0x7f, 0x80, 0xff, 0x41}
	s := latin1Encode(b)
	got, err := latin1Decode(s)
	if err != nil {
		t.Fatalf("latin1Decode: %v", err)
	}
	if string(got) != string(b) {
		t.Errorf("latin1Decode(latin1Encode(b)) = %v, want %v", got, b)
	}
}
