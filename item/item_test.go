// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package item

import (
	"testing"
)

func u32(v uint32) *uint32 { return &v }

func TestPackUnpackValuesRoundTrip(t *testing.T) {
	values := []*uint32{u32(1), u32(2), u32(3), u32(4), u32(5), u32(6), u32(7), u32(8)}
	packed := PackValues(false, values)
	got := UnpackValues(false, packed)
	for i, v := range values {
		if got[i] == nil || *got[i] != *v {
			t.Errorf("field %d: got %v, want %v", i, got[i], *v)
		}
	}
	for i := len(values); i < len(itemSizes[0]); i++ {
		if got[i] != nil {
			t.Errorf("field %d: expected nil past the supplied values, got %v", i, *got[i])
		}
	}
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	values := []*uint32{u32(255), u32(0x1234), u32(0xabcde), u32(7), u32(50), u32(50)}
	key := int32(-123456789)

	wire := Wrap(false, values, key, 7)
	isWeapon, got, gotKey, gotVersion, err := Unwrap(wire)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if isWeapon {
		t.Error("Unwrap reported is_weapon=true for a non-weapon item")
	}
	if gotKey != key {
		t.Errorf("Unwrap key = %d, want %d", gotKey, key)
	}
	if gotVersion != 7 {
		t.Errorf("Unwrap structVersion = %d, want 7", gotVersion)
	}
	for i, v := range values {
		if got[i] == nil || *got[i] != *v {
			t.Errorf("field %d: got %v, want %v", i, got[i], *v)
		}
	}
}

func TestUnwrapDetectsTamperedChecksum(t *testing.T) {
	values := []*uint32{u32(1), u32(2), u32(3), u32(4), u32(5), u32(6)}
	wire := Wrap(true, values, 42, 7)
	tampered := append([]byte(nil), wire...)
	tampered[len(tampered)-1] ^= 0xff

	if _, _, _, _, err := Unwrap(tampered); err != ErrChecksum {
		t.Errorf("Unwrap(tampered) error = %v, want %v", err, ErrChecksum)
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	f := &Fields{
		IsWeapon:      true,
		Set:           3,
		Type:          HeaderField{Lib: 1, Asset: 20},
		Balance:       HeaderField{Lib: 2, Asset: 100},
		Manufacturer:  HeaderField{Lib: 0, Asset: 5},
		Level:         [2]uint32{50, 50},
		Parts:         []*HeaderField{{Lib: 1, Asset: 2}, nil, {Lib: 3, Asset: 4}},
		Key:           99,
		StructVersion: 7,
	}

	wire, err := WrapFields(f)
	if err != nil {
		t.Fatalf("WrapFields: %v", err)
	}
	got, err := UnwrapFields(wire)
	if err != nil {
		t.Fatalf("UnwrapFields: %v", err)
	}

	if got.IsWeapon != f.IsWeapon || got.Set != f.Set || got.Type != f.Type ||
		got.Balance != f.Balance || got.Manufacturer != f.Manufacturer || got.Level != f.Level {
		t.Errorf("UnwrapFields(WrapFields(f)) = %+v, want %+v", got, f)
	}
	// PackValues stops at the first nil value, so only the part before the
	// nil survives; UnpackValues reports every later part slot as nil.
	wantParts := make([]*HeaderField, len(itemSizes[boolIdx(f.IsWeapon)])-6)
	wantParts[0] = f.Parts[0]
	if len(got.Parts) != len(wantParts) {
		t.Fatalf("Parts length = %d, want %d", len(got.Parts), len(wantParts))
	}
	for i := range wantParts {
		if (wantParts[i] == nil) != (got.Parts[i] == nil) {
			t.Errorf("Parts[%d] presence mismatch", i)
			continue
		}
		if wantParts[i] != nil && *wantParts[i] != *got.Parts[i] {
			t.Errorf("Parts[%d] = %+v, want %+v", i, got.Parts[i], wantParts[i])
		}
	}
}

func TestWrapFieldsUnknownStructVersion(t *testing.T) {
	f := &Fields{StructVersion: 3}
	if _, err := WrapFields(f); err != ErrStructVersion {
		t.Errorf("WrapFields error = %v, want %v", err, ErrStructVersion)
	}
}

func TestUnwrapFieldsUnknownStructVersion(t *testing.T) {
	wire := Wrap(false, []*uint32{u32(1)}, 1, 3)
	if _, err := UnwrapFields(wire); err != ErrStructVersion {
		t.Errorf("UnwrapFields error = %v, want %v", err, ErrStructVersion)
	}
}
