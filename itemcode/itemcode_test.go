// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package itemcode

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/dsnet/bordersave/item"
	"github.com/dsnet/bordersave/record"
	"github.com/dsnet/bordersave/wire"
)

func u32(v uint32) *uint32 { return &v }

func samplePlayerWithOneItem() record.Tree {
	values := []*uint32{u32(1), u32(2), u32(3), u32(4), u32(50), u32(50)}
	raw := item.Wrap(false, values, 42, 7)
	fieldData := itemFieldRecord(tagItems, raw)
	return record.Tree{
		tagItems: {{WireType: record.LengthDelim, Value: wire.Encode(fieldData)}},
	}
}

func TestExportSkipsSyntheticItems(t *testing.T) {
	player := samplePlayerWithOneItem()
	synthetic := item.Wrap(false, []*uint32{u32(255), u32(0), u32(0), u32(0), u32(0), u32(0)}, 7, 7)
	player[tagItems] = append(player[tagItems], record.Entry{
		WireType: record.LengthDelim,
		Value:    wire.Encode(itemFieldRecord(tagItems, synthetic)),
	})

	var buf strings.Builder
	if err := Export(player, "BL2", &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "BL2(") != 1 {
		t.Errorf("Export wrote %d codes, want 1 (synthetic item should be skipped): %q", strings.Count(out, "BL2("), out)
	}
	if !strings.Contains(out, "; Items") {
		t.Error("Export did not write the \"; Items\" section header")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	player := samplePlayerWithOneItem()

	var buf strings.Builder
	if err := Export(player, "BL2", &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dest := record.Tree{}
	keys := []int32{-555}
	i := 0
	newKey := func() int32 { v := keys[i%len(keys)]; i++; return v }
	if err := Import(dest, "BL2", buf.String(), newKey); err != nil {
		t.Fatalf("Import: %v", err)
	}

	if len(dest[tagItems]) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(dest[tagItems]))
	}
	fieldData, err := wire.Decode(dest[tagItems][0].Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	_, values, key, _, err := item.Unwrap(fieldData[1][0].Bytes())
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if key != -555 {
		t.Errorf("imported item key = %d, want -555 (a fresh key, not the exported zero)", key)
	}
	if *values[4] != 50 {
		t.Errorf("imported item level = %d, want 50", *values[4])
	}
}

func TestImportRoutesWeaponsAndBankSeparately(t *testing.T) {
	weaponValues := []*uint32{u32(1), u32(2), u32(3), u32(4), u32(10), u32(10)}
	weaponRaw := item.Wrap(true, weaponValues, 1, 7)
	weaponCode := "BL2(" + b64(weaponRaw) + ")"

	itemValues := []*uint32{u32(1), u32(2), u32(3), u32(4), u32(10), u32(10)}
	itemRaw := item.Wrap(false, itemValues, 1, 7)
	bankCode := "BL2(" + b64(itemRaw) + ")"

	codelist := "; Items\n" + weaponCode + "\n; Bank\n" + bankCode + "\n"

	player := record.Tree{}
	if err := Import(player, "BL2", codelist, func() int32 { return 1 }); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(player[tagWeapons]) != 1 {
		t.Errorf("len(weapons) = %d, want 1 (a weapon code under \"; Items\" still routes by is_weapon)", len(player[tagWeapons]))
	}
	if len(player[tagBank]) != 1 {
		t.Errorf("len(bank) = %d, want 1", len(player[tagBank]))
	}
}

func b64(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}
