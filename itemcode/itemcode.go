// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package itemcode implements the base-64 item code import/export format
// (C10, item half): a thin text layer over the item codec (C6) that lets a
// bank/item/weapon entry be copied between saves as a single printable
// line.
package itemcode

import (
	"bufio"
	"encoding/base64"
	"io"
	"strings"

	"github.com/dsnet/bordersave/item"
	"github.com/dsnet/bordersave/record"
	"github.com/dsnet/bordersave/wire"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "itemcode: " + string(e) }

// player field tags this package reads or writes.
const (
	tagBank    = 41
	tagItems   = 53
	tagWeapons = 54
)

// section names a code's container, written as a "; Name" line ahead of
// the codes belonging to it.
type section struct {
	tag  int
	name string
}

var sections = []section{
	{tagBank, "Bank"},
	{tagItems, "Items"},
	{tagWeapons, "Weapons"},
}

// Export writes every bank, item, and weapon entry in player as lines of
// the form "prefix(<base64>)", grouped under "; Bank"/"; Items"/"; Weapons"
// headers. Synthetic items (the marker entries mutate uses to smuggle
// non-item state, identified by set==255 and an otherwise all-zero header)
// are skipped, matching the reference export tool's own behavior.
func Export(player record.Tree, prefix string, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, sec := range sections {
		entries := player[sec.tag]
		if len(entries) == 0 {
			continue
		}
		if _, err := io.WriteString(bw, "; "+sec.name+"\n"); err != nil {
			return err
		}
		for _, e := range entries {
			fieldData, err := wire.Decode(e.Bytes())
			if err != nil {
				return err
			}
			itemEntries, ok := fieldData[1]
			if !ok || len(itemEntries) == 0 {
				continue
			}
			raw := itemEntries[0].Bytes()

			isWeapon, values, _, structVersion, err := item.Unwrap(raw)
			if err != nil {
				return err
			}
			if isSynthetic(values) {
				continue
			}

			zeroed := item.Wrap(isWeapon, values, 0, structVersion)
			code := prefix + "(" + base64.StdEncoding.EncodeToString(zeroed) + ")"
			if _, err := io.WriteString(bw, code+"\n"); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func isSynthetic(values []*uint32) bool {
	if len(values) == 0 || values[0] == nil || *values[0] != 255 {
		return false
	}
	for _, v := range values[1:] {
		if v != nil && *v != 0 {
			return false
		}
	}
	return true
}

// NewKey generates the fresh, per-item key Import assigns on read; the
// caller supplies it so this package carries no randomness of its own
// (production code passes a math/rand-backed closure, tests a fixed
// sequence).
type NewKey func() int32

// Import parses codelist (a sequence of lines as produced by Export, any
// unrecognized line ignored) and appends the resulting bank/item/weapon
// entries to player. Every imported item is rekeyed with a fresh value
// from newKey before being re-wrapped, matching the reference importer's
// habit of never reusing an exported item's zeroed key.
func Import(player record.Tree, prefix string, codelist string, newKey NewKey) error {
	toField := tagItems
	sc := bufio.NewScanner(strings.NewReader(codelist))
	open, shut := prefix+"(", ")"

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, ";") {
			switch strings.ToLower(strings.TrimSpace(line[1:])) {
			case "bank":
				toField = tagBank
			case "items":
				toField = tagItems
			case "weapons":
				toField = tagWeapons
			}
			continue
		}
		if !strings.HasPrefix(line, open) || !strings.HasSuffix(line, shut) {
			continue
		}

		encoded := line[len(open) : len(line)-len(shut)]
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue // a code a reader hand-edited into garbage is skipped, not fatal
		}

		isWeapon, values, _, structVersion, err := item.Unwrap(raw)
		if err != nil {
			return err
		}
		rekeyed := item.Wrap(isWeapon, values, newKey(), structVersion)

		field := toField
		if toField != tagBank {
			field = tagItems
			if isWeapon {
				field = tagWeapons
			}
		}

		entry := itemFieldRecord(field, rekeyed)
		player[field] = append(player[field], record.Entry{WireType: record.LengthDelim, Value: wire.Encode(entry)})
	}
	return sc.Err()
}

// itemFieldRecord builds the small wrapper record every field 41/53/54
// entry carries around its raw item blob: equip/quantity flags for items
// and weapons, nothing extra for bank entries.
func itemFieldRecord(field int, raw []byte) record.Tree {
	t := record.Tree{1: {{WireType: record.LengthDelim, Value: raw}}}
	switch field {
	case tagItems:
		t[2] = []record.Entry{{WireType: record.Varint, Value: uint64(1)}}
		t[3] = []record.Entry{{WireType: record.Varint, Value: uint64(0)}}
		t[4] = []record.Entry{{WireType: record.Varint, Value: uint64(1)}}
	case tagWeapons:
		t[2] = []record.Entry{{WireType: record.Varint, Value: uint64(0)}}
		t[3] = []record.Entry{{WireType: record.Varint, Value: uint64(1)}}
	}
	return t
}
