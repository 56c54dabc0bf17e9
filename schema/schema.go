// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package schema translates between a numeric-tagged record.Tree and a
// named, typed StructuredRecord using a declarative mapping, the
// structure mapper (C5) of the save codec.
package schema

import (
	"github.com/dsnet/bordersave/record"
	"github.com/dsnet/bordersave/wire"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "schema: " + string(e) }

// StructuredRecord is the schema-mapped view of a record.Tree: a mapping
// from field name to value. Values are uint64, []byte, []interface{} (for
// repeated fields), or a nested StructuredRecord. Tags absent from the
// schema are preserved verbatim under the reserved "_raw" key so encoding
// is a left-inverse of decoding.
type StructuredRecord map[string]interface{}

// RawKey is the reserved StructuredRecord key holding entries for tags
// the schema does not recognize.
const RawKey = "_raw"

// Convert is a user conversion hook used for fields whose wire
// representation needs translating to and from a richer Go value (for
// example, a 32-bit bit pattern decoded as a float32).
type Convert struct {
	Decode func(value interface{}) interface{}
	Encode func(value interface{}) (wireType int, raw interface{})
}

// Packed marks a field whose inner value, when Repeated, is a single
// length-delimited entry holding a packed sequence of this wire type
// rather than one entry per value.
type Packed int

// Mapping describes how one field-record tag is translated.
type Mapping struct {
	Name     string
	Repeated bool
	// Inner selects how entries under this tag translate: nil for a raw
	// leaf value, Packed for a packed-repeated scalar, Convert for a
	// user hook, or a nested Schema for a length-delimited sub-message.
	Inner interface{}
}

// Schema maps tag to Mapping.
type Schema map[int]Mapping

type invEntry struct {
	tag      int
	repeated bool
	inner    interface{}
}

func invert(s Schema) map[string]invEntry {
	inv := make(map[string]invEntry, len(s))
	for tag, m := range s {
		inv[m.Name] = invEntry{tag: tag, repeated: m.Repeated, inner: m.Inner}
	}
	return inv
}

func guessWireType(v interface{}) int {
	if _, ok := v.([]byte); ok {
		return record.LengthDelim
	}
	return record.Varint
}

// Apply decodes t against s, producing a StructuredRecord.
func Apply(t record.Tree, s Schema) (StructuredRecord, error) {
	fields := make(StructuredRecord)
	raw := make(map[int][]record.Entry)

	for tag, entries := range t {
		m, ok := s[tag]
		if !ok {
			raw[tag] = entries
			continue
		}

		switch inner := m.Inner.(type) {
		case nil:
			vals := make([]interface{}, len(entries))
			for i, e := range entries {
				vals[i] = e.Value
			}
			setField(fields, m.Name, m.Repeated, vals)

		case Packed:
			if m.Repeated {
				vals, err := wire.ReadRepeated(entries[0].Bytes(), int(inner))
				if err != nil {
					return nil, err
				}
				fields[m.Name] = vals
			} else {
				fields[m.Name] = entries[0].Value
			}

		case Convert:
			vals := make([]interface{}, len(entries))
			for i, e := range entries {
				vals[i] = inner.Decode(e.Value)
			}
			setField(fields, m.Name, m.Repeated, vals)

		case Schema:
			vals := make([]interface{}, len(entries))
			for i, e := range entries {
				sub, err := wire.Decode(e.Bytes())
				if err != nil {
					return nil, err
				}
				nested, err := Apply(sub, inner)
				if err != nil {
					return nil, err
				}
				vals[i] = nested
			}
			setField(fields, m.Name, m.Repeated, vals)

		default:
			return nil, Error("invalid mapping inner type")
		}
	}

	if len(raw) != 0 {
		fields[RawKey] = raw
	}
	return fields, nil
}

func setField(fields StructuredRecord, name string, repeated bool, vals []interface{}) {
	if repeated {
		fields[name] = vals
	} else {
		fields[name] = vals[0]
	}
}

// toSlice normalizes a StructuredRecord field value to a slice, wrapping
// a scalar in a single-element slice when the field is not repeated.
func toSlice(value interface{}, repeated bool) []interface{} {
	if !repeated {
		return []interface{}{value}
	}
	return value.([]interface{})
}

// Remove encodes fields against s, producing a record.Tree. It is the
// left-inverse of Apply: applying Remove to Apply's output with the same
// schema reproduces the original record.Tree.
func Remove(fields StructuredRecord, s Schema) (record.Tree, error) {
	inv := invert(s)
	t := make(record.Tree)

	if raw, ok := fields[RawKey]; ok {
		rawMap, ok := raw.(map[int][]record.Entry)
		if !ok {
			return nil, Error("_raw field has the wrong shape")
		}
		for tag, entries := range rawMap {
			t[tag] = append(t[tag], entries...)
		}
	}

	for name, value := range fields {
		if name == RawKey {
			continue
		}
		im, ok := inv[name]
		if !ok {
			return nil, Error("unknown field name: " + name)
		}

		switch inner := im.inner.(type) {
		case nil:
			vals := toSlice(value, im.repeated)
			entries := make([]record.Entry, len(vals))
			for i, v := range vals {
				entries[i] = record.Entry{WireType: guessWireType(v), Value: v}
			}
			t[im.tag] = entries

		case Packed:
			if im.repeated {
				buf := wire.WriteRepeated(value.([]uint64), int(inner))
				t[im.tag] = []record.Entry{{WireType: record.LengthDelim, Value: buf}}
			} else {
				t[im.tag] = []record.Entry{{WireType: int(inner), Value: value}}
			}

		case Convert:
			vals := toSlice(value, im.repeated)
			entries := make([]record.Entry, len(vals))
			for i, v := range vals {
				wireType, raw := inner.Encode(v)
				entries[i] = record.Entry{WireType: wireType, Value: raw}
			}
			t[im.tag] = entries

		case Schema:
			vals := toSlice(value, im.repeated)
			entries := make([]record.Entry, len(vals))
			for i, v := range vals {
				sub, err := Remove(v.(StructuredRecord), inner)
				if err != nil {
					return nil, err
				}
				entries[i] = record.Entry{WireType: record.LengthDelim, Value: wire.Encode(sub)}
			}
			t[im.tag] = entries

		default:
			return nil, Error("invalid mapping inner type")
		}
	}
	return t, nil
}
