// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package jsonsave implements the two JSON interchange modes of C10: a raw
// "decodedjson" dump of a record.Tree by numeric tag, and a schema-mapped
// "json" dump by field name. Binary (length-delimited, non-nested) values
// are cast to and from Latin-1 strings on the way in and out, matching the
// reference tool's own JSON-safe binary encoding.
package jsonsave

import (
	"encoding/json"
	"strconv"

	"github.com/dsnet/bordersave/record"
	"github.com/dsnet/bordersave/schema"
	"github.com/dsnet/bordersave/wire"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "jsonsave: " + string(e) }

// rawTagProbe is a tag key whose presence at the top level of a decoded
// JSON object identifies a "decodedjson" dump on import, since a
// schema-mapped dump never has an all-numeric field name.
const rawTagProbe = "1"

// latin1Encode casts b to a string by mapping each byte to the identically
// numbered Unicode code point, the same transform Python's
// bytes.decode('latin1') performs.
func latin1Encode(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// latin1Decode is the inverse of latin1Encode; it fails if s contains any
// code point above 0xff, which could never have come from latin1Encode.
func latin1Decode(s string) ([]byte, error) {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, Error("string contains a code point outside Latin-1")
		}
		b = append(b, byte(r))
	}
	return b, nil
}

// EncodeRaw renders t as JSON keyed by decimal tag string, the
// "decodedjson" output mode, every tag's entries in an array:
// {"2": [10], "53": [{"1": ["..."], ...}, ...]}.
func EncodeRaw(t record.Tree) ([]byte, error) {
	return json.MarshalIndent(rawTreeToJSON(t), "", "  ")
}

func rawTreeToJSON(t record.Tree) map[string]interface{} {
	out := make(map[string]interface{}, len(t))
	for tag, entries := range t {
		vals := make([]interface{}, len(entries))
		for i, e := range entries {
			vals[i] = rawValueToJSON(e)
		}
		out[strconv.Itoa(tag)] = vals
	}
	return out
}

func rawValueToJSON(e record.Entry) interface{} {
	switch v := e.Value.(type) {
	case []byte:
		if sub, err := decodeNested(v); err == nil {
			return rawTreeToJSON(sub)
		}
		return latin1Encode(v)
	default:
		return v
	}
}

// decodeNested is a best-effort attempt to parse a length-delimited value
// as a nested field-record message. EncodeRaw has no schema to tell it
// which length-delimited fields are sub-messages and which are opaque
// binary blobs (most item/weapon entries are sub-messages; most others
// are not), so it tries the parse and falls back to a plain string.
func decodeNested(data []byte) (record.Tree, error) {
	return wire.Decode(data)
}

// DecodeRaw is the inverse of EncodeRaw.
func DecodeRaw(data []byte) (record.Tree, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return jsonToRawTree(obj)
}

func jsonToRawTree(obj map[string]interface{}) (record.Tree, error) {
	t := make(record.Tree, len(obj))
	for key, v := range obj {
		tag, err := strconv.Atoi(key)
		if err != nil {
			return nil, Error("non-numeric tag in raw JSON dump: " + key)
		}
		vals, ok := v.([]interface{})
		if !ok {
			return nil, Error("raw JSON dump field is not an array")
		}
		entries := make([]record.Entry, len(vals))
		for i, raw := range vals {
			e, err := jsonToRawValue(raw)
			if err != nil {
				return nil, err
			}
			entries[i] = e
		}
		t[tag] = entries
	}
	return t, nil
}

func jsonToRawValue(v interface{}) (record.Entry, error) {
	switch x := v.(type) {
	case float64:
		return record.Entry{WireType: record.Varint, Value: uint64(x)}, nil
	case string:
		b, err := latin1Decode(x)
		if err != nil {
			return record.Entry{}, err
		}
		return record.Entry{WireType: record.LengthDelim, Value: b}, nil
	case map[string]interface{}:
		sub, err := jsonToRawTree(x)
		if err != nil {
			return record.Entry{}, err
		}
		return record.Entry{WireType: record.LengthDelim, Value: wire.Encode(sub)}, nil
	default:
		return record.Entry{}, Error("unsupported value in raw JSON dump")
	}
}

// EncodeSchema renders t as JSON keyed by field name, the "json" output
// mode, applying s first and casting binary leaves to Latin-1 strings.
func EncodeSchema(t record.Tree, s schema.Schema) ([]byte, error) {
	fields, err := schema.Apply(t, s)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(structuredToJSON(fields), "", "  ")
}

func structuredToJSON(fields schema.StructuredRecord) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		out[name] = schemaValueToJSON(v)
	}
	return out
}

func schemaValueToJSON(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return latin1Encode(x)
	case schema.StructuredRecord:
		return structuredToJSON(x)
	case []interface{}:
		vals := make([]interface{}, len(x))
		for i, e := range x {
			vals[i] = schemaValueToJSON(e)
		}
		return vals
	case map[int][]record.Entry:
		// The reserved _raw bucket of unmapped tags; preserved as a raw
		// sub-tree so DecodeSchema can invert it exactly.
		return rawTreeToJSON(x)
	default:
		return x
	}
}

// DecodeSchema is the inverse of EncodeSchema.
func DecodeSchema(data []byte, s schema.Schema) (record.Tree, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	fields, err := jsonToStructured(obj, s)
	if err != nil {
		return nil, err
	}
	return schema.Remove(fields, s)
}

func jsonToStructured(obj map[string]interface{}, s schema.Schema) (schema.StructuredRecord, error) {
	names := make(map[string]schema.Mapping, len(s))
	for _, m := range s {
		names[m.Name] = m
	}

	fields := make(schema.StructuredRecord, len(obj))
	for name, v := range obj {
		if name == schema.RawKey {
			raw, err := jsonToRawBucket(v)
			if err != nil {
				return nil, err
			}
			fields[schema.RawKey] = raw
			continue
		}
		m, ok := names[name]
		if !ok {
			return nil, Error("unknown field name in JSON dump: " + name)
		}
		converted, err := jsonToSchemaValue(v, m)
		if err != nil {
			return nil, err
		}
		fields[name] = converted
	}
	return fields, nil
}

func jsonToRawBucket(v interface{}) (map[int][]record.Entry, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, Error("_raw field is not an object")
	}
	t, err := jsonToRawTree(obj)
	if err != nil {
		return nil, err
	}
	return map[int][]record.Entry(t), nil
}

func jsonToSchemaValue(v interface{}, m schema.Mapping) (interface{}, error) {
	if m.Repeated {
		vals, ok := v.([]interface{})
		if !ok {
			return nil, Error("expected an array for repeated field " + m.Name)
		}
		out := make([]interface{}, len(vals))
		for i, e := range vals {
			conv, err := jsonToSchemaScalar(e, m)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	}
	return jsonToSchemaScalar(v, m)
}

func jsonToSchemaScalar(v interface{}, m schema.Mapping) (interface{}, error) {
	switch inner := m.Inner.(type) {
	case schema.Schema:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, Error("expected an object for nested field " + m.Name)
		}
		return jsonToStructured(obj, inner)
	case schema.Convert:
		// The value has already been run through the user Decode hook by
		// Apply; we hand back whatever JSON produced (float64, string,
		// bool) and let Encode's own hook interpret it.
		return v, nil
	case schema.Packed:
		vals, ok := v.([]interface{})
		if !ok {
			return nil, Error("expected an array for packed field " + m.Name)
		}
		out := make([]uint64, len(vals))
		for i, e := range vals {
			f, ok := e.(float64)
			if !ok {
				return nil, Error("packed field " + m.Name + " has a non-numeric element")
			}
			out[i] = uint64(f)
		}
		return out, nil
	default:
		switch x := v.(type) {
		case float64:
			return uint64(x), nil
		case string:
			return latin1Decode(x)
		default:
			return nil, Error("unsupported JSON value for field " + m.Name)
		}
	}
}

// DecodeAuto picks DecodeRaw or DecodeSchema based on the shape of data:
// a top-level object with the key "1" can only be a decimal-tag dump (no
// schema-mapped field is ever named "1"), so it's read as one; anything
// else is assumed schema-mapped.
func DecodeAuto(data []byte, s schema.Schema) (record.Tree, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if _, ok := probe[rawTagProbe]; ok {
		return DecodeRaw(data)
	}
	return DecodeSchema(data, s)
}
