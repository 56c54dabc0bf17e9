// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package wire implements the length-delimited, tag-and-wire-type record
// format used as the innermost payload of the save container: LEB128-style
// varints, and field keys of the form (tag<<3)|wiretype.
package wire

import (
	"encoding/binary"
	"runtime"
	"sort"

	"github.com/dsnet/bordersave/record"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "wire: " + string(e) }

// ErrWireType indicates a field key naming a wire type outside {0, 1, 2, 5}.
var ErrWireType error = Error("unsupported wire type")

// ErrTruncated indicates the buffer ended in the middle of a varint,
// fixed-width value, or length-delimited payload.
var ErrTruncated error = Error("truncated record stream")

func errRecover(err *error) {
	switch ex := recover().(type) {
	case nil:
		// Do nothing.
	case runtime.Error:
		panic(ex)
	case error:
		*err = ex
	default:
		panic(ex)
	}
}

// cursor walks data left to right, the shared state for every read helper
// in this package.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) byte() byte {
	if c.pos >= len(c.data) {
		panic(ErrTruncated)
	}
	b := c.data[c.pos]
	c.pos++
	return b
}

func (c *cursor) bytes(n int) []byte {
	if c.pos+n > len(c.data) {
		panic(ErrTruncated)
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b
}

// ReadVarint reads one LEB128-style varint: 7 bits per byte, continuation
// in the MSB.
func ReadVarint(data []byte, pos int) (val uint64, n int, err error) {
	defer errRecover(&err)
	c := &cursor{data: data, pos: pos}
	var shift uint
	for {
		b := c.byte()
		val |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return val, c.pos - pos, nil
}

// AppendVarint appends v to buf in LEB128-style varint form.
func AppendVarint(buf []byte, v uint64) []byte {
	for v > 0x7f {
		buf = append(buf, byte(0x80|(v&0x7f)))
		v >>= 7
	}
	return append(buf, byte(v))
}

func readValue(c *cursor, wireType int) interface{} {
	switch wireType {
	case record.Varint:
		v, n, err := ReadVarint(c.data, c.pos)
		if err != nil {
			panic(err)
		}
		c.pos += n
		return v
	case record.Fixed64:
		return binary.LittleEndian.Uint64(c.bytes(8))
	case record.LengthDelim:
		n, nn, err := ReadVarint(c.data, c.pos)
		if err != nil {
			panic(err)
		}
		c.pos += nn
		return append([]byte(nil), c.bytes(int(n))...)
	case record.Fixed32:
		return uint64(binary.LittleEndian.Uint32(c.bytes(4)))
	default:
		panic(ErrWireType)
	}
}

func appendValue(buf []byte, wireType int, value interface{}) []byte {
	switch wireType {
	case record.Varint:
		return AppendVarint(buf, value.(uint64))
	case record.Fixed64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], value.(uint64))
		return append(buf, tmp[:]...)
	case record.LengthDelim:
		b := value.([]byte)
		buf = AppendVarint(buf, uint64(len(b)))
		return append(buf, b...)
	case record.Fixed32:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(value.(uint64)))
		return append(buf, tmp[:]...)
	default:
		panic(ErrWireType)
	}
}

// Decode parses data as a sequence of (key, value) fields and groups them
// into a record.Tree by tag, preserving entry order within each tag.
func Decode(data []byte) (t record.Tree, err error) {
	defer errRecover(&err)
	t = make(record.Tree)
	c := &cursor{data: data}
	for c.pos < len(c.data) {
		key, n, err := ReadVarint(c.data, c.pos)
		if err != nil {
			panic(err)
		}
		c.pos += n
		tag := int(key >> 3)
		wireType := int(key & 0x7)
		value := readValue(c, wireType)
		t[tag] = append(t[tag], record.Entry{WireType: wireType, Value: value})
	}
	return t, nil
}

// Encode serializes t, sorting tags in ascending order and emitting every
// entry for a tag before moving to the next.
func Encode(t record.Tree) []byte {
	tags := make([]int, 0, len(t))
	for tag := range t {
		tags = append(tags, tag)
	}
	sort.Ints(tags)

	var buf []byte
	for _, tag := range tags {
		for _, e := range t[tag] {
			key := uint64(tag)<<3 | uint64(e.WireType)
			buf = AppendVarint(buf, key)
			buf = appendValue(buf, e.WireType, e.Value)
		}
	}
	return buf
}

// ReadRepeated decodes data as a packed sequence of values of the given
// fixed wire type (0, 1, or 5; LengthDelim is not packable), iterating
// until the buffer is exhausted.
func ReadRepeated(data []byte, wireType int) (vals []uint64, err error) {
	defer errRecover(&err)
	if wireType == record.LengthDelim {
		panic(ErrWireType)
	}
	c := &cursor{data: data}
	for c.pos < len(c.data) {
		vals = append(vals, readValue(c, wireType).(uint64))
	}
	return vals, nil
}

// WriteRepeated packs vals as a sequence of values of the given fixed
// wire type.
func WriteRepeated(vals []uint64, wireType int) []byte {
	var buf []byte
	for _, v := range vals {
		buf = appendValue(buf, wireType, v)
	}
	return buf
}
