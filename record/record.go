// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package record defines the in-memory message tree shared by the
// field-record codec and the structure mapper: an ordered mapping from
// positive integer tag to a sequence of wire-typed entries.
package record

// Wire types recognized by the field-record codec.
const (
	Varint      = 0
	Fixed64     = 1
	LengthDelim = 2
	Fixed32     = 5
)

// Entry is one (wire type, value) pair under a tag. Value holds a uint64
// for Varint/Fixed64/Fixed32 entries, or a []byte for LengthDelim entries.
type Entry struct {
	WireType int
	Value    interface{}
}

// Uint64 returns Value as a uint64, panicking if the entry is not a
// fixed-width or varint entry.
func (e Entry) Uint64() uint64 { return e.Value.(uint64) }

// Bytes returns Value as a []byte, panicking if the entry is not a
// length-delimited entry.
func (e Entry) Bytes() []byte { return e.Value.([]byte) }

// Tree is the decoded field-record message: tag to its ordered entries.
type Tree map[int][]Entry
