// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package item implements the bit-packed inventory item codec (C6): the
// fixed-width field layout, the per-item CRC-16 plus rotation/XOR
// obfuscation, and the header/part lib-asset split used for the named
// view of an item's fields.
package item

import (
	"encoding/binary"
	"hash/crc32"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "item: " + string(e) }

// ErrChecksum indicates the CRC-16 recovered after inverse obfuscation
// does not match the one actually present on the wire.
var ErrChecksum error = Error("item checksum mismatch")

// ErrStructVersion indicates an item_struct_version this package does not
// recognize.
var ErrStructVersion error = Error("unknown item struct version")

// ErrShortItem indicates a wire-format item too short to contain its
// fixed 5-byte header.
var ErrShortItem error = Error("item body too short")

// itemSizes gives the bit width of each of up to 17 fields, indexed by
// is_weapon (0 or 1). The same widths apply across every known
// item_struct_version.
var itemSizes = [2][17]int{
	{8, 17, 20, 11, 7, 7, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16},
	{8, 13, 20, 11, 7, 7, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17},
}

// headerFieldSizes gives the lib/asset bit split for the three header
// fields (type, balance, manufacturer), indexed by is_weapon.
var headerFieldSizes = [2][3]int{
	{8, 10, 7},
	{6, 10, 7},
}

// KnownStructVersions are the item_struct_version values recognized by
// this codec (7 for one game, 10 for the other).
var KnownStructVersions = map[int]bool{7: true, 10: true}

// PackValues bit-packs up to 17 values into the 32-byte item field buffer,
// little-endian within the buffer (the i-th value of width w_i occupies
// bits [sum(w_j<i), sum(w_j<i)+w_i) counting from the low bit of the low
// byte), padding the remainder of the final used byte with 1 bits. A nil
// value (or running out of values before exhausting the field list) ends
// packing at that point; no further values are encoded.
func PackValues(isWeapon bool, values []*uint32) []byte {
	sizes := itemSizes[boolIdx(isWeapon)]
	var buf [32]byte
	i := 0
	for idx, size := range sizes {
		if idx >= len(values) || values[idx] == nil {
			break
		}
		v := uint64(*values[idx]) << uint(i&7)
		j := i >> 3
		for v != 0 {
			buf[j] |= byte(v & 0xff)
			v >>= 8
			j++
		}
		i += size
	}
	if i&7 != 0 {
		buf[i>>3] |= byte(0xff << uint(i&7))
	}
	return append([]byte(nil), buf[:(i+7)>>3]...)
}

// UnpackValues is the inverse of PackValues. A field whose bits fall past
// the end of data yields a nil value in the result, rather than an error,
// matching the variable-length part tail the format allows.
func UnpackValues(isWeapon bool, data []byte) []*uint32 {
	sizes := itemSizes[boolIdx(isWeapon)]
	padded := append([]byte{0x20}, data...)
	end := len(padded) * 8
	i := 8

	values := make([]*uint32, 0, len(sizes))
	for _, size := range sizes {
		j := i + size
		if j > end {
			values = append(values, nil)
			continue
		}
		var v uint64
		hi := j >> 3
		if hi >= len(padded) {
			hi = len(padded) - 1
		}
		for b := hi; b >= i>>3; b-- {
			v = (v << 8) | uint64(padded[b])
		}
		mask := ^(uint64(0xff) << uint(size))
		val := uint32((v >> uint(i&7)) & mask)
		values = append(values, &val)
		i = j
	}
	return values
}

func boolIdx(isWeapon bool) int {
	if isWeapon {
		return 1
	}
	return 0
}

func crc16(header []byte, packed []byte) uint16 {
	padding := make([]byte, 33-len(packed))
	for i := range padding {
		padding[i] = 0xff
	}
	buf := make([]byte, 0, len(header)+2+len(packed)+len(padding))
	buf = append(buf, header...)
	buf = append(buf, 0xff, 0xff)
	buf = append(buf, packed...)
	buf = append(buf, padding...)
	h := crc32.ChecksumIEEE(buf)
	return uint16((h >> 16) ^ h)
}

// rotateLeft returns data rotated left by steps bytes (wrapping),
// matching a whole-byte slice rotation rather than a bitwise one.
func rotateLeft(data []byte, steps int) []byte {
	n := len(data)
	steps = ((steps % n) + n) % n
	out := make([]byte, n)
	copy(out, data[steps:])
	copy(out[n-steps:], data[:steps])
	return out
}

// rotateRight is the inverse of rotateLeft.
func rotateRight(data []byte, steps int) []byte {
	n := len(data)
	steps = ((steps % n) + n) % n
	return rotateLeft(data, n-steps)
}

// xorStream XORs data against a linear-congruential keystream seeded
// from seed, advancing the generator once before producing each output
// byte (so the first output byte never uses the raw seed directly).
func xorStream(data []byte, seed uint32) []byte {
	key := seed
	out := make([]byte, len(data))
	for i, c := range data {
		key = uint32((uint64(key) * 279470273) % 4294967291)
		out[i] = c ^ byte(key)
	}
	return out
}

// Wrap serializes values into the obfuscated wire form of an item: a
// 5-byte header (flags/version byte, big-endian signed key) followed by
// the rotated, XOR-obfuscated checksum+body.
func Wrap(isWeapon bool, values []*uint32, key int32, structVersion int) []byte {
	packed := PackValues(isWeapon, values)

	header := make([]byte, 5)
	v := byte(structVersion)
	if isWeapon {
		v |= 0x80
	}
	header[0] = v
	binary.BigEndian.PutUint32(header[1:], uint32(key))

	sum := crc16(header, packed)
	body := make([]byte, 2+len(packed))
	binary.BigEndian.PutUint16(body, sum)
	copy(body[2:], packed)

	body = xorStream(rotateLeft(body, int(uint32(key)&31)), uint32(key>>5))
	return append(header, body...)
}

// Unwrap is the inverse of Wrap, verifying the recovered CRC-16 against
// the one stored on the wire. The item_struct_version it returns is
// recovered from the header byte, not assumed by the caller, since Wrap
// packs it there alongside the is_weapon flag.
func Unwrap(data []byte) (isWeapon bool, values []*uint32, key int32, structVersion int, err error) {
	if len(data) < 5 {
		return false, nil, 0, 0, ErrShortItem
	}
	v := data[0]
	isWeapon = v&0x80 != 0
	structVersion = int(v & 0x7f)
	key = int32(binary.BigEndian.Uint32(data[1:5]))

	raw := rotateRight(xorStream(data[5:], uint32(key>>5)), int(uint32(key)&31))
	if len(raw) < 2 {
		return false, nil, 0, 0, ErrShortItem
	}
	wantSum := binary.BigEndian.Uint16(raw[:2])
	packed := raw[2:]

	header := data[:5]
	if crc16(header, packed) != wantSum {
		return false, nil, 0, 0, ErrChecksum
	}

	values = UnpackValues(isWeapon, packed)
	return isWeapon, values, key, structVersion, nil
}

// HeaderField is a {lib, asset} pair recovered from one of an item's
// header fields or variable part tail.
type HeaderField struct {
	Lib, Asset uint32
}

// Fields is the named view of an item's packed values.
type Fields struct {
	IsWeapon                     bool
	Set                          uint32
	Type, Balance, Manufacturer  HeaderField
	Level                        [2]uint32
	Parts                        []*HeaderField // nil entries mark absent trailing parts
	Key                          int32
	StructVersion                int
}

func splitLibAsset(v uint32, bits int) HeaderField {
	lib := v >> uint(bits)
	asset := v &^ (lib << uint(bits))
	return HeaderField{Lib: lib, Asset: asset}
}

func joinLibAsset(f HeaderField, bits int) uint32 {
	return (f.Lib << uint(bits)) | f.Asset
}

// ToValues converts f to the flat value slice PackValues/Wrap expect.
func (f *Fields) ToValues() []*uint32 {
	sizes := headerFieldSizes[boolIdx(f.IsWeapon)]
	hdrs := [3]HeaderField{f.Type, f.Balance, f.Manufacturer}

	values := make([]*uint32, 0, 6+len(f.Parts))
	push := func(v uint32) { values = append(values, &v) }
	push(f.Set)
	for i, size := range sizes {
		push(joinLibAsset(hdrs[i], size))
	}
	push(f.Level[0])
	push(f.Level[1])

	partBits := 10
	if f.IsWeapon {
		partBits = 11
	}
	for _, p := range f.Parts {
		if p == nil {
			values = append(values, nil)
			continue
		}
		packed := joinLibAsset(*p, partBits)
		values = append(values, &packed)
	}
	return values
}

// FieldsFromValues converts a flat value slice (as produced by
// UnpackValues) into the named Fields view.
func FieldsFromValues(isWeapon bool, values []*uint32, key int32, structVersion int) (*Fields, error) {
	if len(values) < 6 {
		return nil, Error("item has fewer than the minimum six fields")
	}
	f := &Fields{IsWeapon: isWeapon, Key: key, StructVersion: structVersion}
	if values[0] != nil {
		f.Set = *values[0]
	}

	sizes := headerFieldSizes[boolIdx(isWeapon)]
	hdrs := [3]HeaderField{}
	for i, size := range sizes {
		if values[1+i] == nil {
			continue
		}
		hdrs[i] = splitLibAsset(*values[1+i], size)
	}
	f.Type, f.Balance, f.Manufacturer = hdrs[0], hdrs[1], hdrs[2]

	for i := 0; i < 2; i++ {
		if values[4+i] != nil {
			f.Level[i] = *values[4+i]
		}
	}

	partBits := 10
	if isWeapon {
		partBits = 11
	}
	for _, v := range values[6:] {
		if v == nil {
			f.Parts = append(f.Parts, nil)
			continue
		}
		hf := splitLibAsset(*v, partBits)
		f.Parts = append(f.Parts, &hf)
	}
	return f, nil
}

// WrapFields packs and obfuscates f in one step.
func WrapFields(f *Fields) ([]byte, error) {
	if !KnownStructVersions[f.StructVersion] {
		return nil, ErrStructVersion
	}
	return Wrap(f.IsWeapon, f.ToValues(), f.Key, f.StructVersion), nil
}

// UnwrapFields is the inverse of WrapFields.
func UnwrapFields(data []byte) (*Fields, error) {
	isWeapon, values, key, structVersion, err := Unwrap(data)
	if err != nil {
		return nil, err
	}
	if !KnownStructVersions[structVersion] {
		return nil, ErrStructVersion
	}
	return FieldsFromValues(isWeapon, values, key, structVersion)
}
