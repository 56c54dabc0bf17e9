// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package container implements the outer save-file container (C8): digest
// verification, the structured header with its self-describing
// endianness, and composition of the block compressor (lzo), the
// prefix-code codec (prefix), and the field-record codec (wire) into one
// decode/encode pipeline.
package container

import (
	"crypto/sha1"
	"encoding/binary"
	"hash/crc32"

	"github.com/dsnet/bordersave/bitio"
	"github.com/dsnet/bordersave/lzo"
	"github.com/dsnet/bordersave/prefix"
	"github.com/dsnet/bordersave/record"
	"github.com/dsnet/bordersave/saveerr"
	"github.com/dsnet/bordersave/wire"
)

const (
	hostWrapperPrefix  = "CON "
	legacyRecoveryByte = 0xf0
	versionBigEndian   = 2
	versionLittleWire  = 0x02000000 // how versionBigEndian reads back when stored little-endian
	headerFixedLen     = 19         // total_size(4) + "WSG"(3) + version(4) + crc32(4) + uncompressed_size(4)
)

// Header is the parsed OuterHeader (§3): the structured fields preceding
// the bit-compressed payload.
type Header struct {
	BigEndian        bool
	CRC32            uint32
	UncompressedSize uint32
}

func (h Header) order() binary.ByteOrder {
	if h.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Decode runs the full container decode pipeline on a save file's raw
// bytes, returning the decoded field-record tree and the header it was
// found under (the caller typically re-encodes with the same
// endianness unless told otherwise).
func Decode(data []byte) (tree record.Tree, hdr Header, err error) {
	defer saveerr.Recover(&err)

	if len(data) >= len(hostWrapperPrefix) && string(data[:len(hostWrapperPrefix)]) == hostWrapperPrefix {
		saveerr.Panic(saveerr.New(saveerr.IO, "container.Decode",
			Error("file begins with a console host-container wrapper; extract the inner save first")))
	}
	if len(data) < sha1.Size {
		saveerr.Panic(saveerr.New(saveerr.Format, "container.Decode", Error("file too short to contain a digest")))
	}

	digest := data[:sha1.Size]
	body := data[sha1.Size:]
	sum := sha1.Sum(body)
	if string(digest) != string(sum[:]) {
		saveerr.Panic(saveerr.New(saveerr.Integrity, "container.Decode", Error("outer digest mismatch")))
	}

	decompressed, err := lzo.Decompress(body)
	if err != nil {
		// The reference game encoder always drops its own first command
		// byte before writing the block to disk (it happens to always be
		// 0xf0 for that encoder, a quirk nobody ever explained); recover it
		// before trying again. A save produced by this package's own,
		// simpler encoder never needs this fallback since Encode never
		// strips anything in the first place.
		decompressed, err = lzo.Decompress(append([]byte{legacyRecoveryByte}, body...))
		if err != nil {
			saveerr.Panic(saveerr.New(saveerr.Format, "container.Decode", err))
		}
	}
	if len(decompressed) < headerFixedLen {
		saveerr.Panic(saveerr.New(saveerr.Format, "container.Decode", Error("decompressed block too short for its header")))
	}
	if string(decompressed[4:7]) != "WSG" {
		saveerr.Panic(saveerr.New(saveerr.Format, "container.Decode", Error("bad magic; expected WSG")))
	}

	version := binary.BigEndian.Uint32(decompressed[7:11])
	switch version {
	case versionBigEndian:
		hdr.BigEndian = true
	case versionLittleWire:
		hdr.BigEndian = false
	default:
		saveerr.Panic(saveerr.New(saveerr.Format, "container.Decode", Error("unrecognized header version")))
	}

	order := hdr.order()
	hdr.CRC32 = order.Uint32(decompressed[11:15])
	hdr.UncompressedSize = order.Uint32(decompressed[15:19])

	br := bitio.NewReader(decompressed[headerFixedLen:])
	root := prefix.ReadTree(br)
	payload, err := prefix.Decode(br, root, int(hdr.UncompressedSize))
	if err != nil {
		saveerr.Panic(saveerr.New(saveerr.Format, "container.Decode", err))
	}

	if crc32.ChecksumIEEE(payload) != hdr.CRC32 {
		saveerr.Panic(saveerr.New(saveerr.Integrity, "container.Decode", Error("inner CRC-32 mismatch")))
	}

	tree, err = wire.Decode(payload)
	if err != nil {
		saveerr.Panic(saveerr.New(saveerr.Format, "container.Decode", err))
	}
	return tree, hdr, nil
}

// Encode is the exact inverse of Decode: field-encode, CRC-32, build and
// serialize a fresh prefix-code tree, bit-compress, append the trailing
// zero sentinel, prepend the structured header with recomputed sizes,
// block-compress, and prepend the SHA-1 digest of the result. Unlike the
// reference game encoder, this package's block compressor never drops its
// own leading command byte, so Decode never needs the legacy-byte recovery
// fallback for a file this function produced.
func Encode(tree record.Tree, bigEndian bool) []byte {
	payload := wire.Encode(tree)
	crc := crc32.ChecksumIEEE(payload)

	root := prefix.BuildTree(payload)
	bw := bitio.NewWriter()
	prefix.WriteTree(bw, root)
	prefix.Encode(bw, root, payload)
	bw.AlignByte()
	data := append(bw.Bytes(), 0x00, 0x00, 0x00, 0x00)

	order := binary.BigEndian
	if !bigEndian {
		order = binary.LittleEndian
	}

	header := make([]byte, headerFixedLen)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(data)+15))
	copy(header[4:7], "WSG")
	order.PutUint32(header[7:11], versionBigEndian)
	order.PutUint32(header[11:15], crc)
	order.PutUint32(header[15:19], uint32(len(payload)))

	compressed := lzo.Compress(append(header, data...))

	sum := sha1.Sum(compressed)
	return append(sum[:], compressed...)
}

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "container: " + string(e) }
