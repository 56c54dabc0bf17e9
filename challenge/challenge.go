// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package challenge decodes and encodes the fixed-layout challenge-log
// block (C7): a 10-byte header followed by a run of 12-byte counter
// records, optionally annotated for display from an external catalog.
package challenge

import (
	"encoding/binary"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "challenge: " + string(e) }

const (
	headerSize = 10
	recordSize = 12
)

// Record is one challenge counter. FirstOne and SecondOne are unexplained
// flag bytes the game always sets but whose meaning was never determined;
// they are preserved byte-for-byte across a decode/encode round trip.
type Record struct {
	ID            uint16
	FirstOne      uint8
	TotalValue    uint32
	SecondOne     uint8
	PreviousValue uint32

	// Annotation fields, populated only when Decode finds ID in the
	// supplied Catalog. They are display metadata only: Encode ignores
	// them entirely, so a round trip through Decode then Encode is exact
	// regardless of whether a catalog was supplied.
	IDText, Category, Name string
}

// CatalogEntry names one known challenge id and carries the data the
// mutation engine needs to unlock it or rewrite its counter: the DLC it
// belongs to (for an unlock entry's dlc_id/is_from_dlc fields), and its
// maximum and bonus values (for the zero/max/bonus and overflow-fix
// value mutations).
type CatalogEntry struct {
	IDText, Category, Name string

	DLC, IsFromDLC uint64

	// Max is the challenge's maximum incremental value (added to
	// PreviousValue by the "max" operation, and the basis for the
	// overflow fix's replacement value).
	Max uint32

	// Bonus is the challenge's bonus value; zero means the challenge has
	// no bonus tier, matching the reference tool's falsy `.bonus` check.
	Bonus uint32
}

// Catalog maps challenge id to its display metadata.
type Catalog map[uint16]CatalogEntry

// Log is the decoded challenge-log block.
type Log struct {
	Unknown uint32
	Records []Record
}

// Decode parses data using the given byte order, annotating any record
// whose id appears in catalog (nil is a valid empty catalog).
func Decode(data []byte, order binary.ByteOrder, catalog Catalog) (*Log, error) {
	if len(data) < headerSize {
		return nil, Error("challenge block shorter than its header")
	}
	unknown := order.Uint32(data[0:4])
	sizeInBytes := order.Uint32(data[4:8])
	count := order.Uint16(data[8:10])

	if int(sizeInBytes)+8 != len(data) {
		return nil, Error("challenge block size field does not match its length")
	}
	if int(count)*recordSize != int(sizeInBytes)-2 {
		return nil, Error("challenge record count does not match its size field")
	}

	log := &Log{Unknown: unknown, Records: make([]Record, count)}
	for i := 0; i < int(count); i++ {
		off := headerSize + i*recordSize
		rec := Record{
			ID:            order.Uint16(data[off : off+2]),
			FirstOne:      data[off+2],
			TotalValue:    order.Uint32(data[off+3 : off+7]),
			SecondOne:     data[off+7],
			PreviousValue: order.Uint32(data[off+8 : off+12]),
		}
		if info, ok := catalog[rec.ID]; ok {
			rec.IDText = info.IDText
			rec.Category = info.Category
			rec.Name = info.Name
		}
		log.Records[i] = rec
	}
	return log, nil
}

// Encode serializes log using the given byte order, recomputing
// size_in_bytes and the record count from len(log.Records); Unknown is
// preserved as given. Annotation fields on each Record are not written.
func Encode(log *Log, order binary.ByteOrder) []byte {
	n := len(log.Records)
	buf := make([]byte, headerSize+n*recordSize)
	order.PutUint32(buf[0:4], log.Unknown)
	order.PutUint32(buf[4:8], uint32(n*recordSize+2))
	order.PutUint16(buf[8:10], uint16(n))

	for i, rec := range log.Records {
		off := headerSize + i*recordSize
		order.PutUint16(buf[off:off+2], rec.ID)
		buf[off+2] = rec.FirstOne
		order.PutUint32(buf[off+3:off+7], rec.TotalValue)
		buf[off+7] = rec.SecondOne
		order.PutUint32(buf[off+8:off+12], rec.PreviousValue)
	}
	return buf
}
