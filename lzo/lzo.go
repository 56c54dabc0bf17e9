// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package lzo implements decompression and compression of the LZO1X-1
// byte-oriented literal/back-reference wire format used by the save
// container (C8). The format is fixed by the games themselves: the decoder
// must accept the complete command-byte space a reference encoder can
// produce. The encoder implemented here is intentionally minimal — it
// never emits a back-reference, only a single (possibly split) literal
// run followed by the standard end marker. That is a conformant encoding
// of any input, and the spec does not require byte-identical output from
// the encoder, only that decompressing it reproduce the input exactly.
package lzo

import "runtime"

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "lzo: " + string(e) }

var (
	// ErrCorrupt indicates a malformed command byte, a back-reference
	// whose distance or length falls outside the valid range, or a
	// stream that ends before its last token is complete.
	ErrCorrupt error = Error("compressed stream is corrupted")
)

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

// Distance limits for the four match classes. maxOffsetM1 bounds the
// short M1 form: a 2-byte match that follows 1-3 literals embedded in the
// previous match (or a first literal run of 1-3 bytes); an M1 opcode that
// follows a run of 4 or more literals instead copies 3 bytes from a
// distance biased past maxOffsetM2. maxOffsetM2 and
// maxOffsetM3 are the 11-bit and 14-bit variants; maxOffsetM4 shares
// maxOffsetM3's width but is biased by 0x4000 and additionally carries the
// end-of-stream sentinel (a zero pre-bias distance).
const (
	maxOffsetM1 = 1 << 10
	maxOffsetM2 = 1 << 11
	maxOffsetM3 = 1 << 14
	maxOffsetM4 = 0xbfff
)

// Decompress decompresses an LZO1X-1 stream produced by this package or by
// the reference game encoder.
func Decompress(src []byte) (dst []byte, err error) {
	defer errRecover(&err)

	if len(src) == 3 && src[0] == 0x11 && src[1] == 0x00 && src[2] == 0x00 {
		return []byte{}, nil
	}

	ip := 0
	next := func() byte {
		if ip >= len(src) {
			panic(ErrCorrupt)
		}
		b := src[ip]
		ip++
		return b
	}
	// readExtended consumes a run of zero bytes (each worth 255) followed
	// by a single non-zero terminator byte, and returns base plus the
	// accumulated total — the length-extension convention shared by
	// literal runs and M3/M4 matches.
	readExtended := func(base int) int {
		n := 0
		for {
			b := next()
			if b != 0 {
				return n*255 + int(b) + base
			}
			n++
		}
	}
	copyLiteral := func(dst []byte, n int) []byte {
		for i := 0; i < n; i++ {
			dst = append(dst, next())
		}
		return dst
	}
	copyMatch := func(dst []byte, dist, n int) []byte {
		if dist <= 0 || dist > len(dst) {
			panic(ErrCorrupt)
		}
		pos := len(dst) - dist
		for i := 0; i < n; i++ {
			dst = append(dst, dst[pos+i])
		}
		return dst
	}

	dst = make([]byte, 0, len(src)*3)

	// The very first token's literal run always has an explicit opcode:
	// the compact direct form (len = opcode-17) for short runs, or the
	// zero-extension form shared with later tokens for long ones.
	t := int(next())
	var n int
	switch {
	case t > 17:
		n = t - 17
	case t == 0:
		n = readExtended(18)
	default:
		n = t + 3
	}
	dst = copyLiteral(dst, n)

	// longRun records whether the latest literal copy was a run of 4 or
	// more bytes; it selects which M1 form an opcode below 16 denotes.
	longRun := n >= 4

	for {
		t := int(next())

		var mlen, dist int
		var embedByte byte

		switch {
		case t >= 64: // M2: 11-bit offset.
			mlen = (t >> 5) + 1
			b := next()
			dist = 1 + ((t >> 2) & 0x7) + (int(b) << 3)
			embedByte = byte(t)
		case t >= 32: // M3: 14-bit offset, length-extensible.
			lf := t & 0x1f
			if lf == 0 {
				mlen = readExtended(33)
			} else {
				mlen = lf + 2
			}
			b0 := next()
			b1 := next()
			dist = 1 + (int(b0) >> 2) + (int(b1) << 6)
			embedByte = b0
		case t >= 16: // M4: 14-bit offset with a carried high bit, or EOF.
			headBit := t & 0x8
			lf := t & 0x7
			if lf == 0 {
				mlen = readExtended(9)
			} else {
				mlen = lf + 2
			}
			b0 := next()
			b1 := next()
			distPre := (headBit << 11) + (int(b0) >> 2) + (int(b1) << 6)
			if distPre == 0 {
				return dst, nil // end-of-stream marker
			}
			dist = distPre + 0x4000
			embedByte = b0
		default: // M1: valid only directly after a literal copy.
			b := next()
			if longRun {
				dist = 1 + maxOffsetM2 + (t >> 2) + (int(b) << 2)
				mlen = 3
			} else {
				dist = 1 + (t >> 2) + (int(b) << 2) // 10-bit offset
				mlen = 2
			}
			embedByte = byte(t)
		}

		dst = copyMatch(dst, dist, mlen)

		embed := int(embedByte & 0x3)
		if embed > 0 {
			dst = copyLiteral(dst, embed)
			longRun = false
			continue // next byte is unambiguously a match opcode
		}

		// embed == 0 is ambiguous: it may mean "no literal run before the
		// next match" (next byte is itself a match opcode), or it may
		// mean the upcoming literal run was too long to embed and was
		// given its own explicit opcode instead.
		if ip >= len(src) {
			panic(ErrCorrupt)
		}
		if src[ip] >= 16 {
			continue
		}
		lt := int(next())
		var ln int
		if lt == 0 {
			ln = readExtended(18)
		} else {
			ln = lt + 3
		}
		dst = copyLiteral(dst, ln)
		longRun = true
	}
}

// Compress produces an LZO1X-1 stream that decompresses back to src. It
// never emits a back-reference (see the package doc comment).
func Compress(src []byte) []byte {
	if len(src) == 0 {
		return []byte{0x11, 0x00, 0x00}
	}

	out := make([]byte, 0, len(src)+len(src)/128+16)
	out = appendLiteralRun(out, src)
	out = append(out, 0x11, 0x00, 0x00) // end-of-stream marker
	return out
}

// appendLiteralRun appends src as one (possibly split) literal run, using
// the compact first-token form for runs of at most 238 bytes and the
// zero-extension form otherwise.
func appendLiteralRun(out []byte, src []byte) []byte {
	n := len(src)
	if n <= 238 {
		out = append(out, byte(17+n))
	} else {
		out = append(out, 0x00)
		rem := n - 18
		for rem > 255 {
			out = append(out, 0x00)
			rem -= 255
		}
		out = append(out, byte(rem))
	}
	return append(out, src...)
}
