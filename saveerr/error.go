// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package saveerr defines the error taxonomy shared by every layer of the
// save codec, and the panic/recover plumbing that turns an internal panic
// into a single returned error at each package's public boundary.
package saveerr

import (
	"fmt"

	"github.com/dsnet/golib/errs"
)

// Kind classifies why an operation failed. The core is allowed to treat
// every kind as fatal and non-recoverable; Kind only changes the message
// and exit behavior a caller chooses to apply.
type Kind int

const (
	// Integrity indicates a digest or CRC mismatch.
	Integrity Kind = iota
	// Format indicates bad magic, an unknown version, or a malformed
	// compressed or bitstream payload.
	Format
	// Content indicates a value the codec understands structurally but
	// cannot resolve against the supplied game data (e.g. an unknown
	// ammo resource or challenge id).
	Content
	// Config indicates an invalid or nonsensical mutation request.
	Config
	// IO indicates a problem reading or writing the host file, including
	// detection of a host-container wrapper this tool does not accept.
	IO
)

func (k Kind) String() string {
	switch k {
	case Integrity:
		return "integrity"
	case Format:
		return "format"
	case Content:
		return "content"
	case Config:
		return "config"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the error type surfaced across every package boundary in this
// module. Op names the operation that failed (e.g. "container.Decode").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Panic raises err as a panic so that a deferred Recover further up the
// call stack can convert it back into a normal return value.
func Panic(err error) {
	errs.Panic(err)
}

// Assert panics with err (via Panic) if cond is false.
func Assert(cond bool, err error) {
	errs.Assert(cond, err)
}

// Recover is intended to be used in a defer immediately inside a public
// function: `defer saveerr.Recover(&err)`. It captures a panic raised via
// Panic/Assert into *err and leaves no panic raised at all alone; a
// runtime.Error or other unexpected panic value is re-panicked, since that
// indicates a bug rather than an expected fatal condition.
func Recover(err *error) {
	errs.Recover(err)
}
