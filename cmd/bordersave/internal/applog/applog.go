// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package applog is the CLI's small logging facade, mirroring
// App.debug/App.notice/App.error from the reference tool: Notice always
// prints, Debug prints only when verbose, Error always prints and carries
// structured context via zerolog.
package applog

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger configured for this CLI's three message
// levels.
type Logger struct {
	z       zerolog.Logger
	verbose bool
}

// New builds a Logger writing to w. verbose enables Debug output; the CLI
// passes it as "--verbose" and not "--quiet".
func New(w io.Writer, verbose bool) *Logger {
	z := zerolog.New(w).With().Logger()
	return &Logger{z: z, verbose: verbose}
}

// Notice always prints, matching App.notice.
func (l *Logger) Notice(msg string) {
	l.z.Info().Msg(msg)
}

// Debug prints only when the logger was built with verbose=true, matching
// App.debug's "if self.config.verbose" guard.
func (l *Logger) Debug(msg string) {
	if !l.verbose {
		return
	}
	l.z.Debug().Msg(msg)
}

// Error always prints to the error stream, matching App.error.
func (l *Logger) Error(msg string, err error) {
	l.z.Error().Err(err).Msg(msg)
}
