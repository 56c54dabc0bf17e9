// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package applog

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNoticeAlwaysPrints(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Notice("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("Notice output = %q, want it to contain %q", buf.String(), "hello")
	}
}

func TestDebugSuppressedUnlessVerbose(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug("quiet message")
	if buf.Len() != 0 {
		t.Errorf("Debug with verbose=false wrote %q, want nothing", buf.String())
	}

	buf.Reset()
	New(&buf, true).Debug("loud message")
	if !strings.Contains(buf.String(), "loud message") {
		t.Errorf("Debug with verbose=true output = %q, want it to contain %q", buf.String(), "loud message")
	}
}

func TestErrorAlwaysPrints(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Error("failed", errors.New("boom"))
	out := buf.String()
	if !strings.Contains(out, "failed") || !strings.Contains(out, "boom") {
		t.Errorf("Error output = %q, want it to contain both %q and %q", out, "failed", "boom")
	}
}
