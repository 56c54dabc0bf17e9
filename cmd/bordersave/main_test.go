// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package main

import "testing"

func TestParseFlagsBuildsMutateConfig(t *testing.T) {
	cfg, in, out, err := parseFlags([]string{
		"--level=50", "--money=1000000", "--backpack=max", "--gunslots=4",
		"--unlock=slaughterdome,uvhm", "input.sav", "output.sav",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if in != "input.sav" || out != "output.sav" {
		t.Errorf("positional args = (%q, %q), want (input.sav, output.sav)", in, out)
	}
	if cfg.mutate.Level == nil || *cfg.mutate.Level != 50 {
		t.Errorf("Level = %v, want 50", cfg.mutate.Level)
	}
	if cfg.mutate.Money == nil || *cfg.mutate.Money != 1000000 {
		t.Errorf("Money = %v, want 1000000", cfg.mutate.Money)
	}
	if cfg.mutate.Backpack == nil || *cfg.mutate.Backpack != 39 {
		t.Errorf("Backpack = %v, want 39 (max)", cfg.mutate.Backpack)
	}
	if cfg.mutate.GunSlots == nil || *cfg.mutate.GunSlots != 4 {
		t.Errorf("GunSlots = %v, want 4", cfg.mutate.GunSlots)
	}
	if !cfg.mutate.Unlock["slaughterdome"] || !cfg.mutate.Unlock["uvhm"] {
		t.Errorf("Unlock = %v, want slaughterdome and uvhm set", cfg.mutate.Unlock)
	}
}

func TestParseFlagsLeavesUnsetMutationsNil(t *testing.T) {
	cfg, _, _, err := parseFlags([]string{"input.sav"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.mutate.Level != nil || cfg.mutate.Money != nil || cfg.mutate.Backpack != nil {
		t.Errorf("expected all optional mutate fields nil, got %+v", cfg.mutate)
	}
}

func TestParseFlagsRejectsOutOfRangeOpLevel(t *testing.T) {
	if _, _, _, err := parseFlags([]string{"--oplevel=11", "input.sav"}); err == nil {
		t.Error("expected an error for --oplevel=11")
	}
}

func TestParseFlagsRejectsOutOfRangeGunSlots(t *testing.T) {
	if _, _, _, err := parseFlags([]string{"--gunslots=5", "input.sav"}); err == nil {
		t.Error("expected an error for --gunslots=5")
	}
}

func TestParseFlagsRequiresInputFilename(t *testing.T) {
	if _, _, _, err := parseFlags(nil); err == nil {
		t.Error("expected an error when no input filename and no --all-in-dir are given")
	}
}

func TestParseSizeOrMax(t *testing.T) {
	n, err := parseSizeOrMax("max", 39)
	if err != nil || n != 39 {
		t.Errorf("parseSizeOrMax(max, 39) = (%d, %v), want (39, nil)", n, err)
	}
	n, err = parseSizeOrMax("20", 39)
	if err != nil || n != 20 {
		t.Errorf("parseSizeOrMax(20, 39) = (%d, %v), want (20, nil)", n, err)
	}
	if _, err := parseSizeOrMax("nope", 39); err == nil {
		t.Error("expected an error for a non-numeric, non-max size")
	}
}

func TestConfirmOverwriteSkipsMissingFile(t *testing.T) {
	if err := confirmOverwrite("/nonexistent/path/does-not-exist.sav", false, false); err != nil {
		t.Errorf("confirmOverwrite on a missing file = %v, want nil", err)
	}
}

func TestConfirmOverwriteForcedAlwaysSkips(t *testing.T) {
	if err := confirmOverwrite("", true, false); err != nil {
		t.Errorf("confirmOverwrite with force = %v, want nil", err)
	}
}
