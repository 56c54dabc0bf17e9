// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Command bordersave reads, mutates, and rewrites a Borderlands 2
// character save file. It wires together container (the outer
// digest/compression/bitstream container), mutate (character edits),
// itemcode (item-code import/export), and jsonsave (JSON interchange)
// behind a single flag surface modeled on the reference command-line
// tool.
package main

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	flag "github.com/spf13/pflag"

	"github.com/dsnet/bordersave/cmd/bordersave/internal/applog"
	"github.com/dsnet/bordersave/container"
	"github.com/dsnet/bordersave/gamedata"
	"github.com/dsnet/bordersave/itemcode"
	"github.com/dsnet/bordersave/jsonsave"
	"github.com/dsnet/bordersave/mutate"
	"github.com/dsnet/bordersave/record"
	"github.com/dsnet/bordersave/saveerr"
	"github.com/dsnet/bordersave/schema"
	"github.com/dsnet/bordersave/wire"
)

// Output modes accepted by -o/--output.
const (
	outSavegame   = "savegame"
	outDecoded    = "decoded"
	outDecodedRaw = "decodedjson"
	outJSON       = "json"
	outItems      = "items"
	outNone       = "none"
)

// itemPrefix is the item-code line prefix this build uses; the reference
// tool keys this off the active game (BL2 here), per AppBL2.item_prefix.
const itemPrefix = "BL2"

// emptySchema stands in for the top-level player record schema: no
// complete one was available to ground against (see DESIGN.md), so every
// tag falls through to the schema package's "_raw" bucket, which both
// jsonsave.EncodeSchema/DecodeSchema and the "json" output mode round-trip
// losslessly.
func emptySchema() schema.Schema { return schema.Schema{} }

// config collects every parsed flag alongside the mutate.Config it
// assembles from them.
type config struct {
	output       string
	importItems  string
	fromJSON     bool
	bigEndian    bool
	bigEndianSet bool
	quiet        bool
	verbose      bool
	force        bool
	allInDir     string

	mutate mutate.Config
}

func main() {
	cfg, inputPath, outputPath, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "bordersave:", err)
		os.Exit(2)
	}
	log := applog.New(os.Stderr, cfg.verbose && !cfg.quiet)

	if cfg.allInDir != "" {
		if err := runAllInDir(cfg, log); err != nil {
			log.Error("batch run failed", err)
			os.Exit(1)
		}
		return
	}

	if err := runOne(cfg, inputPath, outputPath, log); err != nil {
		log.Error("run failed", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (cfg config, inputPath, outputPath string, err error) {
	fs := flag.NewFlagSet("bordersave", flag.ContinueOnError)

	fs.StringVarP(&cfg.output, "output", "o", outSavegame,
		"output format: savegame, decoded, decodedjson, json, items, none")
	fs.StringVarP(&cfg.importItems, "import-items", "i", "", "import item codes from this file before mutating")
	fs.BoolVarP(&cfg.fromJSON, "json", "j", false, "read the input file as JSON rather than a save file")
	fs.BoolVarP(&cfg.bigEndian, "bigendian", "b", false, "write the output container as big-endian (Xbox 360)")
	fs.BoolVarP(&cfg.quiet, "quiet", "q", false, "suppress notice and debug messages")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug messages")
	fs.BoolVarP(&cfg.force, "force", "f", false, "overwrite the output file without confirmation")
	fs.StringVar(&cfg.allInDir, "all-in-dir", "", "process every file in this directory instead of a single input/output pair")

	var level int
	fs.IntVar(&level, "level", 0, "set the character level")

	var money, eridium, seraph, torgue int64
	fs.Int64Var(&money, "money", 0, "set the money total")
	fs.Int64Var(&eridium, "eridium", 0, "set the Eridium/Moonstone total")
	fs.Int64Var(&seraph, "seraph", 0, "set the Seraph crystal total")
	fs.Int64Var(&torgue, "torgue", 0, "set the Torgue token total")

	var itemLevels int
	fs.IntVar(&itemLevels, "itemlevels", 0, "set every item/weapon to this level (0 means the character's level)")
	fs.BoolVar(&cfg.mutate.ForceItemLevels, "forceitemlevels", false, "also raise items that are currently unleveled")

	var oplevel int
	fs.IntVar(&oplevel, "oplevel", 0, "set the character's Overpower level (0-10)")

	var backpack, bank string
	fs.StringVar(&backpack, "backpack", "", `set backpack size, or "max"`)
	fs.StringVar(&bank, "bank", "", `set bank size, or "max"`)

	var gunslots int
	fs.IntVar(&gunslots, "gunslots", 0, "set the number of equippable gun slots (2-4)")

	fs.BoolVar(&cfg.mutate.CopyNVHMMissions, "copy-nvhm-missions", false, "copy normal-playthrough mission state into TVHM and UVHM")

	var unlock []string
	fs.StringSliceVar(&unlock, "unlock", nil, "comma-separated: slaughterdome,tvhm,uvhm,challenges,ammo")

	var challenges []string
	fs.StringSliceVar(&challenges, "challenges", nil, "comma-separated: zero,max,bonus")

	fs.BoolVar(&cfg.mutate.MaxAmmo, "maxammo", false, "fill every ammo pool to its black-market-adjusted maximum")
	fs.BoolVar(&cfg.mutate.FixChallengeOverflow, "fix-challenge-overflow", false, "reset any challenge counter that has wrapped past its overflow threshold")

	if err := fs.Parse(args); err != nil {
		return cfg, "", "", err
	}

	if fs.Changed("level") {
		cfg.mutate.Level = &level
	}
	if fs.Changed("money") {
		cfg.mutate.Money = &money
	}
	if fs.Changed("eridium") {
		cfg.mutate.Eridium = &eridium
	}
	if fs.Changed("seraph") {
		cfg.mutate.Seraph = &seraph
	}
	if fs.Changed("torgue") {
		cfg.mutate.Torgue = &torgue
	}
	if fs.Changed("itemlevels") {
		cfg.mutate.ItemLevels = &itemLevels
	}
	if fs.Changed("oplevel") {
		if oplevel < 0 || oplevel > 10 {
			return cfg, "", "", fmt.Errorf("--oplevel must be between 0 and 10")
		}
		cfg.mutate.OpLevel = &oplevel
	}
	if fs.Changed("gunslots") {
		if gunslots < 2 || gunslots > 4 {
			return cfg, "", "", fmt.Errorf("--gunslots must be between 2 and 4")
		}
		cfg.mutate.GunSlots = &gunslots
	}
	if backpack != "" {
		n, err := parseSizeOrMax(backpack, gamedata.MaxBackpackSize)
		if err != nil {
			return cfg, "", "", fmt.Errorf("--backpack: %w", err)
		}
		cfg.mutate.Backpack = &n
	}
	if bank != "" {
		n, err := parseSizeOrMax(bank, gamedata.MaxBankSize)
		if err != nil {
			return cfg, "", "", fmt.Errorf("--bank: %w", err)
		}
		cfg.mutate.Bank = &n
	}
	if len(unlock) > 0 {
		cfg.mutate.Unlock = map[string]bool{}
		for _, u := range unlock {
			cfg.mutate.Unlock[strings.TrimSpace(u)] = true
		}
	}
	if len(challenges) > 0 {
		cfg.mutate.ChallengeOps = map[string]bool{}
		for _, c := range challenges {
			c = strings.TrimSpace(c)
			switch c {
			case mutate.ChallengeZero, mutate.ChallengeMax, mutate.ChallengeBonus:
				cfg.mutate.ChallengeOps[c] = true
			default:
				return cfg, "", "", fmt.Errorf("--challenges: unrecognized choice %q", c)
			}
		}
	}
	if len(cfg.mutate.ChallengeOps) > 0 || cfg.mutate.FixChallengeOverflow || (cfg.mutate.Unlock != nil && cfg.mutate.Unlock[mutate.UnlockChallenges]) {
		cfg.mutate.Challenges = gamedata.Catalog
	}
	cfg.bigEndianSet = fs.Changed("bigendian")

	switch fs.NArg() {
	case 0:
		if cfg.allInDir == "" {
			return cfg, "", "", fmt.Errorf("missing input filename")
		}
	case 1:
		inputPath = fs.Arg(0)
	case 2:
		inputPath = fs.Arg(0)
		outputPath = fs.Arg(1)
	default:
		return cfg, "", "", fmt.Errorf("too many positional arguments")
	}
	return cfg, inputPath, outputPath, nil
}

// parseSizeOrMax accepts either a decimal size or the literal "max", as
// the reference tool's --backpack/--bank flags do.
func parseSizeOrMax(s string, max int) (int, error) {
	if strings.EqualFold(s, "max") {
		return max, nil
	}
	return strconv.Atoi(s)
}

// runOne performs one full read-decode-mutate-write pass.
func runOne(cfg config, inputPath, outputPath string, log *applog.Logger) error {
	if inputPath == "" {
		return saveerr.New(saveerr.IO, "main.runOne", fmt.Errorf("missing input filename"))
	}
	data, err := readInput(inputPath)
	if err != nil {
		return saveerr.New(saveerr.IO, "main.runOne", err)
	}
	log.Debug("read " + strconv.Itoa(len(data)) + " bytes from " + displayPath(inputPath))

	player, bigEndian, err := decodeInput(cfg, data)
	if err != nil {
		return err
	}
	log.Debug("decoded player record")

	if cfg.importItems != "" {
		codelist, err := ioutil.ReadFile(cfg.importItems)
		if err != nil {
			return saveerr.New(saveerr.IO, "main.runOne", err)
		}
		newKey := func() int32 { return rand.Int31() }
		if err := itemcode.Import(player, itemPrefix, string(codelist), newKey); err != nil {
			return err
		}
		log.Debug("imported item codes from " + cfg.importItems)
	}

	if err := mutate.Apply(player, &cfg.mutate, bigEndian); err != nil {
		return err
	}

	if cfg.bigEndianSet {
		bigEndian = cfg.bigEndian
	}
	return writeOutput(cfg, player, bigEndian, inputPath == "-", outputPath, log)
}

// decodeInput parses data as either a save container or a JSON dump,
// returning the player record and the endianness the container was
// (or, for JSON, should be) written in.
func decodeInput(cfg config, data []byte) (record.Tree, bool, error) {
	if cfg.fromJSON {
		player, err := jsonsave.DecodeAuto(data, emptySchema())
		return player, cfg.bigEndian, err
	}
	player, hdr, err := container.Decode(data)
	return player, hdr.BigEndian, err
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return ioutil.ReadAll(os.Stdin)
	}
	return ioutil.ReadFile(path)
}

func displayPath(path string) string {
	if path == "-" {
		return "<stdin>"
	}
	return path
}

// writeOutput dispatches on cfg.output, gating a file overwrite behind a
// confirmation prompt unless --force was given or the input itself came
// from stdin (in which case stdin can't double as the confirmation
// prompt's input, so an unconfirmed overwrite is a fatal error instead).
func writeOutput(cfg config, player record.Tree, bigEndian, inputIsStdin bool, outputPath string, log *applog.Logger) error {
	if cfg.output == outNone {
		log.Debug("output suppressed (--output=none)")
		return nil
	}
	if err := confirmOverwrite(outputPath, cfg.force, inputIsStdin); err != nil {
		return saveerr.New(saveerr.IO, "main.writeOutput", err)
	}
	w, err := openOutput(outputPath)
	if err != nil {
		return saveerr.New(saveerr.IO, "main.writeOutput", err)
	}
	defer w.Close()

	switch cfg.output {
	case outSavegame:
		_, err = w.Write(container.Encode(player, bigEndian))
	case outDecoded:
		_, err = w.Write(wire.Encode(player))
	case outDecodedRaw:
		var data []byte
		if data, err = jsonsave.EncodeRaw(player); err == nil {
			_, err = w.Write(data)
		}
	case outJSON:
		var data []byte
		if data, err = jsonsave.EncodeSchema(player, emptySchema()); err == nil {
			_, err = w.Write(data)
		}
	case outItems:
		err = itemcode.Export(player, itemPrefix, w)
	default:
		err = fmt.Errorf("unknown output mode %q", cfg.output)
	}
	if err != nil {
		return saveerr.New(saveerr.IO, "main.writeOutput", err)
	}
	if !cfg.quiet {
		log.Notice("wrote " + displayPath(outputPath) + " as " + cfg.output)
	}
	return nil
}

func confirmOverwrite(path string, force, inputIsStdin bool) error {
	if force || path == "" || path == "-" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if inputIsStdin {
		return fmt.Errorf("output file %q already exists; rerun with --force since input is from stdin and a confirmation prompt can't also read stdin", path)
	}
	fmt.Fprintf(os.Stderr, "overwrite %q? [y/N] ", path)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	if line != "y" && line != "yes" {
		return fmt.Errorf("not overwriting %q", path)
	}
	return nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// runAllInDir fans a bounded worker pool out across every regular file in
// dir, each processed independently end to end; the output for each
// input file is written alongside it with a ".out" suffix.
func runAllInDir(cfg config, log *applog.Logger) error {
	entries, err := ioutil.ReadDir(cfg.allInDir)
	if err != nil {
		return saveerr.New(saveerr.IO, "main.runAllInDir", err)
	}

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		inPath := filepath.Join(cfg.allInDir, entry.Name())
		outPath := inPath + ".out"

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := runOne(cfg, inPath, outPath, log); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", inPath, err)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}
