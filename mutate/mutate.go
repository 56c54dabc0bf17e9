// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package mutate applies a declarative set of character edits (C9) to a
// decoded player record.Tree: level/XP, currency, item levels, backpack
// and bank size, gun slots, feature unlocks, ammo-pool maximization, and
// the Overpower level synthetic item.
package mutate

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/dsnet/bordersave/challenge"
	"github.com/dsnet/bordersave/gamedata"
	"github.com/dsnet/bordersave/item"
	"github.com/dsnet/bordersave/record"
	"github.com/dsnet/bordersave/schema"
	"github.com/dsnet/bordersave/wire"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "mutate: " + string(e) }

// Unlock feature names recognized in Config.Unlock.
const (
	UnlockSlaughterdome = "slaughterdome"
	UnlockTVHM          = "tvhm"
	UnlockUVHM          = "uvhm"
	UnlockChallenges    = "challenges"
	UnlockAmmo          = "ammo"
)

// Challenge value-mutation choice words recognized in Config.ChallengeOps.
// Combinable: applying more than one in the same pass is meaningful (see
// applyChallengeValues).
const (
	ChallengeZero  = "zero"
	ChallengeMax   = "max"
	ChallengeBonus = "bonus"
)

// overflowThreshold is the total_value a recognized challenge must reach
// or exceed before --fix-challenge-overflow replaces it.
const overflowThreshold = 2000000000

// player field tags this package reads or writes. Named here rather than
// inlined since the same tag is touched from more than one mutation step.
const (
	tagLevel          = 2
	tagExperience     = 3
	tagMode           = 7 // 0 normal, 1 TVHM, 2 UVHM
	tagCurrency       = 6
	tagAmmoPools      = 11
	tagSlots          = 13
	tagNVHMMissions   = 18
	tagSlaughterdome  = 23
	tagSDNotify       = 24
	tagBackpackSDUs   = 36
	tagChallengeLog   = 15
	tagChallengeUnlks = 38
	tagItems          = 53
	tagWeapons        = 54
	tagBank           = 56
)

// Config is one mutation pass, mirroring the reference tool's
// command-line mutation flags one for one; a nil pointer field means
// "leave this alone".
type Config struct {
	Level *int

	Money, Eridium, Moonstone, Seraph, Torgue *int64

	// ItemLevels, when non-nil, sets every item/weapon to this level (or,
	// if *ItemLevels <= 0, to the character's current level).
	ItemLevels      *int
	ForceItemLevels bool

	OpLevel *int

	Backpack *int
	Bank     *int
	GunSlots *int

	CopyNVHMMissions bool

	Unlock map[string]bool

	MaxAmmo bool

	// Challenges is the catalog consulted by Unlock[UnlockChallenges] (to
	// fill in any challenge the save doesn't already have an unlock entry
	// for), by ChallengeOps (to look up each recognized challenge's
	// maximum/bonus values), and by FixChallengeOverflow. A challenge id
	// absent from this catalog is left untouched by all three.
	Challenges challenge.Catalog

	// ChallengeOps selects the zero/max/bonus value mutations applied to
	// every recognized entry of the player's challenge log (player tag
	// 15); see ChallengeZero/ChallengeMax/ChallengeBonus. Combinable.
	ChallengeOps map[string]bool

	// FixChallengeOverflow replaces the total_value of any recognized
	// challenge that has wrapped past its overflow threshold.
	FixChallengeOverflow bool
}

func firstEntry(t record.Tree, tag int) (record.Entry, bool) {
	es, ok := t[tag]
	if !ok || len(es) == 0 {
		return record.Entry{}, false
	}
	return es[0], true
}

func setFirst(t record.Tree, tag, wireType int, value interface{}) {
	t[tag] = []record.Entry{{WireType: wireType, Value: value}}
}

// Apply runs every non-nil/non-empty mutation in cfg against player,
// modifying it in place. bigEndian must match the byte order the
// container's challenge-log block (player tag 15) was decoded with; the
// endianness is a single value threaded through from the container
// header, never a global.
func Apply(player record.Tree, cfg *Config, bigEndian bool) error {
	if cfg.Level != nil {
		if err := applyLevel(player, *cfg.Level); err != nil {
			return err
		}
	}
	if cfg.Money != nil || cfg.Eridium != nil || cfg.Moonstone != nil || cfg.Seraph != nil || cfg.Torgue != nil {
		if err := applyCurrency(player, cfg); err != nil {
			return err
		}
	}
	if cfg.ItemLevels != nil {
		if err := applyItemLevels(player, *cfg.ItemLevels, cfg.ForceItemLevels); err != nil {
			return err
		}
	}
	if (cfg.OpLevel != nil || cfg.CopyNVHMMissions) && cfg.Unlock == nil {
		// Both steps may request a UVHM unlock through this map.
		cfg.Unlock = map[string]bool{}
	}
	if cfg.OpLevel != nil {
		if err := applyOpLevel(player, *cfg.OpLevel, cfg.Unlock); err != nil {
			return err
		}
	}
	if cfg.Backpack != nil {
		if err := applyBackpack(player, *cfg.Backpack); err != nil {
			return err
		}
	}
	if cfg.Bank != nil {
		if err := applyBank(player, *cfg.Bank); err != nil {
			return err
		}
	}
	if cfg.GunSlots != nil {
		if err := applyGunSlots(player, *cfg.GunSlots); err != nil {
			return err
		}
	}
	if cfg.CopyNVHMMissions {
		if err := applyCopyNVHMMissions(player, cfg.Unlock); err != nil {
			return err
		}
	}
	if len(cfg.Unlock) > 0 {
		if err := applyUnlocks(player, cfg); err != nil {
			return err
		}
	}
	if cfg.MaxAmmo {
		if err := applyMaxAmmo(player); err != nil {
			return err
		}
	}
	if len(cfg.ChallengeOps) > 0 {
		if err := applyChallengeValues(player, bigEndian, cfg.Challenges, cfg.ChallengeOps); err != nil {
			return err
		}
	}
	if cfg.FixChallengeOverflow {
		if err := applyFixChallengeOverflow(player, bigEndian, cfg.Challenges); err != nil {
			return err
		}
	}
	return nil
}

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// challengeLogBytes locates the player's single challenge-log entry
// (player[15][0], whose length-delimited value holds the raw block verbatim
// rather than a nested field-record message).
func challengeLogBytes(player record.Tree) ([]byte, error) {
	entry, ok := firstEntry(player, tagChallengeLog)
	if !ok {
		return nil, Error("player record has no challenge-log field")
	}
	return entry.Bytes(), nil
}

// applyChallengeValues implements the zero/max/bonus value mutations
// (§4.9's `challenges` option, distinct from Unlock[UnlockChallenges]'s
// append-missing-entries behavior): for every challenge-log record whose
// id the catalog recognizes, zero resets total_value to previous_value,
// max raises it to previous_value+catalog max, and bonus (only for a
// challenge with a nonzero bonus) raises it further to
// previous_value+catalog bonus if that is higher than whatever zero/max
// already produced.
func applyChallengeValues(player record.Tree, bigEndian bool, catalog challenge.Catalog, ops map[string]bool) error {
	order := byteOrder(bigEndian)
	raw, err := challengeLogBytes(player)
	if err != nil {
		return err
	}
	log, err := challenge.Decode(raw, order, catalog)
	if err != nil {
		return err
	}

	doZero, doMax, doBonus := ops[ChallengeZero], ops[ChallengeMax], ops[ChallengeBonus]
	for i, rec := range log.Records {
		entry, ok := catalog[rec.ID]
		if !ok {
			continue
		}
		if doZero {
			rec.TotalValue = rec.PreviousValue
		}
		if doMax {
			rec.TotalValue = rec.PreviousValue + entry.Max
		}
		if doBonus && entry.Bonus != 0 {
			bonusValue := rec.PreviousValue + entry.Bonus
			if rec.TotalValue < bonusValue {
				rec.TotalValue = bonusValue
			}
		}
		log.Records[i] = rec
	}

	setFirst(player, tagChallengeLog, record.LengthDelim, challenge.Encode(log, order))
	return nil
}

// applyFixChallengeOverflow implements §4.9's `fix_challenge_overflow`
// option: any recognized challenge whose total_value has wrapped past
// overflowThreshold is reset to one past its catalog max.
func applyFixChallengeOverflow(player record.Tree, bigEndian bool, catalog challenge.Catalog) error {
	order := byteOrder(bigEndian)
	raw, err := challengeLogBytes(player)
	if err != nil {
		return err
	}
	log, err := challenge.Decode(raw, order, catalog)
	if err != nil {
		return err
	}

	for i, rec := range log.Records {
		entry, ok := catalog[rec.ID]
		if !ok {
			continue
		}
		if rec.TotalValue >= overflowThreshold {
			rec.TotalValue = entry.Max + 1
			log.Records[i] = rec
		}
	}

	setFirst(player, tagChallengeLog, record.LengthDelim, challenge.Encode(log, order))
	return nil
}

func applyLevel(player record.Tree, level int) error {
	if level < 1 || level > len(gamedata.RequiredXP) {
		return Error("invalid character level")
	}
	lower := gamedata.RequiredXP[level-1]
	xpEntry, ok := firstEntry(player, tagExperience)
	if !ok {
		return Error("player record has no experience field")
	}
	xp := xpEntry.Uint64()
	if level == len(gamedata.RequiredXP) {
		if xp != lower {
			setFirst(player, tagExperience, record.Varint, lower)
		}
	} else {
		upper := gamedata.RequiredXP[level]
		if xp < lower || xp >= upper {
			setFirst(player, tagExperience, record.Varint, lower)
		}
	}
	setFirst(player, tagLevel, record.Varint, uint64(level))
	return nil
}

func applyCurrency(player record.Tree, cfg *Config) error {
	raw, ok := firstEntry(player, tagCurrency)
	if !ok {
		return Error("player record has no currency field")
	}
	values, err := wire.ReadRepeated(raw.Bytes(), record.Varint)
	if err != nil {
		return err
	}
	set := func(idx int, v int64) {
		for len(values) <= idx {
			values = append(values, 0)
		}
		values[idx] = uint64(v)
	}
	if cfg.Money != nil {
		set(0, *cfg.Money)
	}
	// Eridium (BL2) and Moonstone (TPS) share the same wire slot; whichever
	// the caller supplies wins.
	if cfg.Eridium != nil {
		set(1, *cfg.Eridium)
	}
	if cfg.Moonstone != nil {
		set(1, *cfg.Moonstone)
	}
	if cfg.Seraph != nil {
		set(2, *cfg.Seraph)
	}
	if cfg.Torgue != nil {
		set(4, *cfg.Torgue)
	}
	setFirst(player, tagCurrency, record.LengthDelim, wire.WriteRepeated(values, record.Varint))
	return nil
}

func applyItemLevels(player record.Tree, requested int, force bool) error {
	level := requested
	if level <= 0 {
		lvlEntry, ok := firstEntry(player, tagLevel)
		if !ok {
			return Error("player record has no level field")
		}
		level = int(lvlEntry.Uint64())
	}
	for _, tag := range []int{tagItems, tagWeapons} {
		entries := player[tag]
		for i, e := range entries {
			fieldData, err := wire.Decode(e.Bytes())
			if err != nil {
				return err
			}
			itemEntry, ok := firstEntry(fieldData, 1)
			if !ok {
				continue
			}
			isWeapon, values, key, structVersion, err := item.Unwrap(itemEntry.Bytes())
			if err != nil {
				return err
			}
			if len(values) < 6 {
				continue
			}
			if !force && (values[4] == nil || *values[4] <= 1) {
				continue
			}
			lvl := uint32(level)
			values[4] = &lvl
			values[5] = &lvl
			wrapped := item.Wrap(isWeapon, values, key, structVersion)
			setFirst(fieldData, 1, record.LengthDelim, wrapped)
			entries[i].Value = wire.Encode(fieldData)
		}
	}
	return nil
}

// applyOpLevel writes a character's Overpower level into the synthetic
// item field 53 uses to carry it, creating that item if it is not already
// present. Setting a level above 0 also requires UVHM, so a UVHM unlock is
// added to unlock here (and carried out by the later unlock step) if the
// caller didn't already ask for it.
func applyOpLevel(player record.Tree, level int, unlock map[string]bool) error {
	packed := gamedata.PackOpLevel(level)

	if level > 0 {
		modeEntry, _ := firstEntry(player, tagMode)
		if modeEntry.Value == nil || modeEntry.Uint64() < 2 {
			if unlock != nil && !unlock[UnlockUVHM] {
				unlock[UnlockUVHM] = true
			}
		}
	}

	for i, e := range player[tagItems] {
		fieldData, err := wire.Decode(e.Bytes())
		if err != nil {
			return err
		}
		itemEntry, ok := firstEntry(fieldData, 1)
		if !ok {
			continue
		}
		isWeapon, values, key, structVersion, err := item.Unwrap(itemEntry.Bytes())
		if err != nil {
			continue // not every field 53 entry need be a well-formed item
		}
		if isWeapon || len(values) == 0 || values[0] == nil || *values[0] != 255 {
			continue
		}
		allZero := true
		for _, v := range values[1:] {
			if v != nil && *v != 0 {
				allZero = false
				break
			}
		}
		if !allZero {
			continue
		}
		idEntry, ok := firstEntry(fieldData, 2)
		if !ok {
			continue
		}
		if uint32(-int32(idEntry.Uint64()))&0xff != gamedata.OpLevelMarkerID {
			continue
		}
		setFirst(fieldData, 2, record.Varint, packed)
		player[tagItems][i].Value = wire.Encode(fieldData)
		_ = structVersion
		_ = key
		return nil
	}

	entry := record.Tree{
		1: {{WireType: record.LengthDelim, Value: gamedata.OpLevelBaseData}},
		2: {{WireType: record.Varint, Value: packed}},
		3: {{WireType: record.Varint, Value: uint64(0)}},
		4: {{WireType: record.Varint, Value: uint64(0)}},
	}
	player[tagItems] = append(player[tagItems], record.Entry{WireType: record.LengthDelim, Value: wire.Encode(entry)})
	return nil
}

func sizeAndSDUCount(size, min, step, maxSDU int) (newSize, sduCount int) {
	sduCount = int(math.Ceil(float64(size-min) / float64(step)))
	if maxSDU > 0 && sduCount > maxSDU {
		sduCount = maxSDU
	}
	return min + sduCount*step, sduCount
}

func applyBackpack(player record.Tree, size int) error {
	newSize, sduCount := sizeAndSDUCount(size, gamedata.MinBackpackSize, gamedata.BackpackSDUStep, 0)

	slotsEntry, ok := firstEntry(player, tagSlots)
	if !ok {
		return Error("player record has no slots field")
	}
	slots, err := wire.Decode(slotsEntry.Bytes())
	if err != nil {
		return err
	}
	setFirst(slots, 1, record.Varint, uint64(newSize))
	setFirst(player, tagSlots, record.LengthDelim, wire.Encode(slots))

	sdus, err := sduList(player)
	if err != nil {
		return err
	}
	sdus = setSDUIndex(sdus, 7, sduCount)
	setFirst(player, tagBackpackSDUs, record.LengthDelim, wire.WriteRepeated(sdus, record.Varint))
	return nil
}

func applyBank(player record.Tree, size int) error {
	newSize, sduCount := sizeAndSDUCount(size, gamedata.MinBankSize, gamedata.BankSDUStep, 255)

	setFirst(player, tagBank, record.Varint, uint64(newSize))

	sdus, err := sduList(player)
	if err != nil {
		return err
	}
	sdus = setSDUIndex(sdus, 8, sduCount)
	setFirst(player, tagBackpackSDUs, record.LengthDelim, wire.WriteRepeated(sdus, record.Varint))
	return nil
}

// sduList reads the packed black-market SDU level list (field 36, index
// 0), which both applyBackpack and applyBank share.
func sduList(player record.Tree) ([]uint64, error) {
	raw, ok := firstEntry(player, tagBackpackSDUs)
	if !ok {
		return nil, Error("player record has no black-market SDU field")
	}
	return wire.ReadRepeated(raw.Bytes(), record.Varint)
}

func setSDUIndex(sdus []uint64, idx, value int) []uint64 {
	for len(sdus) <= idx {
		sdus = append(sdus, 0)
	}
	sdus[idx] = uint64(value)
	return sdus
}

func applyGunSlots(player record.Tree, n int) error {
	slotsEntry, ok := firstEntry(player, tagSlots)
	if !ok {
		return Error("player record has no slots field")
	}
	slots, err := wire.Decode(slotsEntry.Bytes())
	if err != nil {
		return err
	}
	setFirst(slots, 2, record.Varint, uint64(n))
	if eq, ok := firstEntry(slots, 3); ok && int64(eq.Uint64()) > int64(n-2) {
		setFirst(slots, 3, record.Varint, uint64(n-2))
	}
	setFirst(player, tagSlots, record.LengthDelim, wire.Encode(slots))
	return nil
}

func applyCopyNVHMMissions(player record.Tree, unlock map[string]bool) error {
	if unlock != nil && !unlock[UnlockUVHM] {
		unlock[UnlockUVHM] = true
	}
	entries, ok := player[tagNVHMMissions]
	if !ok || len(entries) < 1 {
		return Error("player record has no NVHM mission field")
	}
	normal := entries[0]
	for len(entries) < 3 {
		entries = append(entries, normal)
	}
	entries[1] = normal
	entries[2] = normal
	player[tagNVHMMissions] = entries
	return nil
}

func applyUnlocks(player record.Tree, cfg *Config) error {
	unlock := cfg.Unlock
	if unlock[UnlockSlaughterdome] {
		unlocked := firstBytesOrEmpty(player, tagSlaughterdome)
		notifications := firstBytesOrEmpty(player, tagSDNotify)
		if !containsByte(unlocked, 1) {
			unlocked = append(unlocked, 1)
		}
		if !containsByte(notifications, 1) {
			notifications = append(notifications, 1)
		}
		setFirst(player, tagSlaughterdome, record.LengthDelim, unlocked)
		setFirst(player, tagSDNotify, record.LengthDelim, notifications)
	}
	if unlock[UnlockUVHM] {
		if e, ok := firstEntry(player, tagMode); !ok || e.Uint64() < 2 {
			setFirst(player, tagMode, record.Varint, uint64(2))
		}
	} else if unlock[UnlockTVHM] {
		if e, ok := firstEntry(player, tagMode); !ok || e.Uint64() < 1 {
			setFirst(player, tagMode, record.Varint, uint64(1))
		}
	}
	if unlock[UnlockChallenges] {
		if err := applyUnlockChallenges(player, cfg.Challenges); err != nil {
			return err
		}
	}
	if unlock[UnlockAmmo] {
		sdus, err := sduList(player)
		if err != nil {
			return err
		}
		for idx, key := range gamedata.BlackMarketKeys {
			if idx >= len(sdus) {
				break
			}
			if _, ok := gamedata.BlackMarketAmmo[key]; ok {
				sdus[idx] = 7
			}
		}
		setFirst(player, tagBackpackSDUs, record.LengthDelim, wire.WriteRepeated(sdus, record.Varint))
	}
	return nil
}

func firstBytesOrEmpty(t record.Tree, tag int) []byte {
	if e, ok := firstEntry(t, tag); ok {
		return append([]byte(nil), e.Bytes()...)
	}
	return nil
}

func containsByte(b []byte, v byte) bool {
	for _, c := range b {
		if c == v {
			return true
		}
	}
	return false
}

func applyUnlockChallenges(player record.Tree, known challenge.Catalog) error {
	seen := make(map[string]bool, len(player[tagChallengeUnlks]))
	for _, e := range player[tagChallengeUnlks] {
		sub, err := wire.Decode(e.Bytes())
		if err != nil {
			return err
		}
		fields, err := schema.Apply(sub, gamedata.ChallengeUnlockSchema)
		if err != nil {
			return err
		}
		if name, ok := fields["name"].([]byte); ok {
			seen[string(name)] = true
		}
	}

	ids := make([]int, 0, len(known))
	for id := range known {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	for _, id := range ids {
		info := known[uint16(id)]
		if seen[info.IDText] {
			continue
		}
		fields := schema.StructuredRecord{
			"dlc_id":      info.DLC,
			"is_from_dlc": info.IsFromDLC,
			"name":        []byte(info.IDText),
		}
		sub, err := schema.Remove(fields, gamedata.ChallengeUnlockSchema)
		if err != nil {
			return err
		}
		player[tagChallengeUnlks] = append(player[tagChallengeUnlks],
			record.Entry{WireType: record.LengthDelim, Value: wire.Encode(sub)})
	}
	return nil
}

func applyMaxAmmo(player record.Tree) error {
	sdus, err := sduList(player)
	if err != nil {
		return err
	}
	bmLevels := make(map[string]int, len(gamedata.BlackMarketKeys))
	for i, key := range gamedata.BlackMarketKeys {
		if i < len(sdus) {
			bmLevels[key] = int(sdus[i])
		}
	}

	maxAmmo := make(map[string]struct {
		level  int
		amount float64
	}, len(gamedata.BlackMarketAmmo))
	for ammoType, levels := range gamedata.BlackMarketAmmo {
		lvl := bmLevels[ammoType]
		if lvl >= len(levels) {
			lvl = len(levels) - 1
		}
		maxAmmo[ammoType] = struct {
			level  int
			amount float64
		}{lvl, float64(levels[lvl])}
	}

	seen := make(map[string]bool, len(maxAmmo))
	entries := player[tagAmmoPools]
	for i, e := range entries {
		sub, err := wire.Decode(e.Bytes())
		if err != nil {
			return err
		}
		fields, err := schema.Apply(sub, gamedata.AmmoResourceSchema)
		if err != nil {
			return err
		}
		resource, _ := fields["resource"].([]byte)
		ammoType, ok := gamedata.AmmoResourceLookup[string(resource)]
		if !ok {
			continue
		}
		seen[ammoType] = true
		m, ok := maxAmmo[ammoType]
		if !ok {
			continue
		}
		fields["level"] = uint64(m.level)
		fields["amount"] = float32(m.amount)
		rebuilt, err := schema.Remove(fields, gamedata.AmmoResourceSchema)
		if err != nil {
			return err
		}
		entries[i].Value = wire.Encode(rebuilt)
	}
	player[tagAmmoPools] = entries

	for ammoType := range bmLevels {
		if seen[ammoType] {
			continue
		}
		res, ok := gamedata.AmmoResources[ammoType]
		if !ok {
			continue
		}
		m, ok := maxAmmo[ammoType]
		if !ok {
			continue
		}
		fields := schema.StructuredRecord{
			"resource": []byte(res.Resource),
			"pool":     []byte(res.Pool),
			"level":    uint64(m.level),
			"amount":   float32(m.amount),
		}
		sub, err := schema.Remove(fields, gamedata.AmmoResourceSchema)
		if err != nil {
			return err
		}
		player[tagAmmoPools] = append(player[tagAmmoPools],
			record.Entry{WireType: record.LengthDelim, Value: wire.Encode(sub)})
	}
	return nil
}
