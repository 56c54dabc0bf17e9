// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package gamedata holds the static tables a mutation pass needs but that
// aren't derivable from the save file itself: the character level/XP
// curve, backpack and bank SDU bounds, ammo pool identities and their
// black-market capacity ladders, the challenge-log catalog, and the
// schema.Schema fragments for an ammo-pool entry and a challenge-unlock
// entry of the player record.
package gamedata

import (
	"math"

	"github.com/dsnet/bordersave/challenge"
	"github.com/dsnet/bordersave/record"
	"github.com/dsnet/bordersave/schema"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "gamedata: " + string(e) }

// RequiredXP gives the cumulative experience required to reach each
// character level, indexed from level 1. RequiredXP[i] is the minimum XP
// for level i+1.
var RequiredXP = []uint64{
	0, 358, 1241, 2850, 5376, 8997, 13886, 20208, 28126, 37798,
	49377, 63016, 78861, 97061, 117757, 141092, 167206, 196238, 228322, 263595,
	302190, 344238, 389873, 439222, 492414, 549578, 610840, 676325, 746158, 820463,
	899363, 982980, 1071435, 1164850, 1263343, 1367034, 1476041, 1590483, 1710476, 1836137,
	1967582, 2104926, 2248285, 2397772, 2553501, 2715586, 2884139, 3059273, 3241098, 3429728,
	3625271, 3827840, 4037543, 4254491, 4478792, 4710556, 4949890, 5196902, 5451701, 5714393,
	5985086, 6263885, 6550897, 6846227, 7149982, 7462266, 7783184, 8112840, 8451340, 8798786,
	9155282, 9520931, 9895837, 10280103, 10673830, 11077120, 11490077, 11912801, 12345393, 12787955,
}

// MaxLevel is the highest character level this table covers.
const MaxLevel = 80

// Backpack and bank size bounds, and the SDU step each is granted in.
const (
	MinBackpackSize = 12
	MaxBackpackSize = 39
	BackpackSDUStep = 3

	MinBankSize = 6
	MaxBankSize = 24
	BankSDUStep = 2
)

// AmmoResource names the resource/pool pair backing one ammo type.
type AmmoResource struct {
	Resource, Pool string
}

// AmmoResources maps ammo type to its resource/pool identities.
var AmmoResources = map[string]AmmoResource{
	"rifle":    {"D_Resources.AmmoResources.Ammo_Combat_Rifle", "D_Resourcepools.AmmoPools.Ammo_Combat_Rifle_Pool"},
	"shotgun":  {"D_Resources.AmmoResources.Ammo_Combat_Shotgun", "D_Resourcepools.AmmoPools.Ammo_Combat_Shotgun_Pool"},
	"grenade":  {"D_Resources.AmmoResources.Ammo_Grenade_Protean", "D_Resourcepools.AmmoPools.Ammo_Grenade_Protean_Pool"},
	"smg":      {"D_Resources.AmmoResources.Ammo_Patrol_SMG", "D_Resourcepools.AmmoPools.Ammo_Patrol_SMG_Pool"},
	"pistol":   {"D_Resources.AmmoResources.Ammo_Repeater_Pistol", "D_Resourcepools.AmmoPools.Ammo_Repeater_Pistol_Pool"},
	"launcher": {"D_Resources.AmmoResources.Ammo_Rocket_Launcher", "D_Resourcepools.AmmoPools.Ammo_Rocket_Launcher_Pool"},
	"sniper":   {"D_Resources.AmmoResources.Ammo_Sniper_Rifle", "D_Resourcepools.AmmoPools.Ammo_Sniper_Rifle_Pool"},
	// laser never appears in a black-market SDU slot for this game, but is
	// kept here because it's a legitimate resource name that may show up
	// in a save's ammo-pool list regardless.
	"laser": {"D_Resources.AmmoResources.Ammo_Combat_Laser", "D_Resourcepools.AmmoPools.Ammo_Combat_Laser_Pool"},
}

// AmmoResourceLookup inverts AmmoResources on its Resource field, for
// matching a decoded ammo-pool entry back to its ammo type.
var AmmoResourceLookup = func() map[string]string {
	m := make(map[string]string, len(AmmoResources))
	for ammoType, res := range AmmoResources {
		m[res.Resource] = ammoType
	}
	return m
}()

// BlackMarketKeys is the fixed order black-market SDU levels are packed in
// the player record's field 36, index 0 entry.
var BlackMarketKeys = []string{
	"grenade", "launcher", "pistol", "rifle", "shotgun", "smg", "sniper", "backpack", "bank",
}

// BlackMarketAmmo gives, for each ammo-capable black-market key, the ammo
// capacity at each of its 8 SDU levels (index 0 is the capacity with zero
// SDUs purchased).
var BlackMarketAmmo = map[string][]int{
	"grenade":  {3, 4, 5, 6, 7, 8, 9, 10},
	"launcher": {12, 15, 18, 21, 24, 27, 30, 33},
	"pistol":   {200, 300, 400, 500, 600, 700, 800, 900},
	"rifle":    {280, 420, 560, 700, 840, 980, 1120, 1260},
	"shotgun":  {80, 100, 120, 140, 160, 180, 200, 220},
	"smg":      {360, 540, 720, 900, 1080, 1260, 1440, 1620},
	"sniper":   {48, 60, 72, 84, 96, 108, 120, 132},
}

// OpLevelMarkerID is the synthetic item id that identifies the "virtual"
// item field 53 entry used to store a character's Overpower level.
const OpLevelMarkerID = 4

// OpLevelBaseData is the complete 40-byte wrapped item for a freshly created
// OP-level marker item, copied verbatim from the reference tooling's own
// constant (it encodes item_struct_version 7, is_weapon false, and a set
// id of 255 marking it as synthetic rather than a real drop).
var OpLevelBaseData = []byte{
	0x07, 0x00, 0x00, 0x00, 0x00, 0x39, 0x2a, 0xff,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// PackOpLevel builds the field value modify_save writes into an OP-level
// marker's field 2: the two's-complement negation of OpLevelMarkerID with
// the level packed into the 23 bits above its low byte, i.e.
// -(OpLevelMarkerID | level<<8) (0xFFFFFFFFFFFFF5FC for level 10).
func PackOpLevel(level int) uint64 {
	if level < 0 {
		level = 0
	}
	if level > 0x7fffff {
		level = 0x7fffff
	}
	return uint64(-(int64(OpLevelMarkerID) | (int64(level) << 8)))
}

// AmmoResourceSchema describes one entry of the player record's field 11
// (an ammo resource pool).
var AmmoResourceSchema = schema.Schema{
	1: {Name: "resource"},
	2: {Name: "pool"},
	3: {Name: "level"},
	4: {Name: "amount", Inner: schema.Convert{
		Decode: func(v interface{}) interface{} { return math.Float32frombits(uint32(v.(uint64))) },
		Encode: func(v interface{}) (int, interface{}) {
			// Accept a plain float64 as well as float32: a value round
			// tripped through jsonsave arrives as float64 (JSON has no
			// narrower numeric type), while a value built up directly in
			// Go (as mutate does) supplies a float32.
			var f float32
			switch x := v.(type) {
			case float32:
				f = x
			case float64:
				f = float32(x)
			default:
				panic(Error("amount field requires a float32 or float64"))
			}
			return record.Fixed32, uint64(math.Float32bits(f))
		},
	}},
}

// ChallengeUnlockSchema describes one entry of the player record's field
// 38 (a challenge-unlock record: which challenge, and whether it came
// from a DLC).
var ChallengeUnlockSchema = schema.Schema{
	1: {Name: "dlc_id"},
	2: {Name: "is_from_dlc"},
	3: {Name: "name"},
}

// Catalog is a small, representative set of challenge ids exercised by
// the unlock-challenges, value (zero/max/bonus), and overflow-fix
// mutations, and by display tooling; a full catalog numbers in the
// hundreds and is ordinarily supplied by the caller.
var Catalog = challenge.Catalog{
	1: {IDText: "hunter_kill_enemies", Category: "combat", Name: "Kill enemies",
		Max: 5000, Bonus: 1000},
	2: {IDText: "hunter_kill_badass", Category: "combat", Name: "Kill badass enemies",
		Max: 1000, Bonus: 250},
	3: {IDText: "explore_discover_locations", Category: "exploration", Name: "Discover locations",
		Max: 50},
	4: {IDText: "loot_open_chests", Category: "loot", Name: "Open chests",
		Max: 500, Bonus: 100},
	5: {IDText: "economy_earn_money", Category: "economy", Name: "Earn money",
		DLC: 1, IsFromDLC: 1, Max: 12345},
}
