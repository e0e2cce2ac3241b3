// Package schema holds the demo record schemas shipped with the tabload
// command: world zones and the creature spawns placed in them.
package schema

import (
	"time"

	"github.com/JonMunkholm/tabload/internal/core"
)

// Schema keys.
const (
	KeyZones  = "zones"
	KeySpawns = "spawns"
)

// Biome classifies a zone.
type Biome int

const (
	BiomeUnknown Biome = iota
	BiomeForest
	BiomeDesert
	BiomeTundra
	BiomeCavern
)

// Rarity weights how often a spawn appears.
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityLegendary
)

// Zone is one area of the world.
type Zone struct {
	ID     int             `tab:"id"`
	Name   string          `tab:"name"`
	Biome  Biome           `tab:"biome"`
	Tint   core.Color      `tab:"tint"`
	Origin core.Vector3    `tab:"origin"`
	Facing core.Quaternion `tab:"facing"`
	Tags   []string        `tab:"tags"`

	Spawns []*Spawn
}

// Spawn places a creature in a zone.
type Spawn struct {
	ID       int           `tab:"id"`
	ZoneID   int           `tab:"zone_id"`
	Creature string        `tab:"creature"`
	Count    int           `tab:"count"`
	Rarity   Rarity        `tab:"rarity"`
	Respawn  time.Duration `tab:"respawn"`
	Offset   core.Vector2  `tab:"offset"`
	Level    *int          `tab:"level"` // Blank means scale with the player

	Zone *Zone
}

// Register adds the demo schemas and their enumerations.
func Register(schemas *core.SchemaRegistry, conv *core.Converters) error {
	core.RegisterEnumValues(conv, map[string]Biome{
		"unknown": BiomeUnknown,
		"forest":  BiomeForest,
		"desert":  BiomeDesert,
		"tundra":  BiomeTundra,
		"cavern":  BiomeCavern,
	})
	core.RegisterEnumValues(conv, map[string]Rarity{
		"common":    RarityCommon,
		"uncommon":  RarityUncommon,
		"rare":      RarityRare,
		"legendary": RarityLegendary,
	})

	if err := schemas.Register(core.SchemaFor[Zone](KeyZones, core.Relationship{
		Field:       "Spawns",
		Target:      KeySpawns,
		PrimaryKey:  "ID",
		ForeignKey:  "ZoneID",
		Cardinality: core.Many,
	})); err != nil {
		return err
	}

	return schemas.Register(core.SchemaFor[Spawn](KeySpawns, core.Relationship{
		Field:       "Zone",
		Target:      KeyZones,
		PrimaryKey:  "ZoneID",
		ForeignKey:  "ID",
		Cardinality: core.One,
	}))
}
