package schema

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/JonMunkholm/tabload/internal/core"
	"github.com/JonMunkholm/tabload/internal/loader"
)

func newDemoLoader(t *testing.T) *loader.Loader {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	conv := core.NewConverters(logger)
	schemas := core.NewSchemaRegistry()
	if err := Register(schemas, conv); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	l, err := loader.New(loader.Options{
		DataDir:    "testdata",
		Schemas:    schemas,
		Converters: conv,
		Logger:     logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func zoneByID(zones []*Zone, id int) *Zone {
	for _, z := range zones {
		if z.ID == id {
			return z
		}
	}
	return nil
}

func TestRegister_Twice(t *testing.T) {
	conv := core.NewConverters(nil)
	schemas := core.NewSchemaRegistry()
	if err := Register(schemas, conv); err != nil {
		t.Fatal(err)
	}
	if err := Register(schemas, conv); err == nil {
		t.Error("second Register() should fail on duplicate keys")
	}
}

func TestZones_Columns(t *testing.T) {
	l := newDemoLoader(t)

	zones, err := core.LoadTyped[Zone](context.Background(), l, KeyZones)
	if err != nil {
		t.Fatalf("LoadTyped() error = %v", err)
	}
	if len(zones) != 4 {
		t.Fatalf("zones = %d, want 4 (comment and blank lines skipped)", len(zones))
	}

	wood := zoneByID(zones, 1)
	if wood.Name != "Whispering Wood" || wood.Biome != BiomeForest {
		t.Errorf("zone 1 = %+v", wood)
	}
	if math.Abs(float64(wood.Tint.R)-float64(0x2E)/255) > 1e-4 || wood.Tint.A != 1 {
		t.Errorf("zone 1 tint = %+v", wood.Tint)
	}
	if math.Abs(float64(wood.Facing.Y)-math.Sqrt2/2) > 1e-4 {
		t.Errorf("zone 1 facing = %+v, want 90 degree yaw", wood.Facing)
	}
	if len(wood.Tags) != 2 || wood.Tags[0] != "starter" || wood.Tags[1] != "quiet" {
		t.Errorf("zone 1 tags = %q", wood.Tags)
	}

	dunes := zoneByID(zones, 2)
	if dunes.Biome != BiomeDesert || dunes.Origin != (core.Vector3{X: 120.5, Y: 3, Z: -40}) {
		t.Errorf("zone 2 = %+v", dunes)
	}
	if dunes.Tint != (core.Color{R: 1, G: 0.8, B: 0.4, A: 1}) {
		t.Errorf("zone 2 tint = %+v", dunes.Tint)
	}
	if dunes.Facing != core.IdentityQuaternion {
		t.Errorf("zone 2 facing = %+v, want identity", dunes.Facing)
	}

	caves := zoneByID(zones, 3)
	if caves.Name != `Hollow "Deep" Caves` || caves.Biome != BiomeCavern {
		t.Errorf("zone 3 = %+v", caves)
	}
	if caves.Facing != (core.Quaternion{}) {
		t.Errorf("zone 3 blank facing = %+v, want zero", caves.Facing)
	}
	if caves.Tint != (core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}) {
		t.Errorf("zone 3 tint = %+v", caves.Tint)
	}

	if frost := zoneByID(zones, 4); frost.Biome != BiomeTundra || frost.Tags != nil {
		t.Errorf("zone 4 = %+v", frost)
	}
}

func TestSpawns_Columns(t *testing.T) {
	l := newDemoLoader(t)

	spawns, err := core.LoadTyped[Spawn](context.Background(), l, KeySpawns)
	if err != nil {
		t.Fatalf("LoadTyped() error = %v", err)
	}
	if len(spawns) != 5 {
		t.Fatalf("spawns = %d, want 5", len(spawns))
	}

	tests := []struct {
		id      int
		respawn time.Duration
		rarity  Rarity
		level   *int
	}{
		{10, 90 * time.Second, RarityCommon, nil},
		{11, 2 * time.Minute, RarityUncommon, intPtr(5)},
		{12, time.Hour, RarityLegendary, intPtr(40)},
		{13, 30 * time.Second, RarityCommon, nil},
		{14, 10 * time.Minute, RarityRare, nil}, // malformed level
	}

	for i, tt := range tests {
		s := spawns[i]
		if s.ID != tt.id || s.Respawn != tt.respawn || s.Rarity != tt.rarity {
			t.Errorf("spawn %d = %+v", tt.id, s)
		}
		if (s.Level == nil) != (tt.level == nil) || (s.Level != nil && *s.Level != *tt.level) {
			t.Errorf("spawn %d level = %v, want %v", tt.id, s.Level, tt.level)
		}
	}

	if spawns[0].Offset != (core.Vector2{X: 3, Y: 4}) {
		t.Errorf("spawn 10 offset = %+v", spawns[0].Offset)
	}
}

func TestZones_Relationships(t *testing.T) {
	l := newDemoLoader(t)
	ctx := context.Background()

	set, err := l.Load(ctx, KeyZones)
	if err != nil {
		t.Fatalf("Load(zones) error = %v", err)
	}
	zones := set.([]*Zone)

	want := map[int]int{1: 2, 2: 1, 3: 2, 4: 0}
	for id, n := range want {
		z := zoneByID(zones, id)
		if len(z.Spawns) != n {
			t.Errorf("zone %d spawns = %d, want %d", id, len(z.Spawns), n)
		}
		if z.Spawns == nil {
			t.Errorf("zone %d spawns is nil, want empty slice", id)
		}
	}

	set, err = l.Load(ctx, KeySpawns)
	if err != nil {
		t.Fatalf("Load(spawns) error = %v", err)
	}
	for _, s := range set.([]*Spawn) {
		if s.Zone == nil || s.Zone.ID != s.ZoneID {
			t.Errorf("spawn %d zone = %+v", s.ID, s.Zone)
		}
		if s.Zone != zoneByID(zones, s.ZoneID) {
			t.Errorf("spawn %d should link the cached zone record", s.ID)
		}
	}
}

func intPtr(n int) *int { return &n }
