package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fishpond/internal/pond"
)

var migrateTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const v1Raw = `{"version":1,"nextId":0,
 "fish":[
  {"id":1,"x":100,"y":200,"vx":30,"vy":-10,"speed":60,"sizeScale":1.1,"color":"hsl(200 70% 50%)"},
  {"id":4,"x":500,"y":300,"vx":-20,"vy":5,"speed":75,"sizeScale":1,"color":"#f80"}],
 "food":[{"id":2,"x":120,"y":210,"r":5},{"id":3,"x":900,"y":900,"r":5}]}`

const v2Raw = `{"version":2,"nextId":3,"savedAt":"2023-01-02T03:04:05Z",
 "fish":[{"id":1,"x":10,"y":20,"vx":1,"vy":1,"speed":60,"sizeScale":1.5,"color":"red","vision":200,"targetFoodId":7,"wanderT":12.5}],
 "food":[{"id":7,"x":1,"y":2,"r":7,"kind":"rare","growPct":0.04}]}`

const v3Raw = `{"version":3,"nextId":9,"savedAt":"2024-01-01T00:00:00Z",
 "fish":[{"id":2,"x":10,"y":20,"vx":1,"vy":1,"speed":60,"sizeScale":2,"color":"red","vision":160,"targetFoodId":null,
   "wanderT":3,"petName":"Nemo","textureDataUrl":"data:image/png;base64,AA","shape":"swordfish"}],
 "food":[{"id":5,"x":1,"y":2,"r":6,"kind":"uncommon","growPct":0.012,"state":"falling","vy":30,"age":2}]}`

func decode(t *testing.T, raw string) Save {
	t.Helper()
	s, err := DecodeSave([]byte(raw))
	require.NoError(t, err)
	return s
}

func TestMigrate_V1Golden(t *testing.T) {
	got := MigrateAt(decode(t, v1Raw), migrateTime)

	out, err := json.MarshalIndent(got, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "migrate_v1", append(out, '\n'))
}

func TestMigrate_V2KeepsTiersAndSteering(t *testing.T) {
	got := MigrateAt(decode(t, v2Raw), migrateTime)

	assert.Equal(t, 3, got.Version)
	assert.Equal(t, int64(8), got.NextID, "repaired above food id 7")
	assert.Equal(t, "2023-01-02T03:04:05Z", got.SavedAt)

	require.Len(t, got.Fish, 1)
	f := got.Fish[0]
	assert.Equal(t, 200.0, f.Vision)
	assert.Equal(t, 12.5, f.WanderT)
	require.NotNil(t, f.TargetFoodID)
	assert.Equal(t, int64(7), *f.TargetFoodID)
	assert.Equal(t, pond.DefaultShape, f.Shape)

	require.Len(t, got.Food, 1)
	assert.Equal(t, pond.KindRare, got.Food[0].Kind)
	assert.Equal(t, 0.04, got.Food[0].GrowPct)
	assert.Equal(t, pond.FoodResting, got.Food[0].State)
}

func TestMigrate_V3Untouched(t *testing.T) {
	got := MigrateAt(decode(t, v3Raw), migrateTime)

	assert.Equal(t, int64(9), got.NextID)
	assert.Equal(t, "2024-01-01T00:00:00Z", got.SavedAt)
	require.Len(t, got.Fish, 1)
	assert.Equal(t, pond.ShapeSwordfish, got.Fish[0].Shape)
	assert.Equal(t, "Nemo", got.Fish[0].PetName)
	assert.Equal(t, "data:image/png;base64,AA", got.Fish[0].TextureDataURL)
	assert.Equal(t, pond.FoodFalling, got.Food[0].State)
	assert.Equal(t, 30.0, got.Food[0].VY)
}

func TestMigrate_Idempotent(t *testing.T) {
	for name, raw := range map[string]string{"v1": v1Raw, "v2": v2Raw, "v3": v3Raw} {
		t.Run(name, func(t *testing.T) {
			once := MigrateAt(decode(t, raw), migrateTime)
			twice := MigrateAt(once, migrateTime.Add(time.Hour))
			assert.Equal(t, once, twice)

			// Through the wire format as well.
			data, err := EncodeSave(once)
			require.NoError(t, err)
			again := MigrateAt(decode(t, string(data)), migrateTime.Add(2*time.Hour))
			assert.Equal(t, once, again)
		})
	}
}

func TestMigrate_DropsTerminalFood(t *testing.T) {
	in := SaveV3{
		NextID: 3,
		Food: []*pond.Food{
			{ID: 1, R: 5, Kind: pond.KindCommon, State: pond.FoodEaten},
			{ID: 2, R: 5, Kind: pond.KindCommon, State: pond.FoodResting},
		},
	}
	got := MigrateAt(in, migrateTime)
	require.Len(t, got.Food, 1)
	assert.Equal(t, int64(2), got.Food[0].ID)
}

func TestMigrate_DoesNotMutateInput(t *testing.T) {
	in := SaveV3{NextID: 1, Fish: []*pond.Fish{{ID: 5, SizeScale: 1}}}
	_ = MigrateAt(in, migrateTime)

	assert.Zero(t, in.Fish[0].Vision)
	assert.Empty(t, in.Fish[0].Shape)
	assert.Equal(t, int64(1), in.NextID)
}

func TestDecodeSave_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{"not json", `{"version":`, nil},
		{"missing version", `{"nextId":1}`, ErrUnknownVersion},
		{"future version", `{"version":4}`, ErrUnknownVersion},
		{"wrong shape", `{"version":3,"fish":"nope"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSave([]byte(tt.raw))
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestDecodeSave_Versions(t *testing.T) {
	assert.Equal(t, 1, decode(t, v1Raw).SaveVersion())
	assert.Equal(t, 2, decode(t, v2Raw).SaveVersion())
	assert.Equal(t, 3, decode(t, v3Raw).SaveVersion())
}
