package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fishpond/internal/pond"
)

func sampleState() *pond.State {
	target := int64(3)
	return &pond.State{
		NextID: 4,
		Fish: []*pond.Fish{
			{ID: 1, X: 10, Y: 20, VX: 1, VY: 2, Speed: 60, SizeScale: 1.2, Color: "hsl(200 70% 50%)", Vision: 160,
				TargetFoodID: &target, PetName: "Bubbles", TextureID: "sha256-abc", TextureDataURL: "data:image/png;base64,AAAA",
				Shape: pond.ShapeLongtail},
			{ID: 2, X: 30, Y: 40, Speed: 70, SizeScale: 1, Vision: 160, Shape: pond.ShapeAngelfish},
		},
		Food: []*pond.Food{
			{ID: 3, X: 50, Y: 60, R: 5, Kind: pond.KindCommon, GrowPct: 0.004, State: pond.FoodResting},
		},
	}
}

func TestFromState_DropsEmbeddedTexture(t *testing.T) {
	d := FromState(sampleState(), 7, "w-1")

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "textureDataUrl")
	assert.Contains(t, string(raw), `"textureId":"sha256-abc"`)
	assert.Contains(t, string(raw), `"cver":1`)
	assert.Contains(t, string(raw), `"docRev":7`)
	assert.Contains(t, string(raw), `"writeId":"w-1"`)
}

func TestFromState_DoesNotAlias(t *testing.T) {
	s := sampleState()
	d := FromState(s, 1, "")

	*s.Fish[0].TargetFoodID = 99
	s.Food[0].X = 1000

	assert.Equal(t, int64(3), *d.Fish[0].TargetFoodID)
	assert.Equal(t, 50.0, d.Food[0].X)
}

func TestToState_RoundTrip(t *testing.T) {
	s := sampleState()
	got := FromState(s, 1, "").ToState()

	require.Len(t, got.Fish, 2)
	assert.Equal(t, int64(4), got.NextID)
	assert.Equal(t, "Bubbles", got.Fish[0].PetName)
	assert.Empty(t, got.Fish[0].TextureDataURL)
	assert.Equal(t, pond.ShapeLongtail, got.Fish[0].Shape)
	assert.Equal(t, *s.Food[0], *got.Food[0])
}

func TestToState_FillsDefaultsAndRepairsCounter(t *testing.T) {
	d := Doc{
		CVer:   CVer,
		NextID: 1,
		Fish:   []FishLite{{ID: 8, SizeScale: 1}},
		Food:   []pond.Food{{ID: 9, X: 1, Y: 1, R: 5}},
	}
	s := d.ToState()

	assert.Equal(t, int64(10), s.NextID)
	assert.Equal(t, pond.DefaultShape, s.Fish[0].Shape)
	assert.Equal(t, pond.DefaultVision, s.Fish[0].Vision)
	assert.Equal(t, pond.KindCommon, s.Food[0].Kind)
	assert.Equal(t, pond.DefaultGrowPct, s.Food[0].GrowPct)
	assert.Equal(t, pond.FoodResting, s.Food[0].State)
}

func TestDoc_Validate(t *testing.T) {
	valid := FromState(sampleState(), 3, "w")
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Doc)
	}{
		{"wrong cver", func(d *Doc) { d.CVer = 2 }},
		{"negative rev", func(d *Doc) { d.DocRev = -1 }},
		{"duplicate fish/food id", func(d *Doc) { d.Food[0].ID = 1 }},
		{"zero fish id", func(d *Doc) { d.Fish[1].ID = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid.Clone()
			tt.mutate(&d)
			assert.ErrorIs(t, d.Validate(), ErrInvalidDoc)
		})
	}
}
