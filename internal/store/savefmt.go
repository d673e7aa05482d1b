package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/fishpond/internal/pond"
)

// CurrentSaveVersion is the snapshot format written by SaveSnapshot.
const CurrentSaveVersion = 3

// ErrUnknownVersion is returned by DecodeSave for a missing or unsupported
// version tag.
var ErrUnknownVersion = errors.New("unknown save version")

// Save is one of SaveV1, SaveV2, or SaveV3.
type Save interface {
	SaveVersion() int
}

// SaveV1 is the original format: no food tiers, no vision or wander state.
type SaveV1 struct {
	NextID  int64    `json:"nextId"`
	Fish    []FishV1 `json:"fish"`
	Food    []FoodV1 `json:"food"`
	SavedAt string   `json:"savedAt,omitempty"`
}

// FishV1 is a fish as saved in format 1.
type FishV1 struct {
	ID        int64   `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	Speed     float64 `json:"speed"`
	SizeScale float64 `json:"sizeScale"`
	Color     string  `json:"color"`
}

// FoodV1 is a pellet as saved in format 1.
type FoodV1 struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	R  float64 `json:"r"`
}

// SaveV2 adds food tiers and per-fish steering state.
type SaveV2 struct {
	NextID  int64    `json:"nextId"`
	Fish    []FishV2 `json:"fish"`
	Food    []FoodV2 `json:"food"`
	SavedAt string   `json:"savedAt,omitempty"`
}

// FishV2 is a fish as saved in format 2. Names and textures came later.
type FishV2 struct {
	FishV1
	Vision       float64    `json:"vision"`
	TargetFoodID *int64     `json:"targetFoodId"`
	WanderT      *float64   `json:"wanderT,omitempty"`
	Shape        pond.Shape `json:"shape,omitempty"`
}

// FoodV2 is a pellet as saved in format 2.
type FoodV2 struct {
	FoodV1
	Kind    pond.FoodKind `json:"kind"`
	GrowPct float64       `json:"growPct"`
}

// SaveV3 is the current format: full entities.
type SaveV3 struct {
	Version int          `json:"version"`
	NextID  int64        `json:"nextId"`
	Fish    []*pond.Fish `json:"fish"`
	Food    []*pond.Food `json:"food"`
	SavedAt string       `json:"savedAt"`
}

func (SaveV1) SaveVersion() int { return 1 }
func (SaveV2) SaveVersion() int { return 2 }
func (SaveV3) SaveVersion() int { return 3 }

// State converts the snapshot into live state. The snapshot should already
// be migrated; the id counter is repaired regardless.
func (s SaveV3) State() *pond.State {
	st := &pond.State{NextID: s.NextID, Fish: s.Fish, Food: s.Food}
	if st.Fish == nil {
		st.Fish = []*pond.Fish{}
	}
	if st.Food == nil {
		st.Food = []*pond.Food{}
	}
	st.RepairNextID()
	return st
}

// DecodeSave reads the version tag and decodes the matching format.
func DecodeSave(raw []byte) (Save, error) {
	var tag struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("decode save: %w", err)
	}
	if tag.Version == nil {
		return nil, fmt.Errorf("decode save: %w: missing version", ErrUnknownVersion)
	}

	var (
		save Save
		err  error
	)
	switch *tag.Version {
	case 1:
		var v SaveV1
		err = json.Unmarshal(raw, &v)
		save = v
	case 2:
		var v SaveV2
		err = json.Unmarshal(raw, &v)
		save = v
	case 3:
		var v SaveV3
		err = json.Unmarshal(raw, &v)
		save = v
	default:
		return nil, fmt.Errorf("decode save: %w: %d", ErrUnknownVersion, *tag.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("decode save v%d: %w", *tag.Version, err)
	}
	return save, nil
}

// EncodeSave writes a version 3 snapshot.
func EncodeSave(s SaveV3) ([]byte, error) {
	s.Version = CurrentSaveVersion
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode save: %w", err)
	}
	return data, nil
}
