package store

import (
	"math"
	"time"

	"github.com/roach88/fishpond/internal/pond"
)

// Migrate upgrades any snapshot to version 3, stamping a missing savedAt
// with the current time.
func Migrate(s Save) SaveV3 {
	return MigrateAt(s, time.Now().UTC())
}

// MigrateAt upgrades s to version 3. Upgrades run strictly forward
// (1 -> 2 -> 3) and every path ends in the same normalisation, so applying
// MigrateAt to its own output changes nothing.
//
// Filled defaults: pellet kind common with the common growth rate, pellet
// state resting, fish vision, fish shape, a wander phase derived from the
// fish id, and savedAt = now. nextId is repaired to at least 1 and above
// every id present.
func MigrateAt(s Save, now time.Time) SaveV3 {
	switch v := s.(type) {
	case SaveV1:
		return normalize(v3FromV2(v2FromV1(v)), now)
	case *SaveV1:
		return normalize(v3FromV2(v2FromV1(*v)), now)
	case SaveV2:
		return normalize(v3FromV2(v), now)
	case *SaveV2:
		return normalize(v3FromV2(*v), now)
	case SaveV3:
		return normalize(v, now)
	case *SaveV3:
		return normalize(*v, now)
	default:
		return normalize(SaveV3{}, now)
	}
}

func v2FromV1(v SaveV1) SaveV2 {
	out := SaveV2{
		NextID:  v.NextID,
		Fish:    make([]FishV2, 0, len(v.Fish)),
		Food:    make([]FoodV2, 0, len(v.Food)),
		SavedAt: v.SavedAt,
	}
	for _, f := range v.Fish {
		out.Fish = append(out.Fish, FishV2{FishV1: f})
	}
	for _, fd := range v.Food {
		out.Food = append(out.Food, FoodV2{
			FoodV1:  fd,
			Kind:    pond.DefaultFoodKind,
			GrowPct: pond.DefaultGrowPct,
		})
	}
	return out
}

func v3FromV2(v SaveV2) SaveV3 {
	out := SaveV3{
		NextID:  v.NextID,
		Fish:    make([]*pond.Fish, 0, len(v.Fish)),
		Food:    make([]*pond.Food, 0, len(v.Food)),
		SavedAt: v.SavedAt,
	}
	for _, f := range v.Fish {
		fish := &pond.Fish{
			ID:           f.ID,
			X:            f.X,
			Y:            f.Y,
			VX:           f.VX,
			VY:           f.VY,
			Speed:        f.Speed,
			SizeScale:    f.SizeScale,
			Color:        f.Color,
			Vision:       f.Vision,
			TargetFoodID: f.TargetFoodID,
			Shape:        f.Shape,
		}
		if f.WanderT != nil {
			fish.WanderT = *f.WanderT
		} else {
			fish.WanderT = wanderSeed(f.ID)
		}
		out.Fish = append(out.Fish, fish)
	}
	for _, fd := range v.Food {
		out.Food = append(out.Food, &pond.Food{
			ID:      fd.ID,
			X:       fd.X,
			Y:       fd.Y,
			R:       fd.R,
			Kind:    fd.Kind,
			GrowPct: fd.GrowPct,
		})
	}
	return out
}

// wanderSeed spreads wander phases of fish saved without one.
func wanderSeed(id int64) float64 {
	return math.Mod(float64(id)*1.37, 1000)
}

func normalize(v SaveV3, now time.Time) SaveV3 {
	out := SaveV3{
		Version: CurrentSaveVersion,
		NextID:  v.NextID,
		Fish:    make([]*pond.Fish, 0, len(v.Fish)),
		Food:    make([]*pond.Food, 0, len(v.Food)),
		SavedAt: v.SavedAt,
	}
	for _, f := range v.Fish {
		if f == nil {
			continue
		}
		c := f.Clone()
		if c.Vision <= 0 {
			c.Vision = pond.DefaultVision
		}
		c.Shape = pond.ParseShape(string(c.Shape))
		out.Fish = append(out.Fish, c)
	}
	for _, fd := range v.Food {
		if fd == nil || fd.State.Terminal() {
			continue
		}
		c := fd.Clone()
		if c.Kind == "" {
			c.Kind = pond.DefaultFoodKind
			c.GrowPct = pond.DefaultGrowPct
		}
		if c.R <= 0 {
			c.R = pond.DefaultFoodRadius
		}
		if c.State == "" {
			c.State = pond.FoodResting
		}
		out.Food = append(out.Food, c)
	}
	if out.SavedAt == "" {
		out.SavedAt = now.UTC().Format(time.RFC3339Nano)
	}

	st := pond.State{NextID: out.NextID, Fish: out.Fish, Food: out.Food}
	st.RepairNextID()
	out.NextID = st.NextID
	return out
}
