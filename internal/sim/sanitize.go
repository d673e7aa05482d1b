package sim

import (
	"math"

	"github.com/roach88/fishpond/internal/pond"
)

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// sanitizeFish repairs non-finite or out-of-range fields in place.
func (e *Engine) sanitizeFish(f *pond.Fish) {
	if !finite(f.X) {
		f.X = e.world.Width / 2
	}
	if !finite(f.Y) {
		f.Y = e.world.Height / 2
	}
	if !finite(f.VX) || !finite(f.VY) {
		f.VX, f.VY = 0, 0
	}
	if !finite(f.SizeScale) {
		f.SizeScale = 1
	}
	f.SizeScale = clamp(f.SizeScale, e.fish.SizeMin, e.fish.SizeMax)
	if !finite(f.Speed) || f.Speed <= 0 {
		f.Speed = e.fish.SpeedMin
	}
	if !finite(f.Vision) || f.Vision <= 0 {
		f.Vision = e.fish.Vision
	}
	if !finite(f.WanderT) {
		f.WanderT = 0
	}
}

// sanitizeFood repairs non-finite or out-of-range fields in place.
func (e *Engine) sanitizeFood(fd *pond.Food) {
	if !finite(fd.X) {
		fd.X = e.world.Width / 2
	}
	if !finite(fd.Y) {
		fd.Y = e.world.Height / 2
	}
	fd.X = clamp(fd.X, 0, e.world.Width)
	fd.Y = clamp(fd.Y, 0, e.world.Height)
	if !finite(fd.R) || fd.R <= 0 {
		fd.R = pond.DefaultFoodRadius
	}
	if !finite(fd.GrowPct) || fd.GrowPct < 0 {
		fd.GrowPct = 0
	}
	if !finite(fd.VY) {
		fd.VY = 0
	}
	if !finite(fd.Age) || fd.Age < 0 {
		fd.Age = 0
	}
	if fd.State == "" {
		fd.State = pond.FoodResting
	}
}
