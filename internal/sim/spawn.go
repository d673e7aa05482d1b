package sim

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/roach88/fishpond/internal/pond"
)

// PickTier maps a uniform sample u in [0,1) onto the weighted tier table.
// Rounding leftovers fall through to the last tier.
func PickTier(tiers []pond.Tier, u float64) pond.Tier {
	if len(tiers) == 0 {
		return pond.DefaultTiers[0]
	}
	acc := 0.0
	for _, t := range tiers {
		acc += t.Prob
		if u <= acc {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// TierFor returns the configured tier of the given kind.
func (e *Engine) TierFor(kind pond.FoodKind) (pond.Tier, bool) {
	for _, t := range e.food.Tiers {
		if t.Kind == kind {
			return t, true
		}
	}
	return pond.Tier{}, false
}

// SpawnFish builds a fish at (x, y) with a random heading, cruise speed,
// starting size, colour, and wander phase. The position is clamped into the
// world.
func (e *Engine) SpawnFish(id int64, x, y float64, rng *rand.Rand) *pond.Fish {
	angle := rng.Float64() * 2 * math.Pi
	speed := between(rng, e.fish.SpeedMin, e.fish.SpeedMax)
	f := &pond.Fish{
		ID:        id,
		X:         x,
		Y:         y,
		VX:        math.Cos(angle) * speed,
		VY:        math.Sin(angle) * speed,
		Speed:     speed,
		SizeScale: between(rng, e.fish.SpawnSizeMin, e.fish.SpawnSizeMax),
		Color:     randomColor(rng),
		Vision:    e.fish.Vision,
		WanderT:   rng.Float64() * 1000,
		Shape:     pond.DefaultShape,
	}
	e.contain(f)
	return f
}

// RandomPoint returns a point inside the world, inset from the walls.
func (e *Engine) RandomPoint(rng *rand.Rand) (float64, float64) {
	inset := e.fish.SpawnInset
	return between(rng, inset, e.world.Width-inset), between(rng, inset, e.world.Height-inset)
}

// DropFood builds a pellet of the given tier at (x, y), clamped into the
// world. Pellets sink when the pond is configured to.
func (e *Engine) DropFood(id int64, x, y float64, tier pond.Tier) *pond.Food {
	state := pond.FoodResting
	if e.food.Sink {
		state = pond.FoodFalling
	}
	return &pond.Food{
		ID:      id,
		X:       clamp(x, 0, e.world.Width),
		Y:       clamp(y, 0, e.world.Height),
		R:       tier.Radius,
		Kind:    tier.Kind,
		GrowPct: tier.GrowPct,
		State:   state,
	}
}

// FeedTier draws a tier from the configured table.
func (e *Engine) FeedTier(rng *rand.Rand) pond.Tier {
	return PickTier(e.food.Tiers, rng.Float64())
}

var fishHues = []int{195, 205, 215, 165, 180, 200, 30, 350}

func randomColor(rng *rand.Rand) string {
	h := fishHues[rng.IntN(len(fishHues))]
	s := int(between(rng, 55, 85))
	l := int(between(rng, 45, 65))
	return fmt.Sprintf("hsl(%d %d%% %d%%)", h, s, l)
}

func between(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
