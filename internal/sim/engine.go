package sim

import (
	"math"
	"slices"

	"github.com/roach88/fishpond/internal/config"
	"github.com/roach88/fishpond/internal/pond"
)

// Engine advances pond state. It holds only parameters; all entity state is
// passed in, so one Engine can serve any number of ponds.
type Engine struct {
	world config.WorldConfig
	fish  config.FishConfig
	food  config.FoodConfig
}

// New creates an Engine from validated parameters.
func New(cfg config.Config) *Engine {
	return &Engine{
		world: cfg.World,
		fish:  cfg.Fish,
		food:  cfg.Food,
	}
}

// StepResult reports what happened during one Step.
type StepResult struct {
	// Ate is true when any fish grew this tick.
	Ate bool

	// Eaten and Expired list pellet ids that reached a terminal state.
	Eaten   []int64
	Expired []int64
}

// Step advances s by dt seconds. dt is sanitized first: NaN and negative
// values become 0 and large values are capped at the configured maximum.
func (e *Engine) Step(s *pond.State, dt float64) StepResult {
	dt = e.ClampDT(dt)

	var res StepResult
	e.stepFood(s, dt, &res)

	for _, f := range s.Fish {
		e.sanitizeFish(f)
		target := acquireTarget(f, s.Food)
		e.steer(f, target, dt)
		f.X += f.VX * dt
		f.Y += f.VY * dt
		e.contain(f)
		if e.eat(f, s, &res) {
			// Growth widens the margin; keep the fish inside it.
			e.contain(f)
		}
	}

	return res
}

// ClampDT sanitizes a frame delta.
func (e *Engine) ClampDT(dt float64) float64 {
	if math.IsNaN(dt) || dt < 0 {
		return 0
	}
	if dt > e.world.MaxDT {
		return e.world.MaxDT
	}
	return dt
}

// Bounds returns the world width and height.
func (e *Engine) Bounds() (float64, float64) {
	return e.world.Width, e.world.Height
}

// stepFood runs pellet physics and prunes terminal pellets.
func (e *Engine) stepFood(s *pond.State, dt float64, res *StepResult) {
	floor := e.world.Height - e.food.FloorOffset

	kept := s.Food[:0]
	for _, fd := range s.Food {
		e.sanitizeFood(fd)

		if fd.State == pond.FoodFalling {
			fd.VY += e.food.Gravity * dt
			fd.Y += fd.VY * dt
			if fd.Y >= floor {
				fd.Y = floor
				fd.VY = 0
				fd.State = pond.FoodResting
			}
		}

		fd.Age += dt
		if e.food.TTL > 0 && fd.Age > e.food.TTL && !fd.State.Terminal() {
			fd.State = pond.FoodExpired
		}

		switch fd.State {
		case pond.FoodExpired:
			res.Expired = append(res.Expired, fd.ID)
			continue
		case pond.FoodEaten:
			continue
		}
		kept = append(kept, fd)
	}
	clear(s.Food[len(kept):])
	s.Food = kept
}

// acquireTarget returns the nearest active pellet strictly inside the fish's
// vision radius. Strict comparison keeps the earliest pellet on exact ties.
func acquireTarget(f *pond.Fish, foods []*pond.Food) *pond.Food {
	var target *pond.Food
	best := math.Inf(1)
	for _, fd := range foods {
		if !fd.Active() {
			continue
		}
		d := math.Hypot(fd.X-f.X, fd.Y-f.Y)
		if d < f.Vision && d < best {
			best = d
			target = fd
		}
	}

	if target != nil {
		id := target.ID
		f.TargetFoodID = &id
	} else {
		f.TargetFoodID = nil
	}
	return target
}

// SpeedMultiplier scales cruise speed by size: small fish are quicker, big
// fish slower, bounded to the configured band.
func (e *Engine) SpeedMultiplier(sizeScale float64) float64 {
	m := e.fish.SpeedMultBase - e.fish.SpeedMultSlope*sizeScale
	return clamp(m, e.fish.SpeedMultMin, e.fish.SpeedMultMax)
}

// steer moves the fish velocity toward its desired velocity.
func (e *Engine) steer(f *pond.Fish, target *pond.Food, dt float64) {
	eff := f.Speed * e.SpeedMultiplier(f.SizeScale)

	var dvx, dvy float64
	if target != nil {
		hx, hy := unit(target.X-f.X, target.Y-f.Y)
		dvx, dvy = hx*eff, hy*eff
	} else {
		f.WanderT += dt
		wobble := math.Sin(f.WanderT*e.fish.WanderFreq+float64(f.ID)*1.37) * e.fish.WanderAmp
		hx, hy := unit(f.VX, f.VY)
		nx, ny := -hy, hx
		hx, hy = unit(hx+nx*wobble*e.fish.WanderWeight, hy+ny*wobble*e.fish.WanderWeight)
		dvx, dvy = hx*eff, hy*eff
	}

	a := e.Smoothing(dt)
	f.VX += (dvx - f.VX) * a
	f.VY += (dvy - f.VY) * a
	e.clampVelocity(f)
}

// Smoothing returns the interpolation factor for a frame of dt seconds.
// It equals TurnSmooth when dt is exactly one reference frame, and composes
// correctly across frame rates: two half frames turn as far as one full one.
func (e *Engine) Smoothing(dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	return 1 - math.Pow(1-e.fish.TurnSmooth, dt*e.fish.TurnRefHz)
}

// clampVelocity keeps |v| inside [VelocityMin, VelocityMax].
func (e *Engine) clampVelocity(f *pond.Fish) {
	mag := math.Hypot(f.VX, f.VY)
	switch {
	case mag < 1e-9:
		// No heading left to scale; pick one from the wander phase.
		f.VX = math.Cos(f.WanderT) * e.fish.VelocityMin
		f.VY = math.Sin(f.WanderT) * e.fish.VelocityMin
	case mag < e.fish.VelocityMin:
		k := e.fish.VelocityMin / mag
		f.VX *= k
		f.VY *= k
	case mag > e.fish.VelocityMax:
		k := e.fish.VelocityMax / mag
		f.VX *= k
		f.VY *= k
	}
}

// Margin is the wall clearance for a fish of the given size.
func (e *Engine) Margin(sizeScale float64) float64 {
	return e.fish.EdgeMargin * sizeScale
}

// contain clamps the fish inside the size-scaled margin and mirrors the
// velocity component perpendicular to any wall it touched.
func (e *Engine) contain(f *pond.Fish) {
	m := e.Margin(f.SizeScale)
	f.X, f.VX = reflect(f.X, f.VX, m, e.world.Width-m)
	f.Y, f.VY = reflect(f.Y, f.VY, m, e.world.Height-m)
}

func reflect(p, v, lo, hi float64) (float64, float64) {
	if lo > hi {
		return (lo + hi) / 2, v
	}
	if p < lo {
		return lo, math.Abs(v)
	}
	if p > hi {
		return hi, -math.Abs(v)
	}
	return p, v
}

// eat consumes every active pellet in reach. Returns true if the fish grew.
func (e *Engine) eat(f *pond.Fish, s *pond.State, res *StepResult) bool {
	reach := e.fish.EatRadius * f.SizeScale
	ate := false
	for i := len(s.Food) - 1; i >= 0; i-- {
		fd := s.Food[i]
		if !fd.Active() {
			continue
		}
		if math.Hypot(fd.X-f.X, fd.Y-f.Y) > reach+fd.R {
			continue
		}
		fd.State = pond.FoodEaten
		s.Food = slices.Delete(s.Food, i, i+1)
		f.SizeScale = e.Grow(f.SizeScale, fd.GrowPct)
		res.Eaten = append(res.Eaten, fd.ID)
		ate = true
	}
	if ate {
		res.Ate = true
		f.TargetFoodID = nil
	}
	return ate
}

// Grow applies one meal: size *= 1 + growPct/(1 + (size-1)*damping),
// capped at SizeMax. Each meal yields less as the fish grows. The result is
// never smaller than the input.
func (e *Engine) Grow(sizeScale, growPct float64) float64 {
	sizeScale = clamp(sizeScale, e.fish.SizeMin, e.fish.SizeMax)
	if !(growPct > 0) {
		return sizeScale
	}
	eff := growPct / (1 + (sizeScale-1)*e.fish.GrowthDamping)
	if !(eff > 0) || math.IsInf(eff, 0) {
		return sizeScale
	}
	return math.Min(e.fish.SizeMax, sizeScale*(1+eff))
}

func unit(x, y float64) (float64, float64) {
	l := math.Hypot(x, y)
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return 1, 0
	}
	return x / l, y / l
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
