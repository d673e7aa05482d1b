package harness

import (
	"github.com/roach88/fishpond/internal/pond"
)

func check(r *Result, a Assertion) {
	switch a.Type {
	case AssertEaten, AssertExpired:
		checkTerminal(r, a)
	case AssertFoodState:
		for _, fd := range r.State.Food {
			if fd.ID == a.Food {
				if string(fd.State) != a.State {
					r.AddError("food %d: state %s, want %s", a.Food, fd.State, a.State)
				}
				return
			}
		}
		r.AddError("food %d: not in pond", a.Food)
	case AssertFishCount:
		if n := len(r.State.Fish); n != *a.Count {
			r.AddError("fish_count: %d, want %d", n, *a.Count)
		}
	case AssertFoodCount:
		if n := len(r.State.Food); n != *a.Count {
			r.AddError("food_count: %d, want %d", n, *a.Count)
		}
	case AssertFish:
		checkFishField(r, a)
	case AssertContained:
		for _, f := range r.State.Fish {
			if !r.contained(f) {
				r.AddError("fish %d: (%.3f, %.3f) outside margin %.3f", f.ID, f.X, f.Y, r.engine.Margin(f.SizeScale))
			}
		}
	}
}

func checkTerminal(r *Result, a Assertion) {
	for _, ev := range r.Trace {
		if ev.Event != a.Type || ev.Food != a.Food {
			continue
		}
		if a.Tick != nil && ev.Tick != *a.Tick {
			r.AddError("food %d: %s at tick %d, want tick %d", a.Food, a.Type, ev.Tick, *a.Tick)
		}
		return
	}
	r.AddError("food %d: never %s", a.Food, a.Type)
}

func checkFishField(r *Result, a Assertion) {
	f := r.State.FindFish(a.Fish)
	if f == nil {
		r.AddError("fish %d: not in pond", a.Fish)
		return
	}
	v := fishField(f, a.Field)
	if a.Min != nil && v < *a.Min {
		r.AddError("fish %d: %s = %g, want >= %g", a.Fish, a.Field, v, *a.Min)
	}
	if a.Max != nil && v > *a.Max {
		r.AddError("fish %d: %s = %g, want <= %g", a.Fish, a.Field, v, *a.Max)
	}
}

func fishField(f *pond.Fish, name string) float64 {
	switch name {
	case "x":
		return f.X
	case "y":
		return f.Y
	case "vx":
		return f.VX
	case "vy":
		return f.VY
	case "speed":
		return f.Speed
	case "sizeScale":
		return f.SizeScale
	case "vision":
		return f.Vision
	}
	return 0
}

func (r *Result) contained(f *pond.Fish) bool {
	m := r.engine.Margin(f.SizeScale)
	w, h := r.engine.Bounds()
	return f.X >= m && f.X <= w-m && f.Y >= m && f.Y <= h-m
}
