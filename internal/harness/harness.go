package harness

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fishpond/internal/config"
	"github.com/roach88/fishpond/internal/pond"
	"github.com/roach88/fishpond/internal/sim"
)

// Trace event kinds.
const (
	EventFeed    = "feed"
	EventSpawn   = "spawn"
	EventEaten   = "eaten"
	EventExpired = "expired"
)

// Event is one trace entry. Tick is the number of frames completed when the
// event happened; feed and spawn steps before the first frame are tick 0.
type Event struct {
	Tick  int    `json:"tick"`
	Event string `json:"event"`
	Fish  int64  `json:"fish,omitempty"`
	Food  int64  `json:"food,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	Trace []Event `json:"trace"`
	Ticks int     `json:"ticks"`

	// State is the pond after the last step.
	State *pond.State `json:"-"`

	engine *sim.Engine
}

// AddError records a failed assertion.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// ScenarioConfig overlays the scenario's config block on the defaults.
func ScenarioConfig(sc *Scenario) (config.Config, error) {
	if len(sc.Config) == 0 {
		return config.Default(), nil
	}
	data, err := yaml.Marshal(sc.Config)
	if err != nil {
		return config.Config{}, fmt.Errorf("encode config overlay: %w", err)
	}
	return config.Parse(data)
}

// Run executes the scenario and evaluates its assertions. An error means the
// scenario could not be run at all; failed assertions are reported in the
// Result.
func Run(sc *Scenario) (*Result, error) {
	cfg, err := ScenarioConfig(sc)
	if err != nil {
		return nil, err
	}
	eng := sim.New(cfg)

	state, err := seed(eng, cfg, sc.Pond)
	if err != nil {
		return nil, err
	}

	res := &Result{Pass: true, Trace: []Event{}, State: state, engine: eng}
	frame := 1 / float64(cfg.World.FrameHz)

	for i, st := range sc.Steps {
		switch {
		case st.Feed != nil:
			fd, err := newFood(eng, state.AllocID(), *st.Feed)
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			state.Food = append(state.Food, fd)
			res.Trace = append(res.Trace, Event{Tick: res.Ticks, Event: EventFeed, Food: fd.ID})

		case st.AddFish != nil:
			spec := *st.AddFish
			if spec.ID == 0 {
				spec.ID = state.AllocID()
			}
			f := newFish(spec)
			state.Fish = append(state.Fish, f)
			state.RepairNextID()
			res.Trace = append(res.Trace, Event{Tick: res.Ticks, Event: EventSpawn, Fish: f.ID})

		default:
			dt := st.DT
			if dt == 0 {
				dt = frame
			}
			for range st.Ticks {
				out := eng.Step(state, dt)
				res.Ticks++
				for _, id := range out.Eaten {
					res.Trace = append(res.Trace, Event{Tick: res.Ticks, Event: EventEaten, Food: id})
				}
				for _, id := range out.Expired {
					res.Trace = append(res.Trace, Event{Tick: res.Ticks, Event: EventExpired, Food: id})
				}
			}
		}
	}

	for _, a := range sc.Assertions {
		check(res, a)
	}
	return res, nil
}

func seed(eng *sim.Engine, cfg config.Config, setup PondSetup) (*pond.State, error) {
	s := pond.NewState()
	for _, spec := range setup.Fish {
		if spec.ID == 0 {
			return nil, fmt.Errorf("pond.fish: id is required")
		}
		s.Fish = append(s.Fish, newFish(spec))
	}
	for _, spec := range setup.Food {
		if spec.ID == 0 {
			return nil, fmt.Errorf("pond.food: id is required")
		}
		fd, err := newFood(eng, spec.ID, spec)
		if err != nil {
			return nil, fmt.Errorf("pond.food %d: %w", spec.ID, err)
		}
		s.Food = append(s.Food, fd)
	}
	if dup := s.DuplicateIDs(); len(dup) > 0 {
		return nil, fmt.Errorf("duplicate ids %v", dup)
	}
	s.RepairNextID()
	return s, nil
}

func newFish(spec FishSpec) *pond.Fish {
	size := spec.SizeScale
	if size == 0 {
		size = 1
	}
	return &pond.Fish{
		ID:        spec.ID,
		X:         spec.X,
		Y:         spec.Y,
		VX:        spec.VX,
		VY:        spec.VY,
		Speed:     spec.Speed,
		SizeScale: size,
		Vision:    spec.Vision,
		WanderT:   spec.WanderT,
		Shape:     pond.DefaultShape,
	}
}

func newFood(eng *sim.Engine, id int64, spec FoodSpec) (*pond.Food, error) {
	kind := pond.FoodKind(spec.Kind)
	if kind == "" {
		kind = pond.DefaultFoodKind
	}
	tier, ok := eng.TierFor(kind)
	if !ok {
		return nil, fmt.Errorf("unknown food kind %q", spec.Kind)
	}
	fd := eng.DropFood(id, spec.X, spec.Y, tier)
	switch pond.FoodState(spec.State) {
	case "":
	case pond.FoodFalling, pond.FoodResting:
		fd.State = pond.FoodState(spec.State)
	default:
		return nil, fmt.Errorf("food cannot start in state %q", spec.State)
	}
	return fd, nil
}
