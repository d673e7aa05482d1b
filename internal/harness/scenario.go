package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted pond run loaded from YAML.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Config is overlaid on the default parameters, in the same shape as a
	// pond config file.
	Config map[string]any `yaml:"config,omitempty"`

	Pond       PondSetup   `yaml:"pond"`
	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// PondSetup is the initial pond contents.
type PondSetup struct {
	Fish []FishSpec `yaml:"fish,omitempty"`
	Food []FoodSpec `yaml:"food,omitempty"`
}

// FishSpec seeds one fish. Zero SizeScale means 1; other zero fields are
// filled in by the simulation's sanitizer.
type FishSpec struct {
	ID        int64   `yaml:"id,omitempty"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	VX        float64 `yaml:"vx,omitempty"`
	VY        float64 `yaml:"vy,omitempty"`
	Speed     float64 `yaml:"speed,omitempty"`
	SizeScale float64 `yaml:"sizeScale,omitempty"`
	Vision    float64 `yaml:"vision,omitempty"`
	WanderT   float64 `yaml:"wanderT,omitempty"`
}

// FoodSpec seeds one pellet of the named tier.
type FoodSpec struct {
	ID    int64   `yaml:"id,omitempty"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Kind  string  `yaml:"kind,omitempty"`
	State string  `yaml:"state,omitempty"`
}

// Step is one scenario action. Exactly one of Ticks, Feed, or AddFish is set.
type Step struct {
	// Ticks advances the simulation that many frames of DT seconds each.
	// DT defaults to one frame at the configured rate and is clamped like
	// any other frame delta.
	Ticks int     `yaml:"ticks,omitempty"`
	DT    float64 `yaml:"dt,omitempty"`

	Feed    *FoodSpec `yaml:"feed,omitempty"`
	AddFish *FishSpec `yaml:"add_fish,omitempty"`
}

// Assertion checks the trace or the final pond.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Food int64 `yaml:"food,omitempty"`
	Fish int64 `yaml:"fish,omitempty"`

	// Tick pins eaten/expired to one frame.
	Tick *int `yaml:"tick,omitempty"`

	// State is the expected food_state.
	State string `yaml:"state,omitempty"`

	// Count is the expected fish_count/food_count.
	Count *int `yaml:"count,omitempty"`

	// Field, Min, and Max bound one numeric fish field (x, y, vx, vy, speed,
	// sizeScale, vision).
	Field string   `yaml:"field,omitempty"`
	Min   *float64 `yaml:"min,omitempty"`
	Max   *float64 `yaml:"max,omitempty"`
}

// Assertion type constants.
const (
	AssertEaten     = "eaten"
	AssertExpired   = "expired"
	AssertFoodState = "food_state"
	AssertFishCount = "fish_count"
	AssertFoodCount = "food_count"
	AssertFish      = "fish"
	AssertContained = "contained"
)

var fishFields = []string{"x", "y", "vx", "vy", "speed", "sizeScale", "vision"}

// LoadScenario reads and validates one scenario file. Unknown keys are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, st := range s.Steps {
		set := 0
		if st.Ticks != 0 {
			set++
		}
		if st.Feed != nil {
			set++
		}
		if st.AddFish != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of ticks, feed, add_fish is required", i)
		}
		if st.Ticks < 0 {
			return fmt.Errorf("steps[%d]: ticks must be positive", i)
		}
		if st.DT < 0 {
			return fmt.Errorf("steps[%d]: dt must be non-negative", i)
		}
		if st.DT != 0 && st.Ticks == 0 {
			return fmt.Errorf("steps[%d]: dt only applies to ticks", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(i int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	case AssertEaten, AssertExpired:
		if a.Food == 0 {
			return fmt.Errorf("assertions[%d]: food is required for %s", i, a.Type)
		}
	case AssertFoodState:
		if a.Food == 0 || a.State == "" {
			return fmt.Errorf("assertions[%d]: food and state are required for food_state", i)
		}
	case AssertFishCount, AssertFoodCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", i, a.Type)
		}
	case AssertFish:
		if a.Fish == 0 {
			return fmt.Errorf("assertions[%d]: fish is required for fish", i)
		}
		if !slices.Contains(fishFields, a.Field) {
			return fmt.Errorf("assertions[%d]: field must be one of %v", i, fishFields)
		}
		if a.Min == nil && a.Max == nil {
			return fmt.Errorf("assertions[%d]: min or max is required for fish", i)
		}
	case AssertContained:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
