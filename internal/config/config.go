// Package config holds the simulation and sync parameters for a pond.
//
// Parameters come from Default(), optionally overlaid by a YAML file, and are
// validated against the CUE schema embedded in schema.cue before use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fishpond/internal/pond"
)

// Config is the full parameter set. Field tags serve both the YAML file and
// the CUE encoder (which reads json tags).
type Config struct {
	World WorldConfig `yaml:"world" json:"world"`
	Fish  FishConfig  `yaml:"fish" json:"fish"`
	Food  FoodConfig  `yaml:"food" json:"food"`
	Sync  SyncConfig  `yaml:"sync" json:"sync"`
}

// WorldConfig sizes the pond and paces the frame loop.
type WorldConfig struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`

	// MaxDT bounds a single tick in seconds, so a stalled frame cannot
	// tunnel fish through food or walls.
	MaxDT   float64 `yaml:"maxDt" json:"maxDt"`
	FrameHz int     `yaml:"frameHz" json:"frameHz"`
}

// FishConfig holds steering and growth constants.
type FishConfig struct {
	SpeedMin    float64 `yaml:"speedMin" json:"speedMin"`
	SpeedMax    float64 `yaml:"speedMax" json:"speedMax"`
	VelocityMin float64 `yaml:"velocityMin" json:"velocityMin"`
	VelocityMax float64 `yaml:"velocityMax" json:"velocityMax"`

	// TurnSmooth is the fraction of the gap to the desired velocity closed
	// per reference frame (TurnRefHz).
	TurnSmooth float64 `yaml:"turnSmooth" json:"turnSmooth"`
	TurnRefHz  float64 `yaml:"turnRefHz" json:"turnRefHz"`

	Vision     float64 `yaml:"vision" json:"vision"`
	EatRadius  float64 `yaml:"eatRadius" json:"eatRadius"`
	EdgeMargin float64 `yaml:"edgeMargin" json:"edgeMargin"`

	SizeMin       float64 `yaml:"sizeMin" json:"sizeMin"`
	SizeMax       float64 `yaml:"sizeMax" json:"sizeMax"`
	SpawnSizeMin  float64 `yaml:"spawnSizeMin" json:"spawnSizeMin"`
	SpawnSizeMax  float64 `yaml:"spawnSizeMax" json:"spawnSizeMax"`
	GrowthDamping float64 `yaml:"growthDamping" json:"growthDamping"`

	// Speed multiplier: clamp(base - slope*sizeScale, min, max).
	SpeedMultBase  float64 `yaml:"speedMultBase" json:"speedMultBase"`
	SpeedMultSlope float64 `yaml:"speedMultSlope" json:"speedMultSlope"`
	SpeedMultMin   float64 `yaml:"speedMultMin" json:"speedMultMin"`
	SpeedMultMax   float64 `yaml:"speedMultMax" json:"speedMultMax"`

	WanderFreq   float64 `yaml:"wanderFreq" json:"wanderFreq"`
	WanderAmp    float64 `yaml:"wanderAmp" json:"wanderAmp"`
	WanderWeight float64 `yaml:"wanderWeight" json:"wanderWeight"`

	MaxCount   int     `yaml:"maxCount" json:"maxCount"`
	SpawnInset float64 `yaml:"spawnInset" json:"spawnInset"`
}

// FoodConfig holds the tier table and pellet lifecycle constants.
type FoodConfig struct {
	Tiers []pond.Tier `yaml:"tiers" json:"tiers"`

	// TTL is the pellet lifetime in simulated seconds; 0 disables expiry.
	TTL float64 `yaml:"ttl" json:"ttl"`

	// Sink makes new pellets fall under Gravity until they reach the floor
	// (Height - FloorOffset). When false pellets rest where they are dropped.
	Sink        bool    `yaml:"sink" json:"sink"`
	Gravity     float64 `yaml:"gravity" json:"gravity"`
	FloorOffset float64 `yaml:"floorOffset" json:"floorOffset"`
}

// SyncConfig holds the throttle windows.
type SyncConfig struct {
	LocalThrottle  time.Duration `yaml:"localThrottle" json:"localThrottle"`
	RemoteThrottle time.Duration `yaml:"remoteThrottle" json:"remoteThrottle"`

	// RecentWrites bounds how many of our own write ids are remembered for
	// echo suppression.
	RecentWrites int `yaml:"recentWrites" json:"recentWrites"`
}

// Default returns the stock parameters.
func Default() Config {
	tiers := make([]pond.Tier, len(pond.DefaultTiers))
	copy(tiers, pond.DefaultTiers)

	return Config{
		World: WorldConfig{
			Width:   4096,
			Height:  2304,
			MaxDT:   0.05,
			FrameHz: 60,
		},
		Fish: FishConfig{
			SpeedMin:       55,
			SpeedMax:       90,
			VelocityMin:    20,
			VelocityMax:    160,
			TurnSmooth:     0.08,
			TurnRefHz:      60,
			Vision:         pond.DefaultVision,
			EatRadius:      14,
			EdgeMargin:     14,
			SizeMin:        0.5,
			SizeMax:        2.5,
			SpawnSizeMin:   0.9,
			SpawnSizeMax:   1.1,
			GrowthDamping:  0.8,
			SpeedMultBase:  1.35,
			SpeedMultSlope: 0.26,
			SpeedMultMin:   0.70,
			SpeedMultMax:   1.20,
			WanderFreq:     1.8,
			WanderAmp:      0.6,
			WanderWeight:   0.25,
			MaxCount:       80,
			SpawnInset:     40,
		},
		Food: FoodConfig{
			Tiers:       tiers,
			TTL:         15,
			Sink:        false,
			Gravity:     400,
			FloorOffset: 40,
		},
		Sync: SyncConfig{
			LocalThrottle:  800 * time.Millisecond,
			RemoteThrottle: 3 * time.Second,
			RecentWrites:   32,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err = Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
