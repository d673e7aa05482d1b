package pond

// FoodKind names a food tier.
type FoodKind string

const (
	KindCommon   FoodKind = "common"
	KindUncommon FoodKind = "uncommon"
	KindRare     FoodKind = "rare"
)

// FoodState is the lifecycle position of a food pellet. Transitions are
// monotonic: falling -> resting -> (eaten | expired).
type FoodState string

const (
	FoodFalling FoodState = "falling"
	FoodResting FoodState = "resting"
	FoodEaten   FoodState = "eaten"
	FoodExpired FoodState = "expired"
)

// Terminal reports whether the state ends the pellet's life.
func (s FoodState) Terminal() bool {
	return s == FoodEaten || s == FoodExpired
}

// Tier describes one row of the weighted food table.
type Tier struct {
	Kind    FoodKind `yaml:"kind" json:"kind"`
	Prob    float64  `yaml:"prob" json:"prob"`
	GrowPct float64  `yaml:"growPct" json:"growPct"`
	Radius  float64  `yaml:"radius" json:"radius"`
}

// DefaultTiers is the stock table: expected growth is roughly 0.68% per
// pellet.
var DefaultTiers = []Tier{
	{Kind: KindCommon, Prob: 0.75, GrowPct: 0.004, Radius: 5},
	{Kind: KindUncommon, Prob: 0.22, GrowPct: 0.012, Radius: 6},
	{Kind: KindRare, Prob: 0.03, GrowPct: 0.04, Radius: 7},
}

// DefaultFoodKind and DefaultGrowPct fill pellets saved before tiers existed.
const (
	DefaultFoodKind   = KindCommon
	DefaultGrowPct    = 0.004
	DefaultFoodRadius = 5.0
)

// Food is a consumable, ephemeral entity.
type Food struct {
	ID      int64     `json:"id"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	R       float64   `json:"r"`
	Kind    FoodKind  `json:"kind"`
	GrowPct float64   `json:"growPct"`
	State   FoodState `json:"state,omitempty"`
	VY      float64   `json:"vy,omitempty"`

	// Age is simulated seconds since the pellet was dropped.
	Age float64 `json:"age,omitempty"`
}

// Clone returns a copy of the pellet.
func (f *Food) Clone() *Food {
	c := *f
	return &c
}

// Active reports whether the pellet can still be targeted and eaten.
func (f *Food) Active() bool {
	return !f.State.Terminal()
}
