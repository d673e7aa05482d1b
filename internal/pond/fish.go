package pond

// Shape selects a fish body outline. Rendering is external; the core only
// stores the selector.
type Shape string

const (
	ShapeAngelfish Shape = "angelfish"
	ShapeSwordfish Shape = "swordfish"
	ShapeLongtail  Shape = "longtail"
)

// DefaultShape is assigned to fish saved before shapes existed.
const DefaultShape = ShapeAngelfish

// DefaultVision is the perception radius given to fish that predate the
// vision field.
const DefaultVision = 160.0

// ValidShapes lists every selectable body shape.
var ValidShapes = map[Shape]bool{
	ShapeAngelfish: true,
	ShapeSwordfish: true,
	ShapeLongtail:  true,
}

// ParseShape returns the shape named s, falling back to DefaultShape for
// unknown or empty values.
func ParseShape(s string) Shape {
	if ValidShapes[Shape(s)] {
		return Shape(s)
	}
	return DefaultShape
}

// Fish is a mobile, growable entity.
type Fish struct {
	ID        int64   `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	Speed     float64 `json:"speed"`
	SizeScale float64 `json:"sizeScale"`
	Color     string  `json:"color"`
	Vision    float64 `json:"vision"`

	// TargetFoodID is the food chosen on the last tick, or nil while wandering.
	TargetFoodID *int64 `json:"targetFoodId"`

	// WanderT is the phase accumulator that drives heading drift.
	WanderT float64 `json:"wanderT"`

	OwnerName string `json:"ownerName,omitempty"`
	PetName   string `json:"petName,omitempty"`

	// TextureID is the content hash of the fish texture (see internal/assets).
	TextureID string `json:"textureId,omitempty"`

	// TextureDataURL is the legacy embedded texture. It is kept in local saves
	// only and never sent to the remote document.
	TextureDataURL string `json:"textureDataUrl,omitempty"`

	Shape Shape `json:"shape,omitempty"`
}

// Clone returns a deep copy of the fish.
func (f *Fish) Clone() *Fish {
	c := *f
	if f.TargetFoodID != nil {
		id := *f.TargetFoodID
		c.TargetFoodID = &id
	}
	return &c
}

// HasCustomTexture reports whether the fish carries a texture reference.
func (f *Fish) HasCustomTexture() bool {
	return f.TextureID != "" || f.TextureDataURL != ""
}
