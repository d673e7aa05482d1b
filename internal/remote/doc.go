// Package remote defines the shared pond document and the gateway used to
// load, save, and watch it.
//
// One document exists per pond id. Writers embed a revision (DocRev) and a
// write id; the backing store stamps UpdatedAt. The gateway makes no
// ordering promises, so readers gate on DocRev and recognise their own
// echoes by WriteID.
package remote

import (
	"errors"
	"fmt"

	"github.com/roach88/fishpond/internal/pond"
)

// CVer is the document schema version.
const CVer = 1

// ErrInvalidDoc marks a document that fails structural validation.
var ErrInvalidDoc = errors.New("invalid remote document")

// FishLite is a fish as published to the remote document. The legacy
// embedded texture never leaves the local snapshot.
type FishLite struct {
	ID           int64      `json:"id"`
	X            float64    `json:"x"`
	Y            float64    `json:"y"`
	VX           float64    `json:"vx"`
	VY           float64    `json:"vy"`
	Speed        float64    `json:"speed"`
	SizeScale    float64    `json:"sizeScale"`
	Color        string     `json:"color"`
	Vision       float64    `json:"vision"`
	TargetFoodID *int64     `json:"targetFoodId"`
	WanderT      float64    `json:"wanderT"`
	OwnerName    string     `json:"ownerName,omitempty"`
	PetName      string     `json:"petName,omitempty"`
	TextureID    string     `json:"textureId,omitempty"`
	Shape        pond.Shape `json:"shape,omitempty"`
}

// Doc is the remote pond document.
type Doc struct {
	CVer   int         `json:"cver"`
	NextID int64       `json:"nextId"`
	Fish   []FishLite  `json:"fish"`
	Food   []pond.Food `json:"food"`
	DocRev int64       `json:"docRev"`

	// UpdatedAt is assigned by the store, in Unix milliseconds.
	UpdatedAt int64 `json:"updatedAt"`

	// WriteID identifies the push that produced this revision.
	WriteID string `json:"writeId,omitempty"`
}

func liteFromFish(f *pond.Fish) FishLite {
	var target *int64
	if f.TargetFoodID != nil {
		id := *f.TargetFoodID
		target = &id
	}
	return FishLite{
		ID:           f.ID,
		X:            f.X,
		Y:            f.Y,
		VX:           f.VX,
		VY:           f.VY,
		Speed:        f.Speed,
		SizeScale:    f.SizeScale,
		Color:        f.Color,
		Vision:       f.Vision,
		TargetFoodID: target,
		WanderT:      f.WanderT,
		OwnerName:    f.OwnerName,
		PetName:      f.PetName,
		TextureID:    f.TextureID,
		Shape:        f.Shape,
	}
}

func (l FishLite) toFish() *pond.Fish {
	var target *int64
	if l.TargetFoodID != nil {
		id := *l.TargetFoodID
		target = &id
	}
	shape := l.Shape
	if shape == "" {
		shape = pond.DefaultShape
	}
	vision := l.Vision
	if vision <= 0 {
		vision = pond.DefaultVision
	}
	return &pond.Fish{
		ID:           l.ID,
		X:            l.X,
		Y:            l.Y,
		VX:           l.VX,
		VY:           l.VY,
		Speed:        l.Speed,
		SizeScale:    l.SizeScale,
		Color:        l.Color,
		Vision:       vision,
		TargetFoodID: target,
		WanderT:      l.WanderT,
		OwnerName:    l.OwnerName,
		PetName:      l.PetName,
		TextureID:    l.TextureID,
		Shape:        shape,
	}
}

// FromState builds a document from live state. The state is copied; the
// result shares nothing with s.
func FromState(s *pond.State, rev int64, writeID string) Doc {
	d := Doc{
		CVer:    CVer,
		NextID:  s.NextID,
		Fish:    make([]FishLite, 0, len(s.Fish)),
		Food:    make([]pond.Food, 0, len(s.Food)),
		DocRev:  rev,
		WriteID: writeID,
	}
	for _, f := range s.Fish {
		d.Fish = append(d.Fish, liteFromFish(f))
	}
	for _, fd := range s.Food {
		if !fd.Active() {
			continue
		}
		d.Food = append(d.Food, *fd)
	}
	return d
}

// ToState converts the document into a fresh State with the id counter
// repaired. Pellets without a tier get the common defaults.
func (d Doc) ToState() *pond.State {
	s := &pond.State{
		NextID: d.NextID,
		Fish:   make([]*pond.Fish, 0, len(d.Fish)),
		Food:   make([]*pond.Food, 0, len(d.Food)),
	}
	for _, l := range d.Fish {
		s.Fish = append(s.Fish, l.toFish())
	}
	for i := range d.Food {
		fd := d.Food[i]
		if fd.Kind == "" {
			fd.Kind = pond.DefaultFoodKind
			fd.GrowPct = pond.DefaultGrowPct
		}
		if fd.State == "" {
			fd.State = pond.FoodResting
		}
		s.Food = append(s.Food, &fd)
	}
	s.RepairNextID()
	return s
}

// Clone returns a deep copy.
func (d Doc) Clone() Doc {
	c := d
	c.Fish = make([]FishLite, len(d.Fish))
	for i, l := range d.Fish {
		if l.TargetFoodID != nil {
			id := *l.TargetFoodID
			l.TargetFoodID = &id
		}
		c.Fish[i] = l
	}
	c.Food = append([]pond.Food(nil), d.Food...)
	return c
}

// Validate checks the structural rules a reader relies on. Errors wrap
// ErrInvalidDoc.
func (d Doc) Validate() error {
	if d.CVer != CVer {
		return fmt.Errorf("%w: cver %d, want %d", ErrInvalidDoc, d.CVer, CVer)
	}
	if d.DocRev < 0 {
		return fmt.Errorf("%w: negative docRev %d", ErrInvalidDoc, d.DocRev)
	}
	seen := make(map[int64]bool, len(d.Fish)+len(d.Food))
	check := func(kind string, id int64) error {
		if id < 1 {
			return fmt.Errorf("%w: %s id %d", ErrInvalidDoc, kind, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidDoc, id)
		}
		seen[id] = true
		return nil
	}
	for _, f := range d.Fish {
		if err := check("fish", f.ID); err != nil {
			return err
		}
	}
	for _, fd := range d.Food {
		if err := check("food", fd.ID); err != nil {
			return err
		}
	}
	return nil
}
