package session

import (
	"context"
	"fmt"

	"github.com/roach88/fishpond/internal/pond"
)

// The actions below must run on the loop. Each user edit pushes the pond
// immediately.

// AddFish spawns a random fish at a random point.
func (s *Session) AddFish() (*pond.Fish, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.checkRoom(); err != nil {
		return nil, err
	}
	x, y := s.engine.RandomPoint(s.rng)
	f := s.engine.SpawnFish(s.state.AllocID(), x, y, s.rng)
	s.state.Fish = append(s.state.Fish, f)
	s.coord.PushNow()
	s.logger.Debug("fish added", "fish", f.ID)
	return f.Clone(), nil
}

// Feed drops a pellet of a randomly drawn tier at (x, y).
func (s *Session) Feed(x, y float64) (*pond.Food, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	fd := s.engine.DropFood(s.state.AllocID(), x, y, s.engine.FeedTier(s.rng))
	s.state.Food = append(s.state.Food, fd)
	s.coord.PushNow()
	s.logger.Debug("food dropped", "food", fd.ID, "kind", fd.Kind)
	return fd.Clone(), nil
}

// FeedRandom drops a pellet at a random point.
func (s *Session) FeedRandom() (*pond.Food, error) {
	x, y := s.engine.RandomPoint(s.rng)
	return s.Feed(x, y)
}

// CreateFish spawns a user-designed fish. Names are normalized, unknown
// shapes fall back to the default, and a texture is stored by content id.
func (s *Session) CreateFish(ctx context.Context, c CustomFish) (*pond.Fish, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.checkRoom(); err != nil {
		return nil, err
	}

	var textureID string
	if len(c.Texture) > 0 {
		id, err := s.assets.Put(ctx, c.Texture)
		if err != nil {
			return nil, fmt.Errorf("create fish: %w", err)
		}
		textureID = id
	}

	x, y := s.engine.RandomPoint(s.rng)
	f := s.engine.SpawnFish(s.state.AllocID(), x, y, s.rng)
	f.OwnerName = pond.CleanName(c.OwnerName)
	f.PetName = pond.CleanName(c.PetName)
	f.Shape = pond.ParseShape(c.Shape)
	if c.Color != "" {
		f.Color = c.Color
	}
	f.TextureID = textureID
	s.state.Fish = append(s.state.Fish, f)
	s.coord.PushNow()
	s.logger.Debug("custom fish created", "fish", f.ID, "shape", f.Shape)
	return f.Clone(), nil
}

// SetTexture replaces a fish's texture.
func (s *Session) SetTexture(ctx context.Context, fishID int64, data []byte) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	f := s.state.FindFish(fishID)
	if f == nil {
		return "", fmt.Errorf("%w: %d", ErrUnknownFish, fishID)
	}
	id, err := s.assets.Put(ctx, data)
	if err != nil {
		return "", fmt.Errorf("set texture on fish %d: %w", fishID, err)
	}
	f.TextureID = id
	f.TextureDataURL = ""
	s.coord.PushNow()
	return id, nil
}

// Clear empties the pond and restarts the id counter.
func (s *Session) Clear() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.state.Reset()
	s.coord.PushNow()
	s.logger.Info("pond cleared")
	return nil
}

func (s *Session) ready() error {
	if s.coord == nil {
		return ErrNotStarted
	}
	if s.queue.Closed() {
		return ErrClosed
	}
	return nil
}

func (s *Session) checkRoom() error {
	if max := s.opts.Config.Fish.MaxCount; max > 0 && len(s.state.Fish) >= max {
		return fmt.Errorf("%w: %d fish", ErrPondFull, max)
	}
	return nil
}
