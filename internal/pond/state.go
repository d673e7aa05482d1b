package pond

// State is the live pond: both entity collections plus the id counter.
//
// A State is owned by exactly one goroutine (the session loop). Fish and
// Food are mutated in place; slices hold pointers so the simulation can
// update entities without copying. Consumers that need a stable view call
// Clone.
type State struct {
	NextID int64
	Fish   []*Fish
	Food   []*Food
}

// NewState returns an empty pond with the counter at 1.
func NewState() *State {
	return &State{NextID: 1}
}

// AllocID hands out the next id from the shared Fish/Food sequence.
func (s *State) AllocID() int64 {
	if s.NextID < 1 {
		s.NextID = 1
	}
	id := s.NextID
	s.NextID++
	return id
}

// MaxID returns the largest id present in Fish or Food, or 0 when empty.
func (s *State) MaxID() int64 {
	var max int64
	for _, f := range s.Fish {
		if f.ID > max {
			max = f.ID
		}
	}
	for _, fd := range s.Food {
		if fd.ID > max {
			max = fd.ID
		}
	}
	return max
}

// RepairNextID restores the counter invariant: NextID >= 1 and greater than
// every id present. Returns true if the counter was changed.
func (s *State) RepairNextID() bool {
	want := s.MaxID() + 1
	if s.NextID >= want && s.NextID >= 1 {
		return false
	}
	if want < 1 {
		want = 1
	}
	s.NextID = want
	return true
}

// DuplicateIDs returns ids that occur more than once across Fish and Food.
func (s *State) DuplicateIDs() []int64 {
	seen := make(map[int64]int, len(s.Fish)+len(s.Food))
	var dups []int64
	mark := func(id int64) {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	for _, f := range s.Fish {
		mark(f.ID)
	}
	for _, fd := range s.Food {
		mark(fd.ID)
	}
	return dups
}

// FindFish returns the fish with the given id, or nil.
func (s *State) FindFish(id int64) *Fish {
	for _, f := range s.Fish {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Replace overwrites s wholesale with the contents of other. The receiver
// pointer stays stable so holders of *State observe the new collections.
func (s *State) Replace(other *State) {
	if other == nil {
		s.Reset()
		return
	}
	s.NextID = other.NextID
	s.Fish = other.Fish
	s.Food = other.Food
	if s.Fish == nil {
		s.Fish = []*Fish{}
	}
	if s.Food == nil {
		s.Food = []*Food{}
	}
	s.RepairNextID()
}

// Reset empties the pond and restarts the counter.
func (s *State) Reset() {
	s.NextID = 1
	s.Fish = []*Fish{}
	s.Food = []*Food{}
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (s *State) Clone() *State {
	c := &State{
		NextID: s.NextID,
		Fish:   make([]*Fish, len(s.Fish)),
		Food:   make([]*Food, len(s.Food)),
	}
	for i, f := range s.Fish {
		c.Fish[i] = f.Clone()
	}
	for i, fd := range s.Food {
		c.Food[i] = fd.Clone()
	}
	return c
}
