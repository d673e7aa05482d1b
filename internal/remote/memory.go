package remote

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Gateway. It backs single-process runs and tests.
type Memory struct {
	mu      sync.Mutex
	docs    map[string]Doc
	subs    map[string]map[int]func(Doc)
	nextSub int
	now     func() time.Time

	loadErr error
	saveErr error
	saves   int
}

// NewMemory creates an empty in-process gateway.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]Doc),
		subs: make(map[string]map[int]func(Doc)),
		now:  time.Now,
	}
}

// SetClock replaces the UpdatedAt source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailLoad makes subsequent Loads return err. Pass nil to clear.
func (m *Memory) FailLoad(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// FailSave makes subsequent Saves return err. Pass nil to clear.
func (m *Memory) FailSave(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves returns the number of successful Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Put stores a document directly without notifying subscribers.
func (m *Memory) Put(pondID string, doc Doc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[pondID] = doc.Clone()
}

func (m *Memory) Load(ctx context.Context, pondID string) (*Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	d, ok := m.docs[pondID]
	if !ok {
		return nil, nil
	}
	c := d.Clone()
	return &c, nil
}

func (m *Memory) Save(ctx context.Context, pondID string, doc Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.saveErr != nil {
		err := m.saveErr
		m.mu.Unlock()
		return err
	}
	doc = doc.Clone()
	doc.UpdatedAt = m.now().UnixMilli()
	m.docs[pondID] = doc
	m.saves++
	fns := m.subscribersLocked(pondID)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(doc.Clone())
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, pondID string, fn func(Doc)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	if m.subs[pondID] == nil {
		m.subs[pondID] = make(map[int]func(Doc))
	}
	m.subs[pondID][id] = fn
	cur, ok := m.docs[pondID]
	m.mu.Unlock()

	if ok {
		fn(cur.Clone())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs[pondID], id)
		})
	}, nil
}

// Publish delivers doc to subscribers as if another client had saved it.
func (m *Memory) Publish(pondID string, doc Doc) {
	m.mu.Lock()
	doc = doc.Clone()
	m.docs[pondID] = doc
	fns := m.subscribersLocked(pondID)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(doc.Clone())
	}
}

func (m *Memory) subscribersLocked(pondID string) []func(Doc) {
	fns := make([]func(Doc), 0, len(m.subs[pondID]))
	for _, fn := range m.subs[pondID] {
		fns = append(fns, fn)
	}
	return fns
}

var _ Gateway = (*Memory)(nil)
