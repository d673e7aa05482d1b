package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	docs []Doc
}

func (r *recorder) fn(d Doc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, d)
}

func (r *recorder) all() []Doc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Doc(nil), r.docs...)
}

func TestMemory_LoadAbsent(t *testing.T) {
	m := NewMemory()
	d, err := m.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestMemory_SaveStampsAndEchoes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SetClock(func() time.Time { return time.UnixMilli(1700000000000) })

	var a, b recorder
	cancelA, err := m.Subscribe(ctx, "p", a.fn)
	require.NoError(t, err)
	_, err = m.Subscribe(ctx, "p", b.fn)
	require.NoError(t, err)
	var other recorder
	_, err = m.Subscribe(ctx, "q", other.fn)
	require.NoError(t, err)

	require.NoError(t, m.Save(ctx, "p", FromState(sampleState(), 1, "w1")))

	require.Len(t, a.all(), 1)
	require.Len(t, b.all(), 1)
	assert.Empty(t, other.all())
	assert.Equal(t, int64(1700000000000), a.all()[0].UpdatedAt)
	assert.Equal(t, "w1", a.all()[0].WriteID)

	cancelA()
	cancelA()
	require.NoError(t, m.Save(ctx, "p", FromState(sampleState(), 2, "w2")))
	assert.Len(t, a.all(), 1, "cancelled subscriber receives nothing")
	assert.Len(t, b.all(), 2)

	got, err := m.Load(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.DocRev)
	assert.Equal(t, 2, m.Saves())
}

func TestMemory_SubscribeDeliversCurrent(t *testing.T) {
	m := NewMemory()
	m.Put("p", FromState(sampleState(), 5, ""))

	var r recorder
	_, err := m.Subscribe(context.Background(), "p", r.fn)
	require.NoError(t, err)
	require.Len(t, r.all(), 1)
	assert.Equal(t, int64(5), r.all()[0].DocRev)
}

func TestMemory_Faults(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("offline")

	m.FailLoad(boom)
	_, err := m.Load(ctx, "p")
	assert.ErrorIs(t, err, boom)

	m.FailSave(boom)
	assert.ErrorIs(t, m.Save(ctx, "p", Doc{CVer: CVer}), boom)
	assert.Zero(t, m.Saves())

	m.FailLoad(nil)
	m.FailSave(nil)
	assert.NoError(t, m.Save(ctx, "p", Doc{CVer: CVer}))
}

func TestMemory_DeliveriesAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var r recorder
	_, err := m.Subscribe(ctx, "p", r.fn)
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, "p", FromState(sampleState(), 1, "")))

	r.all()[0].Fish[0].X = -1
	got, err := m.Load(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Fish[0].X)
}
