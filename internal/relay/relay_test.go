package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fishpond/internal/pond"
	"github.com/roach88/fishpond/internal/remote"
	"github.com/roach88/fishpond/internal/store"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	srv   *Server
	store *store.Store
	url   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := NewServer(st, quietLogger())
	srv.SetClock(func() time.Time { return fixedNow })
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &harness{srv: srv, store: st, url: "ws" + strings.TrimPrefix(ts.URL, "http")}
}

func (h *harness) dial(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, h.url, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func sampleDoc(rev int64, writeID string) remote.Doc {
	s := &pond.State{
		NextID: 3,
		Fish:   []*pond.Fish{{ID: 1, X: 10, Y: 20, Speed: 60, SizeScale: 1, Vision: 160, Shape: pond.ShapeAngelfish}},
		Food:   []*pond.Food{{ID: 2, X: 5, Y: 5, R: 5, Kind: pond.KindCommon, GrowPct: 0.004, State: pond.FoodResting}},
	}
	return remote.FromState(s, rev, writeID)
}

type recorder struct {
	mu   sync.Mutex
	docs []remote.Doc
}

func (r *recorder) add(d remote.Doc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, d)
}

func (r *recorder) all() []remote.Doc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]remote.Doc(nil), r.docs...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

func TestEncodeDecode(t *testing.T) {
	frame, err := Encode(TypeAck, "7", "p1", Ack{UpdatedAt: 42})
	require.NoError(t, err)

	env, err := DecodeEnvelope(frame)
	require.NoError(t, err)
	assert.Equal(t, TypeAck, env.T)
	assert.Equal(t, "7", env.RID)
	assert.Equal(t, "p1", env.Pond)

	ack, err := DecodePayload[Ack](env)
	require.NoError(t, err)
	assert.Equal(t, int64(42), ack.UpdatedAt)
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	for name, frame := range map[string]string{
		"empty":        "",
		"not json":     "{",
		"missing type": `{"rid":"1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(frame))
			assert.Error(t, err)
		})
	}
}

func TestEncode_NilPayloadIsNull(t *testing.T) {
	frame, err := Encode(TypeDoc, "1", "p1", nil)
	require.NoError(t, err)
	env, err := DecodeEnvelope(frame)
	require.NoError(t, err)
	assert.True(t, isNull(env.P))
}

func TestClient_LoadAbsent(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	doc, err := c.Load(testCtx(t), "nobody")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestClient_SaveThenLoad(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)
	ctx := testCtx(t)

	require.NoError(t, c.Save(ctx, "p1", sampleDoc(4, "w-1")))

	doc, err := c.Load(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, int64(4), doc.DocRev)
	assert.Equal(t, "w-1", doc.WriteID)
	assert.Equal(t, fixedNow.UnixMilli(), doc.UpdatedAt, "relay stamps updatedAt")
	require.Len(t, doc.Fish, 1)
	assert.Equal(t, 10.0, doc.Fish[0].X)

	stored, err := h.store.LoadDoc(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stored.DocRev)
}

func TestClient_SaveInvalidDoc(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	bad := sampleDoc(1, "")
	bad.CVer = 99
	err := c.Save(testCtx(t), "p1", bad)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, TypeSave, reqErr.Type)
	assert.Contains(t, reqErr.Message, "cver")

	_, err = h.store.LoadDoc(testCtx(t), "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClient_SubscribeDeliversCurrentDoc(t *testing.T) {
	h := newHarness(t)
	ctx := testCtx(t)
	require.NoError(t, h.store.SaveDoc(ctx, "p1", sampleDoc(9, "w-9")))

	c := h.dial(t)
	var rec recorder
	cancel, err := c.Subscribe(ctx, "p1", rec.add)
	require.NoError(t, err)
	defer cancel()

	require.Eventually(t, func() bool { return rec.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(9), rec.all()[0].DocRev)
}

func TestClient_SubscribeFansOutToAllIncludingWriter(t *testing.T) {
	h := newHarness(t)
	ctx := testCtx(t)

	writer, reader := h.dial(t), h.dial(t)
	var wrec, rrec recorder
	wcancel, err := writer.Subscribe(ctx, "p1", wrec.add)
	require.NoError(t, err)
	defer wcancel()
	rcancel, err := reader.Subscribe(ctx, "p1", rrec.add)
	require.NoError(t, err)
	defer rcancel()
	assert.Equal(t, 2, h.srv.Subscribers("p1"))

	require.NoError(t, writer.Save(ctx, "p1", sampleDoc(1, "w-1")))
	require.NoError(t, writer.Save(ctx, "p1", sampleDoc(2, "w-2")))

	for _, rec := range []*recorder{&wrec, &rrec} {
		require.Eventually(t, func() bool { return rec.len() == 2 }, 2*time.Second, 10*time.Millisecond)
		docs := rec.all()
		assert.Equal(t, []int64{1, 2}, []int64{docs[0].DocRev, docs[1].DocRev}, "commit order")
		assert.Equal(t, "w-2", docs[1].WriteID)
	}
}

func TestClient_SubscribeIsolatesPonds(t *testing.T) {
	h := newHarness(t)
	ctx := testCtx(t)
	c := h.dial(t)

	var rec recorder
	cancel, err := c.Subscribe(ctx, "p1", rec.add)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, c.Save(ctx, "p2", sampleDoc(1, "")))
	require.NoError(t, c.Save(ctx, "p1", sampleDoc(5, "")))

	require.Eventually(t, func() bool { return rec.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(5), rec.all()[0].DocRev)
}

func TestClient_Unsubscribe(t *testing.T) {
	h := newHarness(t)
	ctx := testCtx(t)
	c := h.dial(t)

	var rec recorder
	cancel, err := c.Subscribe(ctx, "p1", rec.add)
	require.NoError(t, err)
	require.Equal(t, 1, h.srv.Subscribers("p1"))

	cancel()
	cancel()
	assert.Equal(t, 0, h.srv.Subscribers("p1"))

	require.NoError(t, c.Save(ctx, "p1", sampleDoc(1, "")))
	// The save ack is sent before any fan-out, so a round trip after it
	// proves nothing further is queued for this connection.
	_, err = c.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.len())
}

func TestClient_DisconnectDropsSubscriptions(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	_, err := c.Subscribe(testCtx(t), "p1", func(remote.Doc) {})
	require.NoError(t, err)
	require.Equal(t, 1, h.srv.Subscribers("p1"))

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return h.srv.Subscribers("p1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_CloseDisconnectsPeers(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	_, err := c.Subscribe(testCtx(t), "p1", func(remote.Doc) {})
	require.NoError(t, err)
	require.NoError(t, c.Err())

	h.srv.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client not told the connection was lost")
	}
	assert.ErrorIs(t, c.Err(), ErrClosed)
	require.Eventually(t, func() bool { return h.srv.Subscribers("p1") == 0 }, 2*time.Second, 10*time.Millisecond)

	_, err = c.Load(testCtx(t), "p1")
	assert.ErrorIs(t, err, ErrClosed)

	late := h.dial(t)
	select {
	case <-late.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("closed server accepted a new peer")
	}
}

func TestClient_RequestsAfterClose(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)
	require.NoError(t, c.Close())

	_, err := c.Load(testCtx(t), "p1")
	assert.True(t, errors.Is(err, ErrClosed), "got %v", err)

	_, err = c.Subscribe(testCtx(t), "p1", func(remote.Doc) {})
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Load(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
}
