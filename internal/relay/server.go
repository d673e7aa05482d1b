package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/fishpond/internal/remote"
	"github.com/roach88/fishpond/internal/store"
)

const (
	maxFrameBytes = 4 << 20
	pongWait      = 60 * time.Second
	pingPeriod    = 25 * time.Second
	writeWait     = 10 * time.Second
	sendBuffer    = 64
)

// DocStore persists hosted documents. store.Store implements it; LoadDoc
// returns store.ErrNotFound for an unknown pond.
type DocStore interface {
	LoadDoc(ctx context.Context, pondID string) (*remote.Doc, error)
	SaveDoc(ctx context.Context, pondID string, d remote.Doc) error
}

// Server is the websocket endpoint hosting pond documents.
type Server struct {
	docs     DocStore
	logger   *slog.Logger
	now      func() time.Time
	upgrader websocket.Upgrader

	// mu orders saves and fan-out so every subscriber sees one pond's
	// writes in commit order.
	mu     sync.Mutex
	subs   map[string]map[*peer]struct{}
	peers  map[*peer]struct{}
	closed bool
}

// NewServer creates a relay over docs.
func NewServer(docs DocStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		docs:   docs,
		logger: logger,
		now:    time.Now,
		upgrader: websocket.Upgrader{
			// Pond ids are the only access control; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs:  make(map[string]map[*peer]struct{}),
		peers: make(map[*peer]struct{}),
	}
}

// SetClock replaces the updatedAt source. Intended for tests.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

// Close disconnects every peer and refuses new ones. http.Server.Shutdown
// does not close hijacked connections, so call this after it.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.close()
		_ = p.ws.Close()
	}
}

// Subscribers returns the number of connections subscribed to pondID.
func (s *Server) Subscribers(pondID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[pondID])
}

type peer struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (p *peer) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// enqueue hands a frame to the write pump. A peer too slow to drain its
// buffer is disconnected.
func (p *peer) enqueue(frame []byte) {
	select {
	case p.send <- frame:
	case <-p.done:
	default:
		p.close()
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	p := &peer{ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ws.Close()
		return
	}
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("relay peer connected", "remote", r.RemoteAddr)

	go s.writePump(p)
	s.readPump(r.Context(), p)

	s.dropPeer(p)
	p.close()
	ws.Close()
	s.logger.Debug("relay peer disconnected", "remote", r.RemoteAddr)
}

func (s *Server) readPump(ctx context.Context, p *peer) {
	p.ws.SetReadLimit(maxFrameBytes)
	_ = p.ws.SetReadDeadline(time.Now().Add(pongWait))
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := p.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("relay read", "error", err)
			}
			return
		}
		select {
		case <-p.done:
			return
		default:
		}

		env, err := DecodeEnvelope(msg)
		if err != nil {
			s.reply(p, TypeError, "", "", ErrorPayload{Message: err.Error()})
			continue
		}
		s.handle(ctx, p, env)
	}
}

func (s *Server) writePump(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer p.ws.Close()

	for {
		select {
		case frame := <-p.send:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.close()
				return
			}
		case <-ticker.C:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, p *peer, env Envelope) {
	if env.Pond == "" {
		s.reply(p, TypeError, env.RID, "", ErrorPayload{Message: "missing pond"})
		return
	}

	switch env.T {
	case TypeLoad:
		doc, err := s.load(ctx, env.Pond)
		if err != nil {
			s.fail(p, env, err)
			return
		}
		s.reply(p, TypeDoc, env.RID, env.Pond, doc)

	case TypeSave:
		doc, err := DecodePayload[remote.Doc](env)
		if err != nil {
			s.fail(p, env, err)
			return
		}
		if err := doc.Validate(); err != nil {
			s.fail(p, env, err)
			return
		}
		s.save(ctx, p, env, doc)

	case TypeSubscribe:
		s.mu.Lock()
		if s.subs[env.Pond] == nil {
			s.subs[env.Pond] = make(map[*peer]struct{})
		}
		s.subs[env.Pond][p] = struct{}{}
		s.mu.Unlock()

		s.reply(p, TypeAck, env.RID, env.Pond, Ack{})
		if doc, err := s.load(ctx, env.Pond); err == nil && doc != nil {
			s.reply(p, TypeDoc, "", env.Pond, doc)
		}

	case TypeUnsubscribe:
		s.mu.Lock()
		delete(s.subs[env.Pond], p)
		if len(s.subs[env.Pond]) == 0 {
			delete(s.subs, env.Pond)
		}
		s.mu.Unlock()
		s.reply(p, TypeAck, env.RID, env.Pond, Ack{})

	default:
		s.reply(p, TypeError, env.RID, env.Pond, ErrorPayload{Message: "unknown type " + env.T})
	}
}

func (s *Server) load(ctx context.Context, pondID string) (*remote.Doc, error) {
	doc, err := s.docs.LoadDoc(ctx, pondID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

func (s *Server) save(ctx context.Context, p *peer, env Envelope, doc remote.Doc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.UpdatedAt = s.now().UnixMilli()
	if err := s.docs.SaveDoc(ctx, env.Pond, doc); err != nil {
		s.fail(p, env, err)
		return
	}
	s.reply(p, TypeAck, env.RID, env.Pond, Ack{UpdatedAt: doc.UpdatedAt})

	frame, err := Encode(TypeDoc, "", env.Pond, doc)
	if err != nil {
		s.logger.Error("encode delivery", "pond", env.Pond, "error", err)
		return
	}
	for sub := range s.subs[env.Pond] {
		sub.enqueue(frame)
	}
	s.logger.Debug("relay save", "pond", env.Pond, "rev", doc.DocRev, "subscribers", len(s.subs[env.Pond]))
}

func (s *Server) fail(p *peer, env Envelope, err error) {
	s.logger.Debug("relay request failed", "type", env.T, "pond", env.Pond, "error", err)
	s.reply(p, TypeError, env.RID, env.Pond, ErrorPayload{Message: err.Error()})
}

func (s *Server) reply(p *peer, t, rid, pond string, payload any) {
	frame, err := Encode(t, rid, pond, payload)
	if err != nil {
		s.logger.Error("encode reply", "type", t, "error", err)
		return
	}
	p.enqueue(frame)
}

func (s *Server) dropPeer(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, p)
	for pond, set := range s.subs {
		delete(set, p)
		if len(set) == 0 {
			delete(s.subs, pond)
		}
	}
}
