package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/fishpond/internal/remote"
)

// ErrClosed is returned by requests on a closed or broken client.
var ErrClosed = errors.New("relay client closed")

// RequestError is a failure reported by the relay.
type RequestError struct {
	Type    string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("relay %s: %s", e.Type, e.Message)
}

// Client is a remote.Gateway backed by a relay connection. Subscription
// callbacks run on the client's reader goroutine.
type Client struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	rid     atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan Envelope
	subs    map[string]map[uint64]func(remote.Doc)
	nextSub uint64
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ remote.Gateway    = (*Client)(nil)
	_ remote.Connection = (*Client)(nil)
)

// Dial connects to a relay websocket URL such as ws://host:8080/ws.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
	}
	ws, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	ws.SetReadLimit(maxFrameBytes)

	c := &Client{
		ws:      ws,
		logger:  logger,
		pending: make(map[string]chan Envelope),
		subs:    make(map[string]map[uint64]func(remote.Doc)),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// Load returns the hosted document, or nil if the pond has none.
func (c *Client) Load(ctx context.Context, pondID string) (*remote.Doc, error) {
	env, err := c.request(ctx, TypeLoad, pondID, nil)
	if err != nil {
		return nil, err
	}
	if env.T != TypeDoc {
		return nil, fmt.Errorf("relay load: unexpected reply %q", env.T)
	}
	if isNull(env.P) {
		return nil, nil
	}
	doc, err := DecodePayload[remote.Doc](env)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save writes d and waits for the relay's acknowledgement.
func (c *Client) Save(ctx context.Context, pondID string, d remote.Doc) error {
	env, err := c.request(ctx, TypeSave, pondID, d)
	if err != nil {
		return err
	}
	if env.T != TypeAck {
		return fmt.Errorf("relay save: unexpected reply %q", env.T)
	}
	return nil
}

// Subscribe registers fn for pondID. The relay sends the current document
// right after the subscription is acknowledged.
func (c *Client) Subscribe(ctx context.Context, pondID string, fn func(remote.Doc)) (func(), error) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.nextSub++
	id := c.nextSub
	if c.subs[pondID] == nil {
		c.subs[pondID] = make(map[uint64]func(remote.Doc))
	}
	c.subs[pondID][id] = fn
	c.mu.Unlock()

	if _, err := c.request(ctx, TypeSubscribe, pondID, nil); err != nil {
		c.removeSub(pondID, id)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if c.removeSub(pondID, id) == 0 {
				ctx, cancel := context.WithTimeout(context.Background(), writeWait)
				defer cancel()
				if _, err := c.request(ctx, TypeUnsubscribe, pondID, nil); err != nil && !errors.Is(err, ErrClosed) {
					c.logger.Debug("relay unsubscribe", "pond", pondID, "error", err)
				}
			}
		})
	}, nil
}

// Close shuts the connection down and fails outstanding requests.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.fail(ErrClosed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) removeSub(pondID string, id uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs[pondID], id)
	n := len(c.subs[pondID])
	if n == 0 {
		delete(c.subs, pondID)
	}
	return n
}

func (c *Client) request(ctx context.Context, t, pondID string, payload any) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	rid := strconv.FormatUint(c.rid.Add(1), 10)
	frame, err := Encode(t, rid, pondID, payload)
	if err != nil {
		return Envelope{}, err
	}

	ch := make(chan Envelope, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return Envelope{}, c.err
	}
	c.pending[rid] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, rid)
		c.mu.Unlock()
	}()

	if err := c.write(frame); err != nil {
		return Envelope{}, err
	}

	select {
	case env := <-ch:
		if env.T == TypeError {
			msg := "unknown error"
			if p, err := DecodePayload[ErrorPayload](env); err == nil {
				msg = p.Message
			}
			return Envelope{}, &RequestError{Type: t, Message: msg}
		}
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case <-c.done:
		return Envelope{}, c.closedErr()
	}
}

func (c *Client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}
		env, err := DecodeEnvelope(msg)
		if err != nil {
			c.logger.Warn("relay frame dropped", "error", err)
			continue
		}

		if env.RID != "" {
			c.mu.Lock()
			ch := c.pending[env.RID]
			c.mu.Unlock()
			if ch != nil {
				ch <- env
			}
			continue
		}
		if env.T == TypeDoc && !isNull(env.P) {
			c.deliver(env)
		}
	}
}

func (c *Client) deliver(env Envelope) {
	doc, err := DecodePayload[remote.Doc](env)
	if err != nil {
		c.logger.Warn("relay delivery dropped", "pond", env.Pond, "error", err)
		return
	}

	c.mu.Lock()
	fns := make([]func(remote.Doc), 0, len(c.subs[env.Pond]))
	for _, fn := range c.subs[env.Pond] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(doc.Clone())
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("relay ping", "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}
