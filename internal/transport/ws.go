package transport

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kapisz0n951/learnengpol/internal/errors"
	"github.com/kapisz0n951/learnengpol/internal/relay"
)

// WS is the relay-backed transport. One WS value holds one websocket to the
// relay under one identity; connections to remote peers are multiplexed over
// it as relay frames.
type WS struct {
	relayURL string

	mu       sync.Mutex
	ws       *websocket.Conn
	identity string
	listener *wsListener
	conns    map[string]*wsConn
	pending  map[string]chan error
	closed   bool
}

func NewWS(relayURL string) *WS {
	return &WS{
		relayURL: relayURL,
		conns:    make(map[string]*wsConn),
		pending:  make(map[string]chan error),
	}
}

// Listen claims identity at the relay. Inbound connections appear on the
// returned listener as soon as remote peers open flows to the identity.
func (t *WS) Listen(ctx context.Context, identity string) (Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.dialLocked(ctx, identity); err != nil {
		return nil, err
	}
	if t.listener != nil {
		return nil, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("transport already listening"))
	}

	t.listener = &wsListener{t: t, accept: make(chan Conn, acceptBacklog)}
	return t.listener, nil
}

// Connect opens a flow to a remote identity. The local peer claims a random
// identity on first use.
func (t *WS) Connect(ctx context.Context, identity string) (Conn, error) {
	t.mu.Lock()
	if err := t.dialLocked(ctx, uuid.NewString()); err != nil {
		t.mu.Unlock()
		return nil, err
	}

	if _, ok := t.conns[identity]; ok {
		t.mu.Unlock()
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("already connected to %q", identity))
	}

	wait := make(chan error, 1)
	t.pending[identity] = wait
	t.mu.Unlock()

	if err := t.writeFrame(relay.Frame{Kind: relay.FrameOpen, To: identity}); err != nil {
		t.dropPending(identity)
		return nil, err
	}

	select {
	case err := <-wait:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		t.dropPending(identity)
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("connect to %q", identity),
			errors.WithCause(ctx.Err()))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	c := newWSConn(t, identity)
	t.conns[identity] = c
	return c, nil
}

func (t *WS) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	ws := t.ws
	t.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

// dialLocked establishes the relay websocket on first use. Callers hold t.mu.
func (t *WS) dialLocked(ctx context.Context, identity string) error {
	if t.closed {
		return errors.New(errors.CodeUnavailable, errors.WithMessagef("transport closed"))
	}
	if t.ws != nil {
		return nil
	}

	u, err := url.Parse(t.relayURL)
	if err != nil {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("relay url %q", t.relayURL),
			errors.WithCause(err))
	}
	q := u.Query()
	q.Set("identity", identity)
	u.RawQuery = q.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		code := errors.CodeUnavailable
		if resp != nil && resp.StatusCode == 409 {
			code = errors.CodeAlreadyExists
		}
		return errors.New(code,
			errors.WithMessagef("dial relay %s", t.relayURL),
			errors.WithCause(err))
	}

	t.ws = ws
	t.identity = identity
	go t.readPump(ws)
	return nil
}

// readPump demultiplexes relay frames into per-peer connections. It is the
// only reader of the websocket.
func (t *WS) readPump(ws *websocket.Conn) {
	for {
		var f relay.Frame
		if err := ws.ReadJSON(&f); err != nil {
			break
		}
		t.dispatch(f)
	}
	t.teardown()
}

func (t *WS) dispatch(f relay.Frame) {
	switch f.Kind {
	case relay.FrameOpen:
		t.mu.Lock()
		l := t.listener
		var c *wsConn
		if l != nil {
			if _, ok := t.conns[f.From]; !ok {
				c = newWSConn(t, f.From)
				t.conns[f.From] = c
			}
		}
		t.mu.Unlock()

		if c != nil {
			select {
			case l.accept <- c:
			default:
				c.Close()
			}
		}

	case relay.FrameOpened:
		if wait := t.takePending(f.From); wait != nil {
			wait <- nil
		}

	case relay.FrameError:
		if wait := t.takePending(f.To); wait != nil {
			wait <- errors.New(errors.CodeNotFound,
				errors.WithMessagef("relay: %s", f.Error))
		}

	case relay.FrameData:
		t.mu.Lock()
		c := t.conns[f.From]
		t.mu.Unlock()
		if c != nil {
			c.deliver(f.Data)
		}

	case relay.FrameClose:
		t.mu.Lock()
		c := t.conns[f.From]
		delete(t.conns, f.From)
		t.mu.Unlock()
		if c != nil {
			c.closeRecv()
		}
	}
}

// teardown runs when the relay socket dies: every flow is gone at once.
func (t *WS) teardown() {
	t.mu.Lock()
	t.closed = true
	conns := t.conns
	t.conns = make(map[string]*wsConn)
	l := t.listener
	t.listener = nil
	pending := t.pending
	t.pending = make(map[string]chan error)
	t.mu.Unlock()

	for _, c := range conns {
		c.closeRecv()
	}
	if l != nil {
		close(l.accept)
	}
	for _, wait := range pending {
		wait <- errors.New(errors.CodeUnavailable, errors.WithMessagef("relay connection lost"))
	}
}

func (t *WS) writeFrame(f relay.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.ws == nil {
		return errors.New(errors.CodeUnavailable, errors.WithMessagef("transport closed"))
	}
	if err := t.ws.WriteJSON(f); err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("write to relay"),
			errors.WithCause(err))
	}
	return nil
}

func (t *WS) takePending(identity string) chan error {
	t.mu.Lock()
	defer t.mu.Unlock()

	wait := t.pending[identity]
	delete(t.pending, identity)
	return wait
}

func (t *WS) dropPending(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, identity)
}

type wsListener struct {
	t      *WS
	accept chan Conn
}

func (l *wsListener) Accept() <-chan Conn { return l.accept }

// Close tears down the whole transport: the claimed identity only exists
// while the relay socket is up.
func (l *wsListener) Close() error { return l.t.Close() }

// wsConn is one flow to a remote identity, multiplexed over the relay
// socket.
type wsConn struct {
	t  *WS
	id string

	mu     sync.Mutex
	recv   chan []byte
	closed bool
}

func newWSConn(t *WS, id string) *wsConn {
	return &wsConn{t: t, id: id, recv: make(chan []byte, connBuffer)}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.CodeUnavailable, errors.WithMessagef("connection closed"))
	}
	c.mu.Unlock()

	return c.t.writeFrame(relay.Frame{Kind: relay.FrameData, To: c.id, Data: json.RawMessage(data)})
}

func (c *wsConn) Recv() <-chan []byte { return c.recv }

func (c *wsConn) Close() error {
	c.t.mu.Lock()
	delete(c.t.conns, c.id)
	c.t.mu.Unlock()

	_ = c.t.writeFrame(relay.Frame{Kind: relay.FrameClose, To: c.id})
	c.closeRecv()
	return nil
}

func (c *wsConn) deliver(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.recv <- data:
	default:
		// Receiver is not draining; the message is lost, same as any
		// other transport failure.
	}
}

func (c *wsConn) closeRecv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.recv)
	}
}
