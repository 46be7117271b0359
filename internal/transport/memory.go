package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kapisz0n951/learnengpol/internal/errors"
)

const (
	acceptBacklog = 16
	connBuffer    = 256
)

// Memory is an in-process transport. All peers sharing the same Memory can
// reach each other by identity. Used by tests and by solo sessions.
type Memory struct {
	mu        sync.Mutex
	listeners map[string]*memListener
	closed    bool
}

func NewMemory() *Memory {
	return &Memory{listeners: make(map[string]*memListener)}
}

func (m *Memory) Listen(_ context.Context, identity string) (Listener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New(errors.CodeUnavailable, errors.WithMessagef("transport closed"))
	}
	if _, ok := m.listeners[identity]; ok {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("identity %q already claimed", identity))
	}

	l := &memListener{
		identity: identity,
		accept:   make(chan Conn, acceptBacklog),
		release: func(id string) {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		},
	}
	m.listeners[identity] = l
	return l, nil
}

func (m *Memory) Connect(_ context.Context, identity string) (Conn, error) {
	m.mu.Lock()
	l, ok := m.listeners[identity]
	m.mu.Unlock()

	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no peer listening on %q", identity))
	}

	local, remote := newMemPair()

	select {
	case l.accept <- remote:
		return local, nil
	default:
		local.Close()
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("peer %q not accepting", identity))
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	listeners := make([]*memListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.closed = true
	m.mu.Unlock()

	for _, l := range listeners {
		l.Close()
	}
	return nil
}

type memListener struct {
	identity string
	accept   chan Conn
	once     sync.Once
	release  func(identity string)
}

func (l *memListener) Accept() <-chan Conn { return l.accept }

func (l *memListener) Close() error {
	l.once.Do(func() {
		l.release(l.identity)
		close(l.accept)
	})
	return nil
}

// memConn is one half of an in-process connection pair. Each half owns the
// channel it receives on and closes the peer's on Close.
type memConn struct {
	id   string
	peer *memConn

	mu     sync.Mutex
	recv   chan []byte
	closed bool
}

func newMemPair() (local, remote *memConn) {
	local = &memConn{id: uuid.NewString(), recv: make(chan []byte, connBuffer)}
	remote = &memConn{id: uuid.NewString(), recv: make(chan []byte, connBuffer)}
	local.peer = remote
	remote.peer = local
	return local, remote
}

func (c *memConn) ID() string { return c.id }

func (c *memConn) Send(data []byte) error {
	c.peer.mu.Lock()
	defer c.peer.mu.Unlock()

	if c.peer.closed {
		return errors.New(errors.CodeUnavailable, errors.WithMessagef("connection closed"))
	}

	select {
	case c.peer.recv <- data:
		return nil
	default:
		return errors.New(errors.CodeUnavailable, errors.WithMessagef("peer not draining"))
	}
}

func (c *memConn) Recv() <-chan []byte { return c.recv }

func (c *memConn) Close() error {
	c.closeHalf()
	c.peer.closeHalf()
	return nil
}

func (c *memConn) closeHalf() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.recv)
	}
}
