// Package transport abstracts the peer-to-peer channel the session protocol
// runs over. Controllers only see these interfaces, so tests inject the
// in-memory transport and deployments use the websocket one brokered by the
// relay.
//
// Guarantees assumed by the rest of the system: messages on one Conn arrive
// in send order, there is no ordering across different Conns, and there is no
// delivery guarantee once a Conn is closed.
package transport

import "context"

// Conn is one bidirectional message channel to a remote peer.
type Conn interface {
	// ID is the transport-assigned identifier of the remote peer. It is
	// opaque to callers and stable for the lifetime of the connection.
	ID() string

	// Send delivers one message to the peer. Best-effort: an error means
	// the message is gone, there is no retry.
	Send(data []byte) error

	// Recv returns the inbound message stream. The channel is closed when
	// the connection closes, locally or remotely.
	Recv() <-chan []byte

	Close() error
}

// Listener accepts inbound connections on a claimed identity.
type Listener interface {
	// Accept returns the stream of inbound connections. The channel is
	// closed when the listener closes.
	Accept() <-chan Conn

	Close() error
}

// Transport is the rendezvous boundary: claim an identity to be reachable,
// or connect to a peer by its identity.
type Transport interface {
	Listen(ctx context.Context, identity string) (Listener, error)
	Connect(ctx context.Context, identity string) (Conn, error)
	Close() error
}
