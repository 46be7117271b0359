package transport_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapisz0n951/learnengpol/internal/transport"
)

func TestMemory_ConnectAndExchange(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	l, err := m.Listen(context.Background(), "learnengpol:AAAAA")
	require.NoError(t, err)

	client, err := m.Connect(context.Background(), "learnengpol:AAAAA")
	require.NoError(t, err)

	var server transport.Conn
	select {
	case server = <-l.Accept():
	case <-time.After(time.Second):
		t.Fatal("no inbound connection")
	}

	require.NoError(t, client.Send([]byte("hello")))
	assert.Equal(t, "hello", string(recv(t, server)))

	require.NoError(t, server.Send([]byte("world")))
	assert.Equal(t, "world", string(recv(t, client)))
}

func TestMemory_PreservesSendOrder(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	l, err := m.Listen(context.Background(), "learnengpol:BBBBB")
	require.NoError(t, err)

	client, err := m.Connect(context.Background(), "learnengpol:BBBBB")
	require.NoError(t, err)
	server := <-l.Accept()

	for i := 0; i < 10; i++ {
		require.NoError(t, client.Send([]byte(fmt.Sprintf("m%d", i))))
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("m%d", i), string(recv(t, server)))
	}
}

func TestMemory_IdentityClaimedOnce(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	l, err := m.Listen(context.Background(), "learnengpol:CCCCC")
	require.NoError(t, err)

	_, err = m.Listen(context.Background(), "learnengpol:CCCCC")
	assert.Error(t, err)

	// Closing the listener releases the identity.
	require.NoError(t, l.Close())
	_, err = m.Listen(context.Background(), "learnengpol:CCCCC")
	assert.NoError(t, err)
}

func TestMemory_ConnectUnknownIdentity(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	_, err := m.Connect(context.Background(), "learnengpol:ZZZZZ")
	assert.Error(t, err)
}

func TestMemory_CloseEndsBothHalves(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	l, err := m.Listen(context.Background(), "learnengpol:DDDDD")
	require.NoError(t, err)

	client, err := m.Connect(context.Background(), "learnengpol:DDDDD")
	require.NoError(t, err)
	server := <-l.Accept()

	require.NoError(t, client.Close())

	select {
	case _, open := <-server.Recv():
		assert.False(t, open, "server recv channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("server recv channel not closed")
	}

	assert.Error(t, server.Send([]byte("late")), "send after close fails")
}

func recv(t *testing.T, c transport.Conn) []byte {
	t.Helper()

	select {
	case data, open := <-c.Recv():
		require.True(t, open, "connection closed")
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}
