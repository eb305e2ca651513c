package asyncclient

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/eofclient/logger"
)

func TestOpKind_String(t *testing.T) {
	assert.Equal(t, "connect", OpConnect.String())
	assert.Equal(t, "send", OpSend.String())
	assert.Equal(t, "receive", OpReceive.String())
	assert.Equal(t, "unknown", OpKind(9).String())
}

func TestSession_Begin(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()

	closes := 0
	s := newSession(1, 256, logger.NewNopLogger(), func() { closes++ })

	t.Run("send before connect", func(t *testing.T) {
		assert.ErrorIs(t, s.begin(OpSend), ErrNotConnected)
		assert.ErrorIs(t, s.begin(OpReceive), ErrNotConnected)
	})

	t.Run("one connect at a time", func(t *testing.T) {
		require.NoError(t, s.begin(OpConnect))
		assert.ErrorIs(t, s.begin(OpConnect), ErrOperationInProgress)
		s.end(OpConnect)
	})

	require.NoError(t, s.attach(client))

	t.Run("attached connection is never replaced", func(t *testing.T) {
		other, otherPeer := net.Pipe()
		defer other.Close()
		defer otherPeer.Close()

		assert.ErrorIs(t, s.attach(other), ErrAlreadyConnected)
		assert.Same(t, client, s.currentConn())
	})

	t.Run("kinds are independent", func(t *testing.T) {
		require.NoError(t, s.begin(OpSend))
		require.NoError(t, s.begin(OpReceive))
		assert.ErrorIs(t, s.begin(OpSend), ErrOperationInProgress)
		assert.ErrorIs(t, s.begin(OpConnect), ErrAlreadyConnected)

		s.end(OpSend)
		require.NoError(t, s.begin(OpSend))
		s.end(OpSend)
		s.end(OpReceive)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
		assert.Equal(t, 1, closes)
		assert.True(t, s.Closed())
		assert.False(t, s.Connected())
		assert.ErrorIs(t, s.begin(OpSend), ErrSessionClosed)
		assert.ErrorIs(t, s.attach(client), ErrSessionClosed)
	})
}

func TestSession_ConnectReleasedAfterAttach(t *testing.T) {
	client, peer := net.Pipe()
	defer client.Close()
	defer peer.Close()

	s := newSession(3, 256, logger.NewNopLogger(), nil)
	require.NoError(t, s.begin(OpConnect))
	assert.ErrorIs(t, s.begin(OpConnect), ErrOperationInProgress)

	require.NoError(t, s.attach(client))
	s.end(OpConnect)

	assert.ErrorIs(t, s.begin(OpConnect), ErrAlreadyConnected)
	assert.False(t, s.inflight.Contains(OpConnect))
}

func TestSession_ReceiveState(t *testing.T) {
	s := newSession(2, 8, logger.NewNopLogger(), nil)
	assert.Len(t, s.receiveBuffer, 8)
	assert.Empty(t, s.Response())

	asm := s.startReceive("<EOF>")
	msg, ok := asm.Feed([]byte("ok<EOF>"))
	require.True(t, ok)
	require.NoError(t, s.setResponse(msg))
	s.finishReceive()

	assert.Nil(t, s.assembler)
	assert.Equal(t, "ok", s.Response())
	assert.Equal(t, uint32(2), s.ID())
	assert.NoError(t, s.Close())
}
