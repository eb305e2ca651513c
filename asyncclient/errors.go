package asyncclient

import "errors"

var (
	// ErrConnect wraps every failure to establish the transport connection.
	ErrConnect = errors.New("connect failed")
	// ErrConnectionClosed reports that the peer closed its side of the stream
	// before a complete message arrived.
	ErrConnectionClosed = errors.New("connection closed by peer")
	// ErrWaitTimeout is returned by Completion.Wait when the bound elapses
	// before the operation finishes.
	ErrWaitTimeout = errors.New("wait timed out")
	// ErrOperationInProgress is returned when an operation of the same kind is
	// already outstanding on the session.
	ErrOperationInProgress = errors.New("operation already in progress")
	// ErrSessionClosed is returned for operations on a session that has been
	// shut down, and by operations cut short by Session.Close.
	ErrSessionClosed = errors.New("session is closed")
	// ErrNotConnected is returned by Send and BeginReceive before Connect
	// has succeeded.
	ErrNotConnected = errors.New("session is not connected")
	// ErrAlreadyConnected is returned by Connect on a session that already
	// holds a connection.
	ErrAlreadyConnected = errors.New("session is already connected")
	// ErrDriverClosed is returned for every operation issued after
	// Driver.Close.
	ErrDriverClosed = errors.New("driver is closed")
)
