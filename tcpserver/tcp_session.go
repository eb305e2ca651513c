package tcpserver

// TCPServerSession is the interface that must be implemented by each connection
// session. The server creates a session per connection and runs Handle in a
// goroutine.
type TCPServerSession interface {
	// ID returns the session's unique identifier assigned by the server.
	ID() uint32

	// Handle runs the session until the exchange is over or the connection
	// fails.
	Handle()

	// Close closes the session and releases resources. It should be safe to call
	// multiple times.
	Close() error

	// Send writes data to the connection. Implementations should be safe for
	// concurrent use if multiple goroutines may call Send.
	Send(data []byte) error
}
