package asyncclient

import (
	"errors"
	"net"
	"sync"

	"github.com/cyberinferno/eofclient/framing"
	"github.com/cyberinferno/eofclient/logger"
	"github.com/cyberinferno/eofclient/safeset"
)

// OpKind identifies one of the three operations a session supports.
type OpKind int

const (
	OpConnect OpKind = iota
	OpSend
	OpReceive
)

// String returns a human-readable name for the operation kind.
func (k OpKind) String() string {
	switch k {
	case OpConnect:
		return "connect"
	case OpSend:
		return "send"
	case OpReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// Session is the state of one request/response exchange: the socket, the
// receive buffer, the text accumulated by the current receive and the final
// response. Sessions are created by Driver.NewSession and mutated only by the
// driver's operation goroutines.
type Session struct {
	id  uint32
	log logger.Logger

	// inflight holds the kinds with an outstanding operation.
	inflight *safeset.SafeSet[OpKind]
	// onClose unregisters the session from its driver.
	onClose func()

	mu        sync.Mutex
	conn      net.Conn
	closed    bool
	response  string
	assembler *framing.Assembler

	// receiveBuffer is reused by every read of the receive loop.
	receiveBuffer []byte
}

func newSession(id uint32, bufferSize int, log logger.Logger, onClose func()) *Session {
	return &Session{
		id:            id,
		log:           log,
		inflight:      safeset.NewSafeSet[OpKind](),
		onClose:       onClose,
		receiveBuffer: make([]byte, bufferSize),
	}
}

// ID returns the identifier assigned by the driver.
func (s *Session) ID() uint32 {
	return s.id
}

// Response returns the message extracted by the last completed receive, or ""
// before that.
func (s *Session) Response() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response
}

// RemoteAddr returns the peer address once connected, nil otherwise.
func (s *Session) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	return s.conn.RemoteAddr()
}

// Connected reports whether the session holds an open socket.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.closed
}

// Closed reports whether the socket has been shut down. A closed session
// cannot be reused.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close shuts the socket down and marks the session closed. Operations still
// running fail with ErrSessionClosed. Safe to call more than once.
func (s *Session) Close() error {
	return s.shutdown()
}

// begin reserves kind for a new operation. The session state is checked again
// after the reservation, since an operation of the same kind may have changed
// it while releasing its own reservation.
func (s *Session) begin(kind OpKind) error {
	if err := s.admits(kind); err != nil {
		return err
	}

	if !s.inflight.TryAdd(kind) {
		return ErrOperationInProgress
	}

	if err := s.admits(kind); err != nil {
		s.inflight.Remove(kind)
		return err
	}

	return nil
}

func (s *Session) admits(kind OpKind) error {
	s.mu.Lock()
	closed := s.closed
	connected := s.conn != nil
	s.mu.Unlock()

	switch {
	case closed:
		return ErrSessionClosed
	case kind == OpConnect && connected:
		return ErrAlreadyConnected
	case kind != OpConnect && !connected:
		return ErrNotConnected
	}

	return nil
}

// end releases kind. It runs before the operation's completion releases its
// waiter so the caller can issue the next operation of that kind right away,
// and for connect only after the connection is attached.
func (s *Session) end(kind OpKind) {
	s.inflight.Remove(kind)
}

func (s *Session) attach(conn net.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.conn != nil {
		return ErrAlreadyConnected
	}

	s.conn = conn
	return nil
}

func (s *Session) currentConn() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) setResponse(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = msg
	return nil
}

func (s *Session) startReceive(terminator string) *framing.Assembler {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assembler = framing.NewAssembler(terminator)
	return s.assembler
}

func (s *Session) finishReceive() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assembler != nil {
		s.assembler.Release()
		s.assembler = nil
	}
}

// shutdown closes both directions and then the socket itself.
func (s *Session) shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if s.onClose != nil {
		s.onClose()
	}

	if conn == nil {
		return nil
	}

	if hc, ok := conn.(interface {
		CloseRead() error
		CloseWrite() error
	}); ok {
		_ = hc.CloseWrite()
		_ = hc.CloseRead()
	}

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
