// Package asyncclient drives connect, send and receive operations against a
// TCP peer without blocking the caller. Every operation runs on its own
// goroutine and reports through a one-shot Completion that the caller waits on
// with a bound. Incoming bytes are reassembled into one terminator-framed
// message before the receive completes.
package asyncclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/eofclient/framing"
	"github.com/cyberinferno/eofclient/idgenerator"
	"github.com/cyberinferno/eofclient/logger"
	"github.com/cyberinferno/eofclient/safemap"
)

// ErrorEvent is emitted when an operation fails.
// It is passed to the handler registered with OnError.
type ErrorEvent struct {
	SessionID uint32    // Session the operation ran on
	Op        OpKind    // Operation that failed
	Error     error     // The error that occurred
	Timestamp time.Time // When the error occurred
}

// ErrorHandler is called when an operation fails.
// Handlers are invoked from goroutines; implementations must be safe for concurrent use.
type ErrorHandler func(event ErrorEvent)

// Config holds configuration for the Driver.
type Config struct {
	// DialTimeout bounds a single connect attempt; 0 means no bound besides
	// the context.
	DialTimeout time.Duration
	// ReceiveBufferSize is the capacity of each session's receive buffer.
	ReceiveBufferSize int
	// Terminator ends a framed message.
	Terminator string
}

// DefaultConfig returns a Config with a 5s dial timeout, a 256 byte receive
// buffer and the standard terminator.
func DefaultConfig() Config {
	return Config{
		DialTimeout:       5 * time.Second,
		ReceiveBufferSize: 256,
		Terminator:        framing.Terminator,
	}
}

// Driver issues asynchronous operations on sessions it created. It is safe for
// concurrent use, but each session allows only one outstanding operation per
// kind.
type Driver struct {
	config   Config
	log      logger.Logger
	ids      *idgenerator.IdGenerator
	sessions *safemap.SafeMap[uint32, *Session]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	mu      sync.RWMutex
	onError ErrorHandler
}

// NewDriver creates a Driver. Zero fields of config take their DefaultConfig
// values, except DialTimeout.
//
// Parameters:
//   - config: Driver settings (e.g. from DefaultConfig)
//   - log: Logger for operation progress and faults
//
// Returns:
//   - A new *Driver; call Close when done to release sessions and goroutines
func NewDriver(config Config, log logger.Logger) *Driver {
	defaults := DefaultConfig()
	if config.ReceiveBufferSize <= 0 {
		config.ReceiveBufferSize = defaults.ReceiveBufferSize
	}
	if config.Terminator == "" {
		config.Terminator = defaults.Terminator
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		config:   config,
		log:      log,
		ids:      idgenerator.NewIdGenerator(0),
		sessions: safemap.NewSafeMap[uint32, *Session](),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnError registers the handler for operation failures.
// Only one handler is active; repeated calls replace the previous handler.
// Pass nil to clear the handler.
func (d *Driver) OnError(handler ErrorHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = handler
}

// NewSession creates an unconnected session owned by the driver.
//
// Returns:
//   - The session, or ErrDriverClosed after Close
func (d *Driver) NewSession() (*Session, error) {
	if d.closed.Load() {
		return nil, ErrDriverClosed
	}

	id := d.ids.Next()
	s := newSession(id, d.config.ReceiveBufferSize, d.log.With(logger.Field{Key: "session", Value: id}), func() {
		d.sessions.Delete(id)
	})
	d.sessions.Store(id, s)

	return s, nil
}

// ActiveSessions returns the number of sessions not yet closed.
func (d *Driver) ActiveSessions() int {
	return d.sessions.Len()
}

// Connect dials endpoint for s. On success the connection is attached to the
// session and the completion carries the remote address. If the waiter has
// already given up when the dial finishes, the new connection is closed and
// the session stays unconnected.
//
// Parameters:
//   - ctx: Cancels the dial
//   - s: A session from NewSession that is not connected yet
//   - endpoint: "ip:port" of the peer
//
// Returns:
//   - A Completion resolved when the dial finishes
func (d *Driver) Connect(ctx context.Context, s *Session, endpoint string) *Completion[net.Addr] {
	if err := d.begin(s, OpConnect); err != nil {
		return failedCompletion[net.Addr](err)
	}

	c := newCompletion[net.Addr]()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		dialCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(d.ctx, cancel)
		defer stop()

		s.log.Debug("connecting", logger.Field{Key: "endpoint", Value: endpoint})

		dialer := net.Dialer{Timeout: d.config.DialTimeout}
		conn, err := dialer.DialContext(dialCtx, "tcp", endpoint)
		if err != nil {
			err = fmt.Errorf("%w: dial tcp %s: %w", ErrConnect, endpoint, err)
			d.report(s, OpConnect, err)
			s.end(OpConnect)
			c.resolve(nil, err, nil)
			return
		}

		attached, ended := false, false
		delivered := c.resolve(conn.RemoteAddr(), nil, func() error {
			defer func() {
				s.end(OpConnect)
				ended = true
			}()

			if err := s.attach(conn); err != nil {
				return err
			}
			attached = true
			return nil
		})
		if !ended {
			s.end(OpConnect)
		}

		if !attached {
			_ = conn.Close()
			if delivered {
				d.report(s, OpConnect, ErrSessionClosed)
			} else {
				s.log.Warn("late connect completion discarded", logger.Field{Key: "endpoint", Value: endpoint})
			}
			return
		}

		s.log.Info("socket connected", logger.Field{Key: "remote", Value: conn.RemoteAddr().String()})
	}()

	return c
}

// Send writes payload to the session's socket in the single-byte encoding
// (see framing.EncodeASCII). The payload is written with one Write call;
// net.Conn writes everything or returns an error, so a short write surfaces as
// a failed completion instead of being resubmitted.
//
// Parameters:
//   - s: A connected session
//   - payload: Text to send, usually already framed
//
// Returns:
//   - A Completion carrying the number of bytes written
func (d *Driver) Send(s *Session, payload string) *Completion[int] {
	if err := d.begin(s, OpSend); err != nil {
		return failedCompletion[int](err)
	}

	conn := s.currentConn()
	data := framing.EncodeASCII(payload)
	c := newCompletion[int]()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		s.log.Debug("sending", logger.Field{Key: "bytes", Value: len(data)})
		n, err := conn.Write(data)
		if err != nil {
			err = fmt.Errorf("send %d bytes: %w", len(data), d.classify(s, err))
			d.report(s, OpSend, err)
		} else {
			s.log.Info("sent bytes to server", logger.Field{Key: "bytes", Value: n})
		}

		s.end(OpSend)
		if !c.resolve(n, err, nil) {
			s.log.Warn("late send completion discarded", logger.Field{Key: "bytes", Value: n})
		}
	}()

	return c
}

// BeginReceive reads from the session's socket until one framed message has
// been reassembled, stores it as the session's response, shuts the socket
// down in both directions and closes it.
//
// A message completes only when the accumulated text contains the terminator
// exactly once. If a single read already delivers two or more terminators the
// loop keeps reading and only ends when the peer closes (ErrConnectionClosed).
//
// Parameters:
//   - s: A connected session
//
// Returns:
//   - A Completion carrying the message without its terminator. It fails with
//     ErrConnectionClosed if the peer closes before a message is complete.
func (d *Driver) BeginReceive(s *Session) *Completion[string] {
	if err := d.begin(s, OpReceive); err != nil {
		return failedCompletion[string](err)
	}

	conn := s.currentConn()
	asm := s.startReceive(d.config.Terminator)
	c := newCompletion[string]()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		s.log.Debug("receiving", logger.Field{Key: "buffer", Value: len(s.receiveBuffer)})
		msg, err := d.receiveLoop(s, conn, asm)
		s.finishReceive()

		if err != nil {
			d.report(s, OpReceive, err)
			s.end(OpReceive)
			c.resolve("", err, nil)
			return
		}

		if err := s.shutdown(); err != nil {
			s.log.Warn("socket shutdown failed", logger.Field{Key: "error", Value: err})
		}

		s.end(OpReceive)
		if !c.resolve(msg, nil, func() error { return s.setResponse(msg) }) {
			s.log.Warn("late receive completion discarded", logger.Field{Key: "length", Value: len(msg)})
			return
		}

		s.log.Info("response received", logger.Field{Key: "length", Value: len(msg)})
	}()

	return c
}

func (d *Driver) receiveLoop(s *Session, conn net.Conn, asm *framing.Assembler) (string, error) {
	for {
		n, err := conn.Read(s.receiveBuffer)
		if n > 0 {
			s.log.Debug("received bytes", logger.Field{Key: "bytes", Value: n}, logger.Field{Key: "buffered", Value: asm.Len() + n})
			if msg, ok := asm.Feed(s.receiveBuffer[:n]); ok {
				return msg, nil
			}
		}

		if err == nil && n > 0 {
			continue
		}

		// a local Close shuts the read side down first, which also reads as EOF
		if s.Closed() {
			return "", fmt.Errorf("receive: %w", ErrSessionClosed)
		}

		if err == nil || errors.Is(err, io.EOF) {
			s.log.Info("connection close has been requested", logger.Field{Key: "buffered", Value: asm.Len()})
			return "", ErrConnectionClosed
		}

		return "", fmt.Errorf("receive: %w", err)
	}
}

// Close closes every session still open, cancels pending dials and waits for
// all operation goroutines to finish. It is idempotent.
//
// Returns:
//   - The first error from closing a session, if any
func (d *Driver) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	d.cancel()

	var g errgroup.Group
	d.sessions.Range(func(id uint32, s *Session) bool {
		g.Go(s.Close)
		return true
	})
	err := g.Wait()

	d.wg.Wait()
	return err
}

func (d *Driver) begin(s *Session, kind OpKind) error {
	if d.closed.Load() {
		return ErrDriverClosed
	}

	return s.begin(kind)
}

// classify maps errors caused by a local Close to ErrSessionClosed.
func (d *Driver) classify(s *Session, err error) error {
	if errors.Is(err, net.ErrClosed) && s.Closed() {
		return ErrSessionClosed
	}

	return err
}

func (d *Driver) report(s *Session, op OpKind, err error) {
	s.log.Error(op.String()+" failed", logger.Field{Key: "error", Value: err.Error()})

	d.mu.RLock()
	handler := d.onError
	d.mu.RUnlock()

	if handler != nil {
		event := ErrorEvent{
			SessionID: s.ID(),
			Op:        op,
			Error:     err,
			Timestamp: time.Now(),
		}

		go handler(event)
	}
}
