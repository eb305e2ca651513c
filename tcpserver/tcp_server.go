// Package tcpserver is the peer side of the terminator-framed protocol: a TCP
// server that accepts connections, collects framed messages on each one and
// answers with a single framed reply.
package tcpserver

import (
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/eofclient/idgenerator"
	"github.com/cyberinferno/eofclient/logger"
	"github.com/cyberinferno/eofclient/safemap"
)

// NewSessionFunc is a function that creates a new TCPServerSession for a given
// connection. It receives the assigned session ID and the accepted net.Conn,
// and returns an implementation of TCPServerSession that will handle the connection.
type NewSessionFunc func(id uint32, conn net.Conn) TCPServerSession

// TCPServer accepts connections and delegates each one to a session created by
// NewSession. Live sessions are kept by ID until their Handle returns.
type TCPServer struct {
	Logger      logger.Logger
	Name        string
	Addr        string
	Listener    net.Listener
	Sessions    *safemap.SafeMap[uint32, TCPServerSession]
	Running     atomic.Bool
	NewSession  NewSessionFunc
	IdGenerator *idgenerator.IdGenerator
}

// NewTCPServer returns a server ready to Start.
//
// Parameters:
//   - name: Name used in log messages
//   - addr: Listen address, e.g. ":11000" or "127.0.0.1:0"
//   - log: Logger for server events
//   - newSession: Factory for per-connection sessions
//
// Returns:
//   - A new *TCPServer that is not yet listening
func NewTCPServer(name, addr string, log logger.Logger, newSession NewSessionFunc) *TCPServer {
	return &TCPServer{
		Logger:      log.With(logger.Field{Key: "server", Value: name}),
		Name:        name,
		Addr:        addr,
		Sessions:    safemap.NewSafeMap[uint32, TCPServerSession](),
		NewSession:  newSession,
		IdGenerator: idgenerator.NewIdGenerator(0),
	}
}

// Start binds to Addr and runs the accept loop in a goroutine.
//
// Returns:
//   - An error if the server is already running or if listening on Addr fails
func (s *TCPServer) Start() error {
	if s.Running.Load() {
		s.Logger.Error("server already running")
		return fmt.Errorf("server %s already running", s.Name)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Field{Key: "error", Value: err.Error()})
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	s.Listener = ln
	s.Running.Store(true)

	s.Logger.Info(fmt.Sprintf("%s server started", s.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})
	go s.AcceptLoop()

	return nil
}

// ListenAddr returns the bound address, which differs from Addr when Addr uses
// port 0. It is nil before Start.
func (s *TCPServer) ListenAddr() net.Addr {
	if s.Listener == nil {
		return nil
	}

	return s.Listener.Addr()
}

// Stop closes the listener and every live session concurrently. Safe to call
// when the server is not running.
//
// Returns:
//   - The first error returned by a session's Close
func (s *TCPServer) Stop() error {
	if !s.Running.CompareAndSwap(true, false) {
		s.Logger.Info(fmt.Sprintf("%s server not running", s.Name))
		return nil
	}

	if s.Listener != nil {
		_ = s.Listener.Close()
	}

	var g errgroup.Group
	s.Sessions.Range(func(id uint32, session TCPServerSession) bool {
		g.Go(session.Close)
		return true
	})
	err := g.Wait()

	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
	return err
}

// AddSession stores a session under the given id.
func (s *TCPServer) AddSession(id uint32, session TCPServerSession) {
	s.Sessions.Store(id, session)
}

// RemoveSession removes the session with the given id.
func (s *TCPServer) RemoveSession(id uint32) {
	s.Sessions.Delete(id)
}

// GetSession returns the session for the given id, if present.
func (s *TCPServer) GetSession(id uint32) (TCPServerSession, bool) {
	return s.Sessions.Load(id)
}

// AcceptLoop accepts connections until the server is stopped. Each connection
// gets an ID, a session from NewSession and its own goroutine running Handle;
// the session is forgotten once Handle returns.
func (s *TCPServer) AcceptLoop() {
	for s.Running.Load() {
		conn, err := s.Listener.Accept()
		if err != nil {
			if !s.Running.Load() {
				return
			}

			s.Logger.Error(fmt.Sprintf("%s server accept error", s.Name), logger.Field{Key: "error", Value: err.Error()})
			continue
		}

		id := s.IdGenerator.Next()
		session := s.NewSession(id, conn)
		s.AddSession(id, session)
		s.Logger.Debug("connection accepted", logger.Field{Key: "session", Value: id}, logger.Field{Key: "remote", Value: conn.RemoteAddr().String()})

		go func() {
			defer s.RemoveSession(id)
			session.Handle()
		}()
	}
}
