package tcpserver

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/cyberinferno/eofclient/framing"
	"github.com/cyberinferno/eofclient/logger"
)

const framedReadBufferSize = 256

// ReplyFunc builds the reply payload (without terminator) from the messages
// received on a connection, in arrival order.
type ReplyFunc func(received []string) string

// StaticReply always answers with reply.
func StaticReply(reply string) ReplyFunc {
	return func([]string) string { return reply }
}

// EchoReply answers with the received messages joined by a single space.
func EchoReply(received []string) string {
	return strings.Join(received, " ")
}

// FramedSession concatenates everything a client sends, and once expect
// terminated messages have arrived answers with one framed reply and closes the
// connection.
type FramedSession struct {
	id         uint32
	conn       net.Conn
	log        logger.Logger
	expect     int
	reply      ReplyFunc
	terminator []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error

	done     chan struct{}
	received []string
}

// NewFramedSessionFunc returns a NewSessionFunc producing FramedSessions that
// wait for expect messages and answer with reply. A nil reply echoes.
//
// Parameters:
//   - log: Logger the sessions derive from
//   - expect: Number of terminated messages to collect before replying
//   - reply: Builds the reply payload
//   - terminator: Ends each message in both directions; empty means framing.Terminator
//
// Returns:
//   - A factory suitable for TCPServer.NewSession
func NewFramedSessionFunc(log logger.Logger, expect int, reply ReplyFunc, terminator string) NewSessionFunc {
	if reply == nil {
		reply = EchoReply
	}
	if terminator == "" {
		terminator = framing.Terminator
	}

	return func(id uint32, conn net.Conn) TCPServerSession {
		return &FramedSession{
			id:         id,
			conn:       conn,
			log:        log.With(logger.Field{Key: "session", Value: id}),
			expect:     expect,
			reply:      reply,
			terminator: []byte(terminator),
			done:       make(chan struct{}),
		}
	}
}

// ID implements TCPServerSession.
func (f *FramedSession) ID() uint32 {
	return f.id
}

// Handle implements TCPServerSession.
func (f *FramedSession) Handle() {
	defer close(f.done)
	defer f.Close()

	text := bytebufferpool.Get()
	defer bytebufferpool.Put(text)

	buf := make([]byte, framedReadBufferSize)
	for bytes.Count(text.B, f.terminator) < f.expect {
		n, err := f.conn.Read(buf)
		if n > 0 {
			text.B = framing.DecodeASCII(text.B, buf[:n])
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				f.log.Error("read failed", logger.Field{Key: "error", Value: err.Error()})
			} else {
				f.log.Info("client closed before all messages arrived", logger.Field{Key: "buffered", Value: text.Len()})
			}
			return
		}
	}

	f.received = splitMessages(text.String(), string(f.terminator), f.expect)
	f.log.Info("messages received", logger.Field{Key: "count", Value: len(f.received)})

	reply := framing.FrameWith(f.reply(f.received), string(f.terminator))
	if err := f.Send(framing.EncodeASCII(reply)); err != nil {
		f.log.Error("reply failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}

	f.log.Info("reply sent", logger.Field{Key: "bytes", Value: len(reply)})
}

// Received returns the messages collected by Handle. It blocks until Handle
// has returned.
func (f *FramedSession) Received() []string {
	<-f.done
	return f.received
}

// Send implements TCPServerSession.
func (f *FramedSession) Send(data []byte) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	_, err := f.conn.Write(data)
	return err
}

// Close implements TCPServerSession.
func (f *FramedSession) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = f.conn.Close()
	})

	return f.closeErr
}

// splitMessages returns the first n terminated messages in text.
func splitMessages(text, terminator string, n int) []string {
	parts := strings.SplitN(text, terminator, n+1)
	if len(parts) > n {
		parts = parts[:n]
	}

	return parts
}
