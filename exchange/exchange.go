// Package exchange runs one complete client exchange: resolve the peer,
// connect, send every configured message framed with the terminator, then wait
// for the single framed response. Each step issues one asyncclient operation
// and waits on its completion with the configured bound.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cyberinferno/eofclient/asyncclient"
	"github.com/cyberinferno/eofclient/config"
	"github.com/cyberinferno/eofclient/framing"
	"github.com/cyberinferno/eofclient/logger"
	"github.com/cyberinferno/eofclient/metrics"
	"github.com/cyberinferno/eofclient/perfmonitor"
	"github.com/cyberinferno/eofclient/resolver"
)

// Phase is the step an exchange is in.
type Phase int

const (
	Idle       Phase = iota // Not started
	Connecting              // Resolving the endpoint and dialing
	Connected               // Socket connected
	Sending                 // A message send is outstanding
	Sent                    // A message has been written
	Receiving               // Waiting for the framed response
	Complete                // Response received and socket closed
	Failed                  // Aborted; see PhaseEvent.Error
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Sending:
		return "Sending"
	case Sent:
		return "Sent"
	case Receiving:
		return "Receiving"
	case Complete:
		return "Complete"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PhaseEvent is emitted on every phase change.
// It is passed to the handler registered with OnPhase.
type PhaseEvent struct {
	Phase     Phase     // The new phase
	Index     int       // Message index for Sending and Sent, -1 otherwise
	Timestamp time.Time // When the phase was entered
	Error     error     // Non-nil for Failed
}

// PhaseHandler is called synchronously on the goroutine running the exchange.
type PhaseHandler func(event PhaseEvent)

// PhaseError reports the phase in which an exchange was aborted.
type PhaseError struct {
	Phase   Phase
	Index   int
	Outcome asyncclient.Outcome
	Err     error
}

func (e *PhaseError) Error() string {
	if e.Phase == Sending {
		return fmt.Sprintf("%s message %d: %s: %v", e.Phase, e.Index, e.Outcome, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Phase, e.Outcome, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Exchange drives a Driver through one connect, send and receive sequence.
type Exchange struct {
	cfg      *config.Config
	driver   *asyncclient.Driver
	resolver resolver.Resolver
	log      logger.Logger
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	phase   Phase
	onPhase PhaseHandler
}

// New creates an Exchange.
//
// Parameters:
//   - cfg: Endpoint, messages and wait bound
//   - driver: Driver issuing the operations
//   - r: Resolver for cfg.Endpoint.Host
//   - log: Logger for progress
//
// Returns:
//   - A new *Exchange in the Idle phase
func New(cfg *config.Config, driver *asyncclient.Driver, r resolver.Resolver, log logger.Logger) *Exchange {
	return &Exchange{
		cfg:      cfg,
		driver:   driver,
		resolver: r,
		log:      log,
	}
}

// OnPhase registers the handler for phase changes. Pass nil to clear it.
func (e *Exchange) OnPhase(handler PhaseHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPhase = handler
}

// UseMetrics records wait outcomes and exchange durations on m. Pass nil to
// stop recording.
func (e *Exchange) UseMetrics(m *metrics.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

// Phase returns the current phase.
func (e *Exchange) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

// Run performs the exchange. The session's socket is closed by the receive on
// success and by Run itself on failure.
//
// Parameters:
//   - ctx: Cancels the resolution, the dial and every wait
//
// Returns:
//   - The response without its terminator
//   - A *PhaseError naming where the exchange stopped
func (e *Exchange) Run(ctx context.Context) (string, error) {
	e.mu.RLock()
	m := e.metrics
	e.mu.RUnlock()

	monitor := perfmonitor.NewPerformanceMonitor()
	monitor.Start()

	response, err := e.run(ctx, m)

	monitor.Stop()
	elapsed := logger.Field{Key: "elapsed_ms", Value: monitor.ElapsedMilliseconds()}
	if m != nil {
		result := "complete"
		if err != nil {
			result = "failed"
		}
		m.ObserveExchange(result, monitor.Elapsed())
	}

	if err != nil {
		e.log.Error("exchange failed", logger.Field{Key: "error", Value: err.Error()}, elapsed)
		return "", err
	}

	e.log.Info("exchange complete", logger.Field{Key: "length", Value: len(response)}, elapsed)
	return response, nil
}

func (e *Exchange) run(ctx context.Context, m *metrics.Metrics) (string, error) {
	timeout := e.cfg.WaitTimeout.Duration

	e.setPhase(Connecting, -1, nil)
	endpoint, err := resolver.Endpoint(ctx, e.resolver, e.cfg.Endpoint.Host, e.cfg.Endpoint.Port)
	if err != nil {
		return "", e.fail(Connecting, -1, asyncclient.Failed, fmt.Errorf("%w: %w", asyncclient.ErrConnect, err))
	}

	session, err := e.driver.NewSession()
	if err != nil {
		return "", e.fail(Connecting, -1, asyncclient.Failed, err)
	}

	abort := func(phase Phase, index int, outcome asyncclient.Outcome, err error) error {
		if cerr := session.Close(); cerr != nil {
			e.log.Warn("session close failed", logger.Field{Key: "error", Value: cerr.Error()})
		}
		return e.fail(phase, index, outcome, err)
	}

	_, outcome, err := e.driver.Connect(ctx, session, endpoint).Wait(ctx, timeout)
	observe(m, asyncclient.OpConnect, outcome)
	if outcome != asyncclient.Succeeded {
		return "", abort(Connecting, -1, outcome, err)
	}
	e.setPhase(Connected, -1, nil)

	for i, msg := range e.cfg.Messages {
		e.setPhase(Sending, i, nil)
		_, outcome, err := e.driver.Send(session, framing.FrameWith(msg, e.cfg.Terminator)).Wait(ctx, timeout)
		observe(m, asyncclient.OpSend, outcome)
		if outcome != asyncclient.Succeeded {
			return "", abort(Sending, i, outcome, err)
		}
		e.setPhase(Sent, i, nil)
	}

	e.setPhase(Receiving, -1, nil)
	response, outcome, err := e.driver.BeginReceive(session).Wait(ctx, timeout)
	observe(m, asyncclient.OpReceive, outcome)
	if outcome != asyncclient.Succeeded {
		return "", abort(Receiving, -1, outcome, err)
	}

	e.setPhase(Complete, -1, nil)
	return response, nil
}

func observe(m *metrics.Metrics, op asyncclient.OpKind, outcome asyncclient.Outcome) {
	if m != nil {
		m.ObserveOperation(op.String(), outcome.String())
	}
}

func (e *Exchange) fail(phase Phase, index int, outcome asyncclient.Outcome, err error) error {
	if err == nil {
		err = errors.New("operation did not succeed")
	}

	perr := &PhaseError{Phase: phase, Index: index, Outcome: outcome, Err: err}
	e.setPhase(Failed, index, perr)
	return perr
}

func (e *Exchange) setPhase(phase Phase, index int, err error) {
	e.mu.Lock()
	e.phase = phase
	handler := e.onPhase
	e.mu.Unlock()

	e.log.Debug("phase changed", logger.Field{Key: "phase", Value: phase.String()}, logger.Field{Key: "index", Value: index})

	if handler != nil {
		handler(PhaseEvent{
			Phase:     phase,
			Index:     index,
			Timestamp: time.Now(),
			Error:     err,
		})
	}
}
