package asyncclient

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Outcome is the result class of a bounded wait.
type Outcome int

const (
	Pending   Outcome = iota // Operation has not finished; never returned by Wait
	Succeeded                // Operation finished without error
	TimedOut                 // Wait bound or context deadline elapsed first
	Failed                   // Operation finished with an error, or the wait was cancelled
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "Pending"
	case Succeeded:
		return "Succeeded"
	case TimedOut:
		return "TimedOut"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Completion is the one-shot result of a single driver operation. It is
// resolved exactly once by the goroutine running the operation. A waiter that
// gives up abandons it: a result arriving afterwards is dropped and does not
// touch session state.
type Completion[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	err       error
	finished  bool
	abandoned bool
}

func newCompletion[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

// failedCompletion returns an already resolved Completion carrying err.
func failedCompletion[T any](err error) *Completion[T] {
	c := newCompletion[T]()
	var zero T
	c.resolve(zero, err, nil)
	return c
}

// resolve records the result. When err is nil, commit runs under the
// completion lock before waiters are released; a commit error replaces the
// result. Nothing happens once the completion is finished or abandoned.
//
// Returns:
//   - true if the result was delivered, false if it was dropped
func (c *Completion[T]) resolve(v T, err error, commit func() error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished || c.abandoned {
		return false
	}

	if err == nil && commit != nil {
		if cerr := commit(); cerr != nil {
			var zero T
			v, err = zero, cerr
		}
	}

	c.value, c.err, c.finished = v, err, true
	close(c.done)
	return true
}

// Done is closed once the operation has finished.
func (c *Completion[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the operation finishes, timeout elapses or ctx ends,
// whichever comes first. A timeout of 0 waits without a bound. When the wait
// ends without a result the completion is abandoned.
//
// Parameters:
//   - ctx: Context whose cancellation ends the wait
//   - timeout: Wait bound; 0 means none
//
// Returns:
//   - The operation's value (zero unless Succeeded, or the partial value on Failed)
//   - Succeeded, TimedOut or Failed
//   - nil on Succeeded; the operation error, ErrWaitTimeout or ctx.Err() otherwise
func (c *Completion[T]) Wait(ctx context.Context, timeout time.Duration) (T, Outcome, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.resultLocked()
	case <-expired:
		return c.abandon(ErrWaitTimeout)
	case <-ctx.Done():
		return c.abandon(ctx.Err())
	}
}

// Abandoned reports whether a waiter gave up on this completion.
func (c *Completion[T]) Abandoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abandoned
}

func (c *Completion[T]) abandon(cause error) (T, Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// the operation may have finished while the timer fired
	if c.finished {
		return c.resultLocked()
	}

	c.abandoned = true

	var zero T
	if errors.Is(cause, ErrWaitTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		return zero, TimedOut, cause
	}

	return zero, Failed, cause
}

func (c *Completion[T]) resultLocked() (T, Outcome, error) {
	if c.err != nil {
		return c.value, Failed, c.err
	}

	return c.value, Succeeded, nil
}
