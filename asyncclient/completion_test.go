package asyncclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "Pending", Pending.String())
	assert.Equal(t, "Succeeded", Succeeded.String())
	assert.Equal(t, "TimedOut", TimedOut.String())
	assert.Equal(t, "Failed", Failed.String())
	assert.Equal(t, "Unknown", Outcome(42).String())
}

func TestCompletion_Wait(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeded", func(t *testing.T) {
		c := newCompletion[int]()
		go c.resolve(19, nil, nil)

		v, outcome, err := c.Wait(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, Succeeded, outcome)
		assert.Equal(t, 19, v)
	})

	t.Run("failed carries the operation error", func(t *testing.T) {
		c := failedCompletion[int](assert.AnError)

		_, outcome, err := c.Wait(ctx, time.Second)
		assert.Equal(t, Failed, outcome)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("timed out is distinct from failure", func(t *testing.T) {
		c := newCompletion[string]()

		v, outcome, err := c.Wait(ctx, 10*time.Millisecond)
		assert.Equal(t, TimedOut, outcome)
		assert.ErrorIs(t, err, ErrWaitTimeout)
		assert.Empty(t, v)
		assert.True(t, c.Abandoned())
	})

	t.Run("late result after timeout is dropped", func(t *testing.T) {
		c := newCompletion[string]()
		_, outcome, _ := c.Wait(ctx, time.Millisecond)
		require.Equal(t, TimedOut, outcome)

		committed := false
		delivered := c.resolve("late", nil, func() error {
			committed = true
			return nil
		})
		assert.False(t, delivered)
		assert.False(t, committed)

		select {
		case <-c.Done():
			t.Fatal("abandoned completion must not finish")
		default:
		}
	})

	t.Run("commit error replaces the result", func(t *testing.T) {
		c := newCompletion[string]()
		c.resolve("value", nil, func() error { return ErrSessionClosed })

		v, outcome, err := c.Wait(ctx, time.Second)
		assert.Equal(t, Failed, outcome)
		assert.ErrorIs(t, err, ErrSessionClosed)
		assert.Empty(t, v)
	})

	t.Run("resolve only once", func(t *testing.T) {
		c := newCompletion[int]()
		assert.True(t, c.resolve(1, nil, nil))
		assert.False(t, c.resolve(2, nil, nil))

		v, _, _ := c.Wait(ctx, time.Second)
		assert.Equal(t, 1, v)
	})

	t.Run("context cancellation fails the wait", func(t *testing.T) {
		c := newCompletion[int]()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, outcome, err := c.Wait(cctx, time.Second)
		assert.Equal(t, Failed, outcome)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("context deadline counts as timeout", func(t *testing.T) {
		c := newCompletion[int]()
		dctx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
		defer cancel()

		_, outcome, err := c.Wait(dctx, 0)
		assert.Equal(t, TimedOut, outcome)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("zero timeout waits for the result", func(t *testing.T) {
		c := newCompletion[int]()
		go func() {
			time.Sleep(20 * time.Millisecond)
			c.resolve(7, nil, nil)
		}()

		v, outcome, err := c.Wait(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, Succeeded, outcome)
		assert.Equal(t, 7, v)
	})
}
