package safeset

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSafeSet(t *testing.T) {
	s := NewSafeSet[string]()
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Size())
	assert.False(t, s.Contains("x"))
}

func TestSafeSet_TryAdd(t *testing.T) {
	s := NewSafeSet[string]()

	t.Run("first add wins", func(t *testing.T) {
		assert.True(t, s.TryAdd("send"))
		assert.True(t, s.Contains("send"))
		assert.Equal(t, 1, s.Size())
	})

	t.Run("duplicate add is rejected", func(t *testing.T) {
		assert.False(t, s.TryAdd("send"))
		assert.Equal(t, 1, s.Size())
	})

	t.Run("add after remove succeeds", func(t *testing.T) {
		s.Remove("send")
		assert.False(t, s.Contains("send"))
		assert.True(t, s.TryAdd("send"))
	})
}

func TestSafeSet_Remove(t *testing.T) {
	s := NewSafeSet[int]()
	s.TryAdd(1)
	s.TryAdd(2)

	s.Remove(1)
	assert.False(t, s.Contains(1))
	assert.True(t, s.Contains(2))

	s.Remove(42)
	assert.Equal(t, 1, s.Size())
}

func TestSafeSet_Values(t *testing.T) {
	s := NewSafeSet[int]()
	assert.Empty(t, s.Values())

	for i := 0; i < 5; i++ {
		s.TryAdd(i)
	}

	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, s.Values())
}

func TestSafeSet_ConcurrentTryAdd(t *testing.T) {
	s := NewSafeSet[string]()
	const n = 100

	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if s.TryAdd("receive") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, s.Size())
}
