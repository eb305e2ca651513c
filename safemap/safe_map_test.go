package safemap

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSafeMap(t *testing.T) {
	m := NewSafeMap[uint32, string]()
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Len())
}

func TestSafeMap_Store_Load(t *testing.T) {
	m := NewSafeMap[uint32, string]()

	t.Run("load missing returns zero value", func(t *testing.T) {
		v, ok := m.Load(1)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("store then load", func(t *testing.T) {
		m.Store(1, "session-1")
		v, ok := m.Load(1)
		assert.True(t, ok)
		assert.Equal(t, "session-1", v)
	})

	t.Run("store overwrites", func(t *testing.T) {
		m.Store(1, "session-1b")
		v, _ := m.Load(1)
		assert.Equal(t, "session-1b", v)
		assert.Equal(t, 1, m.Len())
	})
}

func TestSafeMap_LoadAndDelete(t *testing.T) {
	m := NewSafeMap[uint32, int]()
	m.Store(7, 70)

	v, ok := m.LoadAndDelete(7)
	assert.True(t, ok)
	assert.Equal(t, 70, v)

	v, ok = m.LoadAndDelete(7)
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestSafeMap_Delete(t *testing.T) {
	m := NewSafeMap[string, int]()
	m.Store("a", 1)
	m.Delete("a")
	m.Delete("missing")

	_, ok := m.Load("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestSafeMap_Range(t *testing.T) {
	m := NewSafeMap[int, int]()
	for i := 0; i < 10; i++ {
		m.Store(i, i*i)
	}

	t.Run("visits every entry", func(t *testing.T) {
		sum := 0
		m.Range(func(k, v int) bool {
			assert.Equal(t, k*k, v)
			sum += k
			return true
		})
		assert.Equal(t, 45, sum)
	})

	t.Run("stops when f returns false", func(t *testing.T) {
		visited := 0
		m.Range(func(int, int) bool {
			visited++
			return false
		})
		assert.Equal(t, 1, visited)
	})
}

func TestSafeMap_ConcurrentLoadAndDelete(t *testing.T) {
	m := NewSafeMap[uint32, string]()
	m.Store(1, "only-once")

	const n = 50
	var winners atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, ok := m.LoadAndDelete(1); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
