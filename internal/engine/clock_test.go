package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockSequence(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(41)
	assert.Equal(t, int64(42), resumed.Next())
}

func TestClockConcurrentUnique(t *testing.T) {
	c := NewClock()
	const workers, calls = 16, 200

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				seq := c.Next()
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), c.Current())
}
