package fn

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParMapPreservesOrder(t *testing.T) {
	t.Parallel()

	items := []int{5, 1, 4, 2, 3}
	got := ParMap(items, 2, func(_ int, v int) int {
		time.Sleep(time.Duration(v) * time.Millisecond)
		return v * 10
	})
	assert.Equal(t, []int{50, 10, 40, 20, 30}, got)
}

func TestParMapBoundsWorkers(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	ParMap(make([]int, 20), 3, func(int, int) struct{} {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return struct{}{}
	})
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestParMapEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ParMap([]string{}, 4, func(int, string) int { return 1 }))
}

func TestChunk(t *testing.T) {
	t.Parallel()

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Nil(t, Chunk([]int{1}, 0))
	assert.Nil(t, Chunk([]int{}, 3))
}
