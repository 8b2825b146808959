package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelize_CoversEveryIndexOnce(t *testing.T) {
	for _, items := range []int{1, 3, 17, 1000} {
		hits := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			require.Equal(t, int32(1), h, "items=%d index=%d", items, i)
		}
	}
}

func TestParallelize_ZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(start, end int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThreshold_Sequential(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestParallelizeErr(t *testing.T) {
	prev := MaxWorkers
	MaxWorkers = 4
	defer func() { MaxWorkers = prev }()

	errA := errors.New("chunk a")
	errB := errors.New("chunk b")

	err := ParallelizeErr(100, 0, func(start, end int) error {
		switch {
		case start <= 10 && 10 < end:
			return errA
		case start <= 90 && 90 < end:
			return errB
		}
		return nil
	})
	assert.Equal(t, errA, err)

	assert.NoError(t, ParallelizeErr(100, 0, func(start, end int) error { return nil }))
	assert.Equal(t, errB, ParallelizeErr(5, 10, func(start, end int) error { return errB }))
}
