package concurrent

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentRunsEveryItem(t *testing.T) {
	var sum int64
	err := Concurrent(context.Background(), []int{1, 2, 3, 4}, 2, func(_ context.Context, v int) error {
		atomic.AddInt64(&sum, int64(v))
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 10, sum)
}

func TestConcurrentReturnsError(t *testing.T) {
	boom := errors.New("boom")
	err := Concurrent(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, v int) error {
		if v == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestParallelMapKeepsOrder(t *testing.T) {
	out, err := ParallelMap(context.Background(), []int{3, 1, 2}, 0, func(_ context.Context, v int) (string, error) {
		return strconv.Itoa(v * 10), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "10", "20"}, out)
}

func TestCollectKeepsGoing(t *testing.T) {
	boom := errors.New("boom")
	out, errs := Collect(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v * 2, nil
	})
	assert.Equal(t, []int{2, 0, 6}, out)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
	assert.NoError(t, errs[2])
}
