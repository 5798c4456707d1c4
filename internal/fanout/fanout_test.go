package fanout

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func double(_ context.Context, n int) ([]int, error) {
	return []int{n * 2}, nil
}

func TestRun_AggregatesAll(t *testing.T) {
	res := Run(context.Background(), []int{1, 2, 3, 4}, double, Options[int, int]{Limit: 2})
	sort.Ints(res.Items)
	assert.Equal(t, []int{2, 4, 6, 8}, res.Items)
	assert.Equal(t, 4, res.Settled)
	assert.Zero(t, res.Failed)
	assert.Zero(t, res.Skipped)
}

func TestRun_FailureIsolated(t *testing.T) {
	var progress []int
	var lastTotal int
	handler := func(_ context.Context, n int) ([]int, error) {
		if n == 3 {
			return nil, errors.New("boom")
		}
		return []int{n}, nil
	}

	res := Run(context.Background(), []int{1, 2, 3, 4, 5}, handler, Options[int, int]{
		Limit: 3,
		OnError: func(n int, err error) []int {
			assert.EqualError(t, err, "boom")
			return []int{-n}
		},
		OnSettled: func(done, total int) {
			progress = append(progress, done)
			lastTotal = total
		},
	})

	sort.Ints(res.Items)
	assert.Equal(t, []int{-3, 1, 2, 4, 5}, res.Items)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 5, res.Settled)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)
	assert.Equal(t, 5, lastTotal)
}

func TestRun_FailureWithoutOnErrorDropsItem(t *testing.T) {
	handler := func(_ context.Context, n int) ([]int, error) {
		if n == 2 {
			return []int{99}, errors.New("partial")
		}
		return []int{n}, nil
	}
	res := Run(context.Background(), []int{1, 2, 3}, handler, Options[int, int]{})
	sort.Ints(res.Items)
	assert.Equal(t, []int{1, 3}, res.Items)
	assert.Equal(t, 1, res.Failed)
}

func TestRun_PanicRecovered(t *testing.T) {
	handler := func(_ context.Context, n int) ([]int, error) {
		if n == 1 {
			panic("kaboom")
		}
		return []int{n}, nil
	}
	var failure error
	res := Run(context.Background(), []int{1, 2}, handler, Options[int, int]{
		OnError: func(_ int, err error) []int {
			failure = err
			return nil
		},
	})
	assert.Equal(t, []int{2}, res.Items)
	assert.Equal(t, 1, res.Failed)
	require.Error(t, failure)
	assert.Contains(t, failure.Error(), "kaboom")
}

func TestRun_Skip(t *testing.T) {
	var calls atomic.Int32
	handler := func(_ context.Context, s string) ([]string, error) {
		calls.Add(1)
		return []string{s}, nil
	}
	var total int
	res := Run(context.Background(), []string{"keep", "youtube", "also"}, handler, Options[string, string]{
		Skip:      func(s string) bool { return s == "youtube" },
		OnSettled: func(_, t int) { total = t },
	})
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Settled)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 2, total)
	assert.ElementsMatch(t, []string{"keep", "also"}, res.Items)
}

func TestRun_RespectsLimit(t *testing.T) {
	var running, peak atomic.Int32
	handler := func(_ context.Context, _ int) ([]int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}
	items := make([]int, 20)
	res := Run(context.Background(), items, handler, Options[int, int]{Limit: 3})
	assert.Equal(t, 20, res.Settled)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	handler := func(ctx context.Context, n int) ([]int, error) {
		if n == 0 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []int{n}, nil
	}
	go func() {
		<-started
		cancel()
	}()

	var errs []error
	res := Run(ctx, []int{0, 1, 2, 3}, handler, Options[int, int]{
		Limit: 1,
		OnError: func(_ int, err error) []int {
			errs = append(errs, err)
			return nil
		},
	})
	assert.Equal(t, 4, res.Settled)
	assert.Equal(t, 4, res.Failed)
	assert.Empty(t, res.Items)
	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestRun_Empty(t *testing.T) {
	res := Run(context.Background(), nil, double, Options[int, int]{})
	assert.Empty(t, res.Items)
	assert.Zero(t, res.Settled)
}
