package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastConfig(), func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesKTimesThenSucceeds(t *testing.T) {
	for k := 0; k < 4; k++ {
		calls := 0
		var infos []RetryInfo
		cfg := fastConfig()
		cfg.OnRetry = func(info RetryInfo) { infos = append(infos, info) }

		val, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
			calls++
			if calls <= k {
				return 0, NewStatusError(503, errors.New("unavailable"))
			}
			return 42, nil
		})
		require.NoError(t, err, "k=%d", k)
		assert.Equal(t, 42, val)
		assert.Len(t, infos, k)
		for i, info := range infos {
			assert.Equal(t, i+1, info.Attempt)
		}
	}
}

func TestDoVal_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	retried := false
	cfg := fastConfig()
	cfg.OnRetry = func(RetryInfo) { retried = true }

	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, NewStatusError(401, errors.New("unauthorized"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, retried)
	assert.Equal(t, 401, StatusCode(err))
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("request timeout")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDoVal_ShouldRetryReceivesAttempt(t *testing.T) {
	var seen []int
	cfg := fastConfig()
	cfg.ShouldRetry = func(_ error, attempt int) bool {
		seen = append(seen, attempt)
		return attempt < 2
	}

	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoVal_CancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	cfg.OnRetry = func(RetryInfo) { cancel() }

	calls := 0
	start := time.Now()
	_, err := DoVal(ctx, cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, NewStatusError(429, errors.New("rate limit"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDoVal_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := DoVal(ctx, fastConfig(), func(_ context.Context) (int, error) {
		calls++
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(_ context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("socket hang up")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, Backoff(1, cfg))
	assert.Equal(t, 200*time.Millisecond, Backoff(2, cfg))
	assert.Equal(t, 400*time.Millisecond, Backoff(3, cfg))
	assert.Equal(t, 800*time.Millisecond, Backoff(4, cfg))
	assert.Equal(t, time.Second, Backoff(5, cfg))
	assert.Equal(t, time.Second, Backoff(12, cfg))
}

func TestBackoff_JitterRange(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: true}
	for i := 0; i < 200; i++ {
		d := Backoff(2, cfg)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 300*time.Millisecond)
	}
}

func TestFromMillis(t *testing.T) {
	cfg := FromMillis(5, 100, 2000, false)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.MaxDelay)
	assert.False(t, cfg.Jitter)

	def := FromMillis(0, 0, 0, true)
	assert.Equal(t, DefaultRetryConfig(), def)
}

func TestRetryLogger(t *testing.T) {
	fn := RetryLogger("jina", "read")
	assert.NotPanics(t, func() {
		fn(RetryInfo{Attempt: 1, Delay: time.Millisecond, Err: errors.New("x")})
	})
}

func TestLogged(t *testing.T) {
	cfg := RetryConfig{}.Logged("llm", "reflect")
	assert.NotNil(t, cfg.OnRetry)

	var called bool
	custom := RetryConfig{OnRetry: func(RetryInfo) { called = true }}.Logged("llm", "reflect")
	custom.OnRetry(RetryInfo{})
	assert.True(t, called)
}
