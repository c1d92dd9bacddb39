package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chathub/internal/dependencies/mocks"
	"github.com/mcoot/chathub/internal/testutil"
)

func newClock() *mocks.MockClock {
	return mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

func TestTickPublishesReport(t *testing.T) {
	clk := newClock()
	s := New("test", time.Second, func(_ context.Context, now time.Time) (int, error) {
		return 3, nil
	}, clk, testutil.NopLogger())

	report := s.Tick(context.Background())
	assert.Equal(t, "test", report.Sweeper)
	assert.Equal(t, 3, report.Removed)
	assert.NoError(t, report.Err)
	assert.Equal(t, clk.Now(), report.At)

	select {
	case got := <-s.Reports():
		assert.Equal(t, 3, got.Removed)
	default:
		t.Fatal("report was not published")
	}
}

func TestTickRecoversPanic(t *testing.T) {
	s := New("panicky", time.Second, func(context.Context, time.Time) (int, error) {
		panic("sweep exploded")
	}, newClock(), testutil.NopLogger())

	report := s.Tick(context.Background())
	require.Error(t, report.Err)
	assert.Contains(t, report.Err.Error(), "sweep exploded")
}

func TestRunContinuesAfterErrors(t *testing.T) {
	var calls atomic.Int32
	s := New("flaky", 5*time.Millisecond, func(context.Context, time.Time) (int, error) {
		n := calls.Add(1)
		if n%2 == 1 {
			return 0, errors.New("transient")
		}
		return 1, nil
	}, newClock(), testutil.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 4 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestReportsDoNotBlockWhenUnread(t *testing.T) {
	s := New("unread", time.Second, func(context.Context, time.Time) (int, error) {
		return 0, nil
	}, newClock(), testutil.NopLogger())

	for i := 0; i < reportBufferSize*2; i++ {
		s.Tick(context.Background())
	}
	assert.Len(t, s.Reports(), reportBufferSize)
}
