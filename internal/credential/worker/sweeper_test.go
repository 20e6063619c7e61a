package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResetter struct {
	calls   atomic.Int32
	timeout time.Duration
	n       int
	err     error
}

func (f *fakeResetter) ResetStuck(_ context.Context, timeout time.Duration) (int, error) {
	f.calls.Add(1)
	f.timeout = timeout
	return f.n, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSweeperValidates(t *testing.T) {
	_, err := NewSweeper(nil, time.Second, time.Minute)
	assert.ErrorContains(t, err, "resetter is required")

	_, err = NewSweeper(&fakeResetter{}, 0, time.Minute)
	assert.ErrorContains(t, err, "interval")

	_, err = NewSweeper(&fakeResetter{}, time.Second, 0)
	assert.ErrorContains(t, err, "timeout")
}

func TestSweepOnce(t *testing.T) {
	r := &fakeResetter{n: 3}
	s, err := NewSweeper(r, time.Second, 5*time.Minute, WithLogger(quietLogger()))
	require.NoError(t, err)

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 5*time.Minute, r.timeout)

	r.err = errors.New("db down")
	_, err = s.SweepOnce(context.Background())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	r := &fakeResetter{}
	s, err := NewSweeper(r, 5*time.Millisecond, time.Minute, WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
