// Package worker runs the background recovery sweep for claimed credential
// responses that were never confirmed.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Resetter returns stuck PROCESSING responses to PENDING.
type Resetter interface {
	ResetStuck(ctx context.Context, timeout time.Duration) (int, error)
}

// Sweeper calls ResetStuck on a fixed interval.
type Sweeper struct {
	resetter Resetter
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// NewSweeper builds a sweeper that resets claims older than timeout every interval.
func NewSweeper(resetter Resetter, interval, timeout time.Duration, opts ...Option) (*Sweeper, error) {
	if resetter == nil {
		return nil, errors.New("resetter is required")
	}
	if interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	if timeout <= 0 {
		return nil, errors.New("response timeout must be positive")
	}
	s := &Sweeper{
		resetter: resetter,
		interval: interval,
		timeout:  timeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.InfoContext(ctx, "credential response sweeper started",
		"interval", s.interval.String(),
		"timeout", s.timeout.String(),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single reset and logs the outcome.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	n, err := s.resetter.ResetStuck(ctx, s.timeout)
	if err != nil {
		s.logger.ErrorContext(ctx, "credential response sweep failed", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.WarnContext(ctx, "reset stuck credential responses", "count", n)
	}
	return n, nil
}
