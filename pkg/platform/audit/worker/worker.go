package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vcanchor/pkg/platform/audit/store/postgres"
)

// Message is one record handed to the sink.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// Sink delivers a batch of messages, all or nothing.
type Sink interface {
	Publish(ctx context.Context, messages []Message) error
}

// Outbox is the subset of the outbox store the relay needs.
type Outbox interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Relay moves outbox rows to the sink. Rows are marked published in the same
// transaction that locked them, so a crash between publish and commit leads to
// redelivery rather than loss.
type Relay struct {
	outbox    Outbox
	sink      Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		r.interval = d
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		r.batchSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func NewRelay(outbox Outbox, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		sink:      sink,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows it moved.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var moved int
	err := r.outbox.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
		if err != nil || len(entries) == 0 {
			return err
		}
		messages := make([]Message, len(entries))
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			messages[i] = Message{
				Key:   e.AggregateType + ":" + e.AggregateID,
				Value: e.Payload,
				Headers: map[string]string{
					"event_type": e.EventType,
					"event_id":   e.ID.String(),
				},
			}
			ids[i] = e.ID
		}
		if err := r.sink.Publish(ctx, messages); err != nil {
			return err
		}
		moved = len(entries)
		return r.outbox.MarkPublished(ctx, ids, time.Now())
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}
