package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	audit "vcanchor/pkg/platform/audit"
	"vcanchor/pkg/requestcontext"
)

// ErrBufferFull is returned in async mode when the buffer cannot take the event.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher stamps events and hands them to a Store, either inline or through
// a bounded buffer drained by one goroutine.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	done   chan struct{}
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches to async mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit fills ID, timestamp, category and request id when unset, then stores
// the event. In async mode a full buffer returns ErrBufferFull.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = event.Type.Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit event dropped", "type", event.Type, "aggregate_id", event.AggregateID)
		return ErrBufferFull
	}
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event", "type", event.Type, "error", err)
		}
	}
}

// Close stops accepting events and, in async mode, waits for the buffer to drain.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			<-p.done
		}
	})
}
