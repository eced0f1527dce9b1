// Package publisher provides the fire-and-forget audit publisher services
// emit through.
//
// Publish never blocks the caller: events go into a bounded channel drained
// by the worker. When the channel is full the event is dropped and counted -
// losing an operations event is acceptable, stalling a login is not.
// Compliance-critical paths that must not lose events write synchronously
// through the store instead.
package publisher

import (
	"context"
	"log/slog"

	"github.com/fossabot/authrim-sub007/pkg/platform/audit"
)

const defaultBufferSize = 1024

type Publisher struct {
	inbox  chan audit.Event
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, n)
	}
}

func New(opts ...Option) *Publisher {
	p := &Publisher{
		inbox: make(chan audit.Event, defaultBufferSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inbox exposes the event channel for the worker to drain.
func (p *Publisher) Inbox() <-chan audit.Event {
	return p.inbox
}

// Publish enqueues an event without blocking.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) {
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit inbox full, event dropped",
				"action", event.Action,
				"category", event.Category,
			)
		}
	}
}
