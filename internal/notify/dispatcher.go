package notify

import (
	"context"
	"log/slog"
)

// AsyncDispatcher buffers notifications on a channel and delivers them from a
// background worker. When the buffer is full the notification is dropped and
// counted; the triggering transaction is never blocked.
type AsyncDispatcher struct {
	sink    Sink
	logger  *slog.Logger
	inbox   chan Notification
	dropped DropCounter
}

// DropCounter records dropped notifications; the metrics package satisfies it.
type DropCounter interface {
	IncNotificationsDropped()
}

type noopCounter struct{}

func (noopCounter) IncNotificationsDropped() {}

// Option configures an AsyncDispatcher.
type Option func(*AsyncDispatcher)

// WithDropCounter wires a metrics counter for dropped notifications.
func WithDropCounter(c DropCounter) Option {
	return func(d *AsyncDispatcher) {
		if c != nil {
			d.dropped = c
		}
	}
}

// NewAsyncDispatcher constructs a dispatcher with the given buffer size.
func NewAsyncDispatcher(sink Sink, logger *slog.Logger, bufferSize int, opts ...Option) *AsyncDispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	d := &AsyncDispatcher{
		sink:    sink,
		logger:  logger,
		inbox:   make(chan Notification, bufferSize),
		dropped: noopCounter{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify enqueues the notification, dropping it when the buffer is full.
func (d *AsyncDispatcher) Notify(ctx context.Context, n Notification) {
	select {
	case d.inbox <- n:
	default:
		d.dropped.IncNotificationsDropped()
		d.logger.WarnContext(ctx, "notification buffer full, dropping",
			"user_id", n.UserID.String(),
			"title", n.Title,
		)
	}
}

// Run drains the inbox until the context is cancelled. Delivery errors are
// logged and swallowed per the at-most-once contract.
func (d *AsyncDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-d.inbox:
			if err := d.sink.Deliver(ctx, n); err != nil {
				d.logger.WarnContext(ctx, "notification delivery failed",
					"user_id", n.UserID.String(),
					"title", n.Title,
					"error", err,
				)
			}
		}
	}
}

// LogSink writes notifications to the structured log. It stands in for the
// external push/in-app channel, which is outside this subsystem.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a log-backed sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"user_id", n.UserID.String(),
		"title", n.Title,
		"body", n.Body,
		"link", n.Link,
		"related_id", n.RelatedID,
	)
	return nil
}
