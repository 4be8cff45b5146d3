// Package notify delivers workflow events to actors on a best-effort,
// at-most-once basis. Dispatch is deliberately fire-and-forget: a delivery
// outage must never roll back or block the approval that triggered it, so
// Notify returns nothing and sinks swallow their own failures.
package notify

import (
	"context"

	id "passgate/pkg/domain"
)

// Notification is one message for one actor. RelatedID optionally points at
// the pass or record that triggered it.
type Notification struct {
	UserID    id.UserID
	Title     string
	Body      string
	Link      string
	RelatedID string
}

// Dispatcher accepts notifications without any delivery guarantee.
type Dispatcher interface {
	Notify(ctx context.Context, n Notification)
}

// Sink is the actual delivery channel (push, in-app, ...). Implementations
// report errors so the dispatcher can log them, but callers never see them.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}
