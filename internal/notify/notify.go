package notify

import (
	"context"
	"errors"
	"time"
)

// ErrStopped is returned once the service's context is done.
var ErrStopped = errors.New("notification service stopped")

// Payload is what gets delivered when a notification fires.
type Payload struct {
	// Key identifies the notification. Scheduling the same key twice
	// replaces the earlier registration.
	Key   string
	Title string
	Body  string
	// At is the trigger time; set by the service.
	At time.Time
}

// Service registers one-shot notifications with some delivery backend.
// Schedule returns the backend's id for the registration, which is what
// Cancel takes.
type Service interface {
	Schedule(ctx context.Context, at time.Time, p Payload) (string, error)
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context) error
}

// Deliverer sends a fired notification somewhere.
type Deliverer interface {
	Deliver(ctx context.Context, p Payload) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, p Payload) error

func (f DelivererFunc) Deliver(ctx context.Context, p Payload) error { return f(ctx, p) }
