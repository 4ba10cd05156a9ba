// Package events publishes domain events to Kafka or to the log.
package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Event types emitted by the hub.
const (
	TypeUserRegistered    = "user.registered"
	TypeProposalSubmitted = "proposal.submitted"
	TypeProposalAccepted  = "proposal.accepted"
	TypeProjectCompleted  = "project.completed"
	TypeProjectCancelled  = "project.cancelled"
	TypeReviewCreated     = "review.created"
	TypeMessageSent       = "message.sent"
	TypePaymentCreated    = "payment.created"
	TypePaymentUpdated    = "payment.updated"
)

// Event is one domain fact. Key selects the partition so events for the same
// aggregate stay ordered.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Family returns the leading segment of the event type ("project" for
// "project.completed").
func (e Event) Family() string {
	family, _, _ := strings.Cut(e.Type, ".")
	return family
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Multi fans events out to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, events ...Event) error {
	var errs []error
	for _, publisher := range m {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bounded caps every Publish call of Publisher at Timeout.
type Bounded struct {
	Publisher Publisher
	Timeout   time.Duration
}

// Publish implements Publisher.
func (b Bounded) Publish(ctx context.Context, events ...Event) error {
	if b.Timeout <= 0 {
		return b.Publisher.Publish(ctx, events...)
	}
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()
	return b.Publisher.Publish(ctx, events...)
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, ...Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Type)
	}
	return out
}
