package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/automatehub/automatehub/internal/platform/events"
)

// Topics written to inboxes. They mirror the event types that produce them.
const (
	TopicWelcome          = "account.welcome"
	TopicProposalReceived = "project.proposal_received"
	TopicProposalAccepted = "project.proposal_accepted"
	TopicProjectCompleted = "project.completed"
	TopicProjectCancelled = "project.cancelled"
	TopicReviewReceived   = "review.received"
	TopicMessageReceived  = "conversation.message_received"
	TopicPaymentReceived  = "payment.received"
	TopicPaymentStatus    = "payment.status_changed"
	bridgeSource          = "hub"
)

// Bridge is an events.Publisher that turns domain events into inbox items.
type Bridge struct {
	service *Service
}

// NewBridge wires a publisher that feeds svc.
func NewBridge(svc *Service) *Bridge {
	return &Bridge{service: svc}
}

// Publish implements events.Publisher.
func (b *Bridge) Publish(ctx context.Context, evts ...events.Event) error {
	var errs []error
	for _, evt := range evts {
		for _, intent := range Intents(evt) {
			if _, err := b.service.CreateIntent(ctx, intent); err != nil {
				errs = append(errs, fmt.Errorf("%s for %s: %w", intent.Topic, intent.RecipientUserID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Intents maps one domain event to the inbox items it produces. Events
// without string payloads produce none.
func Intents(evt events.Event) []CreateIntentInput {
	payload, ok := evt.Payload.(map[string]string)
	if !ok {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	var out []CreateIntentInput
	add := func(recipient, topic, ref string) {
		if recipient == "" || ref == "" {
			return
		}
		out = append(out, CreateIntentInput{
			RecipientUserID: recipient,
			Topic:           topic,
			PayloadJSON:     string(body),
			DedupeKey:       topic + ":" + ref,
			Source:          bridgeSource,
		})
	}

	switch evt.Type {
	case events.TypeUserRegistered:
		add(payload["user_id"], TopicWelcome, payload["user_id"])
	case events.TypeProposalSubmitted:
		add(payload["client_id"], TopicProposalReceived, payload["proposal_id"])
	case events.TypeProposalAccepted:
		add(payload["expert_id"], TopicProposalAccepted, payload["proposal_id"])
	case events.TypeProjectCompleted:
		add(payload["expert_id"], TopicProjectCompleted, payload["project_id"])
	case events.TypeProjectCancelled:
		add(payload["expert_id"], TopicProjectCancelled, payload["project_id"])
	case events.TypeReviewCreated:
		add(payload["expert_id"], TopicReviewReceived, payload["review_id"])
	case events.TypeMessageSent:
		add(payload["recipient_id"], TopicMessageReceived, payload["message_id"])
	case events.TypePaymentCreated:
		add(payload["payee_id"], TopicPaymentReceived, payload["payment_id"])
	case events.TypePaymentUpdated:
		ref := payload["payment_id"] + ":" + payload["status"]
		add(payload["payer_id"], TopicPaymentStatus, ref)
		add(payload["payee_id"], TopicPaymentStatus, ref)
	}
	return out
}
