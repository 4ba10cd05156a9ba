package payment

import (
	"context"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
)

// Processor event types the service reacts to.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
	EventChargeRefunded  = "charge.refunded"
)

var webhookTargets = map[string]Status{
	EventIntentSucceeded: StatusSucceeded,
	EventIntentFailed:    StatusFailed,
	EventIntentCanceled:  StatusCancelled,
	EventChargeRefunded:  StatusRefunded,
}

// IntentRequest asks the processor to prepare a charge.
type IntentRequest struct {
	AmountCents    int64
	FeeCents       int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// Intent is the processor's handle for a prepared charge.
type Intent struct {
	ProcessorRef string
	ClientSecret string
}

// WebhookEvent is a verified processor notification.
type WebhookEvent struct {
	ID           string
	Type         string
	ProcessorRef string
}

// Processor is the external payment provider. CreatePaymentIntent must return
// the same intent for a repeated idempotency key. GetIntent looks an intent up
// by reference and does not depend on the key still being remembered.
type Processor interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error)
	GetIntent(ctx context.Context, processorRef string) (Intent, error)
	Refund(ctx context.Context, processorRef string) error
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

// ErrProcessorUnavailable is returned when no processor is configured.
var ErrProcessorUnavailable = apperrors.New(apperrors.CodeUnavailable, "payment processor is not configured")

type unavailableProcessor struct{}

func (unavailableProcessor) CreatePaymentIntent(context.Context, IntentRequest) (Intent, error) {
	return Intent{}, ErrProcessorUnavailable
}

func (unavailableProcessor) GetIntent(context.Context, string) (Intent, error) {
	return Intent{}, ErrProcessorUnavailable
}

func (unavailableProcessor) Refund(context.Context, string) error {
	return ErrProcessorUnavailable
}

func (unavailableProcessor) ParseWebhook([]byte, string) (WebhookEvent, error) {
	return WebhookEvent{}, ErrProcessorUnavailable
}
