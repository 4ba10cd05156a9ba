// Package stripe adapts the Stripe API to the payment processor contract.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/timeouts"
	"github.com/automatehub/automatehub/internal/services/hub/domain/payment"
	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

var _ payment.Processor = (*Processor)(nil)

// Config configures the Stripe processor.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// Backends overrides the Stripe HTTP backends, mainly for tests.
	Backends *stripego.Backends
}

// Processor creates payment intents and verifies webhooks through Stripe.
type Processor struct {
	api           *client.API
	webhookSecret string
}

// New builds a Stripe processor.
func New(cfg Config) (*Processor, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errors.New("stripe secret key is required")
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	return &Processor{api: client.New(key, cfg.Backends), webhookSecret: secret}, nil
}

// CreatePaymentIntent creates a card payment intent. The idempotency key is
// forwarded so retries return the original intent.
func (p *Processor) CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(req.AmountCents),
		Currency: stripego.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Processor)
	defer cancel()
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if req.FeeCents > 0 {
		params.AddMetadata("platform_fee_cents", strconv.FormatInt(req.FeeCents, 10))
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return payment.Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return payment.Intent{ProcessorRef: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// GetIntent retrieves a payment intent by id. Stripe only honours idempotency
// keys for a day, so replays look the intent up instead of recreating it.
func (p *Processor) GetIntent(ctx context.Context, processorRef string) (payment.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Processor)
	defer cancel()
	params := &stripego.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.api.PaymentIntents.Get(processorRef, params)
	if err != nil {
		return payment.Intent{}, fmt.Errorf("get payment intent: %w", err)
	}
	return payment.Intent{ProcessorRef: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// Refund refunds the full amount captured for a payment intent.
func (p *Processor) Refund(ctx context.Context, processorRef string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Processor)
	defer cancel()
	params := &stripego.RefundParams{PaymentIntent: stripego.String(processorRef)}
	params.Context = ctx
	params.SetIdempotencyKey("refund:" + processorRef)
	if _, err := p.api.Refunds.New(params); err != nil {
		return fmt.Errorf("refund payment intent: %w", err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// payment intent the event refers to.
func (p *Processor) ParseWebhook(payload []byte, signature string) (payment.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return payment.WebhookEvent{}, apperrors.Wrap(apperrors.CodeWebhookInvalid, "webhook signature is invalid", err)
	}
	out := payment.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch string(event.Type) {
	case payment.EventIntentSucceeded, payment.EventIntentFailed, payment.EventIntentCanceled:
		var intent stripego.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return payment.WebhookEvent{}, apperrors.Wrap(apperrors.CodeWebhookInvalid, "webhook payload is invalid", err)
		}
		out.ProcessorRef = intent.ID
	case payment.EventChargeRefunded:
		var charge stripego.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return payment.WebhookEvent{}, apperrors.Wrap(apperrors.CodeWebhookInvalid, "webhook payload is invalid", err)
		}
		if charge.PaymentIntent != nil {
			out.ProcessorRef = charge.PaymentIntent.ID
		}
	}
	return out, nil
}
