// Package fake is an in-memory payment processor for development and tests.
package fake

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/id"
	"github.com/automatehub/automatehub/internal/services/hub/domain/payment"
)

var _ payment.Processor = (*Processor)(nil)

// Processor records intents in memory and signs webhooks with HMAC-SHA256.
type Processor struct {
	secret []byte

	mu       sync.Mutex
	byKey    map[string]payment.Intent
	byRef    map[string]payment.Intent
	requests map[string]payment.IntentRequest
	refunded map[string]bool
	failNext error
}

// New builds a fake processor that signs webhooks with secret.
func New(secret string) *Processor {
	return &Processor{
		secret:   []byte(secret),
		byKey:    make(map[string]payment.Intent),
		byRef:    make(map[string]payment.Intent),
		requests: make(map[string]payment.IntentRequest),
		refunded: make(map[string]bool),
	}
}

// FailNext makes the next processor call return err.
func (p *Processor) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// CreatePaymentIntent returns the stored intent for a known idempotency key
// and records a new one otherwise.
func (p *Processor) CreatePaymentIntent(_ context.Context, req payment.IntentRequest) (payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return payment.Intent{}, err
	}
	if req.IdempotencyKey != "" {
		if intent, ok := p.byKey[req.IdempotencyKey]; ok {
			return intent, nil
		}
	}
	suffix, err := id.NewID()
	if err != nil {
		return payment.Intent{}, err
	}
	intent := payment.Intent{
		ProcessorRef: "pi_fake_" + suffix,
		ClientSecret: "pi_fake_" + suffix + "_secret",
	}
	if req.IdempotencyKey != "" {
		p.byKey[req.IdempotencyKey] = intent
	}
	p.byRef[intent.ProcessorRef] = intent
	p.requests[intent.ProcessorRef] = req
	return intent, nil
}

// GetIntent returns a previously created intent by reference.
func (p *Processor) GetIntent(_ context.Context, processorRef string) (payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return payment.Intent{}, err
	}
	intent, ok := p.byRef[processorRef]
	if !ok {
		return payment.Intent{}, fmt.Errorf("unknown payment intent %q", processorRef)
	}
	return intent, nil
}

// ExpireKeys forgets every idempotency key, as the real processor does after
// its retention window.
func (p *Processor) ExpireKeys() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.byKey)
}

// Refund marks a known intent refunded.
func (p *Processor) Refund(_ context.Context, processorRef string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return err
	}
	if _, ok := p.requests[processorRef]; !ok {
		return fmt.Errorf("unknown payment intent %q", processorRef)
	}
	p.refunded[processorRef] = true
	return nil
}

// Request returns the intent request recorded for processorRef.
func (p *Processor) Request(processorRef string) (payment.IntentRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.requests[processorRef]
	return req, ok
}

// Refunded reports whether processorRef was refunded.
func (p *Processor) Refunded(processorRef string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refunded[processorRef]
}

type webhookBody struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	ProcessorRef string `json:"processor_ref"`
}

// ParseWebhook verifies the hex HMAC signature and decodes the event.
func (p *Processor) ParseWebhook(payload []byte, signature string) (payment.WebhookEvent, error) {
	expected, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || !hmac.Equal(expected, p.mac(payload)) {
		return payment.WebhookEvent{}, apperrors.New(apperrors.CodeWebhookInvalid, "webhook signature is invalid")
	}
	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return payment.WebhookEvent{}, apperrors.Wrap(apperrors.CodeWebhookInvalid, "webhook payload is invalid", err)
	}
	return payment.WebhookEvent{ID: body.ID, Type: body.Type, ProcessorRef: body.ProcessorRef}, nil
}

// Sign returns the signature ParseWebhook accepts for payload.
func (p *Processor) Sign(payload []byte) string {
	return hex.EncodeToString(p.mac(payload))
}

// Event builds a signed webhook payload.
func (p *Processor) Event(eventID, eventType, processorRef string) ([]byte, string) {
	payload, _ := json.Marshal(webhookBody{ID: eventID, Type: eventType, ProcessorRef: processorRef})
	return payload, p.Sign(payload)
}

func (p *Processor) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, p.secret)
	h.Write(payload)
	return h.Sum(nil)
}

func (p *Processor) takeFailure() error {
	err := p.failNext
	p.failNext = nil
	return err
}
