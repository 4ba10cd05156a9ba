package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/automatehub/automatehub/internal/services/hub/domain/payment"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentIntentIsIdempotentByKey(t *testing.T) {
	processor := New("secret")
	req := payment.IntentRequest{AmountCents: 1000, Currency: "usd", IdempotencyKey: "key-1"}

	first, err := processor.CreatePaymentIntent(context.Background(), req)
	require.NoError(t, err)
	again, err := processor.CreatePaymentIntent(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, again)

	other, err := processor.CreatePaymentIntent(context.Background(), payment.IntentRequest{AmountCents: 1000, Currency: "usd", IdempotencyKey: "key-2"})
	require.NoError(t, err)
	require.NotEqual(t, first.ProcessorRef, other.ProcessorRef)

	recorded, ok := processor.Request(first.ProcessorRef)
	require.True(t, ok)
	require.Equal(t, int64(1000), recorded.AmountCents)
}

func TestGetIntentSurvivesKeyExpiry(t *testing.T) {
	processor := New("secret")
	created, err := processor.CreatePaymentIntent(context.Background(), payment.IntentRequest{AmountCents: 1000, Currency: "usd", IdempotencyKey: "key-1"})
	require.NoError(t, err)

	processor.ExpireKeys()
	got, err := processor.GetIntent(context.Background(), created.ProcessorRef)
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = processor.GetIntent(context.Background(), "pi_missing")
	require.Error(t, err)
}

func TestParseWebhookVerifiesSignature(t *testing.T) {
	processor := New("secret")
	payload, signature := processor.Event("evt_1", payment.EventIntentSucceeded, "pi_fake_1")

	event, err := processor.ParseWebhook(payload, signature)
	require.NoError(t, err)
	require.Equal(t, payment.WebhookEvent{ID: "evt_1", Type: payment.EventIntentSucceeded, ProcessorRef: "pi_fake_1"}, event)

	_, err = processor.ParseWebhook(payload, New("other").Sign(payload))
	require.ErrorIs(t, err, payment.ErrWebhookInvalid)
	_, err = processor.ParseWebhook(payload, "not-hex")
	require.ErrorIs(t, err, payment.ErrWebhookInvalid)
}

func TestRefundAndFailNext(t *testing.T) {
	processor := New("secret")
	intent, err := processor.CreatePaymentIntent(context.Background(), payment.IntentRequest{AmountCents: 500, Currency: "usd"})
	require.NoError(t, err)

	require.NoError(t, processor.Refund(context.Background(), intent.ProcessorRef))
	require.True(t, processor.Refunded(intent.ProcessorRef))
	require.Error(t, processor.Refund(context.Background(), "pi_unknown"))

	boom := errors.New("processor down")
	processor.FailNext(boom)
	_, err = processor.CreatePaymentIntent(context.Background(), payment.IntentRequest{AmountCents: 500, Currency: "usd"})
	require.ErrorIs(t, err, boom)
	_, err = processor.CreatePaymentIntent(context.Background(), payment.IntentRequest{AmountCents: 500, Currency: "usd"})
	require.NoError(t, err)
}
