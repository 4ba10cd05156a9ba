package rest

import (
	"errors"
	"io"
	"net/http"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/httpx"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader deduplicates payment creation per payer.
const IdempotencyKeyHeader = "Idempotency-Key"

type webhookResponse struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	PaymentID string `json:"payment_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Applied   bool   `json:"applied"`
}

func (h *handlers) createPayment(w http.ResponseWriter, r *http.Request) {
	created, err := h.svc.Payments.CreateForProject(r.Context(), actor(r), pathID(r, "id"), r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newPaymentView(created))
}

func (h *handlers) listPayments(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Payments.ListForUser(r.Context(), actor(r).UserID, pageSize, pageToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPage(result.Payments, result.NextPageToken, newPaymentView))
}

func (h *handlers) getPayment(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.Payments.Get(r.Context(), actor(r), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPaymentView(found))
}

// paymentWebhook needs the raw body for signature verification, so it
// bypasses DecodeJSON.
func (h *handlers) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httpx.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, apperrors.New(apperrors.CodeInvalidArgument, "request body too large"))
			return
		}
		h.fail(w, r, apperrors.Wrap(apperrors.CodeInvalidArgument, "request body could not be read", err))
		return
	}
	result, err := h.svc.Payments.HandleWebhook(r.Context(), payload, r.Header.Get(WebhookSignatureHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("payment webhook",
		zap.String("event_id", result.EventID),
		zap.String("event_type", result.EventType),
		zap.String("payment_id", result.PaymentID),
		zap.Bool("applied", result.Applied),
	)
	httpx.WriteJSON(w, http.StatusOK, webhookResponse{
		EventID:   result.EventID,
		EventType: result.EventType,
		PaymentID: result.PaymentID,
		Status:    string(result.Status),
		Applied:   result.Applied,
	})
}
