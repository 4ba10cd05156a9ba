// Package payment charges clients for projects through an external processor.
package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
	"go.uber.org/zap"
)

var (
	ErrNotFound          = apperrors.New(apperrors.CodePaymentNotFound, "payment not found")
	ErrNotAllowed        = apperrors.New(apperrors.CodePaymentNotAllowed, "payment not allowed")
	ErrAmountInvalid     = apperrors.New(apperrors.CodePaymentAmountInvalid, "payment amount must be positive")
	ErrNotRefundable     = apperrors.New(apperrors.CodePaymentNotRefundable, "only succeeded payments can be refunded")
	ErrProjectNotPayable = apperrors.New(apperrors.CodePaymentProjectState, "project is not in progress or completed")
	ErrWebhookInvalid    = apperrors.New(apperrors.CodeWebhookInvalid, "webhook could not be verified")
	ErrPageTokenInvalid  = apperrors.New(apperrors.CodeInvalidArgument, "page token is invalid")
	ErrKeyReused         = apperrors.New(apperrors.CodeConflict, "idempotency key was already used for another project")
	// ErrConflict is reported by stores on a duplicate idempotency key or a
	// status update that lost a race.
	ErrConflict = apperrors.New(apperrors.CodeConflict, "payment conflict")
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

var advances = map[Status][]Status{
	StatusPending:   {StatusSucceeded, StatusFailed, StatusCancelled},
	StatusSucceeded: {StatusRefunded},
}

// CanAdvance reports whether a payment may move from one status to another.
// Failed, refunded and cancelled payments never change again.
func CanAdvance(from, to Status) bool {
	for _, next := range advances[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment is one charge of a client for a project.
type Payment struct {
	ID             string
	ProjectID      string
	PayerID        string
	PayeeID        string
	AmountCents    int64
	FeeCents       int64
	Currency       string
	Status         Status
	ProcessorRef   string
	IdempotencyKey string
	// ClientSecret is returned on creation and never stored.
	ClientSecret string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PaymentPage is one page of payments.
type PaymentPage struct {
	Payments      []Payment
	NextPageToken string
}

// Store persists payments.
type Store interface {
	GetProject(ctx context.Context, projectID string) (project.Project, error)
	CreatePayment(ctx context.Context, payment Payment) error
	GetPayment(ctx context.Context, paymentID string) (Payment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, payerID, key string) (Payment, error)
	GetPaymentByProcessorRef(ctx context.Context, ref string) (Payment, error)
	// UpdatePaymentStatus moves a payment from one status to another and
	// reports ErrConflict when the stored status is no longer from.
	UpdatePaymentStatus(ctx context.Context, paymentID string, from, to Status, at time.Time) (Payment, error)
	ListPaymentsForUser(ctx context.Context, userID string, pageSize int, cursor pagination.Cursor) (PaymentPage, error)
}

// Config tunes the payment service.
type Config struct {
	// FeeBPS is the platform fee in basis points of the amount.
	FeeBPS int64
}

// Service implements payment use-cases.
type Service struct {
	store     Store
	processor Processor
	deps      domain.Deps
	feeBPS    int64
}

// NewService constructs payment use-cases.
func NewService(store Store, processor Processor, deps domain.Deps, cfg Config) *Service {
	if processor == nil {
		processor = unavailableProcessor{}
	}
	return &Service{store: store, processor: processor, deps: deps.WithDefaults(), feeBPS: cfg.FeeBPS}
}

// Fee returns the platform fee for amountCents, rounded down.
func Fee(amountCents, feeBPS int64) int64 {
	if amountCents <= 0 || feeBPS <= 0 {
		return 0
	}
	return amountCents * feeBPS / 10000
}

// CreateForProject starts a payment from the project's client to its expert
// for the project budget. Repeating a call with the same idempotency key
// returns the original payment and its client secret.
func (s *Service) CreateForProject(ctx context.Context, actor domain.Actor, projectID, idempotencyKey string) (Payment, error) {
	proj, err := s.store.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return Payment{}, err
	}
	if proj.ClientID != actor.UserID {
		return Payment{}, ErrNotAllowed
	}
	if proj.Status != project.StatusInProgress && proj.Status != project.StatusCompleted {
		return Payment{}, ErrProjectNotPayable
	}
	if proj.ExpertID == "" || proj.ExpertID == proj.ClientID {
		return Payment{}, ErrNotAllowed
	}
	if proj.BudgetCents <= 0 {
		return Payment{}, ErrAmountInvalid
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.store.GetPaymentByIdempotencyKey(ctx, actor.UserID, idempotencyKey)
		if err == nil {
			return s.replay(ctx, existing, proj.ID)
		}
		if !errors.Is(err, ErrNotFound) {
			return Payment{}, err
		}
	}
	if idempotencyKey == "" {
		if idempotencyKey, err = s.deps.NewID(); err != nil {
			return Payment{}, err
		}
	}

	paymentID, err := s.deps.NewID()
	if err != nil {
		return Payment{}, err
	}
	fee := Fee(proj.BudgetCents, s.feeBPS)
	intent, err := s.processor.CreatePaymentIntent(ctx, IntentRequest{
		AmountCents:    proj.BudgetCents,
		FeeCents:       fee,
		Currency:       proj.Currency,
		IdempotencyKey: idempotencyKey,
		Metadata: map[string]string{
			"payment_id": paymentID,
			"project_id": proj.ID,
			"payer_id":   proj.ClientID,
			"payee_id":   proj.ExpertID,
		},
	})
	if err != nil {
		return Payment{}, processorError(err)
	}

	now := s.deps.Now()
	payment := Payment{
		ID:             paymentID,
		ProjectID:      proj.ID,
		PayerID:        proj.ClientID,
		PayeeID:        proj.ExpertID,
		AmountCents:    proj.BudgetCents,
		FeeCents:       fee,
		Currency:       proj.Currency,
		Status:         StatusPending,
		ProcessorRef:   intent.ProcessorRef,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, ErrConflict) {
			existing, lookupErr := s.store.GetPaymentByIdempotencyKey(ctx, actor.UserID, idempotencyKey)
			if lookupErr != nil {
				return Payment{}, lookupErr
			}
			return s.replay(ctx, existing, proj.ID)
		}
		return Payment{}, err
	}
	payment.ClientSecret = intent.ClientSecret

	s.publishPayment(ctx, events.TypePaymentCreated, payment, now)
	s.deps.Logger.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("project_id", payment.ProjectID),
		zap.Int64("amount_cents", payment.AmountCents),
	)
	return payment, nil
}

// replay fetches the intent behind an existing payment so the caller gets its
// client secret back. The key only replays for the project it was minted for.
func (s *Service) replay(ctx context.Context, existing Payment, projectID string) (Payment, error) {
	if existing.ProjectID != projectID {
		return Payment{}, ErrKeyReused
	}
	intent, err := s.processor.GetIntent(ctx, existing.ProcessorRef)
	if err != nil {
		return Payment{}, processorError(err)
	}
	existing.ClientSecret = intent.ClientSecret
	return existing, nil
}

// WebhookResult reports what HandleWebhook did with one processor event.
type WebhookResult struct {
	EventID   string
	EventType string
	PaymentID string
	Status    Status
	// Applied is false for ignored, unknown or replayed events.
	Applied bool
}

// HandleWebhook verifies and applies one processor event. Unknown events,
// unknown payments and transitions out of terminal states are acknowledged
// without changes, so replays are harmless.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	evt, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return WebhookResult{}, err
		}
		return WebhookResult{}, apperrors.Wrap(apperrors.CodeWebhookInvalid, "webhook could not be verified", err)
	}
	result := WebhookResult{EventID: evt.ID, EventType: evt.Type}

	target, known := webhookTargets[evt.Type]
	if !known || evt.ProcessorRef == "" {
		s.deps.Logger.Debug("webhook ignored", zap.String("event_type", evt.Type), zap.String("event_id", evt.ID))
		return result, nil
	}

	payment, err := s.store.GetPaymentByProcessorRef(ctx, evt.ProcessorRef)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.deps.Logger.Warn("webhook for unknown payment", zap.String("processor_ref", evt.ProcessorRef), zap.String("event_id", evt.ID))
			return result, nil
		}
		return WebhookResult{}, err
	}
	result.PaymentID = payment.ID
	result.Status = payment.Status

	if !CanAdvance(payment.Status, target) {
		return result, nil
	}
	updated, err := s.advance(ctx, payment, target)
	if err != nil {
		return WebhookResult{}, err
	}
	result.Status = updated.Status
	result.Applied = updated.Status == target
	return result, nil
}

// Refund returns a succeeded payment to the payer. Admins only.
func (s *Service) Refund(ctx context.Context, actor domain.Actor, paymentID string) (Payment, error) {
	if !actor.IsAdmin() {
		return Payment{}, ErrNotAllowed
	}
	payment, err := s.store.GetPayment(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		return Payment{}, err
	}
	if payment.Status != StatusSucceeded {
		return Payment{}, ErrNotRefundable
	}
	if err := s.processor.Refund(ctx, payment.ProcessorRef); err != nil {
		return Payment{}, processorError(err)
	}
	return s.advance(ctx, payment, StatusRefunded)
}

// Get returns a payment visible to its payer, its payee or an admin.
func (s *Service) Get(ctx context.Context, actor domain.Actor, paymentID string) (Payment, error) {
	payment, err := s.store.GetPayment(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		return Payment{}, err
	}
	if !actor.IsAdmin() && payment.PayerID != actor.UserID && payment.PayeeID != actor.UserID {
		return Payment{}, ErrNotAllowed
	}
	return payment, nil
}

// ListForUser pages through payments where the user is payer or payee,
// newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, pageSize int, pageToken string) (PaymentPage, error) {
	cursor, err := pagination.DecodeCursor(pageToken)
	if err != nil {
		return PaymentPage{}, ErrPageTokenInvalid
	}
	size := pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{Default: 20, Max: 100})
	return s.store.ListPaymentsForUser(ctx, userID, size, cursor)
}

// advance applies a status change. Losing a race to another update returns the
// stored payment unchanged.
func (s *Service) advance(ctx context.Context, payment Payment, to Status) (Payment, error) {
	now := s.deps.Now()
	updated, err := s.store.UpdatePaymentStatus(ctx, payment.ID, payment.Status, to, now)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return s.store.GetPayment(ctx, payment.ID)
		}
		return Payment{}, err
	}
	s.publishPayment(ctx, events.TypePaymentUpdated, updated, now)
	s.deps.Logger.Info("payment status changed",
		zap.String("payment_id", updated.ID),
		zap.String("from", string(payment.Status)),
		zap.String("to", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) publishPayment(ctx context.Context, eventType string, payment Payment, at time.Time) {
	s.deps.Publish(ctx, events.Event{
		Type: eventType,
		Key:  payment.ID,
		Payload: map[string]string{
			"payment_id":   payment.ID,
			"project_id":   payment.ProjectID,
			"payer_id":     payment.PayerID,
			"payee_id":     payment.PayeeID,
			"status":       string(payment.Status),
			"amount_cents": strconv.FormatInt(payment.AmountCents, 10),
			"currency":     payment.Currency,
		},
		OccurredAt: at,
	})
}

func processorError(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Wrap(apperrors.CodeProcessorFailure, "payment processor request failed", err)
}
