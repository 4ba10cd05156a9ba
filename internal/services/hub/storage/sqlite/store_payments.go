package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain/payment"
)

const paymentColumns = `id, project_id, payer_id, payee_id, amount_cents, fee_cents, currency, status, processor_ref, idempotency_key, created_at, updated_at`

// CreatePayment inserts a payment. A second payment for the same payer and
// idempotency key reports payment.ErrConflict.
func (s *Store) CreatePayment(ctx context.Context, p payment.Payment) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO payments (`+paymentColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		p.ID,
		p.ProjectID,
		p.PayerID,
		p.PayeeID,
		p.AmountCents,
		p.FeeCents,
		p.Currency,
		string(p.Status),
		p.ProcessorRef,
		p.IdempotencyKey,
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return payment.ErrConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetPayment loads one payment.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (payment.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return payment.Payment{}, err
	}
	return s.getPaymentWhere(ctx, "id = ?", paymentID)
}

// GetPaymentByIdempotencyKey loads the payment a payer created with key.
func (s *Store) GetPaymentByIdempotencyKey(ctx context.Context, payerID, key string) (payment.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return payment.Payment{}, err
	}
	return s.getPaymentWhere(ctx, "payer_id = ? AND idempotency_key = ?", payerID, key)
}

// GetPaymentByProcessorRef loads the payment behind a processor reference.
func (s *Store) GetPaymentByProcessorRef(ctx context.Context, ref string) (payment.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return payment.Payment{}, err
	}
	if strings.TrimSpace(ref) == "" {
		return payment.Payment{}, payment.ErrNotFound
	}
	return s.getPaymentWhere(ctx, "processor_ref = ?", ref)
}

func (s *Store) getPaymentWhere(ctx context.Context, where string, args ...any) (payment.Payment, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE `+where+` LIMIT 1`, args...)
	p, err := scanPayment(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payment.Payment{}, payment.ErrNotFound
		}
		return payment.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// UpdatePaymentStatus moves a payment from one status to another.
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID string, from, to payment.Status, at time.Time) (payment.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return payment.Payment{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
UPDATE payments SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
RETURNING `+paymentColumns,
		string(to), toMillis(at), paymentID, string(from))
	p, err := scanPayment(row.Scan)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return payment.Payment{}, fmt.Errorf("update payment status: %w", err)
		}
		if _, getErr := s.getPaymentWhere(ctx, "id = ?", paymentID); getErr != nil {
			return payment.Payment{}, getErr
		}
		return payment.Payment{}, payment.ErrConflict
	}
	return p, nil
}

// ListPaymentsForUser pages through payments the user made or received,
// newest first.
func (s *Store) ListPaymentsForUser(ctx context.Context, userID string, pageSize int, cursor pagination.Cursor) (payment.PaymentPage, error) {
	if err := s.ready(ctx); err != nil {
		return payment.PaymentPage{}, err
	}
	if pageSize <= 0 {
		return payment.PaymentPage{}, fmt.Errorf("page size must be greater than zero")
	}
	statement := `SELECT ` + paymentColumns + ` FROM payments WHERE (payer_id = ? OR payee_id = ?)`
	args := []any{userID, userID}
	if cursor.ID != "" {
		key, ok := millisCursor(cursor)
		if !ok {
			return payment.PaymentPage{}, payment.ErrPageTokenInvalid
		}
		statement += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, key, key, cursor.ID)
	}
	statement += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return payment.PaymentPage{}, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	page := payment.PaymentPage{Payments: make([]payment.Payment, 0, pageSize)}
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return payment.PaymentPage{}, fmt.Errorf("scan payment row: %w", err)
		}
		page.Payments = append(page.Payments, p)
	}
	if err := rows.Err(); err != nil {
		return payment.PaymentPage{}, fmt.Errorf("iterate payment rows: %w", err)
	}
	if len(page.Payments) > pageSize {
		last := page.Payments[pageSize-1]
		page.NextPageToken = millisToken(last.CreatedAt, last.ID)
		page.Payments = page.Payments[:pageSize]
	}
	return page, nil
}

func scanPayment(scan scanner) (payment.Payment, error) {
	var (
		p         payment.Payment
		status    string
		createdAt int64
		updatedAt int64
	)
	if err := scan(
		&p.ID,
		&p.ProjectID,
		&p.PayerID,
		&p.PayeeID,
		&p.AmountCents,
		&p.FeeCents,
		&p.Currency,
		&status,
		&p.ProcessorRef,
		&p.IdempotencyKey,
		&createdAt,
		&updatedAt,
	); err != nil {
		return payment.Payment{}, err
	}
	p.Status = payment.Status(status)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}
