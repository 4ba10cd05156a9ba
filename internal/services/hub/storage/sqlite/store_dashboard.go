package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/automatehub/automatehub/internal/services/hub/domain/dashboard"
)

// CountUsersByRole counts users per role.
func (s *Store) CountUsersByRole(ctx context.Context) (map[string]int, error) {
	return s.countGrouped(ctx, "users by role", `SELECT role, COUNT(*) FROM users GROUP BY role`)
}

// CountUsersByStatus counts users per account status.
func (s *Store) CountUsersByStatus(ctx context.Context) (map[string]int, error) {
	return s.countGrouped(ctx, "users by status", `SELECT status, COUNT(*) FROM users GROUP BY status`)
}

// CountProjectsByStatus counts projects per lifecycle status.
func (s *Store) CountProjectsByStatus(ctx context.Context) (map[string]int, error) {
	return s.countGrouped(ctx, "projects by status", `SELECT status, COUNT(*) FROM projects GROUP BY status`)
}

// CountVerifiedExperts counts experts with the verified badge.
func (s *Store) CountVerifiedExperts(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM expert_profiles p JOIN users u ON u.id = p.user_id
WHERE p.verified = 1 AND u.role = 'expert'
`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count verified experts: %w", err)
	}
	return count, nil
}

// PaymentTotalsByStatus sums payment count and volume per status.
func (s *Store) PaymentTotalsByStatus(ctx context.Context) (map[string]dashboard.PaymentTotals, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT status, COUNT(*), COALESCE(SUM(amount_cents), 0) FROM payments GROUP BY status
`)
	if err != nil {
		return nil, fmt.Errorf("payment totals: %w", err)
	}
	defer rows.Close()

	totals := map[string]dashboard.PaymentTotals{}
	for rows.Next() {
		var (
			status string
			total  dashboard.PaymentTotals
		)
		if err := rows.Scan(&status, &total.Count, &total.VolumeCents); err != nil {
			return nil, fmt.Errorf("scan payment totals: %w", err)
		}
		totals[status] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment totals: %w", err)
	}
	return totals, nil
}

// CountMessagesSince counts messages sent at or after since.
func (s *Store) CountMessagesSince(ctx context.Context, since time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE sent_at >= ?`, toMillis(since)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// ReviewTotals returns the review count and raw average rating.
func (s *Store) ReviewTotals(ctx context.Context) (dashboard.ReviewTotals, error) {
	if err := s.ready(ctx); err != nil {
		return dashboard.ReviewTotals{}, err
	}
	var totals dashboard.ReviewTotals
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM reviews
`).Scan(&totals.Count, &totals.AverageRating); err != nil {
		return dashboard.ReviewTotals{}, fmt.Errorf("review totals: %w", err)
	}
	return totals, nil
}

func (s *Store) countGrouped(ctx context.Context, name, statement string) (map[string]int, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", name, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return counts, nil
}
