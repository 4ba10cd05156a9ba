// Package dashboard aggregates marketplace statistics for administrators.
package dashboard

import (
	"context"
	"math"
	"time"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"golang.org/x/sync/errgroup"
)

// ErrForbidden is returned to non-admin callers.
var ErrForbidden = apperrors.WithMetadata(apperrors.CodeRoleRequired, "admin role required", map[string]string{"Role": string(domain.RoleAdmin)})

// PaymentTotals counts payments in one status.
type PaymentTotals struct {
	Count       int   `json:"count"`
	VolumeCents int64 `json:"volume_cents"`
}

// ReviewTotals summarizes all reviews.
type ReviewTotals struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

// Stats is a point-in-time snapshot of the marketplace.
type Stats struct {
	UsersByRole      map[string]int           `json:"users_by_role"`
	UsersByStatus    map[string]int           `json:"users_by_status"`
	VerifiedExperts  int                      `json:"verified_experts"`
	ProjectsByStatus map[string]int           `json:"projects_by_status"`
	Payments         map[string]PaymentTotals `json:"payments_by_status"`
	MessagesLast24h  int                      `json:"messages_last_24h"`
	Reviews          ReviewTotals             `json:"reviews"`
	GeneratedAt      time.Time                `json:"generated_at"`
}

// Store answers aggregate queries.
type Store interface {
	CountUsersByRole(ctx context.Context) (map[string]int, error)
	CountUsersByStatus(ctx context.Context) (map[string]int, error)
	CountVerifiedExperts(ctx context.Context) (int, error)
	CountProjectsByStatus(ctx context.Context) (map[string]int, error)
	PaymentTotalsByStatus(ctx context.Context) (map[string]PaymentTotals, error)
	CountMessagesSince(ctx context.Context, since time.Time) (int, error)
	ReviewTotals(ctx context.Context) (ReviewTotals, error)
}

// Service computes dashboard statistics.
type Service struct {
	store Store
	deps  domain.Deps
}

// NewService constructs dashboard use-cases.
func NewService(store Store, deps domain.Deps) *Service {
	return &Service{store: store, deps: deps.WithDefaults()}
}

// Stats returns marketplace statistics to an admin.
func (s *Service) Stats(ctx context.Context, actor domain.Actor) (Stats, error) {
	if !actor.IsAdmin() {
		return Stats{}, ErrForbidden
	}
	return s.Collect(ctx)
}

// Collect runs every aggregate query concurrently. It performs no
// authorization and backs operator tooling.
func (s *Service) Collect(ctx context.Context) (Stats, error) {
	now := s.deps.Now()
	stats := Stats{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.UsersByRole, err = s.store.CountUsersByRole(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.UsersByStatus, err = s.store.CountUsersByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.VerifiedExperts, err = s.store.CountVerifiedExperts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.ProjectsByStatus, err = s.store.CountProjectsByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Payments, err = s.store.PaymentTotalsByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.MessagesLast24h, err = s.store.CountMessagesSince(gctx, now.Add(-24*time.Hour))
		return err
	})
	g.Go(func() (err error) {
		stats.Reviews, err = s.store.ReviewTotals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats.Reviews.AverageRating = math.Round(stats.Reviews.AverageRating*100) / 100
	return stats, nil
}
