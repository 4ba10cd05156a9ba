package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain/review"
)

const reviewColumns = `id, project_id, expert_id, client_id, rating, comment, created_at`

// CreateReview stores a review and refreshes the expert's rating aggregates
// in the same transaction.
func (s *Store) CreateReview(ctx context.Context, r review.Review) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "create review", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO reviews (`+reviewColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
			r.ID,
			r.ProjectID,
			r.ExpertID,
			r.ClientID,
			r.Rating,
			r.Comment,
			toMillis(r.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return review.ErrAlreadyReviewed
			}
			return fmt.Errorf("insert review: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
UPDATE expert_profiles
SET rating_average = COALESCE((SELECT AVG(rating) FROM reviews WHERE expert_id = ?), 0),
    review_count = (SELECT COUNT(*) FROM reviews WHERE expert_id = ?)
WHERE user_id = ?
`, r.ExpertID, r.ExpertID, r.ExpertID)
		if err != nil {
			return fmt.Errorf("refresh expert rating: %w", err)
		}
		return nil
	})
}

// ListReviewsForExpert pages through an expert's reviews, newest first.
func (s *Store) ListReviewsForExpert(ctx context.Context, expertID string, pageSize int, cursor pagination.Cursor) (review.ReviewPage, error) {
	if err := s.ready(ctx); err != nil {
		return review.ReviewPage{}, err
	}
	expertID = strings.TrimSpace(expertID)
	if pageSize <= 0 {
		return review.ReviewPage{}, fmt.Errorf("page size must be greater than zero")
	}

	statement := `SELECT ` + reviewColumns + ` FROM reviews WHERE expert_id = ?`
	args := []any{expertID}
	if cursor.ID != "" {
		key, ok := millisCursor(cursor)
		if !ok {
			return review.ReviewPage{}, review.ErrPageTokenInvalid
		}
		statement += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, key, key, cursor.ID)
	}
	statement += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return review.ReviewPage{}, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	page := review.ReviewPage{Reviews: make([]review.Review, 0, pageSize)}
	for rows.Next() {
		var (
			r         review.Review
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.ExpertID, &r.ClientID, &r.Rating, &r.Comment, &createdAt); err != nil {
			return review.ReviewPage{}, fmt.Errorf("scan review row: %w", err)
		}
		r.CreatedAt = fromMillis(createdAt)
		page.Reviews = append(page.Reviews, r)
	}
	if err := rows.Err(); err != nil {
		return review.ReviewPage{}, fmt.Errorf("iterate review rows: %w", err)
	}
	if len(page.Reviews) > pageSize {
		last := page.Reviews[pageSize-1]
		page.NextPageToken = millisToken(last.CreatedAt, last.ID)
		page.Reviews = page.Reviews[:pageSize]
	}
	return page, nil
}
