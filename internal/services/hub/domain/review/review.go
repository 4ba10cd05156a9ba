// Package review records client reviews of experts.
package review

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
)

const maxCommentRunes = 2000

var (
	ErrRatingInvalid    = apperrors.New(apperrors.CodeReviewRatingInvalid, "rating must be between 1 and 5")
	ErrCommentTooLong   = apperrors.WithMetadata(apperrors.CodeReviewCommentTooLong, "comment too long", map[string]string{"Max": strconv.Itoa(maxCommentRunes)})
	ErrNotAllowed       = apperrors.New(apperrors.CodeReviewNotAllowed, "only the client of a completed project may review")
	ErrAlreadyReviewed  = apperrors.New(apperrors.CodeReviewExists, "project already reviewed")
	ErrPageTokenInvalid = apperrors.New(apperrors.CodeInvalidArgument, "page token is invalid")
)

// Review is a client's rating of the expert on a completed project.
type Review struct {
	ID        string
	ProjectID string
	ExpertID  string
	ClientID  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// ReviewPage is one page of reviews.
type ReviewPage struct {
	Reviews       []Review
	NextPageToken string
}

// Store persists reviews. CreateReview also recomputes the expert's rating
// average and review count in the same transaction, and reports
// ErrAlreadyReviewed for a second review of a project.
type Store interface {
	GetProject(ctx context.Context, projectID string) (project.Project, error)
	CreateReview(ctx context.Context, review Review) error
	ListReviewsForExpert(ctx context.Context, expertID string, pageSize int, cursor pagination.Cursor) (ReviewPage, error)
}

// CreateInput describes a new review.
type CreateInput struct {
	ProjectID string
	Rating    int
	Comment   string
}

// Service implements review use-cases.
type Service struct {
	store Store
	deps  domain.Deps
}

// NewService constructs review use-cases.
func NewService(store Store, deps domain.Deps) *Service {
	return &Service{store: store, deps: deps.WithDefaults()}
}

// Create reviews the expert of a completed project owned by the caller.
func (s *Service) Create(ctx context.Context, actor domain.Actor, input CreateInput) (Review, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return Review{}, ErrRatingInvalid
	}
	comment := strings.TrimSpace(input.Comment)
	if utf8.RuneCountInString(comment) > maxCommentRunes {
		return Review{}, ErrCommentTooLong
	}
	proj, err := s.store.GetProject(ctx, strings.TrimSpace(input.ProjectID))
	if err != nil {
		return Review{}, err
	}
	if proj.ClientID != actor.UserID || proj.Status != project.StatusCompleted || proj.ExpertID == "" {
		return Review{}, ErrNotAllowed
	}

	reviewID, err := s.deps.NewID()
	if err != nil {
		return Review{}, err
	}
	now := s.deps.Now()
	review := Review{
		ID:        reviewID,
		ProjectID: proj.ID,
		ExpertID:  proj.ExpertID,
		ClientID:  actor.UserID,
		Rating:    input.Rating,
		Comment:   comment,
		CreatedAt: now,
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		return Review{}, err
	}

	s.deps.Publish(ctx, events.Event{
		Type: events.TypeReviewCreated,
		Key:  review.ExpertID,
		Payload: map[string]string{
			"review_id":  review.ID,
			"project_id": review.ProjectID,
			"expert_id":  review.ExpertID,
			"rating":     strconv.Itoa(review.Rating),
		},
		OccurredAt: now,
	})
	return review, nil
}

// ListForExpert pages through an expert's reviews, newest first.
func (s *Service) ListForExpert(ctx context.Context, expertID string, pageSize int, pageToken string) (ReviewPage, error) {
	cursor, err := pagination.DecodeCursor(pageToken)
	if err != nil {
		return ReviewPage{}, ErrPageTokenInvalid
	}
	size := pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{Default: 20, Max: 100})
	return s.store.ListReviewsForExpert(ctx, strings.TrimSpace(expertID), size, cursor)
}
