// Package notification manages per-user notification inboxes.
package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"go.uber.org/zap"
)

var (
	// ErrNotFound indicates a notification record was not found.
	ErrNotFound = apperrors.New(apperrors.CodeNotificationNotFound, "notification not found")
	// ErrConflict indicates a write conflicted with the dedupe constraint.
	ErrConflict = apperrors.New(apperrors.CodeConflict, "notification conflict")
	// ErrRecipientRequired indicates recipient identity is required.
	ErrRecipientRequired = apperrors.New(apperrors.CodeInvalidArgument, "recipient user id is required")
	// ErrTopicRequired indicates a topic is required.
	ErrTopicRequired = apperrors.New(apperrors.CodeInvalidArgument, "notification topic is required")
	// ErrIDRequired indicates notification ID is required.
	ErrIDRequired = apperrors.New(apperrors.CodeInvalidArgument, "notification id is required")
	// ErrPageTokenInvalid indicates a malformed inbox page token.
	ErrPageTokenInvalid = apperrors.New(apperrors.CodeInvalidArgument, "page token is invalid")
)

var inboxPageSize = pagination.PageSizeConfig{Default: 50, Max: 200}

// Notification captures one user-targeted notification item.
type Notification struct {
	ID              string
	RecipientUserID string
	Topic           string
	PayloadJSON     string
	DedupeKey       string
	Source          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ReadAt          *time.Time
}

// NotificationPage is a paged recipient inbox view.
type NotificationPage struct {
	Notifications []Notification
	NextPageToken string
	UnreadCount   int
}

// CreateIntentInput describes one producer notification request.
type CreateIntentInput struct {
	RecipientUserID string
	Topic           string
	PayloadJSON     string
	DedupeKey       string
	Source          string
}

// Store is the persistence boundary for inbox behavior.
type Store interface {
	GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (Notification, error)
	PutNotification(ctx context.Context, notification Notification) error
	ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, cursor pagination.Cursor) (NotificationPage, error)
	CountUnreadNotifications(ctx context.Context, recipientUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (Notification, error)
}

// Pusher delivers freshly created notifications to connected clients.
type Pusher interface {
	PushNotification(ctx context.Context, notification Notification)
}

// Service orchestrates recipient inbox lifecycle behavior.
type Service struct {
	store  Store
	deps   domain.Deps
	pusher Pusher
}

// NewService constructs notification use-cases.
func NewService(store Store, deps domain.Deps) *Service {
	return &Service{store: store, deps: deps.WithDefaults()}
}

// SetPusher installs the realtime delivery hook.
func (s *Service) SetPusher(pusher Pusher) {
	s.pusher = pusher
}

// CreateIntent stores one notification item and de-duplicates by recipient+dedupe key.
func (s *Service) CreateIntent(ctx context.Context, input CreateIntentInput) (Notification, error) {
	recipientUserID := strings.TrimSpace(input.RecipientUserID)
	if recipientUserID == "" {
		return Notification{}, ErrRecipientRequired
	}
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return Notification{}, ErrTopicRequired
	}
	dedupeKey := strings.TrimSpace(input.DedupeKey)
	if dedupeKey != "" {
		existing, err := s.store.GetNotificationByRecipientAndDedupeKey(ctx, recipientUserID, dedupeKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Notification{}, err
		}
	}

	notificationID, err := s.deps.NewID()
	if err != nil {
		return Notification{}, err
	}
	now := s.deps.Now()
	notification := Notification{
		ID:              notificationID,
		RecipientUserID: recipientUserID,
		Topic:           topic,
		PayloadJSON:     strings.TrimSpace(input.PayloadJSON),
		DedupeKey:       dedupeKey,
		Source:          strings.TrimSpace(input.Source),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.PutNotification(ctx, notification); err != nil {
		if dedupeKey != "" && errors.Is(err, ErrConflict) {
			existing, lookupErr := s.store.GetNotificationByRecipientAndDedupeKey(ctx, recipientUserID, dedupeKey)
			if lookupErr == nil {
				return existing, nil
			}
			if errors.Is(lookupErr, ErrNotFound) {
				return Notification{}, err
			}
			return Notification{}, lookupErr
		}
		return Notification{}, err
	}

	if s.pusher != nil {
		s.pusher.PushNotification(ctx, notification)
	}
	s.deps.Logger.Debug("notification created",
		zap.String("notification_id", notification.ID),
		zap.String("topic", notification.Topic),
	)
	return notification, nil
}

// ListInbox lists recipient inbox notifications newest first, with the
// recipient's unread total.
func (s *Service) ListInbox(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (NotificationPage, error) {
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return NotificationPage{}, ErrRecipientRequired
	}
	cursor, err := pagination.DecodeCursor(pageToken)
	if err != nil {
		return NotificationPage{}, ErrPageTokenInvalid
	}
	page, err := s.store.ListNotificationsByRecipient(ctx, recipientUserID, pagination.ClampPageSize(pageSize, inboxPageSize), cursor)
	if err != nil {
		return NotificationPage{}, err
	}
	unread, err := s.store.CountUnreadNotifications(ctx, recipientUserID)
	if err != nil {
		return NotificationPage{}, err
	}
	page.UnreadCount = unread
	return page, nil
}

// UnreadCount returns how many inbox items the recipient has not read.
func (s *Service) UnreadCount(ctx context.Context, recipientUserID string) (int, error) {
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return 0, ErrRecipientRequired
	}
	return s.store.CountUnreadNotifications(ctx, recipientUserID)
}

// MarkRead marks one recipient notification as read. Marking an already read
// notification keeps its original read time.
func (s *Service) MarkRead(ctx context.Context, recipientUserID, notificationID string) (Notification, error) {
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return Notification{}, ErrRecipientRequired
	}
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return Notification{}, ErrIDRequired
	}
	return s.store.MarkNotificationRead(ctx, recipientUserID, notificationID, s.deps.Now())
}
