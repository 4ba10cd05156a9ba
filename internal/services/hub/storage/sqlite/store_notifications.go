package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification"
)

const notificationColumns = `id, recipient_user_id, topic, payload_json, dedupe_key, source, created_at, updated_at, read_at`

// PutNotification persists one notification inbox row.
func (s *Store) PutNotification(ctx context.Context, record notification.Notification) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	normalized, err := normalizeNotification(record)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO notifications (`+notificationColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.RecipientUserID,
		normalized.Topic,
		normalized.PayloadJSON,
		normalized.DedupeKey,
		normalized.Source,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
		nullMillis(normalized.ReadAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return notification.ErrConflict
		}
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// GetNotificationByRecipientAndDedupeKey returns one notification by dedupe key.
func (s *Store) GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (notification.Notification, error) {
	if err := s.ready(ctx); err != nil {
		return notification.Notification{}, err
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	dedupeKey = strings.TrimSpace(dedupeKey)
	if recipientUserID == "" || dedupeKey == "" {
		return notification.Notification{}, notification.ErrNotFound
	}
	return s.getNotificationWhere(ctx, "recipient_user_id = ? AND dedupe_key = ?", recipientUserID, dedupeKey)
}

// ListNotificationsByRecipient pages through a recipient inbox, newest first.
func (s *Store) ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, cursor pagination.Cursor) (notification.NotificationPage, error) {
	if err := s.ready(ctx); err != nil {
		return notification.NotificationPage{}, err
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return notification.NotificationPage{}, fmt.Errorf("recipient user id is required")
	}
	if pageSize <= 0 {
		return notification.NotificationPage{}, fmt.Errorf("page size must be greater than zero")
	}

	statement := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_user_id = ?`
	args := []any{recipientUserID}
	if cursor.ID != "" {
		key, ok := millisCursor(cursor)
		if !ok {
			return notification.NotificationPage{}, notification.ErrPageTokenInvalid
		}
		statement += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, key, key, cursor.ID)
	}
	statement += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return notification.NotificationPage{}, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return collectNotificationPage(rows, pageSize)
}

// CountUnreadNotifications returns unread inbox count for one recipient.
func (s *Store) CountUnreadNotifications(ctx context.Context, recipientUserID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM notifications WHERE recipient_user_id = ? AND read_at IS NULL
`, strings.TrimSpace(recipientUserID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead marks one recipient-owned notification as read. The
// first read time is kept.
func (s *Store) MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (notification.Notification, error) {
	if err := s.ready(ctx); err != nil {
		return notification.Notification{}, err
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	notificationID = strings.TrimSpace(notificationID)
	if recipientUserID == "" || notificationID == "" {
		return notification.Notification{}, notification.ErrNotFound
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
UPDATE notifications
SET read_at = COALESCE(read_at, ?), updated_at = CASE WHEN read_at IS NULL THEN ? ELSE updated_at END
WHERE recipient_user_id = ? AND id = ?
`, toMillis(readAt), toMillis(readAt), recipientUserID, notificationID); err != nil {
		return notification.Notification{}, fmt.Errorf("mark notification read: %w", err)
	}
	return s.getNotificationWhere(ctx, "recipient_user_id = ? AND id = ?", recipientUserID, notificationID)
}

func (s *Store) getNotificationWhere(ctx context.Context, where string, args ...any) (notification.Notification, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE `+where, args...)
	record, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return record, nil
}

func normalizeNotification(record notification.Notification) (notification.Notification, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.RecipientUserID = strings.TrimSpace(record.RecipientUserID)
	record.Topic = strings.TrimSpace(record.Topic)
	record.DedupeKey = strings.TrimSpace(record.DedupeKey)
	record.Source = strings.TrimSpace(record.Source)
	record.PayloadJSON = strings.TrimSpace(record.PayloadJSON)
	if record.PayloadJSON == "" {
		record.PayloadJSON = "{}"
	}
	if record.ID == "" {
		return notification.Notification{}, fmt.Errorf("notification id is required")
	}
	if record.RecipientUserID == "" {
		return notification.Notification{}, fmt.Errorf("recipient user id is required")
	}
	if record.Topic == "" {
		return notification.Notification{}, fmt.Errorf("topic is required")
	}
	if record.CreatedAt.IsZero() {
		return notification.Notification{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		return notification.Notification{}, fmt.Errorf("updated_at is required")
	}
	return record, nil
}

func scanNotification(scan scanner) (notification.Notification, error) {
	var (
		record    notification.Notification
		createdAt int64
		updatedAt int64
		readAt    sql.NullInt64
	)
	if err := scan(
		&record.ID,
		&record.RecipientUserID,
		&record.Topic,
		&record.PayloadJSON,
		&record.DedupeKey,
		&record.Source,
		&createdAt,
		&updatedAt,
		&readAt,
	); err != nil {
		return notification.Notification{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.ReadAt = timePtr(readAt)
	return record, nil
}

func collectNotificationPage(rows *sql.Rows, pageSize int) (notification.NotificationPage, error) {
	page := notification.NotificationPage{
		Notifications: make([]notification.Notification, 0, pageSize),
	}
	for rows.Next() {
		record, err := scanNotification(rows.Scan)
		if err != nil {
			return notification.NotificationPage{}, fmt.Errorf("scan notification row: %w", err)
		}
		page.Notifications = append(page.Notifications, record)
	}
	if err := rows.Err(); err != nil {
		return notification.NotificationPage{}, fmt.Errorf("iterate notification rows: %w", err)
	}
	if len(page.Notifications) > pageSize {
		last := page.Notifications[pageSize-1]
		page.NextPageToken = millisToken(last.CreatedAt, last.ID)
		page.Notifications = page.Notifications[:pageSize]
	}
	return page, nil
}
