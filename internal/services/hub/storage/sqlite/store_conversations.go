package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain/conversation"
)

const conversationColumns = `c.id, c.participant_a, c.participant_b, c.project_id, c.last_sequence, c.last_message_at, c.last_message_preview, c.created_at`

const messageColumns = `id, conversation_id, sender_id, body, client_message_id, sequence, sent_at`

// FindConversation looks up the conversation for a sorted participant pair
// and project.
func (s *Store) FindConversation(ctx context.Context, participants [2]string, projectID string) (conversation.Conversation, error) {
	if err := s.ready(ctx); err != nil {
		return conversation.Conversation{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+conversationColumns+` FROM conversations c
WHERE c.participant_a = ? AND c.participant_b = ? AND c.project_id = ?
`, participants[0], participants[1], projectID)
	found, err := scanConversation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conversation.Conversation{}, conversation.ErrNotFound
		}
		return conversation.Conversation{}, fmt.Errorf("find conversation: %w", err)
	}
	return found, nil
}

// CreateConversation inserts a conversation and zeroed read state for both
// participants.
func (s *Store) CreateConversation(ctx context.Context, c conversation.Conversation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "create conversation", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO conversations (id, participant_a, participant_b, project_id, last_sequence, last_message_at, last_message_preview, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
			c.ID,
			c.ParticipantIDs[0],
			c.ParticipantIDs[1],
			c.ProjectID,
			c.LastSequence,
			nullMillis(c.LastMessageAt),
			c.LastMessagePreview,
			toMillis(c.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return conversation.ErrConflict
			}
			if isForeignKeyConstraintError(err) {
				return conversation.ErrParticipantsInvalid
			}
			return fmt.Errorf("insert conversation: %w", err)
		}
		for _, userID := range c.ParticipantIDs {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO conversation_reads (conversation_id, user_id, last_read_sequence, updated_at) VALUES (?, ?, 0, ?)
`, c.ID, userID, toMillis(c.CreatedAt)); err != nil {
				return fmt.Errorf("insert read state: %w", err)
			}
		}
		return nil
	})
}

// GetConversation loads one conversation.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (conversation.Conversation, error) {
	if err := s.ready(ctx); err != nil {
		return conversation.Conversation{}, err
	}
	return getConversation(ctx, s.sqlDB, conversationID)
}

func getConversation(ctx context.Context, q sqlQueryer, conversationID string) (conversation.Conversation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id = ?`, conversationID)
	found, err := scanConversation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conversation.Conversation{}, conversation.ErrNotFound
		}
		return conversation.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return found, nil
}

// ListConversationsForUser pages through the user's conversations by latest
// activity, with per-conversation unread counts.
func (s *Store) ListConversationsForUser(ctx context.Context, userID string, pageSize int, cursor pagination.Cursor) (conversation.SummaryPage, error) {
	if err := s.ready(ctx); err != nil {
		return conversation.SummaryPage{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return conversation.SummaryPage{}, fmt.Errorf("user id is required")
	}
	if pageSize <= 0 {
		return conversation.SummaryPage{}, fmt.Errorf("page size must be greater than zero")
	}

	statement := `
SELECT ` + conversationColumns + `,
       COALESCE(r.last_read_sequence, 0),
       (SELECT COUNT(*) FROM messages m
        WHERE m.conversation_id = c.id AND m.sender_id <> ? AND m.sequence > COALESCE(r.last_read_sequence, 0))
FROM conversations c
LEFT JOIN conversation_reads r ON r.conversation_id = c.id AND r.user_id = ?
WHERE (c.participant_a = ? OR c.participant_b = ?)`
	args := []any{userID, userID, userID, userID}
	if cursor.ID != "" {
		key, ok := millisCursor(cursor)
		if !ok {
			return conversation.SummaryPage{}, conversation.ErrPageTokenInvalid
		}
		statement += `
  AND (COALESCE(c.last_message_at, c.created_at) < ?
       OR (COALESCE(c.last_message_at, c.created_at) = ? AND c.id < ?))`
		args = append(args, key, key, cursor.ID)
	}
	statement += `
ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id DESC
LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return conversation.SummaryPage{}, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	page := conversation.SummaryPage{Conversations: make([]conversation.Summary, 0, pageSize)}
	for rows.Next() {
		var (
			summary conversation.Summary
			unread  int
			read    int64
		)
		c, err := scanConversation(func(dest ...any) error {
			return rows.Scan(append(dest, &read, &unread)...)
		})
		if err != nil {
			return conversation.SummaryPage{}, fmt.Errorf("scan conversation row: %w", err)
		}
		summary.Conversation = c
		summary.LastReadSequence = read
		summary.UnreadCount = unread
		page.Conversations = append(page.Conversations, summary)
	}
	if err := rows.Err(); err != nil {
		return conversation.SummaryPage{}, fmt.Errorf("iterate conversation rows: %w", err)
	}
	if len(page.Conversations) > pageSize {
		last := page.Conversations[pageSize-1]
		activity := last.CreatedAt
		if last.LastMessageAt != nil {
			activity = *last.LastMessageAt
		}
		page.NextPageToken = millisToken(activity, last.ID)
		page.Conversations = page.Conversations[:pageSize]
	}
	return page, nil
}

// ListMessagesBefore returns up to limit messages with sequence below
// beforeSequence (the latest when zero), in ascending order.
func (s *Store) ListMessagesBefore(ctx context.Context, conversationID string, beforeSequence int64, limit int) ([]conversation.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	statement := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if beforeSequence > 0 {
		statement += ` AND sequence < ?`
		args = append(args, beforeSequence)
	}
	statement += ` ORDER BY sequence DESC LIMIT ?`
	args = append(args, limit)

	messages, err := s.queryMessages(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListMessagesAfter returns up to limit messages with sequence above
// afterSequence, in ascending order.
func (s *Store) ListMessagesAfter(ctx context.Context, conversationID string, afterSequence int64, limit int) ([]conversation.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	return s.queryMessages(ctx, `
SELECT `+messageColumns+` FROM messages
WHERE conversation_id = ? AND sequence > ?
ORDER BY sequence ASC LIMIT ?
`, conversationID, afterSequence, limit)
}

func (s *Store) queryMessages(ctx context.Context, statement string, args ...any) ([]conversation.Message, error) {
	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []conversation.Message{}
	for rows.Next() {
		message, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}

// AppendMessage stores message with the next sequence of its conversation.
// A repeated client message id from the same sender returns the stored
// message and true without allocating a sequence.
func (s *Store) AppendMessage(ctx context.Context, message conversation.Message) (conversation.Message, bool, error) {
	if err := s.ready(ctx); err != nil {
		return conversation.Message{}, false, err
	}
	var (
		stored    conversation.Message
		duplicate bool
	)
	err := s.inTx(ctx, "append message", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
SELECT `+messageColumns+` FROM messages
WHERE conversation_id = ? AND sender_id = ? AND client_message_id = ?
`, message.ConversationID, message.SenderID, message.ClientMessageID)
		existing, err := scanMessage(row.Scan)
		if err == nil {
			stored, duplicate = existing, true
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check duplicate message: %w", err)
		}

		// The sequence bump doubles as the write lock on the conversation row.
		var sequence int64
		if err := tx.QueryRowContext(ctx, `
UPDATE conversations
SET last_sequence = last_sequence + 1, last_message_at = ?, last_message_preview = ?
WHERE id = ?
RETURNING last_sequence
`, toMillis(message.SentAt), conversation.Preview(message.Body), message.ConversationID).Scan(&sequence); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return conversation.ErrNotFound
			}
			return fmt.Errorf("allocate message sequence: %w", err)
		}

		message.Sequence = sequence
		if _, err := tx.ExecContext(ctx, `
INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
			message.ID,
			message.ConversationID,
			message.SenderID,
			message.Body,
			message.ClientMessageID,
			message.Sequence,
			toMillis(message.SentAt),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if err := advanceRead(ctx, tx, message.ConversationID, message.SenderID, sequence, message.SentAt); err != nil {
			return err
		}
		stored = message
		return nil
	})
	if err != nil {
		return conversation.Message{}, false, err
	}
	return stored, duplicate, nil
}

// MarkRead advances the user's read position, capped at the conversation's
// last sequence. It never moves backwards.
func (s *Store) MarkRead(ctx context.Context, conversationID, userID string, sequence int64, at time.Time) (conversation.ReadState, error) {
	if err := s.ready(ctx); err != nil {
		return conversation.ReadState{}, err
	}
	var state conversation.ReadState
	err := s.inTx(ctx, "mark conversation read", func(tx *sql.Tx) error {
		c, err := getConversation(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if !c.HasParticipant(userID) {
			return conversation.ErrForbidden
		}
		if sequence > c.LastSequence {
			sequence = c.LastSequence
		}
		if err := advanceRead(ctx, tx, conversationID, userID, sequence, at); err != nil {
			return err
		}
		var updatedAt int64
		if err := tx.QueryRowContext(ctx, `
SELECT last_read_sequence, updated_at FROM conversation_reads WHERE conversation_id = ? AND user_id = ?
`, conversationID, userID).Scan(&state.LastReadSequence, &updatedAt); err != nil {
			return fmt.Errorf("load read state: %w", err)
		}
		state.ConversationID = conversationID
		state.UserID = userID
		state.UpdatedAt = fromMillis(updatedAt)
		return nil
	})
	if err != nil {
		return conversation.ReadState{}, err
	}
	return state, nil
}

func advanceRead(ctx context.Context, execer sqlExecer, conversationID, userID string, sequence int64, at time.Time) error {
	_, err := execer.ExecContext(ctx, `
INSERT INTO conversation_reads (conversation_id, user_id, last_read_sequence, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(conversation_id, user_id) DO UPDATE SET
	last_read_sequence = excluded.last_read_sequence,
	updated_at = excluded.updated_at
WHERE excluded.last_read_sequence > conversation_reads.last_read_sequence
`, conversationID, userID, sequence, toMillis(at))
	if err != nil {
		return fmt.Errorf("advance read state: %w", err)
	}
	return nil
}

func scanConversation(scan scanner) (conversation.Conversation, error) {
	var (
		c             conversation.Conversation
		lastMessageAt sql.NullInt64
		createdAt     int64
	)
	if err := scan(
		&c.ID,
		&c.ParticipantIDs[0],
		&c.ParticipantIDs[1],
		&c.ProjectID,
		&c.LastSequence,
		&lastMessageAt,
		&c.LastMessagePreview,
		&createdAt,
	); err != nil {
		return conversation.Conversation{}, err
	}
	c.LastMessageAt = timePtr(lastMessageAt)
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

func scanMessage(scan scanner) (conversation.Message, error) {
	var (
		message conversation.Message
		sentAt  int64
	)
	if err := scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Body,
		&message.ClientMessageID,
		&message.Sequence,
		&sentAt,
	); err != nil {
		return conversation.Message{}, err
	}
	message.SentAt = fromMillis(sentAt)
	return message, nil
}
