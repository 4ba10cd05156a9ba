// Package wire holds the JSON views the REST and realtime APIs share.
package wire

import (
	"encoding/json"
	"time"

	"github.com/automatehub/automatehub/internal/services/hub/domain/conversation"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification/render"
)

// Message is the JSON view of a conversation message.
type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	SenderID        string    `json:"sender_id"`
	Body            string    `json:"body"`
	ClientMessageID string    `json:"client_message_id"`
	Sequence        int64     `json:"sequence"`
	SentAt          time.Time `json:"sent_at"`
}

// NewMessage converts a stored message.
func NewMessage(m conversation.Message) Message {
	return Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Body:            m.Body,
		ClientMessageID: m.ClientMessageID,
		Sequence:        m.Sequence,
		SentAt:          m.SentAt,
	}
}

// NewMessages converts a slice of stored messages.
func NewMessages(messages []conversation.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, NewMessage(m))
	}
	return out
}

// ReadReceipt announces how far a participant has read.
type ReadReceipt struct {
	ConversationID   string    `json:"conversation_id"`
	UserID           string    `json:"user_id"`
	LastReadSequence int64     `json:"last_read_sequence"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewReadReceipt converts a stored read state.
func NewReadReceipt(state conversation.ReadState) ReadReceipt {
	return ReadReceipt{
		ConversationID:   state.ConversationID,
		UserID:           state.UserID,
		LastReadSequence: state.LastReadSequence,
		UpdatedAt:        state.UpdatedAt,
	}
}

// Notification is an inbox item with localized copy.
type Notification struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
}

// NewNotification renders n with loc.
func NewNotification(n notification.Notification, loc render.Localizer) Notification {
	text := render.Render(loc, n.Topic, n.PayloadJSON)
	payload := json.RawMessage(n.PayloadJSON)
	if !json.Valid(payload) {
		payload = json.RawMessage("{}")
	}
	return Notification{
		ID:        n.ID,
		Topic:     n.Topic,
		Title:     text.Title,
		Body:      text.BodyText,
		Payload:   payload,
		CreatedAt: n.CreatedAt,
		ReadAt:    n.ReadAt,
	}
}
