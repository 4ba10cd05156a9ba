// Package conversation implements direct messaging between marketplace users.
package conversation

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
	"go.uber.org/zap"
)

const (
	maxBodyRunes            = 2000
	maxClientMessageIDRunes = 128
	previewRunes            = 140

	// DefaultMessageLimit and MaxMessageLimit bound history reads.
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

var (
	ErrNotFound               = apperrors.New(apperrors.CodeConversationNotFound, "conversation not found")
	ErrParticipantsInvalid    = apperrors.New(apperrors.CodeConversationParticipants, "a conversation needs two distinct existing users")
	ErrForbidden              = apperrors.New(apperrors.CodeConversationForbidden, "not a participant of this conversation")
	ErrBodyInvalid            = apperrors.WithMetadata(apperrors.CodeMessageBodyInvalid, "message body must not be empty or too long", map[string]string{"Max": strconv.Itoa(maxBodyRunes)})
	ErrClientMessageIDInvalid = apperrors.WithMetadata(apperrors.CodeMessageClientIDInvalid, "client message id is required", map[string]string{"Max": strconv.Itoa(maxClientMessageIDRunes)})
	ErrSequenceInvalid        = apperrors.New(apperrors.CodeInvalidArgument, "sequence must not be negative")
	ErrPageTokenInvalid       = apperrors.New(apperrors.CodeInvalidArgument, "page token is invalid")
	// ErrConflict is reported by stores when a conversation for the same
	// participants and project already exists.
	ErrConflict = apperrors.New(apperrors.CodeConflict, "conversation already exists")
)

// Conversation is a two-party thread, optionally about a project.
type Conversation struct {
	ID string
	// ProjectID is empty for conversations not tied to a project.
	ProjectID string
	// ParticipantIDs is kept sorted.
	ParticipantIDs     [2]string
	LastSequence       int64
	LastMessageAt      *time.Time
	LastMessagePreview string
	CreatedAt          time.Time
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantIDs[0] == userID || c.ParticipantIDs[1] == userID)
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) string {
	if c.ParticipantIDs[0] == userID {
		return c.ParticipantIDs[1]
	}
	return c.ParticipantIDs[0]
}

// Message is one entry in a conversation. Sequence increases by one per
// accepted message.
type Message struct {
	ID              string
	ConversationID  string
	SenderID        string
	Body            string
	ClientMessageID string
	Sequence        int64
	SentAt          time.Time
}

// ReadState is how far one participant has read.
type ReadState struct {
	ConversationID   string
	UserID           string
	LastReadSequence int64
	UpdatedAt        time.Time
}

// Summary is a conversation as seen by one participant.
type Summary struct {
	Conversation
	LastReadSequence int64
	UnreadCount      int
}

// SummaryPage is one page of a user's conversations.
type SummaryPage struct {
	Conversations []Summary
	NextPageToken string
}

// SendResult is the outcome of Send. Duplicate is set when the client message
// id was already accepted and Message is the original.
type SendResult struct {
	Message   Message
	Duplicate bool
}

// Store persists conversations.
//
// AppendMessage must, in one transaction, return the existing message with
// duplicate=true when (conversation, sender, client message id) was already
// stored, or assign the next sequence, insert the message, update the
// conversation's last message fields and advance the sender's read state.
//
// MarkRead never lowers a stored read sequence and caps it at the
// conversation's last sequence.
type Store interface {
	GetUser(ctx context.Context, userID string) (account.User, error)
	GetProject(ctx context.Context, projectID string) (project.Project, error)
	FindConversation(ctx context.Context, participants [2]string, projectID string) (Conversation, error)
	CreateConversation(ctx context.Context, conversation Conversation) error
	GetConversation(ctx context.Context, conversationID string) (Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string, pageSize int, cursor pagination.Cursor) (SummaryPage, error)
	ListMessagesBefore(ctx context.Context, conversationID string, beforeSequence int64, limit int) ([]Message, error)
	ListMessagesAfter(ctx context.Context, conversationID string, afterSequence int64, limit int) ([]Message, error)
	AppendMessage(ctx context.Context, message Message) (Message, bool, error)
	MarkRead(ctx context.Context, conversationID, userID string, sequence int64, at time.Time) (ReadState, error)
}

// Listener observes accepted messages and read receipts.
type Listener interface {
	MessageSent(ctx context.Context, conversation Conversation, message Message)
	MessageRead(ctx context.Context, conversation Conversation, state ReadState)
}

// Service implements messaging use-cases.
type Service struct {
	store Store
	deps  domain.Deps

	mu        sync.RWMutex
	listeners []Listener
}

// NewService constructs messaging use-cases.
func NewService(store Store, deps domain.Deps) *Service {
	return &Service{store: store, deps: deps.WithDefaults()}
}

// AddListener registers l for message and read notifications.
func (s *Service) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) snapshotListeners() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.listeners)
}

// StartOrGet returns the conversation between the caller and participantID
// for projectID, creating it on first use. created reports a new conversation.
func (s *Service) StartOrGet(ctx context.Context, actor domain.Actor, participantID, projectID string) (Conversation, bool, error) {
	participantID = strings.TrimSpace(participantID)
	projectID = strings.TrimSpace(projectID)
	if actor.UserID == "" || participantID == "" || participantID == actor.UserID {
		return Conversation{}, false, ErrParticipantsInvalid
	}
	for _, userID := range []string{actor.UserID, participantID} {
		if _, err := s.store.GetUser(ctx, userID); err != nil {
			if errors.Is(err, account.ErrUserNotFound) {
				return Conversation{}, false, ErrParticipantsInvalid
			}
			return Conversation{}, false, err
		}
	}
	if projectID != "" {
		if _, err := s.store.GetProject(ctx, projectID); err != nil {
			return Conversation{}, false, err
		}
	}

	participants := sortedPair(actor.UserID, participantID)
	existing, err := s.store.FindConversation(ctx, participants, projectID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, false, err
	}

	conversationID, err := s.deps.NewID()
	if err != nil {
		return Conversation{}, false, err
	}
	conversation := Conversation{
		ID:             conversationID,
		ProjectID:      projectID,
		ParticipantIDs: participants,
		CreatedAt:      s.deps.Now(),
	}
	if err := s.store.CreateConversation(ctx, conversation); err != nil {
		if errors.Is(err, ErrConflict) {
			existing, findErr := s.store.FindConversation(ctx, participants, projectID)
			return existing, false, findErr
		}
		return Conversation{}, false, err
	}
	return conversation, true, nil
}

// Get returns a conversation the caller participates in.
func (s *Service) Get(ctx context.Context, conversationID, userID string) (Conversation, error) {
	conversation, err := s.store.GetConversation(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		return Conversation{}, err
	}
	if !conversation.HasParticipant(userID) {
		return Conversation{}, ErrForbidden
	}
	return conversation, nil
}

// ListForUser pages through the user's conversations, most recent activity
// first, with unread counts.
func (s *Service) ListForUser(ctx context.Context, userID string, pageSize int, pageToken string) (SummaryPage, error) {
	cursor, err := pagination.DecodeCursor(pageToken)
	if err != nil {
		return SummaryPage{}, ErrPageTokenInvalid
	}
	size := pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{Default: 20, Max: 100})
	return s.store.ListConversationsForUser(ctx, userID, size, cursor)
}

// Messages returns up to limit messages older than beforeSequence (or the
// latest when zero), in ascending sequence order.
func (s *Service) Messages(ctx context.Context, conversationID, userID string, beforeSequence int64, limit int) ([]Message, error) {
	if beforeSequence < 0 {
		return nil, ErrSequenceInvalid
	}
	conversation, err := s.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListMessagesBefore(ctx, conversation.ID, beforeSequence, clampLimit(limit))
}

// MessagesAfter returns up to limit messages newer than afterSequence in
// ascending order. Reconnecting clients use it to catch up.
func (s *Service) MessagesAfter(ctx context.Context, conversationID, userID string, afterSequence int64, limit int) ([]Message, error) {
	if afterSequence < 0 {
		return nil, ErrSequenceInvalid
	}
	conversation, err := s.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListMessagesAfter(ctx, conversation.ID, afterSequence, clampLimit(limit))
}

// Send appends a message. Retrying with the same client message id returns
// the original message without allocating a new sequence.
func (s *Service) Send(ctx context.Context, conversationID, senderID, body, clientMessageID string) (SendResult, error) {
	body = strings.TrimSpace(body)
	if count := utf8.RuneCountInString(body); count == 0 || count > maxBodyRunes {
		return SendResult{}, ErrBodyInvalid
	}
	clientMessageID = strings.TrimSpace(clientMessageID)
	if count := utf8.RuneCountInString(clientMessageID); count == 0 || count > maxClientMessageIDRunes {
		return SendResult{}, ErrClientMessageIDInvalid
	}
	conversation, err := s.Get(ctx, conversationID, senderID)
	if err != nil {
		return SendResult{}, err
	}

	messageID, err := s.deps.NewID()
	if err != nil {
		return SendResult{}, err
	}
	now := s.deps.Now()
	stored, duplicate, err := s.store.AppendMessage(ctx, Message{
		ID:              messageID,
		ConversationID:  conversation.ID,
		SenderID:        senderID,
		Body:            body,
		ClientMessageID: clientMessageID,
		SentAt:          now,
	})
	if err != nil {
		return SendResult{}, err
	}
	if duplicate {
		return SendResult{Message: stored, Duplicate: true}, nil
	}

	conversation.LastSequence = stored.Sequence
	conversation.LastMessageAt = &stored.SentAt
	conversation.LastMessagePreview = Preview(stored.Body)
	for _, l := range s.snapshotListeners() {
		l.MessageSent(ctx, conversation, stored)
	}
	s.deps.Publish(ctx, events.Event{
		Type: events.TypeMessageSent,
		Key:  conversation.ID,
		Payload: map[string]string{
			"conversation_id": conversation.ID,
			"message_id":      stored.ID,
			"sender_id":       senderID,
			"recipient_id":    conversation.Other(senderID),
			"sequence":        strconv.FormatInt(stored.Sequence, 10),
			"preview":         conversation.LastMessagePreview,
		},
		OccurredAt: now,
	})
	s.deps.Logger.Debug("message sent",
		zap.String("conversation_id", conversation.ID),
		zap.Int64("sequence", stored.Sequence),
	)
	return SendResult{Message: stored}, nil
}

// MarkRead records that userID has read through sequence. The stored read
// position never moves backwards.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID string, sequence int64) (ReadState, error) {
	if sequence < 0 {
		return ReadState{}, ErrSequenceInvalid
	}
	conversation, err := s.Get(ctx, conversationID, userID)
	if err != nil {
		return ReadState{}, err
	}
	state, err := s.store.MarkRead(ctx, conversation.ID, userID, sequence, s.deps.Now())
	if err != nil {
		return ReadState{}, err
	}
	for _, l := range s.snapshotListeners() {
		l.MessageRead(ctx, conversation, state)
	}
	return state, nil
}

// Preview shortens body for conversation lists.
func Preview(body string) string {
	if utf8.RuneCountInString(body) <= previewRunes {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewRunes-1]) + "…"
}

func clampLimit(limit int) int {
	return pagination.ClampPageSize(limit, pagination.PageSizeConfig{Default: DefaultMessageLimit, Max: MaxMessageLimit})
}

func sortedPair(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
