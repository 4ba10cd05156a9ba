package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/services/hub/api/wire"
	"go.uber.org/zap"
)

// Frame types.
const (
	frameJoin            = "conversation.join"
	frameJoined          = "conversation.joined"
	frameLeave           = "conversation.leave"
	frameMessageSend     = "message.send"
	frameMessageNew      = "message.new"
	frameMessageRead     = "message.read"
	frameTyping          = "typing"
	framePing            = "ping"
	framePong            = "pong"
	frameAck             = "ack"
	frameError           = "error"
	frameNotificationNew = "notification.new"
)

// Error codes carried by error frames.
const (
	codeInvalidArgument   = "INVALID_ARGUMENT"
	codeForbidden         = "FORBIDDEN"
	codeNotFound          = "NOT_FOUND"
	codeResourceExhausted = "RESOURCE_EXHAUSTED"
	codeUnavailable       = "UNAVAILABLE"
)

type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type joinPayload struct {
	ConversationID string `json:"conversation_id"`
	LastSequence   int64  `json:"last_sequence"`
}

type joinedPayload struct {
	ConversationID string `json:"conversation_id"`
	LatestSequence int64  `json:"latest_sequence"`
	ServerTime     string `json:"server_time"`
}

type conversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type sendPayload struct {
	ConversationID  string `json:"conversation_id"`
	ClientMessageID string `json:"client_message_id"`
	Body            string `json:"body"`
}

type readPayload struct {
	ConversationID string `json:"conversation_id"`
	Sequence       int64  `json:"sequence"`
}

type ackPayload struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Sequence  int64  `json:"sequence,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type messagePayload struct {
	Message wire.Message `json:"message"`
}

type typingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type pongPayload struct {
	ServerTime string `json:"server_time"`
}

type notificationPayload struct {
	Notification wire.Notification `json:"notification"`
}

func (h *Hub) dispatch(ctx context.Context, p *peer, in frame) {
	switch in.Type {
	case frameJoin:
		h.handleJoin(ctx, p, in)
	case frameLeave:
		h.handleLeave(p, in)
	case frameMessageSend:
		h.handleSend(ctx, p, in)
	case frameMessageRead:
		h.handleRead(ctx, p, in)
	case frameTyping:
		h.handleTyping(p, in)
	case framePing:
		h.send(p, frame{
			Type:      framePong,
			RequestID: in.RequestID,
			Payload:   mustJSON(pongPayload{ServerTime: serverTime()}),
		})
	default:
		h.send(p, errorFrame(in.RequestID, codeInvalidArgument, "unsupported frame type", false))
	}
}

// handleJoin subscribes p to a conversation and replays everything after
// the client's last known sequence. The subscription starts before the
// replay, so a message may arrive twice; clients dedupe by sequence.
func (h *Hub) handleJoin(ctx context.Context, p *peer, in frame) {
	var payload joinPayload
	if !h.decode(p, in, &payload) {
		return
	}
	conversationID := strings.TrimSpace(payload.ConversationID)
	if conversationID == "" {
		h.send(p, errorFrame(in.RequestID, codeInvalidArgument, "conversation_id is required", false))
		return
	}
	if payload.LastSequence < 0 {
		h.send(p, errorFrame(in.RequestID, codeInvalidArgument, "last_sequence must not be negative", false))
		return
	}

	c, err := h.conversations.Get(ctx, conversationID, p.userID)
	if err != nil {
		h.sendError(p, in.RequestID, err)
		return
	}
	h.join(c.ID, p)
	h.send(p, frame{
		Type:      frameJoined,
		RequestID: in.RequestID,
		Payload: mustJSON(joinedPayload{
			ConversationID: c.ID,
			LatestSequence: c.LastSequence,
			ServerTime:     serverTime(),
		}),
	})

	after := payload.LastSequence
	for after < c.LastSequence {
		missed, err := h.conversations.MessagesAfter(ctx, c.ID, p.userID, after, h.cfg.ReplayBatch)
		if err != nil {
			h.sendError(p, in.RequestID, err)
			return
		}
		for _, message := range missed {
			h.send(p, frame{
				Type:    frameMessageNew,
				Payload: mustJSON(messagePayload{Message: wire.NewMessage(message)}),
			})
		}
		if len(missed) < h.cfg.ReplayBatch {
			return
		}
		after = missed[len(missed)-1].Sequence
	}
}

func (h *Hub) handleLeave(p *peer, in frame) {
	var payload conversationPayload
	if !h.decode(p, in, &payload) {
		return
	}
	h.leave(strings.TrimSpace(payload.ConversationID), p)
	h.send(p, frame{Type: frameAck, RequestID: in.RequestID, Payload: mustJSON(ackPayload{Status: "ok"})})
}

// handleSend stores the message and acks the sender. Room subscribers,
// including the sender's own connections, receive message.new through
// MessageSent.
func (h *Hub) handleSend(ctx context.Context, p *peer, in frame) {
	var payload sendPayload
	if !h.decode(p, in, &payload) {
		return
	}
	result, err := h.conversations.Send(ctx, strings.TrimSpace(payload.ConversationID), p.userID, payload.Body, payload.ClientMessageID)
	if err != nil {
		h.sendError(p, in.RequestID, err)
		return
	}
	h.send(p, frame{
		Type:      frameAck,
		RequestID: in.RequestID,
		Payload: mustJSON(ackPayload{
			Status:    "ok",
			MessageID: result.Message.ID,
			Sequence:  result.Message.Sequence,
			Duplicate: result.Duplicate,
		}),
	})
}

func (h *Hub) handleRead(ctx context.Context, p *peer, in frame) {
	var payload readPayload
	if !h.decode(p, in, &payload) {
		return
	}
	state, err := h.conversations.MarkRead(ctx, strings.TrimSpace(payload.ConversationID), p.userID, payload.Sequence)
	if err != nil {
		h.sendError(p, in.RequestID, err)
		return
	}
	h.send(p, frame{
		Type:      frameAck,
		RequestID: in.RequestID,
		Payload:   mustJSON(ackPayload{Status: "ok", Sequence: state.LastReadSequence}),
	})
}

func (h *Hub) handleTyping(p *peer, in frame) {
	var payload conversationPayload
	if !h.decode(p, in, &payload) {
		return
	}
	conversationID := strings.TrimSpace(payload.ConversationID)
	if !p.inRoom(conversationID) {
		h.send(p, errorFrame(in.RequestID, codeForbidden, "join the conversation first", false))
		return
	}
	out := frame{
		Type:    frameTyping,
		Payload: mustJSON(typingPayload{ConversationID: conversationID, UserID: p.userID}),
	}
	for _, other := range h.roomPeers(conversationID) {
		if other.userID != p.userID {
			h.send(other, out)
		}
	}
}

func (h *Hub) decode(p *peer, in frame, target any) bool {
	if len(in.Payload) == 0 {
		h.send(p, errorFrame(in.RequestID, codeInvalidArgument, "payload is required", false))
		return false
	}
	if err := json.Unmarshal(in.Payload, target); err != nil {
		h.send(p, errorFrame(in.RequestID, codeInvalidArgument, "invalid "+in.Type+" payload", false))
		return false
	}
	return true
}

// sendError maps a domain error onto the frame error codes.
func (h *Hub) sendError(p *peer, requestID string, err error) {
	var (
		code      string
		retryable bool
	)
	switch status := apperrors.HTTPStatus(err); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = codeForbidden
	case status == http.StatusNotFound:
		code = codeNotFound
	case status == http.StatusTooManyRequests:
		code, retryable = codeResourceExhausted, true
	case status < http.StatusInternalServerError:
		code = codeInvalidArgument
	default:
		code, retryable = codeUnavailable, true
		h.logger.Error("realtime request failed", zap.String("user_id", p.userID), zap.Error(err))
	}
	h.send(p, errorFrame(requestID, code, apperrors.LocalizedMessage(err, p.locale), retryable))
}

func errorFrame(requestID, code, message string, retryable bool) frame {
	return frame{
		Type:      frameError,
		RequestID: requestID,
		Payload:   mustJSON(errorPayload{Code: code, Message: message, Retryable: retryable}),
	}
}

func serverTime() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
