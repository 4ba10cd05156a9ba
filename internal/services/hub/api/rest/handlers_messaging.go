package rest

import (
	"net/http"

	"github.com/automatehub/automatehub/internal/platform/errors/i18n"
	"github.com/automatehub/automatehub/internal/platform/httpx"
	"github.com/automatehub/automatehub/internal/services/hub/api/wire"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification/render"
)

type startConversationRequest struct {
	ParticipantID string `json:"participant_id"`
	ProjectID     string `json:"project_id"`
}

type sendMessageRequest struct {
	Body            string `json:"body"`
	ClientMessageID string `json:"client_message_id"`
}

type sendMessageResponse struct {
	Message   wire.Message `json:"message"`
	Duplicate bool         `json:"duplicate"`
}

type markReadRequest struct {
	Sequence int64 `json:"sequence"`
}

type inboxResponse struct {
	page[wire.Notification]
	UnreadCount int `json:"unread_count"`
}

func (h *handlers) listConversations(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Conversations.ListForUser(r.Context(), actor(r).UserID, pageSize, pageToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPage(result.Conversations, result.NextPageToken, newSummaryView))
}

func (h *handlers) startConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, created, err := h.svc.Conversations.StartOrGet(r.Context(), actor(r), req.ParticipantID, req.ProjectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, newConversationView(c))
}

func (h *handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	before, err := queryInt64(r, "before")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	messages, err := h.svc.Conversations.Messages(r.Context(), pathID(r, "id"), actor(r).UserID, before, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, itemsResponse[wire.Message]{Items: wire.NewMessages(messages)})
}

// sendMessage stores a message. Realtime subscribers of the conversation
// receive it through the service listeners.
func (h *handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Conversations.Send(r.Context(), pathID(r, "id"), actor(r).UserID, req.Body, req.ClientMessageID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, sendMessageResponse{Message: wire.NewMessage(result.Message), Duplicate: result.Duplicate})
}

func (h *handlers) markConversationRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.svc.Conversations.MarkRead(r.Context(), pathID(r, "id"), actor(r).UserID, req.Sequence)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wire.NewReadReceipt(state))
}

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Notifications.ListInbox(r.Context(), actor(r).UserID, pageSize, pageToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	printer := render.Printer(i18n.Negotiate(r.Header.Get("Accept-Language")))
	httpx.WriteJSON(w, http.StatusOK, inboxResponse{
		page: newPage(result.Notifications, result.NextPageToken, func(n notification.Notification) wire.Notification {
			return wire.NewNotification(n, printer)
		}),
		UnreadCount: result.UnreadCount,
	})
}

func (h *handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.svc.Notifications.MarkRead(r.Context(), actor(r).UserID, pathID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	printer := render.Printer(i18n.Negotiate(r.Header.Get("Accept-Language")))
	httpx.WriteJSON(w, http.StatusOK, wire.NewNotification(updated, printer))
}
