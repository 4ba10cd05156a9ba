package rest

import (
	"net/http"

	"github.com/automatehub/automatehub/internal/platform/httpx"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
)

type statusRequest struct {
	Status string `json:"status"`
}

type verifyRequest struct {
	Verified bool `json:"verified"`
}

func (h *handlers) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard.Stats(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *handlers) adminListUsers(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Accounts.List(r.Context(), actor(r), account.ListInput{
		Role:      queryString(r, "role"),
		Status:    queryString(r, "status"),
		PageSize:  pageSize,
		PageToken: pageToken,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPage(result.Users, result.NextPageToken, newUserView))
}

func (h *handlers) adminSetUserStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.Accounts.SetStatus(r.Context(), actor(r), pathID(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newUserView(updated))
}

func (h *handlers) adminVerifyExpert(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	profile, err := h.svc.Experts.SetVerified(r.Context(), actor(r), pathID(r, "id"), req.Verified)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProfileView(profile))
}

// adminResolveProject settles a disputed project as completed or cancelled.
func (h *handlers) adminResolveProject(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	resolved, err := h.svc.Projects.Resolve(r.Context(), actor(r), pathID(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProjectView(resolved))
}

func (h *handlers) adminRefundPayment(w http.ResponseWriter, r *http.Request) {
	refunded, err := h.svc.Payments.Refund(r.Context(), actor(r), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPaymentView(refunded))
}
