package rest

import (
	"context"
	"net/http"

	"github.com/automatehub/automatehub/internal/platform/httpx"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
	"github.com/automatehub/automatehub/internal/services/hub/domain/review"
)

type createProjectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Platforms   []string `json:"platforms"`
	BudgetCents int64    `json:"budget_cents"`
	Currency    string   `json:"currency"`
}

type updateProjectRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Platforms   []string `json:"platforms"`
	BudgetCents *int64   `json:"budget_cents"`
}

type proposalRequest struct {
	CoverLetter   string `json:"cover_letter"`
	BidCents      int64  `json:"bid_cents"`
	EstimatedDays int    `json:"estimated_days"`
}

type acceptProposalResponse struct {
	Project  projectView  `json:"project"`
	Proposal proposalView `json:"proposal"`
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

func (h *handlers) listOpenProjects(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Projects.ListOpen(r.Context(), project.ListOpenInput{
		Query:     queryString(r, "q"),
		Platform:  queryString(r, "platform"),
		PageSize:  pageSize,
		PageToken: pageToken,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPage(result.Projects, result.NextPageToken, newProjectView))
}

func (h *handlers) listMyProjects(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Projects.ListForUser(r.Context(), actor(r), queryString(r, "status"), pageSize, pageToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPage(result.Projects, result.NextPageToken, newProjectView))
}

func (h *handlers) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.svc.Projects.Create(r.Context(), actor(r), project.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Platforms:   req.Platforms,
		BudgetCents: req.BudgetCents,
		Currency:    req.Currency,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newProjectView(created))
}

func (h *handlers) getProject(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.Projects.Get(r.Context(), actor(r), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProjectView(found))
}

func (h *handlers) updateProject(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.Projects.Update(r.Context(), actor(r), pathID(r, "id"), project.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Platforms:   req.Platforms,
		BudgetCents: req.BudgetCents,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProjectView(updated))
}

func (h *handlers) completeProject(w http.ResponseWriter, r *http.Request) {
	h.transitionProject(w, r, h.svc.Projects.Complete)
}

func (h *handlers) cancelProject(w http.ResponseWriter, r *http.Request) {
	h.transitionProject(w, r, h.svc.Projects.Cancel)
}

func (h *handlers) disputeProject(w http.ResponseWriter, r *http.Request) {
	h.transitionProject(w, r, h.svc.Projects.Dispute)
}

type projectTransition func(ctx context.Context, actor domain.Actor, projectID string) (project.Project, error)

func (h *handlers) transitionProject(w http.ResponseWriter, r *http.Request, transition projectTransition) {
	updated, err := transition(r.Context(), actor(r), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProjectView(updated))
}

func (h *handlers) listProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.svc.Projects.ListProposals(r.Context(), actor(r), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]proposalView, 0, len(proposals))
	for _, p := range proposals {
		views = append(views, newProposalView(p))
	}
	httpx.WriteJSON(w, http.StatusOK, itemsResponse[proposalView]{Items: views})
}

func (h *handlers) submitProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	proposal, err := h.svc.Projects.SubmitProposal(r.Context(), actor(r), pathID(r, "id"), project.ProposalInput{
		CoverLetter:   req.CoverLetter,
		BidCents:      req.BidCents,
		EstimatedDays: req.EstimatedDays,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newProposalView(proposal))
}

func (h *handlers) acceptProposal(w http.ResponseWriter, r *http.Request) {
	updated, proposal, err := h.svc.Projects.AcceptProposal(r.Context(), actor(r), pathID(r, "id"), pathID(r, "pid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, acceptProposalResponse{
		Project:  newProjectView(updated),
		Proposal: newProposalView(proposal),
	})
}

func (h *handlers) withdrawProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.svc.Projects.WithdrawProposal(r.Context(), actor(r), pathID(r, "id"), pathID(r, "pid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProposalView(proposal))
}

func (h *handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.svc.Reviews.Create(r.Context(), actor(r), review.CreateInput{
		ProjectID: pathID(r, "id"),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newReviewView(created))
}
