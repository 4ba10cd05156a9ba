package rest

import (
	"net/http"

	"github.com/automatehub/automatehub/internal/platform/httpx"
	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
)

type updateExpertRequest struct {
	Headline        *string  `json:"headline"`
	Bio             *string  `json:"bio"`
	Skills          []string `json:"skills"`
	Platforms       []string `json:"platforms"`
	HourlyRateCents *int64   `json:"hourly_rate_cents"`
	Currency        *string  `json:"currency"`
	Availability    *string  `json:"availability"`
}

func (h *handlers) searchExperts(w http.ResponseWriter, r *http.Request) {
	input, err := searchInput(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Experts.Search(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPage(result.Profiles, result.NextPageToken, newProfileView))
}

func searchInput(r *http.Request) (expert.SearchInput, error) {
	minRating, err := queryFloat(r, "min_rating")
	if err != nil {
		return expert.SearchInput{}, err
	}
	maxRate, err := queryInt64(r, "max_rate")
	if err != nil {
		return expert.SearchInput{}, err
	}
	available, err := queryBool(r, "available")
	if err != nil {
		return expert.SearchInput{}, err
	}
	pageSize, pageToken, err := pageParams(r)
	if err != nil {
		return expert.SearchInput{}, err
	}
	return expert.SearchInput{
		Query:        queryString(r, "q"),
		Skill:        queryString(r, "skill"),
		Platform:     queryString(r, "platform"),
		MinRating:    minRating,
		MaxRateCents: maxRate,
		Available:    available,
		Filter:       queryString(r, "filter"),
		OrderBy:      queryString(r, "order_by"),
		PageSize:     pageSize,
		PageToken:    pageToken,
	}, nil
}

func (h *handlers) getExpert(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.Experts.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProfileView(profile))
}

func (h *handlers) updateExpertProfile(w http.ResponseWriter, r *http.Request) {
	var req updateExpertRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	profile, err := h.svc.Experts.UpdateProfile(r.Context(), actor(r), expert.UpdateInput{
		Headline:        req.Headline,
		Bio:             req.Bio,
		Skills:          req.Skills,
		Platforms:       req.Platforms,
		HourlyRateCents: req.HourlyRateCents,
		Currency:        req.Currency,
		Availability:    req.Availability,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProfileView(profile))
}

func (h *handlers) listExpertReviews(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Reviews.ListForExpert(r.Context(), pathID(r, "id"), pageSize, pageToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPage(result.Reviews, result.NextPageToken, newReviewView))
}
