package rest

import (
	"time"

	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
	"github.com/automatehub/automatehub/internal/services/hub/domain/conversation"
	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
	"github.com/automatehub/automatehub/internal/services/hub/domain/payment"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
	"github.com/automatehub/automatehub/internal/services/hub/domain/review"
)

// page is the envelope of every paginated listing.
type page[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"next_page_token"`
}

func newPage[S any, T any](items []S, nextPageToken string, convert func(S) T) page[T] {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, convert(item))
	}
	return page[T]{Items: out, NextPageToken: nextPageToken}
}

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Locale    string    `json:"locale,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserView(u account.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		Status:    string(u.Status),
		AvatarURL: u.AvatarURL,
		Locale:    u.Locale,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type profileView struct {
	UserID            string    `json:"user_id"`
	DisplayName       string    `json:"display_name"`
	AvatarURL         string    `json:"avatar_url,omitempty"`
	Headline          string    `json:"headline"`
	Bio               string    `json:"bio"`
	Skills            []string  `json:"skills"`
	Platforms         []string  `json:"platforms"`
	HourlyRateCents   int64     `json:"hourly_rate_cents"`
	Currency          string    `json:"currency"`
	Availability      string    `json:"availability"`
	Verified          bool      `json:"verified"`
	RatingAverage     float64   `json:"rating_average"`
	ReviewCount       int       `json:"review_count"`
	CompletedProjects int       `json:"completed_projects"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newProfileView(p expert.Profile) profileView {
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	return profileView{
		UserID:            p.UserID,
		DisplayName:       p.DisplayName,
		AvatarURL:         p.AvatarURL,
		Headline:          p.Headline,
		Bio:               p.Bio,
		Skills:            skills,
		Platforms:         platformStrings(p.Platforms),
		HourlyRateCents:   p.HourlyRateCents,
		Currency:          p.Currency,
		Availability:      string(p.Availability),
		Verified:          p.Verified,
		RatingAverage:     p.RoundedRating(),
		ReviewCount:       p.ReviewCount,
		CompletedProjects: p.CompletedProjects,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func platformStrings(platforms []expert.Platform) []string {
	out := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		out = append(out, string(platform))
	}
	return out
}

type projectView struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	ExpertID    string     `json:"expert_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Platforms   []string   `json:"platforms"`
	BudgetCents int64      `json:"budget_cents"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newProjectView(p project.Project) projectView {
	return projectView{
		ID:          p.ID,
		ClientID:    p.ClientID,
		ExpertID:    p.ExpertID,
		Title:       p.Title,
		Description: p.Description,
		Platforms:   platformStrings(p.Platforms),
		BudgetCents: p.BudgetCents,
		Currency:    p.Currency,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		CompletedAt: p.CompletedAt,
	}
}

type proposalView struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	ExpertID      string    `json:"expert_id"`
	CoverLetter   string    `json:"cover_letter"`
	BidCents      int64     `json:"bid_cents"`
	EstimatedDays int       `json:"estimated_days"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newProposalView(p project.Proposal) proposalView {
	return proposalView{
		ID:            p.ID,
		ProjectID:     p.ProjectID,
		ExpertID:      p.ExpertID,
		CoverLetter:   p.CoverLetter,
		BidCents:      p.BidCents,
		EstimatedDays: p.EstimatedDays,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type reviewView struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	ExpertID  string    `json:"expert_id"`
	ClientID  string    `json:"client_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func newReviewView(r review.Review) reviewView {
	return reviewView{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		ExpertID:  r.ExpertID,
		ClientID:  r.ClientID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

type conversationView struct {
	ID                 string     `json:"id"`
	ProjectID          string     `json:"project_id,omitempty"`
	ParticipantIDs     []string   `json:"participant_ids"`
	LastSequence       int64      `json:"last_sequence"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	LastReadSequence   int64      `json:"last_read_sequence"`
	UnreadCount        int        `json:"unread_count"`
	CreatedAt          time.Time  `json:"created_at"`
}

func newConversationView(c conversation.Conversation) conversationView {
	return conversationView{
		ID:                 c.ID,
		ProjectID:          c.ProjectID,
		ParticipantIDs:     []string{c.ParticipantIDs[0], c.ParticipantIDs[1]},
		LastSequence:       c.LastSequence,
		LastMessageAt:      c.LastMessageAt,
		LastMessagePreview: c.LastMessagePreview,
		CreatedAt:          c.CreatedAt,
	}
}

func newSummaryView(s conversation.Summary) conversationView {
	view := newConversationView(s.Conversation)
	view.LastReadSequence = s.LastReadSequence
	view.UnreadCount = s.UnreadCount
	return view
}

type paymentView struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	PayerID      string    `json:"payer_id"`
	PayeeID      string    `json:"payee_id"`
	AmountCents  int64     `json:"amount_cents"`
	FeeCents     int64     `json:"fee_cents"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	ProcessorRef string    `json:"processor_ref"`
	ClientSecret string    `json:"client_secret,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newPaymentView(p payment.Payment) paymentView {
	return paymentView{
		ID:           p.ID,
		ProjectID:    p.ProjectID,
		PayerID:      p.PayerID,
		PayeeID:      p.PayeeID,
		AmountCents:  p.AmountCents,
		FeeCents:     p.FeeCents,
		Currency:     p.Currency,
		Status:       string(p.Status),
		ProcessorRef: p.ProcessorRef,
		ClientSecret: p.ClientSecret,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
