// Package project implements project postings, proposals and the project
// lifecycle.
package project

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
	"go.uber.org/zap"
)

const (
	maxTitleRunes       = 120
	minDescriptionRunes = 10
	maxDescriptionRunes = 10000
	maxCoverLetterRunes = 5000
)

var (
	ErrNotFound          = apperrors.New(apperrors.CodeProjectNotFound, "project not found")
	ErrTitleRequired     = apperrors.New(apperrors.CodeProjectTitleRequired, "title is required")
	ErrTitleTooLong      = apperrors.WithMetadata(apperrors.CodeProjectTitleTooLong, "title too long", map[string]string{"Max": strconv.Itoa(maxTitleRunes)})
	ErrDescriptionLength = apperrors.WithMetadata(apperrors.CodeProjectDescriptionLength, "description length out of range", map[string]string{"Min": strconv.Itoa(minDescriptionRunes), "Max": strconv.Itoa(maxDescriptionRunes)})
	ErrBudgetInvalid     = apperrors.New(apperrors.CodeProjectBudgetInvalid, "budget must be positive")
	ErrNotOpen           = apperrors.New(apperrors.CodeProjectNotOpen, "project is not open")
	ErrNotOwner          = apperrors.New(apperrors.CodeProjectNotOwner, "caller does not own the project")
	ErrForbidden         = apperrors.New(apperrors.CodeForbidden, "caller cannot access the project")
	ErrClientOnly        = apperrors.WithMetadata(apperrors.CodeRoleRequired, "client role required", map[string]string{"Role": "client"})
	ErrExpertOnly        = apperrors.WithMetadata(apperrors.CodeRoleRequired, "expert role required", map[string]string{"Role": "expert"})
	ErrAdminOnly         = apperrors.WithMetadata(apperrors.CodeRoleRequired, "admin role required", map[string]string{"Role": "admin"})
	ErrPageTokenInvalid  = apperrors.New(apperrors.CodeInvalidArgument, "page token is invalid")

	ErrProposalNotFound   = apperrors.New(apperrors.CodeProposalNotFound, "proposal not found")
	ErrProposalExists     = apperrors.New(apperrors.CodeProposalExists, "expert already has a pending proposal")
	ErrProposalNotPending = apperrors.New(apperrors.CodeProposalNotPending, "proposal is not pending")
	ErrOwnProject         = apperrors.New(apperrors.CodeProposalOwnProject, "cannot bid on own project")
	ErrBidInvalid         = apperrors.New(apperrors.CodeProposalBidInvalid, "bid and estimate must be positive")
	ErrCoverLetterLength  = apperrors.WithMetadata(apperrors.CodeProposalCoverLetter, "cover letter too long", map[string]string{"Max": strconv.Itoa(maxCoverLetterRunes)})
)

// ErrTransition builds the error for a disallowed status change.
func ErrTransition(from, to Status) error {
	return apperrors.WithMetadata(apperrors.CodeProjectTransition, "invalid status transition", map[string]string{
		"From": string(from),
		"To":   string(to),
	})
}

// Project is a client's posted automation job.
type Project struct {
	ID          string
	ClientID    string
	ExpertID    string
	Title       string
	Description string
	Platforms   []expert.Platform
	BudgetCents int64
	Currency    string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// IsParticipant reports whether userID is the client or assigned expert.
func (p Project) IsParticipant(userID string) bool {
	return userID != "" && (p.ClientID == userID || p.ExpertID == userID)
}

// Proposal is an expert's bid on a project.
type Proposal struct {
	ID            string
	ProjectID     string
	ExpertID      string
	CoverLetter   string
	BidCents      int64
	EstimatedDays int
	Status        ProposalStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProjectPage is one page of projects.
type ProjectPage struct {
	Projects      []Project
	NextPageToken string
}

// OpenQuery filters open project listings.
type OpenQuery struct {
	Query    string
	Platform expert.Platform
	PageSize int
	Cursor   pagination.Cursor
}

// UserQuery lists projects a user takes part in.
type UserQuery struct {
	UserID   string
	Role     domain.Role
	Status   Status
	PageSize int
	Cursor   pagination.Cursor
}

// Transition is a conditional status change; it fails with the transition
// error when the stored status no longer equals From.
type Transition struct {
	ProjectID string
	From      Status
	To        Status
	At        time.Time
}

// Store persists projects and proposals.
type Store interface {
	CreateProject(ctx context.Context, project Project) error
	GetProject(ctx context.Context, projectID string) (Project, error)
	UpdateOpenProject(ctx context.Context, project Project) error
	TransitionProject(ctx context.Context, transition Transition) (Project, error)
	ListOpenProjects(ctx context.Context, query OpenQuery) (ProjectPage, error)
	ListProjectsForUser(ctx context.Context, query UserQuery) (ProjectPage, error)

	CreateProposal(ctx context.Context, proposal Proposal) error
	GetProposal(ctx context.Context, proposalID string) (Proposal, error)
	ListProposals(ctx context.Context, projectID, expertID string) ([]Proposal, error)
	SetProposalStatus(ctx context.Context, proposalID string, from, to ProposalStatus, at time.Time) (Proposal, error)
	// AcceptProposal accepts proposalID, assigns its expert and bid to the
	// project, moves the project to in_progress and rejects the remaining
	// pending proposals, all in one transaction.
	AcceptProposal(ctx context.Context, projectID, proposalID string, at time.Time) (Project, Proposal, error)
}

// CreateInput describes a new project posting.
type CreateInput struct {
	Title       string
	Description string
	Platforms   []string
	BudgetCents int64
	Currency    string
}

// UpdateInput edits an open project. Nil fields are unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Platforms   []string
	BudgetCents *int64
}

// ListOpenInput is the raw open-project listing request.
type ListOpenInput struct {
	Query     string
	Platform  string
	PageSize  int
	PageToken string
}

// ProposalInput describes a bid.
type ProposalInput struct {
	CoverLetter   string
	BidCents      int64
	EstimatedDays int
}

// Service implements project use-cases.
type Service struct {
	store           Store
	deps            domain.Deps
	defaultCurrency string
}

// NewService constructs project use-cases.
func NewService(store Store, deps domain.Deps, defaultCurrency string) *Service {
	if strings.TrimSpace(defaultCurrency) == "" {
		defaultCurrency = "usd"
	}
	return &Service{store: store, deps: deps.WithDefaults(), defaultCurrency: strings.ToLower(defaultCurrency)}
}

// Create posts a project for a client.
func (s *Service) Create(ctx context.Context, actor domain.Actor, input CreateInput) (Project, error) {
	if actor.Role != domain.RoleClient {
		return Project{}, ErrClientOnly
	}
	title, err := validateTitle(input.Title)
	if err != nil {
		return Project{}, err
	}
	description, err := validateDescription(input.Description)
	if err != nil {
		return Project{}, err
	}
	if input.BudgetCents <= 0 {
		return Project{}, ErrBudgetInvalid
	}
	platforms, err := expert.NormalizePlatforms(input.Platforms)
	if err != nil {
		return Project{}, err
	}
	currency := s.defaultCurrency
	if strings.TrimSpace(input.Currency) != "" {
		if currency, err = expert.NormalizeCurrency(input.Currency); err != nil {
			return Project{}, err
		}
	}

	projectID, err := s.deps.NewID()
	if err != nil {
		return Project{}, err
	}
	now := s.deps.Now()
	project := Project{
		ID:          projectID,
		ClientID:    actor.UserID,
		Title:       title,
		Description: description,
		Platforms:   platforms,
		BudgetCents: input.BudgetCents,
		Currency:    currency,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// Get loads a project. Open projects are visible to everyone; others only
// to participants and admins.
func (s *Service) Get(ctx context.Context, actor domain.Actor, projectID string) (Project, error) {
	project, err := s.store.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return Project{}, err
	}
	if project.Status != StatusOpen && !project.IsParticipant(actor.UserID) && !actor.IsAdmin() {
		return Project{}, ErrForbidden
	}
	return project, nil
}

// Update edits an open project owned by the caller.
func (s *Service) Update(ctx context.Context, actor domain.Actor, projectID string, input UpdateInput) (Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if project.ClientID != actor.UserID {
		return Project{}, ErrNotOwner
	}
	if project.Status != StatusOpen {
		return Project{}, ErrNotOpen
	}
	if input.Title != nil {
		if project.Title, err = validateTitle(*input.Title); err != nil {
			return Project{}, err
		}
	}
	if input.Description != nil {
		if project.Description, err = validateDescription(*input.Description); err != nil {
			return Project{}, err
		}
	}
	if input.Platforms != nil {
		if project.Platforms, err = expert.NormalizePlatforms(input.Platforms); err != nil {
			return Project{}, err
		}
	}
	if input.BudgetCents != nil {
		if *input.BudgetCents <= 0 {
			return Project{}, ErrBudgetInvalid
		}
		project.BudgetCents = *input.BudgetCents
	}
	project.UpdatedAt = s.deps.Now()
	if err := s.store.UpdateOpenProject(ctx, project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// ListOpen pages through projects accepting proposals, newest first.
func (s *Service) ListOpen(ctx context.Context, input ListOpenInput) (ProjectPage, error) {
	query := OpenQuery{
		Query:    strings.TrimSpace(input.Query),
		PageSize: pagination.ClampPageSize(input.PageSize, pagination.PageSizeConfig{Default: 20, Max: 100}),
	}
	if strings.TrimSpace(input.Platform) != "" {
		platform, err := expert.ParsePlatform(input.Platform)
		if err != nil {
			return ProjectPage{}, err
		}
		query.Platform = platform
	}
	cursor, err := pagination.DecodeCursor(input.PageToken)
	if err != nil {
		return ProjectPage{}, ErrPageTokenInvalid
	}
	query.Cursor = cursor
	return s.store.ListOpenProjects(ctx, query)
}

// ListForUser pages through the caller's projects, as client or assigned expert.
func (s *Service) ListForUser(ctx context.Context, actor domain.Actor, status string, pageSize int, pageToken string) (ProjectPage, error) {
	query := UserQuery{
		UserID:   actor.UserID,
		Role:     actor.Role,
		PageSize: pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{Default: 20, Max: 100}),
	}
	if strings.TrimSpace(status) != "" {
		parsed, ok := ParseStatus(status)
		if !ok {
			return ProjectPage{}, apperrors.New(apperrors.CodeInvalidArgument, "status is invalid")
		}
		query.Status = parsed
	}
	cursor, err := pagination.DecodeCursor(pageToken)
	if err != nil {
		return ProjectPage{}, ErrPageTokenInvalid
	}
	query.Cursor = cursor
	return s.store.ListProjectsForUser(ctx, query)
}

// SubmitProposal places the caller's bid on an open project.
func (s *Service) SubmitProposal(ctx context.Context, actor domain.Actor, projectID string, input ProposalInput) (Proposal, error) {
	if actor.Role != domain.RoleExpert {
		return Proposal{}, ErrExpertOnly
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Proposal{}, err
	}
	if project.ClientID == actor.UserID {
		return Proposal{}, ErrOwnProject
	}
	if project.Status != StatusOpen {
		return Proposal{}, ErrNotOpen
	}
	if input.BidCents <= 0 || input.EstimatedDays <= 0 {
		return Proposal{}, ErrBidInvalid
	}
	coverLetter := strings.TrimSpace(input.CoverLetter)
	if utf8.RuneCountInString(coverLetter) > maxCoverLetterRunes {
		return Proposal{}, ErrCoverLetterLength
	}

	proposalID, err := s.deps.NewID()
	if err != nil {
		return Proposal{}, err
	}
	now := s.deps.Now()
	proposal := Proposal{
		ID:            proposalID,
		ProjectID:     project.ID,
		ExpertID:      actor.UserID,
		CoverLetter:   coverLetter,
		BidCents:      input.BidCents,
		EstimatedDays: input.EstimatedDays,
		Status:        ProposalPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateProposal(ctx, proposal); err != nil {
		return Proposal{}, err
	}

	s.deps.Publish(ctx, events.Event{
		Type: events.TypeProposalSubmitted,
		Key:  project.ID,
		Payload: map[string]string{
			"project_id":  project.ID,
			"proposal_id": proposal.ID,
			"client_id":   project.ClientID,
			"expert_id":   actor.UserID,
			"title":       project.Title,
		},
		OccurredAt: now,
	})
	return proposal, nil
}

// ListProposals returns a project's proposals. The owning client and admins
// see every proposal; experts see only their own.
func (s *Service) ListProposals(ctx context.Context, actor domain.Actor, projectID string) ([]Proposal, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	switch {
	case project.ClientID == actor.UserID || actor.IsAdmin():
		return s.store.ListProposals(ctx, project.ID, "")
	case actor.Role == domain.RoleExpert:
		return s.store.ListProposals(ctx, project.ID, actor.UserID)
	default:
		return nil, ErrNotOwner
	}
}

// WithdrawProposal retracts the caller's pending proposal.
func (s *Service) WithdrawProposal(ctx context.Context, actor domain.Actor, projectID, proposalID string) (Proposal, error) {
	proposal, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if proposal.ProjectID != projectID {
		return Proposal{}, ErrProposalNotFound
	}
	if proposal.ExpertID != actor.UserID {
		return Proposal{}, ErrForbidden
	}
	if proposal.Status != ProposalPending {
		return Proposal{}, ErrProposalNotPending
	}
	return s.store.SetProposalStatus(ctx, proposal.ID, ProposalPending, ProposalWithdrawn, s.deps.Now())
}

// AcceptProposal hires the proposal's expert for the caller's project.
func (s *Service) AcceptProposal(ctx context.Context, actor domain.Actor, projectID, proposalID string) (Project, Proposal, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, Proposal{}, err
	}
	if project.ClientID != actor.UserID {
		return Project{}, Proposal{}, ErrNotOwner
	}
	if project.Status != StatusOpen {
		return Project{}, Proposal{}, ErrNotOpen
	}
	proposal, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return Project{}, Proposal{}, err
	}
	if proposal.ProjectID != project.ID {
		return Project{}, Proposal{}, ErrProposalNotFound
	}
	if proposal.Status != ProposalPending {
		return Project{}, Proposal{}, ErrProposalNotPending
	}

	now := s.deps.Now()
	project, proposal, err = s.store.AcceptProposal(ctx, project.ID, proposal.ID, now)
	if err != nil {
		return Project{}, Proposal{}, err
	}

	s.deps.Publish(ctx, events.Event{
		Type: events.TypeProposalAccepted,
		Key:  project.ID,
		Payload: map[string]string{
			"project_id":  project.ID,
			"proposal_id": proposal.ID,
			"client_id":   project.ClientID,
			"expert_id":   project.ExpertID,
			"title":       project.Title,
		},
		OccurredAt: now,
	})
	s.deps.Logger.Info("proposal accepted", zap.String("project_id", project.ID), zap.String("proposal_id", proposal.ID))
	return project, proposal, nil
}

// Complete marks the caller's in-progress project as done.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, projectID string) (Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if project.ClientID != actor.UserID {
		return Project{}, ErrNotOwner
	}
	// Disputed projects close only through Resolve.
	if project.Status != StatusInProgress {
		return Project{}, ErrTransition(project.Status, StatusCompleted)
	}
	return s.transition(ctx, project, StatusCompleted)
}

// Cancel stops a project. Clients cancel their own open or in-progress
// projects; admins cancel any.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, projectID string) (Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if !actor.IsAdmin() {
		if project.ClientID != actor.UserID {
			return Project{}, ErrNotOwner
		}
		if project.Status != StatusOpen && project.Status != StatusInProgress {
			return Project{}, ErrTransition(project.Status, StatusCancelled)
		}
	}
	return s.transition(ctx, project, StatusCancelled)
}

// Dispute escalates an in-progress project; either party may raise it.
func (s *Service) Dispute(ctx context.Context, actor domain.Actor, projectID string) (Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if !project.IsParticipant(actor.UserID) {
		return Project{}, ErrForbidden
	}
	if project.Status != StatusInProgress {
		return Project{}, ErrTransition(project.Status, StatusDisputed)
	}
	return s.transition(ctx, project, StatusDisputed)
}

// Resolve settles a disputed project into status.
func (s *Service) Resolve(ctx context.Context, actor domain.Actor, projectID, status string) (Project, error) {
	if !actor.IsAdmin() {
		return Project{}, ErrAdminOnly
	}
	target, ok := ParseStatus(status)
	if !ok {
		return Project{}, apperrors.New(apperrors.CodeInvalidArgument, "status is invalid")
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if project.Status != StatusDisputed {
		return Project{}, ErrTransition(project.Status, target)
	}
	return s.transition(ctx, project, target)
}

func (s *Service) transition(ctx context.Context, project Project, to Status) (Project, error) {
	if !CanTransition(project.Status, to) {
		return Project{}, ErrTransition(project.Status, to)
	}
	now := s.deps.Now()
	updated, err := s.store.TransitionProject(ctx, Transition{ProjectID: project.ID, From: project.Status, To: to, At: now})
	if err != nil {
		return Project{}, err
	}

	var eventType string
	switch to {
	case StatusCompleted:
		eventType = events.TypeProjectCompleted
	case StatusCancelled:
		eventType = events.TypeProjectCancelled
	}
	if eventType != "" {
		s.deps.Publish(ctx, events.Event{
			Type: eventType,
			Key:  updated.ID,
			Payload: map[string]string{
				"project_id": updated.ID,
				"client_id":  updated.ClientID,
				"expert_id":  updated.ExpertID,
				"title":      updated.Title,
			},
			OccurredAt: now,
		})
	}
	return updated, nil
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return "", ErrTitleTooLong
	}
	return title, nil
}

func validateDescription(raw string) (string, error) {
	description := strings.TrimSpace(raw)
	count := utf8.RuneCountInString(description)
	if count < minDescriptionRunes || count > maxDescriptionRunes {
		return "", ErrDescriptionLength
	}
	return description, nil
}
