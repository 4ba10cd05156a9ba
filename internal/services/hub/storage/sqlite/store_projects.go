package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/automatehub/automatehub/internal/platform/filter"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
)

const projectColumns = `id, client_id, expert_id, title, description, budget_cents, currency, status, created_at, updated_at, completed_at`

const proposalColumns = `id, project_id, expert_id, cover_letter, bid_cents, estimated_days, status, created_at, updated_at`

// CreateProject inserts a new project with its platforms.
func (s *Store) CreateProject(ctx context.Context, p project.Project) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "create project", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO projects (`+projectColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			p.ID,
			p.ClientID,
			p.ExpertID,
			p.Title,
			p.Description,
			p.BudgetCents,
			p.Currency,
			string(p.Status),
			toMillis(p.CreatedAt),
			toMillis(p.UpdatedAt),
			nullMillis(p.CompletedAt),
		)
		if err != nil {
			if isForeignKeyConstraintError(err) {
				return account.ErrUserNotFound
			}
			return fmt.Errorf("insert project: %w", err)
		}
		return replaceProjectPlatforms(ctx, tx, p.ID, p.Platforms)
	})
}

// GetProject loads a project with its platforms.
func (s *Store) GetProject(ctx context.Context, projectID string) (project.Project, error) {
	if err := s.ready(ctx); err != nil {
		return project.Project{}, err
	}
	return getProject(ctx, s.sqlDB, strings.TrimSpace(projectID))
}

func getProject(ctx context.Context, q sqlQueryer, projectID string) (project.Project, error) {
	row := q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, projectID)
	p, err := scanProject(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, fmt.Errorf("get project: %w", err)
	}
	projects := []project.Project{p}
	if err := loadProjectPlatforms(ctx, q, projects); err != nil {
		return project.Project{}, err
	}
	return projects[0], nil
}

// UpdateOpenProject rewrites the editable fields while the project is open.
func (s *Store) UpdateOpenProject(ctx context.Context, p project.Project) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "update project", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE projects SET title = ?, description = ?, budget_cents = ?, updated_at = ?
WHERE id = ? AND status = ?
`, p.Title, p.Description, p.BudgetCents, toMillis(p.UpdatedAt), p.ID, string(project.StatusOpen))
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			if _, getErr := getProject(ctx, tx, p.ID); getErr != nil {
				return getErr
			}
			return project.ErrNotOpen
		}
		return replaceProjectPlatforms(ctx, tx, p.ID, p.Platforms)
	})
}

// TransitionProject moves a project from transition.From to transition.To.
func (s *Store) TransitionProject(ctx context.Context, transition project.Transition) (project.Project, error) {
	if err := s.ready(ctx); err != nil {
		return project.Project{}, err
	}
	var completedAt sql.NullInt64
	if transition.To == project.StatusCompleted {
		completedAt = sql.NullInt64{Int64: toMillis(transition.At), Valid: true}
	}

	var updated project.Project
	err := s.inTx(ctx, "transition project", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE projects SET status = ?, updated_at = ?, completed_at = COALESCE(?, completed_at)
WHERE id = ? AND status = ?
`, string(transition.To), toMillis(transition.At), completedAt, transition.ProjectID, string(transition.From))
		if err != nil {
			return fmt.Errorf("transition project: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("transition project rows: %w", err)
		}
		current, err := getProject(ctx, tx, transition.ProjectID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return project.ErrTransition(current.Status, transition.To)
		}
		updated = current
		return nil
	})
	if err != nil {
		return project.Project{}, err
	}
	return updated, nil
}

// ListOpenProjects pages through open projects, newest first.
func (s *Store) ListOpenProjects(ctx context.Context, query project.OpenQuery) (project.ProjectPage, error) {
	if err := s.ready(ctx); err != nil {
		return project.ProjectPage{}, err
	}
	where := []string{"status = ?"}
	args := []any{string(project.StatusOpen)}
	if query.Query != "" {
		like := "%" + filter.EscapeLike(strings.ToLower(query.Query)) + "%"
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	if query.Platform != "" {
		where = append(where, "EXISTS (SELECT 1 FROM project_platforms pp WHERE pp.project_id = projects.id AND pp.platform = ?)")
		args = append(args, string(query.Platform))
	}
	return s.listProjects(ctx, where, args, query.PageSize, query.Cursor)
}

// ListProjectsForUser pages through projects the user owns or works on.
func (s *Store) ListProjectsForUser(ctx context.Context, query project.UserQuery) (project.ProjectPage, error) {
	if err := s.ready(ctx); err != nil {
		return project.ProjectPage{}, err
	}
	var (
		where []string
		args  []any
	)
	switch query.Role {
	case domain.RoleClient:
		where = append(where, "client_id = ?")
		args = append(args, query.UserID)
	case domain.RoleExpert:
		where = append(where, "expert_id = ?")
		args = append(args, query.UserID)
	default:
		where = append(where, "(client_id = ? OR expert_id = ?)")
		args = append(args, query.UserID, query.UserID)
	}
	if query.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(query.Status))
	}
	return s.listProjects(ctx, where, args, query.PageSize, query.Cursor)
}

func (s *Store) listProjects(ctx context.Context, where []string, args []any, pageSize int, cursor pagination.Cursor) (project.ProjectPage, error) {
	if pageSize <= 0 {
		return project.ProjectPage{}, fmt.Errorf("page size must be greater than zero")
	}
	if cursor.ID != "" {
		key, ok := millisCursor(cursor)
		if !ok {
			return project.ProjectPage{}, project.ErrPageTokenInvalid
		}
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, key, key, cursor.ID)
	}
	statement := `SELECT ` + projectColumns + ` FROM projects WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return project.ProjectPage{}, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	page := project.ProjectPage{Projects: make([]project.Project, 0, pageSize)}
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return project.ProjectPage{}, fmt.Errorf("scan project row: %w", err)
		}
		page.Projects = append(page.Projects, p)
	}
	if err := rows.Err(); err != nil {
		return project.ProjectPage{}, fmt.Errorf("iterate project rows: %w", err)
	}
	if len(page.Projects) > pageSize {
		last := page.Projects[pageSize-1]
		page.NextPageToken = millisToken(last.CreatedAt, last.ID)
		page.Projects = page.Projects[:pageSize]
	}
	if err := loadProjectPlatforms(ctx, s.sqlDB, page.Projects); err != nil {
		return project.ProjectPage{}, err
	}
	return page, nil
}

// CreateProposal inserts a pending proposal. A second pending proposal from
// the same expert on the same project is rejected.
func (s *Store) CreateProposal(ctx context.Context, proposal project.Proposal) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO proposals (`+proposalColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		proposal.ID,
		proposal.ProjectID,
		proposal.ExpertID,
		proposal.CoverLetter,
		proposal.BidCents,
		proposal.EstimatedDays,
		string(proposal.Status),
		toMillis(proposal.CreatedAt),
		toMillis(proposal.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return project.ErrProposalExists
		}
		if isForeignKeyConstraintError(err) {
			return project.ErrNotFound
		}
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

// GetProposal loads one proposal.
func (s *Store) GetProposal(ctx context.Context, proposalID string) (project.Proposal, error) {
	if err := s.ready(ctx); err != nil {
		return project.Proposal{}, err
	}
	return getProposal(ctx, s.sqlDB, strings.TrimSpace(proposalID))
}

func getProposal(ctx context.Context, q sqlQueryer, proposalID string) (project.Proposal, error) {
	row := q.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, proposalID)
	proposal, err := scanProposal(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return project.Proposal{}, project.ErrProposalNotFound
		}
		return project.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	return proposal, nil
}

// ListProposals lists a project's proposals oldest first, optionally only
// those from expertID.
func (s *Store) ListProposals(ctx context.Context, projectID, expertID string) ([]project.Proposal, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	statement := `SELECT ` + proposalColumns + ` FROM proposals WHERE project_id = ?`
	args := []any{projectID}
	if expertID != "" {
		statement += ` AND expert_id = ?`
		args = append(args, expertID)
	}
	statement += ` ORDER BY created_at, id`

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	proposals := []project.Proposal{}
	for rows.Next() {
		proposal, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan proposal row: %w", err)
		}
		proposals = append(proposals, proposal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposal rows: %w", err)
	}
	return proposals, nil
}

// SetProposalStatus moves a proposal from one status to another.
func (s *Store) SetProposalStatus(ctx context.Context, proposalID string, from, to project.ProposalStatus, at time.Time) (project.Proposal, error) {
	if err := s.ready(ctx); err != nil {
		return project.Proposal{}, err
	}
	var updated project.Proposal
	err := s.inTx(ctx, "set proposal status", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE proposals SET status = ?, updated_at = ? WHERE id = ? AND status = ?
`, string(to), toMillis(at), proposalID, string(from))
		if err != nil {
			return fmt.Errorf("set proposal status: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("set proposal status rows: %w", err)
		}
		current, err := getProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return project.ErrProposalNotPending
		}
		updated = current
		return nil
	})
	if err != nil {
		return project.Proposal{}, err
	}
	return updated, nil
}

// AcceptProposal accepts one pending proposal, assigns the expert and bid to
// the open project, starts it and rejects every other pending proposal.
func (s *Store) AcceptProposal(ctx context.Context, projectID, proposalID string, at time.Time) (project.Project, project.Proposal, error) {
	if err := s.ready(ctx); err != nil {
		return project.Project{}, project.Proposal{}, err
	}
	var (
		accepted project.Proposal
		started  project.Project
	)
	err := s.inTx(ctx, "accept proposal", func(tx *sql.Tx) error {
		proposal, err := getProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if proposal.ProjectID != projectID {
			return project.ErrProposalNotFound
		}
		if proposal.Status != project.ProposalPending {
			return project.ErrProposalNotPending
		}

		result, err := tx.ExecContext(ctx, `
UPDATE projects SET expert_id = ?, budget_cents = ?, status = ?, updated_at = ?
WHERE id = ? AND status = ?
`, proposal.ExpertID, proposal.BidCents, string(project.StatusInProgress), toMillis(at), projectID, string(project.StatusOpen))
		if err != nil {
			return fmt.Errorf("start project: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			if _, getErr := getProject(ctx, tx, projectID); getErr != nil {
				return getErr
			}
			return project.ErrNotOpen
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE proposals SET status = ?, updated_at = ? WHERE id = ?
`, string(project.ProposalAccepted), toMillis(at), proposal.ID); err != nil {
			return fmt.Errorf("accept proposal: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE proposals SET status = ?, updated_at = ? WHERE project_id = ? AND id <> ? AND status = ?
`, string(project.ProposalRejected), toMillis(at), projectID, proposal.ID, string(project.ProposalPending)); err != nil {
			return fmt.Errorf("reject other proposals: %w", err)
		}

		if started, err = getProject(ctx, tx, projectID); err != nil {
			return err
		}
		accepted, err = getProposal(ctx, tx, proposal.ID)
		return err
	})
	if err != nil {
		return project.Project{}, project.Proposal{}, err
	}
	return started, accepted, nil
}

func replaceProjectPlatforms(ctx context.Context, execer sqlExecer, projectID string, platforms []expert.Platform) error {
	if _, err := execer.ExecContext(ctx, `DELETE FROM project_platforms WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clear project platforms: %w", err)
	}
	for i, platform := range platforms {
		if _, err := execer.ExecContext(ctx, `
INSERT INTO project_platforms (project_id, position, platform) VALUES (?, ?, ?)
`, projectID, i, string(platform)); err != nil {
			return fmt.Errorf("insert project platform: %w", err)
		}
	}
	return nil
}

func loadProjectPlatforms(ctx context.Context, q sqlQueryer, projects []project.Project) error {
	if len(projects) == 0 {
		return nil
	}
	index := make(map[string]int, len(projects))
	args := make([]any, 0, len(projects))
	for i, p := range projects {
		index[p.ID] = i
		args = append(args, p.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(projects)), ",")
	rows, err := q.QueryContext(ctx, `
SELECT project_id, platform FROM project_platforms WHERE project_id IN (`+placeholders+`) ORDER BY project_id, position
`, args...)
	if err != nil {
		return fmt.Errorf("list project platforms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var projectID, platform string
		if err := rows.Scan(&projectID, &platform); err != nil {
			return fmt.Errorf("scan project platform: %w", err)
		}
		i := index[projectID]
		projects[i].Platforms = append(projects[i].Platforms, expert.Platform(platform))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate project platforms: %w", err)
	}
	return nil
}

func scanProject(scan scanner) (project.Project, error) {
	var (
		p           project.Project
		status      string
		createdAt   int64
		updatedAt   int64
		completedAt sql.NullInt64
	)
	if err := scan(
		&p.ID,
		&p.ClientID,
		&p.ExpertID,
		&p.Title,
		&p.Description,
		&p.BudgetCents,
		&p.Currency,
		&status,
		&createdAt,
		&updatedAt,
		&completedAt,
	); err != nil {
		return project.Project{}, err
	}
	p.Status = project.Status(status)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.CompletedAt = timePtr(completedAt)
	p.Platforms = []expert.Platform{}
	return p, nil
}

func scanProposal(scan scanner) (project.Proposal, error) {
	var (
		proposal  project.Proposal
		status    string
		createdAt int64
		updatedAt int64
	)
	if err := scan(
		&proposal.ID,
		&proposal.ProjectID,
		&proposal.ExpertID,
		&proposal.CoverLetter,
		&proposal.BidCents,
		&proposal.EstimatedDays,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return project.Proposal{}, err
	}
	proposal.Status = project.ProposalStatus(status)
	proposal.CreatedAt = fromMillis(createdAt)
	proposal.UpdatedAt = fromMillis(updatedAt)
	return proposal, nil
}
