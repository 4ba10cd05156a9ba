package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const toolTimeout = 5 * time.Second

// ExpertReader is the expert discovery surface exposed as tools.
type ExpertReader interface {
	Get(ctx context.Context, userID string) (expert.Profile, error)
	Search(ctx context.Context, input expert.SearchInput) (expert.ProfilePage, error)
}

// ProjectReader lists open projects.
type ProjectReader interface {
	ListOpen(ctx context.Context, input project.ListOpenInput) (project.ProjectPage, error)
}

// SearchExpertsInput represents the MCP tool input for expert search.
type SearchExpertsInput struct {
	Query        string  `json:"query,omitempty" jsonschema:"free text matched against name, headline and bio"`
	Skill        string  `json:"skill,omitempty" jsonschema:"exact skill tag"`
	Platform     string  `json:"platform,omitempty" jsonschema:"automation platform (zapier, make, n8n, power_automate, uipath, custom)"`
	MinRating    float64 `json:"min_rating,omitempty" jsonschema:"minimum average rating between 0 and 5"`
	MaxRateCents int64   `json:"max_rate_cents,omitempty" jsonschema:"maximum hourly rate in cents"`
	Available    bool    `json:"available,omitempty" jsonschema:"only experts currently available"`
	Filter       string  `json:"filter,omitempty" jsonschema:"AIP-160 filter expression"`
	OrderBy      string  `json:"order_by,omitempty" jsonschema:"sort order, e.g. rating_average desc"`
	PageSize     int     `json:"page_size,omitempty" jsonschema:"maximum results, up to 100"`
	PageToken    string  `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// ExpertResult is one expert profile.
type ExpertResult struct {
	UserID            string   `json:"user_id" jsonschema:"expert user identifier"`
	DisplayName       string   `json:"display_name" jsonschema:"expert name"`
	Headline          string   `json:"headline" jsonschema:"one line summary"`
	Bio               string   `json:"bio,omitempty" jsonschema:"long description"`
	Skills            []string `json:"skills" jsonschema:"skill tags"`
	Platforms         []string `json:"platforms" jsonschema:"automation platforms"`
	HourlyRateCents   int64    `json:"hourly_rate_cents" jsonschema:"hourly rate in cents"`
	Currency          string   `json:"currency" jsonschema:"ISO currency code"`
	Availability      string   `json:"availability" jsonschema:"available, busy or unavailable"`
	Verified          bool     `json:"verified" jsonschema:"verified by the platform"`
	RatingAverage     float64  `json:"rating_average" jsonschema:"average review rating"`
	ReviewCount       int      `json:"review_count" jsonschema:"number of reviews"`
	CompletedProjects int      `json:"completed_projects" jsonschema:"number of completed projects"`
}

// SearchExpertsResult is one page of experts.
type SearchExpertsResult struct {
	Experts       []ExpertResult `json:"experts" jsonschema:"matching experts"`
	NextPageToken string         `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

// GetExpertInput identifies an expert.
type GetExpertInput struct {
	UserID string `json:"user_id" jsonschema:"expert user identifier"`
}

// ListOpenProjectsInput represents the MCP tool input for open projects.
type ListOpenProjectsInput struct {
	Query     string `json:"query,omitempty" jsonschema:"free text matched against title and description"`
	Platform  string `json:"platform,omitempty" jsonschema:"automation platform"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum results, up to 100"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// ProjectResult is one open project.
type ProjectResult struct {
	ID          string   `json:"id" jsonschema:"project identifier"`
	Title       string   `json:"title" jsonschema:"project title"`
	Description string   `json:"description" jsonschema:"project description"`
	Platforms   []string `json:"platforms" jsonschema:"automation platforms"`
	BudgetCents int64    `json:"budget_cents" jsonschema:"budget in cents"`
	Currency    string   `json:"currency" jsonschema:"ISO currency code"`
	CreatedAt   string   `json:"created_at" jsonschema:"RFC3339 timestamp when the project was posted"`
}

// ListOpenProjectsResult is one page of open projects.
type ListOpenProjectsResult struct {
	Projects      []ProjectResult `json:"projects" jsonschema:"open projects"`
	NextPageToken string          `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

// SearchExpertsTool defines the MCP tool schema for expert search.
func SearchExpertsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_experts",
		Description: "Searches automation experts by text, skill, platform, rating and rate.",
	}
}

// SearchExpertsHandler executes an expert search.
func SearchExpertsHandler(experts ExpertReader) mcp.ToolHandlerFor[SearchExpertsInput, SearchExpertsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchExpertsInput) (*mcp.CallToolResult, SearchExpertsResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		page, err := experts.Search(runCtx, expert.SearchInput{
			Query:        input.Query,
			Skill:        input.Skill,
			Platform:     input.Platform,
			MinRating:    input.MinRating,
			MaxRateCents: input.MaxRateCents,
			Available:    input.Available,
			Filter:       input.Filter,
			OrderBy:      input.OrderBy,
			PageSize:     input.PageSize,
			PageToken:    input.PageToken,
		})
		if err != nil {
			return nil, SearchExpertsResult{}, fmt.Errorf("search experts: %w", err)
		}
		result := SearchExpertsResult{
			Experts:       make([]ExpertResult, 0, len(page.Profiles)),
			NextPageToken: page.NextPageToken,
		}
		for _, profile := range page.Profiles {
			result.Experts = append(result.Experts, expertResult(profile))
		}
		return nil, result, nil
	}
}

// GetExpertTool defines the MCP tool schema for one expert.
func GetExpertTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_expert",
		Description: "Returns the public profile of one expert.",
	}
}

// GetExpertHandler loads one expert profile.
func GetExpertHandler(experts ExpertReader) mcp.ToolHandlerFor[GetExpertInput, ExpertResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetExpertInput) (*mcp.CallToolResult, ExpertResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		profile, err := experts.Get(runCtx, input.UserID)
		if err != nil {
			return nil, ExpertResult{}, fmt.Errorf("get expert: %w", err)
		}
		return nil, expertResult(profile), nil
	}
}

// ListOpenProjectsTool defines the MCP tool schema for open projects.
func ListOpenProjectsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_open_projects",
		Description: "Lists projects open for proposals, newest first.",
	}
}

// ListOpenProjectsHandler lists open projects.
func ListOpenProjectsHandler(projects ProjectReader) mcp.ToolHandlerFor[ListOpenProjectsInput, ListOpenProjectsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListOpenProjectsInput) (*mcp.CallToolResult, ListOpenProjectsResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		page, err := projects.ListOpen(runCtx, project.ListOpenInput{
			Query:     input.Query,
			Platform:  input.Platform,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, ListOpenProjectsResult{}, fmt.Errorf("list open projects: %w", err)
		}
		result := ListOpenProjectsResult{
			Projects:      make([]ProjectResult, 0, len(page.Projects)),
			NextPageToken: page.NextPageToken,
		}
		for _, p := range page.Projects {
			result.Projects = append(result.Projects, ProjectResult{
				ID:          p.ID,
				Title:       p.Title,
				Description: p.Description,
				Platforms:   platformNames(p.Platforms),
				BudgetCents: p.BudgetCents,
				Currency:    p.Currency,
				CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil, result, nil
	}
}

func expertResult(p expert.Profile) ExpertResult {
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	return ExpertResult{
		UserID:            p.UserID,
		DisplayName:       p.DisplayName,
		Headline:          p.Headline,
		Bio:               p.Bio,
		Skills:            skills,
		Platforms:         platformNames(p.Platforms),
		HourlyRateCents:   p.HourlyRateCents,
		Currency:          p.Currency,
		Availability:      string(p.Availability),
		Verified:          p.Verified,
		RatingAverage:     p.RoundedRating(),
		ReviewCount:       p.ReviewCount,
		CompletedProjects: p.CompletedProjects,
	}
}

func platformNames(platforms []expert.Platform) []string {
	out := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		out = append(out, string(platform))
	}
	return out
}
