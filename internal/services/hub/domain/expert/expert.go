// Package expert manages public expert profiles and discovery search.
package expert

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/filter"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

const (
	maxHeadlineRunes = 120
	maxBioRunes      = 4000
	maxSkills        = 20
	maxSkillRunes    = 40
)

// Order values accepted by Search.
const (
	OrderRating  = "rating"
	OrderRate    = "rate"
	OrderNewest  = "newest"
	OrderReviews = "reviews"
)

var (
	ErrNotFound         = apperrors.New(apperrors.CodeExpertNotFound, "expert not found")
	ErrHeadlineTooLong  = apperrors.WithMetadata(apperrors.CodeExpertHeadlineTooLong, "headline too long", map[string]string{"Max": strconv.Itoa(maxHeadlineRunes)})
	ErrBioTooLong       = apperrors.WithMetadata(apperrors.CodeExpertBioTooLong, "bio too long", map[string]string{"Max": strconv.Itoa(maxBioRunes)})
	ErrTooManySkills    = apperrors.WithMetadata(apperrors.CodeExpertTooManySkills, "too many skills", map[string]string{"Max": strconv.Itoa(maxSkills)})
	ErrRateInvalid      = apperrors.New(apperrors.CodeExpertRateInvalid, "hourly rate must not be negative")
	ErrAvailability     = apperrors.New(apperrors.CodeExpertAvailability, "availability is invalid")
	ErrFilterInvalid    = apperrors.New(apperrors.CodeExpertFilterInvalid, "filter is invalid")
	ErrPageTokenInvalid = apperrors.New(apperrors.CodeExpertPageTokenInvalid, "page token is invalid")
	ErrNotExpert        = apperrors.WithMetadata(apperrors.CodeRoleRequired, "expert role required", map[string]string{"Role": "expert"})
	ErrForbidden        = apperrors.New(apperrors.CodeForbidden, "admin role required")
)

// Platform is an automation platform an expert works with.
type Platform string

const (
	PlatformZapier        Platform = "zapier"
	PlatformMake          Platform = "make"
	PlatformN8N           Platform = "n8n"
	PlatformPowerAutomate Platform = "power_automate"
	PlatformUiPath        Platform = "uipath"
	PlatformCustom        Platform = "custom"
)

// Platforms lists every known platform.
var Platforms = []Platform{PlatformZapier, PlatformMake, PlatformN8N, PlatformPowerAutomate, PlatformUiPath, PlatformCustom}

// ParsePlatform normalizes value into a known platform.
func ParsePlatform(value string) (Platform, error) {
	normalized := Platform(strings.ToLower(strings.TrimSpace(value)))
	for _, platform := range Platforms {
		if platform == normalized {
			return platform, nil
		}
	}
	return "", apperrors.WithMetadata(apperrors.CodeExpertPlatformInvalid, "unknown platform", map[string]string{"Platform": value})
}

// NormalizePlatforms validates and de-duplicates platforms, keeping first-seen order.
func NormalizePlatforms(values []string) ([]Platform, error) {
	out := make([]Platform, 0, len(values))
	seen := make(map[Platform]struct{}, len(values))
	for _, value := range values {
		platform, err := ParsePlatform(value)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		out = append(out, platform)
	}
	return out, nil
}

// Availability describes whether an expert takes new work.
type Availability string

const (
	Available   Availability = "available"
	Busy        Availability = "busy"
	Unavailable Availability = "unavailable"
)

// Profile is the public face of an expert.
type Profile struct {
	UserID            string
	DisplayName       string
	AvatarURL         string
	Headline          string
	Bio               string
	Skills            []string
	Platforms         []Platform
	HourlyRateCents   int64
	Currency          string
	Availability      Availability
	Verified          bool
	RatingAverage     float64
	ReviewCount       int
	CompletedProjects int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RoundedRating returns the rating average rounded to two decimals.
func (p Profile) RoundedRating() float64 {
	return math.Round(p.RatingAverage*100) / 100
}

// ProfilePage is one page of search results.
type ProfilePage struct {
	Profiles      []Profile
	NextPageToken string
}

// SearchQuery is a validated search handed to the store.
type SearchQuery struct {
	Query         string
	Skill         string
	Platform      Platform
	MinRating     float64
	MaxRateCents  int64
	AvailableOnly bool
	Filter        *expr.Expr
	OrderBy       string
	PageSize      int
	Cursor        pagination.Cursor
}

// Store persists expert profiles.
type Store interface {
	GetExpertProfile(ctx context.Context, userID string) (Profile, error)
	UpdateExpertProfile(ctx context.Context, profile Profile) error
	SearchExperts(ctx context.Context, query SearchQuery) (ProfilePage, error)
	SetExpertVerified(ctx context.Context, userID string, verified bool, updatedAt time.Time) (Profile, error)
}

// FilterFields are the fields accepted in AIP-160 search filters.
var FilterFields = filter.Fields{
	"rating":       filter.FieldFloat,
	"rate":         filter.FieldInt,
	"reviews":      filter.FieldInt,
	"completed":    filter.FieldInt,
	"verified":     filter.FieldBool,
	"availability": filter.FieldString,
	"currency":     filter.FieldString,
	"headline":     filter.FieldString,
	"display_name": filter.FieldString,
}

var orderConfig = pagination.OrderByConfig{
	Default: OrderRating,
	Allowed: []string{OrderRating, OrderRate, OrderNewest, OrderReviews},
}

// UpdateInput replaces the caller's expert profile fields. Nil fields are unchanged.
type UpdateInput struct {
	Headline        *string
	Bio             *string
	Skills          []string
	Platforms       []string
	HourlyRateCents *int64
	Currency        *string
	Availability    *string
}

// SearchInput is the raw discovery search request.
type SearchInput struct {
	Query        string
	Skill        string
	Platform     string
	MinRating    float64
	MaxRateCents int64
	Available    bool
	Filter       string
	OrderBy      string
	PageSize     int
	PageToken    string
}

// Service implements expert profile use-cases.
type Service struct {
	store Store
	deps  domain.Deps
}

// NewService constructs expert use-cases.
func NewService(store Store, deps domain.Deps) *Service {
	return &Service{store: store, deps: deps.WithDefaults()}
}

// Get loads one public profile.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, ErrNotFound
	}
	return s.store.GetExpertProfile(ctx, userID)
}

// UpdateProfile edits the caller's own expert profile.
func (s *Service) UpdateProfile(ctx context.Context, actor domain.Actor, input UpdateInput) (Profile, error) {
	if actor.Role != domain.RoleExpert {
		return Profile{}, ErrNotExpert
	}
	profile, err := s.store.GetExpertProfile(ctx, actor.UserID)
	if err != nil {
		return Profile{}, err
	}

	if input.Headline != nil {
		headline := strings.TrimSpace(*input.Headline)
		if utf8.RuneCountInString(headline) > maxHeadlineRunes {
			return Profile{}, ErrHeadlineTooLong
		}
		profile.Headline = headline
	}
	if input.Bio != nil {
		bio := strings.TrimSpace(*input.Bio)
		if utf8.RuneCountInString(bio) > maxBioRunes {
			return Profile{}, ErrBioTooLong
		}
		profile.Bio = bio
	}
	if input.Skills != nil {
		skills, err := NormalizeSkills(input.Skills)
		if err != nil {
			return Profile{}, err
		}
		profile.Skills = skills
	}
	if input.Platforms != nil {
		platforms, err := NormalizePlatforms(input.Platforms)
		if err != nil {
			return Profile{}, err
		}
		profile.Platforms = platforms
	}
	if input.HourlyRateCents != nil {
		if *input.HourlyRateCents < 0 {
			return Profile{}, ErrRateInvalid
		}
		profile.HourlyRateCents = *input.HourlyRateCents
	}
	if input.Currency != nil {
		currency, err := NormalizeCurrency(*input.Currency)
		if err != nil {
			return Profile{}, err
		}
		profile.Currency = currency
	}
	if input.Availability != nil {
		availability := Availability(strings.ToLower(strings.TrimSpace(*input.Availability)))
		switch availability {
		case Available, Busy, Unavailable:
			profile.Availability = availability
		default:
			return Profile{}, ErrAvailability
		}
	}

	profile.UpdatedAt = s.deps.Now()
	if err := s.store.UpdateExpertProfile(ctx, profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Search finds experts matching input.
func (s *Service) Search(ctx context.Context, input SearchInput) (ProfilePage, error) {
	query := SearchQuery{
		Query:         strings.TrimSpace(input.Query),
		Skill:         strings.ToLower(strings.TrimSpace(input.Skill)),
		MinRating:     input.MinRating,
		MaxRateCents:  input.MaxRateCents,
		AvailableOnly: input.Available,
		PageSize:      pagination.ClampPageSize(input.PageSize, pagination.PageSizeConfig{Default: 20, Max: 100}),
	}
	if query.MinRating < 0 || query.MinRating > 5 {
		return ProfilePage{}, apperrors.New(apperrors.CodeInvalidArgument, "min_rating must be between 0 and 5")
	}
	if query.MaxRateCents < 0 {
		return ProfilePage{}, ErrRateInvalid
	}
	if strings.TrimSpace(input.Platform) != "" {
		platform, err := ParsePlatform(input.Platform)
		if err != nil {
			return ProfilePage{}, err
		}
		query.Platform = platform
	}

	orderBy, err := pagination.NormalizeOrderBy(input.OrderBy, orderConfig)
	if err != nil {
		return ProfilePage{}, apperrors.WithMetadata(apperrors.CodeExpertOrderByInvalid, err.Error(), map[string]string{"OrderBy": input.OrderBy})
	}
	query.OrderBy = orderBy

	parsed, err := filter.Parse(input.Filter, FilterFields)
	if err != nil {
		return ProfilePage{}, apperrors.Wrap(apperrors.CodeExpertFilterInvalid, "filter is invalid", err)
	}
	query.Filter = parsed

	cursor, err := pagination.DecodeCursor(input.PageToken)
	if err != nil || (cursor.ID != "" && cursor.OrderBy != orderBy) {
		return ProfilePage{}, ErrPageTokenInvalid
	}
	query.Cursor = cursor

	return s.store.SearchExperts(ctx, query)
}

// SetVerified marks an expert as verified by the platform.
func (s *Service) SetVerified(ctx context.Context, actor domain.Actor, userID string, verified bool) (Profile, error) {
	if !actor.IsAdmin() {
		return Profile{}, ErrForbidden
	}
	return s.store.SetExpertVerified(ctx, strings.TrimSpace(userID), verified, s.deps.Now())
}

// NormalizeSkills lowercases, trims and de-duplicates skills, sorted.
func NormalizeSkills(values []string) ([]string, error) {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		skill := strings.ToLower(strings.TrimSpace(value))
		if skill == "" {
			continue
		}
		if utf8.RuneCountInString(skill) > maxSkillRunes {
			return nil, apperrors.New(apperrors.CodeInvalidArgument, "skill is too long")
		}
		if _, ok := seen[skill]; ok {
			continue
		}
		seen[skill] = struct{}{}
		out = append(out, skill)
	}
	if len(out) > maxSkills {
		return nil, ErrTooManySkills
	}
	sort.Strings(out)
	return out, nil
}

// NormalizeCurrency validates an ISO 4217 code and lowercases it.
func NormalizeCurrency(value string) (string, error) {
	currency := strings.ToLower(strings.TrimSpace(value))
	if len(currency) != 3 {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "currency must be a 3-letter ISO code")
	}
	for _, r := range currency {
		if r < 'a' || r > 'z' {
			return "", apperrors.New(apperrors.CodeInvalidArgument, "currency must be a 3-letter ISO code")
		}
	}
	return currency, nil
}
