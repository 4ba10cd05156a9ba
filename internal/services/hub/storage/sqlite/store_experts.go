package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/automatehub/automatehub/internal/platform/filter"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
)

const profileSelect = `
SELECT p.user_id, u.name, u.avatar_url, p.headline, p.bio, p.hourly_rate_cents, p.currency,
       p.availability, p.verified, p.rating_average, p.review_count,
       (SELECT COUNT(*) FROM projects c WHERE c.expert_id = p.user_id AND c.status = 'completed'),
       p.created_at, p.updated_at
FROM expert_profiles p
JOIN users u ON u.id = p.user_id
`

// profileFilterColumns maps search filter fields onto profile columns.
var profileFilterColumns = map[string]string{
	"rating":       "p.rating_average",
	"rate":         "p.hourly_rate_cents",
	"reviews":      "p.review_count",
	"completed":    "(SELECT COUNT(*) FROM projects c WHERE c.expert_id = p.user_id AND c.status = 'completed')",
	"verified":     "p.verified",
	"availability": "p.availability",
	"currency":     "p.currency",
	"headline":     "p.headline",
	"display_name": "u.name",
}

// GetExpertProfile loads the profile of an expert user.
func (s *Store) GetExpertProfile(ctx context.Context, userID string) (expert.Profile, error) {
	if err := s.ready(ctx); err != nil {
		return expert.Profile{}, err
	}
	return getExpertProfile(ctx, s.sqlDB, strings.TrimSpace(userID))
}

func getExpertProfile(ctx context.Context, q sqlQueryer, userID string) (expert.Profile, error) {
	row := q.QueryRowContext(ctx, profileSelect+`WHERE p.user_id = ? AND u.role = 'expert'`, userID)
	profile, err := scanProfile(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return expert.Profile{}, expert.ErrNotFound
		}
		return expert.Profile{}, fmt.Errorf("get expert profile: %w", err)
	}
	profiles := []expert.Profile{profile}
	if err := loadProfileLists(ctx, q, profiles); err != nil {
		return expert.Profile{}, err
	}
	return profiles[0], nil
}

// UpdateExpertProfile replaces the editable profile fields, skills and
// platforms.
func (s *Store) UpdateExpertProfile(ctx context.Context, profile expert.Profile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "update expert profile", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE expert_profiles
SET headline = ?, bio = ?, hourly_rate_cents = ?, currency = ?, availability = ?, updated_at = ?
WHERE user_id = ?
`,
			profile.Headline,
			profile.Bio,
			profile.HourlyRateCents,
			profile.Currency,
			string(profile.Availability),
			toMillis(profile.UpdatedAt),
			profile.UserID,
		)
		if err != nil {
			return fmt.Errorf("update expert profile: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return expert.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM expert_skills WHERE user_id = ?`, profile.UserID); err != nil {
			return fmt.Errorf("clear expert skills: %w", err)
		}
		for _, skill := range profile.Skills {
			if _, err := tx.ExecContext(ctx, `INSERT INTO expert_skills (user_id, skill) VALUES (?, ?)`, profile.UserID, skill); err != nil {
				return fmt.Errorf("insert expert skill: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM expert_platforms WHERE user_id = ?`, profile.UserID); err != nil {
			return fmt.Errorf("clear expert platforms: %w", err)
		}
		for i, platform := range profile.Platforms {
			if _, err := tx.ExecContext(ctx, `INSERT INTO expert_platforms (user_id, position, platform) VALUES (?, ?, ?)`, profile.UserID, i, string(platform)); err != nil {
				return fmt.Errorf("insert expert platform: %w", err)
			}
		}
		return nil
	})
}

// SetExpertVerified toggles the verified badge.
func (s *Store) SetExpertVerified(ctx context.Context, userID string, verified bool, updatedAt time.Time) (expert.Profile, error) {
	if err := s.ready(ctx); err != nil {
		return expert.Profile{}, err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE expert_profiles SET verified = ?, updated_at = ?
WHERE user_id = ? AND EXISTS (SELECT 1 FROM users u WHERE u.id = expert_profiles.user_id AND u.role = 'expert')
`, verified, toMillis(updatedAt), userID)
	if err != nil {
		return expert.Profile{}, fmt.Errorf("set expert verified: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return expert.Profile{}, expert.ErrNotFound
	}
	return getExpertProfile(ctx, s.sqlDB, userID)
}

// SearchExperts runs a discovery search over active experts.
func (s *Store) SearchExperts(ctx context.Context, query expert.SearchQuery) (expert.ProfilePage, error) {
	if err := s.ready(ctx); err != nil {
		return expert.ProfilePage{}, err
	}
	if query.PageSize <= 0 {
		return expert.ProfilePage{}, fmt.Errorf("page size must be greater than zero")
	}

	where := []string{"u.role = 'expert'", "u.status = 'active'"}
	var args []any
	if query.Query != "" {
		like := "%" + filter.EscapeLike(strings.ToLower(query.Query)) + "%"
		where = append(where, `(LOWER(u.name) LIKE ? ESCAPE '\' OR LOWER(p.headline) LIKE ? ESCAPE '\' OR LOWER(p.bio) LIKE ? ESCAPE '\'
  OR EXISTS (SELECT 1 FROM expert_skills qs WHERE qs.user_id = p.user_id AND qs.skill LIKE ? ESCAPE '\'))`)
		args = append(args, like, like, like, like)
	}
	if query.Skill != "" {
		where = append(where, "EXISTS (SELECT 1 FROM expert_skills sk WHERE sk.user_id = p.user_id AND sk.skill = ?)")
		args = append(args, query.Skill)
	}
	if query.Platform != "" {
		where = append(where, "EXISTS (SELECT 1 FROM expert_platforms pl WHERE pl.user_id = p.user_id AND pl.platform = ?)")
		args = append(args, string(query.Platform))
	}
	if query.MinRating > 0 {
		where = append(where, "p.rating_average >= ?")
		args = append(args, query.MinRating)
	}
	if query.MaxRateCents > 0 {
		where = append(where, "p.hourly_rate_cents <= ?")
		args = append(args, query.MaxRateCents)
	}
	if query.AvailableOnly {
		where = append(where, "p.availability = ?")
		args = append(args, string(expert.Available))
	}
	if query.Filter != nil {
		condition, err := filter.ToSQL(query.Filter, profileFilterColumns)
		if err != nil {
			return expert.ProfilePage{}, expert.ErrFilterInvalid
		}
		if !condition.Empty() {
			where = append(where, "("+condition.Clause+")")
			args = append(args, condition.Params...)
		}
	}

	order, err := profileOrder(query.OrderBy)
	if err != nil {
		return expert.ProfilePage{}, err
	}
	if query.Cursor.ID != "" {
		clause, cursorArgs, err := order.after(query.Cursor)
		if err != nil {
			return expert.ProfilePage{}, expert.ErrPageTokenInvalid
		}
		where = append(where, clause)
		args = append(args, cursorArgs...)
	}

	statement := profileSelect + "WHERE " + strings.Join(where, " AND ") + " ORDER BY " + order.orderBy + " LIMIT ?"
	args = append(args, query.PageSize+1)
	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return expert.ProfilePage{}, fmt.Errorf("search experts: %w", err)
	}
	defer rows.Close()

	page := expert.ProfilePage{Profiles: make([]expert.Profile, 0, query.PageSize)}
	for rows.Next() {
		profile, err := scanProfile(rows.Scan)
		if err != nil {
			return expert.ProfilePage{}, fmt.Errorf("scan expert row: %w", err)
		}
		page.Profiles = append(page.Profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return expert.ProfilePage{}, fmt.Errorf("iterate expert rows: %w", err)
	}
	if len(page.Profiles) > query.PageSize {
		last := page.Profiles[query.PageSize-1]
		page.NextPageToken = pagination.EncodeCursor(pagination.Cursor{
			Key:     order.key(last),
			ID:      last.UserID,
			OrderBy: query.OrderBy,
		})
		page.Profiles = page.Profiles[:query.PageSize]
	}
	if err := loadProfileLists(ctx, s.sqlDB, page.Profiles); err != nil {
		return expert.ProfilePage{}, err
	}
	return page, nil
}

// profileOrdering describes one keyset ordering of expert profiles.
type profileOrdering struct {
	orderBy string
	column  string
	// descending sorts the key high to low; idDesc does the same for the
	// user_id tiebreak.
	descending bool
	idDesc     bool
	parse      func(string) (any, error)
	key        func(expert.Profile) string
}

func parseFloatKey(value string) (any, error) { return strconv.ParseFloat(value, 64) }
func parseIntKey(value string) (any, error)   { return strconv.ParseInt(value, 10, 64) }

func profileOrder(orderBy string) (profileOrdering, error) {
	switch orderBy {
	case "", expert.OrderRating:
		return profileOrdering{
			orderBy:    "p.rating_average DESC, p.user_id ASC",
			column:     "p.rating_average",
			descending: true,
			parse:      parseFloatKey,
			key: func(p expert.Profile) string {
				return strconv.FormatFloat(p.RatingAverage, 'g', -1, 64)
			},
		}, nil
	case expert.OrderReviews:
		return profileOrdering{
			orderBy:    "p.review_count DESC, p.user_id ASC",
			column:     "p.review_count",
			descending: true,
			parse:      parseIntKey,
			key:        func(p expert.Profile) string { return strconv.Itoa(p.ReviewCount) },
		}, nil
	case expert.OrderRate:
		return profileOrdering{
			orderBy: "p.hourly_rate_cents ASC, p.user_id ASC",
			column:  "p.hourly_rate_cents",
			parse:   parseIntKey,
			key:     func(p expert.Profile) string { return strconv.FormatInt(p.HourlyRateCents, 10) },
		}, nil
	case expert.OrderNewest:
		return profileOrdering{
			orderBy:    "p.created_at DESC, p.user_id DESC",
			column:     "p.created_at",
			descending: true,
			idDesc:     true,
			parse:      parseIntKey,
			key:        func(p expert.Profile) string { return strconv.FormatInt(toMillis(p.CreatedAt), 10) },
		}, nil
	default:
		return profileOrdering{}, fmt.Errorf("unsupported expert order %q", orderBy)
	}
}

func (o profileOrdering) after(cursor pagination.Cursor) (string, []any, error) {
	value, err := o.parse(cursor.Key)
	if err != nil {
		return "", nil, err
	}
	keyOp, idOp := ">", ">"
	if o.descending {
		keyOp = "<"
	}
	if o.idDesc {
		idOp = "<"
	}
	clause := fmt.Sprintf("(%s %s ? OR (%s = ? AND p.user_id %s ?))", o.column, keyOp, o.column, idOp)
	return clause, []any{value, value, cursor.ID}, nil
}

func scanProfile(scan scanner) (expert.Profile, error) {
	var (
		profile      expert.Profile
		availability string
		verified     int
		createdAt    int64
		updatedAt    int64
	)
	if err := scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.Headline,
		&profile.Bio,
		&profile.HourlyRateCents,
		&profile.Currency,
		&availability,
		&verified,
		&profile.RatingAverage,
		&profile.ReviewCount,
		&profile.CompletedProjects,
		&createdAt,
		&updatedAt,
	); err != nil {
		return expert.Profile{}, err
	}
	profile.Availability = expert.Availability(availability)
	profile.Verified = verified != 0
	profile.CreatedAt = fromMillis(createdAt)
	profile.UpdatedAt = fromMillis(updatedAt)
	profile.Skills = []string{}
	profile.Platforms = []expert.Platform{}
	return profile, nil
}

// loadProfileLists fills skills and platforms for profiles in place.
func loadProfileLists(ctx context.Context, q sqlQueryer, profiles []expert.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	index := make(map[string]int, len(profiles))
	args := make([]any, 0, len(profiles))
	for i, profile := range profiles {
		index[profile.UserID] = i
		args = append(args, profile.UserID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(profiles)), ",")

	rows, err := q.QueryContext(ctx, `SELECT user_id, skill FROM expert_skills WHERE user_id IN (`+placeholders+`) ORDER BY user_id, skill`, args...)
	if err != nil {
		return fmt.Errorf("list expert skills: %w", err)
	}
	for rows.Next() {
		var userID, skill string
		if err := rows.Scan(&userID, &skill); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan expert skill: %w", err)
		}
		i := index[userID]
		profiles[i].Skills = append(profiles[i].Skills, skill)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate expert skills: %w", err)
	}
	_ = rows.Close()

	rows, err = q.QueryContext(ctx, `SELECT user_id, platform FROM expert_platforms WHERE user_id IN (`+placeholders+`) ORDER BY user_id, position`, args...)
	if err != nil {
		return fmt.Errorf("list expert platforms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID, platform string
		if err := rows.Scan(&userID, &platform); err != nil {
			return fmt.Errorf("scan expert platform: %w", err)
		}
		i := index[userID]
		profiles[i].Platforms = append(profiles[i].Platforms, expert.Platform(platform))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate expert platforms: %w", err)
	}
	return nil
}
