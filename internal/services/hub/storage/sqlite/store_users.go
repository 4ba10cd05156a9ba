package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
)

const userColumns = `id, email, name, role, status, avatar_url, locale, password_hash, created_at, updated_at`

// CreateUser inserts a user. Expert users get an empty profile in the same
// transaction.
func (s *Store) CreateUser(ctx context.Context, user account.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "create user", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			user.ID,
			strings.ToLower(strings.TrimSpace(user.Email)),
			user.Name,
			string(user.Role),
			string(user.Status),
			user.AvatarURL,
			user.Locale,
			user.PasswordHash,
			toMillis(user.CreatedAt),
			toMillis(user.UpdatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return account.ErrEmailTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if user.Role == domain.RoleExpert {
			return ensureExpertProfile(ctx, tx, user)
		}
		return nil
	})
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (account.User, error) {
	if err := s.ready(ctx); err != nil {
		return account.User{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, strings.TrimSpace(userID))
	user, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.User{}, account.ErrUserNotFound
		}
		return account.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail loads a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	if err := s.ready(ctx); err != nil {
		return account.User{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	user, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.User{}, account.ErrUserNotFound
		}
		return account.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// UpdateUser replaces the mutable user columns. A user promoted to expert
// gets an empty profile when none exists yet.
func (s *Store) UpdateUser(ctx context.Context, user account.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "update user", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE users
SET name = ?, role = ?, status = ?, avatar_url = ?, locale = ?, password_hash = ?, updated_at = ?
WHERE id = ?
`,
			user.Name,
			string(user.Role),
			string(user.Status),
			user.AvatarURL,
			user.Locale,
			user.PasswordHash,
			toMillis(user.UpdatedAt),
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return account.ErrUserNotFound
		}
		if user.Role == domain.RoleExpert {
			return ensureExpertProfile(ctx, tx, user)
		}
		return nil
	})
}

// ListUsers pages through users, newest first.
func (s *Store) ListUsers(ctx context.Context, query account.ListQuery) (account.UserPage, error) {
	if err := s.ready(ctx); err != nil {
		return account.UserPage{}, err
	}
	if query.PageSize <= 0 {
		return account.UserPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var (
		where []string
		args  []any
	)
	if query.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(query.Role))
	}
	if query.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(query.Status))
	}
	if query.Cursor.ID != "" {
		key, ok := millisCursor(query.Cursor)
		if !ok {
			return account.UserPage{}, account.ErrPageTokenInvalid
		}
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, key, key, query.Cursor.ID)
	}

	statement := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		statement += " WHERE " + strings.Join(where, " AND ")
	}
	statement += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, query.PageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return account.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	page := account.UserPage{Users: make([]account.User, 0, query.PageSize)}
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return account.UserPage{}, fmt.Errorf("scan user row: %w", err)
		}
		page.Users = append(page.Users, user)
	}
	if err := rows.Err(); err != nil {
		return account.UserPage{}, fmt.Errorf("iterate user rows: %w", err)
	}
	if len(page.Users) > query.PageSize {
		last := page.Users[query.PageSize-1]
		page.NextPageToken = millisToken(last.CreatedAt, last.ID)
		page.Users = page.Users[:query.PageSize]
	}
	return page, nil
}

func ensureExpertProfile(ctx context.Context, execer sqlExecer, user account.User) error {
	_, err := execer.ExecContext(ctx, `
INSERT INTO expert_profiles (user_id, created_at, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(user_id) DO NOTHING
`, user.ID, toMillis(user.UpdatedAt), toMillis(user.UpdatedAt))
	if err != nil {
		return fmt.Errorf("ensure expert profile: %w", err)
	}
	return nil
}

func scanUser(scan scanner) (account.User, error) {
	var (
		user      account.User
		role      string
		status    string
		createdAt int64
		updatedAt int64
	)
	if err := scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&role,
		&status,
		&user.AvatarURL,
		&user.Locale,
		&user.PasswordHash,
		&createdAt,
		&updatedAt,
	); err != nil {
		return account.User{}, err
	}
	user.Role = domain.Role(role)
	user.Status = account.Status(status)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}
