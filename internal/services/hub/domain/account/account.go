// Package account implements registration, sign-in and user administration.
package account

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/platform/pagination"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
)

const (
	minPasswordBytes = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
	maxNameRunes     = 120
	maxEmailBytes    = 254
)

var (
	ErrEmailInvalid       = apperrors.New(apperrors.CodeEmailInvalid, "email is invalid")
	ErrEmailTaken         = apperrors.New(apperrors.CodeEmailTaken, "email is already registered")
	ErrPasswordInvalid    = apperrors.WithMetadata(apperrors.CodePasswordInvalid, "password length is out of range", map[string]string{"Min": "8", "Max": "72"})
	ErrNameRequired       = apperrors.New(apperrors.CodeNameRequired, "name is required")
	ErrRoleInvalid        = apperrors.New(apperrors.CodeRoleInvalid, "role is invalid")
	ErrStatusInvalid      = apperrors.New(apperrors.CodeStatusInvalid, "status is invalid")
	ErrInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "invalid credentials")
	ErrAccountSuspended   = apperrors.New(apperrors.CodeAccountSuspended, "account is suspended")
	ErrUserNotFound       = apperrors.New(apperrors.CodeUserNotFound, "user not found")
	ErrAvatarURLInvalid   = apperrors.New(apperrors.CodeAvatarURLInvalid, "avatar url is invalid")
	ErrPasswordMismatch   = apperrors.New(apperrors.CodePasswordUnchangeable, "current password does not match")
	ErrForbidden          = apperrors.New(apperrors.CodeForbidden, "admin role required")
	ErrPageTokenInvalid   = apperrors.New(apperrors.CodeInvalidArgument, "page token is invalid")
)

// Status is the lifecycle state of a user.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// ParseStatus normalizes value into a known status.
func ParseStatus(value string) (Status, bool) {
	switch status := Status(strings.ToLower(strings.TrimSpace(value))); status {
	case StatusActive, StatusSuspended:
		return status, true
	default:
		return "", false
	}
}

// User is a marketplace account.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         domain.Role
	Status       Status
	AvatarURL    string
	Locale       string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPage is one page of users.
type UserPage struct {
	Users         []User
	NextPageToken string
}

// ListQuery filters the admin user listing.
type ListQuery struct {
	Role     domain.Role
	Status   Status
	PageSize int
	Cursor   pagination.Cursor
}

// Store persists users. Creating an expert user also creates its empty
// expert profile in the same transaction.
type Store interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, user User) error
	ListUsers(ctx context.Context, query ListQuery) (UserPage, error)
}

// RegisterInput describes a self-service sign-up.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// ProfileInput updates the caller's own profile. Nil fields are unchanged.
type ProfileInput struct {
	Name      *string
	AvatarURL *string
	Locale    *string
}

// ListInput configures the admin user listing.
type ListInput struct {
	Role      string
	Status    string
	PageSize  int
	PageToken string
}

// Service implements account use-cases.
type Service struct {
	store      Store
	deps       domain.Deps
	bcryptCost int
}

// NewService constructs account use-cases. A zero bcryptCost uses bcrypt.DefaultCost.
func NewService(store Store, deps domain.Deps, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, deps: deps.WithDefaults(), bcryptCost: bcryptCost}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a client or expert account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email, err := validateEmail(input.Email)
	if err != nil {
		return User{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return User{}, err
	}
	name, err := validateName(input.Name)
	if err != nil {
		return User{}, err
	}
	role, ok := domain.ParseRole(input.Role)
	if !ok || role == domain.RoleAdmin {
		return User{}, ErrRoleInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	userID, err := s.deps.NewID()
	if err != nil {
		return User{}, err
	}
	now := s.deps.Now()
	user := User{
		ID:           userID,
		Email:        email,
		Name:         name,
		Role:         role,
		Status:       StatusActive,
		Locale:       "en-US",
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return User{}, err
	}

	s.deps.Publish(ctx, events.Event{
		Type:       events.TypeUserRegistered,
		Key:        user.ID,
		Payload:    map[string]string{"user_id": user.ID, "role": string(user.Role)},
		OccurredAt: now,
	})
	s.deps.Logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Authenticate verifies credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if user.Status == StatusSuspended {
		return User{}, ErrAccountSuspended
	}
	return user, nil
}

// Get loads one user.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, ErrUserNotFound
	}
	return s.store.GetUser(ctx, userID)
}

// FindByEmail loads one user by login email.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrUserNotFound
	}
	return s.store.GetUserByEmail(ctx, email)
}

// UpdateProfile changes the caller's display fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return User{}, err
		}
		user.Name = name
	}
	if input.AvatarURL != nil {
		avatar, err := validateAvatarURL(*input.AvatarURL)
		if err != nil {
			return User{}, err
		}
		user.AvatarURL = avatar
	}
	if input.Locale != nil {
		tag, err := language.Parse(strings.TrimSpace(*input.Locale))
		if err != nil {
			return User{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "locale is invalid", err)
		}
		user.Locale = tag.String()
	}
	user.UpdatedAt = s.deps.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ChangePassword replaces the caller's password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrPasswordMismatch
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.deps.Now()
	return s.store.UpdateUser(ctx, user)
}

// List pages through users for admins.
func (s *Service) List(ctx context.Context, actor domain.Actor, input ListInput) (UserPage, error) {
	if !actor.IsAdmin() {
		return UserPage{}, ErrForbidden
	}
	query := ListQuery{
		PageSize: pagination.ClampPageSize(input.PageSize, pagination.PageSizeConfig{Default: 50, Max: 200}),
	}
	if strings.TrimSpace(input.Role) != "" {
		role, ok := domain.ParseRole(input.Role)
		if !ok {
			return UserPage{}, ErrRoleInvalid
		}
		query.Role = role
	}
	if strings.TrimSpace(input.Status) != "" {
		status, ok := ParseStatus(input.Status)
		if !ok {
			return UserPage{}, ErrStatusInvalid
		}
		query.Status = status
	}
	cursor, err := pagination.DecodeCursor(input.PageToken)
	if err != nil {
		return UserPage{}, ErrPageTokenInvalid
	}
	query.Cursor = cursor
	return s.store.ListUsers(ctx, query)
}

// SetStatus suspends or reactivates a user. Admins cannot suspend themselves.
func (s *Service) SetStatus(ctx context.Context, actor domain.Actor, userID, status string) (User, error) {
	if !actor.IsAdmin() {
		return User{}, ErrForbidden
	}
	next, ok := ParseStatus(status)
	if !ok {
		return User{}, ErrStatusInvalid
	}
	if userID == actor.UserID && next == StatusSuspended {
		return User{}, apperrors.New(apperrors.CodeInvalidArgument, "admins cannot suspend themselves")
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	user.Status = next
	user.UpdatedAt = s.deps.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// SetRole changes a user's role. actor may be nil for operator tooling.
func (s *Service) SetRole(ctx context.Context, actor *domain.Actor, userID, role string) (User, error) {
	if actor != nil && !actor.IsAdmin() {
		return User{}, ErrForbidden
	}
	next, ok := domain.ParseRole(role)
	if !ok {
		return User{}, ErrRoleInvalid
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	user.Role = next
	user.UpdatedAt = s.deps.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func validateEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	if email == "" || len(email) > maxEmailBytes {
		return "", ErrEmailInvalid
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", ErrEmailInvalid
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordBytes || len(password) > maxPasswordBytes {
		return ErrPasswordInvalid
	}
	return nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
		return "", ErrNameRequired
	}
	return name, nil
}

func validateAvatarURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", nil
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", ErrAvatarURLInvalid
	}
	return value, nil
}
