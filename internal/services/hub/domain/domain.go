// Package domain holds the types shared by the hub's domain services.
package domain

import (
	"context"
	"strings"
	"time"

	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/platform/id"
	"go.uber.org/zap"
)

// Role is the marketplace role of a user.
type Role string

const (
	RoleClient Role = "client"
	RoleExpert Role = "expert"
	RoleAdmin  Role = "admin"
)

// ParseRole normalizes value into a known role.
func ParseRole(value string) (Role, bool) {
	switch role := Role(strings.ToLower(strings.TrimSpace(value))); role {
	case RoleClient, RoleExpert, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// Actor identifies the authenticated caller of a use-case.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Deps bundles the collaborators every domain service takes.
type Deps struct {
	Clock     func() time.Time
	NewID     func() (string, error)
	Publisher events.Publisher
	Logger    *zap.Logger
}

// WithDefaults fills unset collaborators.
func (d Deps) WithDefaults() Deps {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.NewID == nil {
		d.NewID = id.NewID
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Now returns the current UTC time truncated to milliseconds, the precision
// the store keeps.
func (d Deps) Now() time.Time {
	return d.Clock().UTC().Truncate(time.Millisecond)
}

// Publish emits events and logs delivery failures; domain writes never fail
// because of the event bus.
func (d Deps) Publish(ctx context.Context, evts ...events.Event) {
	if err := d.Publisher.Publish(ctx, evts...); err != nil {
		d.Logger.Warn("publish domain events", zap.Error(err))
	}
}
