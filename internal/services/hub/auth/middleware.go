package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/httpx"
	"github.com/automatehub/automatehub/internal/platform/requestctx"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
	"go.uber.org/zap"
)

// TokenCookieName is the cookie the SPA may use instead of a bearer header.
const TokenCookieName = "ah_token"

// accessTokenParam carries the token on WebSocket upgrades, where browsers
// cannot set headers.
const accessTokenParam = "access_token"

// UserLookup loads the current account state of a token subject.
type UserLookup interface {
	Get(ctx context.Context, userID string) (account.User, error)
}

// Middleware authenticates requests.
type Middleware struct {
	issuer *Issuer
	users  UserLookup
	logger *zap.Logger
}

// NewMiddleware builds request authentication around issuer.
func NewMiddleware(issuer *Issuer, users UserLookup, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{issuer: issuer, users: users, logger: logger}
}

// RequestToken returns the token from the Authorization header, the session
// cookie, or (for WebSocket upgrades) the access_token query parameter.
func RequestToken(r *http.Request) string {
	if token := httpx.BearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return strings.TrimSpace(r.URL.Query().Get(accessTokenParam))
	}
	return ""
}

// Authenticate resolves the caller of r. The role comes from the stored
// account, so role changes and suspensions apply to live tokens.
func (m *Middleware) Authenticate(r *http.Request) (requestctx.Principal, error) {
	claims, err := m.issuer.Verify(RequestToken(r))
	if err != nil {
		return requestctx.Principal{}, err
	}
	user, err := m.users.Get(r.Context(), claims.UserID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeUserNotFound {
			return requestctx.Principal{}, ErrInvalidToken
		}
		return requestctx.Principal{}, err
	}
	if user.Status == account.StatusSuspended {
		return requestctx.Principal{}, account.ErrAccountSuspended
	}
	return requestctx.Principal{UserID: user.ID, Role: string(user.Role)}, nil
}

// Require rejects unauthenticated requests and stores the principal in the
// request context.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.Authenticate(r)
		if err != nil {
			httpx.WriteError(w, r, m.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithPrincipal(r.Context(), principal)))
	})
}

// RequireRole admits only principals holding one of roles. It must run after
// Require.
func RequireRole(logger *zap.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed = append(allowed, string(role))
	}
	needed := strings.Join(allowed, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := requestctx.PrincipalFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, r, logger, ErrMissingToken)
				return
			}
			if !slices.Contains(allowed, principal.Role) {
				httpx.WriteError(w, r, logger, apperrors.WithMetadata(apperrors.CodeRoleRequired, "role not permitted", map[string]string{"Role": needed}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActorFromContext converts the request principal into a domain actor.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	principal, ok := requestctx.PrincipalFromContext(ctx)
	if !ok {
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: principal.UserID, Role: domain.Role(principal.Role)}, true
}
