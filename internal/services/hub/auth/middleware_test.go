package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/automatehub/automatehub/internal/platform/httpx"
	"github.com/automatehub/automatehub/internal/platform/requestctx"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
	"github.com/automatehub/automatehub/internal/services/hub/domain/domaintest"
)

type fakeUsers map[string]account.User

func (f fakeUsers) Get(_ context.Context, userID string) (account.User, error) {
	user, ok := f[userID]
	if !ok {
		return account.User{}, account.ErrUserNotFound
	}
	return user, nil
}

func newTestMiddleware(t *testing.T) (*Middleware, *Issuer) {
	t.Helper()
	issuer := newTestIssuer(t, domaintest.NewClock(time.Now()))
	users := fakeUsers{
		"client-1": {ID: "client-1", Role: domain.RoleClient, Status: account.StatusActive},
		"admin-1":  {ID: "admin-1", Role: domain.RoleAdmin, Status: account.StatusActive},
		"banned":   {ID: "banned", Role: domain.RoleClient, Status: account.StatusSuspended},
	}
	return NewMiddleware(issuer, users, zap.NewNop()), issuer
}

func issue(t *testing.T, issuer *Issuer, userID string, role domain.Role) string {
	t.Helper()
	token, err := issuer.Issue(userID, role)
	require.NoError(t, err)
	return token.AccessToken
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestRequire_SetsPrincipalFromStoredAccount(t *testing.T) {
	t.Parallel()

	mw, issuer := newTestMiddleware(t)
	var seen requestctx.Principal
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestctx.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// The token still says client; the stored account is authoritative.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, issuer, "admin-1", domain.RoleClient))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, requestctx.Principal{UserID: "admin-1", Role: "admin"}, seen)
}

func TestRequire_Rejections(t *testing.T) {
	t.Parallel()

	mw, issuer := newTestMiddleware(t)
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{name: "missing", status: http.StatusUnauthorized, code: "UNAUTHENTICATED"},
		{name: "garbage", token: "abc", status: http.StatusUnauthorized, code: "AUTH_TOKEN_INVALID"},
		{name: "suspended", token: issue(t, issuer, "banned", domain.RoleClient), status: http.StatusForbidden, code: "ACCOUNT_SUSPENDED"},
		{name: "deleted user", token: issue(t, issuer, "ghost", domain.RoleClient), status: http.StatusUnauthorized, code: "AUTH_TOKEN_INVALID"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, tc.status, rec.Code, tc.name)
		require.Equal(t, tc.code, errorCode(t, rec), tc.name)
	}
}

func TestRequestToken_Sources(t *testing.T) {
	t.Parallel()

	cookieReq := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieReq.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "from-cookie"})
	require.Equal(t, "from-cookie", RequestToken(cookieReq))

	queryReq := httptest.NewRequest(http.MethodGet, "/ws?access_token=from-query", nil)
	require.Empty(t, RequestToken(queryReq), "query tokens are only read on upgrades")
	queryReq.Header.Set("Upgrade", "websocket")
	require.Equal(t, "from-query", RequestToken(queryReq))

	headerReq := httptest.NewRequest(http.MethodGet, "/ws?access_token=from-query", nil)
	headerReq.Header.Set("Upgrade", "websocket")
	headerReq.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", RequestToken(headerReq))
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	mw, issuer := newTestMiddleware(t)
	handler := mw.Require(RequireRole(zap.NewNop(), domain.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for userID, want := range map[string]int{"admin-1": http.StatusNoContent, "client-1": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, issuer, userID, domain.RoleClient))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, userID)
	}
}
