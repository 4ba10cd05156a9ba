package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/automatehub/automatehub/internal/platform/httpx"
	"github.com/automatehub/automatehub/internal/services/hub/auth"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
	"github.com/automatehub/automatehub/internal/services/hub/domain/conversation"
	"github.com/automatehub/automatehub/internal/services/hub/domain/dashboard"
	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification"
	"github.com/automatehub/automatehub/internal/services/hub/domain/payment"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
	"github.com/automatehub/automatehub/internal/services/hub/domain/review"
	"github.com/automatehub/automatehub/internal/services/hub/payments/fake"
	"github.com/automatehub/automatehub/internal/services/hub/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testAPI struct {
	server    *httptest.Server
	services  Services
	processor *fake.Processor
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)

	notifications := notification.NewService(store, domain.Deps{})
	deps := domain.Deps{Publisher: notification.NewBridge(notifications)}
	processor := fake.New("whsec_test")

	svc := Services{
		Accounts:      account.NewService(store, deps, bcrypt.MinCost),
		Experts:       expert.NewService(store, deps),
		Projects:      project.NewService(store, deps, "usd"),
		Reviews:       review.NewService(store, deps),
		Conversations: conversation.NewService(store, deps),
		Payments:      payment.NewService(store, processor, deps, payment.Config{FeeBPS: 1000}),
		Notifications: notifications,
		Dashboard:     dashboard.NewService(store, deps),
	}
	issuer, err := auth.NewIssuer(auth.IssuerConfig{Secret: testSecret, Issuer: "automatehub-test"})
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(Config{Logger: zap.NewNop(), Issuer: issuer, Ready: store.Ping}, svc))
	t.Cleanup(func() {
		server.Close()
		_ = store.Close()
	})
	return &testAPI{server: server, services: svc, processor: processor}
}

type response struct {
	status int
	body   []byte
}

func (api *testAPI) call(t *testing.T, method, path, token string, body any, headers ...string) response {
	t.Helper()

	var reader io.Reader
	switch value := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(value)
	case []byte:
		reader = bytes.NewReader(value)
	default:
		encoded, err := json.Marshal(value)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, api.server.URL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: raw}
}

func decode[T any](t *testing.T, resp response) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.body, &out), string(resp.body))
	return out
}

func errorCode(t *testing.T, resp response) string {
	t.Helper()
	return decode[httpx.ErrorBody](t, resp).Error.Code
}

type session struct {
	AccessToken string   `json:"access_token"`
	User        userView `json:"user"`
}

func (api *testAPI) register(t *testing.T, email, role string) session {
	t.Helper()
	resp := api.call(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct horse",
		"name":     email,
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	return decode[session](t, resp)
}

func (api *testAPI) admin(t *testing.T, email string) session {
	t.Helper()
	s := api.register(t, email, "client")
	_, err := api.services.Accounts.SetRole(context.Background(), nil, s.User.ID, string(domain.RoleAdmin))
	require.NoError(t, err)
	return s
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	resp := api.call(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.status)

	resp = api.call(t, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestRegisterLoginAndMe(t *testing.T) {
	api := newTestAPI(t)

	created := api.register(t, "Ana@Example.com", "client")
	assert.NotEmpty(t, created.AccessToken)
	assert.Equal(t, "ana@example.com", created.User.Email)
	assert.Equal(t, "client", created.User.Role)

	resp := api.call(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "ana@example.com", "password": "correct horse", "name": "Ana", "role": "client",
	})
	assert.Equal(t, http.StatusConflict, resp.status)

	resp = api.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = api.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.status)
	login := decode[session](t, resp)

	resp = api.call(t, http.MethodGet, "/api/v1/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, created.User.ID, decode[userView](t, resp).ID)

	resp = api.call(t, http.MethodPatch, "/api/v1/me", login.AccessToken, map[string]string{"name": "Ana Maria"})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Ana Maria", decode[userView](t, resp).Name)

	resp = api.call(t, http.MethodPost, "/api/v1/me/password", login.AccessToken, map[string]string{
		"current_password": "correct horse", "new_password": "battery staple",
	})
	assert.Equal(t, http.StatusNoContent, resp.status)

	resp = api.call(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	api := newTestAPI(t)

	resp := api.call(t, http.MethodPost, "/api/v1/auth/register", "", `{"email":"x@example.com","password":"correct horse","name":"x","role":"client","admin":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestErrorsAreLocalized(t *testing.T) {
	api := newTestAPI(t)

	en := api.call(t, http.MethodGet, "/api/v1/me", "", nil)
	pt := api.call(t, http.MethodGet, "/api/v1/me", "", nil, "Accept-Language", "pt-BR")
	require.Equal(t, http.StatusUnauthorized, pt.status)
	assert.Equal(t, errorCode(t, en), errorCode(t, pt))
	assert.NotEqual(t, decode[httpx.ErrorBody](t, en).Error.Message, decode[httpx.ErrorBody](t, pt).Error.Message)
}

func TestExpertProfileAndSearch(t *testing.T) {
	api := newTestAPI(t)
	client := api.register(t, "client@example.com", "client")
	exp := api.register(t, "expert@example.com", "expert")

	update := map[string]any{
		"headline":          "Zapier specialist",
		"skills":            []string{"CRM", "Webhooks"},
		"platforms":         []string{"zapier", "make"},
		"hourly_rate_cents": 8000,
		"availability":      "available",
	}
	resp := api.call(t, http.MethodPut, "/api/v1/experts/me", client.AccessToken, update)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPut, "/api/v1/experts/me", exp.AccessToken, update)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	profile := decode[profileView](t, resp)
	assert.Equal(t, "Zapier specialist", profile.Headline)
	assert.ElementsMatch(t, []string{"zapier", "make"}, profile.Platforms)

	resp = api.call(t, http.MethodGet, "/api/v1/experts?platform=zapier&max_rate=9000", "", nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	found := decode[page[profileView]](t, resp)
	require.Len(t, found.Items, 1)
	assert.Equal(t, exp.User.ID, found.Items[0].UserID)

	resp = api.call(t, http.MethodGet, "/api/v1/experts?max_rate=5000", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Empty(t, decode[page[profileView]](t, resp).Items)

	resp = api.call(t, http.MethodGet, "/api/v1/experts?min_rating=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = api.call(t, http.MethodGet, "/api/v1/experts/"+exp.User.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, exp.User.ID, decode[profileView](t, resp).UserID)
}

// hireExpert walks a project from creation to an accepted proposal.
func (api *testAPI) hireExpert(t *testing.T, client, exp session) projectView {
	t.Helper()

	resp := api.call(t, http.MethodPost, "/api/v1/projects", exp.AccessToken, map[string]any{
		"title": "nope", "description": "experts cannot post projects", "budget_cents": 1000,
	})
	require.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPost, "/api/v1/projects", client.AccessToken, map[string]any{
		"title":        "Sync CRM leads",
		"description":  "Push new HubSpot leads into a Google Sheet.",
		"platforms":    []string{"zapier"},
		"budget_cents": 50000,
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	created := decode[projectView](t, resp)
	assert.Equal(t, "open", created.Status)
	assert.Equal(t, "usd", created.Currency)

	resp = api.call(t, http.MethodGet, "/api/v1/projects?platform=zapier", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, decode[page[projectView]](t, resp).Items, 1)

	base := "/api/v1/projects/" + created.ID
	resp = api.call(t, http.MethodPost, base+"/proposals", exp.AccessToken, map[string]any{
		"cover_letter": "I have built this exact zap many times.", "bid_cents": 45000, "estimated_days": 3,
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	proposal := decode[proposalView](t, resp)

	resp = api.call(t, http.MethodGet, base+"/proposals", client.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, decode[itemsResponse[proposalView]](t, resp).Items, 1)

	resp = api.call(t, http.MethodPost, base+"/proposals/"+proposal.ID+"/accept", client.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	accepted := decode[acceptProposalResponse](t, resp)
	assert.Equal(t, "in_progress", accepted.Project.Status)
	assert.Equal(t, exp.User.ID, accepted.Project.ExpertID)
	assert.Equal(t, "accepted", accepted.Proposal.Status)
	return accepted.Project
}

func TestProjectLifecycleWithReview(t *testing.T) {
	api := newTestAPI(t)
	client := api.register(t, "client@example.com", "client")
	exp := api.register(t, "expert@example.com", "expert")
	proj := api.hireExpert(t, client, exp)
	base := "/api/v1/projects/" + proj.ID

	resp := api.call(t, http.MethodPost, base+"/reviews", client.AccessToken, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status, "reviews need a completed project")

	resp = api.call(t, http.MethodPost, base+"/complete", exp.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPost, base+"/complete", client.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.Equal(t, "completed", decode[projectView](t, resp).Status)

	resp = api.call(t, http.MethodPost, base+"/reviews", client.AccessToken, map[string]any{"rating": 4, "comment": "Solid work"})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))

	resp = api.call(t, http.MethodGet, "/api/v1/experts/"+exp.User.ID+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	reviews := decode[page[reviewView]](t, resp)
	require.Len(t, reviews.Items, 1)
	assert.Equal(t, 4, reviews.Items[0].Rating)

	resp = api.call(t, http.MethodGet, "/api/v1/experts/"+exp.User.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	profile := decode[profileView](t, resp)
	assert.Equal(t, 1, profile.ReviewCount)
	assert.InDelta(t, 4.0, profile.RatingAverage, 0.001)

	resp = api.call(t, http.MethodGet, "/api/v1/projects/mine?status=completed", exp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, decode[page[projectView]](t, resp).Items, 1)
}

func TestNotificationsInbox(t *testing.T) {
	api := newTestAPI(t)
	client := api.register(t, "client@example.com", "client")
	exp := api.register(t, "expert@example.com", "expert")
	api.hireExpert(t, client, exp)

	resp := api.call(t, http.MethodGet, "/api/v1/notifications", exp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	inbox := decode[struct {
		Items       []json.RawMessage `json:"items"`
		UnreadCount int               `json:"unread_count"`
	}](t, resp)
	require.Len(t, inbox.Items, 2)
	assert.Equal(t, 2, inbox.UnreadCount)

	type item struct {
		ID    string `json:"id"`
		Topic string `json:"topic"`
		Title string `json:"title"`
	}
	var latest item
	for _, raw := range inbox.Items {
		var candidate item
		require.NoError(t, json.Unmarshal(raw, &candidate))
		if candidate.Topic == notification.TopicProposalAccepted {
			latest = candidate
		}
	}
	require.NotEmpty(t, latest.ID)
	assert.NotEmpty(t, latest.Title)

	resp = api.call(t, http.MethodPost, "/api/v1/notifications/"+latest.ID+"/read", client.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.status, "other users' notifications are invisible")

	resp = api.call(t, http.MethodPost, "/api/v1/notifications/"+latest.ID+"/read", exp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))

	count, err := api.services.Notifications.UnreadCount(context.Background(), exp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConversationsAndMessages(t *testing.T) {
	api := newTestAPI(t)
	client := api.register(t, "client@example.com", "client")
	exp := api.register(t, "expert@example.com", "expert")
	outsider := api.register(t, "outsider@example.com", "client")

	resp := api.call(t, http.MethodPost, "/api/v1/conversations", client.AccessToken, map[string]string{"participant_id": exp.User.ID})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	conv := decode[conversationView](t, resp)

	resp = api.call(t, http.MethodPost, "/api/v1/conversations", exp.AccessToken, map[string]string{"participant_id": client.User.ID})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, conv.ID, decode[conversationView](t, resp).ID)

	messages := "/api/v1/conversations/" + conv.ID + "/messages"
	resp = api.call(t, http.MethodPost, messages, client.AccessToken, map[string]string{"body": "hello", "client_message_id": "c-1"})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	first := decode[sendMessageResponse](t, resp)
	assert.Equal(t, int64(1), first.Message.Sequence)
	assert.False(t, first.Duplicate)

	resp = api.call(t, http.MethodPost, messages, client.AccessToken, map[string]string{"body": "hello", "client_message_id": "c-1"})
	require.Equal(t, http.StatusOK, resp.status)
	again := decode[sendMessageResponse](t, resp)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Message.ID, again.Message.ID)

	resp = api.call(t, http.MethodPost, messages, exp.AccessToken, map[string]string{"body": "hi there", "client_message_id": "e-1"})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = api.call(t, http.MethodGet, messages+"?limit=10", client.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	listed := decode[itemsResponse[json.RawMessage]](t, resp)
	assert.Len(t, listed.Items, 2)

	resp = api.call(t, http.MethodGet, messages, outsider.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/read", client.AccessToken, map[string]int64{"sequence": 2})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))

	resp = api.call(t, http.MethodGet, "/api/v1/conversations", client.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	summaries := decode[page[conversationView]](t, resp)
	require.Len(t, summaries.Items, 1)
	assert.Equal(t, int64(2), summaries.Items[0].LastReadSequence)
	assert.Equal(t, 0, summaries.Items[0].UnreadCount)
}

func TestPaymentsWithWebhookAndRefund(t *testing.T) {
	api := newTestAPI(t)
	client := api.register(t, "client@example.com", "client")
	exp := api.register(t, "expert@example.com", "expert")
	admin := api.admin(t, "admin@example.com")
	proj := api.hireExpert(t, client, exp)
	create := "/api/v1/projects/" + proj.ID + "/payments"

	resp := api.call(t, http.MethodPost, create, exp.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPost, create, client.AccessToken, nil, IdempotencyKeyHeader, "pay-1")
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	created := decode[paymentView](t, resp)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, int64(45000), created.AmountCents)
	assert.Equal(t, int64(4500), created.FeeCents)
	assert.NotEmpty(t, created.ClientSecret)

	resp = api.call(t, http.MethodPost, create, client.AccessToken, nil, IdempotencyKeyHeader, "pay-1")
	require.Equal(t, http.StatusCreated, resp.status)
	assert.Equal(t, created.ID, decode[paymentView](t, resp).ID)

	payload, signature := api.processor.Event("evt_1", payment.EventIntentSucceeded, created.ProcessorRef)
	resp = api.call(t, http.MethodPost, "/api/v1/webhooks/stripe", "", payload, WebhookSignatureHeader, "bad")
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = api.call(t, http.MethodPost, "/api/v1/webhooks/stripe", "", payload, WebhookSignatureHeader, signature)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	applied := decode[webhookResponse](t, resp)
	assert.True(t, applied.Applied)
	assert.Equal(t, "succeeded", applied.Status)

	resp = api.call(t, http.MethodPost, "/api/v1/webhooks/stripe", "", payload, WebhookSignatureHeader, signature)
	require.Equal(t, http.StatusOK, resp.status)
	assert.False(t, decode[webhookResponse](t, resp).Applied)

	resp = api.call(t, http.MethodGet, "/api/v1/payments/"+created.ID, exp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	got := decode[paymentView](t, resp)
	assert.Equal(t, "succeeded", got.Status)
	assert.Empty(t, got.ClientSecret)

	resp = api.call(t, http.MethodGet, "/api/v1/payments", client.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, decode[page[paymentView]](t, resp).Items, 1)

	refund := "/api/v1/admin/payments/" + created.ID + "/refund"
	resp = api.call(t, http.MethodPost, refund, client.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPost, refund, admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.Equal(t, "refunded", decode[paymentView](t, resp).Status)
	assert.True(t, api.processor.Refunded(created.ProcessorRef))
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	client := api.register(t, "client@example.com", "client")
	exp := api.register(t, "expert@example.com", "expert")
	admin := api.admin(t, "admin@example.com")

	resp := api.call(t, http.MethodGet, "/api/v1/admin/stats", client.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodGet, "/api/v1/admin/stats", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	stats := decode[dashboard.Stats](t, resp)
	assert.Equal(t, 1, stats.UsersByRole["expert"])
	assert.Equal(t, 1, stats.UsersByRole["admin"])

	resp = api.call(t, http.MethodGet, "/api/v1/admin/users?role=expert", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	users := decode[page[userView]](t, resp)
	require.Len(t, users.Items, 1)
	assert.Equal(t, exp.User.ID, users.Items[0].ID)

	resp = api.call(t, http.MethodPost, "/api/v1/admin/experts/"+exp.User.ID+"/verify", admin.AccessToken, map[string]bool{"verified": true})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.True(t, decode[profileView](t, resp).Verified)

	resp = api.call(t, http.MethodPost, "/api/v1/admin/users/"+client.User.ID+"/status", admin.AccessToken, map[string]string{"status": "suspended"})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.Equal(t, "suspended", decode[userView](t, resp).Status)

	resp = api.call(t, http.MethodGet, "/api/v1/me", client.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status, "suspension applies to live tokens")
}

func TestAdminResolvesDispute(t *testing.T) {
	api := newTestAPI(t)
	client := api.register(t, "client@example.com", "client")
	exp := api.register(t, "expert@example.com", "expert")
	admin := api.admin(t, "admin@example.com")
	proj := api.hireExpert(t, client, exp)

	resp := api.call(t, http.MethodPost, "/api/v1/projects/"+proj.ID+"/dispute", exp.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.Equal(t, "disputed", decode[projectView](t, resp).Status)

	resolve := "/api/v1/admin/projects/" + proj.ID + "/resolve"
	resp = api.call(t, http.MethodPost, resolve, admin.AccessToken, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = api.call(t, http.MethodPost, resolve, admin.AccessToken, map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.Equal(t, "cancelled", decode[projectView](t, resp).Status)
}
