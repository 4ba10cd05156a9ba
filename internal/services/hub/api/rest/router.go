// Package rest serves the marketplace JSON API.
package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/httpx"
	"github.com/automatehub/automatehub/internal/platform/timeouts"
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
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// WebhookSignatureHeader carries the processor's webhook signature.
const WebhookSignatureHeader = "Stripe-Signature"

// Services are the domain use-cases behind the API.
type Services struct {
	Accounts      *account.Service
	Experts       *expert.Service
	Projects      *project.Service
	Reviews       *review.Service
	Conversations *conversation.Service
	Payments      *payment.Service
	Notifications *notification.Service
	Dashboard     *dashboard.Service
}

// Config wires the router.
type Config struct {
	Logger         *zap.Logger
	Issuer         *auth.Issuer
	AllowedOrigins []string
	// Realtime serves GET /ws when set.
	Realtime http.Handler
	// Ready backs /healthz when set.
	Ready      func(ctx context.Context) error
	TracerName string
}

type handlers struct {
	svc    Services
	issuer *auth.Issuer
	logger *zap.Logger
	ready  func(ctx context.Context) error
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(cfg Config, svc Services) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracerName := cfg.TracerName
	if tracerName == "" {
		tracerName = "automatehub/rest"
	}
	h := &handlers{svc: svc, issuer: cfg.Issuer, logger: logger, ready: cfg.Ready}
	authn := auth.NewMiddleware(cfg.Issuer, svc.Accounts, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpx.Recover(logger))
	r.Use(httpx.Trace(tracerName))
	r.Use(httpx.AccessLog(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: len(cfg.AllowedOrigins) > 0,
		MaxAge:           300,
	}))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, logger, apperrors.New(apperrors.CodeNotFound, "route not found"))
	})

	r.Get("/healthz", h.healthz)
	if cfg.Realtime != nil {
		r.Method(http.MethodGet, "/ws", cfg.Realtime)
	}

	requireAdmin := auth.RequireRole(logger, domain.RoleAdmin)
	requireClient := auth.RequireRole(logger, domain.RoleClient)
	requireExpert := auth.RequireRole(logger, domain.RoleExpert)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(timeouts.Request))

		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
		r.Post("/webhooks/stripe", h.paymentWebhook)

		r.Get("/experts", h.searchExperts)
		r.Get("/experts/{id}", h.getExpert)
		r.Get("/experts/{id}/reviews", h.listExpertReviews)
		r.Get("/projects", h.listOpenProjects)

		r.Group(func(r chi.Router) {
			r.Use(authn.Require)

			r.Get("/me", h.getMe)
			r.Patch("/me", h.updateMe)
			r.Post("/me/password", h.changePassword)

			r.With(requireExpert).Put("/experts/me", h.updateExpertProfile)

			r.With(requireClient).Post("/projects", h.createProject)
			r.Get("/projects/mine", h.listMyProjects)
			r.Route("/projects/{id}", func(r chi.Router) {
				r.Get("/", h.getProject)
				r.Patch("/", h.updateProject)
				r.Post("/complete", h.completeProject)
				r.Post("/cancel", h.cancelProject)
				r.Post("/dispute", h.disputeProject)
				r.Get("/proposals", h.listProposals)
				r.With(requireExpert).Post("/proposals", h.submitProposal)
				r.Post("/proposals/{pid}/accept", h.acceptProposal)
				r.Post("/proposals/{pid}/withdraw", h.withdrawProposal)
				r.With(requireClient).Post("/reviews", h.createReview)
				r.With(requireClient).Post("/payments", h.createPayment)
			})

			r.Get("/conversations", h.listConversations)
			r.Post("/conversations", h.startConversation)
			r.Get("/conversations/{id}/messages", h.listMessages)
			r.Post("/conversations/{id}/messages", h.sendMessage)
			r.Post("/conversations/{id}/read", h.markConversationRead)

			r.Get("/notifications", h.listNotifications)
			r.Post("/notifications/{id}/read", h.markNotificationRead)

			r.Get("/payments", h.listPayments)
			r.Get("/payments/{id}", h.getPayment)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/stats", h.adminStats)
				r.Get("/users", h.adminListUsers)
				r.Post("/users/{id}/status", h.adminSetUserStatus)
				r.Post("/experts/{id}/verify", h.adminVerifyExpert)
				r.Post("/projects/{id}/resolve", h.adminResolveProject)
				r.Post("/payments/{id}/refund", h.adminRefundPayment)
			})
		})
	})
	return r
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(w, r, h.logger, err)
}

// actor returns the authenticated caller. Routes behind Require always
// have one.
func actor(r *http.Request) domain.Actor {
	a, _ := auth.ActorFromContext(r.Context())
	return a
}

func pathID(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}

func queryString(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := queryString(r, name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "invalid integer query parameter", map[string]string{"Param": name})
	}
	return value, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := queryString(r, name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "invalid number query parameter", map[string]string{"Param": name})
	}
	return value, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := queryString(r, name)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "invalid boolean query parameter", map[string]string{"Param": name})
	}
	return value, nil
}

// pageParams reads page_size and page_token.
func pageParams(r *http.Request) (int, string, error) {
	size, err := httpx.QueryInt(r, "page_size")
	if err != nil {
		return 0, "", err
	}
	return size, queryString(r, "page_token"), nil
}
