// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services; transport concerns (decoding, validation, status mapping) stay
// here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sponsorlink/internal/admintoken"
	"sponsorlink/internal/platform/metrics"
	"sponsorlink/internal/platform/middleware"
	"sponsorlink/internal/ratelimit"
	"sponsorlink/internal/session"
	"sponsorlink/internal/sponsorship"
	"sponsorlink/internal/update"
)

// SponsorshipService is the sponsorship surface the transport consumes.
type SponsorshipService interface {
	VerifyCredentials(ctx context.Context, email, code string) (*sponsorship.Sponsorship, error)
	List(ctx context.Context) ([]*sponsorship.Sponsorship, error)
}

// UpdateService is the update lifecycle surface the transport consumes.
type UpdateService interface {
	Submit(ctx context.Context, in update.SubmitInput) (*update.Update, error)
	Request(ctx context.Context, sp *sponsorship.Sponsorship, note string) (*update.Update, error)
	Publish(ctx context.Context, id string) (*update.Update, error)
	Reject(ctx context.Context, id, reason string) (*update.Update, error)
	Correct(ctx context.Context, supersededID string, in update.SubmitInput) (*update.Update, error)
	ListForChild(ctx context.Context, childID string) ([]*update.Update, error)
	MostRecentForChild(ctx context.Context, childID string) (*update.Update, error)
	ListPending(ctx context.Context) ([]*update.Update, error)
	Get(ctx context.Context, id string) (*update.Update, error)
}

// Handler holds the wired dependencies for all endpoints.
type Handler struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	sponsorships SponsorshipService
	updates      UpdateService
	sessions     *session.Manager
	adminAuth    *admintoken.Verifier
	rateLimits   *ratelimit.Middleware
}

func NewHandler(
	logger *slog.Logger,
	m *metrics.Metrics,
	sponsorships SponsorshipService,
	updates UpdateService,
	sessions *session.Manager,
	adminAuth *admintoken.Verifier,
	rateLimits *ratelimit.Middleware,
) *Handler {
	return &Handler{
		logger:       logger,
		metrics:      m,
		sponsorships: sponsorships,
		updates:      updates,
		sessions:     sessions,
		adminAuth:    adminAuth,
		rateLimits:   rateLimits,
	}
}

// NewRouter wires all endpoints. The order inside each route group is fixed:
// rate limit, then validation, then auth, then the domain operation.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/portal", func(r chi.Router) {
		r.With(h.rateLimits.Limit(ratelimit.ClassLogin)).Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)

		// The limiter must engage before the session middleware: Verify hits
		// the store, and an unauthenticated flood must stall at the limit.
		r.With(
			h.rateLimits.Limit(ratelimit.ClassSubmission),
			h.sessions.Middleware(),
		).Post("/updates/request", h.handleRequestUpdate)

		r.Group(func(r chi.Router) {
			r.Use(h.sessions.Middleware())
			r.Get("/me", h.handleMe)
			r.Get("/updates", h.handleListUpdates)
			r.Get("/updates/latest", h.handleLatestUpdate)
		})
	})

	r.With(h.rateLimits.Limit(ratelimit.ClassCheckout)).Post("/checkout/session", h.handleCreateCheckout)
	r.Post("/webhooks/payment", h.handlePaymentWebhook)

	r.Route("/admin", func(r chi.Router) {
		adminAuth := admintoken.Middleware(h.adminAuth, h.logger, h.metrics)

		// Same ordering constraint as the portal submission route.
		r.With(
			h.rateLimits.Limit(ratelimit.ClassSubmission),
			adminAuth,
		).Post("/updates", h.handleSubmitUpdate)

		r.Group(func(r chi.Router) {
			r.Use(adminAuth)
			r.Get("/updates/pending", h.handleListPending)
			r.Get("/updates/{id}", h.handleGetUpdate)
			r.Post("/updates/{id}/publish", h.handlePublishUpdate)
			r.Post("/updates/{id}/reject", h.handleRejectUpdate)
			r.Post("/updates/{id}/correct", h.handleCorrectUpdate)
			r.Get("/sponsorships", h.handleListSponsorships)
		})
	})

	return r
}
