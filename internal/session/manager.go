// Package session issues and validates the sponsor session cookie. The cookie
// is the only session state: an HS256-signed payload of email, sponsor code,
// and absolute expiry. The server never stores sessions; on every privileged
// request the bound sponsor code is re-resolved against live sponsorship
// state, so deactivating a sponsorship lazily invalidates its sessions.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sponsorlink/internal/platform/metrics"
	"sponsorlink/internal/sponsorship"
	dErrors "sponsorlink/pkg/domain-errors"
	"sponsorlink/pkg/platform/privacy"
	"sponsorlink/pkg/requestcontext"
)

// CookieName is fixed; the admin backend and tests rely on it.
const CookieName = "sponsorlink_session"

// Data is the decoded session payload.
type Data struct {
	Email       string
	SponsorCode string
	Expires     time.Time
}

type claims struct {
	Email       string `json:"email"`
	SponsorCode string `json:"sponsor_code"`
	jwt.RegisteredClaims
}

// Resolver re-checks the sponsorship a session is bound to.
type Resolver interface {
	ResolveActive(ctx context.Context, code string) (*sponsorship.Sponsorship, error)
}

// Manager mints and validates session cookies.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
	secure     bool
	resolver   Resolver
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New builds a Manager. secure=false only makes sense for local development
// without TLS.
func New(signingKey string, ttl time.Duration, secure bool, resolver Resolver, logger *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		secure:     secure,
		resolver:   resolver,
		logger:     logger,
		metrics:    m,
	}
}

// Issue mints a session for the sponsorship and sets the cookie on w.
func (m *Manager) Issue(w http.ResponseWriter, sp *sponsorship.Sponsorship) error {
	now := time.Now()
	expires := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:       sp.Email,
		SponsorCode: sp.SponsorCode,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "session signing failed", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read decodes the session cookie from r. Absent, malformed, and expired
// cookies all read as nil; none of those is an error condition.
func (m *Manager) Read(r *http.Request) *Data {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(cookie.Value, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil
	}
	if c.ExpiresAt == nil || !c.ExpiresAt.After(time.Now()) {
		return nil
	}
	return &Data{Email: c.Email, SponsorCode: c.SponsorCode, Expires: c.ExpiresAt.Time}
}

// Verify reads the cookie and re-resolves the bound sponsor code against live
// sponsorship state. The token alone is never sufficient proof.
func (m *Manager) Verify(ctx context.Context, r *http.Request) *sponsorship.Sponsorship {
	data := m.Read(r)
	if data == nil {
		m.metrics.SessionsRejected.Inc()
		return nil
	}

	sp, err := m.resolver.ResolveActive(ctx, data.SponsorCode)
	if err != nil {
		m.metrics.SessionsRejected.Inc()
		if !dErrors.Is(err, dErrors.CodeUnauthorized) {
			m.logger.ErrorContext(ctx, "session re-check failed",
				"error", err,
				"sponsor_code", privacy.MaskSponsorCode(data.SponsorCode),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil
	}
	m.metrics.SessionsVerified.Inc()
	return sp
}

// ErrUnauthenticated reports a privileged request without a usable session.
var ErrUnauthenticated = dErrors.New(dErrors.CodeUnauthorized, "authentication required")

// RequireAuth is Verify with a hard failure instead of nil.
func (m *Manager) RequireAuth(ctx context.Context, r *http.Request) (*sponsorship.Sponsorship, error) {
	sp := m.Verify(ctx, r)
	if sp == nil {
		return nil, ErrUnauthenticated
	}
	return sp, nil
}

// VerifyForCode reports whether a live session exists that is bound to
// exactly the supplied sponsor code. A valid session for sponsor A never
// authorizes actions on sponsor B's resources.
func (m *Manager) VerifyForCode(ctx context.Context, r *http.Request, code string) bool {
	sp := m.Verify(ctx, r)
	return sp != nil && sp.SponsorCode == code
}

// Clear deletes the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware enforces RequireAuth and stashes the sponsorship in the request
// context for handlers downstream.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sp, err := m.RequireAuth(ctx, r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"authentication required"}`))
				return
			}
			ctx = withSponsorship(ctx, sp)
			ctx = requestcontext.WithSponsorCode(ctx, sp.SponsorCode)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type sponsorshipKey struct{}

func withSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) context.Context {
	return context.WithValue(ctx, sponsorshipKey{}, sp)
}

// FromContext returns the authenticated sponsorship placed by Middleware.
func FromContext(ctx context.Context) (*sponsorship.Sponsorship, bool) {
	sp, ok := ctx.Value(sponsorshipKey{}).(*sponsorship.Sponsorship)
	return sp, ok
}
