// Package admintoken authenticates the review backend against a single shared
// secret. There is one admin role and no enumeration risk, so failures return
// a plain "unauthorized"; lockout is the rate limiter's job, not this one's.
package admintoken

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"sponsorlink/internal/platform/metrics"
	"sponsorlink/pkg/requestcontext"
)

// FormField is the form-submitted token field accepted by the form entry point.
const FormField = "adminPassword"

// Verifier compares candidate tokens against the configured secret in
// constant time.
type Verifier struct {
	secret []byte
}

// New builds a Verifier. An empty secret is allowed but every verification
// will fail: the component fails closed, never open.
func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify reports whether candidate matches the configured secret.
//
// subtle.ConstantTimeCompare short-circuits on length mismatch, which would
// leak the secret's length. When lengths differ we still burn a comparison of
// the candidate against itself before returning false, so timing is flat
// across both length and content mismatches.
func (v *Verifier) Verify(candidate string) bool {
	if len(v.secret) == 0 {
		// No secret configured: equalize timing and fail.
		c := []byte(candidate)
		subtle.ConstantTimeCompare(c, c)
		return false
	}

	c := []byte(candidate)
	if len(c) != len(v.secret) {
		subtle.ConstantTimeCompare(c, c)
		return false
	}
	return subtle.ConstantTimeCompare(c, v.secret) == 1
}

// FromHeader extracts the candidate token from the request headers:
// X-Admin-Token first, then Authorization: Bearer.
func FromHeader(r *http.Request) string {
	if t := r.Header.Get("X-Admin-Token"); t != "" {
		return t
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// FromForm extracts the form-submitted token.
func FromForm(r *http.Request) string {
	return r.PostFormValue(FormField)
}

// Middleware rejects requests whose header or form token does not verify.
func Middleware(v *Verifier, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := FromHeader(r)
			if token == "" {
				token = FromForm(r)
			}
			if !v.Verify(token) {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				m.AdminAuthFailures.Inc()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
