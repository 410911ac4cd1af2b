package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"sponsorlink/internal/platform/metrics"
	"sponsorlink/pkg/platform/httputil"
	"sponsorlink/pkg/platform/privacy"
	"sponsorlink/pkg/requestcontext"
)

// Middleware wires the limiter into the HTTP chain.
type Middleware struct {
	limiter  *Limiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns rate limiting off entirely (testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func NewMiddleware(limiter *Limiter, logger *slog.Logger, mt *metrics.Metrics, opts ...Option) *Middleware {
	m := &Middleware{limiter: limiter, logger: logger, metrics: mt}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit guards an endpoint class. On a store failure the request proceeds:
// the limiter is a defense layer, not an availability dependency.
func (m *Middleware) Limit(class EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.limiter.Check(ctx, ip, class)
			if err != nil {
				m.logger.Error("rate limit check failed",
					"error", err,
					"class", string(class),
					"ip_prefix", privacy.AnonymizeIP(ip),
				)
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, result)

			if !result.Allowed {
				m.metrics.RateLimitDenials.WithLabelValues(string(class)).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, &ExceededResponse{
					Error:      "rate_limited",
					Message:    "Too many requests. Please try again later.",
					RetryAfter: result.RetryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addHeaders(w http.ResponseWriter, result *Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
