package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sponsorlink/internal/session"
	"sponsorlink/internal/sponsorship"
	"sponsorlink/internal/update"
	dErrors "sponsorlink/pkg/domain-errors"
	"sponsorlink/pkg/platform/httputil"
	"sponsorlink/pkg/platform/privacy"
	"sponsorlink/pkg/requestcontext"
)

type loginRequest struct {
	Email       string `json:"email"`
	SponsorCode string `json:"sponsor_code"`
}

type requestUpdateRequest struct {
	Note string `json:"note"`
}

type throttledResponse struct {
	Error          string    `json:"error"`
	Message        string    `json:"message"`
	NextEligibleAt time.Time `json:"next_eligible_at"`
	RetryAfter     int       `json:"retry_after"`
}

// handleLogin verifies sponsor credentials and issues the session cookie.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	code, err := normalizeSponsorCode(req.SponsorCode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sp, err := h.sponsorships.VerifyCredentials(ctx, email, code)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeUnauthorized) {
			h.metrics.LoginsFailed.Inc()
			h.logger.InfoContext(ctx, "login rejected",
				"email", privacy.MaskEmail(email),
				"sponsor_code", privacy.MaskSponsorCode(code),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	if err := h.sessions.Issue(w, sp); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.metrics.LoginsSucceeded.Inc()
	httputil.WriteJSON(w, http.StatusOK, sp)
}

// handleLogout clears the cookie. Always succeeds: there is nothing to revoke
// server-side.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the authenticated sponsorship profile.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sp, ok := session.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, session.ErrUnauthenticated)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sp)
}

// handleListUpdates returns published updates for the sponsor's own child.
func (h *Handler) handleListUpdates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sp, ok := session.FromContext(ctx)
	if !ok {
		httputil.WriteError(w, session.ErrUnauthenticated)
		return
	}

	updates, err := h.updates.ListForChild(ctx, sp.ChildID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if updates == nil {
		updates = []*update.Update{}
	}
	httputil.WriteJSON(w, http.StatusOK, updates)
}

// handleLatestUpdate returns the newest published update for the sponsor's
// child, 404 when none has been published yet.
func (h *Handler) handleLatestUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sp, ok := session.FromContext(ctx)
	if !ok {
		httputil.WriteError(w, session.ErrUnauthenticated)
		return
	}

	rec, err := h.updates.MostRecentForChild(ctx, sp.ChildID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// handleRequestUpdate files a new update request, subject to the cooldown.
func (h *Handler) handleRequestUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sp, ok := session.FromContext(ctx)
	if !ok {
		httputil.WriteError(w, session.ErrUnauthenticated)
		return
	}

	var req requestUpdateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	note := sanitizeText(req.Note, maxBodyLen)

	created, err := h.updates.Request(ctx, sp, note)
	if err != nil {
		var throttled *sponsorship.ThrottledError
		if errors.As(err, &throttled) {
			writeThrottled(w, throttled.NextEligibleAt)
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, created)
}

func writeThrottled(w http.ResponseWriter, nextEligibleAt time.Time) {
	retryAfter := int(time.Until(nextEligibleAt).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &throttledResponse{
		Error:          "rate_limited",
		Message:        "An update was requested recently. Please try again later.",
		NextEligibleAt: nextEligibleAt,
		RetryAfter:     retryAfter,
	})
}
