package httptransport

import (
	"encoding/json"
	"io"
	"net/http"

	dErrors "sponsorlink/pkg/domain-errors"
	"sponsorlink/pkg/platform/httputil"
	"sponsorlink/pkg/requestcontext"
)

type checkoutRequest struct {
	Email  string `json:"email"`
	Amount int    `json:"amount_cents"`
}

// handleCreateCheckout validates and rate-limits donation checkout intents.
// Session creation itself is the payment gateway's job; the portal returns
// the parameters the frontend hands to the gateway SDK.
func (h *Handler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Amount <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "amount_cents must be positive"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"email":        email,
		"amount_cents": req.Amount,
		"reference":    requestcontext.RequestID(r.Context()),
	})
}

// handlePaymentWebhook acknowledges gateway callbacks. The processor is an
// opaque source; reconciliation happens in the finance backend, not here.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable payload"))
		return
	}
	h.logger.InfoContext(r.Context(), "payment webhook received",
		"bytes", len(body),
		"request_id", requestcontext.RequestID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}
