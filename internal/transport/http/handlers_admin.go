package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sponsorlink/internal/update"
	dErrors "sponsorlink/pkg/domain-errors"
	"sponsorlink/pkg/platform/httputil"
)

type submitUpdateRequest struct {
	ChildID     string   `json:"child_id"`
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Photos      []string `json:"photos"`
	SubmittedBy string   `json:"submitted_by"`
}

type rejectUpdateRequest struct {
	Reason string `json:"reason"`
}

// handleSubmitUpdate records a field-team submission into the review queue.
func (h *Handler) handleSubmitUpdate(w http.ResponseWriter, r *http.Request) {
	in, err := decodeSubmitInput(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.updates.Submit(r.Context(), *in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// handleListPending returns the review queue.
func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.updates.ListPending(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if pending == nil {
		pending = []*update.Update{}
	}
	httputil.WriteJSON(w, http.StatusOK, pending)
}

// handleGetUpdate returns one update by id.
func (h *Handler) handleGetUpdate(w http.ResponseWriter, r *http.Request) {
	rec, err := h.updates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// handlePublishUpdate publishes a pending update.
func (h *Handler) handlePublishUpdate(w http.ResponseWriter, r *http.Request) {
	rec, err := h.updates.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// handleRejectUpdate rejects a pending update with a reason.
func (h *Handler) handleRejectUpdate(w http.ResponseWriter, r *http.Request) {
	var req rejectUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	reason := sanitizeText(req.Reason, maxBodyLen)

	rec, err := h.updates.Reject(r.Context(), chi.URLParam(r, "id"), reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// handleCorrectUpdate files a corrected resubmission superseding a rejected
// update.
func (h *Handler) handleCorrectUpdate(w http.ResponseWriter, r *http.Request) {
	in, err := decodeSubmitInput(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.updates.Correct(r.Context(), chi.URLParam(r, "id"), *in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// handleListSponsorships returns every sponsorship for the admin backend.
func (h *Handler) handleListSponsorships(w http.ResponseWriter, r *http.Request) {
	recs, err := h.sponsorships.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recs)
}

func decodeSubmitInput(r *http.Request) (*update.SubmitInput, error) {
	var req submitUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}

	childID, err := requireText(req.ChildID, "child_id", maxNameLen)
	if err != nil {
		return nil, err
	}
	title, err := requireText(req.Title, "title", maxTitleLen)
	if err != nil {
		return nil, err
	}
	body, err := requireText(req.Body, "body", maxBodyLen)
	if err != nil {
		return nil, err
	}
	submittedBy, err := requireText(req.SubmittedBy, "submitted_by", maxNameLen)
	if err != nil {
		return nil, err
	}

	return &update.SubmitInput{
		ChildID:     childID,
		Kind:        update.Kind(req.Kind),
		Title:       title,
		Body:        body,
		Photos:      req.Photos,
		SubmittedBy: submittedBy,
	}, nil
}
