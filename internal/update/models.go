package update

import "time"

// Kind enumerates the report types the field team produces.
type Kind string

const (
	KindProgressReport  Kind = "progress_report"
	KindPhotoUpdate     Kind = "photo_update"
	KindSpecialNote     Kind = "special_note"
	KindHolidayGreeting Kind = "holiday_greeting"
	KindMilestone       Kind = "milestone"
)

// ValidKind reports whether k is a known update kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindProgressReport, KindPhotoUpdate, KindSpecialNote, KindHolidayGreeting, KindMilestone:
		return true
	}
	return false
}

// ReviewStatus drives the review workflow. Visible is true exactly when the
// status is Published.
type ReviewStatus string

const (
	StatusDraft           ReviewStatus = "draft"
	StatusPendingReview   ReviewStatus = "pending_review"
	StatusPublished       ReviewStatus = "published"
	StatusRejected        ReviewStatus = "rejected"
	StatusNeedsCorrection ReviewStatus = "needs_correction"
)

// Update is one field/academic/photo report tied to a child. Rows are never
// deleted or rewritten after review; a correction is a new row linked to its
// predecessor through the supersede pair.
type Update struct {
	ID      string `json:"id"`
	ChildID string `json:"child_id"`

	// SponsorCode is set when the update originated from a sponsor request.
	SponsorCode string `json:"sponsor_code,omitempty"`

	Kind   Kind     `json:"kind"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Photos []string `json:"photos,omitempty"`

	Status  ReviewStatus `json:"status"`
	Visible bool         `json:"visible"`

	RequestedBySponsor bool       `json:"requested_by_sponsor"`
	RequestedAt        *time.Time `json:"requested_at,omitempty"`

	PublishedAt     *time.Time `json:"published_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	// SupersedesID/SupersededByID form the linear correction chain. Both
	// sides are written in one transaction when a correction is created.
	SupersedesID   string `json:"supersedes_update_id,omitempty"`
	SupersededByID string `json:"superseded_by_update_id,omitempty"`

	SubmittedBy string    `json:"submitted_by"`
	SubmittedAt time.Time `json:"submitted_at"`
}
