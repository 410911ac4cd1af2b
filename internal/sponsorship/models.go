package sponsorship

import "time"

// ActivationStatus gates whether a sponsorship can be used for login.
type ActivationStatus string

const (
	ActivationActive    ActivationStatus = "active"
	ActivationInactive  ActivationStatus = "inactive"
	ActivationSuspended ActivationStatus = "suspended"
)

// LifecycleStatus tracks where the donor-child relationship stands. It is
// informational for the portal; only ActivationStatus gates authentication.
type LifecycleStatus string

const (
	LifecycleActive          LifecycleStatus = "active"
	LifecyclePaused          LifecycleStatus = "paused"
	LifecycleEnded           LifecycleStatus = "ended"
	LifecycleAwaitingSponsor LifecycleStatus = "awaiting_sponsor"
)

// Sponsorship identifies one donor-to-child relationship. The sponsor code is
// globally unique and immutable once assigned; records are updated in place
// and ended, never deleted.
type Sponsorship struct {
	SponsorCode string `json:"sponsor_code"`
	Email       string `json:"email"`
	SponsorName string `json:"sponsor_name,omitempty"`

	ChildID     string   `json:"child_id"`
	ChildName   string   `json:"child_name"`
	ChildPhotos []string `json:"child_photos,omitempty"`

	Activation ActivationStatus `json:"activation_status"`
	Lifecycle  LifecycleStatus  `json:"lifecycle_status"`
	Visible    bool             `json:"visible"`

	LastRequestAt         *time.Time `json:"last_request_at,omitempty"`
	NextRequestEligibleAt *time.Time `json:"next_request_eligible_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Authenticatable reports whether the record may back a session: active and
// visible, nothing else. Every privileged request re-checks this.
func (s *Sponsorship) Authenticatable() bool {
	return s.Activation == ActivationActive && s.Visible
}
