// Package ratelimit is the coarse per-endpoint request guard. It runs before
// validation and auth so unauthenticated flooding never reaches the store.
// The per-sponsorship request cooldown is a separate concern and lives with
// the sponsorship component.
package ratelimit

import "time"

// EndpointClass partitions endpoints into independently limited groups.
type EndpointClass string

const (
	ClassLogin      EndpointClass = "login"
	ClassCheckout   EndpointClass = "checkout"
	ClassSubmission EndpointClass = "submission"
)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter int // seconds, meaningful when denied
	ResetAt    time.Time
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
