// Package report runs the scheduled overdue-update scan. It is a read-only
// collaborator: it consumes the published-update listing and emits logs and a
// gauge, never touching review state.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"sponsorlink/internal/platform/metrics"
	"sponsorlink/internal/sponsorship"
	"sponsorlink/internal/update"
)

// Updates is the slice of the update service the reporter reads.
type Updates interface {
	ListAllPublished(ctx context.Context) ([]*update.Update, error)
}

// Sponsorships lists the relationships to evaluate.
type Sponsorships interface {
	List(ctx context.Context) ([]*sponsorship.Sponsorship, error)
}

// Reporter flags sponsorships whose child has not had a published update
// within the configured threshold.
type Reporter struct {
	updates      Updates
	sponsorships Sponsorships
	overdueAfter time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	cron         *cron.Cron
}

func New(updates Updates, sponsorships Sponsorships, overdueAfter time.Duration, logger *slog.Logger, m *metrics.Metrics) *Reporter {
	return &Reporter{
		updates:      updates,
		sponsorships: sponsorships,
		overdueAfter: overdueAfter,
		logger:       logger,
		metrics:      m,
	}
}

// Start schedules the scan with the given cron spec and runs until Stop.
func (r *Reporter) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := r.Run(ctx); err != nil {
			r.logger.Error("overdue scan failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop halts the schedule, waiting for a running scan to finish.
func (r *Reporter) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Run performs one scan. Exposed separately so an operator endpoint or test
// can trigger it without the schedule.
func (r *Reporter) Run(ctx context.Context) error {
	published, err := r.updates.ListAllPublished(ctx)
	if err != nil {
		return err
	}
	latest := make(map[string]time.Time, len(published))
	for _, u := range published {
		if t, ok := latest[u.ChildID]; !ok || u.SubmittedAt.After(t) {
			latest[u.ChildID] = u.SubmittedAt
		}
	}

	sponsorships, err := r.sponsorships.List(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-r.overdueAfter)
	overdue := 0
	for _, sp := range sponsorships {
		if sp.Lifecycle != sponsorship.LifecycleActive {
			continue
		}
		last, ok := latest[sp.ChildID]
		if !ok || last.Before(cutoff) {
			overdue++
			r.logger.Info("child overdue for update",
				"child_id", sp.ChildID,
				"last_published", last,
			)
		}
	}
	r.metrics.OverdueSponsorships.Set(float64(overdue))
	r.logger.Info("overdue scan complete",
		"sponsorships", len(sponsorships),
		"overdue", overdue,
	)
	return nil
}
