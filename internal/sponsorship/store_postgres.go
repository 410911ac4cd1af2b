package sponsorship

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sponsorlink/pkg/platform/sentinel"
	txcontext "sponsorlink/pkg/platform/tx"
)

// PostgresStore persists sponsorships in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed sponsorship store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const sponsorshipColumns = `sponsor_code, sponsor_email, sponsor_name, child_id, child_name,
	child_photos, activation_status, lifecycle_status, visible,
	last_request_at, next_request_eligible_at, created_at, updated_at`

func (s *PostgresStore) FindActiveByCredentials(ctx context.Context, email, code string) (*Sponsorship, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+sponsorshipColumns+`
		FROM sponsorships
		WHERE lower(sponsor_email) = lower($1)
		  AND sponsor_code = $2
		  AND activation_status = 'active'
		  AND visible = true`,
		email, code)
	return scanSponsorship(row, "find sponsorship by credentials")
}

func (s *PostgresStore) FindActiveByCode(ctx context.Context, code string) (*Sponsorship, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+sponsorshipColumns+`
		FROM sponsorships
		WHERE sponsor_code = $1
		  AND activation_status = 'active'
		  AND visible = true`,
		code)
	return scanSponsorship(row, "find active sponsorship")
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*Sponsorship, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+sponsorshipColumns+`
		FROM sponsorships
		WHERE sponsor_code = $1`,
		code)
	return scanSponsorship(row, "get sponsorship")
}

func (s *PostgresStore) List(ctx context.Context) ([]*Sponsorship, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+sponsorshipColumns+`
		FROM sponsorships
		ORDER BY sponsor_code`)
	if err != nil {
		return nil, fmt.Errorf("list sponsorships: %w", err)
	}
	defer rows.Close()

	var out []*Sponsorship
	for rows.Next() {
		rec, err := scanSponsorship(rows, "list sponsorships")
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sponsorships: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, sp *Sponsorship) error {
	now := time.Now()
	created := sp.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := sp.UpdatedAt
	if updated.IsZero() {
		updated = now
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sponsorships (`+sponsorshipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (sponsor_code) DO UPDATE SET
			sponsor_email = EXCLUDED.sponsor_email,
			sponsor_name = EXCLUDED.sponsor_name,
			child_name = EXCLUDED.child_name,
			child_photos = EXCLUDED.child_photos,
			activation_status = EXCLUDED.activation_status,
			lifecycle_status = EXCLUDED.lifecycle_status,
			visible = EXCLUDED.visible,
			last_request_at = EXCLUDED.last_request_at,
			next_request_eligible_at = EXCLUDED.next_request_eligible_at,
			updated_at = EXCLUDED.updated_at`,
		sp.SponsorCode, sp.Email, sp.SponsorName, sp.ChildID, sp.ChildName,
		pq.Array(sp.ChildPhotos), string(sp.Activation), string(sp.Lifecycle), sp.Visible,
		sp.LastRequestAt, sp.NextRequestEligibleAt, created, updated)
	if err != nil {
		return fmt.Errorf("save sponsorship: %w", err)
	}
	return nil
}

// ClaimRequestSlot advances the eligibility fields in one conditional UPDATE.
// The WHERE clause is the whole concurrency story: of two simultaneous claims
// only one matches the pre-cooldown row.
func (s *PostgresStore) ClaimRequestSlot(ctx context.Context, code string, now time.Time, cooldown time.Duration) (*Claim, error) {
	next := now.Add(cooldown)
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE sponsorships
		SET last_request_at = $2,
		    next_request_eligible_at = $3,
		    updated_at = $2
		WHERE sponsor_code = $1
		  AND (next_request_eligible_at IS NULL OR next_request_eligible_at <= $2)`,
		code, now, next)
	if err != nil {
		return nil, fmt.Errorf("claim request slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim request slot: %w", err)
	}
	if affected == 1 {
		return &Claim{SponsorCode: code, RequestedAt: now, NextEligibleAt: next}, nil
	}

	// Zero rows: either the cooldown is still running or the code is unknown.
	var eligibleAt sql.NullTime
	err = s.q(ctx).QueryRowContext(ctx,
		`SELECT next_request_eligible_at FROM sponsorships WHERE sponsor_code = $1`,
		code).Scan(&eligibleAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim request slot: %w", err)
	}
	if eligibleAt.Valid {
		return nil, &ThrottledError{NextEligibleAt: eligibleAt.Time}
	}
	// The row existed but the claim lost to a concurrent writer between the
	// UPDATE and this read.
	return nil, sentinel.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSponsorship(row rowScanner, op string) (*Sponsorship, error) {
	var (
		sp         Sponsorship
		photos     pq.StringArray
		activation string
		lifecycle  string
		lastReq    sql.NullTime
		nextElig   sql.NullTime
	)
	err := row.Scan(&sp.SponsorCode, &sp.Email, &sp.SponsorName, &sp.ChildID, &sp.ChildName,
		&photos, &activation, &lifecycle, &sp.Visible,
		&lastReq, &nextElig, &sp.CreatedAt, &sp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sp.ChildPhotos = photos
	sp.Activation = ActivationStatus(activation)
	sp.Lifecycle = LifecycleStatus(lifecycle)
	if lastReq.Valid {
		sp.LastRequestAt = &lastReq.Time
	}
	if nextElig.Valid {
		sp.NextRequestEligibleAt = &nextElig.Time
	}
	return &sp, nil
}
