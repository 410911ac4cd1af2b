package update

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

// PostgresStore persists updates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed update store.
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

const updateColumns = `id, child_id, sponsor_code, kind, title, body, photos,
	status, visible, requested_by_sponsor, requested_at,
	published_at, rejection_reason, supersedes_update_id, superseded_by_update_id,
	submitted_by, submitted_at`

func (s *PostgresStore) Create(ctx context.Context, u *Update) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO updates (`+updateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		u.ID, u.ChildID, nullString(u.SponsorCode), string(u.Kind), u.Title, u.Body, pq.Array(u.Photos),
		string(u.Status), u.Visible, u.RequestedBySponsor, u.RequestedAt,
		u.PublishedAt, nullString(u.RejectionReason), nullString(u.SupersedesID), nullString(u.SupersededByID),
		u.SubmittedBy, u.SubmittedAt)
	if err != nil {
		return fmt.Errorf("create update: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Update, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+updateColumns+` FROM updates WHERE id = $1`, id)
	return scanUpdate(row, "get update")
}

func (s *PostgresStore) ListPublishedForChild(ctx context.Context, childID string) ([]*Update, error) {
	return s.list(ctx, `
		SELECT `+updateColumns+`
		FROM updates
		WHERE child_id = $1 AND status = 'published' AND visible = true
		ORDER BY submitted_at DESC`, childID)
}

func (s *PostgresStore) MostRecentForChild(ctx context.Context, childID string) (*Update, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+updateColumns+`
		FROM updates
		WHERE child_id = $1 AND status = 'published' AND visible = true
		ORDER BY submitted_at DESC
		LIMIT 1`, childID)
	return scanUpdate(row, "most recent update")
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]*Update, error) {
	return s.list(ctx, `
		SELECT `+updateColumns+`
		FROM updates
		WHERE status = 'pending_review'
		ORDER BY submitted_at DESC`)
}

func (s *PostgresStore) ListAllPublished(ctx context.Context) ([]*Update, error) {
	return s.list(ctx, `
		SELECT `+updateColumns+`
		FROM updates
		WHERE status = 'published'
		ORDER BY submitted_at DESC`)
}

// Publish flips a pending update to published. The conditional UPDATE keeps
// the original publish stamp on idempotent re-calls: COALESCE only fills a
// NULL published_at.
func (s *PostgresStore) Publish(ctx context.Context, id string, at time.Time) (*Update, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		UPDATE updates
		SET status = 'published',
		    visible = true,
		    published_at = COALESCE(published_at, $2)
		WHERE id = $1 AND status IN ('pending_review', 'published')
		RETURNING `+updateColumns, id, at)
	rec, err := scanUpdate(row, "publish update")
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.classifyMissing(ctx, id)
	}
	return rec, err
}

// Reject flips a pending update to rejected, keeping the original reason on
// idempotent re-calls.
func (s *PostgresStore) Reject(ctx context.Context, id string, reason string, _ time.Time) (*Update, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		UPDATE updates
		SET status = 'rejected',
		    visible = false,
		    rejection_reason = COALESCE(rejection_reason, $2)
		WHERE id = $1 AND status IN ('pending_review', 'rejected')
		RETURNING `+updateColumns, id, reason)
	rec, err := scanUpdate(row, "reject update")
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.classifyMissing(ctx, id)
	}
	return rec, err
}

// classifyMissing distinguishes "no such row" from "row in wrong state" after
// a conditional write matched nothing.
func (s *PostgresStore) classifyMissing(ctx context.Context, id string) error {
	var status string
	err := s.q(ctx).QueryRowContext(ctx, `SELECT status FROM updates WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify update state: %w", err)
	}
	return sentinel.ErrInvalidState
}

// CreateCorrection links both sides of the supersede pair in one transaction.
func (s *PostgresStore) CreateCorrection(ctx context.Context, correction *Update, supersededID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin correction tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	txCtx := txcontext.WithTx(ctx, tx)

	res, err := tx.ExecContext(ctx, `
		UPDATE updates
		SET superseded_by_update_id = $2
		WHERE id = $1 AND status = 'rejected' AND superseded_by_update_id IS NULL`,
		supersededID, correction.ID)
	if err != nil {
		return fmt.Errorf("link superseded update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link superseded update: %w", err)
	}
	if affected == 0 {
		var status string
		var supersededBy sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT status, superseded_by_update_id FROM updates WHERE id = $1`,
			supersededID).Scan(&status, &supersededBy)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("classify superseded update: %w", err)
		}
		if supersededBy.Valid {
			return sentinel.ErrConflict
		}
		return sentinel.ErrInvalidState
	}

	correction.SupersedesID = supersededID
	if err := s.Create(txCtx, correction); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit correction tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Update, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	defer rows.Close()

	var out []*Update
	for rows.Next() {
		rec, err := scanUpdate(rows, "list updates")
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpdate(row rowScanner, op string) (*Update, error) {
	var (
		u            Update
		sponsorCode  sql.NullString
		photos       pq.StringArray
		kind         string
		status       string
		requestedAt  sql.NullTime
		publishedAt  sql.NullTime
		reason       sql.NullString
		supersedes   sql.NullString
		supersededBy sql.NullString
	)
	err := row.Scan(&u.ID, &u.ChildID, &sponsorCode, &kind, &u.Title, &u.Body, &photos,
		&status, &u.Visible, &u.RequestedBySponsor, &requestedAt,
		&publishedAt, &reason, &supersedes, &supersededBy,
		&u.SubmittedBy, &u.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.SponsorCode = sponsorCode.String
	u.Photos = photos
	u.Kind = Kind(kind)
	u.Status = ReviewStatus(status)
	if requestedAt.Valid {
		u.RequestedAt = &requestedAt.Time
	}
	if publishedAt.Valid {
		u.PublishedAt = &publishedAt.Time
	}
	u.RejectionReason = reason.String
	u.SupersedesID = supersedes.String
	u.SupersededByID = supersededBy.String
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
