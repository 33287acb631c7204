package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/apperr"
)

const (
	recordNotFoundMessage   = "dispatch record not found"
	approvalNotFoundMessage = "approval not found"
	approvalDecidedMessage  = "approval already decided"
)

// Repo is the Postgres-backed dispatch store.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new dispatch repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Store.
var _ Store = (*Repo)(nil)

const recordColumns = `
	id, item_id, kind, step_index, category, channel, action, message,
	status, detail, mandatory, out_of_band, created_at, finished_at`

func (r *Repo) Claim(ctx context.Context, req domain.DispatchRequest) (Record, error) {
	query := `
		INSERT INTO ops_dispatch_log (
			id, item_id, kind, step_index, category, channel, action, message,
			status, detail, mandatory, out_of_band, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '', $10, $11, now())
		RETURNING ` + recordColumns

	record, err := scanRecord(r.pool.QueryRow(ctx, query,
		uuid.New(), req.ItemID, req.Kind, req.StepIndex, req.Category,
		req.Channel, req.Action, req.Message, StatusInFlight,
		req.Mandatory, req.OutOfBand,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, fmt.Errorf("claim dispatch: %w", ErrAlreadyClaimed)
		}
		return Record{}, fmt.Errorf("claim dispatch: %w", err)
	}
	return record, nil
}

func (r *Repo) Finish(ctx context.Context, recordID uuid.UUID, status RecordStatus, detail string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE ops_dispatch_log
		SET status = $2, detail = $3, finished_at = now()
		WHERE id = $1`,
		recordID, status, detail)
	if err != nil {
		return fmt.Errorf("finish dispatch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(recordNotFoundMessage)
	}
	return nil
}

func (r *Repo) ListByItem(ctx context.Context, itemID uuid.UUID) ([]Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM ops_dispatch_log WHERE item_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list dispatches: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (r *Repo) CountFailedSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM ops_dispatch_log
		WHERE status = $1 AND created_at >= $2`,
		StatusFailed, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed dispatches: %w", err)
	}
	return count, nil
}

const approvalColumns = `
	id, record_id, item_id, kind, step_index, category, severity, action,
	channel, message, subject_domain, subject_entity, mandatory, out_of_band,
	reason, status, decided_by, decided_at, created_at`

func (r *Repo) EnqueueApproval(ctx context.Context, recordID uuid.UUID, req domain.DispatchRequest, reason string) (Approval, error) {
	query := `
		INSERT INTO ops_approvals (
			id, record_id, item_id, kind, step_index, category, severity, action,
			channel, message, subject_domain, subject_entity, mandatory, out_of_band,
			reason, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
		RETURNING ` + approvalColumns

	approval, err := scanApproval(r.pool.QueryRow(ctx, query,
		uuid.New(), recordID, req.ItemID, req.Kind, req.StepIndex, req.Category,
		req.Severity, req.Action, req.Channel, req.Message,
		req.Subject.Domain, req.Subject.EntityID, req.Mandatory, req.OutOfBand,
		reason, ApprovalPending,
	))
	if err != nil {
		return Approval{}, fmt.Errorf("enqueue approval: %w", err)
	}
	return approval, nil
}

func (r *Repo) GetApproval(ctx context.Context, id uuid.UUID) (Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM ops_approvals WHERE id = $1`

	approval, err := scanApproval(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, apperr.NotFound(approvalNotFoundMessage)
		}
		return Approval{}, fmt.Errorf("get approval: %w", err)
	}
	return approval, nil
}

func (r *Repo) ListApprovals(ctx context.Context, status ApprovalStatus) ([]Approval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM ops_approvals WHERE status = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("list approvals: %w", err)
		}
		out = append(out, approval)
	}
	return out, rows.Err()
}

func (r *Repo) DecideApproval(ctx context.Context, id uuid.UUID, approved bool, decidedBy uuid.UUID) (Approval, error) {
	status := ApprovalRejected
	if approved {
		status = ApprovalApproved
	}

	query := `
		UPDATE ops_approvals
		SET status = $2, decided_by = $3, decided_at = now()
		WHERE id = $1 AND status = $4
		RETURNING ` + approvalColumns

	approval, err := scanApproval(r.pool.QueryRow(ctx, query, id, status, decidedBy, ApprovalPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetApproval(ctx, id); getErr != nil {
				return Approval{}, getErr
			}
			return Approval{}, apperr.Conflict(approvalDecidedMessage)
		}
		return Approval{}, fmt.Errorf("decide approval: %w", err)
	}
	return approval, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.ItemID, &rec.Kind, &rec.StepIndex, &rec.Category,
		&rec.Channel, &rec.Action, &rec.Message, &rec.Status, &rec.Detail,
		&rec.Mandatory, &rec.OutOfBand, &rec.CreatedAt, &rec.FinishedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func scanApproval(row rowScanner) (Approval, error) {
	var a Approval
	err := row.Scan(
		&a.ID, &a.RecordID, &a.Request.ItemID, &a.Request.Kind, &a.Request.StepIndex,
		&a.Request.Category, &a.Request.Severity, &a.Request.Action,
		&a.Request.Channel, &a.Request.Message,
		&a.Request.Subject.Domain, &a.Request.Subject.EntityID,
		&a.Request.Mandatory, &a.Request.OutOfBand,
		&a.Reason, &a.Status, &a.DecidedBy, &a.DecidedAt, &a.CreatedAt,
	)
	if err != nil {
		return Approval{}, err
	}
	return a, nil
}
