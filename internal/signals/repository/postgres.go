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
	signalNotFoundMessage   = "signal not found"
	followUpNotFoundMessage = "follow-up item not found"
	staleVersionMessage     = "item was modified by another worker"

	uniqueViolationCode = "23505"
)

const signalColumns = `id, category, severity, trigger_type, subject_domain, subject_id,
	condition_detected, recommended_action, status, version, created_at, updated_at, resolved_at`

const followUpColumns = `id, reason, recommended_action, priority, due_at, status,
	subject_domain, subject_id, severity, contact_name, contact_phone, contact_email,
	step_index, last_escalated_at, needs_human, dispatch_failures, version,
	created_at, updated_at, completed_at`

// Repo implements the Store interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new queue repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Store.
var _ Store = (*Repo)(nil)

// isUniqueViolation reports whether an insert hit the partial unique index
// guarding the dedup invariant.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// =============================================================================
// Signals
// =============================================================================

// GetSignal retrieves a signal by its ID.
func (r *Repo) GetSignal(ctx context.Context, id uuid.UUID) (domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM ops_signals WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	signal, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Signal{}, apperr.NotFound(signalNotFoundMessage)
		}
		return domain.Signal{}, fmt.Errorf("get signal: %w", err)
	}
	return signal, nil
}

// FindOpenSignal looks up the non-terminal signal for a dedup tuple.
func (r *Repo) FindOpenSignal(ctx context.Context, category domain.Category, triggerType string, subject domain.SubjectRef) (domain.Signal, bool, error) {
	query := `SELECT ` + signalColumns + `
		FROM ops_signals
		WHERE category = $1 AND trigger_type = $2 AND subject_domain = $3 AND subject_id = $4
		  AND status IN ('open', 'processing')`

	row := r.pool.QueryRow(ctx, query, category, triggerType, subject.Domain, subject.EntityID)
	signal, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Signal{}, false, nil
		}
		return domain.Signal{}, false, fmt.Errorf("find open signal: %w", err)
	}
	return signal, true, nil
}

// ListSignals retrieves signals matching the filter, most recent first.
func (r *Repo) ListSignals(ctx context.Context, filter SignalFilter) ([]domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM ops_signals WHERE 1=1`
	args := []any{}

	if filter.Category != nil {
		args = append(args, *filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Severity != nil {
		args = append(args, *filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.TriggerType != nil {
		args = append(args, *filter.TriggerType)
		query += fmt.Sprintf(" AND trigger_type = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	signals := make([]domain.Signal, 0)
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}

// InsertSignal persists a new signal.
func (r *Repo) InsertSignal(ctx context.Context, signal domain.Signal) (domain.Signal, error) {
	query := `
		INSERT INTO ops_signals (id, category, severity, trigger_type, subject_domain, subject_id,
			condition_detected, recommended_action, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		RETURNING ` + signalColumns

	row := r.pool.QueryRow(ctx, query,
		signal.ID, signal.Category, signal.Severity, signal.TriggerType,
		signal.Subject.Domain, signal.Subject.EntityID,
		signal.ConditionDetected, signal.RecommendedAction, signal.Status,
	)
	inserted, err := scanSignal(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Signal{}, fmt.Errorf("insert signal: %w", ErrDuplicateActive)
		}
		return domain.Signal{}, fmt.Errorf("insert signal: %w", err)
	}
	return inserted, nil
}

// RefreshSignal updates the detected condition of an open signal on re-detection.
func (r *Repo) RefreshSignal(ctx context.Context, id uuid.UUID, condition string, severity domain.Severity, expectedVersion int64) (domain.Signal, error) {
	query := `
		UPDATE ops_signals
		SET condition_detected = $3, severity = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + signalColumns

	row := r.pool.QueryRow(ctx, query, id, expectedVersion, condition, severity)
	signal, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Signal{}, r.signalWriteConflict(ctx, id)
		}
		return domain.Signal{}, fmt.Errorf("refresh signal: %w", err)
	}
	return signal, nil
}

// UpdateSignalStatus transitions a signal, guarded by the expected version.
func (r *Repo) UpdateSignalStatus(ctx context.Context, id uuid.UUID, to domain.SignalStatus, resolvedAt *time.Time, expectedVersion int64) (domain.Signal, error) {
	query := `
		UPDATE ops_signals
		SET status = $3, resolved_at = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + signalColumns

	row := r.pool.QueryRow(ctx, query, id, expectedVersion, to, resolvedAt)
	signal, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Signal{}, r.signalWriteConflict(ctx, id)
		}
		return domain.Signal{}, fmt.Errorf("update signal status: %w", err)
	}
	return signal, nil
}

// signalWriteConflict distinguishes a missing row from a lost version race.
func (r *Repo) signalWriteConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ops_signals WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("signal conflict check: %w", err)
	}
	if !exists {
		return apperr.NotFound(signalNotFoundMessage)
	}
	return apperr.Conflict(staleVersionMessage)
}

// =============================================================================
// Follow-up items
// =============================================================================

// GetFollowUp retrieves a follow-up item by its ID.
func (r *Repo) GetFollowUp(ctx context.Context, id uuid.UUID) (domain.FollowUpItem, error) {
	query := `SELECT ` + followUpColumns + ` FROM ops_followups WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	item, err := scanFollowUp(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FollowUpItem{}, apperr.NotFound(followUpNotFoundMessage)
		}
		return domain.FollowUpItem{}, fmt.Errorf("get follow-up: %w", err)
	}
	return item, nil
}

// FindActiveFollowUp looks up the non-terminal item for a (reason, subject) pair.
func (r *Repo) FindActiveFollowUp(ctx context.Context, reason domain.Reason, subject domain.SubjectRef) (domain.FollowUpItem, bool, error) {
	query := `SELECT ` + followUpColumns + `
		FROM ops_followups
		WHERE reason = $1 AND subject_domain = $2 AND subject_id = $3
		  AND status NOT IN ('completed', 'cancelled')`

	row := r.pool.QueryRow(ctx, query, reason, subject.Domain, subject.EntityID)
	item, err := scanFollowUp(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FollowUpItem{}, false, nil
		}
		return domain.FollowUpItem{}, false, fmt.Errorf("find active follow-up: %w", err)
	}
	return item, true, nil
}

// ListFollowUps retrieves follow-up items matching the filter, most urgent first.
func (r *Repo) ListFollowUps(ctx context.Context, filter FollowUpFilter) ([]domain.FollowUpItem, error) {
	query := `SELECT ` + followUpColumns + ` FROM ops_followups WHERE 1=1`
	args := []any{}

	if filter.Reason != nil {
		args = append(args, *filter.Reason)
		query += fmt.Sprintf(" AND reason = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		query += fmt.Sprintf(" AND subject_domain = $%d", len(args))
	}
	if filter.NeedsHuman != nil {
		args = append(args, *filter.NeedsHuman)
		query += fmt.Sprintf(" AND needs_human = $%d", len(args))
	}
	if filter.Active {
		query += " AND status NOT IN ('completed', 'cancelled')"
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		query += fmt.Sprintf(" AND due_at < $%d", len(args))
	}
	if filter.DueAfter != nil {
		args = append(args, *filter.DueAfter)
		query += fmt.Sprintf(" AND due_at >= $%d", len(args))
	}

	query += " ORDER BY priority ASC, due_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	defer rows.Close()

	items := make([]domain.FollowUpItem, 0)
	for rows.Next() {
		item, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan follow-up row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertFollowUp persists a new follow-up item.
func (r *Repo) InsertFollowUp(ctx context.Context, item domain.FollowUpItem) (domain.FollowUpItem, error) {
	query := `
		INSERT INTO ops_followups (id, reason, recommended_action, priority, due_at, status,
			subject_domain, subject_id, severity, contact_name, contact_phone, contact_email,
			step_index, needs_human, dispatch_failures, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, false, 0, 1)
		RETURNING ` + followUpColumns

	row := r.pool.QueryRow(ctx, query,
		item.ID, item.Reason, item.RecommendedAction, item.Priority, item.DueAt, item.Status,
		item.Subject.Domain, item.Subject.EntityID, item.Severity,
		item.ContactName, item.ContactPhone, item.ContactEmail,
		item.StepIndex,
	)
	inserted, err := scanFollowUp(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.FollowUpItem{}, fmt.Errorf("insert follow-up: %w", ErrDuplicateActive)
		}
		return domain.FollowUpItem{}, fmt.Errorf("insert follow-up: %w", err)
	}
	return inserted, nil
}

// UpdateFollowUpStatus transitions a follow-up item, guarded by the expected version.
func (r *Repo) UpdateFollowUpStatus(ctx context.Context, id uuid.UUID, to domain.FollowUpStatus, completedAt *time.Time, expectedVersion int64) (domain.FollowUpItem, error) {
	query := `
		UPDATE ops_followups
		SET status = $3, completed_at = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + followUpColumns

	row := r.pool.QueryRow(ctx, query, id, expectedVersion, to, completedAt)
	item, err := scanFollowUp(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FollowUpItem{}, r.followUpWriteConflict(ctx, id)
		}
		return domain.FollowUpItem{}, fmt.Errorf("update follow-up status: %w", err)
	}
	return item, nil
}

// RescheduleFollowUp moves the due date and resets the derived status cache.
func (r *Repo) RescheduleFollowUp(ctx context.Context, id uuid.UUID, dueAt time.Time, status domain.FollowUpStatus, expectedVersion int64) (domain.FollowUpItem, error) {
	query := `
		UPDATE ops_followups
		SET due_at = $3, status = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + followUpColumns

	row := r.pool.QueryRow(ctx, query, id, expectedVersion, dueAt, status)
	item, err := scanFollowUp(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FollowUpItem{}, r.followUpWriteConflict(ctx, id)
		}
		return domain.FollowUpItem{}, fmt.Errorf("reschedule follow-up: %w", err)
	}
	return item, nil
}

// CacheFollowUpStatus refreshes the persisted derived-status cache. Guarded by
// the current cached value rather than the version: losing this write is fine,
// the status is recomputed on every read.
func (r *Repo) CacheFollowUpStatus(ctx context.Context, id uuid.UUID, from, to domain.FollowUpStatus) error {
	query := `
		UPDATE ops_followups
		SET status = $3
		WHERE id = $1 AND status = $2 AND status NOT IN ('completed', 'cancelled')`

	if _, err := r.pool.Exec(ctx, query, id, from, to); err != nil {
		return fmt.Errorf("cache follow-up status: %w", err)
	}
	return nil
}

// AdvanceFollowUpStep moves the escalation step counter forward. The guard on
// step_index keeps the counter monotonic even under concurrent ladder passes.
func (r *Repo) AdvanceFollowUpStep(ctx context.Context, id uuid.UUID, stepIndex int, at time.Time, expectedVersion int64) (domain.FollowUpItem, error) {
	query := `
		UPDATE ops_followups
		SET step_index = $3, last_escalated_at = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND step_index < $3
		RETURNING ` + followUpColumns

	row := r.pool.QueryRow(ctx, query, id, expectedVersion, stepIndex, at)
	item, err := scanFollowUp(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FollowUpItem{}, r.followUpWriteConflict(ctx, id)
		}
		return domain.FollowUpItem{}, fmt.Errorf("advance follow-up step: %w", err)
	}
	return item, nil
}

// FlagNeedsHuman marks the item for mandatory human escalation. Idempotent.
func (r *Repo) FlagNeedsHuman(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE ops_followups SET needs_human = true, updated_at = now() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("flag needs human: %w", err)
	}
	return nil
}

// IncrementDispatchFailures bumps the surfaced failure counter.
func (r *Repo) IncrementDispatchFailures(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE ops_followups SET dispatch_failures = dispatch_failures + 1, updated_at = now() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("increment dispatch failures: %w", err)
	}
	return nil
}

func (r *Repo) followUpWriteConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ops_followups WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("follow-up conflict check: %w", err)
	}
	if !exists {
		return apperr.NotFound(followUpNotFoundMessage)
	}
	return apperr.Conflict(staleVersionMessage)
}

// =============================================================================
// Scanning helpers
// =============================================================================

func scanSignal(row pgx.Row) (domain.Signal, error) {
	var s domain.Signal
	err := row.Scan(
		&s.ID, &s.Category, &s.Severity, &s.TriggerType,
		&s.Subject.Domain, &s.Subject.EntityID,
		&s.ConditionDetected, &s.RecommendedAction, &s.Status,
		&s.Version, &s.CreatedAt, &s.UpdatedAt, &s.ResolvedAt,
	)
	return s, err
}

func scanFollowUp(row pgx.Row) (domain.FollowUpItem, error) {
	var f domain.FollowUpItem
	err := row.Scan(
		&f.ID, &f.Reason, &f.RecommendedAction, &f.Priority, &f.DueAt, &f.Status,
		&f.Subject.Domain, &f.Subject.EntityID, &f.Severity,
		&f.ContactName, &f.ContactPhone, &f.ContactEmail,
		&f.StepIndex, &f.LastEscalatedAt, &f.NeedsHuman, &f.DispatchFailures,
		&f.Version, &f.CreatedAt, &f.UpdatedAt, &f.CompletedAt,
	)
	if err != nil {
		return domain.FollowUpItem{}, err
	}
	return f, nil
}
