// Package repository persists per-domain automation settings.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/apperr"
)

const (
	notFoundMessage     = "settings not found"
	staleVersionMessage = "settings were modified concurrently, reload and retry"
)

// Store persists DomainSettings keyed by category. Updates are version
// guarded; Save with expectedVersion 0 inserts a fresh row.
type Store interface {
	Get(ctx context.Context, category domain.Category) (domain.DomainSettings, error)
	List(ctx context.Context) ([]domain.DomainSettings, error)
	Save(ctx context.Context, settings domain.DomainSettings, expectedVersion int64) (domain.DomainSettings, error)
}

// Repo is the Postgres-backed settings store.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new settings repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Store.
var _ Store = (*Repo)(nil)

const settingsColumns = `
	category, enabled, thresholds, severity_threshold,
	auto_create_tasks, auto_assign_routes, auto_send_comms, auto_financial,
	escalation_steps, escalation_after_days, version, updated_at`

func (r *Repo) Get(ctx context.Context, category domain.Category) (domain.DomainSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM ops_domain_settings WHERE category = $1`

	settings, err := scanSettings(r.pool.QueryRow(ctx, query, category))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DomainSettings{}, apperr.NotFound(notFoundMessage)
		}
		return domain.DomainSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}

func (r *Repo) List(ctx context.Context) ([]domain.DomainSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM ops_domain_settings ORDER BY category`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []domain.DomainSettings
	for rows.Next() {
		settings, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("list settings: %w", err)
		}
		out = append(out, settings)
	}
	return out, rows.Err()
}

func (r *Repo) Save(ctx context.Context, settings domain.DomainSettings, expectedVersion int64) (domain.DomainSettings, error) {
	if expectedVersion == 0 {
		return r.insert(ctx, settings)
	}
	return r.update(ctx, settings, expectedVersion)
}

func (r *Repo) insert(ctx context.Context, s domain.DomainSettings) (domain.DomainSettings, error) {
	query := `
		INSERT INTO ops_domain_settings (
			category, enabled, thresholds, severity_threshold,
			auto_create_tasks, auto_assign_routes, auto_send_comms, auto_financial,
			escalation_steps, escalation_after_days, version, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, now())
		ON CONFLICT (category) DO NOTHING
		RETURNING ` + settingsColumns

	saved, err := scanSettings(r.pool.QueryRow(ctx, query,
		s.Category, s.Enabled, s.Thresholds, s.SeverityThreshold,
		s.AutoCreateTasks, s.AutoAssignRoutes, s.AutoSendComms, s.AutoFinancial,
		s.EscalationSteps, s.EscalationAfterDays,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row already exists; the caller raced another writer.
			return domain.DomainSettings{}, apperr.Conflict(staleVersionMessage)
		}
		return domain.DomainSettings{}, fmt.Errorf("insert settings: %w", err)
	}
	return saved, nil
}

func (r *Repo) update(ctx context.Context, s domain.DomainSettings, expectedVersion int64) (domain.DomainSettings, error) {
	query := `
		UPDATE ops_domain_settings SET
			enabled = $2,
			thresholds = $3,
			severity_threshold = $4,
			auto_create_tasks = $5,
			auto_assign_routes = $6,
			auto_send_comms = $7,
			auto_financial = $8,
			escalation_steps = $9,
			escalation_after_days = $10,
			version = version + 1,
			updated_at = now()
		WHERE category = $1 AND version = $11
		RETURNING ` + settingsColumns

	saved, err := scanSettings(r.pool.QueryRow(ctx, query,
		s.Category, s.Enabled, s.Thresholds, s.SeverityThreshold,
		s.AutoCreateTasks, s.AutoAssignRoutes, s.AutoSendComms, s.AutoFinancial,
		s.EscalationSteps, s.EscalationAfterDays, expectedVersion,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DomainSettings{}, r.writeConflict(ctx, s.Category)
		}
		return domain.DomainSettings{}, fmt.Errorf("update settings: %w", err)
	}
	return saved, nil
}

func (r *Repo) writeConflict(ctx context.Context, category domain.Category) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ops_domain_settings WHERE category = $1)`, category,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("settings conflict check: %w", err)
	}
	if !exists {
		return apperr.NotFound(notFoundMessage)
	}
	return apperr.Conflict(staleVersionMessage)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(row rowScanner) (domain.DomainSettings, error) {
	var s domain.DomainSettings
	var updatedAt time.Time
	err := row.Scan(
		&s.Category, &s.Enabled, &s.Thresholds, &s.SeverityThreshold,
		&s.AutoCreateTasks, &s.AutoAssignRoutes, &s.AutoSendComms, &s.AutoFinancial,
		&s.EscalationSteps, &s.EscalationAfterDays, &s.Version, &updatedAt,
	)
	if err != nil {
		return domain.DomainSettings{}, err
	}
	s.UpdatedAt = updatedAt
	return s, nil
}
