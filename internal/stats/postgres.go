package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"opspulse_backend/internal/signals/domain"
)

// PostgresSource reads the stats projections straight from the queue tables.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a Postgres-backed stats source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Compile-time check that PostgresSource implements Source.
var _ Source = (*PostgresSource)(nil)

func (s *PostgresSource) OpenSeverityCounts(ctx context.Context) ([]SeverityCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, severity, COUNT(*)
		FROM ops_signals
		WHERE status IN ('open', 'processing')
		GROUP BY category, severity`)
	if err != nil {
		return nil, fmt.Errorf("count open signals: %w", err)
	}
	defer rows.Close()

	var out []SeverityCount
	for rows.Next() {
		var bucket SeverityCount
		if err := rows.Scan(&bucket.Category, &bucket.Severity, &bucket.Count); err != nil {
			return nil, fmt.Errorf("count open signals: %w", err)
		}
		out = append(out, bucket)
	}
	return out, rows.Err()
}

func (s *PostgresSource) ResolvedSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM ops_signals
		WHERE status = $1 AND resolved_at >= $2`,
		domain.SignalResolved, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count resolved signals: %w", err)
	}
	return count, nil
}

func (s *PostgresSource) FailedDispatchesSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM ops_dispatch_log
		WHERE status = 'failed' AND created_at >= $1`,
		cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed dispatches: %w", err)
	}
	return count, nil
}
