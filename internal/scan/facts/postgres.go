package facts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opspulse_backend/internal/signals/domain"
)

// NewPostgresSources returns one pg-backed source per scannable domain.
func NewPostgresSources(pool *pgxpool.Pool) []Source {
	return []Source{
		&financeSource{pool: pool},
		&crmSource{pool: pool},
		&inventorySource{pool: pool},
		&operationsSource{pool: pool},
		&personalSource{pool: pool},
		&ambassadorSource{pool: pool},
	}
}

type financeSource struct {
	pool *pgxpool.Pool
}

func (s *financeSource) Category() domain.Category { return domain.CategoryFinance }

func (s *financeSource) Fetch(ctx context.Context) (Set, error) {
	var set Set

	err := collect(ctx, s.pool, `
		SELECT id, customer_name, COALESCE(phone, ''), COALESCE(email, ''),
		       amount_cents, due_at, paid_at
		FROM biz_invoices
		WHERE paid_at IS NULL`,
		func(rows pgx.Rows) error {
			var inv Invoice
			if err := rows.Scan(&inv.ID, &inv.CustomerName, &inv.Phone, &inv.Email,
				&inv.AmountCents, &inv.DueAt, &inv.PaidAt); err != nil {
				return err
			}
			set.Invoices = append(set.Invoices, inv)
			return nil
		})
	if err != nil {
		return Set{}, fmt.Errorf("fetch invoices: %w", err)
	}

	err = collect(ctx, s.pool, `
		SELECT account_id, description, recorded_cents - expected_cents, detected_at
		FROM biz_ledger_entries
		WHERE recorded_cents <> expected_cents AND reconciled_at IS NULL`,
		func(rows pgx.Rows) error {
			var gap LedgerGap
			if err := rows.Scan(&gap.AccountID, &gap.Description, &gap.DriftCents, &gap.DetectedAt); err != nil {
				return err
			}
			set.LedgerGaps = append(set.LedgerGaps, gap)
			return nil
		})
	if err != nil {
		return Set{}, fmt.Errorf("fetch ledger gaps: %w", err)
	}
	return set, nil
}

type crmSource struct {
	pool *pgxpool.Pool
}

func (s *crmSource) Category() domain.Category { return domain.CategoryCRM }

func (s *crmSource) Fetch(ctx context.Context) (Set, error) {
	var set Set

	err := collect(ctx, s.pool, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), created_at, last_contact_at
		FROM biz_contacts
		WHERE archived_at IS NULL`,
		func(rows pgx.Rows) error {
			var c Contact
			if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt, &c.LastContactAt); err != nil {
				return err
			}
			set.Contacts = append(set.Contacts, c)
			return nil
		})
	if err != nil {
		return Set{}, fmt.Errorf("fetch contacts: %w", err)
	}

	err = collect(ctx, s.pool, `
		SELECT id, contact_name, COALESCE(phone, ''), COALESCE(email, ''),
		       stage, value_cents, updated_at
		FROM biz_deals
		WHERE stage NOT IN ('won', 'lost')`,
		func(rows pgx.Rows) error {
			var d Deal
			if err := rows.Scan(&d.ID, &d.ContactName, &d.Phone, &d.Email,
				&d.Stage, &d.ValueCents, &d.UpdatedAt); err != nil {
				return err
			}
			set.Deals = append(set.Deals, d)
			return nil
		})
	if err != nil {
		return Set{}, fmt.Errorf("fetch deals: %w", err)
	}
	return set, nil
}

type inventorySource struct {
	pool *pgxpool.Pool
}

func (s *inventorySource) Category() domain.Category { return domain.CategoryInventory }

func (s *inventorySource) Fetch(ctx context.Context) (Set, error) {
	var set Set

	err := collect(ctx, s.pool, `
		SELECT sku, name, on_hand_units, reorder_point, daily_burn_units
		FROM biz_stock_items
		WHERE discontinued = FALSE`,
		func(rows pgx.Rows) error {
			var item StockItem
			if err := rows.Scan(&item.SKU, &item.Name, &item.OnHandUnits,
				&item.ReorderPoint, &item.DailyBurnUnits); err != nil {
				return err
			}
			set.StockItems = append(set.StockItems, item)
			return nil
		})
	if err != nil {
		return Set{}, fmt.Errorf("fetch stock items: %w", err)
	}
	return set, nil
}

type operationsSource struct {
	pool *pgxpool.Pool
}

func (s *operationsSource) Category() domain.Category { return domain.CategoryOperations }

func (s *operationsSource) Fetch(ctx context.Context) (Set, error) {
	var set Set

	err := collect(ctx, s.pool, `
		SELECT id, driver_name, COALESCE(driver_phone, ''), status, last_activity_at
		FROM biz_routes
		WHERE status = 'active'`,
		func(rows pgx.Rows) error {
			var r Route
			if err := rows.Scan(&r.ID, &r.DriverName, &r.DriverPhone, &r.Status, &r.LastActivityAt); err != nil {
				return err
			}
			set.Routes = append(set.Routes, r)
			return nil
		})
	if err != nil {
		return Set{}, fmt.Errorf("fetch routes: %w", err)
	}

	err = collect(ctx, s.pool, `
		SELECT id, customer_name, COALESCE(phone, ''), delivered_at, followed_up_at
		FROM biz_deliveries
		WHERE followed_up_at IS NULL`,
		func(rows pgx.Rows) error {
			var d Delivery
			if err := rows.Scan(&d.ID, &d.CustomerName, &d.Phone, &d.DeliveredAt, &d.FollowedUpAt); err != nil {
				return err
			}
			set.Deliveries = append(set.Deliveries, d)
			return nil
		})
	if err != nil {
		return Set{}, fmt.Errorf("fetch deliveries: %w", err)
	}
	return set, nil
}

type personalSource struct {
	pool *pgxpool.Pool
}

func (s *personalSource) Category() domain.Category { return domain.CategoryPersonal }

func (s *personalSource) Fetch(ctx context.Context) (Set, error) {
	var set Set

	err := collect(ctx, s.pool, `
		SELECT id, name, COALESCE(phone, ''), last_checkin_at
		FROM biz_staff
		WHERE active = TRUE`,
		func(rows pgx.Rows) error {
			var c Checkin
			if err := rows.Scan(&c.StaffID, &c.Name, &c.Phone, &c.LastCheckinAt); err != nil {
				return err
			}
			set.Checkins = append(set.Checkins, c)
			return nil
		})
	if err != nil {
		return Set{}, fmt.Errorf("fetch staff checkins: %w", err)
	}
	return set, nil
}

type ambassadorSource struct {
	pool *pgxpool.Pool
}

func (s *ambassadorSource) Category() domain.Category { return domain.CategoryAmbassador }

func (s *ambassadorSource) Fetch(ctx context.Context) (Set, error) {
	var set Set

	err := collect(ctx, s.pool, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''),
		       last_active_at, COALESCE(last_sentiment, 'neutral')
		FROM biz_ambassadors
		WHERE active = TRUE`,
		func(rows pgx.Rows) error {
			var a Ambassador
			if err := rows.Scan(&a.ID, &a.Name, &a.Phone, &a.Email, &a.LastActiveAt, &a.LastSentiment); err != nil {
				return err
			}
			set.Ambassadors = append(set.Ambassadors, a)
			return nil
		})
	if err != nil {
		return Set{}, fmt.Errorf("fetch ambassadors: %w", err)
	}
	return set, nil
}

func collect(ctx context.Context, pool *pgxpool.Pool, query string, scan func(pgx.Rows) error) error {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
