package channels

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"opspulse_backend/internal/signals/domain"
)

// LedgerChannel records a financial correction request against the ledger.
// It writes a pending correction row rather than mutating balances directly;
// the bookkeeping side applies it.
type LedgerChannel struct {
	pool *pgxpool.Pool
}

// NewLedgerChannel creates the ledger-correction channel.
func NewLedgerChannel(pool *pgxpool.Pool) *LedgerChannel {
	return &LedgerChannel{pool: pool}
}

func (c *LedgerChannel) Kind() domain.ChannelKind { return domain.ChannelLedger }

func (c *LedgerChannel) Send(ctx context.Context, out Outbound) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO biz_ledger_corrections (account_id, note, requested_at)
		VALUES ($1, $2, now())`,
		out.Subject.EntityID, out.Body)
	if err != nil {
		return fmt.Errorf("record ledger correction: %w", err)
	}
	return nil
}
