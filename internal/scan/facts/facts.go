// Package facts fetches the read-only business facts rule evaluation runs
// over. One source per scanned domain; sources never write.
package facts

import (
	"context"
	"time"

	"opspulse_backend/internal/signals/domain"
)

// Set carries the facts fetched for one domain. Each source fills only the
// fields its domain owns; the rest stay empty.
type Set struct {
	Invoices    []Invoice
	LedgerGaps  []LedgerGap
	Contacts    []Contact
	Deals       []Deal
	StockItems  []StockItem
	Routes      []Route
	Deliveries  []Delivery
	Checkins    []Checkin
	Ambassadors []Ambassador
}

// Source fetches the facts for one domain. Fetch must tolerate empty tables
// and return an empty Set rather than an error for "nothing to scan".
type Source interface {
	Category() domain.Category
	Fetch(ctx context.Context) (Set, error)
}

// Invoice is an unpaid or recently paid customer invoice.
type Invoice struct {
	ID           string
	CustomerName string
	Phone        string
	Email        string
	AmountCents  int64
	DueAt        time.Time
	PaidAt       *time.Time
}

// LedgerGap is a detected mismatch between expected and recorded amounts on
// one ledger account.
type LedgerGap struct {
	AccountID   string
	Description string
	DriftCents  int64
	DetectedAt  time.Time
}

// Contact is a CRM contact with its last outreach timestamp.
type Contact struct {
	ID            string
	Name          string
	Phone         string
	Email         string
	CreatedAt     time.Time
	LastContactAt *time.Time
}

// Deal is an open CRM opportunity.
type Deal struct {
	ID          string
	ContactName string
	Phone       string
	Email       string
	Stage       string
	ValueCents  int64
	UpdatedAt   time.Time
}

// StockItem is one inventory position.
type StockItem struct {
	SKU            string
	Name           string
	OnHandUnits    int
	ReorderPoint   int
	DailyBurnUnits float64
}

// Route is a delivery route with its driver and last recorded activity.
type Route struct {
	ID             string
	DriverName     string
	DriverPhone    string
	Status         string
	LastActivityAt time.Time
}

// Delivery is a completed delivery awaiting a customer follow-up.
type Delivery struct {
	ID           string
	CustomerName string
	Phone        string
	DeliveredAt  time.Time
	FollowedUpAt *time.Time
}

// Checkin is a staff member's last check-in.
type Checkin struct {
	StaffID       string
	Name          string
	Phone         string
	LastCheckinAt *time.Time
}

// Ambassador is a brand ambassador with activity and sentiment state.
type Ambassador struct {
	ID            string
	Name          string
	Phone         string
	Email         string
	LastActiveAt  *time.Time
	LastSentiment string
}

// Sentiment values recorded on ambassadors.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)
