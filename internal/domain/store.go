package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BetRecord is a journaled bet attempt, live or dry run.
type BetRecord struct {
	ID             int64
	MarketID       string
	Question       string
	OutcomeIndex   int
	OutcomeLabel   string
	Amount         float64
	Confidence     float64
	Reason         string
	IdempotencyKey string
	BetID          string // empty for dry runs and failures
	DryRun         bool
	Error          string
	CreatedAt      time.Time
}

// BetJournal persists every bet attempt made by this process.
type BetJournal interface {
	Record(ctx context.Context, rec BetRecord) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]BetRecord, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
