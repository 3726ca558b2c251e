package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// BetStore implements domain.BetJournal.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a BetStore backed by pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betSelectCols = `id, market_id, question, outcome_index, outcome_label, amount,
	confidence, reason, idempotency_key, bet_id, dry_run, error, created_at`

// Record journals one bet attempt. Re-recording the same idempotency key is
// a no-op.
func (s *BetStore) Record(ctx context.Context, rec domain.BetRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO bets (
			market_id, question, outcome_index, outcome_label, amount,
			confidence, reason, idempotency_key, bet_id, dry_run, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (idempotency_key) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.MarketID, rec.Question, rec.OutcomeIndex, rec.OutcomeLabel,
		decimal.NewFromFloat(rec.Amount), rec.Confidence, rec.Reason,
		rec.IdempotencyKey, rec.BetID, rec.DryRun, rec.Error, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record bet %s: %w", rec.IdempotencyKey, err)
	}
	return nil
}

// ListByMarket returns the journaled attempts for a market, newest first.
func (s *BetStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.BetRecord, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets WHERE market_id = $1 ORDER BY created_at DESC`
	args := []any{marketID}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for %s: %w", marketID, err)
	}
	defer rows.Close()

	recs, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets for %s: %w", marketID, err)
	}
	return recs, nil
}

// CountSince counts successful or dry-run attempts since the given time.
func (s *BetStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bets WHERE created_at >= $1 AND error = ''`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count bets: %w", err)
	}
	return n, nil
}

func scanBetRows(rows pgx.Rows) ([]domain.BetRecord, error) {
	var out []domain.BetRecord
	for rows.Next() {
		var (
			r      domain.BetRecord
			amount decimal.Decimal
		)
		if err := rows.Scan(
			&r.ID, &r.MarketID, &r.Question, &r.OutcomeIndex, &r.OutcomeLabel, &amount,
			&r.Confidence, &r.Reason, &r.IdempotencyKey, &r.BetID, &r.DryRun, &r.Error, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Amount = amount.InexactFloat64()
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ domain.BetJournal = (*BetStore)(nil)
