package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/concordat/concord/internal/domain"
	dledger "github.com/concordat/concord/internal/domain/ledger"
)

// LedgerStore implements ledger.Store using PostgreSQL. The audit_entries
// table has a primary key on (proposal_id, sequence), so a concurrent
// append to the same slot fails instead of overwriting.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

func (s *LedgerStore) Append(ctx context.Context, e *dledger.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries (proposal_id, sequence, kind, payload, prior_hash, this_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ProposalID, e.Sequence, e.Kind, []byte(e.Payload), e.PriorHash, e.ThisHash, e.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("append entry %d for proposal %s: %w", e.Sequence, e.ProposalID, domain.ErrConflict)
		}
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

func (s *LedgerStore) Last(ctx context.Context, proposalID string) (*dledger.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT proposal_id, sequence, kind, payload, prior_hash, this_hash, created_at
		FROM audit_entries WHERE proposal_id = $1
		ORDER BY sequence DESC LIMIT 1`, proposalID)

	var e dledger.Entry
	var payload []byte
	err := row.Scan(&e.ProposalID, &e.Sequence, &e.Kind, &payload, &e.PriorHash, &e.ThisHash, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last entry: %w", err)
	}
	e.Payload = payload
	return &e, nil
}

func (s *LedgerStore) Range(ctx context.Context, proposalID string, from, to int64) ([]dledger.Entry, error) {
	query := `
		SELECT proposal_id, sequence, kind, payload, prior_hash, this_hash, created_at
		FROM audit_entries WHERE proposal_id = $1 AND sequence >= $2`
	args := []any{proposalID, from}
	if to > 0 {
		query += ` AND sequence <= $3`
		args = append(args, to)
	}
	query += ` ORDER BY sequence`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range entries: %w", err)
	}
	defer rows.Close()

	var entries []dledger.Entry
	for rows.Next() {
		var e dledger.Entry
		var payload []byte
		if err := rows.Scan(&e.ProposalID, &e.Sequence, &e.Kind, &payload, &e.PriorHash, &e.ThisHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Payload = payload
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *LedgerStore) Bounds(ctx context.Context, proposalID string) (first, last, count int64, err error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MIN(sequence), 0), COALESCE(MAX(sequence), 0), COUNT(*)
		FROM audit_entries WHERE proposal_id = $1`, proposalID)

	if err := row.Scan(&first, &last, &count); err != nil {
		return 0, 0, 0, fmt.Errorf("ledger bounds: %w", err)
	}
	return first, last, count, nil
}
