// Package ledger defines the port for the append-only audit ledger store.
package ledger

import (
	"context"

	dledger "github.com/concordat/concord/internal/domain/ledger"
)

// Store is the persistence contract for per-proposal audit ledgers:
// append-only ordered writes, range reads, nothing else. No implementation
// may mutate a previously appended entry.
type Store interface {
	// Append persists a fully sealed entry. It must fail rather than
	// overwrite if the (proposal, sequence) pair already exists.
	Append(ctx context.Context, e *dledger.Entry) error

	// Last returns the highest-sequence entry for the proposal, or
	// (nil, nil) when the ledger is empty.
	Last(ctx context.Context, proposalID string) (*dledger.Entry, error)

	// Range returns entries with from <= sequence <= to, ascending.
	// to <= 0 means "through the end of the ledger".
	Range(ctx context.Context, proposalID string, from, to int64) ([]dledger.Entry, error)

	// Bounds returns the first and last sequence numbers and the entry
	// count; zeros for an empty ledger.
	Bounds(ctx context.Context, proposalID string) (first, last, count int64, err error)
}
