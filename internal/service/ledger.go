package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/avast/retry-go/v5"

	"github.com/concordat/concord/internal/config"
	"github.com/concordat/concord/internal/domain"
	dledger "github.com/concordat/concord/internal/domain/ledger"
	ledgerport "github.com/concordat/concord/internal/port/ledger"
)

// LedgerService owns every write to the audit ledger. It serializes appends
// per proposal so sequence numbers stay contiguous, seals each entry into
// the hash chain, and retries transient store failures before giving up.
type LedgerService struct {
	store ledgerport.Store
	cfg   config.Ledger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(store ledgerport.Store, cfg config.Ledger) *LedgerService {
	return &LedgerService{
		store: store,
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-proposal append mutex, creating it on first use.
func (s *LedgerService) lockFor(proposalID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[proposalID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[proposalID] = l
	}
	return l
}

// Append marshals payload, assigns the next sequence number, seals the entry
// into the proposal's hash chain, and persists it.
//
// Payload must be a struct, never a map: json.Marshal field order has to be
// deterministic or the chain cannot be replayed.
//
// A conflicting concurrent append (another engine instance won the slot)
// re-reads the chain head and retries with backoff.
func (s *LedgerService) Append(ctx context.Context, proposalID string, kind dledger.Kind, payload any) (*dledger.Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	l := s.lockFor(proposalID)
	l.Lock()
	defer l.Unlock()

	var entry *dledger.Entry
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.AppendAttempts)),
		retry.Delay(s.cfg.AppendBackoff),
	)
	err = r.Do(func() error {
		last, err := s.store.Last(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("read chain head: %w", err)
		}

		var seq int64 = 1
		var priorHash string
		if last != nil {
			seq = last.Sequence + 1
			priorHash = last.ThisHash
		}

		e := &dledger.Entry{
			ProposalID: proposalID,
			Sequence:   seq,
			Kind:       kind,
			Payload:    raw,
		}
		e.Seal(priorHash)

		if err := s.store.Append(ctx, e); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				slog.Debug("ledger append lost sequence race, retrying",
					"proposal_id", proposalID, "sequence", seq)
			}
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append %s entry for proposal %s: %w", kind, proposalID, err)
	}
	return entry, nil
}

// Verify replays the full hash chain for a proposal. It returns ok=false and
// the offending sequence number at the first mismatch. A store read failure
// is an error; a broken chain is not.
func (s *LedgerService) Verify(ctx context.Context, proposalID string) (ok bool, badSeq int64, err error) {
	entries, err := s.store.Range(ctx, proposalID, 1, 0)
	if err != nil {
		return false, 0, fmt.Errorf("verify ledger for proposal %s: %w", proposalID, err)
	}
	ok, badSeq = dledger.VerifyChain(entries, "")
	if !ok {
		slog.Error("audit ledger integrity violation",
			"proposal_id", proposalID, "sequence", badSeq)
	}
	return ok, badSeq, nil
}

// Export returns the entries in [from, to] for independent re-verification.
// to <= 0 means "through the end of the ledger".
func (s *LedgerService) Export(ctx context.Context, proposalID string, from, to int64) ([]dledger.Entry, error) {
	if from < 1 {
		from = 1
	}
	return s.store.Range(ctx, proposalID, from, to)
}

// Bounds returns the first and last sequence numbers and the entry count.
func (s *LedgerService) Bounds(ctx context.Context, proposalID string) (first, last, count int64, err error) {
	return s.store.Bounds(ctx, proposalID)
}
