// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrInvalidState indicates an operation was attempted on a proposal whose
// decision node is in an incompatible state. The operation has no side effect.
var ErrInvalidState = errors.New("invalid state for operation")

// ErrInsufficientQuorum indicates too few usable evaluations were available
// to score a proposal. Not fatal: the decision moves to awaiting_review.
var ErrInsufficientQuorum = errors.New("insufficient quorum")

// ErrLedgerIntegrity indicates a hash-chain mismatch detected during ledger
// verification. Fatal for the affected range; never auto-repaired.
var ErrLedgerIntegrity = errors.New("ledger integrity violation")

// ErrConfiguration indicates a malformed covenant or an impossible policy,
// e.g. a quorum larger than the set of eligible agents. Rejected at
// submission time, before any evaluation is dispatched.
var ErrConfiguration = errors.New("configuration error")
