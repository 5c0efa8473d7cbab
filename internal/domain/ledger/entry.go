// Package ledger defines the append-only, hash-chained audit ledger.
//
// Each proposal owns one ledger. Every entry binds to its predecessor:
//
//	this_hash = hex(sha256(prior_hash ‖ payload))
//
// so mutating any stored byte breaks the chain at that sequence and every
// one after it. This gives tamper evidence without a blockchain.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Kind identifies what an audit entry records.
type Kind string

const (
	KindEvaluation Kind = "evaluation"
	KindOverride   Kind = "override"
	KindTransition Kind = "transition"
	KindVeto       Kind = "veto"
)

// Entry is a single immutable line in a proposal's audit ledger.
// Sequence is monotonic per proposal, starting at 1, never reordered or
// skipped. CreatedAt is metadata and not part of the hash.
type Entry struct {
	ProposalID string          `json:"proposal_id"`
	Sequence   int64           `json:"sequence"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	PriorHash  string          `json:"prior_hash"`
	ThisHash   string          `json:"this_hash"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ComputeHash derives the chain hash for a payload given the predecessor's
// hash. The genesis entry uses an empty prior hash.
func ComputeHash(priorHash string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(priorHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Seal sets the entry's PriorHash and ThisHash from the predecessor's hash.
func (e *Entry) Seal(priorHash string) {
	e.PriorHash = priorHash
	e.ThisHash = ComputeHash(priorHash, e.Payload)
}

// VerifyChain replays the hash chain over a contiguous, ascending slice of
// entries. It returns ok=false and the offending sequence number at the
// first mismatch: a recomputed hash that differs from the stored one, a
// prior-hash that does not match the predecessor, or a gap in sequence
// numbers. priorHash is the ThisHash of the entry immediately before the
// slice ("" when the slice starts at the genesis entry).
func VerifyChain(entries []Entry, priorHash string) (ok bool, badSeq int64) {
	prev := priorHash
	var prevSeq int64 = -1
	for i := range entries {
		e := &entries[i]
		if prevSeq >= 0 && e.Sequence != prevSeq+1 {
			return false, e.Sequence
		}
		if e.PriorHash != prev {
			return false, e.Sequence
		}
		if ComputeHash(e.PriorHash, e.Payload) != e.ThisHash {
			return false, e.Sequence
		}
		prev = e.ThisHash
		prevSeq = e.Sequence
	}
	return true, 0
}

// ---------------------------------------------------------------------------
// Payloads
//
// All payloads are structs, never maps, so json.Marshal field order is
// deterministic and hashes are reproducible on replay.
// ---------------------------------------------------------------------------

// EvaluationPayload records one agent evaluation (or skip) for a proposal.
type EvaluationPayload struct {
	EvaluationID string   `json:"evaluation_id,omitempty"`
	AgentID      string   `json:"agent_id"`
	Score        float64  `json:"score"`
	Confidence   float64  `json:"confidence"`
	Weight       float64  `json:"weight"`
	Evidence     []string `json:"evidence,omitempty"`
	Round        int      `json:"round"`
	Skipped      bool     `json:"skipped,omitempty"`
	SkipReason   string   `json:"skip_reason,omitempty"`
}

// TransitionPayload records a decision-node state transition and, for
// scoring transitions, the qualifying resonance computation.
type TransitionPayload struct {
	NodeID       string   `json:"node_id"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	Resonance    float64  `json:"resonance"`
	Vetoed       bool     `json:"vetoed,omitempty"`
	VetoAgentID  string   `json:"veto_agent_id,omitempty"`
	Contributing []string `json:"contributing,omitempty"` // evaluation IDs
	Reason       string   `json:"reason"`
}

// OverridePayload records a human review-gate decision.
type OverridePayload struct {
	NodeID        string `json:"node_id"`
	Decision      string `json:"decision"`
	Justification string `json:"justification"`
	ReviewerID    string `json:"reviewer_id"`
}

// VetoPayload records a hard veto as its own ledger line, in addition to the
// transition that carries it.
type VetoPayload struct {
	AgentID    string  `json:"agent_id"`
	Score      float64 `json:"score"`
	Capability string  `json:"capability,omitempty"`
}
