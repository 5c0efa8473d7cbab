// Package decision defines the per-proposal decision lifecycle: nodes,
// states, and the transition rules between them.
//
// Nodes form a DAG through ParentNodeID references stored flat (an arena
// keyed by ID), never in-memory back-pointers: history stays append-only and
// trivially serializable. Rescoring from awaiting_review creates a child node
// rather than mutating the existing one.
package decision

import (
	"time"

	"github.com/concordat/concord/internal/domain/consensus"
)

// State is the lifecycle state of a decision node.
type State string

const (
	StateOpen           State = "open"
	StateScoring        State = "scoring"
	StateAwaitingReview State = "awaiting_review"
	StateApproved       State = "approved"
	StateRejected       State = "rejected"
	StateSuperseded     State = "superseded"
)

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateRejected || s == StateSuperseded
}

// transitions is the allowed state graph. awaiting_review resolves to a
// terminal state only via explicit human override, never by timeout; it may
// also re-enter scoring when new evidence arrives (as a child node).
// superseded is reachable from any non-terminal state.
var transitions = map[State][]State{
	StateOpen:           {StateScoring, StateSuperseded},
	StateScoring:        {StateApproved, StateRejected, StateAwaitingReview, StateSuperseded},
	StateAwaitingReview: {StateApproved, StateRejected, StateScoring, StateSuperseded},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// StateFor maps a scorer outcome to the node state it produces.
func StateFor(o consensus.Outcome) State {
	switch o {
	case consensus.OutcomeApproved:
		return StateApproved
	case consensus.OutcomeRejected:
		return StateRejected
	default:
		return StateAwaitingReview
	}
}

// Node is one vertex in a proposal's decision DAG. Exactly one node per
// proposal is live at a time; branching creates children linked by
// ParentNodeID.
type Node struct {
	ID           string     `json:"id"`
	ProposalID   string     `json:"proposal_id"`
	State        State      `json:"state"`
	Resonance    *float64   `json:"resonance,omitempty"`
	ParentNodeID string     `json:"parent_node_id,omitempty"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Lineage walks the arena from the node with leafID back to the root,
// returning nodes root-first. Unknown IDs terminate the walk; the arena is
// append-only so a cycle cannot occur.
func Lineage(arena []Node, leafID string) []Node {
	byID := make(map[string]*Node, len(arena))
	for i := range arena {
		byID[arena[i].ID] = &arena[i]
	}

	var chain []Node
	for id := leafID; id != ""; {
		n, ok := byID[id]
		if !ok {
			break
		}
		chain = append(chain, *n)
		id = n.ParentNodeID
	}

	// Reverse to root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// AuditSummary is the compact ledger view returned with a decision snapshot.
// Consumers can export the range and recompute the hash chain independently.
type AuditSummary struct {
	Entries       int64 `json:"entries"`
	FirstSequence int64 `json:"first_sequence"`
	LastSequence  int64 `json:"last_sequence"`
}

// Snapshot is the read model returned by GetDecision.
type Snapshot struct {
	ProposalID string       `json:"proposal_id"`
	Node       Node         `json:"node"`
	Resonance  *float64     `json:"resonance,omitempty"`
	History    []Node       `json:"history,omitempty"` // lineage of the live node, root-first
	Audit      AuditSummary `json:"audit"`
}

// FinalizedEvent is emitted to external collaborators on every terminal
// transition. Delivery is at-least-once; consumers dedupe by
// (proposal_id, outcome).
type FinalizedEvent struct {
	ProposalID      string  `json:"proposal_id"`
	Outcome         string  `json:"outcome"`
	Resonance       float64 `json:"resonance"`
	AuditRangeStart int64   `json:"audit_range_start"`
	AuditRangeEnd   int64   `json:"audit_range_end"`
}
