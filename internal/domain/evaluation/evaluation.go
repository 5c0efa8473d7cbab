// Package evaluation defines an agent's scored evaluation of a proposal.
package evaluation

import (
	"errors"
	"sort"
	"time"

	"github.com/concordat/concord/internal/domain/agent"
)

// Evaluation is one agent's verdict on one proposal. Weight and capabilities
// are frozen from the agent at submission time: later registry updates never
// change how a recorded evaluation counts. Exactly one live evaluation exists
// per (proposal, agent) pair; a resubmission replaces the live record while
// the audit ledger retains every prior one.
type Evaluation struct {
	ID           string    `json:"id"`
	ProposalID   string    `json:"proposal_id"`
	AgentID      string    `json:"agent_id"`
	Score        float64   `json:"score"`
	Confidence   float64   `json:"confidence"`
	Weight       float64   `json:"weight"`
	Capabilities []string  `json:"capabilities"`
	Evidence     []string  `json:"evidence,omitempty"`
	Round        int       `json:"round"`
	Skipped      bool      `json:"skipped,omitempty"`
	SkipReason   string    `json:"skip_reason,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Usable reports whether the evaluation counts toward quorum.
// Skipped evaluations (errors, timeouts) never do.
func (e *Evaluation) Usable() bool {
	return !e.Skipped
}

// Abstained reports whether the evaluation is a genuine abstention:
// submitted, but with zero confidence. Abstentions contribute nothing to
// the resonance score yet still count toward quorum.
func (e *Evaluation) Abstained() bool {
	return !e.Skipped && e.Confidence == 0
}

// Validate checks score and confidence bounds.
func (e *Evaluation) Validate() error {
	if e.Skipped {
		return nil
	}
	if e.Score < 0 || e.Score > 1 {
		return errors.New("score must be in [0, 1]")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return errors.New("confidence must be in [0, 1]")
	}
	if e.Weight <= 0 {
		return errors.New("weight must be positive")
	}
	return nil
}

// New builds an evaluation for ag's verdict on a proposal, freezing the
// agent's current weight and capability set.
func New(proposalID string, ag agent.Agent, score, confidence float64, evidence []string, round int) Evaluation {
	return Evaluation{
		ProposalID:   proposalID,
		AgentID:      ag.ID,
		Score:        score,
		Confidence:   confidence,
		Weight:       ag.Weight,
		Capabilities: append([]string(nil), ag.Capabilities...),
		Evidence:     evidence,
		Round:        round,
		SubmittedAt:  time.Now().UTC(),
	}
}

// NewSkipped records that an agent failed to evaluate (error or timeout).
// Skipped entries are audit evidence, not scores.
func NewSkipped(proposalID string, ag agent.Agent, reason string, round int) Evaluation {
	return Evaluation{
		ProposalID:   proposalID,
		AgentID:      ag.ID,
		Weight:       ag.Weight,
		Capabilities: append([]string(nil), ag.Capabilities...),
		Round:        round,
		Skipped:      true,
		SkipReason:   reason,
		SubmittedAt:  time.Now().UTC(),
	}
}

// SortByAgentID orders evaluations ascending by agent ID. The consensus
// scorer sums in this order so resonance values are bit-reproducible
// regardless of arrival order.
func SortByAgentID(evals []Evaluation) {
	sort.Slice(evals, func(i, j int) bool { return evals[i].AgentID < evals[j].AgentID })
}
