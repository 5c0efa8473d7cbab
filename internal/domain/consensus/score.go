// Package consensus implements the weighted resonance scorer.
//
// Resonance is the weighted, confidence-scaled average of agent scores:
//
//	resonance = Σ(w_i · c_i · s_i) / Σ(w_i · c_i)
//
// summed in ascending agent-ID order so that identical evaluation sets and
// covenants always produce bit-identical resonance values and outcomes.
package consensus

import (
	"fmt"

	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/covenant"
	"github.com/concordat/concord/internal/domain/evaluation"
)

// Outcome is the scorer's verdict on a proposal.
type Outcome string

const (
	OutcomeApproved       Outcome = "approved"
	OutcomeRejected       Outcome = "rejected"
	OutcomeAwaitingReview Outcome = "awaiting_review"
)

// Result is the outcome of a single scorer invocation.
type Result struct {
	Resonance    float64  `json:"resonance"`
	Outcome      Outcome  `json:"outcome"`
	Vetoed       bool     `json:"vetoed,omitempty"`
	VetoAgentID  string   `json:"veto_agent_id,omitempty"`
	Usable       int      `json:"usable"`
	Abstentions  int      `json:"abstentions"`
	Contributing []string `json:"contributing,omitempty"` // evaluation IDs, ascending agent order
	Reason       string   `json:"reason"`
}

// Score computes the resonance of the given live evaluations under cov.
//
// Skipped evaluations never count toward quorum. Zero-confidence evaluations
// count toward quorum but contribute nothing to the score: an abstention, not
// a zero vote. A hard veto (an evaluation whose frozen capability set
// intersects the covenant's veto capabilities, scoring below 0.5) forces
// Rejected regardless of resonance.
//
// Returns domain.ErrInsufficientQuorum when fewer than MinQuorum usable
// evaluations are present.
func Score(evals []evaluation.Evaluation, cov covenant.Covenant) (*Result, error) {
	usable := make([]evaluation.Evaluation, 0, len(evals))
	for i := range evals {
		if evals[i].Usable() {
			usable = append(usable, evals[i])
		}
	}
	if len(usable) < cov.MinQuorum {
		return nil, fmt.Errorf("%d of %d required evaluations: %w", len(usable), cov.MinQuorum, domain.ErrInsufficientQuorum)
	}

	// Fixed summation order: ascending agent ID.
	evaluation.SortByAgentID(usable)

	res := &Result{Usable: len(usable)}
	var num, den float64
	for i := range usable {
		e := &usable[i]
		if e.Abstained() {
			res.Abstentions++
			continue
		}
		num += e.Weight * e.Confidence * e.Score
		den += e.Weight * e.Confidence
		res.Contributing = append(res.Contributing, e.ID)

		if !res.Vetoed && e.Score < 0.5 && cov.HasVetoPower(e.Capabilities) {
			res.Vetoed = true
			res.VetoAgentID = e.AgentID
		}
	}

	if den == 0 {
		// Every evaluator abstained; there is no signal to decide on.
		res.Outcome = OutcomeAwaitingReview
		res.Reason = "all evaluations abstained"
		return res, nil
	}
	res.Resonance = num / den

	if res.Vetoed {
		res.Outcome = OutcomeRejected
		res.Reason = fmt.Sprintf("hard veto by agent %s", res.VetoAgentID)
		return res, nil
	}

	switch {
	case res.Resonance >= cov.ResonanceThreshold:
		res.Outcome = OutcomeApproved
		res.Reason = fmt.Sprintf("resonance %.4f met threshold %.4f", res.Resonance, cov.ResonanceThreshold)
	case res.Resonance >= cov.ResonanceThreshold-cov.ReviewMargin:
		res.Outcome = OutcomeAwaitingReview
		res.Reason = fmt.Sprintf("resonance %.4f within review band of threshold %.4f", res.Resonance, cov.ResonanceThreshold)
	default:
		res.Outcome = OutcomeRejected
		res.Reason = fmt.Sprintf("resonance %.4f below threshold %.4f", res.Resonance, cov.ResonanceThreshold)
	}
	return res, nil
}

// PartialResonance computes the running resonance over the given evaluations,
// ignoring quorum and veto rules. The sequential and handoff patterns feed it
// to later evaluators as context.
func PartialResonance(evals []evaluation.Evaluation) float64 {
	sorted := append([]evaluation.Evaluation(nil), evals...)
	evaluation.SortByAgentID(sorted)

	var num, den float64
	for i := range sorted {
		e := &sorted[i]
		if !e.Usable() || e.Abstained() {
			continue
		}
		num += e.Weight * e.Confidence * e.Score
		den += e.Weight * e.Confidence
	}
	if den == 0 {
		return 0
	}
	return num / den
}
