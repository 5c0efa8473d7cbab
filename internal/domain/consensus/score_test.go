package consensus

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/covenant"
	"github.com/concordat/concord/internal/domain/evaluation"
)

func testCovenant() covenant.Covenant {
	return covenant.Covenant{
		ID:                 "cov-1",
		Name:               "standard",
		ResonanceThreshold: 0.85,
		ReviewMargin:       0.10,
		VetoCapabilities:   []string{"finance"},
		MinQuorum:          3,
		EvaluationTimeout:  30 * time.Second,
	}
}

func eval(id, agentID string, score, confidence, weight float64, caps ...string) evaluation.Evaluation {
	return evaluation.Evaluation{
		ID:           id,
		ProposalID:   "prop-1",
		AgentID:      agentID,
		Score:        score,
		Confidence:   confidence,
		Weight:       weight,
		Capabilities: caps,
		Round:        1,
	}
}

func TestScoreApprovesAboveThreshold(t *testing.T) {
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.90, 1.0, 1.0),
		eval("e2", "agent-b", 0.92, 1.0, 1.0),
		eval("e3", "agent-c", 0.95, 1.0, 1.0),
	}

	res, err := Score(evals, testCovenant())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := (0.90 + 0.92 + 0.95) / 3.0
	if math.Abs(res.Resonance-want) > 1e-12 {
		t.Errorf("resonance = %v, want %v", res.Resonance, want)
	}
	if res.Outcome != OutcomeApproved {
		t.Errorf("outcome = %v, want approved", res.Outcome)
	}
	if res.Usable != 3 {
		t.Errorf("usable = %d, want 3", res.Usable)
	}
}

func TestScoreIsDeterministicAcrossOrderings(t *testing.T) {
	base := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.71, 0.9, 2.5),
		eval("e2", "agent-b", 0.93, 0.6, 1.0),
		eval("e3", "agent-c", 0.88, 1.0, 0.5),
		eval("e4", "agent-d", 0.55, 0.4, 3.0),
	}
	orderings := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{2, 0, 3, 1},
		{1, 3, 0, 2},
	}

	var first *Result
	for _, order := range orderings {
		shuffled := make([]evaluation.Evaluation, len(base))
		for i, j := range order {
			shuffled[i] = base[j]
		}

		res, err := Score(shuffled, testCovenant())
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		if first == nil {
			first = res
			continue
		}
		// Bit-identical, not merely close.
		if res.Resonance != first.Resonance {
			t.Errorf("resonance differs across orderings: %v vs %v", res.Resonance, first.Resonance)
		}
		if res.Outcome != first.Outcome {
			t.Errorf("outcome differs across orderings: %v vs %v", res.Outcome, first.Outcome)
		}
	}
}

func TestScoreHardVetoRejects(t *testing.T) {
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.95, 1.0, 1.0),
		eval("e2", "agent-b", 0.95, 1.0, 1.0),
		eval("e3", "agent-fin", 0.30, 1.0, 1.0, "finance"),
	}

	res, err := Score(evals, testCovenant())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Outcome != OutcomeRejected {
		t.Errorf("outcome = %v, want rejected despite high resonance", res.Outcome)
	}
	if !res.Vetoed {
		t.Error("expected vetoed flag")
	}
	if res.VetoAgentID != "agent-fin" {
		t.Errorf("veto agent = %q, want agent-fin", res.VetoAgentID)
	}
}

func TestScoreVetoRequiresVetoCapability(t *testing.T) {
	// A low score from a non-veto agent is just a low score.
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.95, 1.0, 1.0),
		eval("e2", "agent-b", 0.95, 1.0, 1.0),
		eval("e3", "agent-c", 0.30, 1.0, 1.0, "security"),
	}

	res, err := Score(evals, testCovenant())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Vetoed {
		t.Error("unexpected veto from agent without veto capability")
	}
}

func TestScoreInsufficientQuorum(t *testing.T) {
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.90, 1.0, 1.0),
		eval("e2", "agent-b", 0.90, 1.0, 1.0),
	}

	_, err := Score(evals, testCovenant())
	if !errors.Is(err, domain.ErrInsufficientQuorum) {
		t.Fatalf("expected ErrInsufficientQuorum, got %v", err)
	}
}

func TestScoreSkippedNeverCountTowardQuorum(t *testing.T) {
	skipped := eval("e3", "agent-c", 0, 0, 1.0)
	skipped.Skipped = true
	skipped.SkipReason = "timeout"

	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.90, 1.0, 1.0),
		eval("e2", "agent-b", 0.90, 1.0, 1.0),
		skipped,
	}

	_, err := Score(evals, testCovenant())
	if !errors.Is(err, domain.ErrInsufficientQuorum) {
		t.Fatalf("expected ErrInsufficientQuorum with a skipped evaluation, got %v", err)
	}
}

func TestScoreAbstentionCountsTowardQuorumNotScore(t *testing.T) {
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.90, 1.0, 1.0),
		eval("e2", "agent-b", 0.90, 1.0, 1.0),
		eval("e3", "agent-c", 0.10, 0, 5.0), // abstains; score must not drag resonance down
	}

	res, err := Score(evals, testCovenant())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Abstentions != 1 {
		t.Errorf("abstentions = %d, want 1", res.Abstentions)
	}
	if math.Abs(res.Resonance-0.90) > 1e-12 {
		t.Errorf("resonance = %v, want 0.90", res.Resonance)
	}
	if res.Outcome != OutcomeApproved {
		t.Errorf("outcome = %v, want approved", res.Outcome)
	}
}

func TestScoreAllAbstainedAwaitsReview(t *testing.T) {
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.9, 0, 1.0),
		eval("e2", "agent-b", 0.9, 0, 1.0),
		eval("e3", "agent-c", 0.9, 0, 1.0),
	}

	res, err := Score(evals, testCovenant())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Outcome != OutcomeAwaitingReview {
		t.Errorf("outcome = %v, want awaiting_review when all abstain", res.Outcome)
	}
}

func TestScoreReviewBand(t *testing.T) {
	// Resonance 0.80 sits in [threshold-margin, threshold) = [0.75, 0.85).
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.80, 1.0, 1.0),
		eval("e2", "agent-b", 0.80, 1.0, 1.0),
		eval("e3", "agent-c", 0.80, 1.0, 1.0),
	}

	res, err := Score(evals, testCovenant())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Outcome != OutcomeAwaitingReview {
		t.Errorf("outcome = %v, want awaiting_review", res.Outcome)
	}
}

func TestScoreRejectsBelowBand(t *testing.T) {
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.50, 1.0, 1.0),
		eval("e2", "agent-b", 0.60, 1.0, 1.0),
		eval("e3", "agent-c", 0.55, 1.0, 1.0),
	}

	res, err := Score(evals, testCovenant())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Outcome != OutcomeRejected {
		t.Errorf("outcome = %v, want rejected", res.Outcome)
	}
	if res.Vetoed {
		t.Error("unexpected veto flag")
	}
}

func TestScoreWeightsAndConfidenceScale(t *testing.T) {
	// resonance = (2*1*0.9 + 1*0.5*0.6) / (2*1 + 1*0.5) = (1.8 + 0.3) / 2.5 = 0.84
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.90, 1.0, 2.0),
		eval("e2", "agent-b", 0.60, 0.5, 1.0),
		eval("e3", "agent-c", 0.84, 0, 1.0), // abstains
	}

	res, err := Score(evals, testCovenant())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if math.Abs(res.Resonance-0.84) > 1e-12 {
		t.Errorf("resonance = %v, want 0.84", res.Resonance)
	}
}

func TestPartialResonance(t *testing.T) {
	evals := []evaluation.Evaluation{
		eval("e1", "agent-a", 0.8, 1.0, 1.0),
		eval("e2", "agent-b", 0.6, 1.0, 1.0),
	}
	if got := PartialResonance(evals); math.Abs(got-0.7) > 1e-12 {
		t.Errorf("partial resonance = %v, want 0.7", got)
	}
	if got := PartialResonance(nil); got != 0 {
		t.Errorf("partial resonance of empty set = %v, want 0", got)
	}
}
