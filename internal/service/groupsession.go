package service

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/concordat/concord/internal/domain/consensus"
	"github.com/concordat/concord/internal/domain/evaluation"
)

// groupSessionStrategy runs multi-round deliberation. Every round, all
// eligible agents re-evaluate in parallel with the previous round's partial
// resonance and pooled evidence as shared context. Rounds stop early once
// the partial resonance stabilizes within epsilon, or at maxRounds.
//
// Re-evaluation replaces each agent's live record; the ledger keeps every
// round's entry.
type groupSessionStrategy struct {
	c         *Coordinator
	maxRounds int
	epsilon   float64
}

func (s *groupSessionStrategy) Name() string { return "group_session" }

func (s *groupSessionStrategy) Run(ctx context.Context, rc *runContext) error {
	var partial float64
	var evidence []string

	for round := 1; round <= s.maxRounds; round++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		recorded := s.runRound(ctx, rc, round, partial, evidence)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		evidence = evidence[:0]
		for i := range recorded {
			if !recorded[i].Skipped {
				evidence = append(evidence, recorded[i].Evidence...)
			}
		}

		next := consensus.PartialResonance(recorded)
		delta := math.Abs(next - partial)
		slog.Debug("group session round complete",
			"proposal_id", rc.proposal.ID, "round", round,
			"partial_resonance", next, "delta", delta)

		if round > 1 && delta < s.epsilon {
			slog.Info("group session converged",
				"proposal_id", rc.proposal.ID, "rounds", round, "resonance", next)
			return nil
		}
		partial = next
	}
	return nil
}

// runRound evaluates all agents concurrently with the shared round context.
func (s *groupSessionStrategy) runRound(ctx context.Context, rc *runContext, round int, partial float64, evidence []string) []evaluation.Evaluation {
	results := make([]evaluation.Evaluation, len(rc.agents))
	var wg sync.WaitGroup

	for i, ag := range rc.agents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev, err := s.c.evaluateAgent(ctx, rc, ag, round, partial, evidence)
			if err != nil {
				return
			}
			results[i] = ev
		}()
	}
	wg.Wait()
	return results
}
