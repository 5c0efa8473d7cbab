package service

import (
	"context"

	"github.com/concordat/concord/internal/domain/consensus"
	"github.com/concordat/concord/internal/domain/evaluation"
)

// sequentialStrategy visits every eligible agent one at a time, ascending by
// ID. Each agent sees the running partial resonance and all evidence
// gathered so far. A hard veto short-circuits the remaining agents once
// quorum is met; the rejection is already decided.
type sequentialStrategy struct {
	c *Coordinator
}

func (s *sequentialStrategy) Name() string { return "sequential" }

func (s *sequentialStrategy) Run(ctx context.Context, rc *runContext) error {
	var recorded []evaluation.Evaluation
	var evidence []string
	var usable int
	var vetoed bool

	for _, ag := range rc.agents {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		partial := consensus.PartialResonance(recorded)
		ev, err := s.c.evaluateAgent(ctx, rc, ag, 1, partial, evidence)
		if err != nil {
			return err
		}
		recorded = append(recorded, ev)
		if !ev.Skipped {
			usable++
			evidence = append(evidence, ev.Evidence...)
			if !ev.Abstained() && ev.Score < 0.5 && rc.covenant.HasVetoPower(ev.Capabilities) {
				vetoed = true
			}
		}
		if vetoed && usable >= rc.covenant.MinQuorum {
			return nil
		}
	}
	return nil
}
